package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"bluray-lister/models"
	"bluray-lister/schema"
	"bluray-lister/utils"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrNotInitialized is returned by every WorkingSet operation before Initialize.
var ErrNotInitialized = errors.New("storage: working set not initialized")

// ConflictError means the working-set file changed between the read and the
// rewrite of an append or clear cycle. Nothing was written; the caller may retry.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("storage: working set %q was modified concurrently; retry the operation", e.Path)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

// Summary columns.
const (
	colTitle       = "*Title"
	colMovieTitle  = "*C:Movie/TV Title"
	colStartPrice  = "*StartPrice"
	colConditionID = "*ConditionID"
)

// WorkingSet owns the persisted CSV of listing rows built in a session. The
// file is the single source of truth: every operation reads it, and every
// mutation rewrites it in full with the schema's column order.
//
// Every read-modify-write cycle holds an exclusive lock on a sidecar
// "<path>.lock" file, so stores in other processes sharing the file wait their
// turn. The rewrite is atomic and also checks a generation token (a hash of the
// bytes read at the start of the cycle); a writer that bypassed the lock gets
// ConflictError instead of a silent overwrite.
type WorkingSet struct {
	mu     sync.Mutex
	schema *schema.Schema
	path   string
	lock   *flock.Flock
	logger *utils.Logger
}

// NewWorkingSet returns an uninitialized WorkingSet.
func NewWorkingSet(logger *utils.Logger) *WorkingSet {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &WorkingSet{logger: logger}
}

// Initialize binds the store to a schema and file path. A missing file is
// created header-only; a file stored under a different header is rewritten in
// the schema's column order.
func (w *WorkingSet) Initialize(s *schema.Schema, path string) error {
	if s == nil || s.Len() == 0 {
		return errors.New("storage: initialize: empty schema")
	}
	if path == "" {
		return errors.New("storage: initialize: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: create dir for %q: %w", path, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.schema = s
	w.path = path
	w.lock = flock.New(path + ".lock")

	err := w.locked(func() error {
		snap, err := w.load()
		if err != nil {
			return err
		}
		if snap.exists && equalColumns(snap.header, s.Columns) {
			return nil
		}
		data, err := encode(s.Columns, snap.rows)
		if err != nil {
			return err
		}
		if err := w.commit(snap.generation, data); err != nil {
			return err
		}
		if snap.exists {
			w.logger.Info("[workingset] Rewrote %s with the current %d-column header (%d listings kept)",
				path, s.Len(), len(snap.rows))
		} else {
			w.logger.Info("[workingset] Created %s with %d columns", path, s.Len())
		}
		return nil
	})
	if err != nil {
		w.schema, w.path, w.lock = nil, "", nil
		return err
	}
	return nil
}

// locked runs fn while holding the cross-process file lock.
func (w *WorkingSet) locked(fn func() error) error {
	if err := w.lock.Lock(); err != nil {
		return fmt.Errorf("storage: lock working set %q: %w", w.path, err)
	}
	defer func() {
		if err := w.lock.Unlock(); err != nil {
			w.logger.Warn("[workingset] unlock %s: %v", w.path, err)
		}
	}()
	return fn()
}

// Path returns the working-set file path ("" before Initialize).
func (w *WorkingSet) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// Append adds row and rewrites the file. It returns the 1-based position of
// the new row.
func (w *WorkingSet) Append(row models.ListingRow) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.schema == nil {
		return 0, ErrNotInitialized
	}

	var rows [][]string
	err := w.locked(func() error {
		snap, err := w.load()
		if err != nil {
			return err
		}
		rows = append(snap.rows, align(row.Columns, row.Values, w.schema.Columns))
		data, err := encode(w.schema.Columns, rows)
		if err != nil {
			return err
		}
		return w.commit(snap.generation, data)
	})
	if err != nil {
		return 0, err
	}

	w.logger.Debug("[workingset] Appended row %d to %s", len(rows), w.path)
	return len(rows), nil
}

// Count returns the number of stored rows.
func (w *WorkingSet) Count() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.schema == nil {
		return 0, ErrNotInitialized
	}
	snap, err := w.load()
	if err != nil {
		return 0, err
	}
	return len(snap.rows), nil
}

// List returns a summary of every stored row in order.
func (w *WorkingSet) List() ([]models.ListingSummary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.schema == nil {
		return nil, ErrNotInitialized
	}
	snap, err := w.load()
	if err != nil {
		return nil, err
	}
	return w.summaries(snap.rows), nil
}

// Rows returns every stored row, aligned to the schema.
func (w *WorkingSet) Rows() ([]models.ListingRow, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.schema == nil {
		return nil, ErrNotInitialized
	}
	snap, err := w.load()
	if err != nil {
		return nil, err
	}
	out := make([]models.ListingRow, len(snap.rows))
	for i, rec := range snap.rows {
		out[i] = models.ListingRow{Columns: w.schema.Header(), Values: rec}
	}
	return out, nil
}

// Clear resets the file to the schema header only.
func (w *WorkingSet) Clear() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.schema == nil {
		return ErrNotInitialized
	}
	cleared := 0
	err := w.locked(func() error {
		snap, err := w.load()
		if err != nil {
			return err
		}
		cleared = len(snap.rows)
		data, err := encode(w.schema.Columns, nil)
		if err != nil {
			return err
		}
		return w.commit(snap.generation, data)
	})
	if err != nil {
		return err
	}
	w.logger.Info("[workingset] Cleared %d listings from %s", cleared, w.path)
	return nil
}

// Snapshot is a consistent view of the stored file.
type Snapshot struct {
	Raw       []byte
	Summaries []models.ListingSummary
}

// Snapshot returns the raw file bytes together with the row summaries parsed
// from those same bytes.
func (w *WorkingSet) Snapshot() (*Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.schema == nil {
		return nil, ErrNotInitialized
	}
	snap, err := w.load()
	if err != nil {
		return nil, err
	}
	return &Snapshot{Raw: snap.raw, Summaries: w.summaries(snap.rows)}, nil
}

type fileState struct {
	raw        []byte
	exists     bool
	generation string
	header     []string
	rows       [][]string
}

func (w *WorkingSet) load() (*fileState, error) {
	raw, err := os.ReadFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		return &fileState{generation: generation(nil, false)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read working set %q: %w", w.path, err)
	}

	header, rows, err := decode(raw, w.schema.Columns)
	if err != nil {
		return nil, fmt.Errorf("storage: parse working set %q: %w", w.path, err)
	}
	return &fileState{raw: raw, exists: true, generation: generation(raw, true), header: header, rows: rows}, nil
}

// commit rewrites the file if its generation still matches expected.
func (w *WorkingSet) commit(expected string, data []byte) error {
	current, err := os.ReadFile(w.path)
	exists := true
	if errors.Is(err, os.ErrNotExist) {
		exists = false
	} else if err != nil {
		return fmt.Errorf("storage: re-read working set %q: %w", w.path, err)
	}
	if generation(current, exists) != expected {
		w.logger.Warn("[workingset] %s changed during update, rejecting write", w.path)
		return &ConflictError{Path: w.path}
	}
	return writeFileAtomic(filepath.Dir(w.path), filepath.Base(w.path), data)
}

func (w *WorkingSet) summaries(rows [][]string) []models.ListingSummary {
	idx := func(name string) int {
		for i, c := range w.schema.Columns {
			if c == name {
				return i
			}
		}
		return -1
	}
	titleAt, movieAt, priceAt, condAt := idx(colTitle), idx(colMovieTitle), idx(colStartPrice), idx(colConditionID)
	get := func(rec []string, i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	out := make([]models.ListingSummary, len(rows))
	for n, rec := range rows {
		out[n] = models.ListingSummary{
			Row:         n + 1,
			Title:       get(rec, titleAt),
			MovieTitle:  get(rec, movieAt),
			Price:       get(rec, priceAt),
			ConditionID: get(rec, condAt),
		}
	}
	return out
}

func generation(raw []byte, exists bool) string {
	if !exists {
		return "absent"
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// encode renders header and rows as BOM-prefixed CSV.
func encode(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	cw := csv.NewWriter(&buf)
	if err := cw.Write(header); err != nil {
		return nil, fmt.Errorf("storage: write header: %w", err)
	}
	for _, rec := range rows {
		if err := cw.Write(rec); err != nil {
			return nil, fmt.Errorf("storage: write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("storage: flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// decode parses a stored file, returning its header and every data row
// aligned to columns.
func decode(raw []byte, columns []string) ([]string, [][]string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil, nil
	}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	header := records[0]
	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, align(header, rec, columns))
	}
	return header, rows, nil
}

// align maps a record laid out as from onto the column order to. Columns
// missing from from become "", columns not in to are dropped. Duplicate names
// pair up by occurrence: the k-th "X" in from feeds the k-th "X" in to.
func align(from, rec, to []string) []string {
	out := make([]string, len(to))
	if equalColumns(from, to) {
		copy(out, rec)
		return out
	}

	positions := make(map[string][]int, len(from))
	for i, c := range from {
		positions[c] = append(positions[c], i)
	}
	seen := make(map[string]int, len(to))
	for i, c := range to {
		k := seen[c]
		seen[c] = k + 1
		if p := positions[c]; k < len(p) && p[k] < len(rec) {
			out[i] = rec[p[k]]
		}
	}
	return out
}

func equalColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
