// Package schema discovers the column layout of a marketplace bulk-upload
// template file.
//
// Template files are authored by the marketplace, not by us: the header row
// can be split across bare CR, LF or CRLF sequences, the file may start with a
// UTF-8 byte-order mark, and free-text guidance rows follow the header starting
// at a sentinel marker. Column order is authoritative for every file we write.
package schema

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"bluray-lister/utils"
)

const (
	// DefaultPattern matches the marketplace's category listing templates.
	DefaultPattern = "eBay-category-listing-template-*.csv"
	// DefaultSentinel opens the guidance rows that follow the header.
	DefaultSentinel = "Info,>>>"
	// DefaultActionIndex is the position of the action column. Its literal
	// name changes between template revisions.
	DefaultActionIndex = 2
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Schema is the ordered column sequence of a template. Column names are not
// guaranteed unique.
type Schema struct {
	Columns     []string
	ActionIndex int
	Path        string
}

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.Columns) }

// ActionColumn returns the name of the action column.
func (s *Schema) ActionColumn() string { return s.Columns[s.ActionIndex] }

// Header returns a copy of the column sequence.
func (s *Schema) Header() []string {
	out := make([]string, len(s.Columns))
	copy(out, s.Columns)
	return out
}

// Loader locates the newest template file and extracts its schema. The first
// successful Load is cached for the lifetime of the Loader.
type Loader struct {
	Dir         string
	Pattern     string
	Sentinel    string
	ActionIndex int
	Logger      *utils.Logger

	mu     sync.Mutex
	cached *Schema
}

// NewLoader returns a Loader for dir using the default pattern, sentinel and
// action index.
func NewLoader(dir string) *Loader {
	return &Loader{
		Dir:         dir,
		Pattern:     DefaultPattern,
		Sentinel:    DefaultSentinel,
		ActionIndex: DefaultActionIndex,
	}
}

// Load returns the cached schema, loading it on first use.
func (l *Loader) Load() (*Schema, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil {
		return l.cached, nil
	}

	path, err := l.locate()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read template %q: %w", path, err)
	}

	s, err := Parse(raw, l.Sentinel, l.ActionIndex)
	if err != nil {
		var me *MalformedTemplateError
		if errors.As(err, &me) {
			me.Path = path
		}
		return nil, err
	}
	s.Path = path
	l.cached = s
	if l.Logger != nil {
		l.Logger.Info("[schema] Loaded %d columns from %s (action column %q)", s.Len(), path, s.ActionColumn())
	}
	return s, nil
}

// locate returns the most recently modified file matching the pattern.
func (l *Loader) locate() (string, error) {
	pattern := l.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	matches, err := filepath.Glob(filepath.Join(l.Dir, pattern))
	if err != nil {
		return "", fmt.Errorf("schema: bad template pattern %q: %w", pattern, err)
	}

	var newest string
	var newestMod int64
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		mod := fi.ModTime().UnixNano()
		if newest == "" || mod > newestMod {
			newest, newestMod = m, mod
		}
	}
	if newest == "" {
		return "", &TemplateNotFoundError{Dir: l.Dir, Pattern: pattern}
	}
	return newest, nil
}

// Parse extracts the schema from raw template bytes.
//
// Everything before the first sentinel is the header. Line-ending characters
// are removed from it (header names never contain line breaks), trailing
// commas are trimmed, and the result is parsed as a single quote-aware CSV
// record. Some names carry commas inside quoted annotations.
func Parse(raw []byte, sentinel string, actionIndex int) (*Schema, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	text := string(raw)

	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	if i := strings.Index(text, sentinel); i >= 0 {
		text = text[:i]
	}

	line := strings.NewReplacer("\r", "", "\n", "").Replace(text)
	line = strings.TrimRight(line, ",")
	if strings.TrimSpace(line) == "" {
		return nil, &MalformedTemplateError{Reason: "no header before guidance rows"}
	}

	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	columns, err := r.Read()
	if err != nil && err != io.EOF {
		return nil, &MalformedTemplateError{Reason: "header is not a valid comma-separated record", Err: err}
	}
	if len(columns) == 0 {
		return nil, &MalformedTemplateError{Reason: "header has no columns"}
	}

	if actionIndex < 0 || actionIndex >= len(columns) {
		return nil, &MalformedTemplateError{
			Reason: fmt.Sprintf("action column index %d is outside the %d header columns", actionIndex, len(columns)),
		}
	}
	if strings.TrimSpace(columns[actionIndex]) == "" {
		return nil, &MalformedTemplateError{
			Reason: fmt.Sprintf("action column at index %d has an empty name", actionIndex),
		}
	}

	return &Schema{Columns: columns, ActionIndex: actionIndex}, nil
}
