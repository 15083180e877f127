package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"bluray-lister/models"
	"bluray-lister/utils"
)

// ErrEmptyExport is returned when the working set holds no rows.
var ErrEmptyExport = errors.New("storage: no listings to export")

const (
	DefaultExportPrefix = "ebay_upload"
	exportTimeLayout    = "20060102_150405"
)

// Exporter writes timestamped deliverable copies of the working set.
type Exporter struct {
	store    *WorkingSet
	dir      string
	prefix   string
	archiver Archiver
	logger   *utils.Logger
	now      func() time.Time
}

// NewExporter returns an Exporter writing into dir. An empty prefix uses
// DefaultExportPrefix.
func NewExporter(store *WorkingSet, dir, prefix string, logger *utils.Logger) *Exporter {
	if prefix == "" {
		prefix = DefaultExportPrefix
	}
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Exporter{
		store:  store,
		dir:    dir,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

// WithArchiver records every successful export in a.
func (e *Exporter) WithArchiver(a Archiver) *Exporter {
	e.archiver = a
	return e
}

// Export copies the working set to dir/name and returns the written path.
// An empty name produces "{prefix}_{count}_items_{timestamp}.csv".
func (e *Exporter) Export(ctx context.Context, name string) (string, error) {
	snap, err := e.store.Snapshot()
	if err != nil {
		return "", err
	}
	count := len(snap.Summaries)
	if count == 0 {
		return "", ErrEmptyExport
	}

	now := e.now()
	name = e.fileName(name, count, now)
	if err := writeFileAtomic(e.dir, name, snap.Raw); err != nil {
		return "", fmt.Errorf("storage: export: %w", err)
	}
	path := filepath.Join(e.dir, name)
	e.logger.Info("[export] Wrote %d listings to %s", count, path)

	if e.archiver != nil {
		rec := models.ExportRecord{Name: name, Path: path, ExportedAt: now, ItemCount: count, Listings: snap.Summaries}
		if err := e.archiver.Archive(ctx, rec); err != nil {
			e.logger.Warn("[export] Archive of %s failed: %v", name, err)
		}
	}
	return path, nil
}

func (e *Exporter) fileName(name string, count int, now time.Time) string {
	name = strings.TrimSpace(name)
	if name != "" {
		base := filepath.Base(name)
		if base != "." && base != ".." && base != string(filepath.Separator) {
			return base
		}
	}
	return fmt.Sprintf("%s_%d_items_%s.csv", e.prefix, count, now.Format(exportTimeLayout))
}
