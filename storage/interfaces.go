package storage

import (
	"context"

	"bluray-lister/models"
)

// Archiver records completed exports in a durable history.
type Archiver interface {
	Archive(ctx context.Context, rec models.ExportRecord) error
	Close() error
}

// PriceStore caches market price signals per title and condition.
type PriceStore interface {
	Get(ctx context.Context, title, condition string) (*models.PriceData, bool, error)
	Put(ctx context.Context, title, condition string, p *models.PriceData) error
	Close() error
}

// ImageUploader publishes a local photo and returns its public URL.
type ImageUploader interface {
	Upload(ctx context.Context, path string) (string, error)
}
