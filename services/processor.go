package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bluray-lister/models"
	"bluray-lister/storage"
	"bluray-lister/utils"
)

// ErrImageNotFound is returned when a requested photo is not in the images folder.
var ErrImageNotFound = errors.New("services: image not found")

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
}

// MetadataLookup finds movie metadata by title. A nil result means no match.
type MetadataLookup interface {
	SearchMovie(ctx context.Context, title string, year int) (*models.MovieMetadata, error)
}

// ProcessRequest names one photo to process.
type ProcessRequest struct {
	Filename string
	// MovieTitle defaults to the filename stem with separators turned into spaces.
	MovieTitle string
	Year       int
	Condition  string
}

// ProcessResult is everything gathered for one photo, ready to confirm and
// add as a listing.
type ProcessResult struct {
	Filename       string
	SearchTitle    string
	ImageURL       string
	Metadata       *models.MovieMetadata
	Price          *models.PriceData
	SuggestedPrice float64
	Err            error
}

// Processor uploads photos and gathers metadata and price suggestions. Every
// collaborator is optional; missing ones are skipped with a warning.
type Processor struct {
	imagesDir string
	uploader  storage.ImageUploader
	metadata  MetadataLookup
	pricing   *PricingService
	condition string
	logger    *utils.Logger

	maxWorkers  int
	rateLimitMs int
}

// NewProcessor returns a Processor over imagesDir. defaultCondition is used
// for price lookups when a request names none.
func NewProcessor(imagesDir string, uploader storage.ImageUploader, metadata MetadataLookup,
	pricing *PricingService, defaultCondition string, logger *utils.Logger) *Processor {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Processor{
		imagesDir:   imagesDir,
		uploader:    uploader,
		metadata:    metadata,
		pricing:     pricing,
		condition:   defaultCondition,
		logger:      logger,
		maxWorkers:  1,
		rateLimitMs: 0,
	}
}

// WithConcurrency sets the worker count and start spacing used by ProcessBatch.
func (p *Processor) WithConcurrency(maxWorkers, rateLimitMs int) *Processor {
	p.maxWorkers = maxWorkers
	p.rateLimitMs = rateLimitMs
	return p
}

// ListImages returns the photos in the images folder sorted by name, creating
// the folder when it does not exist.
func (p *Processor) ListImages() ([]models.ImageFile, error) {
	entries, err := os.ReadDir(p.imagesDir)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(p.imagesDir, 0o755); err != nil {
			return nil, fmt.Errorf("services: create images dir: %w", err)
		}
		return []models.ImageFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("services: list images: %w", err)
	}

	images := make([]models.ImageFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		images = append(images, models.ImageFile{
			Name:   e.Name(),
			Path:   filepath.Join(p.imagesDir, e.Name()),
			SizeKB: math.Round(float64(info.Size())/1024*10) / 10,
		})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })
	return images, nil
}

// SearchTitle derives a lookup title from a photo filename.
func SearchTitle(filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	return normaliseText(stem)
}

// Process uploads one photo and gathers its metadata and price suggestion.
// Only a missing photo or a failed upload is an error.
func (p *Processor) Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	name := filepath.Base(req.Filename)
	path := filepath.Join(p.imagesDir, name)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, name)
	}

	res := &ProcessResult{Filename: name, SearchTitle: strings.TrimSpace(req.MovieTitle)}
	if res.SearchTitle == "" {
		res.SearchTitle = SearchTitle(name)
	}

	if p.uploader != nil {
		url, err := p.uploader.Upload(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("services: upload %s: %w", name, err)
		}
		res.ImageURL = url
	} else {
		p.logger.Warn("[processor] No image uploader configured, %s not uploaded", name)
	}

	if p.metadata != nil {
		meta, err := p.metadata.SearchMovie(ctx, res.SearchTitle, req.Year)
		if err != nil {
			p.logger.Warn("[processor] Metadata lookup for %q failed: %v", res.SearchTitle, err)
		}
		res.Metadata = meta
	}

	condition := req.Condition
	if condition == "" {
		condition = p.condition
	}
	priceTitle := res.SearchTitle
	if res.Metadata != nil && res.Metadata.Title != "" {
		priceTitle = res.Metadata.Title
	}
	if p.pricing != nil {
		res.SuggestedPrice, res.Price = p.pricing.Suggest(ctx, priceTitle, condition)
	} else {
		res.SuggestedPrice = FallbackPrice
	}

	p.logger.Info("[processor] %s → %q suggested $%s", name, priceTitle, FormatPrice(res.SuggestedPrice))
	return res, nil
}

// ProcessBatch runs Process for every request on the worker pool. Results
// keep request order; failures are reported in ProcessResult.Err.
func (p *Processor) ProcessBatch(ctx context.Context, reqs []ProcessRequest) []ProcessResult {
	results := make([]ProcessResult, len(reqs))
	pool := utils.NewWorkerPool(p.maxWorkers, p.rateLimitMs)

	for i, req := range reqs {
		i, req := i, req
		pool.Submit(func() {
			if err := ctx.Err(); err != nil {
				results[i] = ProcessResult{Filename: req.Filename, Err: err}
				return
			}
			res, err := p.Process(ctx, req)
			if err != nil {
				results[i] = ProcessResult{Filename: req.Filename, Err: err}
				p.logger.Error("[processor] %s: %v", req.Filename, err)
				return
			}
			results[i] = *res
		})
	}
	pool.Wait()
	return results
}
