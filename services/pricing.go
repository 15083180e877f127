package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"bluray-lister/models"
	"bluray-lister/storage"
	"bluray-lister/utils"
)

// SoldListingSource finds completed sales for a title.
type SoldListingSource interface {
	SoldListings(ctx context.Context, title, condition string) ([]models.SoldListing, error)
}

// PricingService produces market price signals, consulting the cache before
// the sold-listing source. Either dependency may be nil.
type PricingService struct {
	source     SoldListingSource
	sourceName string
	cache      storage.PriceStore
	cleaner    *PriceCleaner
	margin     float64
	shipping   float64
	logger     *utils.Logger
	now        func() time.Time
}

// NewPricingService wires a pricing service. shippingCost is the flat
// shipping reported alongside every price signal.
func NewPricingService(source SoldListingSource, sourceName string, cache storage.PriceStore,
	margin float64, shippingCost string, logger *utils.Logger) *PricingService {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	shipping, _ := strconv.ParseFloat(shippingCost, 64)
	return &PricingService{
		source:     source,
		sourceName: sourceName,
		cache:      cache,
		cleaner:    NewPriceCleaner(logger),
		margin:     margin,
		shipping:   shipping,
		logger:     logger,
		now:        time.Now,
	}
}

// Lookup returns the price signal for title in condition. The result has a nil
// AveragePrice when no sale could be found or no source is configured.
func (p *PricingService) Lookup(ctx context.Context, title, condition string) (*models.PriceData, error) {
	if p.cache != nil {
		cached, ok, err := p.cache.Get(ctx, title, condition)
		if err != nil {
			p.logger.Warn("[pricing] Cache read failed for %q: %v", title, err)
		} else if ok {
			p.logger.Debug("[pricing] Cache hit for %q (%s)", title, condition)
			return cached, nil
		}
	}

	if p.source == nil {
		return &models.PriceData{ShippingCost: p.shipping, Source: "none", FetchedAt: p.now()}, nil
	}

	sold, err := p.source.SoldListings(ctx, title, condition)
	if err != nil {
		return nil, fmt.Errorf("pricing: %q: %w", title, err)
	}
	comps := p.cleaner.Clean(sold)
	data := &models.PriceData{
		AveragePrice: AveragePrice(comps),
		ShippingCost: p.shipping,
		Comparables:  comps,
		Source:       p.sourceName,
		FetchedAt:    p.now(),
	}

	if p.cache != nil {
		if err := p.cache.Put(ctx, title, condition, data); err != nil {
			p.logger.Warn("[pricing] Cache write failed for %q: %v", title, err)
		}
	}
	return data, nil
}

// Suggest looks up the market price and applies SuggestedPrice with the
// configured margin. A failed lookup falls back to FallbackPrice.
func (p *PricingService) Suggest(ctx context.Context, title, condition string) (float64, *models.PriceData) {
	data, err := p.Lookup(ctx, title, condition)
	if err != nil {
		p.logger.Warn("[pricing] %v, using fallback price", err)
		return FallbackPrice, nil
	}
	return SuggestedPrice(data.AveragePrice, p.margin), data
}
