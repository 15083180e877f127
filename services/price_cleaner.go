package services

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"bluray-lister/models"
	"bluray-lister/utils"
)

var (
	// priceRegexp captures numeric price values
	priceRegexp = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	// rangeRegexp matches "$8.00 to $10.00" style ranges
	rangeRegexp = regexp.MustCompile(`(?i)\d\s*to\s*\D*\d`)
)

// PriceCleaner turns scraped sold listings into comparable sales.
type PriceCleaner struct {
	logger *utils.Logger
}

// NewPriceCleaner creates a PriceCleaner with the given logger.
func NewPriceCleaner(logger *utils.Logger) *PriceCleaner {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &PriceCleaner{logger: logger}
}

// Clean drops listings without a URL or a usable price and collapses
// duplicate URLs.
func (c *PriceCleaner) Clean(raw []models.SoldListing) []models.ComparableListing {
	seen := make(map[string]struct{})
	result := make([]models.ComparableListing, 0, len(raw))

	for _, r := range raw {
		url := strings.TrimSpace(r.URL)
		if url == "" {
			c.logger.Warn("[cleaner] Dropping sold listing with empty URL: %s", r.Title)
			continue
		}
		if _, dup := seen[url]; dup {
			c.logger.Debug("[cleaner] Duplicate URL skipped: %s", url)
			continue
		}
		seen[url] = struct{}{}

		price := ParsePrice(r.RawPrice)
		if price <= 0 {
			c.logger.Debug("[cleaner] No price in %q for %s", r.RawPrice, url)
			continue
		}

		result = append(result, models.ComparableListing{
			Title: normaliseText(r.Title),
			Price: price,
			URL:   url,
		})
	}

	c.logger.Info("[cleaner] Cleaned %d → %d sold listings (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

// ParsePrice extracts a price from scraped text. A range is averaged.
// Examples:
//
//	"$12.50"           → 12.50
//	"$1,200.00"        → 1200
//	"$8.00 to $10.00"  → 9
func ParsePrice(raw string) float64 {
	cleaned := strings.ReplaceAll(raw, ",", "")
	matches := priceRegexp.FindAllString(cleaned, 2)
	if len(matches) == 0 {
		return 0
	}

	first, err := strconv.ParseFloat(matches[0], 64)
	if err != nil {
		return 0
	}
	if len(matches) == 2 && rangeRegexp.MatchString(cleaned) {
		second, err := strconv.ParseFloat(matches[1], 64)
		if err == nil {
			return round2((first + second) / 2)
		}
	}
	return first
}

// AveragePrice returns the mean comparable price, or nil when there are none.
func AveragePrice(comps []models.ComparableListing) *float64 {
	if len(comps) == 0 {
		return nil
	}
	var total float64
	for _, c := range comps {
		total += c.Price
	}
	avg := round2(total / float64(len(comps)))
	return &avg
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
