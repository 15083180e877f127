package services

import (
	"testing"

	"bluray-lister/models"
	"bluray-lister/utils"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"$12.50", 12.50},
		{"$1,200.00", 1200},
		{"US $7.99", 7.99},
		{"$8.00 to $11.00", 9.50},
		{"", 0},
		{"free", 0},
	}

	for _, tt := range tests {
		got := ParsePrice(tt.raw)
		if !near(got, tt.want) {
			t.Errorf("ParsePrice(%q) = %.2f; want %.2f", tt.raw, got, tt.want)
		}
	}
}

func TestPriceCleanerClean(t *testing.T) {
	c := NewPriceCleaner(utils.NewDiscardLogger())

	raw := []models.SoldListing{
		{Title: "  Heat   Blu-ray ", RawPrice: "$10.00", URL: "https://www.ebay.com/itm/1"},
		{Title: "No URL", RawPrice: "$9.00", URL: " "},
		{Title: "Heat again", RawPrice: "$11.00", URL: "https://www.ebay.com/itm/1"},
		{Title: "No price", RawPrice: "see description", URL: "https://www.ebay.com/itm/2"},
		{Title: "Heat SE", RawPrice: "$13.00", URL: "https://www.ebay.com/itm/3"},
	}
	got := c.Clean(raw)

	if len(got) != 2 {
		t.Fatalf("Clean() returned %d listings; want 2: %+v", len(got), got)
	}
	if got[0].Title != "Heat Blu-ray" || got[0].Price != 10 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].URL != "https://www.ebay.com/itm/3" {
		t.Errorf("second = %+v", got[1])
	}
}

func TestAveragePrice(t *testing.T) {
	if AveragePrice(nil) != nil {
		t.Error("AveragePrice(nil) should be nil")
	}
	avg := AveragePrice([]models.ComparableListing{{Price: 10}, {Price: 13}})
	if avg == nil || !near(*avg, 11.5) {
		t.Errorf("AveragePrice = %v; want 11.5", avg)
	}
}
