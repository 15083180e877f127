package services

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"bluray-lister/config"
	"bluray-lister/models"
	"bluray-lister/schema"
)

func testSchema() *schema.Schema {
	return &schema.Schema{
		Columns: []string{
			"Info", "Template=fx_category_template_EBAY_US", "*Action(SiteID=US|Currency=USD)",
			ColCategory, ColTitle, ColConditionID, ColMediaFormat, ColMovieTitle, ColDescription,
			ColListingFormat, ColDuration, ColStartPrice, ColQuantity, ColLocation,
			ColDispatchTimeMax, ColReturnsAccepted, ColStudio, ColGenre, ColSubGenre,
			ColDirector, ColActor, ColReleaseYear, ColRating, ColRunTime, ColRegionCode,
			ColLanguage, ColCaseType, ColCountry, ColPicURL, ColGalleryType, ColBuyItNowPrice,
			ColBestOfferEnabled, ColBestOfferAccept, ColBestOfferMinimum, ColShippingType,
			ColShippingService, ColShippingCost, ColReturnsWithin, ColRefundOption,
			ColReturnShippingPay, "C:Unknown Vendor Column", "UPC",
		},
		ActionIndex: 2,
	}
}

func testDefaults() config.ListingDefaults {
	d := config.DefaultListingDefaults()
	d.CategoryID = "617"
	return d
}

func newTestBuilder(t *testing.T, d config.ListingDefaults) *RowBuilder {
	t.Helper()
	b, err := NewRowBuilder(d)
	if err != nil {
		t.Fatalf("NewRowBuilder: %v", err)
	}
	return b
}

func mustGet(t *testing.T, row models.ListingRow, col string) string {
	t.Helper()
	v, ok := row.Get(col)
	if !ok {
		t.Fatalf("column %q missing from row", col)
	}
	return v
}

func TestNewRowBuilderRequiresCategory(t *testing.T) {
	_, err := NewRowBuilder(config.DefaultListingDefaults())
	var missing *config.MissingValueError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingValueError, got %v", err)
	}
}

func TestBuildKeysMatchSchemaRegardlessOfInput(t *testing.T) {
	s := testSchema()
	b := newTestBuilder(t, testDefaults())

	inputs := []models.ListingInput{
		{MovieTitle: "Heat", Price: "9.99", ImageURL: "https://img/1.jpg"},
		{MovieTitle: "Inception", Price: "14.49", ImageURL: "https://img/2.jpg", Metadata: sampleMetadata()},
		{Title: "Custom", MovieTitle: "Alien", Price: "20.00", Overrides: models.Overrides{Condition: "Good", Quantity: 3, Notes: "n"}},
		{},
	}
	for i, in := range inputs {
		row := b.Build(in, s)
		if !reflect.DeepEqual(row.Columns, s.Columns) {
			t.Errorf("input %d: columns differ from schema", i)
		}
		if len(row.Values) != len(s.Columns) {
			t.Errorf("input %d: got %d values, want %d", i, len(row.Values), len(s.Columns))
		}
		if row.Values[2] != ActionAdd {
			t.Errorf("input %d: action column = %q, want %q", i, row.Values[2], ActionAdd)
		}
	}
}

func TestBuildFromMetadataAndDefaults(t *testing.T) {
	b := newTestBuilder(t, testDefaults())
	row := b.Build(models.ListingInput{
		MovieTitle: "Inception",
		Price:      "14.49",
		ImageURL:   "https://bucket.s3.us-east-1.amazonaws.com/bluray-images/x.jpg",
		Metadata:   sampleMetadata(),
	}, testSchema())

	want := map[string]string{
		ColCategory:          "617",
		ColTitle:             "Inception (Blu-ray, 2010) - Very Good",
		ColConditionID:       "4000",
		ColMediaFormat:       "Blu-ray",
		ColMovieTitle:        "Inception",
		ColListingFormat:     "FixedPriceItem",
		ColDuration:          "GTC",
		ColStartPrice:        "14.49",
		ColQuantity:          "1",
		ColLocation:          "Los Angeles, CA",
		ColDispatchTimeMax:   "2",
		ColReturnsAccepted:   "ReturnsAccepted",
		ColStudio:            "Legendary Pictures",
		ColGenre:             "Action",
		ColSubGenre:          "Science Fiction",
		ColDirector:          "Christopher Nolan",
		ColActor:             "Leonardo DiCaprio, Joseph Gordon-Levitt, Elliot Page",
		ColReleaseYear:       "2010",
		ColRating:            "PG-13",
		ColRunTime:           "148",
		ColRegionCode:        "A",
		ColLanguage:          "English",
		ColCaseType:          "Standard Blu-ray Case",
		ColCountry:           "United States",
		ColPicURL:            "https://bucket.s3.us-east-1.amazonaws.com/bluray-images/x.jpg",
		ColGalleryType:       "Gallery",
		ColBuyItNowPrice:     "14.49",
		ColBestOfferEnabled:  "0",
		ColBestOfferAccept:   "",
		ColBestOfferMinimum:  "",
		ColShippingType:      "Flat",
		ColShippingService:   "USPSMedia",
		ColShippingCost:      "4.00",
		ColReturnsWithin:     "Days_30",
		ColRefundOption:      "MoneyBack",
		ColReturnShippingPay: "Buyer",
		"C:Unknown Vendor Column": "",
		"UPC":                     "",
		"Info":                    "",
	}
	for col, v := range want {
		if got := mustGet(t, row, col); got != v {
			t.Errorf("%s: got %q, want %q", col, got, v)
		}
	}
	desc := mustGet(t, row, ColDescription)
	if !strings.HasPrefix(desc, "<div") || !strings.Contains(desc, "<h3>Inception</h3>") {
		t.Errorf("description not generated from metadata: %s", desc)
	}
}

func TestBuildOverridesWin(t *testing.T) {
	b := newTestBuilder(t, testDefaults())
	row := b.Build(models.ListingInput{
		Title:      "Inception Steelbook RARE",
		MovieTitle: "Inception",
		Price:      "30.00",
		Metadata:   sampleMetadata(),
		Overrides: models.Overrides{
			Condition:   "Like New",
			CaseType:    "Steelbook",
			RegionCode:  "B",
			Quantity:    2,
			Description: "<p>custom</p>",
			Location:    "Portland, OR",
		},
	}, testSchema())

	checks := map[string]string{
		ColTitle:       "Inception Steelbook RARE",
		ColConditionID: "1500",
		ColCaseType:    "Steelbook",
		ColRegionCode:  "B",
		ColQuantity:    "2",
		ColDescription: "<p>custom</p>",
		ColLocation:    "Portland, OR",
	}
	for col, v := range checks {
		if got := mustGet(t, row, col); got != v {
			t.Errorf("%s: got %q, want %q", col, got, v)
		}
	}
}

func TestBuildConditionPrecedence(t *testing.T) {
	b := newTestBuilder(t, testDefaults())
	s := testSchema()

	explicitID := b.Build(models.ListingInput{MovieTitle: "X", Overrides: models.Overrides{Condition: "Good", ConditionID: "2750"}}, s)
	if got := mustGet(t, explicitID, ColConditionID); got != "2750" {
		t.Errorf("explicit condition id: got %q", got)
	}
	unknownLabel := b.Build(models.ListingInput{MovieTitle: "X", Overrides: models.Overrides{Condition: "Scratched"}}, s)
	if got := mustGet(t, unknownLabel, ColConditionID); got != "3000" {
		t.Errorf("unknown condition label: got %q, want 3000", got)
	}
	if got := mustGet(t, unknownLabel, ColTitle); got != "X (Blu-ray) - Scratched" {
		t.Errorf("title: got %q", got)
	}
}

func TestBuildMovieTitleFallsBackToMetadata(t *testing.T) {
	b := newTestBuilder(t, testDefaults())
	row := b.Build(models.ListingInput{Price: "5.00", Metadata: sampleMetadata()}, testSchema())
	if got := mustGet(t, row, ColMovieTitle); got != "Inception" {
		t.Errorf("movie title: got %q", got)
	}
}

func TestBuildBestOfferTiers(t *testing.T) {
	d := testDefaults()
	d.BestOfferEnabled = true
	b := newTestBuilder(t, d)

	row := b.Build(models.ListingInput{MovieTitle: "Heat", Price: "12.99"}, testSchema())
	if got := mustGet(t, row, ColBestOfferEnabled); got != "1" {
		t.Errorf("BestOfferEnabled: got %q", got)
	}
	if got := mustGet(t, row, ColBestOfferAccept); got != "11.69" {
		t.Errorf("auto accept: got %q", got)
	}
	if got := mustGet(t, row, ColBestOfferMinimum); got != "9.74" {
		t.Errorf("minimum: got %q", got)
	}

	bad := b.Build(models.ListingInput{MovieTitle: "Heat", Price: "call me"}, testSchema())
	if got := mustGet(t, bad, ColBestOfferAccept); got != "" {
		t.Errorf("unparseable price should leave tiers empty, got %q", got)
	}
}

func TestBuildIgnoresColumnsMissingFromSchema(t *testing.T) {
	s := &schema.Schema{Columns: []string{"Info", "Version", "*Action", ColTitle}, ActionIndex: 2}
	b := newTestBuilder(t, testDefaults())

	row := b.Build(models.ListingInput{MovieTitle: "Heat", Price: "9.99", Metadata: sampleMetadata()}, s)
	if len(row.Values) != 4 {
		t.Fatalf("got %d values, want 4", len(row.Values))
	}
	if row.Values[3] != "Heat (Blu-ray, 2010) - Very Good" {
		t.Errorf("title: got %q", row.Values[3])
	}
}
