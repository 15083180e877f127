package models

import "time"

// MovieMetadata is the metadata record returned by the movie lookup collaborator.
// JSON tags match the payload the process command prints for add --metadata-json.
type MovieMetadata struct {
	Title         string   `json:"title"`
	OriginalTitle string   `json:"original_title,omitempty"`
	ReleaseYear   string   `json:"release_year,omitempty"`
	Genres        []string `json:"genres"`
	Director      string   `json:"director,omitempty"`
	Actors        []string `json:"actors"`
	Studio        string   `json:"studio,omitempty"`
	Rating        string   `json:"rating,omitempty"`
	Runtime       int      `json:"runtime,omitempty"`
	Overview      string   `json:"overview,omitempty"`
	PosterURL     string   `json:"poster_url,omitempty"`
}

// ComparableListing is one sold listing observed during price discovery.
type ComparableListing struct {
	Title string
	Price float64
	URL   string
}

// PriceData is the price signal for a title. AveragePrice is nil when no
// comparable sales were found.
type PriceData struct {
	AveragePrice *float64
	ShippingCost float64
	Comparables  []ComparableListing
	Source       string
	FetchedAt    time.Time
}

// Overrides are optional caller-supplied values that win over anything derived
// from metadata or taken from the listing defaults.
type Overrides struct {
	Condition   string
	ConditionID string
	CaseType    string
	RegionCode  string
	Quantity    int
	Notes       string
	Description string
	Location    string
}

// ListingInput is everything a caller supplies for one listing.
type ListingInput struct {
	// Title is the display title; generated from MovieTitle when empty.
	Title      string
	MovieTitle string
	Price      string
	ImageURL   string

	Metadata  *MovieMetadata
	Overrides Overrides
}

// ListingSummary is the short view of one stored working-set row.
type ListingSummary struct {
	Row         int
	Title       string
	MovieTitle  string
	Price       string
	ConditionID string
}

// WorkingSetReport holds computed statistics over the stored working set.
type WorkingSetReport struct {
	TotalListings  int
	PricedListings int
	AveragePrice   float64
	MinPrice       float64
	MaxPrice       float64
	TotalValue     float64
	MostExpensive  *ListingSummary
	ByCondition    map[string]int
}

// ExportRecord describes one exported upload file.
type ExportRecord struct {
	Name       string
	Path       string
	ExportedAt time.Time
	ItemCount  int
	Listings   []ListingSummary
}

// SoldListing is one completed sale as scraped, before price cleaning.
type SoldListing struct {
	Title     string
	RawPrice  string
	URL       string
	ScrapedAt time.Time
}

// ImageFile is a photo waiting in the images folder.
type ImageFile struct {
	Name   string
	Path   string
	SizeKB float64
}
