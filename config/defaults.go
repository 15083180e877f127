package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ListingDefaults are the values used for every listing field that neither an
// override nor the movie metadata supplies.
type ListingDefaults struct {
	Condition   string `yaml:"condition"`
	ConditionID string `yaml:"condition_id"`
	Location    string `yaml:"location"`
	RegionCode  string `yaml:"region_code"`
	Language    string `yaml:"language"`
	CaseType    string `yaml:"case_type"`
	Format      string `yaml:"format"`
	Country     string `yaml:"country_of_origin"`

	ListingFormat    string `yaml:"listing_format"`
	Duration         string `yaml:"duration"`
	BestOfferEnabled bool   `yaml:"best_offer_enabled"`
	Quantity         int    `yaml:"quantity"`

	ShippingType    string `yaml:"shipping_type"`
	ShippingService string `yaml:"shipping_service"`
	ShippingCost    string `yaml:"shipping_cost"`
	DispatchTimeMax string `yaml:"dispatch_time_max"`

	ReturnsAccepted      string `yaml:"returns_accepted"`
	ReturnsWithin        string `yaml:"returns_within"`
	RefundOption         string `yaml:"refund_option"`
	ReturnShippingPaidBy string `yaml:"return_shipping_paid_by"`

	// CategoryID has no built-in value; it must come from the defaults file or
	// LISTING_CATEGORY_ID.
	CategoryID string `yaml:"category_id"`
}

// DefaultListingDefaults returns the built-in listing defaults.
func DefaultListingDefaults() ListingDefaults {
	return ListingDefaults{
		Condition:   "Very Good",
		ConditionID: "4000",
		Location:    "Los Angeles, CA",
		RegionCode:  "A",
		Language:    "English",
		CaseType:    "Standard Blu-ray Case",
		Format:      "Blu-ray",
		Country:     "United States",

		ListingFormat:    "FixedPriceItem",
		Duration:         "GTC",
		BestOfferEnabled: false,
		Quantity:         1,

		ShippingType:    "Flat",
		ShippingService: "USPSMedia",
		ShippingCost:    "4.00",
		DispatchTimeMax: "2",

		ReturnsAccepted:      "ReturnsAccepted",
		ReturnsWithin:        "Days_30",
		RefundOption:         "MoneyBack",
		ReturnShippingPaidBy: "Buyer",
	}
}

// LoadListingDefaults overlays the YAML file at path on base. Keys missing
// from the file keep their base value.
func LoadListingDefaults(path string, base ListingDefaults) (ListingDefaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("config: read listing defaults %q: %w", path, err)
	}
	out := base
	if err := yaml.Unmarshal(data, &out); err != nil {
		return base, fmt.Errorf("config: parse listing defaults %q: %w", path, err)
	}
	return out, nil
}
