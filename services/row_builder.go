package services

import (
	"strconv"
	"strings"

	"bluray-lister/config"
	"bluray-lister/models"
	"bluray-lister/schema"
)

// Template column names the builder fills. Any other schema column is left empty.
const (
	ColCategory          = "*Category"
	ColTitle             = "*Title"
	ColConditionID       = "*ConditionID"
	ColMediaFormat       = "*C:Format"
	ColMovieTitle        = "*C:Movie/TV Title"
	ColDescription       = "*Description"
	ColListingFormat     = "*Format"
	ColDuration          = "*Duration"
	ColStartPrice        = "*StartPrice"
	ColQuantity          = "*Quantity"
	ColLocation          = "*Location"
	ColDispatchTimeMax   = "*DispatchTimeMax"
	ColReturnsAccepted   = "*ReturnsAcceptedOption"
	ColStudio            = "C:Studio"
	ColGenre             = "C:Genre"
	ColSubGenre          = "C:Sub-Genre"
	ColDirector          = "C:Director"
	ColActor             = "C:Actor"
	ColReleaseYear       = "C:Release Year"
	ColRating            = "C:Rating"
	ColRunTime           = "C:Run Time"
	ColRegionCode        = "C:Region Code"
	ColLanguage          = "C:Language"
	ColCaseType          = "C:Case Type"
	ColCountry           = "C:Country of Origin"
	ColPicURL            = "PicURL"
	ColGalleryType       = "GalleryType"
	ColBuyItNowPrice     = "BuyItNowPrice"
	ColBestOfferEnabled  = "BestOfferEnabled"
	ColBestOfferAccept   = "BestOfferAutoAcceptPrice"
	ColBestOfferMinimum  = "MinimumBestOfferPrice"
	ColShippingType      = "ShippingType"
	ColShippingService   = "ShippingService-1:Option"
	ColShippingCost      = "ShippingService-1:Cost"
	ColReturnsWithin     = "ReturnsWithinOption"
	ColRefundOption      = "RefundOption"
	ColReturnShippingPay = "ShippingCostPaidByOption"

	// ActionAdd instructs the bulk importer to create a new listing.
	ActionAdd = "Add"

	castInRow = 3
)

// RowBuilder turns a ListingInput into a schema-conformant ListingRow.
type RowBuilder struct {
	defaults config.ListingDefaults
}

// NewRowBuilder returns a RowBuilder using defaults for every value neither an
// override nor the metadata supplies. An empty category id is rejected.
func NewRowBuilder(defaults config.ListingDefaults) (*RowBuilder, error) {
	if strings.TrimSpace(defaults.CategoryID) == "" {
		return nil, &config.MissingValueError{
			Key:    "LISTING_CATEGORY_ID",
			Reason: "required to build listing rows",
		}
	}
	return &RowBuilder{defaults: defaults}, nil
}

// Defaults returns the defaults the builder was constructed with.
func (b *RowBuilder) Defaults() config.ListingDefaults { return b.defaults }

// Build produces one row keyed by every schema column. It never fails: data
// that is absent becomes an empty string.
//
// Precedence for every derivable field: override, then metadata, then defaults.
func (b *RowBuilder) Build(in models.ListingInput, s *schema.Schema) models.ListingRow {
	d := b.defaults
	o := in.Overrides
	meta := in.Metadata

	row := models.NewListingRow(s.Columns)
	row.SetAt(s.ActionIndex, ActionAdd)

	condition := firstNonEmpty(o.Condition, d.Condition)
	conditionID := o.ConditionID
	if conditionID == "" {
		if o.Condition != "" {
			conditionID = ConditionCode(o.Condition)
		} else {
			conditionID = firstNonEmpty(d.ConditionID, ConditionCode(d.Condition))
		}
	}
	region := firstNonEmpty(o.RegionCode, d.RegionCode)

	year := ""
	if meta != nil {
		year = meta.ReleaseYear
	}
	movieTitle := in.MovieTitle
	if movieTitle == "" && meta != nil {
		movieTitle = meta.Title
	}

	title := in.Title
	if title == "" {
		title = ListingTitle(movieTitle, year, condition, d.Format)
	}
	description := o.Description
	if description == "" {
		description = Description(meta, condition, d.Format, region, o.Notes)
	}
	quantity := d.Quantity
	if o.Quantity > 0 {
		quantity = o.Quantity
	}
	if quantity < 1 {
		quantity = 1
	}

	row.Set(ColCategory, d.CategoryID)
	row.Set(ColTitle, title)
	row.Set(ColConditionID, conditionID)
	row.Set(ColMediaFormat, d.Format)
	row.Set(ColMovieTitle, movieTitle)
	row.Set(ColDescription, description)
	row.Set(ColListingFormat, d.ListingFormat)
	row.Set(ColDuration, d.Duration)
	row.Set(ColStartPrice, in.Price)
	row.Set(ColQuantity, strconv.Itoa(quantity))
	row.Set(ColLocation, firstNonEmpty(o.Location, d.Location))
	row.Set(ColDispatchTimeMax, d.DispatchTimeMax)
	row.Set(ColReturnsAccepted, d.ReturnsAccepted)

	if meta != nil {
		row.Set(ColStudio, meta.Studio)
		row.Set(ColGenre, at(meta.Genres, 0))
		row.Set(ColSubGenre, at(meta.Genres, 1))
		row.Set(ColDirector, meta.Director)
		row.Set(ColActor, strings.Join(firstN(meta.Actors, castInRow), ", "))
		row.Set(ColReleaseYear, meta.ReleaseYear)
		row.Set(ColRating, meta.Rating)
		if meta.Runtime > 0 {
			row.Set(ColRunTime, strconv.Itoa(meta.Runtime))
		}
	}

	row.Set(ColRegionCode, region)
	row.Set(ColLanguage, d.Language)
	row.Set(ColCaseType, firstNonEmpty(o.CaseType, d.CaseType))
	row.Set(ColCountry, d.Country)

	if in.ImageURL != "" {
		row.Set(ColPicURL, in.ImageURL)
		row.Set(ColGalleryType, "Gallery")
	}

	row.Set(ColBuyItNowPrice, in.Price)
	if d.BestOfferEnabled {
		row.Set(ColBestOfferEnabled, "1")
		if base, err := strconv.ParseFloat(strings.TrimSpace(in.Price), 64); err == nil && base > 0 {
			accept, minimum := PriceTiers(base)
			row.Set(ColBestOfferAccept, FormatPrice(accept))
			row.Set(ColBestOfferMinimum, FormatPrice(minimum))
		}
	} else {
		row.Set(ColBestOfferEnabled, "0")
	}

	row.Set(ColShippingType, d.ShippingType)
	row.Set(ColShippingService, d.ShippingService)
	row.Set(ColShippingCost, d.ShippingCost)

	row.Set(ColReturnsWithin, d.ReturnsWithin)
	row.Set(ColRefundOption, d.RefundOption)
	row.Set(ColReturnShippingPay, d.ReturnShippingPaidBy)

	return row
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}
