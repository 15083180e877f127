package services

import (
	"html"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"bluray-lister/models"
)

const (
	// DefaultMargin is added on top of the market average for a suggested price.
	DefaultMargin = 0.15
	// FallbackPrice is suggested when no market price is known.
	FallbackPrice = 12.99
	// UsedConditionCode is returned for condition labels not in the table.
	UsedConditionCode = "3000"

	synopsisBudget = 300
	castInDesc     = 5
	autoAcceptRate = 0.90
	minimumRate    = 0.75
)

var conditionCodes = map[string]string{
	"New":        "1000",
	"Like New":   "1500",
	"Very Good":  "4000",
	"Good":       "5000",
	"Acceptable": "6000",
	"Used":       "3000",
}

// ConditionCode maps a condition label to the marketplace condition id.
func ConditionCode(label string) string {
	if code, ok := conditionCodes[label]; ok {
		return code
	}
	return UsedConditionCode
}

// ConditionLabels returns the known condition labels in ascending code order.
func ConditionLabels() []string {
	return []string{"New", "Like New", "Used", "Very Good", "Good", "Acceptable"}
}

// ListingTitle builds "{title} ({format}, {year}) - {condition}", dropping the
// year clause when it is unknown.
func ListingTitle(movieTitle, year, condition, format string) string {
	if year != "" {
		return movieTitle + " (" + format + ", " + year + ") - " + condition
	}
	return movieTitle + " (" + format + ") - " + condition
}

// Description renders the HTML listing description. Only clauses whose source
// value is present are emitted.
func Description(meta *models.MovieMetadata, condition, format, region, notes string) string {
	var b strings.Builder
	b.WriteString("<div style='font-family: Arial, sans-serif;'>")

	if meta != nil {
		if meta.Title != "" {
			b.WriteString("<h3>" + html.EscapeString(meta.Title) + "</h3>")
		}

		if meta.Overview != "" {
			b.WriteString(para("Plot", truncateRunes(meta.Overview, synopsisBudget)))
		}
		if meta.Director != "" {
			b.WriteString(para("Director", meta.Director))
		}
		if len(meta.Actors) > 0 {
			b.WriteString(para("Cast", strings.Join(firstN(meta.Actors, castInDesc), ", ")))
		}
		if len(meta.Genres) > 0 {
			b.WriteString(para("Genre", strings.Join(meta.Genres, ", ")))
		}
		if meta.Runtime > 0 {
			b.WriteString(para("Runtime", strconv.Itoa(meta.Runtime)+" minutes"))
		}
	}

	if condition != "" {
		b.WriteString(para("Condition", condition))
	}
	if format != "" {
		b.WriteString(para("Format", format))
	}
	if region != "" {
		b.WriteString(para("Region", "Region "+region))
	}
	if notes != "" {
		b.WriteString(para("Notes", notes))
	}

	b.WriteString("<p>Fast shipping with tracking. Returns accepted within 30 days.</p>")
	b.WriteString("</div>")
	return b.String()
}

func para(label, value string) string {
	return "<p><strong>" + label + ":</strong> " + html.EscapeString(value) + "</p>"
}

// truncateRunes cuts s to at most n runes, appending "..." when it was cut.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// PriceTiers returns the best-offer auto-accept (90%) and minimum (75%)
// thresholds for base, each rounded to cents.
func PriceTiers(base float64) (autoAccept, minimum float64) {
	return round2(base * autoAcceptRate), round2(base * minimumRate)
}

// SuggestedPrice adds margin to the market average and snaps the result to a
// retail-looking figure. Below 10 it subtracts a cent and rounds; otherwise it
// subtracts 0.51, rounds, and adds 0.49 back.
func SuggestedPrice(average *float64, margin float64) float64 {
	if average == nil || *average <= 0 {
		return FallbackPrice
	}
	suggested := *average * (1 + margin)
	if suggested < 10 {
		return round2(suggested - 0.01)
	}
	return round2(suggested-0.51) + 0.49
}

// FormatPrice renders a price with exactly two decimals.
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// ReleaseYear extracts the year from an ISO date such as "2010-07-16".
func ReleaseYear(date string) string {
	date = strings.TrimSpace(date)
	if date == "" {
		return ""
	}
	year, _, _ := strings.Cut(date, "-")
	return year
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
