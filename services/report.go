package services

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"bluray-lister/models"
	"bluray-lister/utils"
)

// ReportService summarises the working set.
type ReportService struct {
	logger *utils.Logger
}

func NewReportService(logger *utils.Logger) *ReportService {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &ReportService{logger: logger}
}

func (s *ReportService) Generate(listings []models.ListingSummary) *models.WorkingSetReport {
	report := &models.WorkingSetReport{
		ByCondition: make(map[string]int),
	}
	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	var total float64
	for i, l := range listings {
		if l.ConditionID != "" {
			report.ByCondition[l.ConditionID]++
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(l.Price), 64)
		if err != nil || price <= 0 {
			s.logger.Debug("[report] Row %d has no usable price (%q)", l.Row, l.Price)
			continue
		}

		if report.PricedListings == 0 || price < report.MinPrice {
			report.MinPrice = price
		}
		if report.PricedListings == 0 || price > report.MaxPrice {
			report.MaxPrice = price
			report.MostExpensive = &listings[i]
		}
		report.PricedListings++
		total += price
	}

	if report.PricedListings > 0 {
		report.TotalValue = round2(total)
		report.AveragePrice = round2(total / float64(report.PricedListings))
		report.MinPrice = round2(report.MinPrice)
		report.MaxPrice = round2(report.MaxPrice)
	}
	return report
}

// conditionLabel names a condition id, falling back to the id itself.
func conditionLabel(id string) string {
	for label, code := range conditionCodes {
		if code == id {
			return label
		}
	}
	return id
}

func (s *ReportService) Print(w io.Writer, r *models.WorkingSetReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	banner := color.New(color.FgMagenta, color.Bold)
	heading := color.New(color.FgYellow, color.Bold)
	value := color.New(color.Bold)
	money := color.New(color.FgGreen, color.Bold)

	fmt.Fprintln(w)
	banner.Fprintln(w, sep)
	banner.Fprintln(w, "  WORKING SET REPORT")
	banner.Fprintln(w, sep)
	fmt.Fprintln(w)

	heading.Fprintln(w, "  Overview")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Listings        : %s\n", value.Sprint(r.TotalListings))
	fmt.Fprintf(w, "  Priced listings : %s\n", value.Sprint(r.PricedListings))
	fmt.Fprintln(w)

	heading.Fprintln(w, "  Price Statistics")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PricedListings > 0 {
		fmt.Fprintf(w, "  Average price : %s\n", money.Sprintf("$%.2f", r.AveragePrice))
		fmt.Fprintf(w, "  Minimum price : %s\n", money.Sprintf("$%.2f", r.MinPrice))
		fmt.Fprintf(w, "  Maximum price : %s\n", money.Sprintf("$%.2f", r.MaxPrice))
		fmt.Fprintf(w, "  Total value   : %s\n", money.Sprintf("$%.2f", r.TotalValue))
	} else {
		fmt.Fprintln(w, "  No price data available")
	}
	fmt.Fprintln(w)

	if r.MostExpensive != nil {
		heading.Fprintln(w, "  Most Expensive Listing")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  #%d %s\n", r.MostExpensive.Row, truncate(r.MostExpensive.Title, 50))
		fmt.Fprintf(w, "  Price : %s\n", color.New(color.FgRed, color.Bold).Sprintf("$%s", r.MostExpensive.Price))
		fmt.Fprintln(w)
	}

	heading.Fprintln(w, "  Listings by Condition")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ByCondition) == 0 {
		fmt.Fprintln(w, "  No condition data")
	} else {
		type condCount struct {
			id    string
			count int
		}
		var conds []condCount
		for id, cnt := range r.ByCondition {
			conds = append(conds, condCount{id, cnt})
		}
		sort.Slice(conds, func(i, j int) bool {
			if conds[i].count != conds[j].count {
				return conds[i].count > conds[j].count
			}
			return conds[i].id < conds[j].id
		})
		for _, cc := range conds {
			bar := strings.Repeat("█", cc.count)
			label := fmt.Sprintf("%s (%s)", conditionLabel(cc.id), cc.id)
			fmt.Fprintf(w, "  %-22s %s (%d)\n", truncate(label, 22), bar, cc.count)
		}
	}

	fmt.Fprintln(w)
	banner.Fprintln(w, sep)
	fmt.Fprintln(w)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
