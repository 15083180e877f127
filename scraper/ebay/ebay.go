package ebay

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"bluray-lister/config"
	"bluray-lister/models"
	"bluray-lister/utils"
)

const (
	searchURL  = "https://www.ebay.com/sch/i.html"
	Source     = "ebay"
	maxResults = 40
)

// Scraper collects sold Blu-ray listings from eBay search results. Pages are
// rendered with a headless browser and parsed with goquery.
type Scraper struct {
	cfg    *config.Config
	logger *utils.Logger
	retry  *utils.RetryConfig

	// render returns the HTML of a fully loaded page.
	render func(ctx context.Context, pageURL string) (string, error)
}

// New creates a ready-to-use eBay Scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	s := &Scraper{
		cfg:    cfg,
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
	s.render = s.renderPage
	return s
}

// SearchURL builds the completed-and-sold search for a title in a condition.
func SearchURL(title, condition string) string {
	q := url.Values{}
	q.Set("_nkw", strings.TrimSpace(strings.Join([]string{title, "blu-ray", condition}, " ")))
	q.Set("LH_Sold", "1")
	q.Set("LH_Complete", "1")
	q.Set("_ipg", "60")
	return searchURL + "?" + q.Encode()
}

// SoldListings returns de-duplicated sold listings for title and condition.
func (s *Scraper) SoldListings(ctx context.Context, title, condition string) ([]models.SoldListing, error) {
	pageURL := SearchURL(title, condition)
	s.logger.Info("[ebay] Searching sold listings: %s", pageURL)

	var html string
	err := s.retry.DoContext(ctx, "ebay-sold-search", func() error {
		h, err := s.render(ctx, pageURL)
		if err != nil {
			return err
		}
		html = h
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ebay: %w", err)
	}

	parsed, err := ParseSoldListings([]byte(html))
	if err != nil {
		return nil, fmt.Errorf("ebay: %w", err)
	}

	seen := utils.NewURLSet()
	out := make([]models.SoldListing, 0, len(parsed))
	for _, l := range parsed {
		if !seen.Add(l.URL) {
			s.logger.Debug("[ebay] Skipping duplicate: %s", l.URL)
			continue
		}
		out = append(out, l)
		if len(out) == maxResults {
			break
		}
	}

	s.logger.Info("[ebay] Found %d sold listings for %q", len(out), title)
	return out, nil
}

// ParseSoldListings extracts item cards from a rendered search results page.
// Both the classic "s-item" and the newer "s-card" layouts are recognised.
func ParseSoldListings(html []byte) ([]models.SoldListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	now := time.Now()
	var out []models.SoldListing
	doc.Find("li.s-item, li.s-card").Each(func(_ int, card *goquery.Selection) {
		title := cleanTitle(card.Find(".s-item__title, .s-card__title").First().Text())
		if title == "" || strings.EqualFold(title, "Shop on eBay") {
			return
		}

		href, _ := card.Find("a.s-item__link, a.su-link, a[href*='/itm/']").First().Attr("href")
		link := canonicalItemURL(href)
		if link == "" {
			return
		}

		out = append(out, models.SoldListing{
			Title:     title,
			RawPrice:  strings.TrimSpace(card.Find(".s-item__price, .s-card__price").First().Text()),
			URL:       link,
			ScrapedAt: now,
		})
	})
	return out, nil
}

func cleanTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimPrefix(s, "New Listing")
	s = strings.TrimSuffix(s, "Opens in a new window or tab")
	return strings.TrimSpace(s)
}

// canonicalItemURL drops tracking parameters so one item maps to one URL.
func canonicalItemURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// renderPage loads pageURL in headless Chrome and returns the document HTML.
func (s *Scraper) renderPage(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if bin := findChromeBinary(s.cfg.ChromeBin); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, 60*time.Second)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(3*time.Second),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp render: %w", err)
	}
	return html, nil
}

// findChromeBinary locates a Chrome/Chromium binary, preferring configured.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
