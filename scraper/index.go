package scraper

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"bolig_scrooper/config"
	"bolig_scrooper/extract"
	"bolig_scrooper/models"
)

// ResumeStore remembers the next index page to crawl per site.
type ResumeStore interface {
	GetResumePage(siteID string) (int, error)
	SetResumePage(siteID string, page int) error
	ClearResumePage(siteID string) error
}

// IndexScraper crawls the auction result pages and collects one summary
// per listing card.
type IndexScraper struct {
	site    *config.SiteConfig
	fetcher Fetcher
	resume  ResumeStore
	logFn   models.LogFunc
	delay   time.Duration
}

func NewIndexScraper(site *config.SiteConfig, fetcher Fetcher, resume ResumeStore, logFn models.LogFunc) *IndexScraper {
	if logFn == nil {
		logFn = models.NoOpLogger
	}
	return &IndexScraper{
		site:    site,
		fetcher: fetcher,
		resume:  resume,
		logFn:   logFn,
		delay:   time.Duration(site.RateLimitMS) * time.Millisecond,
	}
}

// PageURL returns the index URL for page k (1-based).
func PageURL(indexURL string, k int) (string, error) {
	u, err := url.Parse(indexURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(k))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Scrape reads up to site.IndexPages pages. A page that fails to load is
// skipped; an empty page ends the crawl. On cancellation the summaries
// collected so far are returned together with ctx.Err(). seed holds
// summaries from an earlier, interrupted crawl and is kept in front.
func (s *IndexScraper) Scrape(ctx context.Context, seed []models.PropertySummary) ([]models.PropertySummary, error) {
	start := 1
	if s.resume != nil {
		if p, err := s.resume.GetResumePage(s.site.ID); err == nil && p > 1 {
			log.Printf("Resuming %s index crawl at page %d", s.site.ID, p)
			start = p
		}
	}

	all := append([]models.PropertySummary(nil), seed...)
	seen := make(map[string]bool, len(seed))
	for _, sum := range seed {
		seen[sum.PropertyID] = true
	}

	for k := start; k <= s.site.IndexPages; k++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		pageURL, err := PageURL(s.site.IndexURL, k)
		if err != nil {
			return all, fmt.Errorf("index url: %w", err)
		}

		page, err := s.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			msg := fmt.Sprintf("Index page %d failed: %v", k, err)
			log.Print(msg)
			s.logFn(models.LogLevelWarn, s.site.ID, msg)
			continue
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
		if err != nil {
			log.Printf("Index page %d: parse error: %v", k, err)
			continue
		}

		summaries := extract.ParseIndex(doc, s.site.BaseURL)
		if len(summaries) == 0 {
			log.Printf("No listings on index page %d, stopping", k)
			break
		}

		added := 0
		for _, sum := range summaries {
			if seen[sum.PropertyID] {
				continue
			}
			seen[sum.PropertyID] = true
			all = append(all, sum)
			added++
		}
		log.Printf("Index page %d: %d listings (total: %d)", k, added, len(all))

		if s.resume != nil {
			s.resume.SetResumePage(s.site.ID, k+1)
		}

		if k < s.site.IndexPages && s.delay > 0 {
			if err := sleepCtx(ctx, s.delay); err != nil {
				return all, err
			}
		}
	}

	if s.resume != nil {
		s.resume.ClearResumePage(s.site.ID)
	}
	return all, nil
}
