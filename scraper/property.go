package scraper

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"bolig_scrooper/config"
	"bolig_scrooper/extract"
	"bolig_scrooper/identity"
	"bolig_scrooper/logging"
	"bolig_scrooper/models"
)

// PropertyScraper turns one input row into a PropertyRecord.
type PropertyScraper struct {
	site  *config.SiteConfig
	rules *extract.Rules
	logFn models.LogFunc
	now   func() time.Time
}

func NewPropertyScraper(site *config.SiteConfig, rules *extract.Rules, logFn models.LogFunc) *PropertyScraper {
	if logFn == nil {
		logFn = models.NoOpLogger
	}
	return &PropertyScraper{site: site, rules: rules, logFn: logFn, now: time.Now}
}

// Scrape fetches row's detail page through f and extracts it.
func (s *PropertyScraper) Scrape(ctx context.Context, f Fetcher, row models.ListingRow) (*models.PropertyRecord, error) {
	link, err := identity.NormalizeLink(row.Link, s.site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("property %s: %w", row.PropertyID, err)
	}

	page, err := f.Fetch(ctx, link)
	if err != nil {
		return nil, err
	}

	rec, err := s.Extract(page, row)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Extract runs every extractor over page and merges their output.
func (s *PropertyScraper) Extract(page *Page, row models.ListingRow) (*models.PropertyRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", page.URL, err)
	}

	id := row.PropertyID
	if id == "" {
		id = identity.PropertyIDFromURL(page.URL)
	}
	rec := models.NewPropertyRecord(id, page.URL, s.site.ID, s.now())

	modal := extract.ParseModalRows(page.ModalRows, s.rules.ModalLabels())
	for k, v := range extract.ExtractHeader(doc) {
		if _, ok := modal[k]; !ok {
			modal[k] = v
		}
	}

	listing := make(map[string]string)
	if addr := strings.TrimSpace(row.Raw["Address"]); addr != "" {
		listing[models.FieldAddress] = addr
	}

	stats := extract.Merge(rec, extract.Sources{
		Modal:      modal,
		Structural: extract.Structural(doc, s.rules),
		Regex:      extract.ExtractRegexDocument(doc, s.rules),
		Listing:    listing,
	}, s.rules)

	logging.Debugf("%s: modal=%d (rows %d) structural=%d regex=%d listing=%d address=%d",
		id, stats.Modal, len(page.ModalRows), stats.Structural, stats.Regex, stats.Listing, stats.Address)

	if missing := rec.Missing(models.RequiredFields); len(missing) > 0 {
		msg := fmt.Sprintf("Property %s missing required fields: %s", id, strings.Join(missing, ", "))
		log.Printf("Warning: %s", msg)
		s.logFn(models.LogLevelWarn, s.site.ID, msg)
	}

	return rec, nil
}

// PropertyWorker is a batch Worker with its own browser session.
type PropertyWorker struct {
	scraper *PropertyScraper
	session *Session
}

func NewPropertyWorker(scraper *PropertyScraper, fetcher Restartable) *PropertyWorker {
	return &PropertyWorker{scraper: scraper, session: NewSession(fetcher)}
}

func (w *PropertyWorker) Scrape(ctx context.Context, row models.ListingRow) (*models.PropertyRecord, error) {
	return w.scraper.Scrape(ctx, w.session, row)
}

func (w *PropertyWorker) Close() error {
	if n := w.session.Restarts(); n > 0 {
		log.Printf("Worker session restarted %d time(s)", n)
	}
	return w.session.Close()
}
