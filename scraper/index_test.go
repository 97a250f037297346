package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bolig_scrooper/config"
	"bolig_scrooper/models"
)

type memResume struct {
	pages   map[string]int
	cleared bool
}

func (m *memResume) GetResumePage(siteID string) (int, error) { return m.pages[siteID], nil }

func (m *memResume) SetResumePage(siteID string, page int) error {
	m.pages[siteID] = page
	return nil
}

func (m *memResume) ClearResumePage(siteID string) error {
	m.cleared = true
	delete(m.pages, siteID)
	return nil
}

const testIndexURL = "https://www.boligsiden.dk/solgte/alle?registrationTypes=auction"

func indexSite(pages int) *config.SiteConfig {
	return &config.SiteConfig{
		ID:         "boligsiden",
		BaseURL:    "https://www.boligsiden.dk",
		IndexURL:   testIndexURL,
		IndexPages: pages,
	}
}

func mustPageURL(t *testing.T, k int) string {
	t.Helper()
	u, err := PageURL(testIndexURL, k)
	if err != nil {
		t.Fatalf("PageURL failed: %v", err)
	}
	return u
}

func TestPageURL(t *testing.T) {
	u := mustPageURL(t, 3)
	if !strings.Contains(u, "page=3") || !strings.Contains(u, "registrationTypes=auction") {
		t.Fatalf("unexpected url %s", u)
	}
}

func TestIndexScraper_Scrape(t *testing.T) {
	f := newFakeFetcher()
	html := string(loadFixture(t, "index_page.html"))
	f.pages[mustPageURL(t, 1)] = &Page{HTML: html}
	f.errs[mustPageURL(t, 2)] = errors.New("timeout")
	f.pages[mustPageURL(t, 3)] = &Page{HTML: html}
	f.pages[mustPageURL(t, 4)] = &Page{HTML: "<html><body></body></html>"}

	resume := &memResume{pages: map[string]int{}}
	got, err := NewIndexScraper(indexSite(6), f, resume, nil).Scrape(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 unique summaries, got %d", len(got))
	}
	if len(f.calls) != 4 {
		t.Fatalf("expected crawl to stop at the empty page, calls=%v", f.calls)
	}
	if !resume.cleared {
		t.Fatalf("expected resume page cleared")
	}
}

func TestIndexScraper_Resume(t *testing.T) {
	f := newFakeFetcher()
	f.pages[mustPageURL(t, 2)] = &Page{HTML: string(loadFixture(t, "index_page.html"))}

	resume := &memResume{pages: map[string]int{"boligsiden": 2}}
	seed := []models.PropertySummary{{PropertyID: "vejen-1-2600-glostrup-01590123", Sales: []models.SaleRecord{{}}}}

	got, err := NewIndexScraper(indexSite(2), f, resume, nil).Scrape(context.Background(), seed)
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}
	if len(f.calls) != 1 || f.calls[0] != mustPageURL(t, 2) {
		t.Fatalf("expected only page 2 fetched, calls=%v", f.calls)
	}
	if len(got) != 2 || got[0].PropertyID != seed[0].PropertyID {
		t.Fatalf("expected seed kept first and duplicates dropped, got %+v", got)
	}
}

func TestIndexScraper_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewIndexScraper(indexSite(2), newFakeFetcher(), nil, nil).Scrape(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
