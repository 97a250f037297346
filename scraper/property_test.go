package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"bolig_scrooper/config"
	"bolig_scrooper/extract"
	"bolig_scrooper/identity"
	"bolig_scrooper/models"
)

var testSite = &config.SiteConfig{ID: "boligsiden", BaseURL: "https://www.boligsiden.dk"}

func newTestScraper(logFn models.LogFunc) *PropertyScraper {
	s := NewPropertyScraper(testSite, extract.DefaultRules(), logFn)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestPropertyScraper_Scrape(t *testing.T) {
	link := "https://www.boligsiden.dk/adresse/soendre-alle-12-2600-glostrup-01234567"
	f := newFakeFetcher()
	f.pages[link] = &Page{
		URL:  link,
		HTML: string(loadFixture(t, "property_page.html")),
		ModalRows: []extract.ModalRow{
			{Label: "Varmeinstallation", Value: "Fjernvarme", Text: "Varmeinstallation Fjernvarme"},
			{Text: "Tagtype: Tegl"},
			{Text: "Luk"},
		},
		ModalOpened: true,
	}

	row := models.ListingRow{
		Link: "/adresse/soendre-alle-12-2600-glostrup-01234567",
		Raw:  map[string]string{"Address": "Søndre Allé 12, 2600 Glostrup"},
	}
	rec, err := newTestScraper(nil).Scrape(context.Background(), f, row)
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}

	if rec.ID != "soendre-alle-12-2600-glostrup-01234567" {
		t.Fatalf("expected id from URL, got %s", rec.ID)
	}
	checks := map[string]string{
		models.FieldURL:         link,
		models.FieldSourceSite:  "boligsiden",
		models.FieldScrapeDate:  "2024-05-01",
		models.FieldHeatingType: "Fjernvarme",
		models.FieldRoofType:    "Tegl",
		models.FieldLivingArea:  "145",
		models.FieldRooms:       "5",
		models.FieldPrice:       "2495000",
		models.FieldBuiltYear:   "1972",
		models.FieldEnergyLabel: "C",
		models.FieldPostalCode:  "2600",
		models.FieldCity:        "Glostrup",
	}
	for k, v := range checks {
		if rec.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, rec.Get(k), v)
		}
	}
}

func TestPropertyScraper_WarnsOnMissingRequired(t *testing.T) {
	link := "https://www.boligsiden.dk/adresse/tom-01"
	f := newFakeFetcher()
	f.pages[link] = &Page{URL: link, HTML: "<html><body><p>Ingen data</p></body></html>"}

	var warnings []string
	logFn := func(level models.LogLevel, source, message string) {
		if level == models.LogLevelWarn {
			warnings = append(warnings, message)
		}
	}

	rec, err := newTestScraper(logFn).Scrape(context.Background(), f, models.ListingRow{PropertyID: "tom-01", Link: link})
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}
	if rec.Has(models.FieldLivingArea) {
		t.Fatalf("expected no living area, got %s", rec.Get(models.FieldLivingArea))
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
}

func TestPropertyScraper_InvalidLink(t *testing.T) {
	f := newFakeFetcher()
	_, err := newTestScraper(nil).Scrape(context.Background(), f, models.ListingRow{PropertyID: "x", Link: "nan"})
	if !errors.Is(err, identity.ErrInvalidLink) || !IsTerminal(err) {
		t.Fatalf("expected terminal invalid link error, got %v", err)
	}
	if len(f.calls) != 0 {
		t.Fatalf("invalid link must not be fetched")
	}
}

func TestPropertyWorker_UsesSession(t *testing.T) {
	link := "https://www.boligsiden.dk/adresse/a-1"
	f := newFakeFetcher()
	f.errs[link] = errors.New("crash")

	w := NewPropertyWorker(newTestScraper(nil), f)
	if _, err := w.Scrape(context.Background(), models.ListingRow{PropertyID: "a-1", Link: link}); err == nil {
		t.Fatalf("expected fetch error")
	}
	f.alive = false
	delete(f.errs, link)
	f.pages[link] = &Page{URL: link, HTML: "<html></html>"}
	if _, err := w.Scrape(context.Background(), models.ListingRow{PropertyID: "a-1", Link: link}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.restarts != 1 {
		t.Fatalf("expected a restart, got %d", f.restarts)
	}
	if err := w.Close(); err != nil || !f.closed {
		t.Fatalf("expected fetcher closed")
	}
}
