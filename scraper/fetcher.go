package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"bolig_scrooper/extract"
	"bolig_scrooper/identity"
)

var (
	ErrNavigation = errors.New("navigation failed")
	ErrNotFound   = errors.New("page not found")
	// ErrBlocked is a bot-protection page served instead of content. It
	// wraps ErrNavigation so the item is retried.
	ErrBlocked = fmt.Errorf("%w: blocked by bot protection", ErrNavigation)
)

var blockPageTriggers = []string{
	"Request unsuccessful. Incapsula",
	"Incapsula incident ID",
	"_Incapsula_Resource",
	"Access Denied",
	"This request was blocked",
	"Attention Required! | Cloudflare",
}

// Page is one loaded property or index page.
type Page struct {
	URL         string
	FinalURL    string
	HTML        string
	ModalRows   []extract.ModalRow
	ModalOpened bool
}

// Fetcher loads a page by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// Restartable is a Fetcher backed by a process that can die and be
// brought back, like a browser.
type Restartable interface {
	Fetcher
	Alive(ctx context.Context) bool
	Restart() error
	Close() error
}

// IsTerminal reports whether retrying err cannot help.
func IsTerminal(err error) bool {
	return errors.Is(err, identity.ErrInvalidLink) || errors.Is(err, ErrNotFound)
}

// checkStatus maps an HTTP status to a fetch error. 404 and 410 are
// terminal; any other error status can be retried. A zero status means no
// response was seen and passes.
func checkStatus(url string, status int) error {
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return fmt.Errorf("%w: %s", ErrNotFound, url)
	case status >= http.StatusBadRequest:
		return fmt.Errorf("%w: %s: status %d", ErrNavigation, url, status)
	}
	return nil
}

// detectBlockPage returns the trigger text when html is a bot-protection
// page rather than a listing or property page.
func detectBlockPage(html string) string {
	if strings.Contains(html, "listingCard") || strings.Contains(html, "__NEXT_DATA__") {
		return ""
	}
	for _, t := range blockPageTriggers {
		if strings.Contains(html, t) {
			return t
		}
	}
	return ""
}

func checkContent(url, html string) error {
	if trigger := detectBlockPage(html); trigger != "" {
		return fmt.Errorf("%w: %s: %q", ErrBlocked, url, trigger)
	}
	return nil
}
