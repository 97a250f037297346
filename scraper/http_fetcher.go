package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"bolig_scrooper/httputil"
)

const maxBodyBytes = 10 << 20

// HTTPFetcher loads server-rendered HTML without a browser. It cannot
// open the details modal, so pages it returns carry no modal rows.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNavigation, err)
	}
	req.Header.Set("User-Agent", httputil.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "da-DK,da;q=0.9,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(url, resp.StatusCode); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrNavigation, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrNavigation, url, err)
	}
	if err := checkContent(url, string(body)); err != nil {
		return nil, err
	}

	return &Page{
		URL:      url,
		FinalURL: resp.Request.URL.String(),
		HTML:     string(body),
	}, nil
}

func (f *HTTPFetcher) Alive(ctx context.Context) bool { return true }

func (f *HTTPFetcher) Restart() error {
	f.client.CloseIdleConnections()
	return nil
}

func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}
