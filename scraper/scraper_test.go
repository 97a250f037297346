package scraper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

// fakeFetcher serves canned pages by URL and counts calls.
type fakeFetcher struct {
	mu         sync.Mutex
	pages      map[string]*Page
	errs       map[string]error
	calls      []string
	alive      bool
	restarts   int
	restartErr error
	closed     bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]*Page{}, errs: map[string]error{}, alive: true}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if p, ok := f.pages[url]; ok {
		return p, nil
	}
	return nil, errors.New("no such page")
}

func (f *fakeFetcher) Alive(ctx context.Context) bool { return f.alive }

func (f *fakeFetcher) Restart() error {
	if f.restartErr != nil {
		return f.restartErr
	}
	f.restarts++
	f.alive = true
	return nil
}

func (f *fakeFetcher) Close() error {
	f.closed = true
	return nil
}
