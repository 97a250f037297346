package scraper

import (
	"context"
	"errors"
	"testing"
)

func TestSession_RestartsAfterFailedProbe(t *testing.T) {
	f := newFakeFetcher()
	f.errs["https://x/a"] = errors.New("target closed")
	f.pages["https://x/b"] = &Page{URL: "https://x/b"}
	s := NewSession(f)
	ctx := context.Background()

	if _, err := s.Fetch(ctx, "https://x/a"); err == nil {
		t.Fatalf("expected error")
	}
	if s.State() != SessionSuspect {
		t.Fatalf("expected suspect, got %s", s.State())
	}

	f.alive = false
	if _, err := s.Fetch(ctx, "https://x/b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.restarts != 1 || s.Restarts() != 1 {
		t.Fatalf("expected one restart, got %d", f.restarts)
	}
	if s.State() != SessionHealthy {
		t.Fatalf("expected healthy, got %s", s.State())
	}
}

func TestSession_NoRestartWhenProbePasses(t *testing.T) {
	f := newFakeFetcher()
	f.errs["https://x/a"] = errors.New("timeout")
	f.pages["https://x/b"] = &Page{}
	s := NewSession(f)

	s.Fetch(context.Background(), "https://x/a")
	if _, err := s.Fetch(context.Background(), "https://x/b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.restarts != 0 {
		t.Fatalf("expected no restart, got %d", f.restarts)
	}
}

func TestSession_RestartFailureStaysSuspect(t *testing.T) {
	f := newFakeFetcher()
	f.errs["https://x/a"] = errors.New("crash")
	f.restartErr = errors.New("no browser")
	s := NewSession(f)

	s.Fetch(context.Background(), "https://x/a")
	f.alive = false
	if _, err := s.Fetch(context.Background(), "https://x/b"); err == nil {
		t.Fatalf("expected restart error")
	}
	if s.State() != SessionSuspect {
		t.Fatalf("expected suspect, got %s", s.State())
	}
	if len(f.calls) != 1 {
		t.Fatalf("fetch should not run after failed restart, calls=%v", f.calls)
	}
}
