package scraper

import (
	"context"
	"fmt"
	"log"
	"sync"
)

type SessionState int

const (
	SessionHealthy SessionState = iota
	SessionSuspect
	SessionRestarting
)

func (s SessionState) String() string {
	switch s {
	case SessionSuspect:
		return "suspect"
	case SessionRestarting:
		return "restarting"
	default:
		return "healthy"
	}
}

// Session guards a Restartable. A failed fetch marks it suspect; the next
// fetch probes liveness first and restarts the backend if the probe fails.
type Session struct {
	mu       sync.Mutex
	fetcher  Restartable
	state    SessionState
	restarts int
}

func NewSession(f Restartable) *Session {
	return &Session{fetcher: f}
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

func (s *Session) Fetch(ctx context.Context, url string) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SessionSuspect && !s.fetcher.Alive(ctx) {
		log.Printf("Browser session not responding, restarting")
		s.state = SessionRestarting
		if err := s.fetcher.Restart(); err != nil {
			s.state = SessionSuspect
			return nil, fmt.Errorf("restart session: %w", err)
		}
		s.restarts++
	}
	s.state = SessionHealthy

	page, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		s.state = SessionSuspect
		return nil, err
	}
	return page, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetcher.Close()
}
