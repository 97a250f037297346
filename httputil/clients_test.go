package httputil

import (
	"net/http"
	"testing"
	"time"
)

func TestNewScrapingClient_Proxy(t *testing.T) {
	c := NewScrapingClient("http://proxy.local:8080", 0)
	tr := c.Transport.(*http.Transport)
	if tr.Proxy == nil {
		t.Fatalf("expected proxy to be configured")
	}
	req, _ := http.NewRequest("GET", "https://www.boligsiden.dk", nil)
	u, err := tr.Proxy(req)
	if err != nil || u.Host != "proxy.local:8080" {
		t.Fatalf("unexpected proxy %v, %v", u, err)
	}
	if c.Timeout != 30*time.Second {
		t.Fatalf("expected default timeout, got %v", c.Timeout)
	}
}

func TestNewScrapingClient_NoProxy(t *testing.T) {
	c := NewScrapingClient("", 10*time.Second)
	if c.Transport.(*http.Transport).Proxy != nil {
		t.Fatalf("expected no proxy")
	}
	if c.Timeout != 10*time.Second {
		t.Fatalf("unexpected timeout %v", c.Timeout)
	}
}
