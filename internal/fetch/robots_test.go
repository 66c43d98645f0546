package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRobotsChecker_CanFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private\nCrawl-delay: 2\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewRobotsChecker(NewClient(Options{Timeout: 5 * time.Second}), "Promessa/0.1 (+https://example.com)")

	allowed, delay, err := checker.CanFetch(context.Background(), server.URL+"/busca?q=lula")
	if err != nil {
		t.Fatalf("CanFetch failed: %v", err)
	}
	if !allowed {
		t.Error("Expected /busca to be allowed")
	}
	if delay != 2*time.Second {
		t.Errorf("Expected crawl delay 2s, got %v", delay)
	}

	allowed, _, _ = checker.CanFetch(context.Background(), server.URL+"/private/page")
	if allowed {
		t.Error("Expected /private to be disallowed")
	}
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	checker := NewRobotsChecker(NewClient(Options{Timeout: 5 * time.Second}), "Promessa")
	allowed, _, err := checker.CanFetch(context.Background(), server.URL+"/anything")
	if err != nil {
		t.Fatalf("CanFetch failed: %v", err)
	}
	if !allowed {
		t.Error("Expected missing robots.txt to allow everything")
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	if got := NormalizeUserAgent("Promessa/0.1 (+https://x)"); got != "Promessa" {
		t.Errorf("Expected Promessa, got %s", got)
	}
}
