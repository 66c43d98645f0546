package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsChecker checks robots.txt compliance per host
type RobotsChecker struct {
	cache     map[string]*robotstxt.RobotsData
	mu        sync.RWMutex
	client    *Client
	userAgent string
}

// NewRobotsChecker creates a checker that fetches robots.txt through client
func NewRobotsChecker(client *Client, userAgent string) *RobotsChecker {
	return &RobotsChecker{
		cache:     make(map[string]*robotstxt.RobotsData),
		client:    client,
		userAgent: NormalizeUserAgent(userAgent),
	}
}

// CanFetch reports whether rawURL may be fetched and the host's crawl delay.
// An unreachable robots.txt allows the fetch.
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse URL: %w", err)
	}

	data, err := r.robotsData(ctx, parsed)
	if err != nil {
		return true, 0, nil
	}

	path := parsed.EscapedPath()
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	allowed := data.TestAgent(path, r.userAgent)

	var crawlDelay time.Duration
	if group := data.FindGroup(r.userAgent); group != nil {
		crawlDelay = group.CrawlDelay
	}

	return allowed, crawlDelay, nil
}

func (r *RobotsChecker) robotsData(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	host := target.Host

	r.mu.RLock()
	data, exists := r.cache[host]
	r.mu.RUnlock()
	if exists {
		return data, nil
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", target.Scheme, host)
	resp, err := r.client.Get(ctx, robotsURL, "text/plain")

	var se *StatusError
	switch {
	case errors.As(err, &se):
		// 4xx allows everything, 5xx disallows everything.
		data, err = robotstxt.FromStatusAndBytes(se.Code, nil)
	case err != nil:
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	default:
		data, err = robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
	}
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.mu.Lock()
	r.cache[host] = data
	r.mu.Unlock()

	return data, nil
}

// NormalizeUserAgent extracts the product token used for robots.txt matching
func NormalizeUserAgent(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) > 0 {
		return strings.Split(parts[0], "/")[0]
	}
	return ua
}
