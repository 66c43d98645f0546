package scout

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ppiankov/promessa/internal/fetch"
	"github.com/ppiankov/promessa/internal/model"
)

// FeedSource queries an RSS, Atom or JSON search feed.
type FeedSource struct {
	name     string
	template string
	client   *fetch.Client
	maxItems int
}

// NewFeedSource creates a feed source. template holds one %s for the
// query-escaped subject.
func NewFeedSource(name, template string, client *fetch.Client, maxItems int) *FeedSource {
	return &FeedSource{name: name, template: template, client: client, maxItems: maxItems}
}

func (s *FeedSource) Name() string { return s.name }

// Search fetches the feed for subject and returns its items.
func (s *FeedSource) Search(ctx context.Context, subject string) ([]model.ScoutResult, error) {
	resp, err := s.client.GetWithRetry(ctx, queryURL(s.template, subject),
		"application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.1")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	items, err := ParseFeed(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	out := make([]model.ScoutResult, 0, len(items))
	for _, it := range items {
		it.Source = s.name
		it.PoliticianName = subject
		out = append(out, it)
	}
	return limitItems(out, s.maxItems), nil
}

// ParseFeed decodes RSS 0.9x/1.0/2.0, Atom or JSON Feed into results.
// Items without a title or link are dropped; items without a usable date
// keep the zero time.
func ParseFeed(body []byte) ([]model.ScoutResult, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: decode feed: %v", model.ErrMalformedResponse, err)
	}

	out := make([]model.ScoutResult, 0, len(feed.Items))
	for _, it := range feed.Items {
		title := strings.TrimSpace(it.Title)
		link := itemLink(it)
		if title == "" || link == "" {
			continue
		}
		out = append(out, model.ScoutResult{Title: title, URL: link, PublishedAt: itemTime(it)})
	}
	return out, nil
}

func itemLink(it *gofeed.Item) string {
	if link := strings.TrimSpace(it.Link); link != "" {
		return link
	}
	for _, l := range it.Links {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return ""
}

func itemTime(it *gofeed.Item) time.Time {
	switch {
	case it.PublishedParsed != nil:
		return it.PublishedParsed.UTC()
	case it.UpdatedParsed != nil:
		return it.UpdatedParsed.UTC()
	}
	return time.Time{}
}
