package scout

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ppiankov/promessa/internal/fetch"
	"github.com/ppiankov/promessa/internal/model"
	"github.com/ppiankov/promessa/internal/util"
	"golang.org/x/net/html"
)

// HTMLSource scrapes result links from a search page.
type HTMLSource struct {
	name     string
	template string
	client   *fetch.Client
	robots   *fetch.RobotsChecker
	maxItems int
}

// NewHTMLSource creates a search-page source. A nil robots checker skips
// the robots.txt check.
func NewHTMLSource(name, template string, client *fetch.Client, robots *fetch.RobotsChecker, maxItems int) *HTMLSource {
	return &HTMLSource{name: name, template: template, client: client, robots: robots, maxItems: maxItems}
}

func (s *HTMLSource) Name() string { return s.name }

// Search fetches the search page for subject and keeps the links whose
// anchor text mentions the subject.
func (s *HTMLSource) Search(ctx context.Context, subject string) ([]model.ScoutResult, error) {
	target := queryURL(s.template, subject)

	if s.robots != nil {
		allowed, _, err := s.robots.CanFetch(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		if !allowed {
			return nil, fmt.Errorf("%s: disallowed by robots.txt", s.name)
		}
	}

	resp, err := s.client.GetWithRetry(ctx, target, "text/html,application/xhtml+xml")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	base := resp.FinalURL
	if base == "" {
		base = target
	}
	links, err := ExtractLinks(resp.Body, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	words := subjectWords(subject)
	var out []model.ScoutResult
	for _, l := range links {
		if !mentions(util.Fold(l.Text), words) {
			continue
		}
		out = append(out, model.ScoutResult{
			Title:          l.Text,
			URL:            l.URL,
			Source:         s.name,
			PoliticianName: subject,
		})
	}
	return limitItems(out, s.maxItems), nil
}

// Link is an anchor found on a page.
type Link struct {
	URL  string
	Text string
}

// ExtractLinks returns the absolute http(s) links of an HTML page in
// document order, deduplicated by URL.
func ExtractLinks(body []byte, sourceURL string) ([]Link, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", model.ErrMalformedResponse, err)
	}
	baseURL, err := url.Parse(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	seen := make(map[string]bool)
	var links []Link
	for _, a := range findAll(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "a"
	}) {
		resolved := resolveURL(baseURL, strings.TrimSpace(attr(a, "href")))
		if resolved == "" || seen[resolved] {
			continue
		}
		text := strings.Join(strings.Fields(nodeText(a)), " ")
		if text == "" {
			text = attr(a, "title")
		}
		seen[resolved] = true
		links = append(links, Link{URL: resolved, Text: text})
	}
	return links, nil
}

// resolveURL resolves href against base, dropping anchors, scripts and
// non-http schemes.
func resolveURL(base *url.URL, href string) string {
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

func findAll(n *html.Node, predicate func(*html.Node) bool) []*html.Node {
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if predicate(node) {
			results = append(results, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return results
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var buf strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		buf.WriteString(nodeText(c))
		buf.WriteString(" ")
	}
	return buf.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// subjectWords are the folded name parts long enough to be distinctive.
func subjectWords(subject string) []string {
	var words []string
	for _, w := range util.Words(util.Fold(subject)) {
		if len(w) >= 3 {
			words = append(words, w)
		}
	}
	return words
}

func mentions(foldedText string, words []string) bool {
	if foldedText == "" {
		return false
	}
	for _, w := range words {
		if util.ContainsKeyword(foldedText, w) {
			return true
		}
	}
	return false
}
