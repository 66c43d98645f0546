package scout

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/promessa/internal/fetch"
	"github.com/ppiankov/promessa/internal/model"
	"github.com/ppiankov/promessa/internal/store"
)

type fakeSource struct {
	name    string
	mu      sync.Mutex
	items   []model.ScoutResult
	err     error
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	hang    bool
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(ctx context.Context, subject string) ([]model.ScoutResult, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		<-f.release
	}
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.ScoutResult, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeSource) set(items ...model.ScoutResult) {
	f.mu.Lock()
	f.items = items
	f.mu.Unlock()
}

func item(url, title string, day int) model.ScoutResult {
	return model.ScoutResult{
		Title:       title,
		URL:         url,
		Source:      "fake",
		PublishedAt: time.Date(2026, 5, day, 10, 0, 0, 0, time.UTC),
	}
}

func newTestAgent(t *testing.T, timeout time.Duration, sources ...Source) *Agent {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewAgent(sources, s, timeout, nil)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://WWW.Example.com/news/1/", "https://example.com/news/1", true},
		{"https://example.com/news/1#comments", "https://example.com/news/1", true},
		{"https://example.com/a?utm_source=x&id=2&utm_medium=y", "https://example.com/a?id=2", true},
		{"https://example.com/a?b=2&a=1", "https://example.com/a?a=1&b=2", true},
		{"HTTP://example.com/", "http://example.com", true},
		{"ftp://example.com/file", "", false},
		{"/relative/path", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := NormalizeURL(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAuthorityClassifier(t *testing.T) {
	c := NewAuthorityClassifier(&model.AuthorityConfig{
		PrimaryDomains:   []string{"gov.br", "leg.br"},
		SecondaryDomains: []string{"folha.uol.com.br"},
		DomainMap:        map[string]string{"blog.gov.br": "tertiary"},
	})

	tests := []struct {
		url  string
		want model.AuthorityTier
	}{
		{"https://www.camara.leg.br/noticias/1", model.TierPrimary},
		{"https://gov.br/economia", model.TierPrimary},
		{"https://www1.folha.uol.com.br/poder/x.shtml", model.TierSecondary},
		{"https://blog.gov.br/post", model.TierTertiary},
		{"https://notgov.br/post", model.TierTertiary},
		{"not a url", model.TierTertiary},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.url); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestParseFeed_RSS(t *testing.T) {
	body := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>busca</title>
<item><title>Deputada propõe creches</title><link>https://g1.globo.com/a</link>
<pubDate>Tue, 05 May 2026 14:00:00 GMT</pubDate></item>
<item><title></title><link>https://example.com/empty-title</link></item>
<item><title>Sem data</title><link>https://example.com/b</link></item>
</channel></rss>`)

	items, err := ParseFeed(body)
	if err != nil {
		t.Fatalf("ParseFeed failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].Title != "Deputada propõe creches" || items[0].URL != "https://g1.globo.com/a" {
		t.Errorf("Unexpected first item: %+v", items[0])
	}
	want := time.Date(2026, 5, 5, 14, 0, 0, 0, time.UTC)
	if !items[0].PublishedAt.Equal(want) {
		t.Errorf("Expected %v, got %v", want, items[0].PublishedAt)
	}
	if !items[1].PublishedAt.IsZero() {
		t.Errorf("Expected zero time for missing date, got %v", items[1].PublishedAt)
	}
}

func TestParseFeed_Atom(t *testing.T) {
	body := []byte(`<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<entry><title>Votação na Câmara</title>
<link rel="alternate" href="https://example.com/entry"/>
<link rel="self" href="https://example.com/self"/>
<published>2026-05-02T09:30:00Z</published></entry>
</feed>`)

	items, err := ParseFeed(body)
	if err != nil {
		t.Fatalf("ParseFeed failed: %v", err)
	}
	if len(items) != 1 || items[0].URL != "https://example.com/entry" {
		t.Fatalf("Unexpected items: %+v", items)
	}
}

func TestParseFeed_RSS1AndDublinCoreDate(t *testing.T) {
	body := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
  xmlns="http://purl.org/rss/1.0/" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel rdf:about="https://example.com/"><title>busca</title><link>https://example.com/</link></channel>
<item rdf:about="https://example.com/rdf/1"><title>Plenario aprova PL</title>
<link>https://example.com/rdf/1</link><dc:date>2026-05-03T08:00:00-03:00</dc:date></item>
</rdf:RDF>`)

	items, err := ParseFeed(body)
	if err != nil {
		t.Fatalf("ParseFeed failed: %v", err)
	}
	if len(items) != 1 || items[0].URL != "https://example.com/rdf/1" {
		t.Fatalf("Unexpected items: %+v", items)
	}
	want := time.Date(2026, 5, 3, 11, 0, 0, 0, time.UTC)
	if !items[0].PublishedAt.Equal(want) {
		t.Errorf("Expected dc:date %v, got %v", want, items[0].PublishedAt)
	}
}

func TestParseFeed_Malformed(t *testing.T) {
	for _, body := range []string{"<html><body>nope</body></html>", "not xml at all"} {
		if _, err := ParseFeed([]byte(body)); !errors.Is(err, model.ErrMalformedResponse) {
			t.Errorf("ParseFeed(%q): expected ErrMalformedResponse, got %v", body, err)
		}
	}
}

func TestFeedSource_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "Maria Souza" {
			t.Errorf("Expected escaped subject in query, got %q", got)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(`<rss><channel>
<item><title>Um</title><link>https://example.com/1</link></item>
<item><title>Dois</title><link>https://example.com/2</link></item>
<item><title>Tres</title><link>https://example.com/3</link></item>
</channel></rss>`))
	}))
	defer server.Close()

	src := NewFeedSource("feed", server.URL+"/rss?q=%s", fetch.NewClient(fetch.Options{MaxAttempts: 1}), 2)
	items, err := src.Search(context.Background(), "Maria Souza")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected cap of 2 items, got %d", len(items))
	}
	if items[0].Source != "feed" || items[0].PoliticianName != "Maria Souza" {
		t.Errorf("Expected source and subject to be stamped, got %+v", items[0])
	}
}

func TestHTMLSource_FiltersBySubject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>
<a href="/noticias/1"><span>João Araújo</span> defende piso salarial</a>
<a href="/noticias/2">Agenda da semana</a>
<a href="#topo">Joao Araujo</a>
<a href="javascript:void(0)">Joao Araujo</a>
<a href="https://outro.com/x">joao araujo vota contra</a>
<a href="/noticias/1">João Araújo duplicado</a>
</body></html>`))
	}))
	defer server.Close()

	src := NewHTMLSource("portal", server.URL+"/busca?q=%s", fetch.NewClient(fetch.Options{MaxAttempts: 1}), nil, 10)
	items, err := src.Search(context.Background(), "Joao Araujo")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 matching links, got %d: %+v", len(items), items)
	}
	if items[0].URL != server.URL+"/noticias/1" {
		t.Errorf("Expected resolved relative link, got %s", items[0].URL)
	}
	if items[0].Title != "João Araújo defende piso salarial" {
		t.Errorf("Expected collapsed anchor text, got %q", items[0].Title)
	}
}

func TestNewSources(t *testing.T) {
	client := fetch.NewClient(fetch.Options{})
	cfg := model.ScoutConfig{Sources: []model.SourceConfig{
		{Name: "a", Kind: "rss", URL: "https://a.example/?q=%s"},
		{Name: "b", Kind: "html", URL: "https://b.example/?q=%s"},
	}}
	sources, err := NewSources(cfg, client, nil)
	if err != nil {
		t.Fatalf("NewSources failed: %v", err)
	}
	if len(sources) != 2 || sources[0].Name() != "a" || sources[1].Name() != "b" {
		t.Fatalf("Unexpected sources: %v", sources)
	}

	cfg.Sources = []model.SourceConfig{{Name: "c", Kind: "rss", URL: "https://c.example/"}}
	if _, err := NewSources(cfg, client, nil); err == nil {
		t.Error("Expected error for url without placeholder")
	}
	cfg.Sources = []model.SourceConfig{{Name: "d", Kind: "gopher", URL: "https://d.example/%s"}}
	if _, err := NewSources(cfg, client, nil); err == nil {
		t.Error("Expected error for unknown kind")
	}
}

func TestAgent_RepeatedSearchesSaturate(t *testing.T) {
	src := &fakeSource{name: "fake"}
	src.set(item("https://example.com/1", "um", 1), item("https://example.com/2", "dois", 2))
	agent := newTestAgent(t, time.Second, src)
	ctx := context.Background()

	first, err := agent.Search(ctx, "Fulano de Tal")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("Expected 2 new items, got %d", len(first))
	}
	if first[0].Title != "dois" {
		t.Errorf("Expected newest first, got %q", first[0].Title)
	}

	src.set(item("https://example.com/2/", "dois", 2), item("https://example.com/3", "tres", 3))
	second, err := agent.Search(ctx, "fulano  de tal")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(second) != 1 || second[0].URL != "https://example.com/3" {
		t.Fatalf("Expected only the unseen item, got %+v", second)
	}

	third, err := agent.Search(ctx, "Fulano de Tal")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(third) != 0 {
		t.Errorf("Expected empty result once saturated, got %d", len(third))
	}

	seen, err := agent.Seen(ctx, "Fulano de Tal", 10)
	if err != nil {
		t.Fatalf("Seen failed: %v", err)
	}
	if len(seen) != 3 {
		t.Errorf("Expected 3 seen items, got %d", len(seen))
	}

	removed, err := agent.Purge(ctx, "Fulano de Tal", time.Time{})
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("Expected 3 rows purged, got %d", removed)
	}
	again, err := agent.Search(ctx, "Fulano de Tal")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(again) != 2 {
		t.Errorf("Expected purged items to be reported again, got %d", len(again))
	}
}

func TestAgent_ReturnsNormalizedURLs(t *testing.T) {
	src := &fakeSource{name: "fake"}
	src.set(
		item("https://www.G1.globo.com/creches/?utm_source=x&b=2&a=1#topo", "creches", 1),
		item("https://g1.globo.com/creches?a=1&b=2", "creches de novo", 2),
	)
	agent := newTestAgent(t, time.Second, src)

	items, err := agent.Search(context.Background(), "Fulano")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected duplicates merged into 1 item, got %d", len(items))
	}
	if items[0].URL != "https://g1.globo.com/creches?a=1&b=2" {
		t.Errorf("Expected normalized URL, got %s", items[0].URL)
	}

	seen, err := agent.Seen(context.Background(), "Fulano", 10)
	if err != nil {
		t.Fatalf("Seen failed: %v", err)
	}
	if len(seen) != 1 || seen[0].URL != items[0].URL {
		t.Errorf("Expected stored item to match returned URL, got %+v", seen)
	}
}

func TestAgent_SubjectsArePartitioned(t *testing.T) {
	src := &fakeSource{name: "fake"}
	src.set(item("https://example.com/shared", "shared", 1))
	agent := newTestAgent(t, time.Second, src)

	a, err := agent.Search(context.Background(), "Ana")
	if err != nil || len(a) != 1 {
		t.Fatalf("Expected 1 item for Ana, got %d (%v)", len(a), err)
	}
	b, err := agent.Search(context.Background(), "Bruno")
	if err != nil || len(b) != 1 {
		t.Fatalf("Expected 1 item for Bruno, got %d (%v)", len(b), err)
	}
	if b[0].PoliticianName != "Bruno" {
		t.Errorf("Expected subject stamped on result, got %q", b[0].PoliticianName)
	}
}

func TestAgent_FailingSourceIsSkipped(t *testing.T) {
	good := &fakeSource{name: "good"}
	good.set(item("https://camara.leg.br/n/1", "oficial", 1))
	bad := &fakeSource{name: "bad", err: errors.New("boom")}
	slow := &fakeSource{name: "slow", hang: true}

	var mu sync.Mutex
	outcomes := map[string]string{}
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()
	agent := NewAgent([]Source{good, bad, slow}, s, 50*time.Millisecond, nil,
		WithObserver(func(source, outcome string, _ int) {
			mu.Lock()
			outcomes[source] = outcome
			mu.Unlock()
		}))

	items, err := agent.Search(context.Background(), "Fulano")
	if err != nil {
		t.Fatalf("Expected partial success, got %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if items[0].Authority != model.TierPrimary {
		t.Errorf("Expected primary authority, got %v", items[0].Authority)
	}

	mu.Lock()
	defer mu.Unlock()
	want := map[string]string{"good": "success", "bad": "error", "slow": "timeout"}
	for k, v := range want {
		if outcomes[k] != v {
			t.Errorf("Expected outcome %s for %s, got %s", v, k, outcomes[k])
		}
	}
}

func TestAgent_AllSourcesFail(t *testing.T) {
	agent := newTestAgent(t, time.Second,
		&fakeSource{name: "a", err: errors.New("down")},
		&fakeSource{name: "b", err: errors.New("down")})

	_, err := agent.Search(context.Background(), "Fulano")
	if !errors.Is(err, model.ErrUpstreamUnavailable) {
		t.Fatalf("Expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestAgent_EmptySubject(t *testing.T) {
	agent := newTestAgent(t, time.Second)
	if _, err := agent.Search(context.Background(), "   "); err == nil {
		t.Error("Expected error for empty subject")
	}
}

func TestAgent_ConcurrentSameSubjectSharesOnePass(t *testing.T) {
	src := &fakeSource{
		name:    "fake",
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	src.set(item("https://example.com/1", "um", 1))
	agent := newTestAgent(t, time.Second, src)

	var wg sync.WaitGroup
	results := make([][]model.ScoutResult, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = agent.Search(context.Background(), "Fulano")
	}()
	<-src.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = agent.Search(context.Background(), "FULANO")
	}()
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	if calls := src.calls.Load(); calls != 1 {
		t.Fatalf("Expected one shared pass, got %d source calls", calls)
	}
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("Search %d failed: %v", i, errs[i])
		}
		if len(results[i]) != 1 {
			t.Errorf("Search %d: expected the shared item, got %d", i, len(results[i]))
		}
	}
}

func TestAgent_CanceledCallerDoesNotLoseItems(t *testing.T) {
	src := &fakeSource{
		name:    "fake",
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	src.set(item("https://example.com/1", "um", 1))
	agent := newTestAgent(t, time.Second, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := agent.Search(ctx, "Fulano")
		done <- err
	}()
	<-src.started
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	close(src.release)

	// The abandoned pass still persists its items.
	deadline := time.Now().Add(2 * time.Second)
	for {
		seen, err := agent.Seen(context.Background(), "Fulano", 10)
		if err != nil {
			t.Fatalf("Seen failed: %v", err)
		}
		if len(seen) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Expected abandoned pass to persist its item")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
