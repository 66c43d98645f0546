// Package scout discovers news items about a subject across several sources
// and reports each item at most once per subject.
package scout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/promessa/internal/model"
	"github.com/ppiankov/promessa/internal/store"
	"github.com/ppiankov/promessa/internal/util"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// SeenStore persists the per-subject seen-set.
type SeenStore interface {
	MarkSeen(ctx context.Context, subjectKey string, entries []store.SeenEntry) ([]model.ScoutResult, error)
	ListSeen(ctx context.Context, subjectKey string, limit int) ([]model.ScoutResult, error)
	PurgeSeen(ctx context.Context, subjectKey string, olderThan time.Time) (int64, error)
}

// Observer receives one call per source query with "success", "timeout"
// or "error", and the number of items returned.
type Observer func(source, outcome string, items int)

// Agent fans a subject out to every source and filters the merged results
// through the seen-set.
type Agent struct {
	sources   []Source
	seen      SeenStore
	authority *AuthorityClassifier
	timeout   time.Duration
	group     singleflight.Group
	observe   Observer
	logger    *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithObserver reports every source query to fn.
func WithObserver(fn Observer) Option {
	return func(a *Agent) { a.observe = fn }
}

// WithAuthority replaces the default authority classifier.
func WithAuthority(c *AuthorityClassifier) Option {
	return func(a *Agent) { a.authority = c }
}

// NewAgent creates an agent. timeout bounds each source query.
func NewAgent(sources []Source, seen SeenStore, timeout time.Duration, logger *slog.Logger, opts ...Option) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	a := &Agent{
		sources: sources,
		seen:    seen,
		timeout: timeout,
		logger:  logger.With("component", "scout"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.authority == nil {
		a.authority = NewAuthorityClassifier(nil)
	}
	if a.observe == nil {
		a.observe = func(string, string, int) {}
	}
	return a
}

// SubjectKey is the seen-set partition for a subject name.
func SubjectKey(subject string) string {
	return util.Fold(subject)
}

// Search returns the items for subject that were never reported before,
// newest first. Concurrent searches for the same subject share one pass
// and receive the same items. A canceled caller stops waiting but the pass
// still runs to completion, so persisted items are never lost to a caller
// that is still waiting.
func (a *Agent) Search(ctx context.Context, subject string) ([]model.ScoutResult, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, errors.New("scout: empty subject")
	}
	key := SubjectKey(subject)

	ch := a.group.DoChan(key, func() (any, error) {
		passCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*a.timeout+5*time.Second)
		defer cancel()
		return a.pass(passCtx, subject, key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		items := res.Val.([]model.ScoutResult)
		out := make([]model.ScoutResult, len(items))
		copy(out, items)
		return out, nil
	}
}

func (a *Agent) pass(ctx context.Context, subject, key string) ([]model.ScoutResult, error) {
	results := make([][]model.ScoutResult, len(a.sources))
	errs := make([]error, len(a.sources))

	var g errgroup.Group
	for i, src := range a.sources {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			items, err := src.Search(sctx, subject)
			if err != nil {
				outcome := "error"
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(sctx.Err(), context.DeadlineExceeded) {
					outcome = "timeout"
				}
				a.observe(src.Name(), outcome, 0)
				a.logger.Warn("source failed, skipping", "source", src.Name(), "subject", subject, "error", err)
				errs[i] = err
				return nil
			}
			a.observe(src.Name(), "success", len(items))
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	if len(a.sources) > 0 && countFailed(errs) == len(a.sources) {
		return nil, fmt.Errorf("%w: all %d scout sources failed: %w",
			model.ErrUpstreamUnavailable, len(a.sources), errors.Join(errs...))
	}

	entries := a.merge(subject, results)
	fresh, err := a.seen.MarkSeen(ctx, key, entries)
	if err != nil {
		return nil, fmt.Errorf("persist seen-set for %q: %w", subject, err)
	}

	a.logger.Info("scout pass complete", "subject", subject,
		"candidates", len(entries), "new", len(fresh))
	if fresh == nil {
		fresh = []model.ScoutResult{}
	}
	return fresh, nil
}

// merge normalizes, classifies and deduplicates the per-source results,
// ordered newest first. Results carry the normalized URL; items whose URL
// cannot be normalized are dropped.
func (a *Agent) merge(subject string, results [][]model.ScoutResult) []store.SeenEntry {
	seen := make(map[string]bool)
	var entries []store.SeenEntry
	for _, items := range results {
		for _, it := range items {
			urlKey, ok := NormalizeURL(it.URL)
			if !ok || seen[urlKey] {
				continue
			}
			seen[urlKey] = true
			it.URL = urlKey
			it.PoliticianName = subject
			it.Authority = a.authority.Classify(urlKey)
			entries = append(entries, store.SeenEntry{URLKey: urlKey, Result: it})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Result.PublishedAt.After(entries[j].Result.PublishedAt)
	})
	return entries
}

func countFailed(errs []error) int {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}
	return n
}

// Seen lists the items already reported for subject.
func (a *Agent) Seen(ctx context.Context, subject string, limit int) ([]model.ScoutResult, error) {
	return a.seen.ListSeen(ctx, SubjectKey(subject), limit)
}

// Purge forgets a subject's reported items recorded before olderThan. A zero
// olderThan forgets all of them.
func (a *Agent) Purge(ctx context.Context, subject string, olderThan time.Time) (int64, error) {
	n, err := a.seen.PurgeSeen(ctx, SubjectKey(subject), olderThan)
	if err != nil {
		return 0, err
	}
	a.logger.Info("seen-set purged", "subject", subject, "removed", n)
	return n, nil
}
