package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/promessa/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func entry(key, title string) SeenEntry {
	return SeenEntry{
		URLKey: key,
		Result: model.ScoutResult{
			Title:          title,
			URL:            "https://" + key,
			Source:         "test",
			PoliticianName: "Fulano de Tal",
			PublishedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Authority:      model.TierSecondary,
		},
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	path := t.TempDir() + "/promessa.db"

	s1, err := Open(path)
	require.NoError(t, err)
	v1, err := s1.AppliedMigrations()
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	v2, err := s2.AppliedMigrations()
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, []int{1}, v2)
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("001_init.sql")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = parseMigrationVersion("init.sql")
	assert.Error(t, err)
}

func TestMarkSeen_ReturnsOnlyNewItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.MarkSeen(ctx, "fulano de tal", []SeenEntry{entry("a.test/1", "one"), entry("a.test/2", "two")})
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := s.MarkSeen(ctx, "fulano de tal", []SeenEntry{entry("a.test/2", "two"), entry("a.test/3", "three")})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "three", second[0].Title)

	third, err := s.MarkSeen(ctx, "fulano de tal", []SeenEntry{entry("a.test/1", "one"), entry("a.test/3", "three")})
	require.NoError(t, err)
	assert.Empty(t, third)
}

func TestMarkSeen_PartitionedBySubject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.MarkSeen(ctx, "subject a", []SeenEntry{entry("shared.test/x", "x")})
	require.NoError(t, err)

	fresh, err := s.MarkSeen(ctx, "subject b", []SeenEntry{entry("shared.test/x", "x")})
	require.NoError(t, err)
	assert.Len(t, fresh, 1, "same url under another subject is new")
}

func TestMarkSeen_ConcurrentSameSubjectNeverDoubleReports(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fresh, err := s.MarkSeen(ctx, "subject", []SeenEntry{entry("n.test/1", "1"), entry("n.test/2", "2")})
			assert.NoError(t, err)
			mu.Lock()
			total += len(fresh)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, total)
}

func TestListAndPurgeSeen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	_, err := s.MarkSeen(ctx, "subject", []SeenEntry{entry("old.test/1", "old")})
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(48 * time.Hour) }
	_, err = s.MarkSeen(ctx, "subject", []SeenEntry{entry("new.test/1", "new")})
	require.NoError(t, err)

	items, err := s.ListSeen(ctx, "subject", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "new", items[0].Title)
	assert.Equal(t, model.TierSecondary, items[0].Authority)
	assert.Equal(t, 2026, items[0].PublishedAt.Year())

	n, err := s.PurgeSeen(ctx, "subject", base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.PurgeSeen(ctx, "subject", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	items, err = s.ListSeen(ctx, "subject", 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReports_SaveAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := &model.AuditReport{
		Fingerprint:    "fp-1",
		PoliticianID:   "204554",
		Promise:        "dobrar o orçamento da educação",
		Category:       model.CategoryEducation,
		ViabilityScore: 40,
		Verdict:        model.VerdictDuvidosa,
		CreatedAt:      time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := *older
	newer.ID = ""
	newer.ViabilityScore = 70
	newer.Verdict = model.VerdictRealista
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)

	require.NoError(t, s.SaveReport(ctx, older))
	require.NoError(t, s.SaveReport(ctx, &newer))
	assert.NotEmpty(t, older.ID)
	assert.NotEqual(t, older.ID, newer.ID)

	got, err := s.ReportByFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictRealista, got.Verdict)

	list, err := s.ReportsByPolitician(ctx, "204554", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 70, list[0].ViabilityScore)

	_, err = s.ReportByFingerprint(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
