package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ppiankov/promessa/internal/model"
)

// SeenEntry pairs a scout result with its normalized URL key.
type SeenEntry struct {
	URLKey string
	Result model.ScoutResult
}

// MarkSeen records entries for subjectKey in one transaction and returns
// only the results that were not already present. Nothing is returned
// unless the whole batch committed.
func (s *Store) MarkSeen(ctx context.Context, subjectKey string, entries []SeenEntry) ([]model.ScoutResult, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin seen-set transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO scout_seen
		(subject_key, url_key, politician_name, title, url, source, authority, published_at, seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject_key, url_key) DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("prepare seen-set insert: %w", err)
	}
	defer stmt.Close()

	seenAt := formatTime(s.now())
	var fresh []model.ScoutResult
	for _, e := range entries {
		r := e.Result
		res, err := stmt.ExecContext(ctx, subjectKey, e.URLKey, r.PoliticianName, r.Title, r.URL,
			r.Source, int(r.Authority), formatTime(r.PublishedAt), seenAt)
		if err != nil {
			return nil, fmt.Errorf("insert seen item: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("seen item rows affected: %w", err)
		}
		if n == 1 {
			fresh = append(fresh, r)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit seen-set: %w", err)
	}
	return fresh, nil
}

// ListSeen returns the most recently seen items for subjectKey.
func (s *Store) ListSeen(ctx context.Context, subjectKey string, limit int) ([]model.ScoutResult, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `SELECT politician_name, title, url, source, authority, published_at
		FROM scout_seen WHERE subject_key = ?
		ORDER BY seen_at DESC, published_at DESC LIMIT ?`, subjectKey, limit)
	if err != nil {
		return nil, fmt.Errorf("querying seen items: %w", err)
	}
	defer rows.Close()

	var out []model.ScoutResult
	for rows.Next() {
		var (
			r         model.ScoutResult
			authority int
			published string
		)
		if err := rows.Scan(&r.PoliticianName, &r.Title, &r.URL, &r.Source, &authority, &published); err != nil {
			return nil, fmt.Errorf("scanning seen item: %w", err)
		}
		r.Authority = model.AuthorityTier(authority)
		r.PublishedAt = parseTime(published)
		out = append(out, r)
	}
	return out, rows.Err()
}

// PurgeSeen deletes a subject's seen-set entries recorded before olderThan.
// A zero olderThan deletes all of them. It returns the number of rows removed.
func (s *Store) PurgeSeen(ctx context.Context, subjectKey string, olderThan time.Time) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if olderThan.IsZero() {
		res, err = s.db.ExecContext(ctx, "DELETE FROM scout_seen WHERE subject_key = ?", subjectKey)
	} else {
		res, err = s.db.ExecContext(ctx, "DELETE FROM scout_seen WHERE subject_key = ? AND seen_at < ?",
			subjectKey, formatTime(olderThan))
	}
	if err != nil {
		return 0, fmt.Errorf("purging seen items: %w", err)
	}
	return res.RowsAffected()
}
