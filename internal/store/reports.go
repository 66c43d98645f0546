package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ppiankov/promessa/internal/model"
)

// SaveReport appends a report to the audit history. A missing ID is filled
// with a new UUID.
func (s *Store) SaveReport(ctx context.Context, report *model.AuditReport) error {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = s.now().UTC()
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO audit_reports
		(id, fingerprint, politician_id, category, verdict, viability_score, report_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.Fingerprint, report.PoliticianID, string(report.Category),
		string(report.Verdict), report.ViabilityScore, string(data), formatTime(report.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// ReportByFingerprint returns the latest report for fingerprint.
func (s *Store) ReportByFingerprint(ctx context.Context, fingerprint string) (*model.AuditReport, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM audit_reports
		WHERE fingerprint = ? ORDER BY created_at DESC LIMIT 1`, fingerprint).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying report: %w", err)
	}
	return decodeReport(data)
}

// ReportsByPolitician returns a politician's reports, newest first.
func (s *Store) ReportsByPolitician(ctx context.Context, politicianID string, limit int) ([]*model.AuditReport, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT report_json FROM audit_reports
		WHERE politician_id = ? ORDER BY created_at DESC LIMIT ?`, politicianID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var out []*model.AuditReport
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		r, err := decodeReport(data)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func decodeReport(data string) (*model.AuditReport, error) {
	var r model.AuditReport
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}
