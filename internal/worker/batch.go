package worker

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/promessa/internal/model"
	"github.com/ppiankov/promessa/internal/util"
)

// Searcher discovers new items for one subject
type Searcher interface {
	Search(ctx context.Context, subject string) ([]model.ScoutResult, error)
}

// ScoutJob scouts one subject
type ScoutJob struct {
	Subject  string
	Searcher Searcher
}

// Execute executes the scout job
func (j *ScoutJob) Execute(ctx context.Context) Result {
	start := time.Now()
	items, err := j.Searcher.Search(ctx, j.Subject)
	return &SubjectResult{
		Subject:  j.Subject,
		Items:    items,
		Error:    err,
		Duration: time.Since(start),
	}
}

// SubjectResult is the outcome of scouting one subject
type SubjectResult struct {
	Subject  string
	Items    []model.ScoutResult
	Error    error
	Duration time.Duration
}

// GetError returns the error from the scout result
func (r *SubjectResult) GetError() error {
	return r.Error
}

// BatchProcessor scouts many subjects concurrently
type BatchProcessor struct {
	searcher Searcher
	pool     *Pool
	logger   *slog.Logger
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(searcher Searcher, concurrency int, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		searcher: searcher,
		pool:     NewPool(concurrency),
		logger:   logger.With("component", "batch"),
	}
}

// ProcessSubjects scouts every subject and returns results in input order
func (b *BatchProcessor) ProcessSubjects(ctx context.Context, subjects []string) []*SubjectResult {
	jobs := make([]Job, len(subjects))
	for i, s := range subjects {
		jobs[i] = &ScoutJob{Subject: s, Searcher: b.searcher}
	}

	results := b.pool.Run(ctx, jobs)

	out := make([]*SubjectResult, len(results))
	for i, r := range results {
		sr, ok := r.(*SubjectResult)
		if !ok {
			sr = &SubjectResult{Subject: subjects[i], Error: r.GetError()}
		}
		if sr.Error != nil {
			b.logger.Warn("subject failed", "subject", sr.Subject, "error", sr.Error)
		} else {
			b.logger.Debug("subject scouted", "subject", sr.Subject, "new", len(sr.Items), "duration", sr.Duration)
		}
		out[i] = sr
	}
	return out
}

// ProcessFile reads subjects from a file and scouts them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*SubjectResult, error) {
	subjects, err := ReadSubjectsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read subjects: %w", err)
	}

	return b.ProcessSubjects(ctx, subjects), nil
}

// ReadSubjectsFromFile reads subject names from a file, one per line.
// Blank lines and # comments are skipped; names that fold to the same key
// are kept once.
func ReadSubjectsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var subjects []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key := util.Fold(line)
		if !seen[key] {
			seen[key] = true
			subjects = append(subjects, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return subjects, nil
}
