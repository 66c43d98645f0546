// Package pipeline wires every promessa component from a model.Config.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/promessa/internal/api"
	"github.com/ppiankov/promessa/internal/audit"
	"github.com/ppiankov/promessa/internal/budget"
	"github.com/ppiankov/promessa/internal/cache"
	"github.com/ppiankov/promessa/internal/coherence"
	"github.com/ppiankov/promessa/internal/extract"
	"github.com/ppiankov/promessa/internal/fetch"
	"github.com/ppiankov/promessa/internal/jobs"
	"github.com/ppiankov/promessa/internal/llm"
	"github.com/ppiankov/promessa/internal/metrics"
	"github.com/ppiankov/promessa/internal/model"
	"github.com/ppiankov/promessa/internal/scout"
	"github.com/ppiankov/promessa/internal/store"
	"github.com/ppiankov/promessa/internal/viability"
	"github.com/ppiankov/promessa/internal/voting"
	"github.com/ppiankov/promessa/internal/worker"
)

// Pipeline holds the constructed components. Nothing here is global; every
// handle is passed to the components that use it.
type Pipeline struct {
	cfg    model.Config
	logger *slog.Logger

	Store   *store.Store
	Metrics *metrics.Metrics
	Budget  *budget.Provider
	Voting  *voting.Provider
	Chain   *extract.Chain
	Auditor *audit.Auditor
	Jobs    *jobs.Manager
	Scout   *scout.Agent
}

// New builds the pipeline. The caller owns Close.
func New(cfg model.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := resolvePaths(&cfg); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	m := metrics.New()
	limiter := fetch.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	breakerLog := logger.With("component", "breaker")
	breakers := fetch.NewBreakers(fetch.BreakerOptions{
		FailureThreshold: uint32(max(cfg.HTTP.BreakerFailures, 0)),
		ResetTimeout:     cfg.HTTP.BreakerReset,
		OnStateChange: func(host, state string) {
			breakerLog.Warn("circuit state changed", "host", host, "state", state)
			m.BreakerStateChange(host, state)
		},
	})
	client := fetch.NewClient(fetch.Options{
		Timeout:      cfg.HTTP.Timeout,
		UserAgent:    cfg.HTTP.UserAgent,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		MaxAttempts:  cfg.HTTP.MaxRetries,
		HTTPProxy:    cfg.HTTP.HTTPProxy,
		HTTPSProxy:   cfg.HTTP.HTTPSProxy,
		NoProxy:      cfg.HTTP.NoProxy,
		Limiter:      limiter,
		Breakers:     breakers,
	})

	var upstreamCache cache.Cache
	if cfg.Cache.Enabled {
		upstreamCache = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Budget.CacheTTL)
	}

	classifier := coherence.Default
	budgetProvider := budget.NewProvider(client, cfg.Budget, upstreamCache, logger)
	votingProvider := voting.NewProvider(client, cfg.Voting, upstreamCache, classifier, logger)

	chain, err := buildChain(cfg, classifier, m, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	engine := viability.NewEngine(budgetProvider, cfg.Scoring, cfg.Budget.Tolerance)
	opts := []audit.Option{
		audit.WithClassifier(classifier),
		audit.WithReportSaver(st),
	}
	if chain.Len() > 0 {
		opts = append(opts, audit.WithExtractor(chain))
	}
	if cfg.Budget.ReferenceYear > 0 {
		opts = append(opts, audit.WithReferenceYear(cfg.Budget.ReferenceYear))
	} else {
		opts = append(opts, audit.WithReferenceYear(time.Now().Year()))
	}
	auditor := audit.New(votingProvider, engine, cfg.Audit.StepTimeout, logger, opts...)

	jm := jobs.NewManager(jobs.Options{
		ResultTTL: cfg.Jobs.ResultTTL,
		FailedTTL: cfg.Jobs.FailedTTL,
		Timeout:   cfg.Jobs.Timeout,
		Observer:  m.JobEvent,
		Logger:    logger,
	})
	m.GaugeFunc("jobs_in_flight", "Audit jobs pending or processing.", func() float64 {
		return float64(jm.InFlight())
	})

	var robots *fetch.RobotsChecker
	if cfg.Scout.RespectRobots {
		robots = fetch.NewRobotsChecker(client, cfg.HTTP.UserAgent)
	}
	sources, err := scout.NewSources(cfg.Scout, client, robots)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("scout sources: %w", err)
	}
	agent := scout.NewAgent(sources, st, cfg.Scout.SourceTimeout, logger,
		scout.WithObserver(m.ScoutQuery),
		scout.WithAuthority(scout.NewAuthorityClassifier(&cfg.Authority)),
	)

	return &Pipeline{
		cfg:     cfg,
		logger:  logger.With("component", "pipeline"),
		Store:   st,
		Metrics: m,
		Budget:  budgetProvider,
		Voting:  votingProvider,
		Chain:   chain,
		Auditor: auditor,
		Jobs:    jm,
		Scout:   agent,
	}, nil
}

// buildChain creates the extraction chain from the configured provider list.
// Providers that fail to construct are skipped with a warning.
func buildChain(cfg model.Config, classifier coherence.Classifier, m *metrics.Metrics, logger *slog.Logger) (*extract.Chain, error) {
	var providers []extract.Provider
	for _, entry := range cfg.Extraction.Providers {
		p, err := llm.NewProvider(llm.ConfigFromModel(entry, cfg.Extraction.MaxTokens, cfg.HTTP))
		if err != nil {
			logger.Warn("skipping extraction provider", "provider", entry.Provider, "error", err)
			continue
		}
		if p == nil {
			continue
		}
		providers = append(providers, extract.NewLLMProvider(p, cfg.Extraction.MaxTokens))
	}
	if cfg.Extraction.HeuristicFallback {
		providers = append(providers, extract.NewHeuristicProvider(classifier))
	}
	if len(cfg.Extraction.Providers) > 0 && len(providers) == 0 {
		return nil, errors.New("no extraction provider could be configured")
	}
	return extract.NewChain(providers, cfg.Extraction.Timeout, logger, extract.WithObserver(m.ExtractionAttempt)), nil
}

// resolvePaths fills the default cache and storage locations under ~/.promessa.
func resolvePaths(cfg *model.Config) error {
	if cfg.Cache.Dir != "" && cfg.Storage.Path != "" {
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("find home directory: %w", err)
	}
	base := filepath.Join(home, ".promessa")
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = filepath.Join(base, "cache")
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(base, "promessa.db")
	}
	return nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() model.Config { return p.cfg }

// Audit runs one audit through the shared job manager, so identical
// concurrent requests share a single computation.
func (p *Pipeline) Audit(ctx context.Context, req audit.Request) (*model.AuditReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return p.Jobs.Run(ctx, req.Fingerprint(), func(ctx context.Context) (*model.AuditReport, error) {
		return p.audit(ctx, req)
	})
}

// audit is the timed, metered orchestrator call that jobs execute.
func (p *Pipeline) audit(ctx context.Context, req audit.Request) (*model.AuditReport, error) {
	start := time.Now()
	report, err := p.Auditor.Audit(ctx, req)
	if err != nil {
		return nil, err
	}
	p.Metrics.AuditCompleted(string(report.Verdict), time.Since(start))
	return report, nil
}

// Search scouts one subject.
func (p *Pipeline) Search(ctx context.Context, subject string) ([]model.ScoutResult, error) {
	return p.Scout.Search(ctx, subject)
}

// Batch returns a processor that scouts many subjects with bounded concurrency.
func (p *Pipeline) Batch(concurrency int) *worker.BatchProcessor {
	return worker.NewBatchProcessor(p, concurrency, p.logger)
}

// BudgetHistory returns per-year execution for a category.
func (p *Pipeline) BudgetHistory(ctx context.Context, category string, startYear, endYear int, sphere model.Sphere) []model.BudgetComparison {
	return p.Budget.GetBudgetHistory(ctx, category, startYear, endYear, sphere)
}

// Server builds the HTTP surface over this pipeline.
func (p *Pipeline) Server() *api.Server {
	return api.New(p.cfg.Server, api.Deps{
		Auditor: auditorFunc(p.audit),
		Jobs:    p.Jobs,
		Scout:   p.Scout,
		Reports: p.Store,
		Metrics: p.Metrics,
		Logger:  p.logger,
	})
}

type auditorFunc func(ctx context.Context, req audit.Request) (*model.AuditReport, error)

func (f auditorFunc) Audit(ctx context.Context, req audit.Request) (*model.AuditReport, error) {
	return f(ctx, req)
}

// Close waits for running jobs until ctx ends, then closes the store.
func (p *Pipeline) Close(ctx context.Context) error {
	drainErr := p.Jobs.Drain(ctx)
	if drainErr != nil {
		p.logger.Warn("jobs still running at shutdown", "in_flight", p.Jobs.InFlight())
	}
	return errors.Join(drainErr, p.Store.Close())
}
