// Package audit joins budget execution, voting history and the incoherence
// heuristic into a single verdict per promise.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/promessa/internal/budget"
	"github.com/ppiankov/promessa/internal/coherence"
	"github.com/ppiankov/promessa/internal/model"
	"github.com/ppiankov/promessa/internal/util"
	"github.com/ppiankov/promessa/internal/viability"
)

// VotingSource resolves legislators and returns their roll-call history.
type VotingSource interface {
	ResolveIdentifier(ctx context.Context, name string) (string, error)
	GetVotingHistory(ctx context.Context, id string) ([]model.VoteRecord, error)
}

// BudgetScorer is the viability engine as seen by the auditor.
type BudgetScorer interface {
	AuditBudget(ctx context.Context, p model.Promise, year int, sphere model.Sphere) viability.Assessment
	Score(a viability.Assessment, votedAgainst bool) (int, []model.Signal)
}

// Extractor structures free text into claims.
type Extractor interface {
	Extract(ctx context.Context, text string) (*model.Analysis, error)
}

// ReportSaver persists finished reports. Save failures are logged, not returned.
type ReportSaver interface {
	SaveReport(ctx context.Context, report *model.AuditReport) error
}

// Request is one audit invocation.
type Request struct {
	PromiseText  string       `json:"promise_text"`
	Category     string       `json:"category,omitempty"`
	PoliticianID string       `json:"politician_id"`
	Year         int          `json:"year,omitempty"`   // 0 uses the configured reference year
	Sphere       model.Sphere `json:"sphere,omitempty"` // empty detects it from the text
}

// Fingerprint identifies the request for deduplication. Year and sphere
// join the politician, text and category only when set, so requests that
// leave them to defaults keep a stable key.
func (r Request) Fingerprint() string {
	parts := []string{r.PoliticianID, r.PromiseText, r.Category}
	if r.Year != 0 {
		parts = append(parts, "year="+strconv.Itoa(r.Year))
	}
	if r.Sphere != "" {
		parts = append(parts, "sphere="+string(r.Sphere))
	}
	return util.Fingerprint(parts...)
}

// Validate rejects requests that cannot be audited.
func (r Request) Validate() error {
	if strings.TrimSpace(r.PromiseText) == "" {
		return fmt.Errorf("%w: promise text is required", model.ErrInvalidInput)
	}
	if r.Year < 0 {
		return fmt.Errorf("%w: year must be positive", model.ErrInvalidInput)
	}
	switch r.Sphere {
	case "", model.SphereFederal, model.SphereState, model.SphereMunicipal:
	default:
		return fmt.Errorf("%w: unknown sphere %q", model.ErrInvalidInput, r.Sphere)
	}
	return nil
}

// Auditor is the audit orchestrator.
type Auditor struct {
	voting      VotingSource
	budget      BudgetScorer
	extractor   Extractor
	classifier  coherence.Classifier
	reports     ReportSaver
	stepTimeout time.Duration
	year        int
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithExtractor sets the claim extractor used when no category is supplied.
func WithExtractor(e Extractor) Option {
	return func(a *Auditor) { a.extractor = e }
}

// WithClassifier replaces the keyword classifier.
func WithClassifier(c coherence.Classifier) Option {
	return func(a *Auditor) { a.classifier = c }
}

// WithReportSaver persists every finished report.
func WithReportSaver(s ReportSaver) Option {
	return func(a *Auditor) { a.reports = s }
}

// WithReferenceYear fixes the budget year audited by default.
func WithReferenceYear(year int) Option {
	return func(a *Auditor) { a.year = year }
}

// New creates an auditor. stepTimeout bounds each external step.
func New(voting VotingSource, scorer BudgetScorer, stepTimeout time.Duration, logger *slog.Logger, opts ...Option) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	if stepTimeout <= 0 {
		stepTimeout = 10 * time.Second
	}
	a := &Auditor{
		voting:      voting,
		budget:      scorer,
		classifier:  coherence.Default,
		stepTimeout: stepTimeout,
		logger:      logger.With("component", "audit"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AuditPromise audits a promise for a politician (numeric id or name).
func (a *Auditor) AuditPromise(ctx context.Context, promiseText, category, politicianID string) (*model.AuditReport, error) {
	return a.Audit(ctx, Request{PromiseText: promiseText, Category: category, PoliticianID: politicianID})
}

// Audit runs the voting step concurrently with category resolution and the
// budget step, then synthesizes the verdict once both have finished.
// Upstream failures degrade the report. Only a failed extraction, which is
// needed when the caller gave no usable category, fails the audit.
func (a *Auditor) Audit(ctx context.Context, req Request) (*model.AuditReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.PromiseText = strings.TrimSpace(req.PromiseText)
	start := a.now()

	var (
		votes      []model.VoteRecord
		votingErr  error
		promise    model.Promise
		extraction *model.ExtractionInfo
		assessment viability.Assessment
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		votes, votingErr = a.votingStep(gctx, req.PoliticianID)
		return nil
	})

	g.Go(func() error {
		var err error
		promise, extraction, err = a.resolvePromise(gctx, req)
		if err != nil {
			return err
		}
		stepCtx, cancel := context.WithTimeout(gctx, a.stepTimeout)
		defer cancel()
		year := req.Year
		if year == 0 {
			year = a.year
		}
		assessment = a.budget.AuditBudget(stepCtx, promise, year, req.Sphere)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	consistency := a.consistency(promise, req.PoliticianID, votes, votingErr)
	score, signals := a.budget.Score(assessment, consistency.VotedAgainstTheme)
	if consistency.Contradiction != nil {
		signals = append(signals, model.Signal{
			Type:        model.SignalIncoherence,
			Severity:    model.SeverityWarning,
			Description: consistency.Contradiction.Justification,
			Data:        map[string]interface{}{"vote_id": consistency.Contradiction.VoteID},
		})
	}

	rate := 0.0
	if assessment.BudgetContext != nil {
		rate = assessment.BudgetContext.ExecutionRate
	}

	report := &model.AuditReport{
		ID:                   uuid.NewString(),
		Fingerprint:          req.Fingerprint(),
		PoliticianID:         req.PoliticianID,
		Promise:              req.PromiseText,
		Category:             promise.Category,
		ViabilityScore:       score,
		BudgetContext:        assessment.BudgetContext,
		PoliticalConsistency: consistency,
		Verdict:              Synthesize(consistency.VotedAgainstTheme, rate, assessment.RateKnown()),
		Signals:              signals,
		Extraction:           extraction,
		CreatedAt:            a.now().UTC(),
	}
	report.Explanation = Explain(report)

	if a.reports != nil {
		if err := a.reports.SaveReport(context.WithoutCancel(ctx), report); err != nil {
			a.logger.Warn("failed to persist report", "fingerprint", report.Fingerprint, "error", err)
		}
	}

	a.logger.Info("audit complete",
		"politician", req.PoliticianID,
		"category", report.Category,
		"verdict", report.Verdict,
		"score", report.ViabilityScore,
		"duration", a.now().Sub(start))
	return report, nil
}

// resolvePromise settles the promise category. A usable caller category wins;
// otherwise the extractor is mandatory and its failure fails the audit.
func (a *Auditor) resolvePromise(ctx context.Context, req Request) (model.Promise, *model.ExtractionInfo, error) {
	p := model.Promise{Text: req.PromiseText, PoliticianID: req.PoliticianID}

	if c, ok := budget.NormalizeCategory(req.Category); ok && c != model.CategoryGeneral {
		p.Category = c
		return p, nil, nil
	}

	if a.extractor == nil {
		return p, nil, fmt.Errorf("%w: no category given and no extractor configured", model.ErrExtractionUnavailable)
	}
	analysis, err := a.extractor.Extract(ctx, req.PromiseText)
	if err != nil {
		return p, nil, fmt.Errorf("extract claims: %w", err)
	}

	info := &model.ExtractionInfo{Provider: analysis.Provider, Model: analysis.Model, Claims: len(analysis.Promises)}
	p.Category = model.CategoryGeneral
	if best := analysis.Strongest(); best != nil && best.Category.IsKnown() {
		p.Category = best.Category
	}
	if p.Category == model.CategoryGeneral {
		p.Category = a.classifier.Theme(req.PromiseText)
	}
	return p, info, nil
}

func (a *Auditor) votingStep(ctx context.Context, politician string) ([]model.VoteRecord, error) {
	politician = strings.TrimSpace(politician)
	if politician == "" {
		return nil, errNoPolitician
	}
	if a.voting == nil {
		return nil, fmt.Errorf("%w: no voting source configured", model.ErrUpstreamUnavailable)
	}

	stepCtx, cancel := context.WithTimeout(ctx, a.stepTimeout)
	defer cancel()

	id, err := a.voting.ResolveIdentifier(stepCtx, politician)
	if err != nil {
		return nil, err
	}
	votes, err := a.voting.GetVotingHistory(stepCtx, id)
	if err != nil {
		return nil, err
	}
	return votes, nil
}

var errNoPolitician = errors.New("no politician given")

func (a *Auditor) consistency(p model.Promise, politician string, votes []model.VoteRecord, err error) model.PoliticalConsistency {
	if err == nil {
		return coherence.AnalyzeAll(a.classifier, p, votes)
	}

	pc := model.PoliticalConsistency{Known: false, RelevantVotes: []model.VoteRecord{}}
	switch {
	case errors.Is(err, errNoPolitician):
		pc.Caveat = "Nenhum parlamentar informado; consistência de votos desconhecida."
	case errors.Is(err, model.ErrIdentifierNotFound):
		pc.Caveat = fmt.Sprintf("Parlamentar %q não encontrado no cadastro legislativo; consistência de votos desconhecida.", politician)
	default:
		pc.Caveat = "Histórico de votações indisponível no momento; consistência de votos desconhecida."
	}
	a.logger.Warn("voting history unavailable", "politician", politician, "error", err)
	return pc
}
