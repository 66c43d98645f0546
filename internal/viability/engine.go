// Package viability scores how fundable a promise is against budget execution.
package viability

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ppiankov/promessa/internal/budget"
	"github.com/ppiankov/promessa/internal/model"
)

// BudgetSource is the slice of the budget provider the engine needs.
type BudgetSource interface {
	GetBudgetData(ctx context.Context, category string, year int, sphere model.Sphere) (*model.BudgetContext, bool)
}

// Engine blends execution rate, implied cost and voting into a 0-100 score.
type Engine struct {
	budget    BudgetSource
	weights   model.ScoringConfig
	tolerance float64
	now       func() time.Time
}

// NewEngine creates an engine. Zero weights fall back to the defaults.
func NewEngine(src BudgetSource, weights model.ScoringConfig, tolerance float64) *Engine {
	def := model.DefaultConfig().Scoring
	if weights.ExecutionWeight == 0 && weights.CostWeight == 0 {
		weights.ExecutionWeight, weights.CostWeight = def.ExecutionWeight, def.CostWeight
	}
	if weights.NeutralScore == 0 {
		weights.NeutralScore = def.NeutralScore
	}
	if tolerance <= 0 {
		tolerance = 1
	}
	return &Engine{budget: src, weights: weights, tolerance: tolerance, now: time.Now}
}

// Assessment is the budget half of an audit.
type Assessment struct {
	BudgetContext    *model.BudgetContext
	ImpliedCost      float64
	ImpliedCostKnown bool
	// Viability is only set when both an implied cost and a budget are known.
	Viability *model.Viability
	Score     int
	Signals   []model.Signal
}

// RateKnown reports whether an execution rate is available.
func (a Assessment) RateKnown() bool {
	return a.BudgetContext != nil
}

// AuditBudget fetches the budget line for the promise and scores it without
// any voting penalty. year 0 means the current year.
func (e *Engine) AuditBudget(ctx context.Context, p model.Promise, year int, sphere model.Sphere) Assessment {
	if year == 0 {
		year = e.now().Year()
	}
	if sphere == "" {
		sphere = budget.DetectSphere(p.Text)
	}

	var a Assessment
	if e.budget != nil {
		if bc, ok := e.budget.GetBudgetData(ctx, string(p.Category), year, sphere); ok {
			a.BudgetContext = bc
		}
	}
	a.ImpliedCost, a.ImpliedCostKnown = ParseImpliedCost(p.Text)

	if a.BudgetContext != nil && a.ImpliedCostKnown {
		v := budget.CompareToBudget(a.ImpliedCost, a.BudgetContext.TotalBudget, e.tolerance)
		a.Viability = &v
	}

	a.Score, a.Signals = e.Score(a, false)
	return a
}

// Score computes the viability score and the signals explaining it:
//
//	score = ExecutionWeight*rate + CostWeight*costScore - VotePenalty(if voted against)
//
// clamped to [0,100]. Unknown rate or cost use the neutral score.
func (e *Engine) Score(a Assessment, votedAgainst bool) (int, []model.Signal) {
	var signals []model.Signal

	rate := e.weights.NeutralScore
	if a.BudgetContext != nil {
		rate = math.Min(a.BudgetContext.ExecutionRate, 100)
		signals = append(signals, rateSignal(a.BudgetContext))
	} else {
		signals = append(signals, model.Signal{
			Type:        model.SignalMissingData,
			Severity:    model.SeverityWarning,
			Description: "Dados de execução orçamentária indisponíveis; taxa tratada como desconhecida",
			Data:        map[string]interface{}{"neutral_score": e.weights.NeutralScore},
		})
	}

	costScore := e.weights.NeutralScore
	if a.ImpliedCostKnown && a.BudgetContext != nil && a.BudgetContext.TotalBudget > 0 {
		ratio := a.ImpliedCost / (a.BudgetContext.TotalBudget * e.tolerance)
		costScore = clampFloat(100*(1-ratio), 0, 100)

		severity := model.SeverityInfo
		if ratio > 1 {
			severity = model.SeverityCritical
		}
		desc := fmt.Sprintf("Custo implícito de R$ %.2f frente ao orçamento de R$ %.2f", a.ImpliedCost, a.BudgetContext.TotalBudget)
		if a.Viability != nil {
			desc = a.Viability.Reason
		}
		signals = append(signals, model.Signal{
			Type:        model.SignalImpliedCost,
			Severity:    severity,
			Description: desc,
			Data: map[string]interface{}{
				"implied_cost": a.ImpliedCost,
				"total_budget": a.BudgetContext.TotalBudget,
				"tolerance":    e.tolerance,
				"cost_score":   costScore,
				"formula":      "100 * (1 - implied_cost / (total_budget * tolerance))",
			},
		})
	}

	raw := e.weights.ExecutionWeight*rate + e.weights.CostWeight*costScore
	if votedAgainst {
		raw -= e.weights.VotePenalty
		signals = append(signals, model.Signal{
			Type:        model.SignalVotePenalty,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Penalidade de %.0f pontos por voto contrário ao tema", e.weights.VotePenalty),
			Data:        map[string]interface{}{"penalty": e.weights.VotePenalty},
		})
	}

	return int(math.Round(clampFloat(raw, 0, 100))), signals
}

func rateSignal(bc *model.BudgetContext) model.Signal {
	severity := model.SeverityInfo
	switch {
	case bc.ExecutionRate < 30:
		severity = model.SeverityCritical
	case bc.ExecutionRate < 60:
		severity = model.SeverityWarning
	}
	return model.Signal{
		Type:     model.SignalExecutionRate,
		Severity: severity,
		Description: fmt.Sprintf("Execução de %.1f%% do orçamento de %s em %d (%s)",
			bc.ExecutionRate, bc.Category, bc.Year, bc.Sphere),
		Data: map[string]interface{}{
			"total_budget":    bc.TotalBudget,
			"executed_budget": bc.ExecutedBudget,
			"execution_rate":  bc.ExecutionRate,
			"formula":         "executed_budget / total_budget * 100",
		},
	}
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
