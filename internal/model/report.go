package model

import "time"

// Verdict is the synthesized judgement of a promise.
type Verdict string

const (
	VerdictRealista Verdict = "REALISTA" // realistic
	VerdictDuvidosa Verdict = "DUVIDOSA" // doubtful
	VerdictVazia    Verdict = "VAZIA"    // hollow
)

// AuditReport is the immutable result of one audit invocation.
type AuditReport struct {
	ID                   string               `json:"id"`
	Fingerprint          string               `json:"fingerprint"`
	PoliticianID         string               `json:"politician_id"`
	Promise              string               `json:"promise"`
	Category             Category             `json:"category"`
	ViabilityScore       int                  `json:"viability_score"` // 0-100
	BudgetContext        *BudgetContext       `json:"budget_context"`  // nil when unknown
	PoliticalConsistency PoliticalConsistency `json:"political_consistency"`
	Verdict              Verdict              `json:"verdict"`
	Explanation          string               `json:"explanation"`
	Signals              []Signal             `json:"signals,omitempty"`
	Extraction           *ExtractionInfo      `json:"extraction,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
}

// ExecutionRateKnown reports whether the report carries budget figures.
func (r *AuditReport) ExecutionRateKnown() bool {
	return r.BudgetContext != nil
}

// ExtractionInfo records which reasoning provider structured the promise.
type ExtractionInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Claims   int    `json:"claims"`
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"` // formulas and inputs
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalExecutionRate SignalType = "execution_rate"
	SignalImpliedCost   SignalType = "implied_cost"
	SignalVotePenalty   SignalType = "vote_penalty"
	SignalIncoherence   SignalType = "incoherence"
	SignalMissingData   SignalType = "missing_data"
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
