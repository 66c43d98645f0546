package render

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/promessa/internal/model"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func sampleReport() *model.AuditReport {
	return &model.AuditReport{
		ID:             "r1",
		PoliticianID:   "204554",
		Promise:        "Vou construir 10 creches",
		Category:       model.CategoryEducation,
		ViabilityScore: 24,
		Verdict:        model.VerdictDuvidosa,
		Explanation:    "Veredito: DUVIDOSA.",
		BudgetContext: &model.BudgetContext{
			Category: "EDUCACAO", Year: 2026, Sphere: model.SphereFederal,
			TotalBudget: 2e9, ExecutedBudget: 1.1e9, ExecutionRate: 55,
		},
		Signals: []model.Signal{
			{Type: model.SignalVotePenalty, Severity: model.SeverityCritical, Description: "voted against theme"},
		},
		PoliticalConsistency: model.PoliticalConsistency{
			Known:             true,
			VotedAgainstTheme: true,
			RelevantVotes: []model.VoteRecord{
				{VoteID: "v1", Date: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), BillReference: "PL 1/2025", Vote: model.VoteNo, Summary: "Fundeb"},
			},
			Contradiction: &model.IncoherenceResult{Incoherent: true, VoteID: "v1"},
		},
	}
}

func TestLogHelpersWriteToErrOut(t *testing.T) {
	u, out, errOut := newTestUI()
	u.Info("hello %s", "world")
	u.Success("done %d", 42)
	u.Warning("careful")
	u.Error("failed")
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "hello world")
	assert.Contains(t, errOut.String(), "done 42")
	assert.Contains(t, errOut.String(), "careful")
	assert.Contains(t, errOut.String(), "failed")
}

func TestVerboseLog(t *testing.T) {
	u, _, errOut := newTestUI()
	u.VerboseLog("hidden")
	assert.Empty(t, errOut.String())

	u.Verbose = true
	u.VerboseLog("detail %d", 1)
	assert.Contains(t, errOut.String(), "detail 1")
}

func TestReport_Human(t *testing.T) {
	u, out, _ := newTestUI()
	require.NoError(t, u.Report(sampleReport()))

	s := out.String()
	assert.Contains(t, s, "Vou construir 10 creches")
	assert.Contains(t, s, "DUVIDOSA")
	assert.Contains(t, s, "EDUCACAO 2026")
	assert.Contains(t, s, "R$ 1.10 bi")
	assert.Contains(t, s, "vote_penalty")
	assert.Contains(t, s, "PL 1/2025")
	assert.Contains(t, s, "Veredito: DUVIDOSA.")
}

func TestReport_UnknownBudgetAndVotes(t *testing.T) {
	u, out, _ := newTestUI()
	r := sampleReport()
	r.BudgetContext = nil
	r.PoliticalConsistency = model.PoliticalConsistency{Caveat: "consistência de votos desconhecida"}
	require.NoError(t, u.Report(r))

	assert.Contains(t, out.String(), "desconhecido")
	assert.Contains(t, out.String(), "consistência de votos desconhecida")
}

func TestReport_JSON(t *testing.T) {
	u, out, _ := newTestUI()
	u.JSON = true
	require.NoError(t, u.Report(sampleReport()))

	var got model.AuditReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, model.VerdictDuvidosa, got.Verdict)
	assert.Equal(t, 24, got.ViabilityScore)
}

func TestEmptyListsAsJSONAreArrays(t *testing.T) {
	u, out, _ := newTestUI()
	u.JSON = true

	require.NoError(t, u.ScoutResults(nil))
	require.NoError(t, u.Reports(nil))
	require.NoError(t, u.BudgetHistory(nil))
	assert.Equal(t, "[]\n[]\n[]\n", out.String())
}

func TestEmptyListsHuman(t *testing.T) {
	u, out, errOut := newTestUI()
	require.NoError(t, u.ScoutResults(nil))
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "No new items")
}

func TestScoutResults(t *testing.T) {
	u, out, _ := newTestUI()
	items := []model.ScoutResult{
		{Title: "Deputado anuncia creches", URL: "https://camara.leg.br/n/1", Source: "agencia-camara", Authority: model.TierPrimary},
	}
	require.NoError(t, u.ScoutResults(items))
	assert.Contains(t, out.String(), "Deputado anuncia creches")
	assert.Contains(t, out.String(), "primary")
	assert.Contains(t, out.String(), "https://camara.leg.br/n/1")
}

func TestBudgetHistory(t *testing.T) {
	u, out, _ := newTestUI()
	require.NoError(t, u.BudgetHistory([]model.BudgetComparison{
		{Year: 2025, Budgeted: 1e6, Executed: 5e5, Variance: -5e5, ExecutionRate: 50},
	}))
	assert.Contains(t, out.String(), "2025")
	assert.Contains(t, out.String(), "R$ 1.00 mi")
	assert.Contains(t, out.String(), "-R$ 500.0 mil")
	assert.Contains(t, out.String(), "50.0%")
}

func TestMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{12.5, "R$ 12.50"},
		{1500, "R$ 1.5 mil"},
		{2.5e6, "R$ 2.50 mi"},
		{3e9, "R$ 3.00 bi"},
		{-1e6, "-R$ 1.00 mi"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Money(tt.in))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("  abc ", 10))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
