package audit

import (
	"fmt"
	"strings"

	"github.com/ppiankov/promessa/internal/coherence"
	"github.com/ppiankov/promessa/internal/model"
)

// Verdict thresholds on the execution rate, in percent.
const (
	HollowBelow        = 30.0
	RealisticAtOrAbove = 60.0
)

// Disclaimer closes every explanation.
const Disclaimer = "Estimativa probabilística, não uma prova."

// Synthesize applies the verdict rule. An unknown rate always yields DUVIDOSA.
func Synthesize(votedAgainst bool, rate float64, rateKnown bool) model.Verdict {
	if !rateKnown {
		return model.VerdictDuvidosa
	}
	switch {
	case votedAgainst && rate < HollowBelow:
		return model.VerdictVazia
	case !votedAgainst && rate >= RealisticAtOrAbove:
		return model.VerdictRealista
	default:
		return model.VerdictDuvidosa
	}
}

// Explain assembles the explanation from the same fields the verdict rule
// reads, so the two cannot disagree.
func Explain(r *model.AuditReport) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Veredito: %s.", r.Verdict))

	label := coherence.Label(r.Category)
	if bc := r.BudgetContext; bc != nil {
		parts = append(parts, fmt.Sprintf("A área de %s executou %.1f%% do orçamento previsto em %d (esfera %s).",
			label, bc.ExecutionRate, bc.Year, strings.ToLower(string(bc.Sphere))))
	} else {
		parts = append(parts, fmt.Sprintf("Dados de execução orçamentária para %s indisponíveis; a taxa de execução é desconhecida.", label))
	}

	pc := r.PoliticalConsistency
	switch {
	case !pc.Known:
		caveat := pc.Caveat
		if caveat == "" {
			caveat = "Histórico de votações indisponível."
		}
		parts = append(parts, caveat+" Sem esse histórico não é possível demonstrar incoerência.")
	case pc.VotedAgainstTheme && pc.Contradiction != nil:
		parts = append(parts, strings.TrimRight(pc.Contradiction.Justification, ". ")+".")
	case pc.VotedAgainstTheme:
		parts = append(parts, "Há registro de voto contrário ao tema.")
	default:
		parts = append(parts, fmt.Sprintf("Nenhum voto contrário ao tema foi encontrado entre %d votação(ões) relacionada(s).", len(pc.RelevantVotes)))
	}

	parts = append(parts, reason(r))
	parts = append(parts, fmt.Sprintf("Pontuação de viabilidade: %d/100.", r.ViabilityScore))
	parts = append(parts, Disclaimer)
	return strings.Join(parts, " ")
}

func reason(r *model.AuditReport) string {
	voted := r.PoliticalConsistency.VotedAgainstTheme
	switch r.Verdict {
	case model.VerdictVazia:
		return "Voto contrário ao tema somado a execução abaixo de 30% indica promessa vazia."
	case model.VerdictRealista:
		return "Execução de ao menos 60% sem voto contrário ao tema indica promessa realista."
	}
	switch {
	case r.BudgetContext == nil:
		return "Sem taxa de execução conhecida, a promessa não pode ser classificada como realista nem como vazia."
	case voted:
		return "O voto contrário ao tema impede a classificação como realista, e a execução não é baixa o bastante para classificá-la como vazia."
	default:
		return "Execução abaixo de 60% não sustenta a classificação como realista."
	}
}
