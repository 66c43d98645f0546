package budget

import (
	"context"
	"fmt"

	"github.com/ppiankov/promessa/internal/model"
)

// ValidateBudgetViability checks a claimed amount against the budget line.
// The claim is viable iff claimedAmount <= totalBudget * tolerance.
func (p *Provider) ValidateBudgetViability(ctx context.Context, category string, claimedAmount float64, year int, sphere model.Sphere) model.Viability {
	bc, ok := p.GetBudgetData(ctx, category, year, sphere)
	if !ok {
		return model.Viability{
			Viable: false,
			Known:  false,
			Reason: fmt.Sprintf("sem dados orçamentários para %s em %d; viabilidade desconhecida", SiconfiCode(mustCategory(category)), year),
		}
	}
	return CompareToBudget(claimedAmount, bc.TotalBudget, p.tolerance)
}

// CompareToBudget applies the tolerance rule and explains it in the scale
// (milhões or bilhões) used for the comparison.
func CompareToBudget(claimedAmount, totalBudget, tolerance float64) model.Viability {
	limit := totalBudget * tolerance
	viable := claimedAmount <= limit

	div, unit := scaleFor(max(claimedAmount, limit))
	relation := "dentro do"
	if !viable {
		relation = "acima do"
	}

	return model.Viability{
		Viable: viable,
		Known:  true,
		Reason: fmt.Sprintf("valor prometido de R$ %.2f %s está %s limite de R$ %.2f %s (orçamento de R$ %.2f %s x tolerância %.2f)",
			claimedAmount/div, unit, relation, limit/div, unit, totalBudget/div, unit, tolerance),
	}
}

func scaleFor(v float64) (float64, string) {
	switch {
	case v >= 1e9:
		return 1e9, "bilhões"
	case v >= 1e6:
		return 1e6, "milhões"
	default:
		return 1, "reais"
	}
}

func mustCategory(name string) model.Category {
	c, _ := NormalizeCategory(name)
	return c
}
