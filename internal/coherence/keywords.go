package coherence

import "github.com/ppiankov/promessa/internal/model"

// themeRule ties a category to the folded keywords that signal it.
type themeRule struct {
	category model.Category
	label    string
	keywords []string
}

// defaultThemes mixes Portuguese and English markers; all entries are folded.
var defaultThemes = []themeRule{
	{model.CategoryEducation, "educação", []string{
		"educacao", "escola", "ensino", "universidade", "professor", "merenda", "fundeb",
		"mec", "piso do magisterio", "creche", "alfabetizacao",
		"education", "school", "classroom", "university",
	}},
	{model.CategoryHealth, "saúde", []string{
		"saude", "hospital", "medico", "sus", "vacina", "medicamento", "enfermagem", "upa",
		"health", "doctor", "vaccine", "medicine",
	}},
	{model.CategorySecurity, "segurança", []string{
		"seguranca", "policia", "crime", "violencia", "armas", "penal", "drogas", "presidio",
		"security", "police", "violence", "weapons",
	}},
	{model.CategoryEconomy, "economia", []string{
		"economia", "imposto", "tributo", "tributaria", "fiscal", "orcamento", "gasto", "teto",
		"economy", "tax", "taxes", "budget", "spending",
	}},
	{model.CategoryInfrastructure, "infraestrutura", []string{
		"infraestrutura", "obra", "obras", "estrada", "rodovia", "ponte", "saneamento",
		"asfalto", "pavimentacao", "infrastructure", "road", "bridge", "sanitation",
	}},
	{model.CategoryEmployment, "emprego", []string{
		"emprego", "desemprego", "trabalho", "trabalhador", "salario minimo", "clt",
		"employment", "jobs", "unemployment", "wage",
	}},
	{model.CategoryEnvironment, "meio ambiente", []string{
		"meio ambiente", "ambiental", "desmatamento", "floresta", "amazonia", "clima",
		"environment", "deforestation", "forest", "climate",
	}},
	{model.CategorySocial, "assistência social", []string{
		"assistencia social", "bolsa familia", "moradia", "habitacao", "pobreza", "fome",
		"welfare", "housing", "poverty", "hunger",
	}},
	{model.CategoryAgriculture, "agricultura", []string{
		"agricultura", "agricultor", "agronegocio", "rural", "safra", "reforma agraria",
		"agriculture", "farm", "farmers",
	}},
	{model.CategoryTransport, "transporte", []string{
		"transporte", "onibus", "metro", "mobilidade", "ferrovia", "tarifa zero",
		"transport", "transit", "subway", "railway",
	}},
	{model.CategoryCulture, "cultura", []string{
		"cultura", "cultural", "museu", "patrimonio historico", "lei rouanet",
		"culture", "museum",
	}},
}

// positiveMarkers signal a promise to expand or support a theme.
var positiveMarkers = []string{
	"aumentar", "aumento", "ampliar", "investir", "investimento", "apoiar", "criar",
	"melhorar", "dobrar", "triplicar", "construir", "expandir", "garantir", "fortalecer",
	"valorizar", "financiar", "universalizar",
	"increase", "invest", "support", "create", "improve", "expand", "double", "triple",
	"build", "fund", "funding", "raise", "strengthen",
}

// negativeMarkers signal a promise to contract a theme; they only count
// when paired with a spending marker.
var negativeMarkers = []string{
	"reduzir", "cortar", "diminuir", "enxugar", "conter", "extinguir",
	"cut", "reduce", "slash", "shrink",
}

var spendingMarkers = []string{
	"gasto", "gastos", "orcamento", "verba", "verbas", "despesa", "despesas", "custeio",
	"spending", "budget", "expenses",
}

// reductionMarkers flag bills that cut or freeze resources for their theme.
var reductionMarkers = []string{
	"reduz", "reducao", "corte", "corta", "contingenciamento", "contingencia",
	"congela", "congelamento", "limita", "teto de gastos", "extingue", "revoga",
	"desvincula", "cuts", "reduce", "reduces", "freeze", "freezes", "repeal",
}

// Label returns the Portuguese display name of c.
func Label(c model.Category) string {
	for _, r := range defaultThemes {
		if r.category == c {
			return r.label
		}
	}
	return "tema geral"
}
