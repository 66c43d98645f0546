package budget

import (
	"strings"

	"github.com/ppiankov/promessa/internal/model"
	"github.com/ppiankov/promessa/internal/util"
)

// siconfiCodes maps the pipeline taxonomy to SICONFI budget functions.
var siconfiCodes = map[model.Category]string{
	model.CategoryEducation:      "EDUCACAO",
	model.CategoryHealth:         "SAUDE",
	model.CategoryInfrastructure: "INFRAESTRUTURA",
	model.CategoryEmployment:     "EMPREGO",
	model.CategoryEconomy:        "ECONOMIA",
	model.CategorySecurity:       "SEGURANCA",
	model.CategoryEnvironment:    "MEIO_AMBIENTE",
	model.CategorySocial:         "ASSISTENCIA_SOCIAL",
	model.CategoryAgriculture:    "AGRICULTURA",
	model.CategoryTransport:      "TRANSPORTES",
	model.CategoryCulture:        "CULTURA",
}

// synonyms are folded category names accepted from callers and extractors.
var synonyms = map[string]model.Category{
	"educacao": model.CategoryEducation, "ensino": model.CategoryEducation, "escola": model.CategoryEducation,
	"education": model.CategoryEducation, "educacao basica": model.CategoryEducation,

	"saude": model.CategoryHealth, "health": model.CategoryHealth, "sus": model.CategoryHealth,
	"saude publica": model.CategoryHealth,

	"infraestrutura": model.CategoryInfrastructure, "infrastructure": model.CategoryInfrastructure,
	"obras": model.CategoryInfrastructure, "saneamento": model.CategoryInfrastructure,
	"urbanismo": model.CategoryInfrastructure,

	"emprego": model.CategoryEmployment, "trabalho": model.CategoryEmployment,
	"employment": model.CategoryEmployment, "jobs": model.CategoryEmployment,

	"economia": model.CategoryEconomy, "economy": model.CategoryEconomy, "fiscal": model.CategoryEconomy,
	"impostos": model.CategoryEconomy, "tributos": model.CategoryEconomy,

	"seguranca": model.CategorySecurity, "seguranca publica": model.CategorySecurity,
	"security": model.CategorySecurity, "policia": model.CategorySecurity,

	"meio ambiente": model.CategoryEnvironment, "meio_ambiente": model.CategoryEnvironment,
	"ambiente": model.CategoryEnvironment, "environment": model.CategoryEnvironment,
	"gestao ambiental": model.CategoryEnvironment,

	"social": model.CategorySocial, "assistencia social": model.CategorySocial,
	"assistencia_social": model.CategorySocial, "moradia": model.CategorySocial,
	"habitacao": model.CategorySocial,

	"agricultura": model.CategoryAgriculture, "agriculture": model.CategoryAgriculture,
	"agro": model.CategoryAgriculture,

	"transporte": model.CategoryTransport, "transportes": model.CategoryTransport,
	"transport": model.CategoryTransport, "mobilidade": model.CategoryTransport,

	"cultura": model.CategoryCulture, "culture": model.CategoryCulture,
}

// NormalizeCategory maps a category name or synonym to the pipeline taxonomy.
// Upstream codes such as EDUCACAO are accepted too. Unknown names yield
// GENERAL and false.
func NormalizeCategory(name string) (model.Category, bool) {
	if c, ok := model.ParseCategory(name); ok {
		return c, true
	}

	folded := util.Fold(name)
	if c, ok := synonyms[folded]; ok {
		return c, true
	}

	upper := strings.ToUpper(strings.ReplaceAll(folded, " ", "_"))
	for c, code := range siconfiCodes {
		if code == upper {
			return c, true
		}
	}
	return model.CategoryGeneral, false
}

// SiconfiCode returns the upstream budget function code for c.
func SiconfiCode(c model.Category) string {
	if code, ok := siconfiCodes[c]; ok {
		return code
	}
	return "GERAL"
}
