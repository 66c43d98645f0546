package model

import "strings"

// Category is the theme of a promise, expressed in the pipeline's own taxonomy.
type Category string

const (
	CategoryEducation      Category = "EDUCATION"
	CategoryHealth         Category = "HEALTH"
	CategoryInfrastructure Category = "INFRASTRUCTURE"
	CategoryEmployment     Category = "EMPLOYMENT"
	CategoryEconomy        Category = "ECONOMY"
	CategorySecurity       Category = "SECURITY"
	CategoryEnvironment    Category = "ENVIRONMENT"
	CategorySocial         Category = "SOCIAL"
	CategoryAgriculture    Category = "AGRICULTURE"
	CategoryTransport      Category = "TRANSPORT"
	CategoryCulture        Category = "CULTURE"
	CategoryGeneral        Category = "GENERAL"
)

// Categories lists every known theme in classification order.
var Categories = []Category{
	CategoryEducation,
	CategoryHealth,
	CategorySecurity,
	CategoryEconomy,
	CategoryInfrastructure,
	CategoryEmployment,
	CategoryEnvironment,
	CategorySocial,
	CategoryAgriculture,
	CategoryTransport,
	CategoryCulture,
}

// IsKnown reports whether c is one of the defined categories (GENERAL included).
func (c Category) IsKnown() bool {
	if c == CategoryGeneral {
		return true
	}
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory maps an exact category name (any case) to a Category.
// Synonym handling lives in the budget package.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if c.IsKnown() {
		return c, true
	}
	return "", false
}

// Sphere is the government jurisdiction a budget line belongs to.
type Sphere string

const (
	SphereFederal   Sphere = "FEDERAL"
	SphereState     Sphere = "STATE"
	SphereMunicipal Sphere = "MUNICIPAL"
)

// Promise is a single structured assertion to audit.
type Promise struct {
	Text         string   `json:"text"`
	Category     Category `json:"category"`
	PoliticianID string   `json:"politician_id"`
}
