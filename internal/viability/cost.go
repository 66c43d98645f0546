package viability

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/promessa/internal/util"
)

// amountPattern runs on folded text. Longer unit spellings come first so the
// alternation never settles on a prefix.
var amountPattern = regexp.MustCompile(
	`(r\$|us\$|\$)?\s*(\d+(?:[.,]\d+)*)\s*(trilhoes|trilhao|trillion|tri|bilhoes|bilhao|billion|bn|bi|milhoes|milhao|million|mn|mi|mil|thousand)?\b(\s+de\s+reais|\s+reais|\s+dollars)?`)

var multipliers = map[string]float64{
	"trilhoes": 1e12, "trilhao": 1e12, "trillion": 1e12, "tri": 1e12,
	"bilhoes": 1e9, "bilhao": 1e9, "billion": 1e9, "bn": 1e9, "bi": 1e9,
	"milhoes": 1e6, "milhao": 1e6, "million": 1e6, "mn": 1e6, "mi": 1e6,
	"mil": 1e3, "thousand": 1e3,
}

// ParseImpliedCost finds the largest monetary amount in text, in reais.
// An amount counts as money when it carries a currency marker or a billion
// scale unit, so "1 milhão de empregos" is not a cost.
func ParseImpliedCost(text string) (float64, bool) {
	folded := util.Fold(text)

	best, found := 0.0, false
	for _, m := range amountPattern.FindAllStringSubmatch(folded, -1) {
		currency, number, unit, suffix := m[1], m[2], m[3], m[4]

		mult := 1.0
		if unit != "" {
			mult = multipliers[unit]
		}
		if currency == "" && suffix == "" && mult < 1e9 {
			continue
		}

		value, ok := parseNumber(number)
		if !ok {
			continue
		}
		amount := value * mult
		if amount > best {
			best, found = amount, true
		}
	}
	return best, found && best > 0
}

// parseNumber reads pt-BR and English digit groupings: "2,5", "1.500.000",
// "1,500,000" and "2.5".
func parseNumber(s string) (float64, bool) {
	dots, commas := strings.Count(s, "."), strings.Count(s, ",")

	switch {
	case dots > 0 && commas > 0:
		// The later separator is the decimal one.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas == 1 && len(s)-strings.Index(s, ",")-1 <= 2:
		s = strings.Replace(s, ",", ".", 1)
	case commas > 0:
		s = strings.ReplaceAll(s, ",", "")
	case dots > 1 || (dots == 1 && len(s)-strings.Index(s, ".")-1 == 3):
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}
