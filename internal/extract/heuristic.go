package extract

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/ppiankov/promessa/internal/coherence"
	"github.com/ppiankov/promessa/internal/model"
	"github.com/ppiankov/promessa/internal/util"
)

// HeuristicProvider finds promise sentences by keyword when no language
// model is reachable. Its confidence never exceeds 0.9.
type HeuristicProvider struct {
	markers    []string
	negations  []string
	conditions []string
	classifier coherence.Classifier
}

// NewHeuristicProvider creates a heuristic extractor. classifier may be nil.
func NewHeuristicProvider(classifier coherence.Classifier) *HeuristicProvider {
	if classifier == nil {
		classifier = coherence.Default
	}
	return &HeuristicProvider{
		markers: []string{
			"vou", "vamos", "prometo", "farei", "construirei", "criarei", "aumentarei", "reduzirei",
			"irei", "iremos", "pretendo", "garanto",
			"compromisso", "meta", "sera criado", "serao criados",
			"will", "promise", "pledge", "commit", "we are going to",
		},
		negations:  []string{"nao vou", "nao vamos", "nunca", "jamais", "will not", "won't", "never"},
		conditions: []string{"se ", "caso ", "desde que", "if ", "unless"},
		classifier: classifier,
	}
}

func (h *HeuristicProvider) Name() string {
	return "heuristic"
}

// Extract accepts plain text or HTML.
func (h *HeuristicProvider) Extract(ctx context.Context, content string) (*model.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := content
	if looksLikeHTML(content) {
		doc, err := html.Parse(strings.NewReader(content))
		if err == nil {
			text = extractVisibleText(doc)
		}
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 && strings.TrimSpace(text) != "" {
		sentences = []string{strings.TrimSpace(text)}
	}

	var claims []model.Claim
	for _, sentence := range sentences {
		folded := util.Fold(sentence)
		marker, ok := util.ContainsAny(folded, h.markers)
		if !ok {
			continue
		}

		conditional := false
		for _, c := range h.conditions {
			if strings.HasPrefix(folded, c) || strings.Contains(folded, " "+c) {
				conditional = true
				break
			}
		}
		_, negated := util.ContainsAny(folded, h.negations)

		claims = append(claims, model.Claim{
			Text:        sentence,
			Category:    h.classifier.Theme(sentence),
			Confidence:  heuristicConfidence(sentence, conditional),
			Negated:     negated,
			Conditional: conditional,
			Reasoning:   "keyword:" + marker,
		})
	}

	return &model.Analysis{
		Promises:         dedupeClaims(claims),
		OverallSentiment: "Heurístico",
		CredibilityScore: 50,
		Model:            "keyword-v1",
	}, nil
}

// heuristicConfidence rewards concrete figures and penalizes conditions.
func heuristicConfidence(sentence string, conditional bool) float64 {
	c := 0.5
	if strings.IndexFunc(sentence, unicode.IsDigit) >= 0 {
		c += 0.2
	}
	if strings.Contains(sentence, "R$") || strings.Contains(sentence, "%") {
		c += 0.2
	}
	if conditional {
		c -= 0.2
	}
	return clamp(c, 0.1, 0.9)
}

func looksLikeHTML(s string) bool {
	trimmed := strings.TrimSpace(s)
	return strings.HasPrefix(trimmed, "<") && strings.Contains(trimmed, ">")
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return buf.String()
}

// splitSentences splits on terminators followed by whitespace and keeps
// sentences between 20 and 500 bytes.
func splitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")

	var sentences []string
	var current strings.Builder

	keep := func() {
		sentence := strings.TrimSpace(current.String())
		if len(sentence) >= 20 && len(sentence) <= 500 {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == ';' {
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t') {
				keep()
			}
		}
	}
	if current.Len() > 0 {
		keep()
	}

	return sentences
}

// dedupeClaims removes claims whose folded text repeats.
func dedupeClaims(claims []model.Claim) []model.Claim {
	seen := make(map[string]bool)
	unique := []model.Claim{}

	for _, claim := range claims {
		key := util.Fold(claim.Text)
		if !seen[key] {
			seen[key] = true
			unique = append(unique, claim)
		}
	}
	return unique
}
