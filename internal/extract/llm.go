package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/promessa/internal/budget"
	"github.com/ppiankov/promessa/internal/llm"
	"github.com/ppiankov/promessa/internal/model"
)

const systemPrompt = "Você é um auditor de promessas políticas. Responda apenas com JSON válido."

// LLMProvider asks a language model for the extraction schema.
type LLMProvider struct {
	llm       llm.Provider
	maxTokens int
}

// NewLLMProvider wraps p. maxTokens of zero uses the provider default.
func NewLLMProvider(p llm.Provider, maxTokens int) *LLMProvider {
	return &LLMProvider{llm: p, maxTokens: maxTokens}
}

func (p *LLMProvider) Name() string {
	return p.llm.Name()
}

func (p *LLMProvider) Extract(ctx context.Context, text string) (*model.Analysis, error) {
	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		System:    systemPrompt,
		Prompt:    BuildPrompt(text),
		MaxTokens: p.maxTokens,
		JSON:      true,
	})
	if err != nil {
		return nil, err
	}

	analysis, err := ParseAnalysis(resp.Text)
	if err != nil {
		return nil, err
	}
	analysis.Model = resp.Model
	if analysis.Model == "" {
		analysis.Model = p.llm.Model()
	}
	return analysis, nil
}

// BuildPrompt renders the extraction instructions for text.
func BuildPrompt(text string) string {
	names := make([]string, 0, len(model.Categories)+1)
	for _, c := range model.Categories {
		names = append(names, string(c))
	}
	names = append(names, string(model.CategoryGeneral))

	return fmt.Sprintf(`Analise o texto abaixo e extraia as promessas concretas feitas pelo autor.

REGRAS:
1. Não aceite declarações pelo valor nominal. Aponte promessas vagas e riscos fiscais.
2. Não invente fatos nem URLs. Use apenas o que está no texto.
3. Marque "negated" quando o autor diz que NÃO fará algo e "conditional" quando a promessa depende de uma condição.

Responda APENAS com um objeto JSON neste formato:
{
  "promises": [
    {
      "text": "promessa específica",
      "category": "%s",
      "confidence": 0.0,
      "negated": false,
      "conditional": false,
      "source_url": "",
      "quote": "trecho original exato",
      "reasoning": "por que a promessa é concreta ou vaga",
      "risks": ["risco técnico ou fiscal"]
    }
  ],
  "contradictions": [{"topic": "assunto", "gapAnalysis": "desvio entre discurso e fatos"}],
  "overallSentiment": "Analítico|Inconsistente|Crítico",
  "credibilityScore": 0
}

TEXTO:
%s`, strings.Join(names, "|"), text)
}

type wireClaim struct {
	Text        string   `json:"text"`
	Category    string   `json:"category"`
	Confidence  *float64 `json:"confidence"`
	Negated     bool     `json:"negated"`
	Conditional bool     `json:"conditional"`
	Reasoning   string   `json:"reasoning"`
	Risks       []string `json:"risks"`
	SourceURL   string   `json:"source_url"`
	Quote       string   `json:"quote"`
}

type wireContradiction struct {
	Topic       string `json:"topic"`
	GapAnalysis string `json:"gapAnalysis"`
}

type wireAnalysis struct {
	Promises         []wireClaim       `json:"promises"`
	Contradictions   []json.RawMessage `json:"contradictions"`
	OverallSentiment string            `json:"overallSentiment"`
	CredibilityScore *float64          `json:"credibilityScore"`
}

// ParseAnalysis pulls the JSON object out of a completion, tolerating code
// fences and surrounding prose, and validates it against the schema.
func ParseAnalysis(raw string) (*model.Analysis, error) {
	body, ok := jsonObject(raw)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in completion", model.ErrMalformedResponse)
	}

	var wire wireAnalysis
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedResponse, err)
	}
	if wire.Promises == nil {
		return nil, fmt.Errorf("%w: missing promises array", model.ErrMalformedResponse)
	}

	out := &model.Analysis{
		Promises:         make([]model.Claim, 0, len(wire.Promises)),
		OverallSentiment: wire.OverallSentiment,
		CredibilityScore: 50,
	}
	if wire.CredibilityScore != nil {
		out.CredibilityScore = int(clamp(*wire.CredibilityScore, 0, 100))
	}

	for _, w := range wire.Promises {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		category, _ := budget.NormalizeCategory(w.Category)
		out.Promises = append(out.Promises, model.Claim{
			Text:        text,
			Category:    category,
			Confidence:  confidence(w.Confidence),
			Negated:     w.Negated,
			Conditional: w.Conditional,
			Reasoning:   w.Reasoning,
			Risks:       w.Risks,
			SourceURL:   w.SourceURL,
			Quote:       w.Quote,
		})
	}
	if len(wire.Promises) > 0 && len(out.Promises) == 0 {
		return nil, fmt.Errorf("%w: every promise was empty", model.ErrMalformedResponse)
	}

	for _, raw := range wire.Contradictions {
		if s := contradictionText(raw); s != "" {
			out.Contradictions = append(out.Contradictions, s)
		}
	}
	return out, nil
}

// jsonObject strips a ```json fence when present, then takes the span from
// the first '{' to the last '}'.
func jsonObject(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			s = rest[:j]
		} else {
			s = rest
		}
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// confidence accepts 0-1 or a 0-100 percentage; a missing value is 0.5.
func confidence(v *float64) float64 {
	if v == nil {
		return 0.5
	}
	c := *v
	if c > 1 && c <= 100 {
		c /= 100
	}
	return clamp(c, 0, 1)
}

func contradictionText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var c wireContradiction
	if err := json.Unmarshal(raw, &c); err != nil {
		return ""
	}
	switch {
	case c.Topic != "" && c.GapAnalysis != "":
		return c.Topic + ": " + c.GapAnalysis
	case c.GapAnalysis != "":
		return c.GapAnalysis
	default:
		return c.Topic
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
