package model

// Claim is a promise extracted from free text by a reasoning provider.
type Claim struct {
	Text        string   `json:"text"`
	Category    Category `json:"category"`
	Confidence  float64  `json:"confidence"` // 0-1
	Negated     bool     `json:"negated"`
	Conditional bool     `json:"conditional"`
	Reasoning   string   `json:"reasoning,omitempty"`
	Risks       []string `json:"risks,omitempty"`
	SourceURL   string   `json:"source_url,omitempty"`
	Quote       string   `json:"quote,omitempty"`
}

// Analysis is the structured output of claim extraction.
type Analysis struct {
	Promises         []Claim  `json:"promises"`
	Contradictions   []string `json:"contradictions,omitempty"`
	OverallSentiment string   `json:"overall_sentiment"`
	CredibilityScore int      `json:"credibility_score"` // 0-100

	// Set by the extraction chain, not by providers.
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Strongest returns the claim with the highest confidence, or nil.
func (a *Analysis) Strongest() *Claim {
	var best *Claim
	for i := range a.Promises {
		c := &a.Promises[i]
		if c.Negated {
			continue
		}
		if best == nil || c.Confidence > best.Confidence {
			best = c
		}
	}
	return best
}
