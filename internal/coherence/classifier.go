// Package coherence compares promises with recorded votes. Its output is a
// signal of possible inconsistency, never proof.
package coherence

import (
	"fmt"
	"sort"

	"github.com/ppiankov/promessa/internal/model"
	"github.com/ppiankov/promessa/internal/util"
)

// Classifier derives themes and judges a single (promise, vote) pair.
// Implementations can be swapped without touching the orchestrator.
type Classifier interface {
	// Theme returns the dominant category of text, or GENERAL.
	Theme(text string) model.Category
	// Analyze judges whether the vote contradicts the promise.
	Analyze(promise model.Promise, vote model.VoteRecord) model.IncoherenceResult
}

type polarity int

const (
	polarityNeutral polarity = iota
	polaritySupport
	polarityContract
)

type stance int

const (
	stanceNone stance = iota
	stancePro
	stanceAgainst
)

// KeywordClassifier is the baseline keyword heuristic.
type KeywordClassifier struct {
	themes []themeRule
}

// NewKeywordClassifier returns a classifier with the built-in keyword lists.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{themes: defaultThemes}
}

// Default is the classifier used by the package-level helpers.
var Default Classifier = NewKeywordClassifier()

// Analyze judges promiseText against vote with the default classifier.
func Analyze(promiseText string, vote model.VoteRecord) model.IncoherenceResult {
	return Default.Analyze(model.Promise{Text: promiseText}, vote)
}

// Theme picks the category with the most keyword hits; ties go to the
// earlier rule.
func (k *KeywordClassifier) Theme(text string) model.Category {
	folded := util.Fold(text)
	best, bestHits := model.CategoryGeneral, 0
	for _, rule := range k.themes {
		hits := 0
		for _, kw := range rule.keywords {
			if util.ContainsKeyword(folded, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = rule.category, hits
		}
	}
	return best
}

func (k *KeywordClassifier) rule(c model.Category) (themeRule, bool) {
	for _, r := range k.themes {
		if r.category == c {
			return r, true
		}
	}
	return themeRule{}, false
}

// Analyze flags a promise to support a theme followed by a vote against it,
// and a promise to cut spending followed by a vote for more of it.
func (k *KeywordClassifier) Analyze(promise model.Promise, vote model.VoteRecord) model.IncoherenceResult {
	none := model.IncoherenceResult{Incoherent: false, VoteID: vote.VoteID}

	theme := promise.Category
	if theme == "" || theme == model.CategoryGeneral || !theme.IsKnown() {
		theme = k.Theme(promise.Text)
	}
	rule, ok := k.rule(theme)
	if !ok {
		return none
	}

	summary := util.Fold(vote.Summary)
	if _, about := util.ContainsAny(summary, rule.keywords); !about && vote.Theme != theme {
		return none
	}

	p := promisePolarity(util.Fold(promise.Text))
	s := voteStance(vote.Vote, summary)

	switch {
	case p == polaritySupport && s == stanceAgainst:
		return model.IncoherenceResult{
			Incoherent: true,
			VoteID:     vote.VoteID,
			Justification: fmt.Sprintf("Sinal de incoerência: prometeu apoio à área de %s, mas votou %q na proposição %s que trata de: %s",
				rule.label, voteLabel(vote), billLabel(vote), vote.Summary),
		}
	case p == polarityContract && s == stancePro:
		return model.IncoherenceResult{
			Incoherent: true,
			VoteID:     vote.VoteID,
			Justification: fmt.Sprintf("Sinal de incoerência: prometeu conter gastos na área de %s, mas votou %q na proposição %s que trata de: %s",
				rule.label, voteLabel(vote), billLabel(vote), vote.Summary),
		}
	}
	return none
}

func promisePolarity(folded string) polarity {
	if _, ok := util.ContainsAny(folded, positiveMarkers); ok {
		return polaritySupport
	}
	if _, ok := util.ContainsAny(folded, negativeMarkers); ok {
		if _, spend := util.ContainsAny(folded, spendingMarkers); spend {
			return polarityContract
		}
	}
	return polarityNeutral
}

// voteStance resolves a vote into support or opposition to the bill's theme.
// Voting for a cut opposes the theme; voting against a cut supports it.
func voteStance(v model.VoteValue, foldedSummary string) stance {
	_, reduces := util.ContainsAny(foldedSummary, reductionMarkers)
	switch v {
	case model.VoteYes:
		if reduces {
			return stanceAgainst
		}
		return stancePro
	case model.VoteNo:
		if reduces {
			return stancePro
		}
		return stanceAgainst
	default:
		return stanceNone
	}
}

func voteLabel(v model.VoteRecord) string {
	if v.RawVote != "" {
		return v.RawVote
	}
	switch v.Vote {
	case model.VoteYes:
		return "Sim"
	case model.VoteNo:
		return "Não"
	default:
		return "Abstenção"
	}
}

func billLabel(v model.VoteRecord) string {
	if v.BillReference != "" {
		return v.BillReference
	}
	if v.VoteID != "" {
		return "da votação " + v.VoteID
	}
	return "sem identificação"
}

// AnalyzeAll selects the votes relevant to the promise theme, newest first,
// and reports the most recent contradiction.
func AnalyzeAll(c Classifier, promise model.Promise, votes []model.VoteRecord) model.PoliticalConsistency {
	if c == nil {
		c = Default
	}

	theme := promise.Category
	if theme == "" || theme == model.CategoryGeneral || !theme.IsKnown() {
		theme = c.Theme(promise.Text)
	}

	result := model.PoliticalConsistency{Known: true, RelevantVotes: []model.VoteRecord{}}
	if theme == model.CategoryGeneral {
		return result
	}

	for _, v := range votes {
		if v.Theme == theme || c.Theme(v.Summary) == theme {
			result.RelevantVotes = append(result.RelevantVotes, v)
		}
	}
	sort.SliceStable(result.RelevantVotes, func(i, j int) bool {
		return result.RelevantVotes[i].Date.After(result.RelevantVotes[j].Date)
	})

	scoped := promise
	scoped.Category = theme
	for _, v := range result.RelevantVotes {
		r := c.Analyze(scoped, v)
		if r.Incoherent {
			result.VotedAgainstTheme = true
			result.Contradiction = &r
			break
		}
	}
	return result
}
