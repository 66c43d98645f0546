package coherence

import (
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/promessa/internal/model"
)

func vote(id string, v model.VoteValue, summary string, date time.Time) model.VoteRecord {
	return model.VoteRecord{VoteID: id, Vote: v, Summary: summary, BillReference: "PL " + id + "/2023", Date: date}
}

func TestTheme(t *testing.T) {
	k := NewKeywordClassifier()
	tests := []struct {
		text string
		want model.Category
	}{
		{"Vou construir novos hospitais e contratar médicos", model.CategoryHealth},
		{"Dobrar o investimento em educação básica e nas escolas", model.CategoryEducation},
		{"More police on the streets to fight violence", model.CategorySecurity},
		{"Tarifa zero no ônibus e mais metrô", model.CategoryTransport},
		{"Um Brasil melhor para todos", model.CategoryGeneral},
	}
	for _, tt := range tests {
		if got := k.Theme(tt.text); got != tt.want {
			t.Errorf("Theme(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestAnalyze_SupportPromiseVotedNoOnIncrease(t *testing.T) {
	r := Analyze("Vou dobrar o investimento em educação", vote("1", model.VoteNo, "Amplia o financiamento da educação básica", time.Now()))
	if !r.Incoherent {
		t.Fatal("Expected incoherence")
	}
	if r.VoteID != "1" {
		t.Errorf("Expected vote id 1, got %q", r.VoteID)
	}
	for _, want := range []string{"Sinal de incoerência", "educação", `"Não"`, "PL 1/2023", "Amplia o financiamento"} {
		if !strings.Contains(r.Justification, want) {
			t.Errorf("Justification %q missing %q", r.Justification, want)
		}
	}
}

func TestAnalyze_VoteDirections(t *testing.T) {
	promise := "Vamos investir mais na saúde pública"
	tests := []struct {
		name    string
		vote    model.VoteValue
		summary string
		want    bool
	}{
		{"yes on increase", model.VoteYes, "Amplia recursos para hospitais do SUS", false},
		{"no on increase", model.VoteNo, "Amplia recursos para hospitais do SUS", true},
		{"yes on cut", model.VoteYes, "Reduz verbas da saúde em 2024", true},
		{"no on cut", model.VoteNo, "Reduz verbas da saúde em 2024", false},
		{"abstain on cut", model.VoteAbstain, "Reduz verbas da saúde em 2024", false},
		{"unrelated bill", model.VoteNo, "Regulamenta o transporte por aplicativo", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(promise, vote("9", tt.vote, tt.summary, time.Now()))
			if got.Incoherent != tt.want {
				t.Errorf("Incoherent = %v, want %v (%s)", got.Incoherent, tt.want, got.Justification)
			}
			if !got.Incoherent && got.Justification != "" {
				t.Errorf("Expected empty justification, got %q", got.Justification)
			}
		})
	}
}

func TestAnalyze_ContractionPromise(t *testing.T) {
	r := Analyze("Vou cortar gastos com a máquina da economia", vote("3", model.VoteYes, "Aumenta o orçamento e os gastos fiscais", time.Now()))
	if !r.Incoherent {
		t.Fatal("Expected incoherence for spending cut promise followed by a yes on more spending")
	}
	if !strings.Contains(r.Justification, "conter gastos") {
		t.Errorf("Unexpected justification %q", r.Justification)
	}
}

func TestAnalyze_UsesRawVoteLabel(t *testing.T) {
	v := vote("4", model.VoteNo, "Amplia vagas em creches e escolas", time.Now())
	v.RawVote = "Obstrução"
	r := Analyze("Prometo criar mais vagas nas escolas", v)
	if !r.Incoherent || !strings.Contains(r.Justification, `"Obstrução"`) {
		t.Errorf("Expected raw vote label in %q", r.Justification)
	}
}

func TestAnalyzeAll_MostRecentContradictionWins(t *testing.T) {
	old := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	votes := []model.VoteRecord{
		vote("old", model.VoteNo, "Amplia o piso do magistério na educação", old),
		vote("unrelated", model.VoteNo, "Regulamenta o transporte por aplicativo", recent.Add(time.Hour)),
		vote("recent", model.VoteYes, "Reduz recursos do Fundeb para a educação", recent),
	}
	promise := model.Promise{Text: "Vou melhorar a educação", Category: model.CategoryEducation}

	got := AnalyzeAll(nil, promise, votes)
	if !got.Known || !got.VotedAgainstTheme {
		t.Fatalf("Expected known inconsistency, got %+v", got)
	}
	if got.Contradiction == nil || got.Contradiction.VoteID != "recent" {
		t.Fatalf("Expected most recent contradiction, got %+v", got.Contradiction)
	}
	if len(got.RelevantVotes) != 2 {
		t.Fatalf("Expected 2 relevant votes, got %d", len(got.RelevantVotes))
	}
	if got.RelevantVotes[0].VoteID != "recent" {
		t.Errorf("Expected relevant votes newest first, got %s", got.RelevantVotes[0].VoteID)
	}
}

func TestAnalyzeAll_NoVotes(t *testing.T) {
	got := AnalyzeAll(NewKeywordClassifier(), model.Promise{Text: "Mais hospitais"}, nil)
	if !got.Known || got.VotedAgainstTheme || got.Contradiction != nil {
		t.Errorf("Expected known and consistent, got %+v", got)
	}
	if got.RelevantVotes == nil {
		t.Error("Expected empty, non-nil relevant votes")
	}
}

func TestTheme_PortuguesePlurals(t *testing.T) {
	k := NewKeywordClassifier()
	tests := []struct {
		text string
		want model.Category
	}{
		{"Construção de hospitais", model.CategoryHealth},
		{"Contratação de policiais militares", model.CategorySecurity},
		{"Flexibiliza licenças ambientais", model.CategoryEnvironment},
	}
	for _, tt := range tests {
		if got := k.Theme(tt.text); got != tt.want {
			t.Errorf("Theme(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestAnalyze_PluralBillSummary(t *testing.T) {
	r := Analyze("Vou ampliar a saúde", vote("7", model.VoteYes, "Corta recursos de hospitais", time.Now()))
	if !r.Incoherent {
		t.Fatal("Expected incoherence for a yes vote on a cut to hospitals")
	}
	if !strings.Contains(r.Justification, "saúde") {
		t.Errorf("Unexpected justification %q", r.Justification)
	}
}
