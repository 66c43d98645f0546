package budget

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/promessa/internal/cache"
	"github.com/ppiankov/promessa/internal/fetch"
	"github.com/ppiankov/promessa/internal/model"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Provider, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client := fetch.NewClient(fetch.Options{Timeout: 5 * time.Second, MaxAttempts: 1})
	cfg := model.BudgetConfig{BaseURL: server.URL, CacheTTL: time.Hour, Tolerance: 1.5}
	return NewProvider(client, cfg, cache.NewMemoryCache(time.Hour, time.Minute), nil), &calls
}

func TestGetBudgetData_ParsesAndCaches(t *testing.T) {
	p, calls := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orcamento" {
			t.Errorf("Expected path /orcamento, got %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("categoria") != "EDUCACAO" || q.Get("ano") != "2026" || q.Get("esfera") != "FEDERAL" {
			t.Errorf("Unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = fmt.Fprint(w, `[{"valor_orcado": 100000000000, "valor_executado": "55000000000", "data_atualizacao": "2026-06-30"}]`)
	})

	bc, ok := p.GetBudgetData(context.Background(), "educação", 2026, model.SphereFederal)
	if !ok {
		t.Fatal("Expected budget data")
	}
	if bc.ExecutionRate != 55 {
		t.Errorf("Expected execution rate 55, got %v", bc.ExecutionRate)
	}
	if bc.Category != "EDUCACAO" {
		t.Errorf("Expected EDUCACAO, got %s", bc.Category)
	}
	if bc.LastUpdated.Format("2006-01-02") != "2026-06-30" {
		t.Errorf("Unexpected last updated: %v", bc.LastUpdated)
	}

	if _, ok := p.GetBudgetData(context.Background(), "EDUCATION", 2026, model.SphereFederal); !ok {
		t.Fatal("Expected cached budget data")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 upstream call, got %d", calls.Load())
	}
}

func TestGetBudgetData_ItemsEnvelopeAndPtBRNumbers(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"items": [{"valor_orcado": "1.000.000,00", "valor_executado": "1.250.000,00"}]}`)
	})

	bc, ok := p.GetBudgetData(context.Background(), "SAUDE", 2025, model.SphereMunicipal)
	if !ok {
		t.Fatal("Expected budget data")
	}
	// Execution can exceed the planned budget.
	if bc.ExecutionRate != 125 {
		t.Errorf("Expected execution rate 125, got %v", bc.ExecutionRate)
	}
}

func TestGetBudgetData_NotFoundCases(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"empty", func(w http.ResponseWriter, r *http.Request) { _, _ = fmt.Fprint(w, `[]`) }},
		{"zero total", func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, `[{"valor_orcado": 0, "valor_executado": 10}]`)
		}},
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"malformed", func(w http.ResponseWriter, r *http.Request) { _, _ = fmt.Fprint(w, `{"unexpected": true}`) }},
		{"not json", func(w http.ResponseWriter, r *http.Request) { _, _ = fmt.Fprint(w, `<html>`) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestProvider(t, tt.handler)
			bc, ok := p.GetBudgetData(context.Background(), "EDUCACAO", 2026, model.SphereFederal)
			if ok || bc != nil {
				t.Errorf("Expected not found, got %+v", bc)
			}
		})
	}
}

func TestExecutionRateProperty(t *testing.T) {
	tests := []struct {
		total, executed float64
	}{
		{100, 55}, {3, 1}, {1e11, 2.9e10}, {1000, 1430}, {7, 0},
	}
	for _, tt := range tests {
		rate, ok := model.ExecutionRate(tt.total, tt.executed)
		if !ok {
			t.Fatalf("Expected known rate for total %v", tt.total)
		}
		want := tt.executed / tt.total * 100
		if math.Abs(rate-want) > 1e-9 {
			t.Errorf("ExecutionRate(%v, %v) = %v, want %v", tt.total, tt.executed, rate, want)
		}
	}

	if _, ok := model.ExecutionRate(0, 10); ok {
		t.Error("Expected zero total to be unknown")
	}
	if rate, _ := model.ExecutionRate(100, -5); rate != 0 {
		t.Errorf("Expected lower bound 0, got %v", rate)
	}
}

func TestValidateBudgetViability_Boundary(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `[{"valor_orcado": 100000000000, "valor_executado": 55000000000}]`)
	})
	ctx := context.Background()

	// tolerance 1.5 over R$ 100 bi puts the limit at R$ 150 bi.
	at := p.ValidateBudgetViability(ctx, "EDUCACAO", 150e9, 2026, model.SphereFederal)
	if !at.Viable || !at.Known {
		t.Errorf("Expected viable at the threshold, got %+v", at)
	}
	above := p.ValidateBudgetViability(ctx, "EDUCACAO", 150e9+1, 2026, model.SphereFederal)
	if above.Viable {
		t.Errorf("Expected not viable above the threshold, got %+v", above)
	}
	below := p.ValidateBudgetViability(ctx, "EDUCACAO", 5e9, 2026, model.SphereFederal)
	if !below.Viable {
		t.Errorf("Expected viable below the threshold, got %+v", below)
	}
	if !strings.Contains(below.Reason, "bilhões") {
		t.Errorf("Expected reason in bilhões, got %q", below.Reason)
	}
}

func TestValidateBudgetViability_Unknown(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) { _, _ = fmt.Fprint(w, `[]`) })

	v := p.ValidateBudgetViability(context.Background(), "EDUCACAO", 1e6, 2026, model.SphereFederal)
	if v.Known || v.Viable {
		t.Errorf("Expected unknown and not viable, got %+v", v)
	}
}

func TestCompareToBudget_Scale(t *testing.T) {
	v := CompareToBudget(300e6, 400e6, 1)
	if !v.Viable {
		t.Errorf("Expected viable, got %+v", v)
	}
	if !strings.Contains(v.Reason, "R$ 300.00 milhões") {
		t.Errorf("Expected reason in milhões, got %q", v.Reason)
	}
}

func TestGetBudgetHistory_SkipsMissingYears(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ano") == "2024" {
			_, _ = fmt.Fprint(w, `[]`)
			return
		}
		_, _ = fmt.Fprint(w, `[{"valor_orcado": 200, "valor_executado": 150}]`)
	})

	history := p.GetBudgetHistory(context.Background(), "SAUDE", 2023, 2025, model.SphereFederal)
	if len(history) != 2 {
		t.Fatalf("Expected 2 years, got %d", len(history))
	}
	if history[0].Year != 2023 || history[1].Year != 2025 {
		t.Errorf("Unexpected years: %d, %d", history[0].Year, history[1].Year)
	}
	if history[0].Variance != -50 || history[0].ExecutionRate != 75 {
		t.Errorf("Unexpected comparison: %+v", history[0])
	}
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want model.Category
		ok   bool
	}{
		{"EDUCATION", model.CategoryEducation, true},
		{"Educação", model.CategoryEducation, true},
		{"EDUCACAO", model.CategoryEducation, true},
		{"meio ambiente", model.CategoryEnvironment, true},
		{"MEIO_AMBIENTE", model.CategoryEnvironment, true},
		{"Segurança Pública", model.CategorySecurity, true},
		{"transportes", model.CategoryTransport, true},
		{"astronomia", model.CategoryGeneral, false},
	}
	for _, tt := range tests {
		got, ok := NormalizeCategory(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeCategory(%q) = %s, %v; want %s, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}

	if SiconfiCode(model.CategorySocial) != "ASSISTENCIA_SOCIAL" {
		t.Error("Expected ASSISTENCIA_SOCIAL")
	}
	if SiconfiCode(model.CategoryGeneral) != "GERAL" {
		t.Error("Expected GERAL default")
	}
}

func TestDetectSphere(t *testing.T) {
	tests := []struct {
		text string
		want model.Sphere
	}{
		{"Vou asfaltar todas as ruas do bairro", model.SphereMunicipal},
		{"A prefeitura vai abrir um posto de saúde", model.SphereMunicipal},
		{"Como governador vou reforçar a Polícia Militar", model.SphereState},
		{"Vamos dobrar o orçamento da educação básica", model.SphereFederal},
	}
	for _, tt := range tests {
		if got := DetectSphere(tt.text); got != tt.want {
			t.Errorf("DetectSphere(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}
