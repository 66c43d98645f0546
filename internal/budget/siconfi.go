package budget

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/promessa/internal/cache"
	"github.com/ppiankov/promessa/internal/fetch"
	"github.com/ppiankov/promessa/internal/model"
)

const maxHistoryYears = 20

// Provider reads budget-execution figures from the SICONFI data lake.
type Provider struct {
	client    *fetch.Client
	baseURL   string
	cache     cache.Cache
	ttl       time.Duration
	tolerance float64
	logger    *slog.Logger
	now       func() time.Time
}

// NewProvider creates a budget provider. c may be nil to disable caching.
func NewProvider(client *fetch.Client, cfg model.BudgetConfig, c cache.Cache, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = 1
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Provider{
		client:    client,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		cache:     c,
		ttl:       ttl,
		tolerance: tolerance,
		logger:    logger.With("component", "budget"),
		now:       time.Now,
	}
}

type siconfiRow struct {
	Orcado      flexFloat `json:"valor_orcado"`
	Executado   flexFloat `json:"valor_executado"`
	Atualizacao string    `json:"data_atualizacao"`
}

// GetBudgetData returns the figures for a category, year and sphere.
// Any upstream failure is logged and reported as not found, so callers
// treat the figures as unknown rather than zero.
func (p *Provider) GetBudgetData(ctx context.Context, category string, year int, sphere model.Sphere) (*model.BudgetContext, bool) {
	c, _ := NormalizeCategory(category)
	code := SiconfiCode(c)
	if sphere == "" {
		sphere = model.SphereFederal
	}

	key := cache.Key("budget", code, strconv.Itoa(year), string(sphere))
	var cached model.BudgetContext
	if cache.GetJSON(p.cache, key, &cached) {
		return &cached, true
	}

	bc, err := p.fetch(ctx, code, year, sphere)
	if err != nil {
		p.logger.Warn("budget data unavailable",
			"category", code, "year", year, "sphere", sphere, "error", err)
		return nil, false
	}

	if err := cache.SetJSON(p.cache, key, bc, p.ttl); err != nil {
		p.logger.Debug("budget cache write failed", "error", err)
	}
	return bc, true
}

func (p *Provider) fetch(ctx context.Context, code string, year int, sphere model.Sphere) (*model.BudgetContext, error) {
	query := url.Values{
		"categoria": {code},
		"ano":       {strconv.Itoa(year)},
		"esfera":    {string(sphere)},
	}

	var raw json.RawMessage
	if err := p.client.GetJSON(ctx, p.baseURL+"/orcamento", query, &raw); err != nil {
		return nil, err
	}

	rows, err := decodeRows(raw)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, model.ErrBudgetNotFound
	}

	row := rows[0]
	total, executed := float64(row.Orcado), float64(row.Executado)
	rate, ok := model.ExecutionRate(total, executed)
	if !ok {
		return nil, fmt.Errorf("%w: non-positive total budget", model.ErrBudgetNotFound)
	}

	updated := p.now().UTC()
	if t, err := time.Parse(time.RFC3339, row.Atualizacao); err == nil {
		updated = t
	} else if t, err := time.Parse("2006-01-02", row.Atualizacao); err == nil {
		updated = t
	}

	return &model.BudgetContext{
		Category:       code,
		Year:           year,
		Sphere:         sphere,
		TotalBudget:    total,
		ExecutedBudget: executed,
		ExecutionRate:  rate,
		LastUpdated:    updated,
	}, nil
}

// decodeRows accepts a bare array or the data lake's {"items": [...]} envelope.
func decodeRows(raw json.RawMessage) ([]siconfiRow, error) {
	var rows []siconfiRow
	if err := json.Unmarshal(raw, &rows); err == nil {
		return rows, nil
	}

	var envelope struct {
		Items *[]siconfiRow `json:"items"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Items == nil {
		return nil, fmt.Errorf("%w: unexpected budget payload", model.ErrMalformedResponse)
	}
	return *envelope.Items, nil
}

// GetBudgetHistory returns one comparison per year with data, oldest first.
func (p *Provider) GetBudgetHistory(ctx context.Context, category string, startYear, endYear int, sphere model.Sphere) []model.BudgetComparison {
	if endYear < startYear {
		return nil
	}
	if endYear-startYear >= maxHistoryYears {
		startYear = endYear - maxHistoryYears + 1
	}

	var history []model.BudgetComparison
	for year := startYear; year <= endYear; year++ {
		if ctx.Err() != nil {
			break
		}
		bc, ok := p.GetBudgetData(ctx, category, year, sphere)
		if !ok {
			continue
		}
		history = append(history, model.BudgetComparison{
			Year:          year,
			Budgeted:      bc.TotalBudget,
			Executed:      bc.ExecutedBudget,
			Variance:      bc.ExecutedBudget - bc.TotalBudget,
			ExecutionRate: bc.ExecutionRate,
		})
	}
	return history
}

// flexFloat decodes numbers published either as JSON numbers or as strings,
// including the pt-BR "1.234,56" form.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
		if strings.Contains(s, ",") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}
