// Package voting reads roll-call history from the Câmara dos Deputados open data API.
package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/promessa/internal/cache"
	"github.com/ppiankov/promessa/internal/coherence"
	"github.com/ppiankov/promessa/internal/fetch"
	"github.com/ppiankov/promessa/internal/model"
	"github.com/ppiankov/promessa/internal/util"
)

const ballotConcurrency = 4

// Provider resolves deputies and fetches their votes.
type Provider struct {
	client     *fetch.Client
	baseURL    string
	cache      cache.Cache
	historyTTL time.Duration
	maxPages   int
	pageSize   int
	classifier coherence.Classifier
	logger     *slog.Logger
}

// NewProvider creates a Câmara provider. c may be nil to disable caching and
// classifier nil to use the default keyword classifier for vote themes.
func NewProvider(client *fetch.Client, cfg model.VotingConfig, c cache.Cache, classifier coherence.Classifier, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = coherence.Default
	}
	p := &Provider{
		client:     client,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		cache:      c,
		historyTTL: cfg.HistoryTTL,
		maxPages:   cfg.MaxPages,
		pageSize:   cfg.PageSize,
		classifier: classifier,
		logger:     logger.With("component", "voting"),
	}
	if p.historyTTL <= 0 {
		p.historyTTL = 24 * time.Hour
	}
	if p.maxPages <= 0 {
		p.maxPages = 5
	}
	if p.pageSize <= 0 {
		p.pageSize = 100
	}
	return p
}

type link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type deputadosResponse struct {
	Dados []struct {
		ID   int64  `json:"id"`
		Nome string `json:"nome"`
	} `json:"dados"`
}

type proposicao struct {
	SiglaTipo string `json:"siglaTipo"`
	Numero    any    `json:"numero"`
	Ano       any    `json:"ano"`
	Ementa    string `json:"ementa"`
}

type votacao struct {
	ID                string      `json:"id"`
	DataHoraRegistro  string      `json:"dataHoraRegistro"`
	Data              string      `json:"data"`
	Descricao         string      `json:"descricao"`
	ProposicaoObjeto  string      `json:"proposicaoObjeto"`
	ProposicaoExterna *proposicao `json:"proposicaoExterna"`
	TipoVoto          string      `json:"tipoVoto"`
}

type votacoesResponse struct {
	Dados []votacao `json:"dados"`
	Links []link    `json:"links"`
}

type deputadoRef struct {
	ID int64 `json:"id"`
}

type votosResponse struct {
	Dados []struct {
		TipoVoto    string       `json:"tipoVoto"`
		Deputado    *deputadoRef `json:"deputado"`
		DeputadoAlt *deputadoRef `json:"deputado_"`
	} `json:"dados"`
}

// ResolveIdentifier maps a name to a roster id. An exact folded match wins,
// otherwise the first roster entry. A numeric input is treated as an id.
// Identifiers are stable and cached without expiry.
func (p *Provider) ResolveIdentifier(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", model.ErrIdentifierNotFound)
	}
	if isNumeric(name) {
		return name, nil
	}

	key := cache.Key("deputado", util.Fold(name))
	var cached string
	if cache.GetJSON(p.cache, key, &cached) && cached != "" {
		return cached, nil
	}

	var resp deputadosResponse
	query := url.Values{"nome": {name}, "ordem": {"ASC"}, "ordenarPor": {"nome"}}
	if err := p.client.GetJSON(ctx, p.baseURL+"/deputados", query, &resp); err != nil {
		return "", err
	}
	if len(resp.Dados) == 0 {
		return "", fmt.Errorf("%w: %q", model.ErrIdentifierNotFound, name)
	}

	chosen := resp.Dados[0]
	target := util.Fold(name)
	for _, d := range resp.Dados {
		if util.Fold(d.Nome) == target {
			chosen = d
			break
		}
	}

	id := strconv.FormatInt(chosen.ID, 10)
	if err := cache.SetJSON(p.cache, key, id, cache.NoExpiration); err != nil {
		p.logger.Debug("identifier cache write failed", "error", err)
	}
	p.logger.Debug("resolved deputy", "name", name, "id", id, "matched", chosen.Nome)
	return id, nil
}

// GetVotingHistory pages through a deputy's votes, newest first, until a page
// comes back empty, no next link is offered or the page cap is reached.
// Servers without the per-deputy listing fall back to scanning recent
// sessions and their individual ballots.
func (p *Provider) GetVotingHistory(ctx context.Context, id string) ([]model.VoteRecord, error) {
	key := cache.Key("votes", id)
	var cached []model.VoteRecord
	if cache.GetJSON(p.cache, key, &cached) {
		return cached, nil
	}

	records, err := p.deputyVotes(ctx, id)
	if err != nil {
		if !fetch.IsStatus(err, http.StatusNotFound) && !fetch.IsStatus(err, http.StatusMethodNotAllowed) {
			return nil, err
		}
		p.logger.Info("per-deputy votes unsupported, scanning sessions", "id", id)
		records, err = p.sessionVotes(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	if err := cache.SetJSON(p.cache, key, records, p.historyTTL); err != nil {
		p.logger.Debug("votes cache write failed", "error", err)
	}
	return records, nil
}

func (p *Provider) deputyVotes(ctx context.Context, id string) ([]model.VoteRecord, error) {
	records := []model.VoteRecord{}
	endpoint := fmt.Sprintf("%s/deputados/%s/votacoes", p.baseURL, url.PathEscape(id))

	err := p.paginate(ctx, endpoint, func(v votacao) {
		records = append(records, p.record(v, v.TipoVoto))
	})
	return records, err
}

func (p *Provider) sessionVotes(ctx context.Context, id string) ([]model.VoteRecord, error) {
	var sessions []votacao
	if err := p.paginate(ctx, p.baseURL+"/votacoes", func(v votacao) {
		sessions = append(sessions, v)
	}); err != nil {
		return nil, err
	}

	want, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: non-numeric id %q", model.ErrIdentifierNotFound, id)
	}

	found := make([]*model.VoteRecord, len(sessions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ballotConcurrency)
	var mu sync.Mutex
	failed := 0

	for i, s := range sessions {
		g.Go(func() error {
			raw, ok, err := p.ballot(gctx, s.ID, want)
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				p.logger.Debug("ballot fetch failed", "session", s.ID, "error", err)
				return nil
			}
			if ok {
				r := p.record(s, raw)
				found[i] = &r
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(sessions) > 0 && failed == len(sessions) {
		return nil, fmt.Errorf("%w: every ballot request failed", model.ErrUpstreamUnavailable)
	}

	records := []model.VoteRecord{}
	for _, r := range found {
		if r != nil {
			records = append(records, *r)
		}
	}
	return records, nil
}

func (p *Provider) ballot(ctx context.Context, sessionID string, deputyID int64) (string, bool, error) {
	var resp votosResponse
	endpoint := fmt.Sprintf("%s/votacoes/%s/votos", p.baseURL, url.PathEscape(sessionID))
	if err := p.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return "", false, err
	}
	for _, v := range resp.Dados {
		ref := v.Deputado
		if ref == nil {
			ref = v.DeputadoAlt
		}
		if ref != nil && ref.ID == deputyID {
			return v.TipoVoto, true, nil
		}
	}
	return "", false, nil
}

func (p *Provider) paginate(ctx context.Context, endpoint string, each func(votacao)) error {
	for page := 1; page <= p.maxPages; page++ {
		query := url.Values{
			"pagina":     {strconv.Itoa(page)},
			"itens":      {strconv.Itoa(p.pageSize)},
			"ordem":      {"DESC"},
			"ordenarPor": {"dataHoraRegistro"},
		}

		var resp votacoesResponse
		if err := p.client.GetJSON(ctx, endpoint, query, &resp); err != nil {
			if page > 1 && !errors.Is(err, context.Canceled) {
				// Keep what earlier pages returned.
				p.logger.Warn("stopping pagination early", "page", page, "error", err)
				return nil
			}
			return err
		}
		if len(resp.Dados) == 0 {
			return nil
		}
		for _, v := range resp.Dados {
			each(v)
		}
		if !hasNext(resp.Links) {
			return nil
		}
	}
	return nil
}

func hasNext(links []link) bool {
	for _, l := range links {
		if l.Rel == "next" && l.Href != "" {
			return true
		}
	}
	return false
}

func (p *Provider) record(v votacao, rawVote string) model.VoteRecord {
	summary := v.Descricao
	bill := v.ProposicaoObjeto
	if v.ProposicaoExterna != nil {
		if v.ProposicaoExterna.Ementa != "" {
			summary = v.ProposicaoExterna.Ementa
		}
		if v.ProposicaoExterna.SiglaTipo != "" {
			bill = fmt.Sprintf("%s %v/%v", v.ProposicaoExterna.SiglaTipo, v.ProposicaoExterna.Numero, v.ProposicaoExterna.Ano)
		}
	}
	if summary == "" {
		summary = "Sem ementa disponível"
	}

	raw := strings.TrimSpace(rawVote)
	r := model.VoteRecord{
		VoteID:        v.ID,
		Date:          parseDate(v.DataHoraRegistro, v.Data),
		BillReference: bill,
		Vote:          MapVote(raw),
		RawVote:       raw,
		Summary:       summary,
	}
	r.Theme = p.classifier.Theme(summary + " " + bill)
	return r
}

// MapVote normalizes a published vote. Obstruction and any "contra" wording
// count as NO; anything unrecognized, including absence, is ABSTAIN.
func MapVote(raw string) model.VoteValue {
	switch f := util.Fold(raw); {
	case f == "sim":
		return model.VoteYes
	case f == "nao", f == "obstrucao", strings.Contains(f, "contra"):
		return model.VoteNo
	default:
		return model.VoteAbstain
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseDate(values ...string) time.Time {
	for _, v := range values {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
