// Package extract turns free-text promises into structured claims through
// an ordered chain of reasoning providers.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/promessa/internal/llm"
	"github.com/ppiankov/promessa/internal/model"
)

// Provider extracts an Analysis from text. Implementations return an error
// wrapping model.ErrMalformedResponse when the output fails validation.
type Provider interface {
	Name() string
	Extract(ctx context.Context, text string) (*model.Analysis, error)
}

// Observer receives one call per provider attempt.
type Observer func(provider, outcome string)

// Attempt outcomes reported to the Observer.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeMalformed   = "malformed"
	OutcomeTimeout     = "timeout"
	OutcomeError       = "error"
)

// Chain tries providers in order until one returns a valid analysis.
type Chain struct {
	providers []Provider
	timeout   time.Duration
	observe   Observer
	logger    *slog.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithObserver reports every attempt to fn.
func WithObserver(fn Observer) ChainOption {
	return func(c *Chain) { c.observe = fn }
}

// NewChain creates a chain. timeout bounds each provider attempt.
func NewChain(providers []Provider, timeout time.Duration, logger *slog.Logger, opts ...ChainOption) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Chain{
		providers: providers,
		timeout:   timeout,
		logger:    logger.With("component", "extract"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Len returns the number of configured providers.
func (c *Chain) Len() int {
	return len(c.providers)
}

// Extract walks the chain. The returned analysis records the provider and
// model that served it. When every provider fails the error wraps
// model.ErrExtractionUnavailable together with each provider's failure.
func (c *Chain) Extract(ctx context.Context, text string) (*model.Analysis, error) {
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", model.ErrExtractionUnavailable)
	}

	var errs []error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		start := time.Now()
		analysis, err := c.attempt(ctx, p, text)
		outcome := classify(err)
		c.record(p.Name(), outcome)

		if err == nil {
			analysis.Provider = p.Name()
			c.logger.Debug("extraction served",
				"provider", p.Name(), "model", analysis.Model,
				"claims", len(analysis.Promises), "duration", time.Since(start))
			return analysis, nil
		}

		c.logger.Warn("extraction provider failed",
			"provider", p.Name(), "outcome", outcome, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}

	return nil, fmt.Errorf("%w: %w", model.ErrExtractionUnavailable, errors.Join(errs...))
}

func (c *Chain) attempt(ctx context.Context, p Provider, text string) (*model.Analysis, error) {
	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	analysis, err := p.Extract(pctx, text)
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return nil, fmt.Errorf("%w: empty analysis", model.ErrMalformedResponse)
	}
	return analysis, nil
}

func (c *Chain) record(provider, outcome string) {
	if c.observe != nil {
		c.observe(provider, outcome)
	}
}

func classify(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, llm.ErrRateLimited):
		return OutcomeRateLimited
	case errors.Is(err, model.ErrMalformedResponse):
		return OutcomeMalformed
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}
