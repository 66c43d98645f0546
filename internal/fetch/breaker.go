package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ppiankov/promessa/internal/model"
)

// BreakerOptions configures the per-host circuit breakers.
type BreakerOptions struct {
	// FailureThreshold is the number of consecutive upstream failures that
	// opens a host's circuit. Zero disables the breakers.
	FailureThreshold uint32

	// ResetTimeout is how long an open circuit rejects calls before letting
	// one trial request through.
	ResetTimeout time.Duration

	// OnStateChange is called with the host and its new state:
	// "closed", "open" or "half-open".
	OnStateChange func(host, state string)
}

// Breakers keeps one circuit breaker per upstream host, so a dead budget or
// voting API fails fast instead of being retried on every audit.
type Breakers struct {
	opts  BreakerOptions
	mu    sync.Mutex
	hosts map[string]*gobreaker.CircuitBreaker
}

// NewBreakers creates an empty breaker set.
func NewBreakers(opts BreakerOptions) *Breakers {
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 30 * time.Second
	}
	return &Breakers{opts: opts, hosts: make(map[string]*gobreaker.CircuitBreaker)}
}

func (b *Breakers) breaker(host string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.hosts[host]; ok {
		return cb
	}
	threshold := b.opts.FailureThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     b.opts.ResetTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return !tripsBreaker(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if b.opts.OnStateChange != nil {
				b.opts.OnStateChange(name, to.String())
			}
		},
	})
	b.hosts[host] = cb
	return cb
}

// State returns the circuit state of host. Hosts never called are closed.
func (b *Breakers) State(host string) string {
	if b == nil {
		return gobreaker.StateClosed.String()
	}
	b.mu.Lock()
	cb, ok := b.hosts[strings.ToLower(host)]
	b.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return cb.State().String()
}

// Execute runs fn under the breaker of rawURL's host. While the circuit is
// open fn is not called and the error wraps model.ErrUpstreamUnavailable.
// A nil or disabled set just calls fn.
func (b *Breakers) Execute(rawURL string, fn func() (*Response, error)) (*Response, error) {
	if b == nil || b.opts.FailureThreshold == 0 {
		return fn()
	}
	host, err := extractHost(rawURL)
	if err != nil || host == "" {
		return fn()
	}
	host = strings.ToLower(host)

	out, err := b.breaker(host).Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrUpstreamUnavailable, host, err)
	}
	if err != nil {
		return nil, err
	}
	return out.(*Response), nil
}

// tripsBreaker reports whether err says the upstream is unhealthy. Client
// errors such as 404 and callers canceling their own requests do not count.
func tripsBreaker(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, model.ErrUpstreamUnavailable)
}
