package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/promessa/internal/model"
)

// fetchSleepFunc is replaced in tests to skip backoff delays.
var fetchSleepFunc = time.Sleep

// Options configures a Client.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	MaxAttempts  int // total attempts including the first
	HTTPProxy    string
	HTTPSProxy   string
	NoProxy      string
	Limiter      *Limiter  // optional per-host rate limiting
	Breakers     *Breakers // optional per-host circuit breakers
}

// Client performs GET requests against upstream data sources
type Client struct {
	httpClient  *http.Client
	userAgent   string
	maxBytes    int64
	maxAttempts int
	limiter     *Limiter
	breakers    *Breakers
}

// NewClient creates a new Client with the given options
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               NewProxyFunc(opts.HTTPProxy, opts.HTTPSProxy, opts.NoProxy),
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent:   opts.UserAgent,
		maxBytes:    opts.MaxBodyBytes,
		maxAttempts: opts.MaxAttempts,
		limiter:     opts.Limiter,
		breakers:    opts.Breakers,
	}
}

// Response is a fully read upstream response
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	FinalURL    string
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// Is makes server-side failures match model.ErrUpstreamUnavailable.
func (e *StatusError) Is(target error) bool {
	return target == model.ErrUpstreamUnavailable && (e.Code >= 500 || e.Code == http.StatusTooManyRequests)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Get performs a single GET request.
func (c *Client) Get(ctx context.Context, rawURL string, accept string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if accept == "" {
		accept = "*/*"
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// GetWithRetry retries transient failures (5xx, 429, connection errors) with
// exponential backoff. Transport failures that survive every attempt are
// wrapped with model.ErrUpstreamUnavailable. The whole retried call counts
// once against the host's circuit breaker.
func (c *Client) GetWithRetry(ctx context.Context, rawURL string, accept string) (*Response, error) {
	return c.breakers.Execute(rawURL, func() (*Response, error) {
		return c.retry(ctx, rawURL, accept)
	})
}

func (c *Client) retry(ctx context.Context, rawURL string, accept string) (*Response, error) {
	var lastErr error
	backoff := 500 * time.Millisecond

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			fetchSleepFunc(backoff)
			backoff *= 2
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", model.ErrUpstreamUnavailable, err)
			}
		}

		resp, err := c.Get(ctx, rawURL, accept)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryableFetchError(err) {
			break
		}
	}

	var se *StatusError
	if errors.As(lastErr, &se) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %w", model.ErrUpstreamUnavailable, lastErr)
}

// GetJSON fetches rawURL with query parameters and decodes the JSON body into out.
// Decode failures are reported as model.ErrMalformedResponse.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, out any) error {
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + query.Encode()
	}

	resp, err := c.GetWithRetry(ctx, rawURL, "application/json")
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", model.ErrMalformedResponse, redact(rawURL), err)
	}
	return nil
}

// isRetryableFetchError checks typed errors first and falls back to the
// message for errors that lost their type along the way.
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	if strings.HasPrefix(msg, "unexpected status: ") {
		var code int
		if _, scanErr := fmt.Sscanf(msg, "unexpected status: %d", &code); scanErr == nil {
			return code >= 500 || code == http.StatusTooManyRequests
		}
	}
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset")
}

// redact drops the query string, which may carry subject names or keys.
func redact(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
