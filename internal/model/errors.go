package model

import "errors"

var (
	// ErrUpstreamUnavailable means a budget, voting or news source was unreachable or timed out.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrMalformedResponse means a provider answered with data that failed schema checks.
	ErrMalformedResponse = errors.New("malformed upstream response")
	// ErrExtractionUnavailable means every reasoning provider failed.
	ErrExtractionUnavailable = errors.New("claim extraction unavailable")
	// ErrIdentifierNotFound means the subject is not in the legislative roster.
	ErrIdentifierNotFound = errors.New("identifier not found")
	// ErrBudgetNotFound means no budget figures exist for the requested line.
	ErrBudgetNotFound = errors.New("budget data not found")
	ErrJobNotFound    = errors.New("job not found")
	// ErrInvalidInput means the caller supplied an unusable request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrJobFailed wraps the stored reason of a failed audit job.
	ErrJobFailed = errors.New("audit job failed")
)

// IsUpstream reports whether err is an upstream failure. Malformed responses
// are treated the same as unavailability.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, ErrMalformedResponse)
}
