package datafetcher

import (
	"errors"
	"fmt"
)

// DownstreamRateLimitError is returned when the price API answers with a
// throttle notice instead of data. Transient: the caller may retry after
// the provider's quota window passes.
type DownstreamRateLimitError struct {
	Ticker string
	Note   string
}

func (e *DownstreamRateLimitError) Error() string {
	return fmt.Sprintf("price API rate limited for %s: %s", e.Ticker, e.Note)
}

// DownstreamBadRequestError is returned when the price API rejects the
// request itself (unknown symbol, bad parameters). Terminal: retrying the
// same request cannot succeed.
type DownstreamBadRequestError struct {
	Ticker  string
	Message string
}

func (e *DownstreamBadRequestError) Error() string {
	return fmt.Sprintf("price API rejected request for %s: %s", e.Ticker, e.Message)
}

// RetryExhaustedError is returned once an operation has failed its final
// allowed attempt. It wraps the last underlying error.
type RetryExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.LastErr
}

// IsRateLimited reports whether err is (or wraps) a downstream throttle
// response. Used as the retry predicate for price fetches.
func IsRateLimited(err error) bool {
	var rl *DownstreamRateLimitError
	return errors.As(err, &rl)
}
