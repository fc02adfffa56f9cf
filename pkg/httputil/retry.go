package httputil

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/matzehuels/automation/pkg/errors"
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, 5xx responses) with this type
// so that [Retry] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as a RetryableError. Retryable(nil) is nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is wrapped with RetryableError.
func IsRetryable(err error) bool {
	return stderrors.As(err, new(*RetryableError))
}

// Retry executes fn up to attempts times with exponential backoff.
// It only retries errors wrapped with [RetryableError]; other errors are
// returned immediately. The delay doubles after each failed attempt.
// Returns the last error if all attempts fail, or ctx.Err() if cancelled.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

// RetryWithBackoff is a convenience wrapper around [Retry] with sensible
// defaults: 3 attempts with 1 second initial delay (doubling each retry).
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Retry(ctx, 3, time.Second, fn)
}

// CheckStatus maps a response status to an error: nil for 2xx, NOT_FOUND for
// 404, a retryable NETWORK_ERROR for 429 and 5xx, NETWORK_ERROR otherwise.
func CheckStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, "%s: %s", resp.Request.URL, resp.Status)
	case code == http.StatusTooManyRequests || code >= 500:
		return Retryable(errors.New(errors.ErrCodeNetwork, "%s: %s", resp.Request.URL, resp.Status))
	default:
		return errors.New(errors.ErrCodeNetwork, "%s: %s", resp.Request.URL, resp.Status)
	}
}
