package retry

// Per-page retry policy for the holders pipeline
// Two kinds of delay: a short pause after ordinary failures (keeps us under 5 req/s)
// and a long cooldown once the API reports its quota is spent
// Delays go through a Sleeper so callers (and tests) control how time passes

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts   = 3
	DefaultRetryDelay    = 200 * time.Millisecond
	DefaultQuotaCooldown = time.Hour
)

type Policy struct {
	MaxAttempts   int
	RetryDelay    time.Duration
	QuotaCooldown time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   DefaultMaxAttempts,
		RetryDelay:    DefaultRetryDelay,
		QuotaCooldown: DefaultQuotaCooldown,
	}
}

// Validate rejects policies the pipeline cannot run with.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.RetryDelay < 0 {
		return fmt.Errorf("retry delay must not be negative, got %s", p.RetryDelay)
	}
	if p.QuotaCooldown < 0 {
		return fmt.Errorf("quota cooldown must not be negative, got %s", p.QuotaCooldown)
	}
	return nil
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-time Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	select {
	case <-ctx.Done():
		t.Stop()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// HTTPError is a non-2xx response worth counting as an upstream fault (5xx).
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "http error: <nil>"
	}
	if len(e.Body) == 0 {
		return fmt.Sprintf("http error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("http error (%d): %s", e.StatusCode, string(e.Body))
}
