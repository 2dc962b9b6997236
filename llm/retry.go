package llm

import (
	"context"
	"time"
)

// RetryingClient wraps a TextClient and retries transient failures with
// linear backoff. Rejected and malformed responses are returned
// immediately.
type RetryingClient struct {
	inner    TextClient
	attempts int
	backoff  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// RetryOption configures a RetryingClient.
type RetryOption func(*RetryingClient)

// WithAttempts sets the total number of attempts, including the first.
func WithAttempts(n int) RetryOption {
	return func(c *RetryingClient) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithBackoff sets the base delay. Attempt n waits n times the base.
func WithBackoff(d time.Duration) RetryOption {
	return func(c *RetryingClient) {
		if d >= 0 {
			c.backoff = d
		}
	}
}

// withSleep overrides the delay implementation. Used in tests.
func withSleep(fn func(ctx context.Context, d time.Duration) error) RetryOption {
	return func(c *RetryingClient) {
		c.sleep = fn
	}
}

// NewRetryingClient wraps inner with retry behavior. The defaults are
// three attempts with a one second base delay.
func NewRetryingClient(inner TextClient, opts ...RetryOption) *RetryingClient {
	c := &RetryingClient{
		inner:    inner,
		attempts: 3,
		backoff:  time.Second,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate calls the inner client, retrying transient failures until the
// attempt budget runs out. Context cancellation stops the retry loop.
func (c *RetryingClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		out, err := c.inner.Generate(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !IsTransient(err) || attempt == c.attempts {
			return "", err
		}
		if err := c.sleep(ctx, time.Duration(attempt)*c.backoff); err != nil {
			return "", NewServiceError(KindTransient, "generate", err)
		}
	}
	return "", lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Compile-time interface check.
var _ TextClient = (*RetryingClient)(nil)
