package embeddings

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// RetryPolicy configures exponential backoff for transient API failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy returns sensible defaults for embedding APIs.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Multiplier:  2,
	}
}

// retryService wraps a Service with backoff retry. Retry is skipped on
// context cancellation.
type retryService struct {
	inner  Service
	policy RetryPolicy
}

// WithRetry wraps a service so transient failures are retried with
// exponential backoff.
func WithRetry(inner Service, policy RetryPolicy) Service {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &retryService{inner: inner, policy: policy}
}

func (r *retryService) Embed(ctx context.Context, text string) ([]float32, error) {
	return retryWithBackoff(ctx, r.policy, func() ([]float32, error) {
		return r.inner.Embed(ctx, text)
	})
}

func (r *retryService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return retryWithBackoff(ctx, r.policy, func() ([]float32, error) {
		return r.inner.EmbedQuery(ctx, query)
	})
}

func (r *retryService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return retryWithBackoff(ctx, r.policy, func() ([][]float32, error) {
		return r.inner.EmbedBatch(ctx, texts)
	})
}

func (r *retryService) Dimensions() int   { return r.inner.Dimensions() }
func (r *retryService) Provider() string  { return r.inner.Provider() }
func (r *retryService) ModelName() string { return r.inner.ModelName() }

func retryWithBackoff[T any](ctx context.Context, policy RetryPolicy, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero T
	backoff := policy.BaseDelay

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if attempt < policy.MaxAttempts-1 {
			log.Debug("Embedding request failed, retrying", "attempt", attempt+1, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * policy.Multiplier)
				if backoff > policy.MaxDelay {
					backoff = policy.MaxDelay
				}
			}
		}
	}

	return zero, lastErr
}
