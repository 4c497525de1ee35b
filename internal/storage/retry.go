package storage

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/ncw/swift/v2"
	"go.uber.org/zap"
)

// RetryPolicy configures how session establishment is retried
type RetryPolicy struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	MaxJitter   time.Duration
}

// DefaultRetryPolicy retries authentication a few times with exponential backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  3,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  30 * time.Second,
		MaxJitter:   500 * time.Millisecond,
	}
}

// withRetry executes op with exponential backoff while the error looks
// transient. The last error is returned unwrapped.
func withRetry(ctx context.Context, policy RetryPolicy, logger *zap.Logger, op func() error) error {
	attempts := policy.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}

		// Don't retry if context cancelled or deadline exceeded
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if !isRetryableError(err) || i == attempts-1 {
			break
		}

		backoff := time.Duration(float64(policy.BaseBackoff) * math.Pow(2, float64(i)))
		if backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
		if policy.MaxJitter > 0 {
			backoff += time.Duration(rand.Int63n(int64(policy.MaxJitter)))
		}

		logger.Info("Retrying operation",
			zap.Int("attempt", i+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var se *swift.Error
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError ||
			se.StatusCode == http.StatusRequestTimeout ||
			se.StatusCode == http.StatusTooManyRequests
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "operation timed out")
}
