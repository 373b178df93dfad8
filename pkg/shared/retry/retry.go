// Package retry provides a generic exponential-backoff retry engine shared
// by every stage that calls an external collaborator: the fetcher (origin
// HTTP), the storage layer (Postgres), and the summarizer oracle.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryConfig parameterizes the backoff schedule.
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool
}

// DefaultRetryConfig is the general-purpose preset.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// DatabaseRetryConfig is tuned for transient Postgres errors: more attempts,
// a gentler multiplier, a longer cap.
func DatabaseRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialDelay:      250 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 1.5,
		Jitter:            true,
	}
}

// FetcherRetryConfig is the fetch stage's retry policy: base 0.5s,
// factor 2, jitter, max 4 attempts.
func FetcherRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       4,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          8 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// OracleRetryConfig is the summarizer oracle's retry policy: up to 3
// retries with exponential backoff.
func OracleRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       4,
		InitialDelay:      1 * time.Second,
		MaxDelay:          15 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

var retryableMessagePatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"too many connections",
	"deadlock detected",
	"lock timeout",
	"serialization failure",
	"could not serialize access",
	"connection lost",
	"server closed the connection",
	"broken pipe",
	"i/o timeout",
	"network is unreachable",
	"no route to host",
}

var nonRetryableMessagePatterns = []string{
	"syntax error",
	"does not exist",
	"permission denied",
	"authentication failed",
	"invalid input",
	"constraint violation",
	"constraint fails",
}

// retryableError lets a stage mark a classification explicitly instead of
// relying on the message heuristic below.
type retryableError struct {
	cause     error
	retryable bool
	reason    string
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("%s (retryable=%t): %s", e.reason, e.retryable, e.cause.Error())
}

func (e *retryableError) Unwrap() error {
	return e.cause
}

// WrapRetryableError attaches an explicit retryable classification to err.
// Returns nil if err is nil.
func WrapRetryableError(err error, retryable bool, reason string) error {
	if err == nil {
		return nil
	}
	return &retryableError{cause: err, retryable: retryable, reason: reason}
}

// IsRetryableError classifies err as transient or permanent. An explicit
// *retryableError classification (from WrapRetryableError) takes precedence;
// otherwise context.Canceled is never retryable, context.DeadlineExceeded
// always is, and everything else falls back to a message-substring
// heuristic biased toward the non-retryable patterns when both match.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var re *retryableError
	if errors.As(err, &re) {
		return re.retryable
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range nonRetryableMessagePatterns {
		if strings.Contains(msg, p) {
			return false
		}
	}
	for _, p := range retryableMessagePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Operation is a retryable unit of work. attempt is 1-indexed.
type Operation func(ctx context.Context, attempt int) (any, error)

// Retrier executes an Operation under a RetryConfig's backoff schedule.
type Retrier struct {
	config RetryConfig
	logger *logrus.Logger
}

// NewRetrier builds a Retrier. A nil logger is replaced with a silent one.
func NewRetrier(config RetryConfig, logger *logrus.Logger) *Retrier {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
		logger.SetLevel(logrus.PanicLevel)
	}
	return &Retrier{config: config, logger: logger}
}

// ExecuteWithType runs op, retrying retryable failures per the configured
// backoff schedule up to MaxAttempts times (at least once regardless of a
// misconfigured MaxAttempts <= 0).
func (r *Retrier) ExecuteWithType(ctx context.Context, op Operation) (any, error) {
	maxAttempts := r.config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := op(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryableError(err) {
			return nil, fmt.Errorf("non-retryable error: %w", err)
		}

		if attempt == maxAttempts {
			break
		}

		delay := r.backoffDelay(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("operation failed after %d attempts: %w", maxAttempts, lastErr)
}

func (r *Retrier) backoffDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= r.config.BackoffMultiplier
	}
	if max := float64(r.config.MaxDelay); r.config.MaxDelay > 0 && delay > max {
		delay = max
	}
	if r.config.Jitter {
		jitter := delay * 0.25
		delay += (rand.Float64()*2 - 1) * jitter
		if delay < 0 {
			delay = 0
		}
	}
	return time.Duration(delay)
}

// DatabaseRetrier is a Retrier preconfigured with DatabaseRetryConfig and a
// named-operation wrapper for storage-layer log context.
type DatabaseRetrier struct {
	*Retrier
}

// NewDatabaseRetrier builds a DatabaseRetrier.
func NewDatabaseRetrier(logger *logrus.Logger) *DatabaseRetrier {
	return &DatabaseRetrier{Retrier: NewRetrier(DatabaseRetryConfig(), logger)}
}

// ExecuteDBOperation runs op under the database retry schedule, logging the
// operation name on each failed attempt.
func (d *DatabaseRetrier) ExecuteDBOperation(ctx context.Context, name string, op Operation) (any, error) {
	wrapped := func(ctx context.Context, attempt int) (any, error) {
		result, err := op(ctx, attempt)
		if err != nil {
			d.logger.WithError(err).WithField("operation", name).WithField("attempt", attempt).Debug("database operation failed")
		}
		return result, err
	}
	return d.Retrier.ExecuteWithType(ctx, wrapped)
}

// RetryIfNeeded is a simple adapter for existing functions of shape
// `func() error`, useful for call sites that do not need the Operation's
// attempt/context parameters.
func RetryIfNeeded(ctx context.Context, config RetryConfig, logger *logrus.Logger, fn func() error) error {
	retrier := NewRetrier(config, logger)
	_, err := retrier.ExecuteWithType(ctx, func(ctx context.Context, attempt int) (any, error) {
		return nil, fn()
	})
	return err
}
