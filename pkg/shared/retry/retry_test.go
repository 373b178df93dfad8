package retry_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/AteetVatan/masx-geosignal/pkg/shared/retry"
)

var _ = Describe("Retry Mechanism", func() {
	var (
		logger *logrus.Logger
		ctx    context.Context
	)

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetLevel(logrus.FatalLevel)
		ctx = context.Background()
	})

	Describe("RetryConfig", func() {
		It("DefaultRetryConfig should provide sensible defaults", func() {
			config := retry.DefaultRetryConfig()
			Expect(config.MaxAttempts).To(Equal(3))
			Expect(config.InitialDelay).To(Equal(100 * time.Millisecond))
			Expect(config.MaxDelay).To(Equal(5 * time.Second))
			Expect(config.BackoffMultiplier).To(Equal(2.0))
			Expect(config.Jitter).To(BeTrue())
		})

		It("DatabaseRetryConfig should provide database-optimized defaults", func() {
			config := retry.DatabaseRetryConfig()
			Expect(config.MaxAttempts).To(Equal(5))
			Expect(config.InitialDelay).To(Equal(250 * time.Millisecond))
			Expect(config.MaxDelay).To(Equal(10 * time.Second))
			Expect(config.BackoffMultiplier).To(Equal(1.5))
			Expect(config.Jitter).To(BeTrue())
		})

		It("FetcherRetryConfig should match the fetcher's documented policy", func() {
			config := retry.FetcherRetryConfig()
			Expect(config.MaxAttempts).To(Equal(4))
			Expect(config.InitialDelay).To(Equal(500 * time.Millisecond))
		})
	})

	Describe("IsRetryableError", func() {
		It("should return false for nil error", func() {
			Expect(retry.IsRetryableError(nil)).To(BeFalse())
		})

		It("should not retry context cancellation", func() {
			Expect(retry.IsRetryableError(context.Canceled)).To(BeFalse())
		})

		It("should retry context deadline exceeded", func() {
			Expect(retry.IsRetryableError(context.DeadlineExceeded)).To(BeTrue())
		})

		It("should identify retryable error message patterns", func() {
			retryable := []string{
				"connection refused",
				"Connection Reset by peer",
				"TIMEOUT: connection timeout exceeded",
				"temporary failure in name resolution",
				"too many connections to database",
				"deadlock detected",
			}
			for _, msg := range retryable {
				Expect(retry.IsRetryableError(errors.New(msg))).To(BeTrue(), msg)
			}
		})

		It("should not retry permanent error message patterns", func() {
			nonRetryable := []string{
				"syntax error in SQL",
				"table does not exist",
				"permission denied",
				"authentication failed",
			}
			for _, msg := range nonRetryable {
				Expect(retry.IsRetryableError(errors.New(msg))).To(BeFalse(), msg)
			}
		})

		It("should respect an explicit WrapRetryableError classification", func() {
			base := errors.New("base error")
			Expect(retry.IsRetryableError(retry.WrapRetryableError(base, true, "test"))).To(BeTrue())
			Expect(retry.IsRetryableError(retry.WrapRetryableError(base, false, "test"))).To(BeFalse())
		})

		It("should handle nil error in WrapRetryableError", func() {
			Expect(retry.WrapRetryableError(nil, true, "test")).To(BeNil())
		})
	})

	Describe("Retrier", func() {
		var retrier *retry.Retrier

		BeforeEach(func() {
			config := retry.RetryConfig{
				MaxAttempts:       3,
				InitialDelay:      10 * time.Millisecond,
				MaxDelay:          100 * time.Millisecond,
				BackoffMultiplier: 2.0,
				Jitter:            false,
			}
			retrier = retry.NewRetrier(config, logger)
		})

		It("should execute operation once on success", func() {
			callCount := 0
			op := func(ctx context.Context, attempt int) (any, error) {
				callCount++
				return "success", nil
			}
			result, err := retrier.ExecuteWithType(ctx, op)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("success"))
			Expect(callCount).To(Equal(1))
		})

		It("should retry retryable errors until success", func() {
			callCount := 0
			op := func(ctx context.Context, attempt int) (any, error) {
				callCount++
				if attempt < 3 {
					return "", errors.New("connection refused")
				}
				return "success after retries", nil
			}
			result, err := retrier.ExecuteWithType(ctx, op)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("success after retries"))
			Expect(callCount).To(Equal(3))
		})

		It("should fail after max attempts with retryable error", func() {
			callCount := 0
			op := func(ctx context.Context, attempt int) (any, error) {
				callCount++
				return "", errors.New("connection timeout")
			}
			result, err := retrier.ExecuteWithType(ctx, op)
			Expect(err).To(HaveOccurred())
			Expect(result).To(BeNil())
			Expect(callCount).To(Equal(3))
			Expect(err.Error()).To(ContainSubstring("operation failed after 3 attempts"))
		})

		It("should fail immediately on non-retryable error", func() {
			callCount := 0
			op := func(ctx context.Context, attempt int) (any, error) {
				callCount++
				return nil, errors.New("syntax error in SQL")
			}
			result, err := retrier.ExecuteWithType(ctx, op)
			Expect(err).To(HaveOccurred())
			Expect(result).To(BeNil())
			Expect(callCount).To(Equal(1))
			Expect(err.Error()).To(ContainSubstring("non-retryable error"))
		})

		It("should stop retrying when context is canceled", func() {
			callCount := 0
			cancelCtx, cancel := context.WithCancel(ctx)
			op := func(ctx context.Context, attempt int) (any, error) {
				callCount++
				if attempt == 2 {
					cancel()
				}
				return nil, errors.New("connection timeout")
			}
			result, err := retrier.ExecuteWithType(cancelCtx, op)
			Expect(err).To(HaveOccurred())
			Expect(result).To(BeNil())
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(callCount).To(BeNumerically(">=", 2))
		})
	})

	Describe("DatabaseRetrier", func() {
		It("should execute database operations with retry support", func() {
			dbRetrier := retry.NewDatabaseRetrier(logger)
			callCount := 0
			op := func(ctx context.Context, attempt int) (any, error) {
				callCount++
				if attempt < 2 {
					return nil, errors.New("too many connections")
				}
				return "database success", nil
			}
			result, err := dbRetrier.ExecuteDBOperation(ctx, "claim_job", op)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("database success"))
			Expect(callCount).To(Equal(2))
		})
	})

	Describe("RetryIfNeeded", func() {
		It("should provide a simple retry wrapper for existing functions", func() {
			callCount := 0
			fn := func() error {
				callCount++
				if callCount < 3 {
					return errors.New("temporary failure")
				}
				return nil
			}
			config := retry.RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, BackoffMultiplier: 2.0}
			Expect(retry.RetryIfNeeded(ctx, config, logger, fn)).To(Succeed())
			Expect(callCount).To(Equal(3))
		})
	})

	Describe("edge cases", func() {
		It("should handle a nil logger gracefully", func() {
			r := retry.NewRetrier(retry.DefaultRetryConfig(), nil)
			result, err := r.ExecuteWithType(ctx, func(ctx context.Context, attempt int) (any, error) {
				return "success", nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("success"))
		})

		It("should execute at least once with zero max attempts", func() {
			config := retry.RetryConfig{MaxAttempts: 0, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffMultiplier: 2.0}
			r := retry.NewRetrier(config, logger)
			callCount := 0
			_, err := r.ExecuteWithType(ctx, func(ctx context.Context, attempt int) (any, error) {
				callCount++
				return "", errors.New("test error")
			})
			Expect(err).To(HaveOccurred())
			Expect(callCount).To(Equal(1))
		})

		It("should cap delay growth under an extreme multiplier", func() {
			config := retry.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, BackoffMultiplier: 1000.0}
			r := retry.NewRetrier(config, logger)
			start := time.Now()
			_, err := r.ExecuteWithType(ctx, func(ctx context.Context, attempt int) (any, error) {
				return "", errors.New("connection timeout")
			})
			Expect(err).To(HaveOccurred())
			Expect(time.Since(start)).To(BeNumerically("<", 100*time.Millisecond))
		})
	})

	Describe("WrapRetryableError", func() {
		It("should wrap and unwrap errors correctly", func() {
			original := errors.New("original error")
			wrapped := retry.WrapRetryableError(original, true, "test reason")
			Expect(wrapped.Error()).To(ContainSubstring("retryable=true"))
			Expect(wrapped.Error()).To(ContainSubstring("test reason"))
			Expect(errors.Unwrap(wrapped)).To(Equal(original))
			Expect(errors.Is(wrapped, original)).To(BeTrue())
		})

		It("should chain with other error wrappers", func() {
			base := errors.New("base error")
			wrappedOnce := fmt.Errorf("wrapped once: %w", base)
			retryableWrapped := retry.WrapRetryableError(wrappedOnce, true, "retryable wrapper")
			Expect(errors.Is(retryableWrapped, base)).To(BeTrue())
			Expect(errors.Is(retryableWrapped, wrappedOnce)).To(BeTrue())
		})
	})
})
