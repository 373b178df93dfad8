// Package fetcher implements the bounded-concurrency, per-host admission
// controlled HTTP fetch stage: a global semaphore, a per-host semaphore plus
// minimum inter-request spacing, a per-host circuit breaker, and capped
// exponential-backoff retries.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/AteetVatan/masx-geosignal/internal/config"
	"github.com/AteetVatan/masx-geosignal/pkg/metrics"
	"github.com/AteetVatan/masx-geosignal/pkg/model"
	"github.com/AteetVatan/masx-geosignal/pkg/shared/httpclient"
	"github.com/AteetVatan/masx-geosignal/pkg/shared/logging"
	"github.com/AteetVatan/masx-geosignal/pkg/shared/retry"
)

// Reason classifies a fetch failure for the job state machine.
type Reason = model.FailureReason

// FetchError is returned by Fetch when the request ultimately fails; Reason
// maps directly onto the job state machine's taxonomy.
type FetchError struct {
	URL    string
	Reason Reason
	Status int
	Cause  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed (%s): %v", e.URL, e.Reason, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Result is a successful fetch's payload.
type Result struct {
	Body     []byte
	Status   int
	FinalURL string
}

// Fetcher is safe for concurrent use by many goroutines.
type Fetcher struct {
	cfg    config.FetcherConfig
	client *http.Client
	logger *logrus.Logger

	global *semaphore.Weighted

	mu        sync.Mutex
	perHost   map[string]*hostState
}

type hostState struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// New builds a Fetcher. client may be nil, in which case a cookie-jar backed
// client is constructed from cfg.
func New(cfg config.FetcherConfig, client *http.Client, logger *logrus.Logger) (*Fetcher, error) {
	if client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build cookie jar: %w", err)
		}
		client = httpclient.NewClient(httpclient.FetcherClientConfig(cfg.FetchTimeout))
		client.Jar = jar
	}
	return &Fetcher{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		global:  semaphore.NewWeighted(int64(cfg.MaxConcurrentFetches)),
		perHost: make(map[string]*hostState),
	}, nil
}

func (f *Fetcher) hostStateFor(host string) *hostState {
	f.mu.Lock()
	defer f.mu.Unlock()
	hs, ok := f.perHost[host]
	if !ok {
		st := gobreaker.Settings{
			Name:        host,
			MaxRequests: 1,
			Timeout:     f.cfg.CircuitOpenDuration,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= f.cfg.CircuitFailureThreshold
			},
			OnStateChange: func(name string, _, to gobreaker.State) {
				if to == gobreaker.StateOpen {
					metrics.RecordCircuitOpen(name)
				}
			},
		}
		hs = &hostState{
			sem:     semaphore.NewWeighted(int64(f.cfg.PerDomainConcurrency)),
			limiter: rate.NewLimiter(rate.Every(f.cfg.RequestDelay), 1),
			breaker: gobreaker.NewCircuitBreaker(st),
		}
		f.perHost[host] = hs
	}
	return hs
}

// Fetch performs a GET for rawURL, honoring global and per-host admission
// control, circuit breaking, and the retry policy. Returns a *FetchError on
// any terminal failure.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: model.ReasonFetchError, Cause: err}
	}
	host := u.Hostname()

	if err := f.global.Acquire(ctx, 1); err != nil {
		return nil, &FetchError{URL: rawURL, Reason: model.ReasonCancelled, Cause: err}
	}
	defer f.global.Release(1)

	hs := f.hostStateFor(host)
	if err := hs.sem.Acquire(ctx, 1); err != nil {
		return nil, &FetchError{URL: rawURL, Reason: model.ReasonCancelled, Cause: err}
	}
	defer func() {
		if f.cfg.RequestDelay > 0 {
			_ = hs.limiter.Wait(context.Background())
		}
		hs.sem.Release(1)
	}()

	retryCfg := retry.FetcherRetryConfig()
	if f.cfg.MaxRetries > 0 {
		retryCfg.MaxAttempts = f.cfg.MaxRetries
	}
	retrier := retry.NewRetrier(retryCfg, f.logger)
	out, err := retrier.ExecuteWithType(ctx, func(ctx context.Context, attempt int) (any, error) {
		res, breakerErr := hs.breaker.Execute(func() (interface{}, error) {
			return f.doOnce(ctx, rawURL)
		})
		if breakerErr != nil {
			if breakerErr == gobreaker.ErrOpenState || breakerErr == gobreaker.ErrTooManyRequests {
				return nil, &FetchError{URL: rawURL, Reason: model.ReasonDomainBlocked, Cause: breakerErr}
			}
			return nil, breakerErr
		}
		return res, nil
	})
	if err != nil {
		f.logger.WithFields(logging.FetchFields("fetch", rawURL, host).Error(err).ToLogrus()).Warn("fetch failed")
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &FetchError{URL: rawURL, Reason: model.ReasonFetchError, Cause: err}
	}
	return out.(*Result), nil
}

func (f *Fetcher) doOnce(ctx context.Context, rawURL string) (*Result, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: model.ReasonFetchError, Cause: retry.WrapRetryableError(err, false, "bad request")}
	}
	req.Header.Set("User-Agent", "geosignal-pipeline/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			return nil, &FetchError{URL: rawURL, Reason: model.ReasonTimeout, Cause: retry.WrapRetryableError(err, true, "timeout")}
		}
		return nil, &FetchError{URL: rawURL, Reason: model.ReasonFetchError, Cause: retry.WrapRetryableError(err, true, "connect error")}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		delay := parseRetryAfter(resp.Header.Get("Retry-After"))
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &FetchError{URL: rawURL, Reason: model.ReasonCancelled, Cause: ctx.Err()}
			}
		}
		return nil, &FetchError{URL: rawURL, Reason: model.ReasonHTTP4xx, Status: resp.StatusCode, Cause: retry.WrapRetryableError(fmt.Errorf("429 too many requests"), true, "rate limited")}
	}
	if resp.StatusCode == http.StatusRequestTimeout {
		return nil, &FetchError{URL: rawURL, Reason: model.ReasonTimeout, Status: resp.StatusCode, Cause: retry.WrapRetryableError(fmt.Errorf("408 request timeout"), true, "request timeout")}
	}
	if resp.StatusCode >= 500 {
		return nil, &FetchError{URL: rawURL, Reason: model.ReasonHTTP5xx, Status: resp.StatusCode, Cause: retry.WrapRetryableError(fmt.Errorf("server error %d", resp.StatusCode), true, "5xx")}
	}
	if resp.StatusCode >= 400 {
		return nil, &FetchError{URL: rawURL, Reason: model.ReasonHTTP4xx, Status: resp.StatusCode, Cause: retry.WrapRetryableError(fmt.Errorf("client error %d", resp.StatusCode), false, "4xx")}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: model.ReasonFetchError, Cause: retry.WrapRetryableError(err, true, "body read error")}
	}

	return &Result{Body: body, Status: resp.StatusCode, FinalURL: resp.Request.URL.String()}, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}
