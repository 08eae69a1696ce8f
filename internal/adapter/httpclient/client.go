// Package httpclient provides the retrying, circuit-broken GET client used by
// the remote data source providers.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/couchcryptid/ocean-data-service/internal/domain"
	"github.com/couchcryptid/ocean-data-service/internal/observability"
)

// MaxBodyBytes is the default cap on a response body.
const MaxBodyBytes = 64 << 20

// ErrBodyTooLarge is returned when a response body exceeds the configured cap.
// Such a response is never truncated and is not retried.
var ErrBodyTooLarge = errors.New("response body too large")

// Doer is the subset of *http.Client used by Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config tunes timeouts, retries and the circuit breaker.
type Config struct {
	Name             string
	Timeout          time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
	Multiplier       float64
	FailureThreshold uint32
	BreakerTimeout   time.Duration

	// MaxBodyBytes caps response bodies. Zero means MaxBodyBytes.
	MaxBodyBytes int64
}

// DefaultConfig returns the settings used for data source fetches.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		Timeout:          10 * time.Second,
		MaxRetries:       2,
		RetryDelay:       250 * time.Millisecond,
		Multiplier:       2,
		FailureThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// Unwrap maps client errors to the api category and server errors to network.
func (e *StatusError) Unwrap() error {
	if e.clientError() {
		return domain.ErrAPI
	}
	return domain.ErrNetwork
}

func (e *StatusError) clientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Client performs GET requests with exponential backoff behind a circuit breaker.
type Client struct {
	doer       Doer
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
	metrics    *observability.Metrics
	maxRetries int
	retryDelay time.Duration
	multiplier float64
	maxBody    int64
}

// New creates a Client with its own *http.Client and breaker.
func New(cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return NewWithDoer(&http.Client{Timeout: cfg.Timeout}, cfg, logger, metrics)
}

// NewWithDoer creates a Client over an existing transport.
func NewWithDoer(doer Doer, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = MaxBodyBytes
	}
	multiplier := cfg.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "client", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: breakerSuccess,
	}

	return &Client{
		doer:       doer,
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
		metrics:    metrics,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		multiplier: multiplier,
		maxBody:    maxBody,
	}
}

// State returns the breaker state name (closed, half-open, open).
func (c *Client) State() string {
	return c.breaker.State().String()
}

// Get fetches url and returns the response body. Extra headers are added to
// every attempt.
func (c *Client) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	body, err := c.breaker.Execute(func() (interface{}, error) {
		return c.getWithRetry(ctx, url, header)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.HTTPClientRequests.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("%w: GET %s: %w", domain.ErrNetwork, url, err)
		}
		c.metrics.HTTPClientRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.HTTPClientRequests.WithLabelValues("success").Inc()
	return body.([]byte), nil
}

func (c *Client) getWithRetry(ctx context.Context, url string, header http.Header) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.retryDelay) * math.Pow(c.multiplier, float64(attempt-1)))
			c.logger.Debug("retrying request", "url", url, "attempt", attempt, "delay", delay)
			c.metrics.HTTPClientRequests.WithLabelValues("retry").Inc()

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		body, err := c.get(ctx, url, header)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if permanent(err) {
			return nil, err
		}
		c.logger.Warn("http request failed", "url", url, "attempt", attempt, "error", err)
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", domain.ErrNetwork, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for connection reuse
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	// One byte past the cap distinguishes an oversized body from one that
	// fits exactly.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrNetwork, url, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: GET %s: %w (limit %d bytes)", domain.ErrAPI, url, ErrBodyTooLarge, c.maxBody)
	}
	return body, nil
}

// breakerSuccess keeps client errors and caller cancellation from tripping the breaker.
func breakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	return permanent(err)
}

// permanent reports errors that a retry cannot fix: 4xx responses other than
// 429, and oversized bodies.
func permanent(err error) bool {
	if errors.Is(err, ErrBodyTooLarge) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.clientError()
}
