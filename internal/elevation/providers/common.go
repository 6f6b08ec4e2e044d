package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/itinerary-elevation/internal/elevation"
)

// maxErrorBody caps how much of a failed response body ends up in errors.
const maxErrorBody = 512

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
	Logger  *zap.Logger
}

// DefaultBackoff is used when a provider is built without explicit settings.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		MaxRetries:      2,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// statusError keeps the status code of a failed attempt for NetworkError.
type statusError struct {
	code int
	body string
	err  error
}

func (e *statusError) Error() string {
	if e.body == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%v: %s", e.err, e.body)
}

func (e *statusError) Unwrap() error { return e.err }

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// pointTripThreshold is the number of consecutive transport or 5xx failures
// that opens a single-point provider's circuit.
const pointTripThreshold = 10

// newPointCircuitBreaker guards a single-point provider. A 4xx answer is about
// one coordinate (or the key) and leaves the circuit closed; only transport
// errors and 5xx answers count towards tripping it.
func newPointCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= pointTripThreshold
		},
		IsSuccessful: isClientSideAnswer,
	})
}

// isClientSideAnswer reports whether err is nil or a 4xx answer from the server.
func isClientSideAnswer(err error) bool {
	if err == nil {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && se.code >= 400 && se.code < 500
}

// doRequestWithResilience executes the HTTP request with retries, exponential
// backoff and a circuit breaker, and returns the full response body. Every
// failure comes back as a *elevation.NetworkError, except context
// cancellation which is returned as is.
func doRequestWithResilience(
	ctx context.Context,
	provider string,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) ([]byte, error) {
	if cfg.Client == nil {
		return nil, &elevation.NetworkError{Provider: provider, Err: errNoHTTPClient}
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, &elevation.NetworkError{Provider: provider, Err: errInvalidConfig}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.Backoff.InitialInterval
	if cfg.Backoff.MaxInterval > 0 {
		exp.MaxInterval = cfg.Backoff.MaxInterval
	}
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(cfg.Backoff.MaxRetries)), ctx)

	var body []byte
	operation := func() error {
		req, err := buildRequest()
		if err != nil {
			return backoff.Permanent(err)
		}

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			defer resp.Body.Close()

			// Handle rate limiting and server errors explicitly.
			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, &statusError{code: resp.StatusCode, err: errRateLimited}
			}
			if resp.StatusCode >= 500 {
				return nil, &statusError{code: resp.StatusCode, body: readSnippet(resp.Body), err: errServerError}
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, &statusError{
					code: resp.StatusCode,
					body: readSnippet(resp.Body),
					err:  fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode),
				}
			}

			return io.ReadAll(resp.Body)
		})
		if err != nil {
			// If circuit is open, give up on this provider immediately.
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(fmt.Errorf("%w: %v", errCircuitOpen, err))
			}
			// Client errors other than 429 will not get better by retrying.
			var se *statusError
			if errors.As(err, &se) && errors.Is(se, errUnexpected) {
				return backoff.Permanent(err)
			}
			return err
		}

		b, ok := result.([]byte)
		if !ok {
			return backoff.Permanent(fmt.Errorf("unexpected result type from circuit breaker"))
		}
		body = b
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Debug("provider request failed; retrying",
			zap.String("provider", provider),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		ne := &elevation.NetworkError{Provider: provider, Err: err}
		var se *statusError
		if errors.As(err, &se) {
			ne.StatusCode = se.code
		}
		return nil, ne
	}
	return body, nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return string(b)
}

func float64Ptr(v float64) *float64 { return &v }
