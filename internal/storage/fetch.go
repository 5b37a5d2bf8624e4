package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wpl-go/weather-provider-storage/internal/dataset"
	"github.com/wpl-go/weather-provider-storage/internal/meteo"
	"github.com/wpl-go/weather-provider-storage/internal/model"
)

// BackoffConfig controls exponential backoff behaviour around live fetches.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// FetchConfig bundles the resilience settings applied to every live fetch.
type FetchConfig struct {
	Backoff BackoffConfig
	// Timeout bounds each individual fetch attempt. A timeout counts as a
	// fetch failure; it never touches storage.
	Timeout time.Duration
}

// DefaultFetchConfig mirrors the retry profile used for outbound provider
// calls elsewhere in the project.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Backoff: BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		Timeout: 30 * time.Second,
	}
}

var errCircuitOpen = errors.New("circuit breaker open")

type fetchResult struct {
	data     *dataset.Dataset
	complete bool
}

// fetchWithResilience executes the model's live fetch with retries,
// exponential backoff, and a circuit breaker. All attempts obey ctx; the
// error returned after exhausted retries is a FetchError scoped to the
// requested period.
func fetchWithResilience(
	ctx context.Context,
	cfg FetchConfig,
	cb *gobreaker.CircuitBreaker,
	m model.Model,
	period meteo.Period,
	extent meteo.Extent,
	factors []string,
) (*dataset.Dataset, bool, error) {
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, false, fmt.Errorf("invalid backoff configuration")
	}

	var attempt int
	var lastErr error

	for {
		if err := ctx.Err(); err != nil {
			return nil, false, &FetchError{ModelCode: m.Code(), Period: period, Attempts: attempt + 1, Err: err}
		}

		result, err := cb.Execute(func() (interface{}, error) {
			attemptCtx := ctx
			if cfg.Timeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
				defer cancel()
			}
			data, complete, execErr := m.FetchLive(attemptCtx, period, extent, factors)
			if execErr != nil {
				return nil, execErr
			}
			return fetchResult{data: data, complete: complete}, nil
		})

		if err == nil {
			res, ok := result.(fetchResult)
			if !ok {
				return nil, false, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return res.data, res.complete, nil
		}

		// An open circuit fails the sub-range immediately; retrying would
		// only hammer a provider that is already refusing calls.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, false, &FetchError{
				ModelCode: m.Code(), Period: period, Attempts: attempt + 1,
				Err: fmt.Errorf("%w: %v", errCircuitOpen, err),
			}
		}

		lastErr = err
		if attempt >= cfg.Backoff.MaxRetries {
			return nil, false, &FetchError{ModelCode: m.Code(), Period: period, Attempts: attempt + 1, Err: lastErr}
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if cfg.Backoff.MaxInterval > 0 && delay > cfg.Backoff.MaxInterval {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, false, &FetchError{ModelCode: m.Code(), Period: period, Attempts: attempt + 1, Err: ctx.Err()}
		case <-timer.C:
		}

		attempt++
	}
}

// newFetchBreaker builds the per-model circuit breaker guarding live
// fetches.
func newFetchBreaker(modelCode string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        modelCode,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}
