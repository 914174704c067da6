package portpro

import (
	"context"
	"log/slog"
	"time"

	"github.com/abakymuk/nsl-sub001/internal/metrics"
	"github.com/pkg/errors"
	gobreaker "github.com/sony/gobreaker/v2"
)

type BreakerSettings struct {
	Name string
	// ConsecutiveFailures opens the circuit.
	ConsecutiveFailures uint32
	// OpenTimeout is the time spent open before a half-open probe.
	OpenTimeout time.Duration
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.Name == "" {
		s.Name = "portpro-api"
	}
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = time.Minute
	}
	return s
}

// BreakerClient wraps a Client with a circuit breaker. Configuration errors
// and errors caused by the caller's own context (cancel or an expired run
// budget) do not count as upstream failures.
type BreakerClient struct {
	next Client
	cb   *gobreaker.CircuitBreaker[Page]
	name string
}

func NewBreakerClient(next Client, s BreakerSettings) *BreakerClient {
	s = s.withDefaults()

	metrics.CircuitBreakerState.WithLabelValues(s.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[Page](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			var cd *callerDoneError
			return err == nil ||
				errors.Is(err, ErrNotConfigured) ||
				errors.As(err, &cd)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &BreakerClient{next: next, cb: cb, name: s.Name}
}

func (b *BreakerClient) FetchLoads(ctx context.Context, skip, limit int) (Page, error) {
	page, err := b.cb.Execute(func() (Page, error) {
		p, err := b.next.FetchLoads(ctx, skip, limit)
		if err != nil && ctx.Err() != nil {
			return p, &callerDoneError{err: err}
		}
		return p, err
	})
	var cd *callerDoneError
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	case errors.As(err, &cd):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "canceled").Inc()
		return page, cd.err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		return Page{}, errors.Wrap(err, "portpro circuit")
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	}
	return page, err
}

// callerDoneError marks a fetch that failed after the caller's context ended.
// A client-side http timeout leaves ctx alive and still counts as a failure.
type callerDoneError struct {
	err error
}

func (e *callerDoneError) Error() string { return e.err.Error() }

func (e *callerDoneError) Unwrap() error { return e.err }

// State is exposed on the worker /stats endpoint.
func (b *BreakerClient) State() string {
	return b.cb.State().String()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
