package spotify

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/justestif/go-mood-recommender/internal/logging"
	"github.com/justestif/go-mood-recommender/internal/metrics"
)

const breakerName = "spotify-recommendations"

// defaultBreakerSettings opens the circuit after 5 consecutive failures and
// probes again after 30 seconds.
func defaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

func newBreaker[T any](s gobreaker.Settings) *gobreaker.CircuitBreaker[T] {
	if s.Name == "" {
		s.Name = breakerName
	}
	metrics.CircuitBreakerState.WithLabelValues(s.Name).Set(stateToFloat(gobreaker.StateClosed))

	onChange := s.OnStateChange
	s.OnStateChange = func(name string, from, to gobreaker.State) {
		logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		if onChange != nil {
			onChange(name, from, to)
		}
	}

	return gobreaker.NewCircuitBreaker[T](s)
}

// execute runs fn through the breaker and records the result.
func execute[T any](cb *gobreaker.CircuitBreaker[T], fn func() (T, error)) (T, error) {
	result, err := cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "failure").Inc()
	}
	return result, err
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
