package gmailapi

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Backoff schedule for a single Client call (spec §4.1): 100ms initial,
// doubling, capped at 30s per attempt and 300s total elapsed.
const (
	initialInterval = 100 * time.Millisecond
	maxInterval     = 30 * time.Second
	maxElapsedTime  = 300 * time.Second
)

// newCircuitBreaker builds the per-client circuit breaker, grounded on the
// teacher's gmail adapter settings: trips after 5 consecutive failures, or
// a 60% failure ratio over at least 10 requests within a 60s window, and
// recovers through a 30s open period before probing with 3 half-open
// requests.
func newCircuitBreaker(log zerolog.Logger) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures >= 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			var nce *nonCircuitError
			return err == nil || errors.As(err, &nce)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	}
	return gobreaker.NewCircuitBreaker(settings)
}
