package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/justestif/go-mood-recommender/internal/logging"
	"github.com/justestif/go-mood-recommender/internal/metrics"
)

// ErrNoRecommendations is returned when neither the primary nor the fallback
// provider produced tracks.
var ErrNoRecommendations = errors.New("recommendations unavailable")

// ErrEmptyResult is returned by providers that completed without tracks.
var ErrEmptyResult = errors.New("provider returned no tracks")

// State is a step of the chain's state machine.
type State string

// Terminal chain states.
const (
	StateNotStarted        State = "not_started"
	StatePrimarySucceeded  State = "primary_succeeded"
	StatePrimaryFailed     State = "primary_failed"
	StateFallbackSucceeded State = "fallback_succeeded"
	StateFallbackFailed    State = "fallback_failed"
)

// FailureError reports the state a failed chain run ended in. It matches
// ErrNoRecommendations and the last provider error, if any.
type FailureError struct {
	State State
	Err   error
}

func (e *FailureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v (%s)", ErrNoRecommendations, e.State)
	}
	return fmt.Sprintf("%v (%s): %v", ErrNoRecommendations, e.State, e.Err)
}

func (e *FailureError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNoRecommendations}
	}
	return []error{ErrNoRecommendations, e.Err}
}

// Outcome is the result of a chain run.
type Outcome struct {
	Tracks []Track
	Source Source
	State  State
}

// Chain tries the primary provider and falls back on any failure.
type Chain struct {
	primary  Provider
	fallback Provider
	recorder Recorder
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithRecorder records every successful outcome.
func WithRecorder(r Recorder) ChainOption {
	return func(c *Chain) {
		c.recorder = r
	}
}

// NewChain creates a chain. primary may be nil when no catalog is configured.
func NewChain(primary, fallback Provider, opts ...ChainOption) *Chain {
	c := &Chain{
		primary:  primary,
		fallback: fallback,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recommend returns tracks from the primary provider, or from the fallback
// when the primary fails or returns nothing. A failed run returns a
// *FailureError matching ErrNoRecommendations.
func (c *Chain) Recommend(ctx context.Context, q Query) (*Outcome, error) {
	q.Limit = q.normalizedLimit()
	log := logging.Ctx(ctx).With().Str("user_id", q.UserID).Str("emotion", string(q.Emotion)).Logger()

	state := StateNotStarted
	if c.primary != nil {
		tracks, err := c.primary.Recommend(ctx, q)
		if err == nil && len(tracks) == 0 {
			err = ErrEmptyResult
		}
		if err == nil {
			return c.succeed(ctx, q, tracks, SourcePrimary, StatePrimarySucceeded), nil
		}

		state = StatePrimaryFailed
		log.Warn().Err(err).Msg("primary provider failed, using fallback")
		metrics.ProviderFallbacks.Inc()
	}

	if c.fallback == nil {
		log.Error().Str("state", string(state)).Msg("no fallback provider configured")
		return nil, &FailureError{State: state}
	}

	tracks, err := c.fallback.Recommend(ctx, q)
	if err == nil && len(tracks) == 0 {
		err = ErrEmptyResult
	}
	if err != nil {
		log.Error().Err(err).Str("state", string(StateFallbackFailed)).Msg("fallback provider failed")
		return nil, &FailureError{State: StateFallbackFailed, Err: err}
	}

	return c.succeed(ctx, q, tracks, SourceFallback, StateFallbackSucceeded), nil
}

func (c *Chain) succeed(ctx context.Context, q Query, tracks []Track, source Source, state State) *Outcome {
	if len(tracks) > q.Limit {
		tracks = tracks[:q.Limit]
	}
	metrics.RecommendationsServed.WithLabelValues(string(source)).Inc()

	if c.recorder != nil {
		ids := make([]string, len(tracks))
		for i, t := range tracks {
			ids[i] = t.ID
		}
		err := c.recorder.RecordRecommendation(ctx, Record{
			UserID:   q.UserID,
			Emotion:  q.Emotion,
			TrackIDs: ids,
			Source:   source,
		})
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("recording recommendation failed")
		}
	}

	return &Outcome{Tracks: tracks, Source: source, State: state}
}
