// Package history keeps a short, expiring window of recent emotion
// observations per user.
//
// Concurrent pushes for the same user are not serialized across calls. Two
// simultaneous requests may each read a window that includes or excludes the
// other's observation; smoothing tolerates this.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/justestif/go-mood-recommender/internal/emotion"
)

const (
	// DefaultWindowSize is the number of observations retained per user.
	DefaultWindowSize = 3

	// DefaultTTL is how long a window survives after its last push.
	DefaultTTL = 24 * time.Hour

	keyPrefix = "mood_smooth:"
)

// ErrInvalidUser is returned when an empty user ID is given.
var ErrInvalidUser = errors.New("user id is required")

// Store is a per-user sliding window of observations.
type Store interface {
	// Push appends obs, trims the window to windowSize and refreshes its expiry.
	Push(ctx context.Context, userID string, obs emotion.Observation, windowSize int) error

	// Recent returns up to limit of the most recent observations, oldest first.
	Recent(ctx context.Context, userID string, limit int) ([]emotion.Observation, error)
}

// windowKey returns the storage key for a user's window.
func windowKey(userID string) string {
	return keyPrefix + userID
}

// trim keeps the last n entries of window.
func trim(window []emotion.Observation, n int) []emotion.Observation {
	if n <= 0 {
		n = DefaultWindowSize
	}
	if len(window) <= n {
		return window
	}
	return window[len(window)-n:]
}

// tail returns a copy of the last limit entries of window.
func tail(window []emotion.Observation, limit int) []emotion.Observation {
	if limit <= 0 || len(window) == 0 {
		return []emotion.Observation{}
	}
	start := max(len(window)-limit, 0)
	out := make([]emotion.Observation, len(window)-start)
	copy(out, window[start:])
	return out
}
