// Package provider sources tracks for an audio-feature target, falling back
// from the primary catalog to a curated local set.
package provider

import (
	"context"
	"regexp"

	"github.com/justestif/go-mood-recommender/internal/emotion"
	"github.com/justestif/go-mood-recommender/internal/mapping"
)

const (
	// DefaultLimit is the number of tracks requested when none is given.
	DefaultLimit = 20

	// MaxLimit is the largest number of tracks a catalog returns per query.
	MaxLimit = 100
)

// Source identifies which provider produced a result.
type Source string

const (
	// SourcePrimary is the external music catalog.
	SourcePrimary Source = "primary"
	// SourceFallback is the curated local playlist set.
	SourceFallback Source = "fallback"
)

// Track is a recommended track in provider-neutral form.
type Track struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Artist         string `json:"artist"`
	PreviewURL     string `json:"preview_url,omitempty"`
	ExternalURL    string `json:"external_url,omitempty"`
	YouTubeVideoID string `json:"youtube_video_id,omitempty"`
}

var catalogID = regexp.MustCompile(`^[0-9A-Za-z]{22}$`)

// IsCatalogID reports whether id has the shape of a primary catalog track ID.
func IsCatalogID(id string) bool {
	return catalogID.MatchString(id)
}

// Query describes a track request.
type Query struct {
	UserID  string
	Emotion emotion.Label
	Target  mapping.Target
	Limit   int
}

// normalizedLimit clamps the limit into [1, MaxLimit], defaulting when unset.
func (q Query) normalizedLimit() int {
	switch {
	case q.Limit <= 0:
		return DefaultLimit
	case q.Limit > MaxLimit:
		return MaxLimit
	default:
		return q.Limit
	}
}

// Provider returns tracks matching a query.
type Provider interface {
	Recommend(ctx context.Context, q Query) ([]Track, error)
}

// Record describes a successful recommendation for history purposes.
type Record struct {
	UserID   string
	Emotion  emotion.Label
	TrackIDs []string
	Source   Source
}

// Recorder persists recommendation history. Implementations must not block
// for long; errors are logged and ignored by the chain.
type Recorder interface {
	RecordRecommendation(ctx context.Context, rec Record) error
}
