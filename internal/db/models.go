package db

import (
	"time"

	"github.com/google/uuid"
)

// RecommendationRecord is one served recommendation list.
type RecommendationRecord struct {
	ID                uuid.UUID
	UserID            string
	Emotion           string
	SpotifyPlaylistID *string // nullable
	SpotifyTrackIDs   []string
	Source            string // "primary" or "fallback"
	CreatedAt         time.Time
}

// MoodRecord is one detected mood observation.
type MoodRecord struct {
	ID            uuid.UUID
	UserID        string
	Emotion       string
	Confidence    float64
	Probabilities map[string]float64
	CreatedAt     time.Time
}
