package analytics

import (
	"context"

	"github.com/justestif/go-mood-recommender/internal/db"
	"github.com/justestif/go-mood-recommender/internal/logging"
	"github.com/justestif/go-mood-recommender/internal/provider"
)

// DBSink persists records to PostgreSQL.
type DBSink struct {
	db *db.DB
}

// NewDBSink creates a sink backed by database.
func NewDBSink(database *db.DB) *DBSink {
	return &DBSink{db: database}
}

// SaveRecommendation stores the catalog track IDs of a served recommendation.
// Fallback tracks have no catalog IDs and are stored with an empty list.
func (s *DBSink) SaveRecommendation(ctx context.Context, rec provider.Record) error {
	return s.db.Recommendations().Create(ctx, &db.RecommendationRecord{
		UserID:          rec.UserID,
		Emotion:         string(rec.Emotion),
		SpotifyTrackIDs: catalogIDs(rec.TrackIDs),
		Source:          string(rec.Source),
	})
}

// SaveMood stores a detected mood.
func (s *DBSink) SaveMood(ctx context.Context, m Mood) error {
	return s.db.Moods().Create(ctx, &db.MoodRecord{
		UserID:        m.UserID,
		Emotion:       string(m.Emotion),
		Confidence:    m.Confidence,
		Probabilities: m.Probabilities.ToRaw(),
	})
}

// LogSink writes records to the log. Used when no database is configured.
type LogSink struct{}

// SaveRecommendation logs the record.
func (LogSink) SaveRecommendation(ctx context.Context, rec provider.Record) error {
	logging.Ctx(ctx).Info().
		Str("user_id", rec.UserID).
		Str("emotion", string(rec.Emotion)).
		Str("source", string(rec.Source)).
		Int("tracks", len(rec.TrackIDs)).
		Msg("recommendation served")
	return nil
}

// SaveMood logs the record.
func (LogSink) SaveMood(ctx context.Context, m Mood) error {
	logging.Ctx(ctx).Info().
		Str("user_id", m.UserID).
		Str("emotion", string(m.Emotion)).
		Float64("confidence", m.Confidence).
		Msg("mood detected")
	return nil
}

func catalogIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if provider.IsCatalogID(id) {
			out = append(out, id)
		}
	}
	return out
}
