package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecommendationRepository handles recommendation history operations.
type RecommendationRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a recommendation record, assigning an ID if unset.
func (r *RecommendationRepository) Create(ctx context.Context, rec *RecommendationRecord) error {
	query := `
		INSERT INTO recommendations (id, user_id, emotion, spotify_playlist_id, spotify_track_ids, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	trackIDs := rec.SpotifyTrackIDs
	if trackIDs == nil {
		trackIDs = []string{}
	}
	err := r.pool.QueryRow(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Emotion,
		rec.SpotifyPlaylistID,
		trackIDs,
		rec.Source,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting recommendation: %w", err)
	}
	return nil
}

// ListForUser returns the user's most recent recommendations, newest first.
func (r *RecommendationRepository) ListForUser(ctx context.Context, userID string, limit int) ([]RecommendationRecord, error) {
	query := `
		SELECT id, user_id, emotion, spotify_playlist_id, spotify_track_ids, source, created_at
		FROM recommendations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying user recommendations: %w", err)
	}
	defer rows.Close()

	var recs []RecommendationRecord
	for rows.Next() {
		var rec RecommendationRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.Emotion,
			&rec.SpotifyPlaylistID,
			&rec.SpotifyTrackIDs,
			&rec.Source,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning recommendation: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
