package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MoodRepository handles mood history operations.
type MoodRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a mood record, assigning an ID if unset.
func (r *MoodRepository) Create(ctx context.Context, rec *MoodRecord) error {
	query := `
		INSERT INTO mood_history (id, user_id, emotion, confidence, probabilities, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	probs := rec.Probabilities
	if probs == nil {
		probs = map[string]float64{}
	}
	err := r.pool.QueryRow(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Emotion,
		rec.Confidence,
		probs,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting mood: %w", err)
	}
	return nil
}

// ListForUser returns moods recorded at or after since, oldest first. A
// positive limit keeps the newest limit rows; otherwise all rows are returned.
func (r *MoodRepository) ListForUser(ctx context.Context, userID string, since time.Time, limit int) ([]MoodRecord, error) {
	args := []any{userID, since}
	if limit > 0 {
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, listMoodsSQL(limit), args...)
	if err != nil {
		return nil, fmt.Errorf("querying user moods: %w", err)
	}
	defer rows.Close()

	var moods []MoodRecord
	for rows.Next() {
		var rec MoodRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.Emotion,
			&rec.Confidence,
			&rec.Probabilities,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning mood: %w", err)
		}
		moods = append(moods, rec)
	}
	return moods, rows.Err()
}

// listMoodsSQL builds the ListForUser query. The limited form selects the
// newest rows first and re-sorts them ascending.
func listMoodsSQL(limit int) string {
	const selectMoods = `
		SELECT id, user_id, emotion, confidence, probabilities, created_at
		FROM mood_history
		WHERE user_id = $1 AND created_at >= $2`

	if limit <= 0 {
		return selectMoods + `
		ORDER BY created_at ASC`
	}
	return `
		SELECT * FROM (` + selectMoods + `
		ORDER BY created_at DESC
		LIMIT $3
		) recent
		ORDER BY created_at ASC`
}
