// Package db provides PostgreSQL persistence for recommendation and mood analytics.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS recommendations (
	id                  UUID PRIMARY KEY,
	user_id             TEXT NOT NULL,
	emotion             TEXT NOT NULL,
	spotify_playlist_id TEXT,
	spotify_track_ids   TEXT[] NOT NULL DEFAULT '{}',
	source              TEXT NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS recommendations_user_created_idx
	ON recommendations (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS mood_history (
	id            UUID PRIMARY KEY,
	user_id       TEXT NOT NULL,
	emotion       TEXT NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL,
	probabilities JSONB NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS mood_history_user_created_idx
	ON mood_history (user_id, created_at DESC);
`

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Migrate creates the tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Recommendations returns a RecommendationRepository.
func (db *DB) Recommendations() *RecommendationRepository {
	return &RecommendationRepository{pool: db.pool}
}

// Moods returns a MoodRepository.
func (db *DB) Moods() *MoodRepository {
	return &MoodRepository{pool: db.pool}
}
