// Package trends summarizes a user's recorded mood history.
package trends

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/justestif/go-mood-recommender/internal/clustering"
	"github.com/justestif/go-mood-recommender/internal/db"
	"github.com/justestif/go-mood-recommender/internal/emotion"
)

// maxPoints bounds how many observations one summary loads.
const maxPoints = 1000

// ErrInvalidUser is returned for an empty user ID.
var ErrInvalidUser = errors.New("user id is required")

// MoodLister loads mood history. Satisfied by *db.MoodRepository.
type MoodLister interface {
	ListForUser(ctx context.Context, userID string, since time.Time, limit int) ([]db.MoodRecord, error)
}

// Phase is the API view of a clustering.MoodPhase.
type Phase struct {
	Name          string             `json:"name"`
	Dominant      emotion.Label      `json:"dominant_emotion"`
	Probabilities map[string]float64 `json:"probabilities"`
	Start         time.Time          `json:"start"`
	End           time.Time          `json:"end"`
	Count         int                `json:"count"`
}

// Summary is a user's mood history since a point in time.
type Summary struct {
	UserID       string                `json:"user_id"`
	Since        time.Time             `json:"since"`
	Total        int                   `json:"total"`
	Counts       map[emotion.Label]int `json:"counts"`
	Dominant     emotion.Label         `json:"dominant_emotion"`
	Phases       []Phase               `json:"phases"`
	OutlierCount int                   `json:"outlier_count"`
}

// Service computes mood summaries.
type Service struct {
	moods MoodLister
	cfg   clustering.MoodConfig
}

// Option configures a Service.
type Option func(*Service)

// WithClusterConfig overrides the phase clustering parameters.
func WithClusterConfig(cfg clustering.MoodConfig) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// New creates a new trends service.
func New(moods MoodLister, opts ...Option) *Service {
	s := &Service{
		moods: moods,
		cfg:   clustering.DefaultMoodConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ForUser loads moods recorded since the given time and groups them into
// phases. A user with no history gets an empty summary.
func (s *Service) ForUser(ctx context.Context, userID string, since time.Time) (*Summary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}

	records, err := s.moods.ListForUser(ctx, userID, since, maxPoints)
	if err != nil {
		return nil, fmt.Errorf("loading mood history: %w", err)
	}

	summary := &Summary{
		UserID:   userID,
		Since:    since,
		Total:    len(records),
		Counts:   make(map[emotion.Label]int),
		Dominant: emotion.Neutral,
		Phases:   []Phase{},
	}
	if len(records) == 0 {
		return summary, nil
	}

	points := make([]clustering.MoodPoint, len(records))
	for i, rec := range records {
		label := emotion.LabelOrNeutral(rec.Emotion)
		summary.Counts[label]++
		points[i] = toMoodPoint(rec, label)
	}
	summary.Dominant = dominant(summary.Counts)

	phases, outliers := clustering.DetectMoodPhases(points, s.cfg)
	for _, ph := range phases {
		summary.Phases = append(summary.Phases, Phase{
			Name:          ph.Name,
			Dominant:      ph.Dominant,
			Probabilities: ph.Centroid.ToRaw(),
			Start:         ph.StartDate,
			End:           ph.EndDate,
			Count:         len(ph.Points),
		})
	}
	summary.OutlierCount = len(outliers)

	return summary, nil
}

// toMoodPoint converts a database record to a clustering.MoodPoint.
func toMoodPoint(rec db.MoodRecord, label emotion.Label) clustering.MoodPoint {
	return clustering.MoodPoint{
		ID:            rec.ID.String(),
		At:            rec.CreatedAt,
		Emotion:       label,
		Probabilities: emotion.FromRaw(rec.Probabilities),
	}
}

// dominant returns the most frequent label, ties broken by canonical order.
func dominant(counts map[emotion.Label]int) emotion.Label {
	best, bestN := emotion.Neutral, 0
	for _, l := range emotion.Labels {
		if counts[l] > bestN {
			best, bestN = l, counts[l]
		}
	}
	return best
}
