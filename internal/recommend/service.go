// Package recommend orchestrates the mood-to-music pipeline: history
// smoothing, confidence gating, feature mapping, track sourcing and
// best-effort enrichment.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/justestif/go-mood-recommender/internal/analytics"
	"github.com/justestif/go-mood-recommender/internal/emotion"
	"github.com/justestif/go-mood-recommender/internal/explain"
	"github.com/justestif/go-mood-recommender/internal/history"
	"github.com/justestif/go-mood-recommender/internal/logging"
	"github.com/justestif/go-mood-recommender/internal/mapping"
	"github.com/justestif/go-mood-recommender/internal/metrics"
	"github.com/justestif/go-mood-recommender/internal/provider"
)

// DefaultEnrichTimeout bounds track enrichment per request.
const DefaultEnrichTimeout = 3 * time.Second

var (
	// ErrDetectorUnavailable is returned by AnalyzePhoto when no detector is configured.
	ErrDetectorUnavailable = errors.New("mood detection not configured")

	// ErrDetection wraps detector transport failures.
	ErrDetection = errors.New("mood detection failed")
)

// Request asks for recommendations for one emotional observation.
type Request struct {
	Emotion       emotion.Label
	Confidence    float64
	UserID        string
	Probabilities emotion.Distribution // optional
}

// Result is the assembled recommendation.
type Result struct {
	Tracks          []provider.Track
	Source          provider.Source
	Explanation     string // empty when absent
	ResolvedEmotion emotion.Label
	Target          mapping.Target
	Mode            mapping.Mode
	WindowSize      int
}

// Analysis pairs a detection with the recommendation made from it.
type Analysis struct {
	Detection emotion.Detection
	Result    *Result
}

// TrackSource returns tracks for a query. Satisfied by *provider.Chain.
type TrackSource interface {
	Recommend(ctx context.Context, q provider.Query) (*provider.Outcome, error)
}

// Explainer produces a short rationale, or "" when unavailable.
type Explainer interface {
	Explain(ctx context.Context, in explain.Input) string
}

// Enricher decorates tracks with extra links.
type Enricher interface {
	Enrich(ctx context.Context, tracks []provider.Track) []provider.Track
}

// Detector infers an emotion from an image.
type Detector interface {
	Detect(ctx context.Context, image []byte, filename string) (emotion.Detection, error)
}

// TextAnalyzer infers an emotion from text.
type TextAnalyzer interface {
	FromText(ctx context.Context, text string) emotion.Detection
}

// MoodRecorder stores detected moods without blocking.
type MoodRecorder interface {
	RecordMood(ctx context.Context, m analytics.Mood) error
}

// Service is the recommendation orchestrator.
type Service struct {
	history    history.Store
	tracks     TrackSource
	explainer  Explainer
	enricher   Enricher
	detector   Detector
	text       TextAnalyzer
	moods      MoodRecorder
	threshold  float64
	windowSize int
	limit      int
	enrichWait time.Duration
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithExplainer sets the explanation generator.
func WithExplainer(e Explainer) Option {
	return func(s *Service) { s.explainer = e }
}

// WithEnricher sets the track enricher.
func WithEnricher(e Enricher) Option {
	return func(s *Service) { s.enricher = e }
}

// WithEnrichTimeout bounds how long a request waits for enrichment.
func WithEnrichTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.enrichWait = d
		}
	}
}

// WithDetector sets the photo emotion detector.
func WithDetector(d Detector) Option {
	return func(s *Service) { s.detector = d }
}

// WithTextAnalyzer sets the text emotion analyzer.
func WithTextAnalyzer(a TextAnalyzer) Option {
	return func(s *Service) { s.text = a }
}

// WithMoodRecorder sets where detected moods are recorded.
func WithMoodRecorder(r MoodRecorder) Option {
	return func(s *Service) { s.moods = r }
}

// WithConfidenceThreshold sets the neutral gate threshold.
func WithConfidenceThreshold(t float64) Option {
	return func(s *Service) {
		if t >= 0 && t <= 1 {
			s.threshold = t
		}
	}
}

// WithWindowSize sets how many observations are smoothed.
func WithWindowSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.windowSize = n
		}
	}
}

// WithLimit sets the number of tracks requested.
func WithLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithClock overrides the observation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service. store and tracks are required.
func New(store history.Store, tracks TrackSource, opts ...Option) *Service {
	s := &Service{
		history:    store,
		tracks:     tracks,
		threshold:  mapping.DefaultConfidenceThreshold,
		windowSize: history.DefaultWindowSize,
		limit:      provider.DefaultLimit,
		enrichWait: DefaultEnrichTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recommend runs the full pipeline for one observation. History failures
// degrade to the current observation; explanation and enrichment failures
// are omitted. Only a total provider failure is returned as an error.
func (s *Service) Recommend(ctx context.Context, req Request) (*Result, error) {
	label := emotion.LabelOrNeutral(string(req.Emotion))
	log := logging.Ctx(ctx).With().Str("user_id", req.UserID).Str("emotion", string(label)).Logger()

	current := req.Probabilities
	if len(current) == 0 {
		current = emotion.OneHot(label)
	}
	obs := emotion.Observation{Probabilities: current, ObservedAt: s.now()}

	window := s.window(ctx, req.UserID, obs)
	if len(window) == 0 {
		window = []emotion.Observation{obs}
	}
	smoothed := emotion.Average(window)
	metrics.SmoothingWindowSize.Observe(float64(len(window)))

	in := mapping.Input{Emotion: label, Confidence: req.Confidence}
	if len(req.Probabilities) > 0 {
		in.Probabilities = smoothed
	}
	resolved, target, mode := mapping.Resolve(in, s.threshold)

	log.Info().
		Int("window_size", len(window)).
		Str("resolved", string(resolved)).
		Str("mode", string(mode)).
		Msg("mood resolved")

	outcome, err := s.tracks.Recommend(ctx, provider.Query{
		UserID:  req.UserID,
		Emotion: resolved,
		Target:  target,
		Limit:   s.limit,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Tracks:          outcome.Tracks,
		Source:          outcome.Source,
		ResolvedEmotion: resolved,
		Target:          target,
		Mode:            mode,
		WindowSize:      len(window),
	}

	var wg sync.WaitGroup
	if s.explainer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result.Explanation = s.explainer.Explain(ctx, explain.Input{
				PrimaryEmotion: resolved,
				Valence:        target.Valence,
				Energy:         target.Energy,
				Tracks:         outcome.Tracks,
			})
		}()
	}
	if s.enricher != nil {
		result.Tracks = s.enrich(ctx, outcome.Tracks)
	}
	wg.Wait()

	s.recordMood(ctx, req.UserID, label, req.Confidence, current)

	return result, nil
}

// enrich runs the enricher under its own deadline. The tracks are returned
// unchanged if it does not finish in time.
func (s *Service) enrich(ctx context.Context, tracks []provider.Track) []provider.Track {
	ctx, cancel := context.WithTimeout(ctx, s.enrichWait)
	defer cancel()

	done := make(chan []provider.Track, 1)
	go func() {
		done <- s.enricher.Enrich(ctx, tracks)
	}()

	select {
	case enriched := <-done:
		return enriched
	case <-ctx.Done():
		logging.Ctx(ctx).Warn().Dur("timeout", s.enrichWait).Msg("track enrichment timed out")
		return tracks
	}
}

// window pushes obs and reads back the user's recent observations. Anonymous
// requests skip history. Errors are logged and yield an empty window.
func (s *Service) window(ctx context.Context, userID string, obs emotion.Observation) []emotion.Observation {
	if userID == "" || s.history == nil {
		return nil
	}

	if err := s.history.Push(ctx, userID, obs, s.windowSize); err != nil {
		metrics.HistoryStoreErrors.WithLabelValues("push").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("history push failed, smoothing disabled")
		return nil
	}

	recent, err := s.history.Recent(ctx, userID, s.windowSize)
	if err != nil {
		metrics.HistoryStoreErrors.WithLabelValues("recent").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("history read failed, smoothing disabled")
		return nil
	}
	return recent
}

func (s *Service) recordMood(ctx context.Context, userID string, label emotion.Label, confidence float64, probs emotion.Distribution) {
	if s.moods == nil || userID == "" {
		return
	}
	err := s.moods.RecordMood(ctx, analytics.Mood{
		UserID:        userID,
		Emotion:       label,
		Confidence:    confidence,
		Probabilities: probs,
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("recording mood failed")
	}
}

// AnalyzePhoto detects the emotion in an image and recommends for it.
func (s *Service) AnalyzePhoto(ctx context.Context, userID string, image []byte, filename string) (*Analysis, error) {
	if s.detector == nil {
		return nil, ErrDetectorUnavailable
	}
	det, err := s.detector.Detect(ctx, image, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDetection, err)
	}
	return s.recommendFor(ctx, userID, det)
}

// AnalyzeText infers the emotion in text and recommends for it.
func (s *Service) AnalyzeText(ctx context.Context, userID, text string) (*Analysis, error) {
	return s.recommendFor(ctx, userID, s.EmotionFromText(ctx, text))
}

// EmotionFromText infers the emotion in text without recommending.
func (s *Service) EmotionFromText(ctx context.Context, text string) emotion.Detection {
	if s.text == nil {
		return emotion.NeutralDetection(1)
	}
	return s.text.FromText(ctx, text)
}

func (s *Service) recommendFor(ctx context.Context, userID string, det emotion.Detection) (*Analysis, error) {
	res, err := s.Recommend(ctx, Request{
		Emotion:       det.Predicted,
		Confidence:    det.Confidence,
		UserID:        userID,
		Probabilities: det.Probabilities,
	})
	if err != nil {
		return nil, err
	}
	return &Analysis{Detection: det, Result: res}, nil
}
