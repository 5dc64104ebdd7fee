package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/justestif/go-mood-recommender/internal/db"
	"github.com/justestif/go-mood-recommender/internal/emotion"
	"github.com/justestif/go-mood-recommender/internal/logging"
	"github.com/justestif/go-mood-recommender/internal/provider"
	"github.com/justestif/go-mood-recommender/internal/recommend"
	"github.com/justestif/go-mood-recommender/internal/trends"
)

const (
	// UserIDHeader carries the caller's user ID, set by the upstream gateway.
	UserIDHeader = "X-User-ID"

	maxImageBytes   = 10 << 20
	maxJSONBytes    = 1 << 20
	defaultTrendDay = 30
	maxTrendDays    = 365

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100

	healthCheckTimeout = 2 * time.Second
)

var validate = validator.New()

// Recommender is the orchestration surface used by handlers.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (*recommend.Result, error)
	AnalyzePhoto(ctx context.Context, userID string, image []byte, filename string) (*recommend.Analysis, error)
	AnalyzeText(ctx context.Context, userID, text string) (*recommend.Analysis, error)
	EmotionFromText(ctx context.Context, text string) emotion.Detection
}

// TrendsService summarizes mood history.
type TrendsService interface {
	ForUser(ctx context.Context, userID string, since time.Time) (*trends.Summary, error)
}

// RecommendationHistory lists a user's past recommendations.
type RecommendationHistory interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]db.RecommendationRecord, error)
}

// HealthChecker reports whether an upstream dependency is reachable.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// RecommendationRequest is the body of POST /recommendations.
type RecommendationRequest struct {
	Emotion              string             `json:"emotion" validate:"required,max=32"`
	Confidence           *float64           `json:"confidence" validate:"required,gte=0,lte=1"`
	UserID               string             `json:"userId" validate:"required,max=128"`
	EmotionProbabilities map[string]float64 `json:"emotionProbabilities,omitempty"`
}

// TextRequest is the body of the text endpoints.
type TextRequest struct {
	Text string `json:"text" validate:"max=2000"`
}

// EmotionResponse describes a detection.
type EmotionResponse struct {
	Predicted     emotion.Label      `json:"predicted"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	FaceDetected  bool               `json:"face_detected"`
}

// TargetResponse describes the audio-feature target used.
type TargetResponse struct {
	Genres       []string `json:"genres"`
	Energy       float64  `json:"energy"`
	Valence      float64  `json:"valence"`
	Danceability float64  `json:"danceability"`
}

// RecommendationsResponse describes a recommendation result.
type RecommendationsResponse struct {
	Tracks          []provider.Track `json:"tracks"`
	Source          provider.Source  `json:"source"`
	Explanation     string           `json:"explanation,omitempty"`
	ResolvedEmotion emotion.Label    `json:"resolved_emotion"`
	Target          TargetResponse   `json:"target"`
	WindowSize      int              `json:"window_size"`
}

// AnalyzeResponse is returned by the analyze endpoints.
type AnalyzeResponse struct {
	Emotion         EmotionResponse         `json:"emotion"`
	Recommendations RecommendationsResponse `json:"recommendations"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`             // ok or degraded
	Detector string `json:"detector,omitempty"` // up or down
}

// HistoryEntry is one past recommendation.
type HistoryEntry struct {
	ID                string    `json:"id"`
	Emotion           string    `json:"emotion"`
	Source            string    `json:"source"`
	SpotifyTrackIDs   []string  `json:"spotify_track_ids"`
	SpotifyPlaylistID *string   `json:"spotify_playlist_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// HistoryResponse is returned by GET /users/{userID}/recommendations.
type HistoryResponse struct {
	UserID          string         `json:"user_id"`
	Recommendations []HistoryEntry `json:"recommendations"`
}

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	svc      Recommender
	trends   TrendsService
	history  RecommendationHistory
	detector HealthChecker
	now      func() time.Time
}

// NewHandlers creates handlers for the services in cfg.
func NewHandlers(cfg ServerConfig) *Handlers {
	return &Handlers{
		svc:      cfg.Service,
		trends:   cfg.Trends,
		history:  cfg.History,
		detector: cfg.Detector,
		now:      time.Now,
	}
}

// Health reports liveness and detector reachability (GET /healthz). A down
// detector only disables photo analysis, so the status code stays 200.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.detector != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp.Detector = "up"
		if !h.detector.Healthy(ctx) {
			resp.Status, resp.Detector = "degraded", "down"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// AnalyzePhoto detects the mood in an uploaded image and recommends tracks
// (POST /mood/analyze).
func (h *Handlers) AnalyzePhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+1<<20)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image file")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable image file")
		return
	}
	if len(image) == 0 {
		writeError(w, http.StatusBadRequest, "empty image file")
		return
	}
	if len(image) > maxImageBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "image too large")
		return
	}

	analysis, err := h.svc.AnalyzePhoto(r.Context(), userID(r), image, header.Filename)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnalyzeResponse(analysis))
}

// AnalyzeText infers the mood in text and recommends tracks
// (POST /mood/analyze/text).
func (h *Handlers) AnalyzeText(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	analysis, err := h.svc.AnalyzeText(r.Context(), userID(r), req.Text)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnalyzeResponse(analysis))
}

// Recommend returns tracks for a client-supplied emotion
// (POST /recommendations).
func (h *Handlers) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.svc.Recommend(r.Context(), recommend.Request{
		Emotion:       emotion.LabelOrNeutral(req.Emotion),
		Confidence:    *req.Confidence,
		UserID:        req.UserID,
		Probabilities: emotion.FromRaw(req.EmotionProbabilities),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecommendationsResponse(res))
}

// EmotionFromText returns the detected emotion only (POST /emotions/from-text).
func (h *Handlers) EmotionFromText(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, toEmotionResponse(h.svc.EmotionFromText(r.Context(), req.Text)))
}

// MoodTrends summarizes a user's mood history
// (GET /users/{userID}/moods/trends?days=30).
func (h *Handlers) MoodTrends(w http.ResponseWriter, r *http.Request) {
	if h.trends == nil {
		writeError(w, http.StatusServiceUnavailable, "mood history unavailable")
		return
	}

	days := defaultTrendDay
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTrendDays {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}

	since := h.now().AddDate(0, 0, -days)
	summary, err := h.trends.ForUser(r.Context(), chi.URLParam(r, "userID"), since)
	if err != nil {
		if errors.Is(err, trends.ErrInvalidUser) {
			writeError(w, http.StatusBadRequest, "user id is required")
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// RecommendationHistory lists a user's recent recommendations, newest first
// (GET /users/{userID}/recommendations?limit=20).
func (h *Handlers) RecommendationHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "recommendation history unavailable")
		return
	}

	user := strings.TrimSpace(chi.URLParam(r, "userID"))
	if user == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	records, err := h.history.ListForUser(r.Context(), user, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := HistoryResponse{UserID: user, Recommendations: make([]HistoryEntry, 0, len(records))}
	for _, rec := range records {
		ids := rec.SpotifyTrackIDs
		if ids == nil {
			ids = []string{}
		}
		resp.Recommendations = append(resp.Recommendations, HistoryEntry{
			ID:                rec.ID.String(),
			Emotion:           rec.Emotion,
			Source:            rec.Source,
			SpotifyTrackIDs:   ids,
			SpotifyPlaylistID: rec.SpotifyPlaylistID,
			CreatedAt:         rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeServiceError maps orchestration errors to responses without leaking
// provider details.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.Ctx(r.Context())
	switch {
	case errors.Is(err, provider.ErrNoRecommendations):
		log.Error().Err(err).Msg("no provider could serve recommendations")
		writeError(w, http.StatusServiceUnavailable, "recommendations unavailable")
	case errors.Is(err, recommend.ErrDetectorUnavailable):
		writeError(w, http.StatusServiceUnavailable, "mood detection unavailable")
	case errors.Is(err, recommend.ErrDetection):
		log.Warn().Err(err).Msg("mood detection failed")
		writeError(w, http.StatusBadGateway, "mood detection failed")
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserIDHeader))
}

// decodeAndValidate reads a JSON body into dst and validates it, writing a
// 400 on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// validationMessage names the first failing field.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return "invalid field " + strings.ToLower(fe.Field()) + ": " + fe.Tag()
	}
	return "invalid request"
}

func toEmotionResponse(d emotion.Detection) EmotionResponse {
	return EmotionResponse{
		Predicted:     d.Predicted,
		Confidence:    d.Confidence,
		Probabilities: d.Probabilities.ToRaw(),
		FaceDetected:  d.FaceDetected,
	}
}

func toRecommendationsResponse(res *recommend.Result) RecommendationsResponse {
	tracks := res.Tracks
	if tracks == nil {
		tracks = []provider.Track{}
	}
	return RecommendationsResponse{
		Tracks:          tracks,
		Source:          res.Source,
		Explanation:     res.Explanation,
		ResolvedEmotion: res.ResolvedEmotion,
		Target: TargetResponse{
			Genres:       res.Target.Genres,
			Energy:       res.Target.Energy,
			Valence:      res.Target.Valence,
			Danceability: res.Target.Danceability,
		},
		WindowSize: res.WindowSize,
	}
}

func toAnalyzeResponse(a *recommend.Analysis) AnalyzeResponse {
	return AnalyzeResponse{
		Emotion:         toEmotionResponse(a.Detection),
		Recommendations: toRecommendationsResponse(a.Result),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
