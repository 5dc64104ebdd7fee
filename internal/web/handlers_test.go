package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/justestif/go-mood-recommender/internal/db"
	"github.com/justestif/go-mood-recommender/internal/emotion"
	"github.com/justestif/go-mood-recommender/internal/mapping"
	"github.com/justestif/go-mood-recommender/internal/provider"
	"github.com/justestif/go-mood-recommender/internal/recommend"
	"github.com/justestif/go-mood-recommender/internal/trends"
)

type fakeService struct {
	err       error
	gotReq    recommend.Request
	gotUser   string
	gotImage  []byte
	gotText   string
	detection emotion.Detection
}

func (f *fakeService) result(label emotion.Label) *recommend.Result {
	return &recommend.Result{
		Tracks:          []provider.Track{{ID: "4uLU6hMCjMI75M1A2tKUQC", Name: "Song", Artist: "Band"}},
		Source:          provider.SourcePrimary,
		Explanation:     "Bright songs for a bright mood.",
		ResolvedEmotion: label,
		Target:          mapping.MapSingle(label),
		WindowSize:      2,
	}
}

func (f *fakeService) Recommend(_ context.Context, req recommend.Request) (*recommend.Result, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result(req.Emotion), nil
}

func (f *fakeService) AnalyzePhoto(_ context.Context, userID string, image []byte, _ string) (*recommend.Analysis, error) {
	f.gotUser, f.gotImage = userID, image
	if f.err != nil {
		return nil, f.err
	}
	return &recommend.Analysis{Detection: f.detection, Result: f.result(f.detection.Predicted)}, nil
}

func (f *fakeService) AnalyzeText(_ context.Context, userID, text string) (*recommend.Analysis, error) {
	f.gotUser, f.gotText = userID, text
	if f.err != nil {
		return nil, f.err
	}
	return &recommend.Analysis{Detection: f.detection, Result: f.result(f.detection.Predicted)}, nil
}

func (f *fakeService) EmotionFromText(_ context.Context, text string) emotion.Detection {
	f.gotText = text
	return f.detection
}

type fakeTrends struct {
	summary  *trends.Summary
	err      error
	gotSince time.Time
}

func (f *fakeTrends) ForUser(_ context.Context, userID string, since time.Time) (*trends.Summary, error) {
	f.gotSince = since
	if f.err != nil {
		return nil, f.err
	}
	s := *f.summary
	s.UserID = userID
	return &s, nil
}

type fakeHistory struct {
	records  []db.RecommendationRecord
	err      error
	gotUser  string
	gotLimit int
}

func (f *fakeHistory) ListForUser(_ context.Context, userID string, limit int) ([]db.RecommendationRecord, error) {
	f.gotUser, f.gotLimit = userID, limit
	return f.records, f.err
}

type fakeChecker bool

func (f fakeChecker) Healthy(context.Context) bool { return bool(f) }

func newTestServer(t *testing.T, svc Recommender, tr TrendsService) http.Handler {
	t.Helper()
	s, err := NewServer(ServerConfig{Service: svc, Trends: tr})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return s.Handler()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantError  string
	}{
		{
			name:       "valid",
			body:       `{"emotion":"happy","confidence":0.9,"userId":"u1","emotionProbabilities":{"happy":0.7,"neutral":0.3,"contempt":0.1}}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing confidence",
			body:       `{"emotion":"happy","userId":"u1"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid field confidence: required",
		},
		{
			name:       "confidence out of range",
			body:       `{"emotion":"happy","confidence":1.5,"userId":"u1"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid field confidence: lte",
		},
		{
			name:       "malformed json",
			body:       `{"emotion":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid JSON body",
		},
		{
			name:       "all providers failed",
			body:       `{"emotion":"sad","confidence":0.8,"userId":"u1"}`,
			svcErr:     fmt.Errorf("%w: curated list empty", provider.ErrNoRecommendations),
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "recommendations unavailable",
		},
		{
			name:       "unexpected failure hides details",
			body:       `{"emotion":"sad","confidence":0.8,"userId":"u1"}`,
			svcErr:     errors.New("secret upstream detail"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{err: tt.svcErr}
			h := newTestServer(t, svc, nil)

			req := httptest.NewRequest(http.MethodPost, "/recommendations", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantError != "" {
				got := decode[map[string]string](t, rec)
				if got["error"] != tt.wantError {
					t.Errorf("error = %q, want %q", got["error"], tt.wantError)
				}
				return
			}

			got := decode[RecommendationsResponse](t, rec)
			if got.Source != provider.SourcePrimary || len(got.Tracks) != 1 || got.WindowSize != 2 {
				t.Errorf("response = %+v", got)
			}
			if svc.gotReq.UserID != "u1" || svc.gotReq.Emotion != emotion.Happy || svc.gotReq.Confidence != 0.9 {
				t.Errorf("service request = %+v", svc.gotReq)
			}
			if _, ok := svc.gotReq.Probabilities["contempt"]; ok {
				t.Error("unknown label passed to service")
			}
		})
	}
}

func TestAnalyzePhoto(t *testing.T) {
	svc := &fakeService{detection: emotion.Detection{
		Predicted:     emotion.Happy,
		Confidence:    0.92,
		Probabilities: emotion.Distribution{emotion.Happy: 0.92, emotion.Neutral: 0.08},
		FaceDetected:  true,
	}}
	h := newTestServer(t, svc, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "me.jpg")
	part.Write([]byte("jpeg"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/mood/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(UserIDHeader, "u42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	got := decode[AnalyzeResponse](t, rec)
	if got.Emotion.Predicted != emotion.Happy || !got.Emotion.FaceDetected || got.Emotion.Probabilities["happy"] != 0.92 {
		t.Errorf("emotion = %+v", got.Emotion)
	}
	if got.Recommendations.Explanation == "" || got.Recommendations.ResolvedEmotion != emotion.Happy {
		t.Errorf("recommendations = %+v", got.Recommendations)
	}
	if svc.gotUser != "u42" || string(svc.gotImage) != "jpeg" {
		t.Errorf("service got user %q image %q", svc.gotUser, svc.gotImage)
	}
}

func TestAnalyzePhoto_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		mw.WriteField("other", "x")
		mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/mood/analyze", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		newTestServer(t, &fakeService{}, nil).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("detector down", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, _ := mw.CreateFormFile("file", "me.jpg")
		part.Write([]byte("jpeg"))
		mw.Close()

		svc := &fakeService{err: fmt.Errorf("%w: connection refused", recommend.ErrDetection)}
		req := httptest.NewRequest(http.MethodPost, "/mood/analyze", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		newTestServer(t, svc, nil).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "connection refused") {
			t.Errorf("upstream detail leaked: %s", rec.Body.String())
		}
	})
}

func TestAnalyzeText(t *testing.T) {
	svc := &fakeService{detection: emotion.Detection{Predicted: emotion.Sad, Confidence: 0.8, Probabilities: emotion.OneHot(emotion.Sad)}}
	h := newTestServer(t, svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/mood/analyze/text", strings.NewReader(`{"text":"rainy day blues"}`))
	req.Header.Set(UserIDHeader, "u7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.gotUser != "u7" || svc.gotText != "rainy day blues" {
		t.Errorf("service got %q / %q", svc.gotUser, svc.gotText)
	}

	long := `{"text":"` + strings.Repeat("a", 2001) + `"}`
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mood/analyze/text", strings.NewReader(long)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("long text status = %d, want 400", rec.Code)
	}
}

func TestEmotionFromText(t *testing.T) {
	svc := &fakeService{detection: emotion.NeutralDetection(1)}
	rec := httptest.NewRecorder()
	newTestServer(t, svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/emotions/from-text", strings.NewReader(`{"text":""}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	got := decode[EmotionResponse](t, rec)
	if got.Predicted != emotion.Neutral || got.Confidence != 1 {
		t.Errorf("response = %+v", got)
	}
}

func TestMoodTrends(t *testing.T) {
	tr := &fakeTrends{summary: &trends.Summary{Total: 3, Dominant: emotion.Happy, Phases: []trends.Phase{}}}
	s, err := NewServer(ServerConfig{Service: &fakeService{}, Trends: tr})
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	s.handlers.now = func() time.Time { return now }

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/u1/moods/trends?days=7", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	got := decode[trends.Summary](t, rec)
	if got.UserID != "u1" || got.Total != 3 {
		t.Errorf("summary = %+v", got)
	}
	if want := now.AddDate(0, 0, -7); !tr.gotSince.Equal(want) {
		t.Errorf("since = %v, want %v", tr.gotSince, want)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/u1/moods/trends?days=0", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("days=0 status = %d, want 400", rec.Code)
	}
}

func TestMoodTrends_NoDatabase(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t, &fakeService{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/u1/moods/trends", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, &fakeService{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "mood_recommender_http_request_duration_seconds") {
		t.Errorf("metrics = %d, missing request histogram", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	s, err := NewServer(ServerConfig{Service: &fakeService{}, RateLimitPerMinute: 2})
	if err != nil {
		t.Fatal(err)
	}

	var last int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		s.Handler().ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}
}

func TestNewServer_RequiresService(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Error("NewServer() without service should fail")
	}
}

func TestRecommendationHistory(t *testing.T) {
	playlist := "37i9dQZF1DXdPec7aLTmlC"
	created := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
	records := []db.RecommendationRecord{
		{ID: uuid.New(), UserID: "u1", Emotion: "happy", Source: "primary", SpotifyTrackIDs: []string{"4uLU6hMCjMI75M1A2tKUQC"}, SpotifyPlaylistID: &playlist, CreatedAt: created},
		{ID: uuid.New(), UserID: "u1", Emotion: "sad", Source: "fallback", CreatedAt: created.Add(-time.Hour)},
	}

	tests := []struct {
		name       string
		history    *fakeHistory
		query      string
		wantStatus int
		wantLimit  int
	}{
		{name: "default limit", history: &fakeHistory{records: records}, wantStatus: http.StatusOK, wantLimit: defaultHistoryLimit},
		{name: "explicit limit", history: &fakeHistory{records: records}, query: "?limit=5", wantStatus: http.StatusOK, wantLimit: 5},
		{name: "limit out of range", history: &fakeHistory{}, query: "?limit=500", wantStatus: http.StatusBadRequest},
		{name: "store error", history: &fakeHistory{err: errors.New("connection reset")}, wantStatus: http.StatusInternalServerError, wantLimit: defaultHistoryLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewServer(ServerConfig{Service: &fakeService{}, History: tt.history})
			if err != nil {
				t.Fatal(err)
			}
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/u1/recommendations"+tt.query, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.history.gotLimit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", tt.history.gotLimit, tt.wantLimit)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			got := decode[HistoryResponse](t, rec)
			if got.UserID != "u1" || tt.history.gotUser != "u1" || len(got.Recommendations) != 2 {
				t.Fatalf("response = %+v", got)
			}
			first, second := got.Recommendations[0], got.Recommendations[1]
			if first.SpotifyPlaylistID == nil || *first.SpotifyPlaylistID != playlist || !first.CreatedAt.Equal(created) {
				t.Errorf("first = %+v", first)
			}
			if second.SpotifyTrackIDs == nil || len(second.SpotifyTrackIDs) != 0 || second.Source != "fallback" {
				t.Errorf("second = %+v, want empty track list from fallback", second)
			}
		})
	}
}

func TestRecommendationHistory_NoDatabase(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t, &fakeService{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/u1/recommendations", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHealth_Detector(t *testing.T) {
	tests := []struct {
		name         string
		checker      fakeChecker
		wantStatus   string
		wantDetector string
	}{
		{name: "detector up", checker: true, wantStatus: "ok", wantDetector: "up"},
		{name: "detector down", checker: false, wantStatus: "degraded", wantDetector: "down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewServer(ServerConfig{Service: &fakeService{}, Detector: tt.checker})
			if err != nil {
				t.Fatal(err)
			}
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			got := decode[HealthResponse](t, rec)
			if got.Status != tt.wantStatus || got.Detector != tt.wantDetector {
				t.Errorf("healthz = %+v, want %s/%s", got, tt.wantStatus, tt.wantDetector)
			}
		})
	}
}
