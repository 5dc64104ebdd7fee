// Package detector calls the upstream facial-emotion service.
package detector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/justestif/go-mood-recommender/internal/emotion"
	"github.com/justestif/go-mood-recommender/internal/logging"
)

// DefaultBaseURL is where the detector listens in local development.
const DefaultBaseURL = "http://localhost:8001"

var (
	// ErrEmptyImage is returned when no image bytes are supplied.
	ErrEmptyImage = errors.New("empty image")

	// ErrUpstream is returned when the detector answers with a non-2xx status.
	ErrUpstream = errors.New("mood detection service error")
)

type response struct {
	PredictedEmotion     string             `json:"predicted_emotion"`
	Confidence           *float64           `json:"confidence"`
	EmotionProbabilities map[string]float64 `json:"emotion_probabilities"`
	FaceDetected         bool               `json:"face_detected"`
}

// Client posts images to the detector's /infer/mood endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the detector at baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Detect sends the image and returns the detected emotion. Transport and
// status errors are returned; a response that cannot be interpreted becomes a
// neutral detection with full confidence.
func (c *Client) Detect(ctx context.Context, image []byte, filename string) (emotion.Detection, error) {
	if len(image) == 0 {
		return emotion.Detection{}, ErrEmptyImage
	}
	if filename == "" {
		filename = "image.jpg"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return emotion.Detection{}, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return emotion.Detection{}, fmt.Errorf("writing image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return emotion.Detection{}, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/infer/mood", &buf)
	if err != nil {
		return emotion.Detection{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return emotion.Detection{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return emotion.Detection{}, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return emotion.Detection{}, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("unparseable detector response, using neutral")
		return emotion.NeutralDetection(1), nil
	}
	return interpret(r), nil
}

// Healthy reports whether the detector's /health endpoint answers 200.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// interpret normalizes a detector response. Unknown labels are dropped; an
// unknown predicted label is replaced by the most probable known label.
func interpret(r response) emotion.Detection {
	probs := emotion.FromRaw(r.EmotionProbabilities)
	predicted, ok := emotion.ParseLabel(r.PredictedEmotion)

	if !ok {
		if probs.Sum() <= 0 {
			d := emotion.NeutralDetection(1)
			d.FaceDetected = r.FaceDetected
			return d
		}
		label, p := probs.Normalize().Argmax()
		return emotion.Detection{
			Predicted:     label,
			Confidence:    p,
			Probabilities: probs,
			FaceDetected:  r.FaceDetected,
		}
	}

	if len(probs) == 0 {
		probs = emotion.OneHot(predicted)
	}

	confidence := 1.0
	if r.Confidence != nil && !math.IsNaN(*r.Confidence) {
		confidence = min(max(*r.Confidence, 0), 1)
	}

	return emotion.Detection{
		Predicted:     predicted,
		Confidence:    confidence,
		Probabilities: probs,
		FaceDetected:  r.FaceDetected,
	}
}
