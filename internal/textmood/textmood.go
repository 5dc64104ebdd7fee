// Package textmood infers an emotion distribution from free text using a
// chat-completion model.
package textmood

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/justestif/go-mood-recommender/internal/emotion"
	"github.com/justestif/go-mood-recommender/internal/explain"
	"github.com/justestif/go-mood-recommender/internal/logging"
	"github.com/justestif/go-mood-recommender/internal/openai"
)

const (
	maxInputRunes = 500
	maxTokens     = 150
	temperature   = 0.3

	// fallbackConfidence is reported when the model could not be used.
	fallbackConfidence = 0.5

	systemPrompt = "You output only valid JSON. No markdown, no explanation. " +
		"Convert the user's emotional state from their message into a probability distribution over emotions. " +
		"Output a single JSON object with exactly these keys: happy, sad, angry, fear, surprise, disgust, neutral. " +
		"Each value is a number between 0 and 1. The values must sum to 1."
)

var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// Analyzer converts text into an emotion detection.
type Analyzer struct {
	completer explain.Completer
	timeout   time.Duration
}

// NewAnalyzer creates an Analyzer. A nil completer makes every non-empty
// input resolve to neutral.
func NewAnalyzer(completer explain.Completer, timeout time.Duration) *Analyzer {
	if timeout <= 0 {
		timeout = explain.DefaultTimeout
	}
	return &Analyzer{completer: completer, timeout: timeout}
}

// FromText never fails: empty text is neutral with full confidence, and an
// unavailable or unparseable model answer is neutral with confidence 0.5.
func (a *Analyzer) FromText(ctx context.Context, text string) emotion.Detection {
	if strings.TrimSpace(text) == "" {
		return emotion.NeutralDetection(1)
	}
	if a == nil || a.completer == nil {
		logging.Ctx(ctx).Warn().Msg("text emotion model not configured, using neutral")
		return emotion.NeutralDetection(fallbackConfidence)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	content, err := a.completer.Complete(ctx, openai.Request{
		Messages: []openai.Message{
			openai.System(systemPrompt),
			openai.User(fmt.Sprintf("Message: %q", truncate(text, maxInputRunes))),
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("text emotion inference failed")
		return emotion.NeutralDetection(fallbackConfidence)
	}

	probs, ok := parseDistribution(content)
	if !ok {
		logging.Ctx(ctx).Warn().Str("content", truncate(content, 200)).Msg("unparseable text emotion response")
		return emotion.NeutralDetection(fallbackConfidence)
	}

	predicted, confidence := probs.Argmax()
	return emotion.Detection{
		Predicted:     predicted,
		Confidence:    confidence,
		Probabilities: probs,
	}
}

// parseDistribution extracts the seven-label distribution from a model
// answer, optionally wrapped in a code fence. Values are clamped to [0,1],
// missing or non-numeric values count as 0, and the result is normalized.
func parseDistribution(content string) (emotion.Distribution, bool) {
	raw := strings.TrimSpace(content)
	if m := codeFence.FindStringSubmatch(raw); m != nil {
		raw = strings.TrimSpace(m[1])
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, false
	}

	d := make(emotion.Distribution, len(emotion.Labels))
	for _, label := range emotion.Labels {
		v, ok := parsed[string(label)].(float64)
		if !ok || v < 0 {
			v = 0
		}
		d[label] = min(v, 1)
	}

	if d.Sum() <= 0 {
		return nil, false
	}
	return d.Normalize(), true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
