// Package explain produces short natural-language rationales for a set of
// recommended tracks.
package explain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/justestif/go-mood-recommender/internal/emotion"
	"github.com/justestif/go-mood-recommender/internal/logging"
	"github.com/justestif/go-mood-recommender/internal/metrics"
	"github.com/justestif/go-mood-recommender/internal/openai"
	"github.com/justestif/go-mood-recommender/internal/provider"
)

const (
	// DefaultTimeout bounds a single explanation call.
	DefaultTimeout = 5 * time.Second

	maxPromptTracks = 10
	maxTokens       = 150
	temperature     = 0.3

	systemPrompt = "You explain music recommendations in 1-2 brief, natural sentences. Be warm and concise."
)

// Completer sends a chat completion.
type Completer interface {
	Complete(ctx context.Context, req openai.Request) (string, error)
}

// Input is what an explanation is generated from.
type Input struct {
	PrimaryEmotion emotion.Label
	Valence        float64
	Energy         float64
	Tracks         []provider.Track
}

// Generator produces explanations. A nil completer disables it.
type Generator struct {
	completer Completer
	enabled   bool
	timeout   time.Duration
}

// Option configures a Generator.
type Option func(*Generator)

// WithTimeout bounds each call.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithEnabled switches explanations on or off.
func WithEnabled(enabled bool) Option {
	return func(g *Generator) {
		g.enabled = enabled
	}
}

// NewGenerator creates a Generator. Pass a nil completer when no
// credentials are configured.
func NewGenerator(completer Completer, opts ...Option) *Generator {
	g := &Generator{
		completer: completer,
		enabled:   true,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled reports whether Explain will call the provider.
func (g *Generator) Enabled() bool {
	return g != nil && g.enabled && g.completer != nil
}

// Explain returns a one or two sentence rationale, or "" when disabled or on
// any failure. It never blocks longer than the configured timeout and never
// retries.
func (g *Generator) Explain(ctx context.Context, in Input) string {
	if !g.Enabled() {
		metrics.ExplanationOutcomes.WithLabelValues("disabled").Inc()
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.completer.Complete(ctx, openai.Request{
		Messages: []openai.Message{
			openai.System(systemPrompt),
			openai.User(buildPrompt(in)),
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		metrics.ExplanationOutcomes.WithLabelValues(outcome).Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("outcome", outcome).Msg("explanation skipped")
		return ""
	}

	metrics.ExplanationOutcomes.WithLabelValues("ok").Inc()
	return text
}

func buildPrompt(in Input) string {
	tracks := in.Tracks
	if len(tracks) > maxPromptTracks {
		tracks = tracks[:maxPromptTracks]
	}
	names := make([]string, len(tracks))
	for i, t := range tracks {
		names[i] = t.Name + " by " + t.Artist
	}

	return strings.Join([]string{
		fmt.Sprintf("Detected mood: %s", in.PrimaryEmotion),
		fmt.Sprintf("Music parameters: energy %.2f, valence %.2f (valence = positivity of mood).", in.Energy, in.Valence),
		fmt.Sprintf("Tracks picked: %s.", strings.Join(names, ", ")),
		"Write 1-2 short, friendly sentences explaining why these songs were chosen for this mood. No bullet points or markdown.",
	}, " ")
}
