// Package spotify queries the Spotify Web API recommendations endpoint as the
// primary track catalog.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-mood-recommender/internal/provider"
)

const unknownArtist = "Unknown"

// DefaultTimeout bounds a single recommendations call.
const DefaultTimeout = 5 * time.Second

// ErrNoSeeds is returned when a target has no genres to seed the query with.
var ErrNoSeeds = errors.New("target has no seed genres")

// Client wraps the Spotify API client for recommendation queries.
type Client struct {
	api     *spotify.Client
	breaker *gobreaker.CircuitBreaker[[]provider.Track]
	timeout time.Duration
}

// Option configures a Client.
type Option func(*options)

type options struct {
	baseURL string
	breaker gobreaker.Settings
	retry   bool
	timeout time.Duration
}

// WithBaseURL points the client at a different API root (must end in "/").
func WithBaseURL(u string) Option {
	return func(o *options) {
		o.baseURL = u
	}
}

// WithBreakerSettings overrides the circuit breaker configuration.
func WithBreakerSettings(s gobreaker.Settings) Option {
	return func(o *options) {
		o.breaker = s
	}
}

// WithRetry toggles the library's automatic retry on rate limiting. Off by
// default: a rate-limited catalog is a failure so the chain can fall back.
func WithRetry(retry bool) Option {
	return func(o *options) {
		o.retry = retry
	}
}

// WithTimeout bounds each recommendations call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// New creates a Client. httpClient must already attach authorization,
// e.g. auth.ClientCredentials.Client.
func New(httpClient *http.Client, opts ...Option) *Client {
	o := options{breaker: defaultBreakerSettings(), timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	clientOpts := []spotify.ClientOption{spotify.WithRetry(o.retry)}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, spotify.WithBaseURL(o.baseURL))
	}

	return &Client{
		api:     spotify.New(httpClient, clientOpts...),
		breaker: newBreaker[[]provider.Track](o.breaker),
		timeout: o.timeout,
	}
}

// Recommend fetches catalog recommendations for the query's target. Calls are
// rejected without reaching the API while the circuit is open.
func (c *Client) Recommend(ctx context.Context, q provider.Query) ([]provider.Track, error) {
	return execute(c.breaker, func() ([]provider.Track, error) {
		return c.fetch(ctx, q)
	})
}

func (c *Client) fetch(ctx context.Context, q provider.Query) ([]provider.Track, error) {
	genres := q.Target.SeedGenres()
	if len(genres) == 0 {
		return nil, ErrNoSeeds
	}

	attrs := spotify.NewTrackAttributes().
		TargetEnergy(q.Target.Energy).
		TargetValence(q.Target.Valence).
		TargetDanceability(q.Target.Danceability)

	limit := q.Limit
	if limit <= 0 {
		limit = provider.DefaultLimit
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	recs, err := c.api.GetRecommendations(ctx, spotify.Seeds{Genres: genres}, attrs, spotify.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("fetching recommendations: %w", err)
	}
	if recs == nil || len(recs.Tracks) == 0 {
		return nil, provider.ErrEmptyResult
	}

	tracks := make([]provider.Track, 0, len(recs.Tracks))
	for _, t := range recs.Tracks {
		tracks = append(tracks, convertTrack(t))
	}
	return tracks, nil
}

// convertTrack converts a Spotify SimpleTrack to a provider.Track, crediting
// only the first artist.
func convertTrack(t spotify.SimpleTrack) provider.Track {
	artist := unknownArtist
	if len(t.Artists) > 0 && t.Artists[0].Name != "" {
		artist = t.Artists[0].Name
	}

	return provider.Track{
		ID:          t.ID.String(),
		Name:        t.Name,
		Artist:      artist,
		PreviewURL:  t.PreviewURL,
		ExternalURL: t.ExternalURLs["spotify"],
	}
}

var _ provider.Provider = (*Client)(nil)
