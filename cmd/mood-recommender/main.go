// Command mood-recommender runs the mood-to-music recommendation API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/justestif/go-mood-recommender/internal/analytics"
	"github.com/justestif/go-mood-recommender/internal/auth"
	"github.com/justestif/go-mood-recommender/internal/config"
	"github.com/justestif/go-mood-recommender/internal/db"
	"github.com/justestif/go-mood-recommender/internal/detector"
	"github.com/justestif/go-mood-recommender/internal/explain"
	"github.com/justestif/go-mood-recommender/internal/fallback"
	"github.com/justestif/go-mood-recommender/internal/history"
	"github.com/justestif/go-mood-recommender/internal/logging"
	"github.com/justestif/go-mood-recommender/internal/openai"
	"github.com/justestif/go-mood-recommender/internal/provider"
	"github.com/justestif/go-mood-recommender/internal/recommend"
	"github.com/justestif/go-mood-recommender/internal/spotify"
	"github.com/justestif/go-mood-recommender/internal/textmood"
	"github.com/justestif/go-mood-recommender/internal/trends"
	"github.com/justestif/go-mood-recommender/internal/web"
	"github.com/justestif/go-mood-recommender/internal/youtube"
)

const sweepInterval = time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})

	ctx := context.Background()

	store, closeStore, err := openHistory(cfg.History)
	if err != nil {
		return err
	}
	defer closeStore()

	// Providers
	curated, err := fallback.New()
	if err != nil {
		return fmt.Errorf("loading curated playlists: %w", err)
	}

	var primary provider.Provider
	if cfg.Spotify.Enabled() {
		creds, err := newCredentials(cfg.Spotify)
		if err != nil {
			return err
		}
		primary = spotify.New(creds.Client(nil), spotify.WithTimeout(cfg.Spotify.Timeout()))
	} else {
		logging.Warn().Msg("spotify credentials not set, serving curated playlists only")
	}

	// Persistence and analytics
	var sink analytics.Sink = analytics.LogSink{}
	var trendsSvc web.TrendsService
	var historySvc web.RecommendationHistory
	if cfg.Database.URL != "" {
		database, err := db.New(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()

		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		sink = analytics.NewDBSink(database)
		trendsSvc = trends.New(database.Moods())
		historySvc = database.Recommendations()
	} else {
		logging.Info().Msg("DATABASE_URL not set, analytics will be logged only")
	}

	pool := analytics.NewPool(sink, cfg.Analytics.QueueSize)
	pool.Start(cfg.Analytics.Workers)
	defer pool.Stop()

	chain := provider.NewChain(primary, curated, provider.WithRecorder(pool))

	// Language model
	var completer explain.Completer
	if cfg.OpenAI.APIKey != "" {
		client, err := openai.NewClient(cfg.OpenAI.APIKey, openai.WithModel(cfg.OpenAI.Model))
		if err != nil {
			return fmt.Errorf("creating openai client: %w", err)
		}
		completer = client
	} else {
		logging.Info().Msg("OPENAI_API_KEY not set, explanations and text analysis disabled")
	}

	generator := explain.NewGenerator(completer,
		explain.WithTimeout(cfg.OpenAI.Timeout()),
		explain.WithEnabled(cfg.OpenAI.ExplanationEnabled),
	)

	var finder youtube.VideoFinder
	if cfg.YouTube.APIKey != "" {
		finder = youtube.NewClient(&youtube.Config{APIKey: cfg.YouTube.APIKey})
	}

	moodDetector := detector.NewClient(cfg.Detector.URL)

	svc := recommend.New(store, chain,
		recommend.WithExplainer(generator),
		recommend.WithEnricher(youtube.NewEnricher(finder)),
		recommend.WithEnrichTimeout(cfg.YouTube.Timeout()),
		recommend.WithDetector(moodDetector),
		recommend.WithTextAnalyzer(textmood.NewAnalyzer(completer, cfg.OpenAI.Timeout())),
		recommend.WithMoodRecorder(pool),
		recommend.WithConfidenceThreshold(cfg.Recommendation.ConfidenceThreshold),
		recommend.WithWindowSize(cfg.History.WindowSize),
		recommend.WithLimit(cfg.Recommendation.Limit),
	)

	server, err := web.NewServer(web.ServerConfig{
		Addr:               cfg.Server.Addr,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		ShutdownTimeout:    cfg.Server.ShutdownTimeout,
		Service:            svc,
		Trends:             trendsSvc,
		History:            historySvc,
		Detector:           moodDetector,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run()
}

// openHistory creates the configured history store and returns a function
// that releases it.
func openHistory(cfg config.HistoryConfig) (history.Store, func(), error) {
	switch cfg.Backend {
	case config.HistoryBackendBadger:
		bdb, err := history.OpenBadger(cfg.BadgerPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening history store: %w", err)
		}
		closeFn := func() {
			if err := bdb.Close(); err != nil {
				logging.Warn().Err(err).Msg("closing history store")
			}
		}
		return history.NewBadgerStore(bdb, cfg.TTL), closeFn, nil

	default:
		store := history.NewMemoryStore(history.WithMemoryTTL(cfg.TTL))
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(sweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if n := store.Sweep(); n > 0 {
						logging.Debug().Int("removed", n).Msg("swept expired mood windows")
					}
				case <-done:
					return
				}
			}
		}()
		return store, func() { close(done) }, nil
	}
}

// newCredentials builds the catalog token source, caching tokens on disk
// when enabled.
func newCredentials(cfg config.SpotifyConfig) (*auth.ClientCredentials, error) {
	var opts []auth.Option
	if cfg.TokenCache {
		cache, err := auth.DefaultTokenCache()
		if err != nil {
			logging.Warn().Err(err).Msg("token cache unavailable")
		} else {
			opts = append(opts, auth.WithTokenCache(cache))
		}
	}

	creds, err := auth.NewClientCredentials(cfg.ClientID, cfg.ClientSecret, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating spotify credentials: %w", err)
	}
	return creds, nil
}
