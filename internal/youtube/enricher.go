package youtube

import (
	"context"
	"sync"

	"github.com/justestif/go-mood-recommender/internal/logging"
	"github.com/justestif/go-mood-recommender/internal/provider"
)

// DefaultConcurrency is the number of concurrent video lookups per batch.
const DefaultConcurrency = 5

// VideoFinder abstracts the YouTube client for testing.
type VideoFinder interface {
	VideoID(ctx context.Context, name, artist string) (string, error)
}

// Enricher attaches YouTube video IDs to tracks.
type Enricher struct {
	finder      VideoFinder
	concurrency int
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithConcurrency sets the number of concurrent lookups.
func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewEnricher creates a new Enricher. A nil finder makes Enrich a no-op.
func NewEnricher(finder VideoFinder, opts ...Option) *Enricher {
	e := &Enricher{
		finder:      finder,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns a copy of tracks with YouTubeVideoID filled where a video
// was found. Lookup failures leave the field empty and never fail the batch;
// a quota or key error skips the remaining lookups. Order is preserved.
func (e *Enricher) Enrich(ctx context.Context, tracks []provider.Track) []provider.Track {
	out := make([]provider.Track, len(tracks))
	copy(out, tracks)
	if e == nil || e.finder == nil || len(out) == 0 {
		return out
	}

	workCh := make(chan int, len(out))
	for i := range out {
		if out[i].YouTubeVideoID == "" {
			workCh <- i
		}
	}
	close(workCh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var stopOnce sync.Once

	var wg sync.WaitGroup
	for i := 0; i < e.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				if ctx.Err() != nil {
					continue
				}
				id, err := e.finder.VideoID(ctx, out[idx].Name, out[idx].Artist)
				if IsTerminal(err) {
					stopOnce.Do(func() {
						logging.Ctx(ctx).Warn().Err(err).Msg("video lookups unavailable, skipping the rest")
						cancel()
					})
					continue
				}
				if err != nil {
					logging.Ctx(ctx).Debug().Err(err).
						Str("track", out[idx].Name).
						Msg("video lookup failed")
					continue
				}
				out[idx].YouTubeVideoID = id
			}
		}()
	}
	wg.Wait()

	return out
}
