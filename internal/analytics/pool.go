// Package analytics records recommendation and mood history in the
// background so request handling never waits on storage.
package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/justestif/go-mood-recommender/internal/emotion"
	"github.com/justestif/go-mood-recommender/internal/logging"
	"github.com/justestif/go-mood-recommender/internal/metrics"
	"github.com/justestif/go-mood-recommender/internal/provider"
)

// Defaults for pool sizing.
const (
	DefaultWorkers   = 2
	DefaultQueueSize = 100

	jobTimeout = 5 * time.Second
)

// ErrQueueFull is returned when a job was dropped because the queue is full
// or the pool has stopped.
var ErrQueueFull = errors.New("analytics queue full")

// Job kinds, used as metric labels.
const (
	KindRecommendation = "recommendation"
	KindMood           = "mood"
)

// Mood is one detected mood to be recorded.
type Mood struct {
	UserID        string
	Emotion       emotion.Label
	Confidence    float64
	Probabilities emotion.Distribution
}

// Sink stores analytics records.
type Sink interface {
	SaveRecommendation(ctx context.Context, rec provider.Record) error
	SaveMood(ctx context.Context, m Mood) error
}

type job struct {
	kind      string
	requestID string
	rec       provider.Record
	mood      Mood
}

// Pool is a fixed set of workers draining a bounded job queue.
type Pool struct {
	sink Sink
	jobs chan job
	wg   sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewPool creates a pool with the given queue size.
func NewPool(sink Sink, queueSize int) *Pool {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	return &Pool{sink: sink, jobs: make(chan job, queueSize)}
}

// Start launches the worker goroutines.
func (p *Pool) Start(workers int) {
	if workers < 1 {
		workers = DefaultWorkers
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				p.process(j)
			}
		}()
	}
}

// Stop closes the queue and waits for queued jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// RecordRecommendation queues a recommendation record. It never blocks.
func (p *Pool) RecordRecommendation(ctx context.Context, rec provider.Record) error {
	return p.submit(ctx, job{kind: KindRecommendation, rec: rec})
}

// RecordMood queues a mood record. It never blocks.
func (p *Pool) RecordMood(ctx context.Context, m Mood) error {
	return p.submit(ctx, job{kind: KindMood, mood: m})
}

func (p *Pool) submit(ctx context.Context, j job) error {
	j.requestID = logging.RequestIDFromContext(ctx)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		metrics.AnalyticsJobs.WithLabelValues(j.kind, "dropped").Inc()
		return ErrQueueFull
	}

	select {
	case p.jobs <- j:
		return nil
	default:
		metrics.AnalyticsJobs.WithLabelValues(j.kind, "dropped").Inc()
		logging.Ctx(ctx).Warn().Str("kind", j.kind).Msg("analytics queue full, dropping job")
		return ErrQueueFull
	}
}

func (p *Pool) process(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if j.requestID != "" {
		ctx = logging.ContextWithRequestID(ctx, j.requestID)
	}

	var err error
	switch j.kind {
	case KindRecommendation:
		err = p.sink.SaveRecommendation(ctx, j.rec)
	case KindMood:
		err = p.sink.SaveMood(ctx, j.mood)
	}

	if err != nil {
		metrics.AnalyticsJobs.WithLabelValues(j.kind, "failed").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("kind", j.kind).Msg("analytics job failed")
		return
	}
	metrics.AnalyticsJobs.WithLabelValues(j.kind, "ok").Inc()
}
