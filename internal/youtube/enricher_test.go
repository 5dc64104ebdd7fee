package youtube

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/justestif/go-mood-recommender/internal/provider"
)

type mockFinder struct {
	ids       map[string]string
	errs      map[string]error
	callCount atomic.Int32
}

func (m *mockFinder) VideoID(_ context.Context, name, _ string) (string, error) {
	m.callCount.Add(1)
	if err, ok := m.errs[name]; ok {
		return "", err
	}
	return m.ids[name], nil
}

func TestEnrich(t *testing.T) {
	finder := &mockFinder{
		ids:  map[string]string{"A": "vidA", "C": "vidC"},
		errs: map[string]error{"B": errors.New("quota")},
	}
	tracks := []provider.Track{
		{ID: "1", Name: "A"},
		{ID: "2", Name: "B"},
		{ID: "3", Name: "C"},
		{ID: "4", Name: "D", YouTubeVideoID: "preset"},
	}

	got := NewEnricher(finder, WithConcurrency(2)).Enrich(context.Background(), tracks)

	want := []string{"vidA", "", "vidC", "preset"}
	for i, w := range want {
		if got[i].ID != tracks[i].ID {
			t.Errorf("order changed at %d: %s", i, got[i].ID)
		}
		if got[i].YouTubeVideoID != w {
			t.Errorf("track %d video = %q, want %q", i, got[i].YouTubeVideoID, w)
		}
	}
	if tracks[0].YouTubeVideoID != "" {
		t.Error("input slice was modified")
	}
	if finder.callCount.Load() != 3 {
		t.Errorf("lookups = %d, want 3", finder.callCount.Load())
	}
}

func TestEnrich_NoFinder(t *testing.T) {
	tracks := []provider.Track{{ID: "1", Name: "A"}}
	got := NewEnricher(nil).Enrich(context.Background(), tracks)
	if len(got) != 1 || got[0].YouTubeVideoID != "" {
		t.Errorf("Enrich() = %+v", got)
	}
}

func TestEnrich_CancelledContext(t *testing.T) {
	finder := &mockFinder{ids: map[string]string{"A": "vidA"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := NewEnricher(finder).Enrich(ctx, []provider.Track{{Name: "A"}})
	if got[0].YouTubeVideoID != "" || finder.callCount.Load() != 0 {
		t.Errorf("lookups ran after cancel: %+v", got)
	}
}

func TestEnrich_StopsOnQuotaError(t *testing.T) {
	finder := &mockFinder{errs: map[string]error{
		"A": ErrQuotaExceeded,
		"B": ErrQuotaExceeded,
		"C": ErrQuotaExceeded,
	}}
	tracks := []provider.Track{{Name: "A"}, {Name: "B"}, {Name: "C"}}

	got := NewEnricher(finder, WithConcurrency(1)).Enrich(context.Background(), tracks)

	if finder.callCount.Load() != 1 {
		t.Errorf("lookups = %d, want 1 after a quota error", finder.callCount.Load())
	}
	for i, tr := range got {
		if tr.YouTubeVideoID != "" {
			t.Errorf("track %d video = %q, want empty", i, tr.YouTubeVideoID)
		}
	}
}
