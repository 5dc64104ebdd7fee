package fallback

import (
	"context"
	"strings"
	"testing"

	"github.com/justestif/go-mood-recommender/internal/emotion"
	"github.com/justestif/go-mood-recommender/internal/provider"
)

func TestNew_AllLabelsHaveTenTracks(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, label := range emotion.Labels {
		tracks := p.Tracks(label, 0)
		if len(tracks) != 10 {
			t.Errorf("%s: len = %d, want 10", label, len(tracks))
		}
		for _, tr := range tracks {
			if provider.IsCatalogID(tr.ID) {
				t.Errorf("%s: fallback id %q looks like a catalog id", label, tr.ID)
			}
			if !strings.HasPrefix(tr.ID, "fallback-"+string(label)+"-") {
				t.Errorf("%s: id = %q", label, tr.ID)
			}
		}
	}
}

func TestProvider_Recommend(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name      string
		label     emotion.Label
		limit     int
		wantLen   int
		wantFirst string
		wantID    string
	}{
		{name: "happy full list", label: emotion.Happy, limit: 20, wantLen: 10, wantFirst: "Happy", wantID: "fallback-happy-1"},
		{name: "sad sliced", label: emotion.Sad, limit: 3, wantLen: 3, wantFirst: "Someone Like You", wantID: "fallback-sad-1"},
		{name: "unknown uses neutral", label: "bored", limit: 5, wantLen: 5, wantFirst: "Blinding Lights", wantID: "fallback-neutral-1"},
		{name: "empty uses neutral", label: "", limit: 20, wantLen: 10, wantFirst: "Blinding Lights", wantID: "fallback-neutral-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracks, err := p.Recommend(context.Background(), provider.Query{Emotion: tt.label, Limit: tt.limit})
			if err != nil {
				t.Fatalf("Recommend() error = %v", err)
			}
			if len(tracks) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(tracks), tt.wantLen)
			}
			if tracks[0].Name != tt.wantFirst {
				t.Errorf("first track = %q, want %q", tracks[0].Name, tt.wantFirst)
			}
			if tracks[0].ID != tt.wantID {
				t.Errorf("first id = %q, want %q", tracks[0].ID, tt.wantID)
			}
		})
	}
}

func TestProvider_TracksAreCopies(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tracks := p.Tracks(emotion.Happy, 1)
	tracks[0].Name = "mutated"

	if got := p.Tracks(emotion.Happy, 1)[0].Name; got != "Happy" {
		t.Errorf("playlist mutated through returned slice: %q", got)
	}
}

func TestSearchURL(t *testing.T) {
	got := SearchURL("Walking on Sunshine", "Katrina & The Waves")
	want := "https://www.youtube.com/results?search_query=Walking%20on%20Sunshine%20Katrina%20%26%20The%20Waves"
	if got != want {
		t.Errorf("SearchURL() = %q, want %q", got, want)
	}
}

func TestParse_RejectsUnknownEmotion(t *testing.T) {
	_, err := parse([]byte(`{"bored": [{"name": "x", "artist": "y"}], "neutral": []}`))
	if err == nil {
		t.Error("parse() error = nil, want error for unknown emotion")
	}
}
