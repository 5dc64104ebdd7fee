// Package fallback serves curated per-emotion playlists when the music
// catalog is unavailable.
package fallback

import (
	"context"
	_ "embed"
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/justestif/go-mood-recommender/internal/emotion"
	"github.com/justestif/go-mood-recommender/internal/provider"
)

//go:embed playlists.json
var playlistsJSON []byte

type entry struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
}

// Provider returns tracks from the embedded curated playlists.
type Provider struct {
	playlists map[emotion.Label][]provider.Track
}

// New loads the embedded playlists.
func New() (*Provider, error) {
	return parse(playlistsJSON)
}

func parse(data []byte) (*Provider, error) {
	var raw map[string][]entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing curated playlists: %w", err)
	}

	p := &Provider{playlists: make(map[emotion.Label][]provider.Track, len(raw))}
	for key, entries := range raw {
		label, ok := emotion.ParseLabel(key)
		if !ok {
			return nil, fmt.Errorf("curated playlist for unknown emotion %q", key)
		}

		tracks := make([]provider.Track, len(entries))
		for i, e := range entries {
			tracks[i] = provider.Track{
				ID:         fmt.Sprintf("fallback-%s-%d", label, i+1),
				Name:       e.Name,
				Artist:     e.Artist,
				PreviewURL: SearchURL(e.Name, e.Artist),
			}
		}
		p.playlists[label] = tracks
	}

	if len(p.playlists[emotion.Neutral]) == 0 {
		return nil, fmt.Errorf("curated playlists missing %q", emotion.Neutral)
	}
	return p, nil
}

// Recommend returns up to q.Limit curated tracks for the query's emotion.
// Unknown emotions use the neutral playlist.
func (p *Provider) Recommend(_ context.Context, q provider.Query) ([]provider.Track, error) {
	return p.Tracks(q.Emotion, q.Limit), nil
}

// Tracks returns a copy of up to limit tracks for label.
func (p *Provider) Tracks(label emotion.Label, limit int) []provider.Track {
	tracks, ok := p.playlists[label]
	if !ok {
		tracks = p.playlists[emotion.Neutral]
	}
	if limit <= 0 || limit > len(tracks) {
		limit = len(tracks)
	}

	out := make([]provider.Track, limit)
	copy(out, tracks[:limit])
	return out
}

// SearchURL returns a web search link for a song.
func SearchURL(name, artist string) string {
	q := strings.ReplaceAll(url.QueryEscape(name+" "+artist), "+", "%20")
	return "https://www.youtube.com/results?search_query=" + q
}

var _ provider.Provider = (*Provider)(nil)
