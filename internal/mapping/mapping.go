// Package mapping translates emotions into catalog audio-feature targets.
package mapping

import (
	"slices"

	"github.com/justestif/go-mood-recommender/internal/emotion"
)

// MaxSeedGenres is the catalog limit on seed genres per query.
const MaxSeedGenres = 5

// Target describes the audio characteristics requested from a catalog.
type Target struct {
	Genres       []string `json:"genres"`
	Energy       float64  `json:"energy"`
	Valence      float64  `json:"valence"`
	Danceability float64  `json:"danceability"`
}

var table = map[emotion.Label]Target{
	emotion.Happy: {
		Genres:       []string{"pop", "dance", "electronic", "happy"},
		Energy:       0.8,
		Valence:      0.9,
		Danceability: 0.8,
	},
	emotion.Sad: {
		Genres:       []string{"sad", "acoustic", "indie", "blues"},
		Energy:       0.3,
		Valence:      0.2,
		Danceability: 0.3,
	},
	emotion.Angry: {
		Genres:       []string{"rock", "metal", "punk", "hard-rock"},
		Energy:       0.9,
		Valence:      0.3,
		Danceability: 0.5,
	},
	emotion.Fear: {
		Genres:       []string{"ambient", "dark", "electronic", "soundtrack"},
		Energy:       0.4,
		Valence:      0.3,
		Danceability: 0.3,
	},
	emotion.Surprise: {
		Genres:       []string{"pop", "electronic", "indie-pop"},
		Energy:       0.7,
		Valence:      0.7,
		Danceability: 0.7,
	},
	emotion.Disgust: {
		Genres:       []string{"alternative", "indie", "experimental"},
		Energy:       0.5,
		Valence:      0.4,
		Danceability: 0.4,
	},
	emotion.Neutral: {
		Genres:       []string{"pop", "indie", "acoustic"},
		Energy:       0.5,
		Valence:      0.5,
		Danceability: 0.5,
	},
}

// MapSingle returns the target for a label. Unknown labels map to neutral.
// The returned value is a copy and may be modified by the caller.
func MapSingle(label emotion.Label) Target {
	t, ok := table[label]
	if !ok {
		t = table[emotion.Neutral]
	}
	t.Genres = slices.Clone(t.Genres)
	return t
}

// Blend weights each label's target features by its probability. The sums are
// clamped to [0,1] and genres come from the most probable label. A
// distribution that contributes nothing yields the neutral target.
func Blend(probs emotion.Distribution) Target {
	var energy, valence, dance float64
	for _, label := range emotion.Labels {
		p := probs[label]
		if p <= 0 {
			continue
		}
		t := table[label]
		energy += p * t.Energy
		valence += p * t.Valence
		dance += p * t.Danceability
	}

	if energy == 0 && valence == 0 && dance == 0 {
		return MapSingle(emotion.Neutral)
	}

	top, _ := probs.Argmax()
	return Target{
		Genres:       MapSingle(top).Genres,
		Energy:       clamp01(energy),
		Valence:      clamp01(valence),
		Danceability: clamp01(dance),
	}
}

// SeedGenres returns at most MaxSeedGenres genres from the target.
func (t Target) SeedGenres() []string {
	if len(t.Genres) <= MaxSeedGenres {
		return t.Genres
	}
	return t.Genres[:MaxSeedGenres]
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
