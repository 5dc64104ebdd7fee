// Package clustering groups mood observations into phases using k-means on
// their emotion distributions.
package clustering

import (
	"time"

	"github.com/justestif/go-mood-recommender/internal/emotion"
)

// MoodPoint is one recorded mood.
type MoodPoint struct {
	ID            string
	At            time.Time
	Emotion       emotion.Label
	Probabilities emotion.Distribution
}

// vector returns the point's normalized distribution in canonical label order.
// Points without a usable distribution fall back to one-hot on their label.
func (p MoodPoint) vector() []float64 {
	d := p.Probabilities
	if d.Sum() <= 0 {
		d = emotion.OneHot(emotion.LabelOrNeutral(string(p.Emotion)))
	}
	return d.Normalize().Vector()
}
