// Package emotion defines the emotion vocabulary and the smoothing of
// per-user emotion observations.
package emotion

import (
	"math"
	"strings"
	"time"
)

// Label is one of the seven supported emotion categories.
type Label string

// Supported labels.
const (
	Happy    Label = "happy"
	Sad      Label = "sad"
	Angry    Label = "angry"
	Fear     Label = "fear"
	Surprise Label = "surprise"
	Disgust  Label = "disgust"
	Neutral  Label = "neutral"
)

// Labels lists every label in canonical order. Ties between labels are
// always broken in favor of the one that appears first here.
var Labels = []Label{Happy, Sad, Angry, Fear, Surprise, Disgust, Neutral}

// ParseLabel normalizes s (trim + lower-case) and reports whether it names a
// supported label.
func ParseLabel(s string) (Label, bool) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Labels {
		if l == known {
			return l, true
		}
	}
	return "", false
}

// LabelOrNeutral parses s and falls back to Neutral for unknown input.
func LabelOrNeutral(s string) Label {
	if l, ok := ParseLabel(s); ok {
		return l
	}
	return Neutral
}

// Distribution maps labels to probabilities. It does not have to sum to 1.
type Distribution map[Label]float64

// FromRaw converts an upstream probability map into a Distribution.
// Unknown labels are dropped; negative and NaN values become 0.
func FromRaw(raw map[string]float64) Distribution {
	d := make(Distribution, len(raw))
	for k, v := range raw {
		l, ok := ParseLabel(k)
		if !ok {
			continue
		}
		if math.IsNaN(v) || v < 0 {
			v = 0
		}
		d[l] += v
	}
	return d
}

// OneHot returns a distribution with probability 1 on l.
func OneHot(l Label) Distribution {
	return Distribution{l: 1}
}

// Sum returns the total probability mass.
func (d Distribution) Sum() float64 {
	var total float64
	for _, v := range d {
		total += v
	}
	return total
}

// Normalize returns a copy of d scaled to sum to 1. When the total mass is
// not positive the copy is returned unscaled.
func (d Distribution) Normalize() Distribution {
	out := make(Distribution, len(d))
	total := d.Sum()
	for k, v := range d {
		if total > 0 {
			out[k] = v / total
		} else {
			out[k] = v
		}
	}
	return out
}

// Argmax returns the label with the highest probability and that probability.
// An empty or all-zero distribution yields Neutral with probability 0.
func (d Distribution) Argmax() (Label, float64) {
	best := Neutral
	bestP := 0.0
	found := false
	for _, l := range Labels {
		p := d[l]
		if p > bestP {
			best, bestP, found = l, p, true
		}
	}
	if !found {
		return Neutral, 0
	}
	return best, bestP
}

// Vector returns the probabilities in canonical label order.
func (d Distribution) Vector() []float64 {
	v := make([]float64, len(Labels))
	for i, l := range Labels {
		v[i] = d[l]
	}
	return v
}

// ToRaw converts d into a plain string-keyed map for serialization.
func (d Distribution) ToRaw() map[string]float64 {
	raw := make(map[string]float64, len(d))
	for k, v := range d {
		raw[string(k)] = v
	}
	return raw
}

// Observation is a single emotion reading for a user.
type Observation struct {
	Probabilities Distribution `json:"emotion_probabilities"`
	ObservedAt    time.Time    `json:"at"`
}

// Detection is the outcome of inferring emotion from a photo or text.
type Detection struct {
	Predicted     Label
	Confidence    float64
	Probabilities Distribution
	FaceDetected  bool
}

// NeutralDetection returns a neutral detection with the given confidence.
func NeutralDetection(confidence float64) Detection {
	return Detection{
		Predicted:     Neutral,
		Confidence:    confidence,
		Probabilities: OneHot(Neutral),
	}
}
