package mapping

import "github.com/justestif/go-mood-recommender/internal/emotion"

// DefaultConfidenceThreshold is the minimum confidence required before a
// detected emotion is trusted.
const DefaultConfidenceThreshold = 0.4

// Mode records which mapping strategy produced a target.
type Mode string

const (
	// ModeNeutralGate means confidence was too low and neutral was forced.
	ModeNeutralGate Mode = "neutral-gate"
	// ModeBlend means the target was blended from a probability distribution.
	ModeBlend Mode = "blend"
	// ModeSingle means the target came from a single label lookup.
	ModeSingle Mode = "single"
)

// Decision is the outcome of the confidence gate.
type Decision struct {
	UseNeutral bool
}

// Decide forces neutral when confidence is strictly below threshold.
func Decide(confidence, threshold float64) Decision {
	return Decision{UseNeutral: confidence < threshold}
}

// Input is what the gate and mapper need from a request.
type Input struct {
	Emotion       emotion.Label
	Confidence    float64
	Probabilities emotion.Distribution
}

// Resolve applies the confidence gate and picks the mapping strategy.
// It returns the emotion the recommendation is made for and its target.
func Resolve(in Input, threshold float64) (emotion.Label, Target, Mode) {
	if Decide(in.Confidence, threshold).UseNeutral {
		return emotion.Neutral, MapSingle(emotion.Neutral), ModeNeutralGate
	}

	if len(in.Probabilities) > 0 {
		top, _ := in.Probabilities.Argmax()
		return top, Blend(in.Probabilities), ModeBlend
	}

	label := emotion.LabelOrNeutral(string(in.Emotion))
	return label, MapSingle(label), ModeSingle
}
