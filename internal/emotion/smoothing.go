package emotion

// Average computes the per-label mean of the given observations and
// renormalizes the result to sum to 1.
//
// A label missing from an observation counts as 0 for that observation. When
// the mean has no positive mass it is returned as-is, without normalization.
// The result does not depend on the order of observations.
func Average(observations []Observation) Distribution {
	if len(observations) == 0 {
		return Distribution{}
	}

	sums := make(Distribution, len(Labels))
	for _, obs := range observations {
		for label, p := range obs.Probabilities {
			sums[label] += p
		}
	}

	n := float64(len(observations))
	mean := make(Distribution, len(sums))
	for label, total := range sums {
		mean[label] = total / n
	}

	return mean.Normalize()
}
