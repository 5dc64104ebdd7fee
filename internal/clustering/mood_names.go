package clustering

import (
	"fmt"
	"strings"
	"time"

	"github.com/justestif/go-mood-recommender/internal/emotion"
)

// secondaryThreshold is the centroid share at which the runner-up label is
// named alongside the dominant one.
const secondaryThreshold = 0.25

// generatePhaseName names a centroid after its dominant label, or its top two
// labels when the runner-up is strong enough:
//
//   - {happy: 0.8, sad: 0.1}     = "Mostly Happy"
//   - {happy: 0.5, surprise: 0.3} = "Happy & Surprise"
func generatePhaseName(centroid emotion.Distribution) string {
	first, firstP := centroid.Argmax()

	rest := make(emotion.Distribution, len(centroid))
	for label, p := range centroid {
		if label != first {
			rest[label] = p
		}
	}
	second, secondP := rest.Argmax()

	if firstP > 0 && secondP >= secondaryThreshold {
		return fmt.Sprintf("%s & %s", title(first), title(second))
	}
	return "Mostly " + title(first)
}

func title(l emotion.Label) string {
	s := string(l)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// formatPhaseName combines a mood name with date range.
func formatPhaseName(moodName string, start, end time.Time) string {
	const dateFormat = "Jan 2, 2006"
	startStr := start.Format(dateFormat)
	endStr := end.Format(dateFormat)

	if startStr == endStr {
		return fmt.Sprintf("%s: %s", moodName, startStr)
	}
	return fmt.Sprintf("%s: %s - %s", moodName, startStr, endStr)
}
