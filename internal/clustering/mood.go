package clustering

import (
	"slices"
	"time"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/justestif/go-mood-recommender/internal/emotion"
	"github.com/justestif/go-mood-recommender/internal/logging"
)

// MoodConfig holds mood clustering parameters.
type MoodConfig struct {
	NumClusters    int // Number of clusters to create (default: 3)
	MinClusterSize int // Minimum points per phase (smaller clusters become outliers)
}

// DefaultMoodConfig returns the recommended default configuration.
func DefaultMoodConfig() MoodConfig {
	return MoodConfig{
		NumClusters:    3,
		MinClusterSize: 3,
	}
}

// MoodPhase is a cluster of mood observations with similar distributions.
type MoodPhase struct {
	Name      string               // "Mostly Happy: Jan 15, 2026 - Feb 3, 2026"
	Dominant  emotion.Label        // Highest label in the centroid
	Centroid  emotion.Distribution // Average distribution of the cluster
	Points    []MoodPoint          // Ordered by time
	StartDate time.Time
	EndDate   time.Time
}

type pointObservation struct {
	point  *MoodPoint
	coords clusters.Coordinates
}

func (o pointObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o pointObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// DetectMoodPhases groups mood points by distribution similarity.
// Returns phases, most recent first, and the points that fit no phase.
func DetectMoodPhases(points []MoodPoint, cfg MoodConfig) ([]MoodPhase, []MoodPoint) {
	if len(points) == 0 {
		return nil, nil
	}

	if cfg.NumClusters <= 0 {
		cfg.NumClusters = DefaultMoodConfig().NumClusters
	}

	if len(points) < cfg.NumClusters {
		return nil, slices.Clone(points)
	}

	var obs clusters.Observations
	for i := range points {
		obs = append(obs, pointObservation{
			point:  &points[i],
			coords: clusters.Coordinates(points[i].vector()),
		})
	}

	km := kmeans.New()
	result, err := km.Partition(obs, cfg.NumClusters)
	if err != nil {
		logging.Warn().Err(err).Msg("k-means clustering failed")
		return nil, slices.Clone(points)
	}

	var phases []MoodPhase
	var outliers []MoodPoint

	for _, cluster := range result {
		var members []MoodPoint
		for _, o := range cluster.Observations {
			if po, ok := o.(pointObservation); ok {
				members = append(members, *po.point)
			}
		}

		if len(members) == 0 {
			continue
		}
		if len(members) < cfg.MinClusterSize {
			outliers = append(outliers, members...)
			continue
		}

		slices.SortFunc(members, func(a, b MoodPoint) int {
			return a.At.Compare(b.At)
		})

		centroid := make(emotion.Distribution, len(emotion.Labels))
		for i, label := range emotion.Labels {
			centroid[label] = cluster.Center[i]
		}

		start := members[0].At
		end := members[len(members)-1].At
		dominant, _ := centroid.Argmax()

		phases = append(phases, MoodPhase{
			Name:      formatPhaseName(generatePhaseName(centroid), start, end),
			Dominant:  dominant,
			Centroid:  centroid,
			Points:    members,
			StartDate: start,
			EndDate:   end,
		})
	}

	slices.SortFunc(phases, func(a, b MoodPhase) int {
		return b.StartDate.Compare(a.StartDate)
	})

	return phases, outliers
}
