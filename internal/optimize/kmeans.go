package optimize

import (
	"math"

	"github.com/fyrsmithlabs/engramd/internal/embeddings"
	"github.com/fyrsmithlabs/engramd/internal/store"
)

const (
	maxIterations = 50

	// convergenceSimilarity stops iteration once every centroid stays
	// within this cosine similarity of its previous position.
	convergenceSimilarity = 0.99
)

// cluster runs k-means over the embedded contexts, using cosine
// similarity as the assignment measure. Contexts without embeddings are
// skipped; an empty embedded set yields an empty report. Clusters below
// the minimum size are reported as outliers instead of kept.
func (o *Optimizer) cluster(contexts []*store.Context, k, minSize int) *ClusterReport {
	var embedded []*store.Context
	var vectors [][]float32
	for _, c := range contexts {
		if c.Embedding != nil && len(c.Embedding.Vector) > 0 {
			embedded = append(embedded, c)
			vectors = append(vectors, c.Embedding.Vector)
		}
	}

	report := &ClusterReport{}
	if len(embedded) == 0 {
		return report
	}

	if k <= 0 {
		k = int(math.Sqrt(float64(len(embedded)) / 2))
	}
	if k < 1 {
		k = 1
	}
	if k > len(embedded) {
		k = len(embedded)
	}

	// Deterministic seeding: evenly spaced members become the initial
	// centroids.
	centroids := make([][]float32, k)
	for i := 0; i < k; i++ {
		centroids[i] = vectors[i*len(vectors)/k]
	}

	assignments := make([]int, len(vectors))
	for iter := 0; iter < maxIterations; iter++ {
		report.Iterations = iter + 1

		for i, v := range vectors {
			assignments[i] = nearestCentroid(v, centroids)
		}

		converged := true
		for c := range centroids {
			var members [][]float32
			for i, a := range assignments {
				if a == c {
					members = append(members, vectors[i])
				}
			}
			next := embeddings.Mean(members)
			if next == nil {
				continue
			}
			if embeddings.Cosine(centroids[c], next) < convergenceSimilarity {
				converged = false
			}
			centroids[c] = next
		}
		if converged {
			break
		}
	}

	byCluster := make([][]string, k)
	for i, a := range assignments {
		byCluster[a] = append(byCluster[a], embedded[i].ID)
	}
	for _, members := range byCluster {
		if len(members) == 0 {
			continue
		}
		if len(members) < minSize {
			report.Outliers = append(report.Outliers, members...)
			continue
		}
		report.Clusters = append(report.Clusters, Cluster{Members: members})
	}
	return report
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best := 0
	bestSim := math.Inf(-1)
	for i, c := range centroids {
		if sim := embeddings.Cosine(v, c); sim > bestSim {
			bestSim = sim
			best = i
		}
	}
	return best
}
