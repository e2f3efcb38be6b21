package metrics

import (
	"math"

	"github.com/google/uuid"

	"github.com/olho-vivo/presenca/internal/domain"
)

// euclidean is the distance the cluster geometry metrics are defined in,
// independent of whatever metric the embedding model matches with.
func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// cluster is one person's embeddings restricted to the modal dimension.
type cluster struct {
	personID   uuid.UUID
	embeddings [][]float64
	centroid   []float64
}

// buildClusters groups each person's embeddings and computes centroids.
// Embeddings whose dimension differs from the modal dimension are dropped, so
// a model switch mid-corpus cannot poison the averages.
func buildClusters(persons []domain.Person) []cluster {
	dim := modalDimension(persons)
	if dim == 0 {
		return nil
	}

	var clusters []cluster
	for _, p := range persons {
		var embeddings [][]float64
		for _, emb := range p.Embeddings {
			if len(emb.Embedding) == dim {
				embeddings = append(embeddings, emb.Embedding)
			}
		}
		if len(embeddings) == 0 {
			continue
		}
		clusters = append(clusters, cluster{
			personID:   p.ID,
			embeddings: embeddings,
			centroid:   centroid(embeddings, dim),
		})
	}

	return clusters
}

func modalDimension(persons []domain.Person) int {
	counts := make(map[int]int)
	for _, p := range persons {
		for _, emb := range p.Embeddings {
			if len(emb.Embedding) > 0 {
				counts[len(emb.Embedding)]++
			}
		}
	}

	dim, best := 0, 0
	for d, n := range counts {
		if n > best || (n == best && d < dim) {
			dim, best = d, n
		}
	}
	return dim
}

func centroid(embeddings [][]float64, dim int) []float64 {
	c := make([]float64, dim)
	for _, emb := range embeddings {
		for i, v := range emb {
			c[i] += v
		}
	}
	for i := range c {
		c[i] /= float64(len(embeddings))
	}
	return c
}

// interClusterDistance is the mean pairwise Euclidean distance between
// centroids. 0 with fewer than two clusters.
func interClusterDistance(clusters []cluster) float64 {
	if len(clusters) < 2 {
		return 0
	}

	var sum float64
	var pairs int
	for i := 0; i < len(clusters); i++ {
		for j := i + 1; j < len(clusters); j++ {
			sum += euclidean(clusters[i].centroid, clusters[j].centroid)
			pairs++
		}
	}
	return sum / float64(pairs)
}

// intraClusterDistance is the mean over clusters of the mean Euclidean
// distance from each embedding to its own centroid. 0 with no clusters.
func intraClusterDistance(clusters []cluster) float64 {
	if len(clusters) == 0 {
		return 0
	}

	var sum float64
	for _, c := range clusters {
		var inner float64
		for _, emb := range c.embeddings {
			inner += euclidean(emb, c.centroid)
		}
		sum += inner / float64(len(c.embeddings))
	}
	return sum / float64(len(clusters))
}

// silhouette is the mean silhouette coefficient over all embeddings, labeled
// by person, in the same Euclidean space as the cluster distances. Returns
// nil with fewer than two clusters, where the coefficient is undefined.
// Singleton clusters contribute 0 for their lone sample.
func silhouette(clusters []cluster) *float64 {
	if len(clusters) < 2 {
		return nil
	}

	var sum float64
	var n int
	for ci, c := range clusters {
		for ei, emb := range c.embeddings {
			n++
			if len(c.embeddings) == 1 {
				continue
			}

			var a float64
			for ej, other := range c.embeddings {
				if ej == ei {
					continue
				}
				a += euclidean(emb, other)
			}
			a /= float64(len(c.embeddings) - 1)

			b := math.Inf(1)
			for cj, otherCluster := range clusters {
				if cj == ci {
					continue
				}
				var d float64
				for _, other := range otherCluster.embeddings {
					d += euclidean(emb, other)
				}
				d /= float64(len(otherCluster.embeddings))
				if d < b {
					b = d
				}
			}

			if denom := math.Max(a, b); denom > 0 {
				sum += (b - a) / denom
			}
		}
	}

	if n == 0 {
		return nil
	}
	s := sum / float64(n)
	return &s
}

// vMeasure computes homogeneity, completeness and their harmonic mean from
// the presences that carry a gold standard label. Predicted clusters are the
// person assignments. All three are 0 when there are fewer than two distinct
// true labels or fewer than two predicted clusters.
func vMeasure(presences []domain.Presence) (homogeneity, completeness, v float64) {
	type pair struct {
		truth     string
		predicted uuid.UUID
	}

	var labeled []pair
	truths := make(map[string]int)
	preds := make(map[uuid.UUID]int)
	for _, p := range presences {
		if p.GoldStandard == nil || *p.GoldStandard == "" {
			continue
		}
		labeled = append(labeled, pair{truth: *p.GoldStandard, predicted: p.PersonID})
		truths[*p.GoldStandard]++
		preds[p.PersonID]++
	}

	if len(truths) < 2 || len(preds) < 2 {
		return 0, 0, 0
	}

	n := float64(len(labeled))

	contingency := make(map[pair]int)
	for _, p := range labeled {
		contingency[p]++
	}

	entropy := func(counts map[string]int) float64 {
		var h float64
		for _, c := range counts {
			p := float64(c) / n
			h -= p * math.Log(p)
		}
		return h
	}

	hTruth := entropy(truths)
	predCounts := make(map[string]int, len(preds))
	for id, c := range preds {
		predCounts[id.String()] = c
	}
	hPred := entropy(predCounts)

	// Conditional entropies over the contingency table.
	var hTruthGivenPred, hPredGivenTruth float64
	for cell, count := range contingency {
		joint := float64(count) / n
		hTruthGivenPred -= joint * math.Log(float64(count)/float64(preds[cell.predicted]))
		hPredGivenTruth -= joint * math.Log(float64(count)/float64(truths[cell.truth]))
	}

	homogeneity = 1.0
	if hTruth > 0 {
		homogeneity = 1.0 - hTruthGivenPred/hTruth
	}
	completeness = 1.0
	if hPred > 0 {
		completeness = 1.0 - hPredGivenTruth/hPred
	}

	if homogeneity+completeness > 0 {
		v = 2 * homogeneity * completeness / (homogeneity + completeness)
	}

	return homogeneity, completeness, v
}
