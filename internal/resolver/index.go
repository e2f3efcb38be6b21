package resolver

import (
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/uuid"
)

// Index is an in-memory approximate-nearest-neighbor index over all stored
// embeddings. It only reorders the candidate scan so likely matches are
// tried first; the vote rule still decides. Optional: a nil *Index means
// candidates are scanned in creation order.
type Index struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	owner map[string]uuid.UUID // embedding id -> person id
	k     int
}

// NewIndex creates an empty index that returns up to k candidate persons.
func NewIndex(k int) *Index {
	if k <= 0 {
		k = 16
	}

	g := hnsw.NewGraph[string]()
	g.Distance = hnsw.CosineDistance

	return &Index{
		graph: g,
		owner: make(map[string]uuid.UUID),
		k:     k,
	}
}

// Add inserts one embedding into the index.
func (i *Index) Add(embeddingID, personID uuid.UUID, embedding []float64) {
	vec := make([]float32, len(embedding))
	for j, v := range embedding {
		vec[j] = float32(v)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	key := embeddingID.String()
	i.graph.Add(hnsw.MakeNode(key, vec))
	i.owner[key] = personID
}

// Nearest returns the persons owning the embeddings closest to the query,
// nearest first, deduplicated.
func (i *Index) Nearest(embedding []float64) []uuid.UUID {
	vec := make([]float32, len(embedding))
	for j, v := range embedding {
		vec[j] = float32(v)
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(i.owner) == 0 {
		return nil
	}

	neighbors := i.graph.Search(vec, i.k)

	seen := make(map[uuid.UUID]struct{}, len(neighbors))
	persons := make([]uuid.UUID, 0, len(neighbors))
	for _, n := range neighbors {
		personID, ok := i.owner[n.Key]
		if !ok {
			continue
		}
		if _, dup := seen[personID]; dup {
			continue
		}
		seen[personID] = struct{}{}
		persons = append(persons, personID)
	}

	return persons
}
