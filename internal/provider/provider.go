package provider

import "context"

// Comparator turns a face crop into an embedding vector and measures the
// distance between two vectors. Lower distance means more similar.
type Comparator interface {
	// Embed extracts the embedding of the (single) face in the image.
	Embed(ctx context.Context, image []byte) ([]float64, error)

	// Distance returns the cosine distance between two embeddings, in [0, 2].
	Distance(a, b []float64) float64
}
