package deepface

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/olho-vivo/presenca/internal/provider"
)

// Provider implements provider.Comparator using the DeepFace API. DeepFace
// has no comparison endpoint, so distances are computed locally.
type Provider struct {
	client *Client
}

// NewProvider creates a new DeepFace provider
func NewProvider(config Config) *Provider {
	return &Provider{
		client: NewClient(config),
	}
}

// Embed extracts the embedding of the face in the image. The crops arriving
// here were already face-detected upstream, so a response without a face is
// an error, not a miss.
func (p *Provider) Embed(ctx context.Context, image []byte) ([]float64, error) {
	imageBase64 := base64.StdEncoding.EncodeToString(image)

	resp, err := p.client.Represent(ctx, imageBase64)
	if err != nil {
		return nil, fmt.Errorf("embed face: %w", err)
	}

	if len(resp.Results) == 0 {
		return nil, ErrNoFaceInResponse
	}

	embedding := resp.Results[0].Embedding
	if len(embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	return embedding, nil
}

// Distance returns the cosine distance between two embeddings.
func (p *Provider) Distance(a, b []float64) float64 {
	return CosineDistance(a, b)
}

// Ensure Provider implements provider.Comparator
var _ provider.Comparator = (*Provider)(nil)
