package mock

import (
	"context"
	"crypto/sha256"
	"math"

	"github.com/olho-vivo/presenca/internal/domain"
	"github.com/olho-vivo/presenca/internal/provider"
)

const embeddingDimension = 512

// Provider implementa provider.Comparator para testes e desenvolvimento
type Provider struct{}

// New cria uma nova instância do MockProvider
func New() *Provider {
	return &Provider{}
}

// Embed gera embedding determinístico baseado no hash da imagem: a mesma
// imagem produz sempre o mesmo vetor, imagens diferentes vetores diferentes.
func (p *Provider) Embed(ctx context.Context, image []byte) ([]float64, error) {
	if len(image) == 0 {
		return nil, domain.ErrNoFaceDetected
	}

	return generateEmbedding(image), nil
}

// Distance calcula distância coseno entre embeddings
func (p *Provider) Distance(a, b []float64) float64 {
	return 1.0 - cosineSimilarity(a, b)
}

// generateEmbedding gera embedding determinístico baseado no hash da imagem
func generateEmbedding(image []byte) []float64 {
	hash := sha256.Sum256(image)
	embedding := make([]float64, embeddingDimension)
	hashLen := len(hash)

	for i := 0; i < embeddingDimension; i++ {
		idx := i % hashLen
		embedding[i] = (float64(hash[idx])/255.0)*2 - 1
	}

	norm := 0.0
	for _, v := range embedding {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	for i := range embedding {
		embedding[i] /= norm
	}

	return embedding
}

// cosineSimilarity calcula similaridade coseno entre dois vetores
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ provider.Comparator = (*Provider)(nil)
