package deepface

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{
			name: "identical vectors",
			a:    []float64{1, 0, 0},
			b:    []float64{1, 0, 0},
			want: 1.0,
		},
		{
			name: "orthogonal vectors",
			a:    []float64{1, 0},
			b:    []float64{0, 1},
			want: 0.0,
		},
		{
			name: "opposite vectors",
			a:    []float64{1, 0},
			b:    []float64{-1, 0},
			want: -1.0,
		},
		{
			name: "length mismatch",
			a:    []float64{1, 0},
			b:    []float64{1, 0, 0},
			want: 0.0,
		},
		{
			name: "empty vectors",
			a:    nil,
			b:    nil,
			want: 0.0,
		},
		{
			name: "zero vector",
			a:    []float64{0, 0},
			b:    []float64{1, 0},
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0.0, CosineDistance([]float64{1, 0}, []float64{1, 0}), 1e-9)
	assert.InDelta(t, 1.0, CosineDistance([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, 2.0, CosineDistance([]float64{1, 0}, []float64{-1, 0}), 1e-9)
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, time.Second, calculateBackoff(0))
	assert.Equal(t, time.Second, calculateBackoff(1))
	assert.Equal(t, 2*time.Second, calculateBackoff(2))
	assert.Equal(t, 4*time.Second, calculateBackoff(3))
	assert.Equal(t, 8*time.Second, calculateBackoff(4))
}

func TestProvider_Embed(t *testing.T) {
	t.Run("returns first embedding", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/represent", r.URL.Path)

			var req representRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Facenet512", req.ModelName)

			_ = json.NewEncoder(w).Encode(representResponse{
				Results: []representResult{
					{Embedding: []float64{0.1, 0.2, 0.3}},
				},
			})
		}))
		defer server.Close()

		cfg := DefaultConfig()
		cfg.BaseURL = server.URL
		cfg.RetryCount = 0
		provider := NewProvider(cfg)

		embedding, err := provider.Embed(context.Background(), []byte("fake-image"))

		require.NoError(t, err)
		assert.Equal(t, []float64{0.1, 0.2, 0.3}, embedding)
	})

	t.Run("no face in response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(representResponse{})
		}))
		defer server.Close()

		cfg := DefaultConfig()
		cfg.BaseURL = server.URL
		cfg.RetryCount = 0
		provider := NewProvider(cfg)

		_, err := provider.Embed(context.Background(), []byte("fake-image"))

		assert.ErrorIs(t, err, ErrNoFaceInResponse)
	})

	t.Run("client error is not retried", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls++
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"no face detected"}`))
		}))
		defer server.Close()

		cfg := DefaultConfig()
		cfg.BaseURL = server.URL
		cfg.RetryCount = 3
		provider := NewProvider(cfg)

		_, err := provider.Embed(context.Background(), []byte("fake-image"))

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestProvider_Distance(t *testing.T) {
	provider := NewProvider(DefaultConfig())

	assert.InDelta(t, 0.0, provider.Distance([]float64{1, 0}, []float64{1, 0}), 1e-9)
	assert.InDelta(t, 1.0, provider.Distance([]float64{1, 0}, []float64{0, 1}), 1e-9)
}
