package domain

import (
	"time"

	"github.com/google/uuid"
)

// Person is one identity cluster. Embeddings and image refs are append-only;
// the core never merges or deletes persons.
type Person struct {
	ID        uuid.UUID `json:"id"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Embeddings []PersonEmbedding `json:"-"`
}

// PersonEmbedding is one stored face vector together with the reference image
// it was extracted from.
type PersonEmbedding struct {
	ID        uuid.UUID `json:"id"`
	PersonID  uuid.UUID `json:"-"`
	Embedding []float64 `json:"-"`
	Dimension int       `json:"dimension"`
	ImageRef  string    `json:"image_ref"`
	CreatedAt time.Time `json:"created_at"`
}

// Resolution is the outcome of matching one incoming face against the person
// collection. BestDistance is only set when an existing person matched.
type Resolution struct {
	PersonID     uuid.UUID
	Created      bool
	BestDistance *float64
}
