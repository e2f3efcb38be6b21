package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/olho-vivo/presenca/internal/domain"
)

// PersonRepository persists identity clusters and their face embeddings.
type PersonRepository struct {
	db PgxPool
}

func NewPersonRepository(db PgxPool) *PersonRepository {
	return &PersonRepository{db: db}
}

func toVector(values []float64) pgvector.Vector {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return pgvector.NewVector(out)
}

func fromVector(v pgvector.Vector) []float64 {
	s := v.Slice()
	out := make([]float64, len(s))
	for i, f := range s {
		out[i] = float64(f)
	}
	return out
}

// Create inserts a person together with its first embedding, atomically. The
// caller assigns the id; the person's tag set starts as {id}.
func (r *PersonRepository) Create(ctx context.Context, person *domain.Person, embedding *domain.PersonEmbedding) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create person: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO persons (id, tags, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING created_at, updated_at`

	err = tx.QueryRow(ctx, query, person.ID, person.Tags).
		Scan(&person.CreatedAt, &person.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create person: %w", err)
	}

	embQuery := `
		INSERT INTO person_embeddings (id, person_id, embedding, dimension, image_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at`

	err = tx.QueryRow(ctx, embQuery,
		embedding.ID,
		person.ID,
		toVector(embedding.Embedding),
		embedding.Dimension,
		embedding.ImageRef,
	).Scan(&embedding.CreatedAt)
	if err != nil {
		return fmt.Errorf("create person embedding: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create person: %w", err)
	}

	return nil
}

// AddEmbedding appends a face sample to an existing person.
func (r *PersonRepository) AddEmbedding(ctx context.Context, embedding *domain.PersonEmbedding) error {
	query := `
		INSERT INTO person_embeddings (id, person_id, embedding, dimension, image_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		embedding.ID,
		embedding.PersonID,
		toVector(embedding.Embedding),
		embedding.Dimension,
		embedding.ImageRef,
	).Scan(&embedding.CreatedAt)
	if err != nil {
		return fmt.Errorf("add embedding: %w", err)
	}

	return nil
}

// AddTag records that the person was seen under the given tag. No-op when the
// tag is already present.
func (r *PersonRepository) AddTag(ctx context.Context, personID uuid.UUID, tag string) error {
	query := `
		UPDATE persons
		SET tags = array_append(tags, $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY(tags))`

	if _, err := r.db.Exec(ctx, query, personID, tag); err != nil {
		return fmt.Errorf("add person tag: %w", err)
	}

	return nil
}

// GetByID fetches a person and all of its embeddings.
func (r *PersonRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	query := `
		SELECT id, tags, created_at, updated_at
		FROM persons
		WHERE id = $1`

	var person domain.Person
	err := r.db.QueryRow(ctx, query, id).
		Scan(&person.ID, &person.Tags, &person.CreatedAt, &person.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPersonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}

	embeddings, err := r.listEmbeddings(ctx, id)
	if err != nil {
		return nil, err
	}
	person.Embeddings = embeddings

	return &person, nil
}

// ListCandidates returns every person that has at least one embedding,
// embeddings included, ordered oldest first. This is the resolver's stable
// match order.
func (r *PersonRepository) ListCandidates(ctx context.Context) ([]domain.Person, error) {
	query := `
		SELECT id, tags, created_at, updated_at
		FROM persons
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var persons []domain.Person
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var p domain.Person
		if err := rows.Scan(&p.ID, &p.Tags, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		index[p.ID] = len(persons)
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}

	embQuery := `
		SELECT id, person_id, embedding, dimension, image_ref, created_at
		FROM person_embeddings
		ORDER BY created_at, id`

	embRows, err := r.db.Query(ctx, embQuery)
	if err != nil {
		return nil, fmt.Errorf("list candidate embeddings: %w", err)
	}
	defer embRows.Close()

	for embRows.Next() {
		var emb domain.PersonEmbedding
		var vec pgvector.Vector
		err := embRows.Scan(&emb.ID, &emb.PersonID, &vec, &emb.Dimension, &emb.ImageRef, &emb.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan candidate embedding: %w", err)
		}
		emb.Embedding = fromVector(vec)
		if i, ok := index[emb.PersonID]; ok {
			persons[i].Embeddings = append(persons[i].Embeddings, emb)
		}
	}
	if err := embRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidate embeddings: %w", err)
	}

	// Persons without embeddings cannot be matched against.
	out := persons[:0]
	for _, p := range persons {
		if len(p.Embeddings) > 0 {
			out = append(out, p)
		}
	}

	return out, nil
}

// ListByTag returns the persons whose tag set contains the given tag. Used to
// enumerate the clusters of a run.
func (r *PersonRepository) ListByTag(ctx context.Context, tag string) ([]domain.Person, error) {
	query := `
		SELECT id, tags, created_at, updated_at
		FROM persons
		WHERE $1 = ANY(tags)
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, tag)
	if err != nil {
		return nil, fmt.Errorf("list persons by tag: %w", err)
	}
	defer rows.Close()

	var persons []domain.Person
	for rows.Next() {
		var p domain.Person
		if err := rows.Scan(&p.ID, &p.Tags, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}

	for i := range persons {
		embeddings, err := r.listEmbeddings(ctx, persons[i].ID)
		if err != nil {
			return nil, err
		}
		persons[i].Embeddings = embeddings
	}

	return persons, nil
}

func (r *PersonRepository) listEmbeddings(ctx context.Context, personID uuid.UUID) ([]domain.PersonEmbedding, error) {
	query := `
		SELECT id, person_id, embedding, dimension, image_ref, created_at
		FROM person_embeddings
		WHERE person_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, personID)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []domain.PersonEmbedding
	for rows.Next() {
		var emb domain.PersonEmbedding
		var vec pgvector.Vector
		err := rows.Scan(&emb.ID, &emb.PersonID, &vec, &emb.Dimension, &emb.ImageRef, &emb.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		emb.Embedding = fromVector(vec)
		embeddings = append(embeddings, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}

	return embeddings, nil
}
