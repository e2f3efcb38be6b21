package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/olho-vivo/presenca/internal/domain"
	"github.com/olho-vivo/presenca/internal/provider"
)

// PersonStore is the persistence surface the engine needs.
type PersonStore interface {
	ListCandidates(ctx context.Context) ([]domain.Person, error)
	Create(ctx context.Context, person *domain.Person, embedding *domain.PersonEmbedding) error
	AddEmbedding(ctx context.Context, embedding *domain.PersonEmbedding) error
	AddTag(ctx context.Context, personID uuid.UUID, tag string) error
}

// Config holds the engine's matching thresholds.
type Config struct {
	// DistanceThreshold is the maximum distance for one embedding comparison
	// to count as a vote.
	DistanceThreshold float64
	// RatioThreshold is the minimum fraction of a person's embeddings that
	// must vote yes for the person to match.
	RatioThreshold float64
}

// Engine assigns an incoming face embedding to an existing person or creates
// a new one. Matching is a vote over each candidate's stored embeddings:
// a comparison under DistanceThreshold is a vote, and the candidate matches
// when votes/total reaches RatioThreshold. Candidates are tried in creation
// order and the first match wins.
type Engine struct {
	store      PersonStore
	comparator provider.Comparator
	index      *Index
	logger     *slog.Logger
	cfg        Config
}

func NewEngine(store PersonStore, comparator provider.Comparator, index *Index, logger *slog.Logger, cfg Config) *Engine {
	if cfg.DistanceThreshold <= 0 {
		cfg.DistanceThreshold = 0.30
	}
	if cfg.RatioThreshold <= 0 {
		cfg.RatioThreshold = 0.2
	}

	return &Engine{
		store:      store,
		comparator: comparator,
		index:      index,
		logger:     logger,
		cfg:        cfg,
	}
}

// Warm loads every stored embedding into the ANN index. No-op without one.
func (e *Engine) Warm(ctx context.Context) error {
	if e.index == nil {
		return nil
	}

	persons, err := e.store.ListCandidates(ctx)
	if err != nil {
		return fmt.Errorf("warm index: %w", err)
	}

	count := 0
	for _, p := range persons {
		for _, emb := range p.Embeddings {
			e.index.Add(emb.ID, p.ID, emb.Embedding)
			count++
		}
	}

	e.logger.Info("resolver index warmed", "persons", len(persons), "embeddings", count)
	return nil
}

// Resolve matches the embedding against all known persons and appends it to
// the winner, or creates a new person when nobody matches. videoTag is added
// to the person's tag set either way.
func (e *Engine) Resolve(ctx context.Context, embedding []float64, imageRef, videoTag string) (*domain.Resolution, error) {
	if len(embedding) == 0 {
		return nil, domain.ErrEmptyEmbedding
	}

	candidates, err := e.store.ListCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	candidates = e.reorder(candidates, embedding)

	for _, person := range candidates {
		matched, best := e.vote(person, embedding)
		if !matched {
			continue
		}

		emb := &domain.PersonEmbedding{
			ID:        uuid.New(),
			PersonID:  person.ID,
			Embedding: embedding,
			Dimension: len(embedding),
			ImageRef:  imageRef,
		}
		if err := e.store.AddEmbedding(ctx, emb); err != nil {
			return nil, fmt.Errorf("append embedding: %w", err)
		}
		if err := e.store.AddTag(ctx, person.ID, videoTag); err != nil {
			return nil, fmt.Errorf("tag person: %w", err)
		}
		if e.index != nil {
			e.index.Add(emb.ID, person.ID, embedding)
		}

		e.logger.Debug("face matched",
			"person_id", person.ID,
			"best_distance", best,
			"samples", len(person.Embeddings),
		)

		return &domain.Resolution{PersonID: person.ID, BestDistance: &best}, nil
	}

	person := &domain.Person{ID: uuid.New()}
	person.Tags = []string{person.ID.String(), videoTag}

	emb := &domain.PersonEmbedding{
		ID:        uuid.New(),
		PersonID:  person.ID,
		Embedding: embedding,
		Dimension: len(embedding),
		ImageRef:  imageRef,
	}
	if err := e.store.Create(ctx, person, emb); err != nil {
		return nil, fmt.Errorf("create person: %w", err)
	}
	if e.index != nil {
		e.index.Add(emb.ID, person.ID, embedding)
	}

	e.logger.Info("new person created",
		"person_id", person.ID,
		"candidates_checked", len(candidates),
	)

	return &domain.Resolution{PersonID: person.ID, Created: true}, nil
}

// vote runs the embedding against one candidate. It stops comparing as soon
// as enough votes are in, since the ratio can only grow.
func (e *Engine) vote(person domain.Person, embedding []float64) (bool, float64) {
	total := len(person.Embeddings)
	if total == 0 {
		return false, 0
	}

	// Smallest vote count v with v/total >= ratio.
	needed := int(e.cfg.RatioThreshold * float64(total))
	if float64(needed) < e.cfg.RatioThreshold*float64(total) {
		needed++
	}
	if needed < 1 {
		needed = 1
	}

	votes := 0
	best := -1.0
	for _, stored := range person.Embeddings {
		if len(stored.Embedding) != len(embedding) {
			continue
		}
		d := e.comparator.Distance(embedding, stored.Embedding)
		if best < 0 || d < best {
			best = d
		}
		if d < e.cfg.DistanceThreshold {
			votes++
			if votes >= needed {
				return true, best
			}
		}
	}

	return false, best
}

// reorder puts the ANN index's nearest persons first, keeping creation order
// within each group. Without an index it returns the list untouched.
func (e *Engine) reorder(candidates []domain.Person, embedding []float64) []domain.Person {
	if e.index == nil || len(candidates) < 2 {
		return candidates
	}

	nearest := e.index.Nearest(embedding)
	if len(nearest) == 0 {
		return candidates
	}

	byID := make(map[uuid.UUID]domain.Person, len(candidates))
	for _, p := range candidates {
		byID[p.ID] = p
	}

	out := make([]domain.Person, 0, len(candidates))
	for _, id := range nearest {
		if p, ok := byID[id]; ok {
			out = append(out, p)
			delete(byID, id)
		}
	}
	for _, p := range candidates {
		if _, ok := byID[p.ID]; ok {
			out = append(out, p)
		}
	}

	return out
}
