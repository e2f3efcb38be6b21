package repository

import (
	"context"
	"fmt"
)

// SequenceRepository hands out monotonic counters keyed by name. Frame
// numbering uses one counter per video tag.
type SequenceRepository struct {
	db PgxPool
}

func NewSequenceRepository(db PgxPool) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Next atomically increments the named counter and returns the new value. The
// counter is created at 1 on first use. Single statement, so concurrent
// callers never observe the same value.
func (r *SequenceRepository) Next(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO counters (name, value, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (name) DO UPDATE
		SET value = counters.value + 1, updated_at = NOW()
		RETURNING value`

	var value int64
	if err := r.db.QueryRow(ctx, query, name).Scan(&value); err != nil {
		return 0, fmt.Errorf("next counter value: %w", err)
	}

	return value, nil
}

// Current reads the counter without incrementing it. Returns 0 for a counter
// that was never used.
func (r *SequenceRepository) Current(ctx context.Context, name string) (int64, error) {
	query := `SELECT COALESCE(
		(SELECT value FROM counters WHERE name = $1), 0)`

	var value int64
	if err := r.db.QueryRow(ctx, query, name).Scan(&value); err != nil {
		return 0, fmt.Errorf("current counter value: %w", err)
	}

	return value, nil
}
