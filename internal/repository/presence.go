package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/olho-vivo/presenca/internal/domain"
)

// PresenceRepository persists one row per resolved face.
type PresenceRepository struct {
	db PgxPool
}

func NewPresenceRepository(db PgxPool) *PresenceRepository {
	return &PresenceRepository{db: db}
}

const presenceColumns = `
	id, person_id, run_id, frame_id, video_tag,
	captured_at, started_at, finished_at,
	capture_seconds, detection_seconds, recognition_seconds,
	queue_wait_seconds, total_seconds,
	similarity, image_ref, gold_standard, confusion_category,
	created_at, updated_at`

// Create inserts a presence. The caller assigns the id so the same message
// redelivered twice can be detected upstream.
func (r *PresenceRepository) Create(ctx context.Context, p *domain.Presence) error {
	query := `
		INSERT INTO presences (
			id, person_id, run_id, frame_id, video_tag,
			captured_at, started_at, finished_at,
			capture_seconds, detection_seconds, recognition_seconds,
			queue_wait_seconds, total_seconds,
			similarity, image_ref, gold_standard, confusion_category,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		          $14, $15, $16, $17, NOW(), NOW())
		RETURNING created_at, updated_at`

	category := p.ConfusionCategory
	if category == "" {
		category = domain.ConfusionUnlabeled
	}

	err := r.db.QueryRow(ctx, query,
		p.ID, p.PersonID, p.RunID, p.FrameID, p.VideoTag,
		p.CapturedAt, p.StartedAt, p.FinishedAt,
		p.CaptureSeconds, p.DetectionSeconds, p.RecognitionSeconds,
		p.QueueWaitSeconds, p.TotalSeconds,
		p.Similarity, p.ImageRef, p.GoldStandard, category,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		// Two consumers raced past the redelivery check; the row is there.
		return nil
	}
	if err != nil {
		return fmt.Errorf("create presence: %w", err)
	}
	p.ConfusionCategory = category

	return nil
}

// Exists reports whether the presence id is already stored. Used for
// redelivery detection before any side effects run.
func (r *PresenceRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM presences WHERE id = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check presence: %w", err)
	}

	return exists, nil
}

// GetByID fetches a single presence.
func (r *PresenceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Presence, error) {
	query := `SELECT ` + presenceColumns + ` FROM presences WHERE id = $1`

	p, err := scanPresence(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPresenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get presence: %w", err)
	}

	return p, nil
}

// ListByRun returns every presence of a run, oldest first.
func (r *PresenceRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.Presence, error) {
	query := `SELECT ` + presenceColumns + `
		FROM presences
		WHERE run_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list presences: %w", err)
	}
	defer rows.Close()

	var presences []domain.Presence
	for rows.Next() {
		p, err := scanPresence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan presence: %w", err)
		}
		presences = append(presences, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate presences: %w", err)
	}

	return presences, nil
}

// UpdateLabels sets the curation fields of a presence.
func (r *PresenceRepository) UpdateLabels(ctx context.Context, id uuid.UUID, goldStandard *string, category domain.ConfusionCategory) error {
	query := `
		UPDATE presences
		SET gold_standard = $2, confusion_category = $3, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, goldStandard, category)
	if err != nil {
		return fmt.Errorf("update presence labels: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPresenceNotFound
	}

	return nil
}

func scanPresence(row pgx.Row) (*domain.Presence, error) {
	var p domain.Presence
	err := row.Scan(
		&p.ID, &p.PersonID, &p.RunID, &p.FrameID, &p.VideoTag,
		&p.CapturedAt, &p.StartedAt, &p.FinishedAt,
		&p.CaptureSeconds, &p.DetectionSeconds, &p.RecognitionSeconds,
		&p.QueueWaitSeconds, &p.TotalSeconds,
		&p.Similarity, &p.ImageRef, &p.GoldStandard, &p.ConfusionCategory,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
