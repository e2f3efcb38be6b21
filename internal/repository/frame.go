package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/olho-vivo/presenca/internal/domain"
)

// FrameRepository persists frame bookkeeping rows. Frames are created lazily
// by whichever face message arrives first and numbered from a per-video
// counter.
type FrameRepository struct {
	db PgxPool
}

func NewFrameRepository(db PgxPool) *FrameRepository {
	return &FrameRepository{db: db}
}

// Ensure creates the frame row if it does not exist yet and fills in the
// stored state either way. Concurrent callers for the same frame id are
// serialized with an advisory lock so redeliveries never assign a second
// frame number or burn a counter value.
func (r *FrameRepository) Ensure(ctx context.Context, frame *domain.Frame) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin ensure frame: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, frame.ID.String())
	if err != nil {
		return fmt.Errorf("lock frame: %w", err)
	}

	existing := `
		SELECT video_tag, frame_number, detected_faces, resolved_faces,
		       presence_ids, run_id, fps, duration_seconds, created_at
		FROM frames
		WHERE id = $1`

	err = tx.QueryRow(ctx, existing, frame.ID).Scan(
		&frame.VideoTag,
		&frame.FrameNumber,
		&frame.DetectedFaces,
		&frame.ResolvedFaces,
		&frame.PresenceIDs,
		&frame.RunID,
		&frame.FPS,
		&frame.DurationSeconds,
		&frame.CreatedAt,
	)
	if err == nil {
		return tx.Commit(ctx)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("get frame: %w", err)
	}

	counter := `
		INSERT INTO counters (name, value, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (name) DO UPDATE
		SET value = counters.value + 1, updated_at = NOW()
		RETURNING value`

	err = tx.QueryRow(ctx, counter, "frames:"+frame.VideoTag).Scan(&frame.FrameNumber)
	if err != nil {
		return fmt.Errorf("assign frame number: %w", err)
	}

	insert := `
		INSERT INTO frames (id, video_tag, frame_number, detected_faces,
		                    resolved_faces, presence_ids, run_id, fps,
		                    duration_seconds, created_at)
		VALUES ($1, $2, $3, $4, 0, '{}', NULL, $5, $6, NOW())
		RETURNING created_at`

	err = tx.QueryRow(ctx, insert,
		frame.ID,
		frame.VideoTag,
		frame.FrameNumber,
		frame.DetectedFaces,
		frame.FPS,
		frame.DurationSeconds,
	).Scan(&frame.CreatedAt)
	if err != nil {
		return fmt.Errorf("create frame: %w", err)
	}

	frame.ResolvedFaces = 0
	frame.PresenceIDs = nil
	frame.RunID = nil

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ensure frame: %w", err)
	}

	return nil
}

// AttachPresence counts one resolved face on the frame, links the presence
// and sets the frame's run on first attachment.
func (r *FrameRepository) AttachPresence(ctx context.Context, frameID, presenceID, runID uuid.UUID) error {
	query := `
		UPDATE frames
		SET resolved_faces = resolved_faces + 1,
		    presence_ids = array_append(presence_ids, $2),
		    run_id = COALESCE(run_id, $3)
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, frameID, presenceID, runID)
	if err != nil {
		return fmt.Errorf("attach presence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrFrameNotFound
	}

	return nil
}

// RecordEmpty stores a zero-face frame. It gets a frame number but no run
// linkage. Idempotent on redelivery.
func (r *FrameRepository) RecordEmpty(ctx context.Context, frame *domain.Frame) error {
	frame.DetectedFaces = 0
	return r.Ensure(ctx, frame)
}

// GetByID fetches a single frame.
func (r *FrameRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Frame, error) {
	query := `
		SELECT id, video_tag, frame_number, detected_faces, resolved_faces,
		       presence_ids, run_id, fps, duration_seconds, created_at
		FROM frames
		WHERE id = $1`

	var frame domain.Frame
	err := r.db.QueryRow(ctx, query, id).Scan(
		&frame.ID,
		&frame.VideoTag,
		&frame.FrameNumber,
		&frame.DetectedFaces,
		&frame.ResolvedFaces,
		&frame.PresenceIDs,
		&frame.RunID,
		&frame.FPS,
		&frame.DurationSeconds,
		&frame.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrFrameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get frame: %w", err)
	}

	return &frame, nil
}

// CountForRun returns how many frames belong to the run, counting both the
// attached frames and the zero-face frames that share the run's video tag
// but were never linked.
func (r *FrameRepository) CountForRun(ctx context.Context, runID uuid.UUID, videoTag string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM frames
		WHERE run_id = $1 OR (run_id IS NULL AND video_tag = $2)`

	var count int64
	if err := r.db.QueryRow(ctx, query, runID, videoTag).Scan(&count); err != nil {
		return 0, fmt.Errorf("count frames: %w", err)
	}

	return count, nil
}
