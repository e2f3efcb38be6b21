package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/olho-vivo/presenca/internal/domain"
)

// RunRepository persists processing runs, one per (video tag, model) pair.
type RunRepository struct {
	db PgxPool
}

func NewRunRepository(db PgxPool) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `
	id, video_tag, model, started_at, finished_at,
	nominal_duration_seconds, expected_identities,
	total_frames, faces_analyzed, clusters, unresolved_identities,
	elapsed_seconds, realtime_ratio, coverage,
	true_positives, true_negatives, false_positives, false_negatives,
	accuracy, precision, recall, f1_score,
	inter_cluster_distance, intra_cluster_distance, silhouette,
	homogeneity, completeness, v_measure,
	created_at, updated_at`

// GetOrCreate returns the run for the pair, creating it on first sight. The
// window is widened on every call: started_at only moves back, finished_at
// only moves forward. A single upsert, so concurrent first messages converge
// on one row.
func (r *RunRepository) GetOrCreate(ctx context.Context, videoTag, model string, at time.Time) (*domain.Run, error) {
	query := `
		INSERT INTO runs (id, video_tag, model, started_at, finished_at,
		                  created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4, NOW(), NOW())
		ON CONFLICT (video_tag, model) DO UPDATE
		SET started_at = LEAST(runs.started_at, EXCLUDED.started_at),
		    finished_at = GREATEST(runs.finished_at, EXCLUDED.finished_at),
		    updated_at = NOW()
		RETURNING ` + runColumns

	run, err := scanRun(r.db.QueryRow(ctx, query, uuid.New(), videoTag, model, at))
	if err != nil {
		return nil, fmt.Errorf("get or create run: %w", err)
	}

	return run, nil
}

// CreateManual pre-creates a run with known ground truth before any frame
// arrives. On a key clash the existing run is returned untouched except for
// the expectation fields.
func (r *RunRepository) CreateManual(ctx context.Context, videoTag, model string, nominalDuration *float64, expectedIdentities *int) (*domain.Run, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO runs (id, video_tag, model, started_at, finished_at,
		                  nominal_duration_seconds, expected_identities,
		                  created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (video_tag, model) DO UPDATE
		SET nominal_duration_seconds = EXCLUDED.nominal_duration_seconds,
		    expected_identities = EXCLUDED.expected_identities,
		    updated_at = NOW()
		RETURNING ` + runColumns

	run, err := scanRun(r.db.QueryRow(ctx, query, uuid.New(), videoTag, model, now, nominalDuration, expectedIdentities))
	if err != nil {
		return nil, fmt.Errorf("create manual run: %w", err)
	}

	return run, nil
}

// Touch extends the run's finish time. finished_at never moves backwards, so
// late redeliveries cannot shrink the window.
func (r *RunRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE runs
		SET finished_at = GREATEST(finished_at, $2), updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("touch run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRunNotFound
	}

	return nil
}

// SetExpectations records the externally known ground truth inputs of a run.
func (r *RunRepository) SetExpectations(ctx context.Context, id uuid.UUID, nominalDuration *float64, expectedIdentities *int) error {
	query := `
		UPDATE runs
		SET nominal_duration_seconds = $2, expected_identities = $3,
		    updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, nominalDuration, expectedIdentities)
	if err != nil {
		return fmt.Errorf("set run expectations: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRunNotFound
	}

	return nil
}

// UpdateMetrics replaces the run's entire derived metric set.
func (r *RunRepository) UpdateMetrics(ctx context.Context, id uuid.UUID, m domain.RunMetrics) error {
	query := `
		UPDATE runs
		SET total_frames = $2,
		    faces_analyzed = $3,
		    clusters = $4,
		    unresolved_identities = $5,
		    elapsed_seconds = $6,
		    realtime_ratio = $7,
		    coverage = $8,
		    true_positives = $9,
		    true_negatives = $10,
		    false_positives = $11,
		    false_negatives = $12,
		    accuracy = $13,
		    precision = $14,
		    recall = $15,
		    f1_score = $16,
		    inter_cluster_distance = $17,
		    intra_cluster_distance = $18,
		    silhouette = $19,
		    homogeneity = $20,
		    completeness = $21,
		    v_measure = $22,
		    updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id,
		m.TotalFrames, m.FacesAnalyzed, m.Clusters, m.UnresolvedIdentities,
		m.ElapsedSeconds, m.RealtimeRatio, m.Coverage,
		m.TruePositives, m.TrueNegatives, m.FalsePositives, m.FalseNegatives,
		m.Accuracy, m.Precision, m.Recall, m.F1Score,
		m.InterClusterDistance, m.IntraClusterDistance, m.Silhouette,
		m.Homogeneity, m.Completeness, m.VMeasure,
	)
	if err != nil {
		return fmt.Errorf("update run metrics: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRunNotFound
	}

	return nil
}

// GetByID fetches a run.
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	return run, nil
}

// List returns all runs, newest first.
func (r *RunRepository) List(ctx context.Context) ([]domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	err := row.Scan(
		&run.ID, &run.VideoTag, &run.Model, &run.StartedAt, &run.FinishedAt,
		&run.NominalDurationSeconds, &run.ExpectedIdentities,
		&run.Metrics.TotalFrames, &run.Metrics.FacesAnalyzed,
		&run.Metrics.Clusters, &run.Metrics.UnresolvedIdentities,
		&run.Metrics.ElapsedSeconds, &run.Metrics.RealtimeRatio,
		&run.Metrics.Coverage,
		&run.Metrics.TruePositives, &run.Metrics.TrueNegatives,
		&run.Metrics.FalsePositives, &run.Metrics.FalseNegatives,
		&run.Metrics.Accuracy, &run.Metrics.Precision,
		&run.Metrics.Recall, &run.Metrics.F1Score,
		&run.Metrics.InterClusterDistance, &run.Metrics.IntraClusterDistance,
		&run.Metrics.Silhouette,
		&run.Metrics.Homogeneity, &run.Metrics.Completeness,
		&run.Metrics.VMeasure,
		&run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
