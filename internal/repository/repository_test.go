package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olho-vivo/presenca/internal/domain"
)

// SequenceRepository Tests

func TestSequenceRepository_Next(t *testing.T) {
	tests := []struct {
		name      string
		counter   string
		mockSetup func(mock pgxmock.PgxPoolIface)
		want      int64
		wantErr   bool
	}{
		{
			name:    "first use creates counter at 1",
			counter: "frames:aula-01",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("INSERT INTO counters").
					WithArgs("frames:aula-01").
					WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(int64(1)))
			},
			want: 1,
		},
		{
			name:    "subsequent use increments",
			counter: "frames:aula-01",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("INSERT INTO counters").
					WithArgs("frames:aula-01").
					WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(int64(42)))
			},
			want: 42,
		},
		{
			name:    "database error",
			counter: "frames:aula-01",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("INSERT INTO counters").
					WithArgs("frames:aula-01").
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.mockSetup(mock)

			repo := NewSequenceRepository(mock)
			got, err := repo.Next(context.Background(), tt.counter)

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSequenceRepository_Current_NeverUsed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("frames:unknown").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(int64(0)))

	repo := NewSequenceRepository(mock)
	got, err := repo.Current(context.Background(), "frames:unknown")

	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// RunRepository Tests

func runRows(id uuid.UUID, videoTag, model string, started, finished time.Time) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{
		"id", "video_tag", "model", "started_at", "finished_at",
		"nominal_duration_seconds", "expected_identities",
		"total_frames", "faces_analyzed", "clusters", "unresolved_identities",
		"elapsed_seconds", "realtime_ratio", "coverage",
		"true_positives", "true_negatives", "false_positives", "false_negatives",
		"accuracy", "precision", "recall", "f1_score",
		"inter_cluster_distance", "intra_cluster_distance", "silhouette",
		"homogeneity", "completeness", "v_measure",
		"created_at", "updated_at",
	}).AddRow(
		id, videoTag, model, started, finished,
		nil, nil,
		int64(0), int64(0), int64(0), 0,
		0.0, nil, 0.0,
		int64(0), int64(0), int64(0), int64(0),
		0.0, 0.0, 0.0, 0.0,
		0.0, 0.0, nil,
		0.0, 0.0, 0.0,
		now, now,
	)
}

func TestRunRepository_GetOrCreate(t *testing.T) {
	runID := uuid.New()
	at := time.Now()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO runs").
		WithArgs(pgxmock.AnyArg(), "aula-01", "Facenet512", at).
		WillReturnRows(runRows(runID, "aula-01", "Facenet512", at, at))

	repo := NewRunRepository(mock)
	run, err := repo.GetOrCreate(context.Background(), "aula-01", "Facenet512", at)

	require.NoError(t, err)
	assert.Equal(t, runID, run.ID)
	assert.Equal(t, "aula-01", run.VideoTag)
	assert.Equal(t, "Facenet512", run.Model)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepository_Touch(t *testing.T) {
	runID := uuid.New()
	at := time.Now()

	tests := []struct {
		name      string
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "extends finish time",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("UPDATE runs").
					WithArgs(runID, at).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "unknown run",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("UPDATE runs").
					WithArgs(runID, at).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr: domain.ErrRunNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.mockSetup(mock)

			repo := NewRunRepository(mock)
			err = repo.Touch(context.Background(), runID, at)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRunRepository_GetByID_NotFound(t *testing.T) {
	runID := uuid.New()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT").
		WithArgs(runID).
		WillReturnError(pgx.ErrNoRows)

	repo := NewRunRepository(mock)
	_, err = repo.GetByID(context.Background(), runID)

	assert.ErrorIs(t, err, domain.ErrRunNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// FrameRepository Tests

func TestFrameRepository_Ensure_NewFrame(t *testing.T) {
	frameID := uuid.New()
	now := time.Now()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(frameID.String()).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT video_tag").
		WithArgs(frameID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO counters").
		WithArgs("frames:aula-01").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(int64(7)))
	mock.ExpectQuery("INSERT INTO frames").
		WithArgs(frameID, "aula-01", int64(7), 3, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectCommit()

	repo := NewFrameRepository(mock)
	frame := &domain.Frame{ID: frameID, VideoTag: "aula-01", DetectedFaces: 3}
	err = repo.Ensure(context.Background(), frame)

	require.NoError(t, err)
	assert.Equal(t, int64(7), frame.FrameNumber)
	assert.Equal(t, 0, frame.ResolvedFaces)
	assert.Nil(t, frame.RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFrameRepository_Ensure_Redelivery(t *testing.T) {
	frameID := uuid.New()
	runID := uuid.New()
	now := time.Now()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Frame already exists: no counter increment, no insert.
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(frameID.String()).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT video_tag").
		WithArgs(frameID).
		WillReturnRows(pgxmock.NewRows([]string{
			"video_tag", "frame_number", "detected_faces", "resolved_faces",
			"presence_ids", "run_id", "fps", "duration_seconds", "created_at",
		}).AddRow(
			"aula-01", int64(7), 3, 1,
			[]uuid.UUID{uuid.New()}, &runID, nil, nil, now,
		))
	mock.ExpectCommit()

	repo := NewFrameRepository(mock)
	frame := &domain.Frame{ID: frameID, VideoTag: "aula-01", DetectedFaces: 3}
	err = repo.Ensure(context.Background(), frame)

	require.NoError(t, err)
	assert.Equal(t, int64(7), frame.FrameNumber)
	assert.Equal(t, 1, frame.ResolvedFaces)
	require.NotNil(t, frame.RunID)
	assert.Equal(t, runID, *frame.RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFrameRepository_AttachPresence(t *testing.T) {
	frameID := uuid.New()
	presenceID := uuid.New()
	runID := uuid.New()

	tests := []struct {
		name      string
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "attaches and counts",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("UPDATE frames").
					WithArgs(frameID, presenceID, runID).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "unknown frame",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("UPDATE frames").
					WithArgs(frameID, presenceID, runID).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr: domain.ErrFrameNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.mockSetup(mock)

			repo := NewFrameRepository(mock)
			err = repo.AttachPresence(context.Background(), frameID, presenceID, runID)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// PresenceRepository Tests

func TestPresenceRepository_Exists(t *testing.T) {
	presenceID := uuid.New()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(presenceID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewPresenceRepository(mock)
	exists, err := repo.Exists(context.Background(), presenceID)

	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPresenceRepository_UpdateLabels(t *testing.T) {
	presenceID := uuid.New()
	gold := "maria"

	tests := []struct {
		name      string
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "updates labels",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("UPDATE presences").
					WithArgs(presenceID, pgxmock.AnyArg(), domain.ConfusionTP).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "unknown presence",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("UPDATE presences").
					WithArgs(presenceID, pgxmock.AnyArg(), domain.ConfusionTP).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr: domain.ErrPresenceNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.mockSetup(mock)

			repo := NewPresenceRepository(mock)
			err = repo.UpdateLabels(context.Background(), presenceID, &gold, domain.ConfusionTP)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// PersonRepository Tests

func TestPersonRepository_AddTag(t *testing.T) {
	personID := uuid.New()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE persons").
		WithArgs(personID, "aula-01").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewPersonRepository(mock)
	err = repo.AddTag(context.Background(), personID, "aula-01")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonRepository_GetByID_NotFound(t *testing.T) {
	personID := uuid.New()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, tags").
		WithArgs(personID).
		WillReturnError(pgx.ErrNoRows)

	repo := NewPersonRepository(mock)
	_, err = repo.GetByID(context.Background(), personID)

	assert.ErrorIs(t, err, domain.ErrPersonNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
