//go:build integration

package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/olho-vivo/presenca/internal/domain"
)

func setupIntegrationTest(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "presenca_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("postgres://test:test@%s:%s/presenca_test?sslmode=disable", host, port.Port())

	db, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	_, err = db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS counters (
			name TEXT PRIMARY KEY,
			value BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS frames (
			id UUID PRIMARY KEY,
			video_tag TEXT NOT NULL,
			frame_number BIGINT NOT NULL,
			detected_faces INT NOT NULL DEFAULT 0,
			resolved_faces INT NOT NULL DEFAULT 0,
			presence_ids UUID[] NOT NULL DEFAULT '{}',
			run_id UUID,
			fps DOUBLE PRECISION,
			duration_seconds DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func TestSequenceConcurrency_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewSequenceRepository(db)

	const workers = 20
	const perWorker = 10

	values := make(chan int64, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				v, err := repo.Next(ctx, "frames:corrida")
				assert.NoError(t, err)
				values <- v
			}
		}()
	}
	wg.Wait()
	close(values)

	var got []int64
	for v := range values {
		got = append(got, v)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })

	// Strictly increasing from 1 with no duplicates and no gaps.
	require.Len(t, got, workers*perWorker)
	for i, v := range got {
		assert.Equal(t, int64(i+1), v)
	}
}

func TestFrameEnsureRedelivery_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewFrameRepository(db)

	frameID := uuid.New()

	// Same frame delivered concurrently: one row, one number, no counter gap.
	const deliveries = 8
	var wg sync.WaitGroup
	numbers := make(chan int64, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			frame := &domain.Frame{ID: frameID, VideoTag: "corrida", DetectedFaces: 2}
			err := repo.Ensure(ctx, frame)
			assert.NoError(t, err)
			numbers <- frame.FrameNumber
		}()
	}
	wg.Wait()
	close(numbers)

	for n := range numbers {
		assert.Equal(t, int64(1), n)
	}

	// The next distinct frame continues the sequence without a gap.
	next := &domain.Frame{ID: uuid.New(), VideoTag: "corrida", DetectedFaces: 1}
	require.NoError(t, repo.Ensure(ctx, next))
	assert.Equal(t, int64(2), next.FrameNumber)
}
