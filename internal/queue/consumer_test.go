package queue

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olho-vivo/presenca/internal/domain"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, nil))
}

func jobRows(id uuid.UUID, topic string, payload []byte, attempts, maxAttempts int) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "topic", "payload", "attempts", "max_attempts"}).
		AddRow(id, topic, payload, attempts, maxAttempts)
}

func TestPublisher_Publish(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO queue_jobs").
		WithArgs(TopicDetections, []byte(`{"hello":"world"}`), 5).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	pub := NewPublisher(mock, 5)
	err = pub.Publish(context.Background(), TopicDetections, map[string]string{"hello": "world"})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumer_ProcessBatch_Success(t *testing.T) {
	jobID := uuid.New()
	payload := []byte(`{"n":1}`)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM queue_jobs").
		WithArgs(TopicDetections, 10).
		WillReturnRows(jobRows(jobID, TopicDetections, payload, 0, 5))
	mock.ExpectExec("SET status = 'delivered'").
		WithArgs(jobID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	var handled [][]byte
	consumer := NewConsumer(mock, testLogger(), ConsumerConfig{Topic: TopicDetections}, func(_ context.Context, p []byte) error {
		handled = append(handled, p)
		return nil
	})

	processed, err := consumer.processBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	require.Len(t, handled, 1)
	assert.Equal(t, payload, handled[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumer_ProcessBatch_EmptyQueue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM queue_jobs").
		WithArgs(TopicDetections, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "topic", "payload", "attempts", "max_attempts"}))
	mock.ExpectCommit()

	consumer := NewConsumer(mock, testLogger(), ConsumerConfig{Topic: TopicDetections}, func(_ context.Context, _ []byte) error {
		t.Fatal("handler must not run")
		return nil
	})

	processed, err := consumer.processBatch(context.Background())

	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumer_ProcessBatch_TransientFailureSchedulesRetry(t *testing.T) {
	jobID := uuid.New()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM queue_jobs").
		WithArgs(TopicDetections, 10).
		WillReturnRows(jobRows(jobID, TopicDetections, []byte(`{}`), 0, 5))
	// First failure: backoff 2^1 = 2 seconds.
	mock.ExpectExec("next_retry_at").
		WithArgs(jobID, "boom", "2 seconds").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	consumer := NewConsumer(mock, testLogger(), ConsumerConfig{Topic: TopicDetections}, func(_ context.Context, _ []byte) error {
		return errors.New("boom")
	})

	processed, err := consumer.processBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumer_ProcessBatch_ExhaustedRetriesGoDead(t *testing.T) {
	jobID := uuid.New()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM queue_jobs").
		WithArgs(TopicDetections, 10).
		WillReturnRows(jobRows(jobID, TopicDetections, []byte(`{}`), 4, 5))
	mock.ExpectExec("SET status = 'dead'").
		WithArgs(jobID, "boom").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	consumer := NewConsumer(mock, testLogger(), ConsumerConfig{Topic: TopicDetections}, func(_ context.Context, _ []byte) error {
		return errors.New("boom")
	})

	processed, err := consumer.processBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumer_ProcessBatch_MalformedDeadLettersImmediately(t *testing.T) {
	jobID := uuid.New()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM queue_jobs").
		WithArgs(TopicDetections, 10).
		WillReturnRows(jobRows(jobID, TopicDetections, []byte(`not json`), 0, 5))
	mock.ExpectExec("SET status = 'dead'").
		WithArgs(jobID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	consumer := NewConsumer(mock, testLogger(), ConsumerConfig{Topic: TopicDetections}, func(_ context.Context, _ []byte) error {
		return domain.ErrMalformedMessage.WithError(errors.New("bad payload"))
	})

	processed, err := consumer.processBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumer_Run_StopsOnContextCancel(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.MatchExpectationsInOrder(false)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM queue_jobs").
		WithArgs(TopicDetections, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "topic", "payload", "attempts", "max_attempts"}))
	mock.ExpectCommit()

	consumer := NewConsumer(mock, testLogger(), ConsumerConfig{
		Topic:        TopicDetections,
		PollInterval: time.Hour,
	}, func(_ context.Context, _ []byte) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
