package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olho-vivo/presenca/internal/domain"
)

// HandlerFunc processes one job payload. Returning nil acknowledges the job;
// any other error schedules a retry, except domain.ErrMalformedMessage which
// dead-letters immediately.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Consumer pulls pending jobs off one topic and feeds them to a handler.
// Jobs are claimed with FOR UPDATE SKIP LOCKED, so multiple consumers on the
// same topic never process the same job twice concurrently. Redelivery after
// a crash is still possible; handlers must be idempotent.
type Consumer struct {
	db             PgxPool
	logger         *slog.Logger
	topic          string
	handler        HandlerFunc
	prefetch       int
	pollInterval   time.Duration
	handlerTimeout time.Duration
}

// ConsumerConfig bundles the tunables of one consumer.
type ConsumerConfig struct {
	Topic          string
	Prefetch       int
	PollInterval   time.Duration
	HandlerTimeout time.Duration
}

func NewConsumer(db PgxPool, logger *slog.Logger, cfg ConsumerConfig, handler HandlerFunc) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}

	return &Consumer{
		db:             db,
		logger:         logger.With("topic", cfg.Topic),
		topic:          cfg.Topic,
		handler:        handler,
		prefetch:       cfg.Prefetch,
		pollInterval:   cfg.PollInterval,
		handlerTimeout: cfg.HandlerTimeout,
	}
}

// Run polls until the context is cancelled. When a batch comes back full it
// polls again immediately to drain the backlog.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("queue consumer started",
		"prefetch", c.prefetch,
		"poll_interval", c.pollInterval.String(),
	)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		processed, err := c.processBatch(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("batch failed", "error", err)
		}

		if processed == c.prefetch {
			continue
		}

		select {
		case <-ctx.Done():
			c.logger.Info("queue consumer stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Consumer) processBatch(ctx context.Context) (int, error) {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		SELECT id, topic, payload, attempts, max_attempts
		FROM queue_jobs
		WHERE topic = $1 AND status = 'pending' AND next_retry_at <= NOW()
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, c.topic, c.prefetch)
	if err != nil {
		return 0, fmt.Errorf("claim jobs: %w", err)
	}

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Topic, &job.Payload, &job.Attempts, &job.MaxAttempts); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate jobs: %w", err)
	}

	if len(jobs) == 0 {
		return 0, tx.Commit(ctx)
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		c.process(ctx, tx, job)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}

	return len(jobs), nil
}

func (c *Consumer) process(ctx context.Context, tx PgxPool, job Job) {
	handlerCtx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
	err := c.handler(handlerCtx, job.Payload)
	cancel()

	switch {
	case err == nil:
		c.markDelivered(ctx, tx, job)

	case errors.Is(err, domain.ErrMalformedMessage):
		// Retrying cannot fix a bad payload.
		c.logger.Warn("dead-lettering malformed job", "job_id", job.ID, "error", err)
		c.markDead(ctx, tx, job, err)

	case job.Attempts+1 >= job.MaxAttempts:
		c.logger.Error("job exhausted retries",
			"job_id", job.ID,
			"attempts", job.Attempts+1,
			"error", err,
		)
		c.markDead(ctx, tx, job, err)

	default:
		c.scheduleRetry(ctx, tx, job, err)
	}
}

func (c *Consumer) markDelivered(ctx context.Context, tx PgxPool, job Job) {
	query := `
		UPDATE queue_jobs
		SET status = 'delivered', attempts = attempts + 1, updated_at = NOW()
		WHERE id = $1`

	if _, err := tx.Exec(ctx, query, job.ID); err != nil {
		c.logger.Error("mark delivered failed", "job_id", job.ID, "error", err)
	}
}

func (c *Consumer) markDead(ctx context.Context, tx PgxPool, job Job, cause error) {
	query := `
		UPDATE queue_jobs
		SET status = 'dead', attempts = attempts + 1, last_error = $2,
		    updated_at = NOW()
		WHERE id = $1`

	if _, err := tx.Exec(ctx, query, job.ID, cause.Error()); err != nil {
		c.logger.Error("mark dead failed", "job_id", job.ID, "error", err)
	}
}

func (c *Consumer) scheduleRetry(ctx context.Context, tx PgxPool, job Job, cause error) {
	backoff := time.Duration(1<<uint(job.Attempts+1)) * time.Second

	c.logger.Warn("job failed, scheduling retry",
		"job_id", job.ID,
		"attempts", job.Attempts+1,
		"backoff", backoff.String(),
		"error", cause,
	)

	query := `
		UPDATE queue_jobs
		SET attempts = attempts + 1, last_error = $2,
		    next_retry_at = NOW() + $3::interval, updated_at = NOW()
		WHERE id = $1`

	interval := fmt.Sprintf("%d seconds", int(backoff.Seconds()))
	if _, err := tx.Exec(ctx, query, job.ID, cause.Error(), interval); err != nil {
		c.logger.Error("schedule retry failed", "job_id", job.ID, "error", err)
	}
}
