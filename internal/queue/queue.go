package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/olho-vivo/presenca/internal/repository"
)

// Job statuses
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
	StatusDead      = "dead"
)

// Topics connecting the pipeline stages.
const (
	TopicDetections   = "detections"
	TopicRecognitions = "recognitions"
)

// Job is one durable message on a topic.
type Job struct {
	ID          uuid.UUID
	Topic       string
	Payload     []byte
	Attempts    int
	MaxAttempts int
}

// Publisher appends jobs to a topic. Delivery is at-least-once: a job stays
// visible until a consumer marks it delivered or dead.
type Publisher struct {
	db          PgxPool
	maxAttempts int
}

// PgxPool aliases the repository's narrowed pool interface; the queue rides
// the same connection pool as the repositories.
type PgxPool = repository.PgxPool

func NewPublisher(db PgxPool, maxAttempts int) *Publisher {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Publisher{db: db, maxAttempts: maxAttempts}
}

// Publish enqueues the payload on the topic.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO queue_jobs (topic, payload, status, max_attempts, next_retry_at)
		VALUES ($1, $2, 'pending', $3, NOW())`

	if _, err := p.db.Exec(ctx, query, topic, body, p.maxAttempts); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}

	return nil
}
