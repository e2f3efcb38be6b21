package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/olho-vivo/presenca/internal/domain"
	"github.com/olho-vivo/presenca/internal/provider"
	"github.com/olho-vivo/presenca/internal/resolver"
)

// BlobStore is the object storage surface the stages need.
type BlobStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// Publisher forwards a message to the next stage.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// RecognitionConfig names the buckets the stage reads and writes.
type RecognitionConfig struct {
	DetectionsBucket  string
	RecognitionBucket string
	NextTopic         string
}

// RecognitionStage consumes detection messages, embeds the face crop,
// resolves it to a person and forwards the enriched message. Empty frames
// pass straight through for frame bookkeeping downstream.
type RecognitionStage struct {
	blobs      BlobStore
	comparator provider.Comparator
	resolver   *resolver.Engine
	publisher  Publisher
	logger     *slog.Logger
	cfg        RecognitionConfig
}

func NewRecognitionStage(blobs BlobStore, comparator provider.Comparator, eng *resolver.Engine, publisher Publisher, logger *slog.Logger, cfg RecognitionConfig) *RecognitionStage {
	return &RecognitionStage{
		blobs:      blobs,
		comparator: comparator,
		resolver:   eng,
		publisher:  publisher,
		logger:     logger,
		cfg:        cfg,
	}
}

// Handle processes one detection message. Any transient failure returns an
// error so the queue redelivers; the resolver's writes are append-only, so a
// redelivery at worst duplicates an embedding.
func (s *RecognitionStage) Handle(ctx context.Context, payload []byte) error {
	var msg domain.DetectionMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return domain.ErrMalformedMessage.WithError(err)
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	if msg.Empty() {
		out := domain.RecognitionMessage{DetectionMessage: msg}
		if err := s.publisher.Publish(ctx, s.cfg.NextTopic, out); err != nil {
			return fmt.Errorf("forward empty frame: %w", err)
		}
		return nil
	}

	start := time.Now()

	image, err := s.blobs.Get(ctx, s.cfg.DetectionsBucket, msg.ImageRef)
	if err != nil {
		return fmt.Errorf("fetch crop: %w", err)
	}

	embedding, err := s.comparator.Embed(ctx, image)
	if err != nil {
		return fmt.Errorf("embed crop: %w", err)
	}

	res, err := s.resolver.Resolve(ctx, embedding, msg.ImageRef, msg.VideoTag)
	if err != nil {
		return fmt.Errorf("resolve face: %w", err)
	}

	// Keep a copy of the crop under the person's prefix so a person's
	// samples can be reviewed side by side.
	recognitionRef := fmt.Sprintf("%s/%s.jpg", res.PersonID, msg.FrameID)
	if err := s.blobs.Put(ctx, s.cfg.RecognitionBucket, recognitionRef, image, "image/jpeg"); err != nil {
		return fmt.Errorf("store recognition crop: %w", err)
	}

	now := time.Now()
	queueWait := epochSeconds(start) - (msg.StartedAt + msg.CaptureSeconds + msg.DetectionSeconds)
	if queueWait < 0 {
		queueWait = 0
	}

	out := domain.RecognitionMessage{
		DetectionMessage:   msg,
		PersonID:           res.PersonID,
		PersonCreated:      res.Created,
		Similarity:         res.BestDistance,
		RecognitionRef:     recognitionRef,
		RecognitionSeconds: now.Sub(start).Seconds(),
		RecognitionEndedAt: epochSeconds(now),
		DetectionQueueWait: queueWait,
	}

	if err := s.publisher.Publish(ctx, s.cfg.NextTopic, out); err != nil {
		return fmt.Errorf("publish recognition: %w", err)
	}

	s.logger.Debug("face recognized",
		"frame_id", msg.FrameID,
		"person_id", res.PersonID,
		"created", res.Created,
	)

	return nil
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
