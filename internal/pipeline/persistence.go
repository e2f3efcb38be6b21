package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/olho-vivo/presenca/internal/domain"
)

// RunStore is the run bookkeeping surface of the persistence stage.
type RunStore interface {
	GetOrCreate(ctx context.Context, videoTag, model string, at time.Time) (*domain.Run, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
}

// FrameStore is the frame bookkeeping surface of the persistence stage.
type FrameStore interface {
	Ensure(ctx context.Context, frame *domain.Frame) error
	AttachPresence(ctx context.Context, frameID, presenceID, runID uuid.UUID) error
	RecordEmpty(ctx context.Context, frame *domain.Frame) error
}

// PresenceStore writes presences.
type PresenceStore interface {
	Create(ctx context.Context, p *domain.Presence) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// PersistenceStage consumes recognition messages and writes the presence,
// frame and run rows. Presence ids are derived from the message content, so
// a redelivered message is detected before any side effect and skipped.
type PersistenceStage struct {
	runs      RunStore
	frames    FrameStore
	presences PresenceStore
	logger    *slog.Logger
	model     string
}

func NewPersistenceStage(runs RunStore, frames FrameStore, presences PresenceStore, logger *slog.Logger, model string) *PersistenceStage {
	return &PersistenceStage{
		runs:      runs,
		frames:    frames,
		presences: presences,
		logger:    logger,
		model:     model,
	}
}

// presenceID derives a stable id from the message identity, so the same face
// message always maps to the same presence row.
func presenceID(msg *domain.RecognitionMessage) uuid.UUID {
	seed := fmt.Sprintf("presence:%s:%s", msg.FrameID, msg.ImageRef)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed))
}

// Handle processes one recognition message.
func (s *PersistenceStage) Handle(ctx context.Context, payload []byte) error {
	var msg domain.RecognitionMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return domain.ErrMalformedMessage.WithError(err)
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	if msg.Empty() {
		frame := &domain.Frame{
			ID:              msg.FrameID,
			VideoTag:        msg.VideoTag,
			FPS:             msg.FPS,
			DurationSeconds: msg.DurationSeconds,
		}
		if err := s.frames.RecordEmpty(ctx, frame); err != nil {
			return fmt.Errorf("record empty frame: %w", err)
		}
		return nil
	}

	id := presenceID(&msg)
	exists, err := s.presences.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check redelivery: %w", err)
	}
	if exists {
		s.logger.Debug("presence already stored, skipping redelivery",
			"presence_id", id,
			"frame_id", msg.FrameID,
		)
		return nil
	}

	capturedAt := timeFromEpoch(msg.CapturedAt)
	finishedAt := timeFromEpoch(msg.RecognitionEndedAt)

	run, err := s.runs.GetOrCreate(ctx, msg.VideoTag, s.model, capturedAt)
	if err != nil {
		return fmt.Errorf("get or create run: %w", err)
	}
	if err := s.runs.Touch(ctx, run.ID, finishedAt); err != nil {
		return fmt.Errorf("touch run: %w", err)
	}

	frame := &domain.Frame{
		ID:              msg.FrameID,
		VideoTag:        msg.VideoTag,
		DetectedFaces:   msg.FrameTotalFaces,
		FPS:             msg.FPS,
		DurationSeconds: msg.DurationSeconds,
	}
	if err := s.frames.Ensure(ctx, frame); err != nil {
		return fmt.Errorf("ensure frame: %w", err)
	}

	queueWait := msg.CaptureQueueWait + msg.DetectionQueueWait
	total := finishedAt.Sub(capturedAt).Seconds()
	if total < 0 {
		total = 0
	}

	presence := &domain.Presence{
		ID:       id,
		PersonID: msg.PersonID,
		RunID:    run.ID,
		FrameID:  msg.FrameID,
		VideoTag: msg.VideoTag,

		CapturedAt: capturedAt,
		StartedAt:  timeFromEpoch(msg.StartedAt),
		FinishedAt: finishedAt,

		CaptureSeconds:     msg.CaptureSeconds,
		DetectionSeconds:   msg.DetectionSeconds,
		RecognitionSeconds: msg.RecognitionSeconds,
		QueueWaitSeconds:   queueWait,
		TotalSeconds:       total,

		Similarity: msg.Similarity,
		ImageRef:   msg.RecognitionRef,
	}
	if err := s.presences.Create(ctx, presence); err != nil {
		return fmt.Errorf("create presence: %w", err)
	}

	if err := s.frames.AttachPresence(ctx, msg.FrameID, presence.ID, run.ID); err != nil {
		return fmt.Errorf("attach presence: %w", err)
	}

	s.logger.Debug("presence stored",
		"presence_id", presence.ID,
		"person_id", msg.PersonID,
		"run_id", run.ID,
	)

	return nil
}

func timeFromEpoch(seconds float64) time.Time {
	return time.Unix(0, int64(seconds*float64(time.Second))).UTC()
}
