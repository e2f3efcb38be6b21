package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/olho-vivo/presenca/internal/domain"
	"github.com/olho-vivo/presenca/internal/metrics"
	"github.com/olho-vivo/presenca/internal/pipeline"
	"github.com/olho-vivo/presenca/internal/provider"
	"github.com/olho-vivo/presenca/internal/resolver"
)

// RunReader is the read side of run access.
type RunReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context) ([]domain.Run, error)
	CreateManual(ctx context.Context, videoTag, model string, nominalDuration *float64, expectedIdentities *int) (*domain.Run, error)
	SetExpectations(ctx context.Context, id uuid.UUID, nominalDuration *float64, expectedIdentities *int) error
}

// PresenceWriter covers the curation surface.
type PresenceWriter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Presence, error)
	UpdateLabels(ctx context.Context, id uuid.UUID, goldStandard *string, category domain.ConfusionCategory) error
}

// Service exposes the pipeline's operations outside the queue consumers:
// synchronous resolution, run management, metric recomputation and label
// curation.
type Service struct {
	comparator  provider.Comparator
	resolver    *resolver.Engine
	persistence *pipeline.PersistenceStage
	metrics     *metrics.Engine
	runs        RunReader
	presences   PresenceWriter
	logger      *slog.Logger
}

func New(comparator provider.Comparator, eng *resolver.Engine, persistence *pipeline.PersistenceStage, metricsEngine *metrics.Engine, runs RunReader, presences PresenceWriter, logger *slog.Logger) *Service {
	return &Service{
		comparator:  comparator,
		resolver:    eng,
		persistence: persistence,
		metrics:     metricsEngine,
		runs:        runs,
		presences:   presences,
		logger:      logger,
	}
}

// ResolveFaceInput carries one face through the synchronous path.
type ResolveFaceInput struct {
	Image           []byte
	FrameID         uuid.UUID
	VideoTag        string
	ImageRef        string
	FrameTotalFaces int
	CapturedAt      time.Time
}

// ResolveFace runs the full resolve-and-persist unit in one call: embed,
// resolve against known persons, then write the presence, frame and run rows
// through the same code path the queue consumers use.
func (s *Service) ResolveFace(ctx context.Context, in ResolveFaceInput) (*domain.Resolution, error) {
	if in.FrameID == uuid.Nil || in.VideoTag == "" {
		return nil, domain.ErrBadRequest
	}
	if in.CapturedAt.IsZero() {
		in.CapturedAt = time.Now()
	}

	start := time.Now()

	embedding, err := s.comparator.Embed(ctx, in.Image)
	if err != nil {
		return nil, fmt.Errorf("embed face: %w", err)
	}

	res, err := s.resolver.Resolve(ctx, embedding, in.ImageRef, in.VideoTag)
	if err != nil {
		return nil, fmt.Errorf("resolve face: %w", err)
	}

	totalFaces := in.FrameTotalFaces
	if totalFaces < 1 {
		totalFaces = 1
	}

	now := time.Now()
	msg := domain.RecognitionMessage{
		DetectionMessage: domain.DetectionMessage{
			FrameID:         in.FrameID,
			VideoTag:        in.VideoTag,
			ImageRef:        in.ImageRef,
			FrameTotalFaces: totalFaces,
			CapturedAt:      epochSeconds(in.CapturedAt),
			StartedAt:       epochSeconds(start),
		},
		PersonID:           res.PersonID,
		PersonCreated:      res.Created,
		Similarity:         res.BestDistance,
		RecognitionRef:     in.ImageRef,
		RecognitionSeconds: now.Sub(start).Seconds(),
		RecognitionEndedAt: epochSeconds(now),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal recognition: %w", err)
	}
	if err := s.persistence.Handle(ctx, payload); err != nil {
		return nil, fmt.Errorf("persist resolution: %w", err)
	}

	return res, nil
}

// CreateRun pre-creates a run with its ground truth expectations.
func (s *Service) CreateRun(ctx context.Context, videoTag, model string, nominalDuration *float64, expectedIdentities *int) (*domain.Run, error) {
	if videoTag == "" || model == "" {
		return nil, domain.ErrBadRequest
	}
	return s.runs.CreateManual(ctx, videoTag, model, nominalDuration, expectedIdentities)
}

// SetRunExpectations updates the ground truth inputs of an existing run.
func (s *Service) SetRunExpectations(ctx context.Context, id uuid.UUID, nominalDuration *float64, expectedIdentities *int) error {
	if expectedIdentities != nil && *expectedIdentities < 0 {
		return domain.ErrBadRequest
	}
	return s.runs.SetExpectations(ctx, id, nominalDuration, expectedIdentities)
}

// GetRun returns a run with its cached metrics.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	return s.runs.GetByID(ctx, id)
}

// ListRuns returns all runs, newest first.
func (s *Service) ListRuns(ctx context.Context) ([]domain.Run, error) {
	return s.runs.List(ctx)
}

// RecomputeRun rebuilds the run's derived metrics from stored data.
func (s *Service) RecomputeRun(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	return s.metrics.Recompute(ctx, id)
}

// GetPresence returns a single presence.
func (s *Service) GetPresence(ctx context.Context, id uuid.UUID) (*domain.Presence, error) {
	return s.presences.GetByID(ctx, id)
}

// UpdatePresenceLabels applies external curation to a presence.
func (s *Service) UpdatePresenceLabels(ctx context.Context, id uuid.UUID, goldStandard *string, category domain.ConfusionCategory) error {
	if category == "" {
		category = domain.ConfusionUnlabeled
	}
	if !category.Valid() {
		return domain.ErrInvalidLabel
	}
	return s.presences.UpdateLabels(ctx, id, goldStandard, category)
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
