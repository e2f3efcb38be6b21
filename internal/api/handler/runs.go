package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/olho-vivo/presenca/internal/domain"
	"github.com/olho-vivo/presenca/internal/service"
)

type RunsHandler struct {
	service *service.Service
	logger  *slog.Logger
}

func NewRunsHandler(svc *service.Service, logger *slog.Logger) *RunsHandler {
	return &RunsHandler{service: svc, logger: logger}
}

type CreateRunRequest struct {
	VideoTag               string   `json:"video_tag"`
	Model                  string   `json:"model"`
	NominalDurationSeconds *float64 `json:"nominal_duration_seconds,omitempty"`
	ExpectedIdentities     *int     `json:"expected_identities,omitempty"`
}

// Create pre-registers a run with its ground truth expectations, so metrics
// have a denominator before the first frame arrives.
func (h *RunsHandler) Create(c *fiber.Ctx) error {
	var req CreateRunRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	run, err := h.service.CreateRun(c.Context(), req.VideoTag, req.Model, req.NominalDurationSeconds, req.ExpectedIdentities)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(run)
}

// Get returns a run with its cached metrics.
func (h *RunsHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	run, err := h.service.GetRun(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(run)
}

// List returns all runs.
func (h *RunsHandler) List(c *fiber.Ctx) error {
	runs, err := h.service.ListRuns(c.Context())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"runs": runs})
}

type UpdateExpectationsRequest struct {
	NominalDurationSeconds *float64 `json:"nominal_duration_seconds"`
	ExpectedIdentities     *int     `json:"expected_identities"`
}

// UpdateExpectations sets the ground truth inputs of an existing run.
func (h *RunsHandler) UpdateExpectations(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	var req UpdateExpectationsRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	if err := h.service.SetRunExpectations(c.Context(), id, req.NominalDurationSeconds, req.ExpectedIdentities); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Recompute rebuilds the run's metrics from stored data and returns the
// refreshed run.
func (h *RunsHandler) Recompute(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	run, err := h.service.RecomputeRun(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(run)
}
