package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/olho-vivo/presenca/internal/domain"
	"github.com/olho-vivo/presenca/internal/service"
)

type PresencesHandler struct {
	service *service.Service
	logger  *slog.Logger
}

func NewPresencesHandler(svc *service.Service, logger *slog.Logger) *PresencesHandler {
	return &PresencesHandler{service: svc, logger: logger}
}

// Get returns a single presence.
func (h *PresencesHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	presence, err := h.service.GetPresence(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(presence)
}

type UpdateLabelsRequest struct {
	GoldStandard      *string `json:"gold_standard"`
	ConfusionCategory string  `json:"confusion_category"`
}

// UpdateLabels applies external curation to a presence.
func (h *PresencesHandler) UpdateLabels(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	var req UpdateLabelsRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	category := domain.ConfusionCategory(req.ConfusionCategory)
	if err := h.service.UpdatePresenceLabels(c.Context(), id, req.GoldStandard, category); err != nil {
		return err
	}

	h.logger.Info("presence labels updated",
		"presence_id", id,
		"category", category,
	)

	return c.SendStatus(fiber.StatusNoContent)
}
