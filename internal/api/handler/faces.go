package handler

import (
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/olho-vivo/presenca/internal/domain"
	"github.com/olho-vivo/presenca/internal/service"
)

type FacesHandler struct {
	service *service.Service
	logger  *slog.Logger
}

func NewFacesHandler(svc *service.Service, logger *slog.Logger) *FacesHandler {
	return &FacesHandler{service: svc, logger: logger}
}

type ResolveFaceRequest struct {
	Image           string    `json:"image"`
	FrameID         uuid.UUID `json:"frame_id"`
	VideoTag        string    `json:"video_tag"`
	ImageRef        string    `json:"image_ref"`
	FrameTotalFaces int       `json:"frame_total_faces"`
	CapturedAt      time.Time `json:"captured_at"`
}

type ResolveFaceResponse struct {
	PersonID     uuid.UUID `json:"person_id"`
	Created      bool      `json:"created"`
	BestDistance *float64  `json:"best_distance,omitempty"`
}

// Resolve runs the synchronous resolve-and-persist path for one face image,
// bypassing the queue. The image comes base64 encoded.
func (h *FacesHandler) Resolve(c *fiber.Ctx) error {
	var req ResolveFaceRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	res, err := h.service.ResolveFace(c.Context(), service.ResolveFaceInput{
		Image:           image,
		FrameID:         req.FrameID,
		VideoTag:        req.VideoTag,
		ImageRef:        req.ImageRef,
		FrameTotalFaces: req.FrameTotalFaces,
		CapturedAt:      req.CapturedAt,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(ResolveFaceResponse{
		PersonID:     res.PersonID,
		Created:      res.Created,
		BestDistance: res.BestDistance,
	})
}
