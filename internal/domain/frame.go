package domain

import (
	"time"

	"github.com/google/uuid"
)

// Frame is one physical captured image. FrameNumber is assigned exactly once
// per frame id and is strictly increasing per video tag. RunID stays nil for
// frames the detector recorded with zero faces; that is what distinguishes
// them when counting total frames per run.
type Frame struct {
	ID              uuid.UUID   `json:"id"`
	VideoTag        string      `json:"video_tag"`
	FrameNumber     int64       `json:"frame_number"`
	DetectedFaces   int         `json:"detected_faces"`
	ResolvedFaces   int         `json:"resolved_faces"`
	PresenceIDs     []uuid.UUID `json:"presence_ids"`
	RunID           *uuid.UUID  `json:"run_id,omitempty"`
	FPS             *float64    `json:"fps,omitempty"`
	DurationSeconds *float64    `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}
