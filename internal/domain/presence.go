package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConfusionCategory is the supervised classification of a presence against
// ground truth. Set only by external curation, never by the pipeline.
type ConfusionCategory string

const (
	ConfusionTP        ConfusionCategory = "tp"
	ConfusionTN        ConfusionCategory = "tn"
	ConfusionFP        ConfusionCategory = "fp"
	ConfusionFN        ConfusionCategory = "fn"
	ConfusionUnlabeled ConfusionCategory = "unlabeled"
)

func (c ConfusionCategory) Valid() bool {
	switch c {
	case ConfusionTP, ConfusionTN, ConfusionFP, ConfusionFN, ConfusionUnlabeled:
		return true
	}
	return false
}

// Presence is one resolved face occurrence in one frame. Immutable after
// insert except for the two curation label fields.
type Presence struct {
	ID       uuid.UUID `json:"id"`
	PersonID uuid.UUID `json:"person_id"`
	RunID    uuid.UUID `json:"run_id"`
	FrameID  uuid.UUID `json:"frame_id"`
	VideoTag string    `json:"video_tag"`

	CapturedAt time.Time `json:"captured_at"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Per-stage durations in seconds, as measured by each worker.
	CaptureSeconds     float64 `json:"capture_seconds"`
	DetectionSeconds   float64 `json:"detection_seconds"`
	RecognitionSeconds float64 `json:"recognition_seconds"`
	QueueWaitSeconds   float64 `json:"queue_wait_seconds"`
	TotalSeconds       float64 `json:"total_seconds"`

	// Similarity is the best (lowest) distance observed against the matched
	// person's embeddings; nil when the presence created a new person.
	Similarity *float64 `json:"similarity,omitempty"`

	ImageRef string `json:"image_ref"`

	GoldStandard      *string           `json:"gold_standard,omitempty"`
	ConfusionCategory ConfusionCategory `json:"confusion_category"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
