package domain

import "github.com/google/uuid"

// DetectionMessage is what the detection stage emits for every face crop it
// stored. One message per detected face; frame metadata rides along so the
// downstream stages never need to query the detector.
type DetectionMessage struct {
	FrameID         uuid.UUID `json:"frame_id"`
	VideoTag        string    `json:"video_tag"`
	ImageRef        string    `json:"image_ref"`
	FrameTotalFaces int       `json:"frame_total_faces"`

	CapturedAt float64 `json:"captured_at"`
	StartedAt  float64 `json:"started_at"`

	CaptureSeconds   float64 `json:"capture_seconds"`
	DetectionSeconds float64 `json:"detection_seconds"`
	CaptureQueueWait float64 `json:"capture_queue_wait"`

	FPS             *float64 `json:"fps,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
}

// Empty reports whether the message describes a frame with no faces. Empty
// frames carry no crop and skip recognition entirely.
func (m *DetectionMessage) Empty() bool {
	return m.FrameTotalFaces == 0
}

// Validate reports whether the message carries the fields the recognition
// stage cannot proceed without. Failures are dead-lettered, not retried.
func (m *DetectionMessage) Validate() error {
	if m.FrameID == uuid.Nil {
		return ErrMalformedMessage.WithError(errFieldMissing("frame_id"))
	}
	if m.VideoTag == "" {
		return ErrMalformedMessage.WithError(errFieldMissing("video_tag"))
	}
	if !m.Empty() && m.ImageRef == "" {
		return ErrMalformedMessage.WithError(errFieldMissing("image_ref"))
	}
	return nil
}

// RecognitionMessage extends the detection payload with the resolved person.
type RecognitionMessage struct {
	DetectionMessage

	PersonID           uuid.UUID `json:"person_id"`
	PersonCreated      bool      `json:"person_created"`
	Similarity         *float64  `json:"similarity,omitempty"`
	RecognitionRef     string    `json:"recognition_ref"`
	RecognitionSeconds float64   `json:"recognition_seconds"`
	RecognitionEndedAt float64   `json:"recognition_ended_at"`
	DetectionQueueWait float64   `json:"detection_queue_wait"`
}

func (m *RecognitionMessage) Validate() error {
	if err := m.DetectionMessage.Validate(); err != nil {
		return err
	}
	if !m.Empty() && m.PersonID == uuid.Nil {
		return ErrMalformedMessage.WithError(errFieldMissing("person_id"))
	}
	return nil
}
