package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

func errFieldMissing(field string) error {
	return fmt.Errorf("missing required field %q", field)
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrPersonNotFound = &AppError{
		Code:       "PERSON_NOT_FOUND",
		Message:    "Person not found",
		StatusCode: 404,
	}

	ErrPresenceNotFound = &AppError{
		Code:       "PRESENCE_NOT_FOUND",
		Message:    "Presence not found",
		StatusCode: 404,
	}

	ErrFrameNotFound = &AppError{
		Code:       "FRAME_NOT_FOUND",
		Message:    "Frame not found",
		StatusCode: 404,
	}

	ErrRunNotFound = &AppError{
		Code:       "RUN_NOT_FOUND",
		Message:    "Run not found",
		StatusCode: 404,
	}

	ErrInvalidLabel = &AppError{
		Code:       "INVALID_LABEL",
		Message:    "Invalid confusion category",
		StatusCode: 422,
	}

	// ErrMalformedMessage marks a queue payload that can never succeed; the
	// consumer dead-letters it instead of retrying.
	ErrMalformedMessage = &AppError{
		Code:       "MALFORMED_MESSAGE",
		Message:    "Message payload is missing required fields",
		StatusCode: 422,
	}

	ErrComparatorUnavailable = &AppError{
		Code:       "COMPARATOR_UNAVAILABLE",
		Message:    "Embedding comparator is unreachable",
		StatusCode: 503,
	}

	ErrNoFaceDetected = &AppError{
		Code:       "NO_FACE_DETECTED",
		Message:    "No face detected in the image",
		StatusCode: 422,
	}

	ErrEmptyEmbedding = &AppError{
		Code:       "EMPTY_EMBEDDING",
		Message:    "Comparator returned an empty embedding",
		StatusCode: 422,
	}
)
