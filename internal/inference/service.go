package inference

import (
	"context"
	"errors"
	"fmt"
)

const (
	// Prompt is the fixed instruction sent ahead of every image.
	Prompt = "Describe this image in detail."

	// FallbackDescription is returned when the upstream answers 2xx but the
	// payload does not carry a usable description.
	FallbackDescription = "No description generated"

	// DefaultMIMEType is assumed when the caller does not know the image type.
	DefaultMIMEType = "image/jpeg"
)

// ErrEmptyImage is returned when Describe is called without image bytes.
var ErrEmptyImage = errors.New("image is empty")

// Service describes an image in natural language. Every call reaches the
// backing model; nothing is cached.
type Service interface {
	Describe(ctx context.Context, image []byte, mimeType string) (string, error)
}

// Error is returned when the inference service answers with a non-success
// status. Body is kept for server-side logs only and must not be forwarded
// to end clients.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("inference service returned status %d", e.StatusCode)
}
