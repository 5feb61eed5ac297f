// Package capture acquires still images for the describe pipeline.
package capture

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyImage is returned when a capture yields no bytes.
var ErrEmptyImage = errors.New("captured image is empty")

// CapturedImage is one still photo. It is never empty once created.
type CapturedImage struct {
	Bytes    []byte
	MIMEType string
}

// NewCapturedImage validates data and returns a CapturedImage.
func NewCapturedImage(data []byte, mimeType string) (CapturedImage, error) {
	if len(data) == 0 {
		return CapturedImage{}, &Error{Op: "capture.new_image", Err: ErrEmptyImage}
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return CapturedImage{Bytes: data, MIMEType: mimeType}, nil
}

// Camera takes one picture per call.
type Camera interface {
	TakePicture(ctx context.Context) (CapturedImage, error)
}

// Error is a device side failure: busy hardware, revoked permission or I/O.
// Callers present it and let the user try again.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
