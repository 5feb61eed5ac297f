package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"

	"github.com/kbinani/screenshot"
)

const defaultJPEGQuality = 90

// ScreenCamera grabs one display and encodes it as JPEG. It stands in for a
// device camera on desktops.
type ScreenCamera struct {
	Display int // index of the active display to grab
	Quality int // JPEG quality, 1-100; zero selects 90
}

// TakePicture captures the configured display.
func (s *ScreenCamera) TakePicture(ctx context.Context) (CapturedImage, error) {
	if err := ctx.Err(); err != nil {
		return CapturedImage{}, &Error{Op: "capture.screen", Err: err}
	}

	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		return CapturedImage{}, &Error{Op: "capture.screen", Err: errors.New("no active display")}
	}
	if s.Display < 0 || s.Display >= n {
		return CapturedImage{}, &Error{Op: "capture.screen", Err: fmt.Errorf("display %d out of range (%d active)", s.Display, n)}
	}

	img, err := screenshot.CaptureDisplay(s.Display)
	if err != nil {
		return CapturedImage{}, &Error{Op: "capture.screen", Err: err}
	}

	quality := s.Quality
	if quality <= 0 || quality > 100 {
		quality = defaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return CapturedImage{}, &Error{Op: "capture.screen", Err: err}
	}
	return NewCapturedImage(buf.Bytes(), "image/jpeg")
}
