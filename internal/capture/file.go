package capture

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// FileCamera "photographs" an image file on disk. The file is read on every
// call so it can be replaced between shots.
type FileCamera struct {
	Path string
}

// TakePicture reads the file and checks that it holds an image.
func (f *FileCamera) TakePicture(ctx context.Context) (CapturedImage, error) {
	if err := ctx.Err(); err != nil {
		return CapturedImage{}, &Error{Op: "capture.file", Err: err}
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return CapturedImage{}, &Error{Op: "capture.file", Err: err}
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return CapturedImage{}, &Error{
			Op:  "capture.file",
			Err: fmt.Errorf("%s is not an image (detected %s)", f.Path, detected.String()),
		}
	}
	return NewCapturedImage(data, detected.String())
}
