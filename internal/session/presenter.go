package session

import (
	"fmt"

	"github.com/example/photo-describer/internal/upload"
)

const (
	// CaptureFailedMessage is shown when the camera could not take a photo.
	CaptureFailedMessage = "Failed to take picture, Please try again."
	// TransportFailureMessage is shown when the gateway could not be reached.
	TransportFailureMessage = "Something went wrong"
)

// PresentResult renders the gateway outcome for the user. upload.Client
// already substitutes "Unknown error" for bodies without an error field.
func PresentResult(res upload.Result) string {
	if res.OK() {
		return res.Description
	}
	return "Error: " + res.Error
}

// Render turns a snapshot into the line the console shows.
func Render(s Snapshot) string {
	switch s.State {
	case Idle:
		return "No photo yet. Capture one to begin."
	case Captured:
		return fmt.Sprintf("Photo captured (%d bytes). Describe or retake.", s.ImageBytes)
	case Uploading:
		return "Describing photo..."
	case Described:
		return s.Description
	case Failed:
		return s.Message
	default:
		return ""
	}
}
