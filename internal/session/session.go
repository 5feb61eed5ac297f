// Package session drives one capture, describe and retake loop on the client.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/example/photo-describer/internal/capture"
	"github.com/example/photo-describer/internal/upload"
)

var (
	// ErrBusy is returned while a capture or an upload is outstanding.
	ErrBusy = errors.New("session: an operation is already in flight")
	// ErrNoImage is returned by Describe before anything was captured.
	ErrNoImage = errors.New("session: no photo captured")
	// ErrImageHeld is returned by Capture while a photo is held. Retake first.
	ErrImageHeld = errors.New("session: a photo is already held, retake first")
	// ErrInvalidTransition is returned for actions the current state forbids.
	ErrInvalidTransition = errors.New("session: action not allowed in current state")
)

// State is the client side position in the describe loop.
type State int

const (
	Idle State = iota
	Captured
	Uploading
	Described
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Captured:
		return "captured"
	case Uploading:
		return "uploading"
	case Described:
		return "described"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Uploader sends an encoded photo to the gateway.
type Uploader interface {
	Send(ctx context.Context, req *upload.Request) (upload.Result, error)
}

// Snapshot is a consistent copy of the session for presentation.
type Snapshot struct {
	State       State
	Busy        bool
	HasImage    bool
	ImageBytes  int
	Description string
	Message     string // error text shown in Failed
}

// Session holds at most one photo and at most one result. All methods are
// safe for concurrent use; overlapping actions are refused with ErrBusy.
type Session struct {
	camera   capture.Camera
	uploader Uploader
	logger   *zap.Logger

	mu          sync.Mutex
	state       State
	capturing   bool
	image       *capture.CapturedImage
	description string
	message     string
}

// New returns a Session in Idle.
func New(camera capture.Camera, uploader Uploader, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		camera:   camera,
		uploader: uploader,
		logger:   logger.Named("session"),
		state:    Idle,
	}
}

// Capture takes one photo. It only runs from Idle; a held photo is never
// replaced silently. On failure the session is left as it was.
func (s *Session) Capture(ctx context.Context) (capture.CapturedImage, error) {
	s.mu.Lock()
	if s.busyLocked() {
		s.mu.Unlock()
		return capture.CapturedImage{}, ErrBusy
	}
	if s.state != Idle {
		s.mu.Unlock()
		return capture.CapturedImage{}, ErrImageHeld
	}
	s.capturing = true
	s.mu.Unlock()

	img, err := s.camera.TakePicture(ctx)
	if err == nil && len(img.Bytes) == 0 {
		err = &capture.Error{Op: "session.capture", Err: capture.ErrEmptyImage}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.capturing = false
	if err != nil {
		var capErr *capture.Error
		if !errors.As(err, &capErr) {
			err = &capture.Error{Op: "session.capture", Err: err}
		}
		s.logger.Warn("capture failed", zap.Error(err))
		return capture.CapturedImage{}, err
	}

	s.image = &img
	s.description = ""
	s.message = ""
	s.state = Captured
	s.logger.Debug("photo captured", zap.Int("bytes", len(img.Bytes)), zap.String("mime_type", img.MIMEType))
	return img, nil
}

// Describe uploads the held photo and waits for the gateway. It runs from
// Captured, and from Failed as a retry. There is no way to abort it other
// than cancelling ctx.
func (s *Session) Describe(ctx context.Context) (upload.Result, error) {
	s.mu.Lock()
	if s.busyLocked() {
		s.mu.Unlock()
		return upload.Result{}, ErrBusy
	}
	switch s.state {
	case Idle:
		s.mu.Unlock()
		return upload.Result{}, ErrNoImage
	case Captured, Failed:
	default:
		s.mu.Unlock()
		return upload.Result{}, ErrInvalidTransition
	}
	img := *s.image
	s.state = Uploading
	s.description = ""
	s.message = ""
	s.mu.Unlock()

	res, err := s.send(ctx, img)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err != nil:
		s.logger.Error("upload failed", zap.Error(err))
		s.state = Failed
		s.message = TransportFailureMessage
	case !res.OK():
		s.logger.Warn("gateway rejected photo", zap.Int("status", res.StatusCode), zap.String("error", res.Error))
		s.state = Failed
		s.message = PresentResult(res)
	default:
		s.state = Described
		s.description = res.Description
	}
	return res, err
}

func (s *Session) send(ctx context.Context, img capture.CapturedImage) (upload.Result, error) {
	req, err := upload.Encode(img)
	if err != nil {
		return upload.Result{}, err
	}
	return s.uploader.Send(ctx, req)
}

// Retake drops the held photo and result and returns to Idle.
func (s *Session) Retake() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busyLocked() {
		return ErrBusy
	}
	s.image = nil
	s.description = ""
	s.message = ""
	s.state = Idle
	return nil
}

// Busy reports whether describe and retake are currently disabled.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busyLocked()
}

// Snapshot returns the current session view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:       s.state,
		Busy:        s.busyLocked(),
		HasImage:    s.image != nil,
		Description: s.description,
		Message:     s.message,
	}
	if s.image != nil {
		snap.ImageBytes = len(s.image.Bytes)
	}
	return snap
}

func (s *Session) busyLocked() bool {
	return s.capturing || s.state == Uploading
}
