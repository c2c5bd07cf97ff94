package capture

import (
	"errors"
	"fmt"
)

// ErrNoFrame is returned by a FrameSource when no new frame is available for
// this tick. The tick is skipped without affecting any state.
var ErrNoFrame = errors.New("no frame available")

// ErrNotRunning is returned by commands that require an active session.
var ErrNotRunning = errors.New("capture session not running")

// ErrResultDisplayed is returned by manual capture while a result is shown.
var ErrResultDisplayed = errors.New("clear the current result before capturing")

// ErrBusy is returned by manual capture while a frame is already in flight.
var ErrBusy = errors.New("capture already in flight")

// CameraKind classifies a camera failure. All kinds are recoverable: the
// session returns to idle and can be restarted.
type CameraKind string

const (
	CameraPermission  CameraKind = "permission_denied"
	CameraNotFound    CameraKind = "device_not_found"
	CameraDeviceBusy  CameraKind = "device_busy"
	CameraConstraints CameraKind = "constraints_unsatisfiable"
	CameraTimeout     CameraKind = "timeout"
)

// CameraError wraps a device failure with its classification.
type CameraError struct {
	Kind CameraKind
	Err  error
}

func (e *CameraError) Error() string {
	return fmt.Sprintf("camera %s: %v", e.Kind, e.Err)
}

func (e *CameraError) Unwrap() error { return e.Err }

func cameraErr(kind CameraKind, err error) *CameraError {
	return &CameraError{Kind: kind, Err: err}
}
