package capture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Device is one enumerable video input.
type Device struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Devices lists V4L2 video inputs under /dev. Labels come from sysfs when
// readable and may be empty otherwise.
func Devices() []Device {
	paths, _ := filepath.Glob("/dev/video*")
	out := make([]Device, 0, len(paths))
	for _, p := range paths {
		out = append(out, Device{ID: p, Label: deviceLabel(p)})
	}
	return out
}

func deviceLabel(devPath string) string {
	name := filepath.Join("/sys/class/video4linux", filepath.Base(devPath), "name")
	b, err := os.ReadFile(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// DefaultDevice picks the environment-facing camera when one is labeled as
// such, otherwise the first device. Empty string when none exist.
func DefaultDevice() string {
	devices := Devices()
	if len(devices) == 0 {
		return ""
	}
	for _, d := range devices {
		low := strings.ToLower(d.Label)
		if strings.Contains(low, "back") || strings.Contains(low, "environment") {
			return d.ID
		}
	}
	return devices[0].ID
}

// ffmpegSource grabs single frames from a V4L2 device by shelling out to
// ffmpeg. Each Grab writes one PNG to a temp file owned by the caller.
type ffmpegSource struct {
	ffmpegPath string
	deviceID   string
}

// OpenFFmpegSource validates the device and the ffmpeg binary and returns a
// source for it.
func OpenFFmpegSource(deviceID string) (FrameSource, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, cameraErr(CameraConstraints, fmt.Errorf("ffmpeg not found in PATH: %w", err))
	}
	if _, err := os.Stat(deviceID); err != nil {
		return nil, cameraErr(CameraNotFound, err)
	}
	return &ffmpegSource{ffmpegPath: ffmpegPath, deviceID: deviceID}, nil
}

func (s *ffmpegSource) Grab(ctx context.Context) (string, error) {
	tmp, err := os.CreateTemp("", "grab-*.png")
	if err != nil {
		return "", err
	}
	_ = tmp.Close()
	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-f", "v4l2",
		"-i", s.deviceID,
		"-frames:v", "1",
		"-y", tmp.Name())
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", classifyFFmpeg(ctx, err, stderr.String())
	}
	if fi, err := os.Stat(tmp.Name()); err != nil || fi.Size() == 0 {
		_ = os.Remove(tmp.Name())
		return "", cameraErr(CameraConstraints, fmt.Errorf("empty frame from %s", s.deviceID))
	}
	return tmp.Name(), nil
}

func (s *ffmpegSource) Close() error { return nil }

func classifyFFmpeg(ctx context.Context, err error, stderr string) error {
	if ctx.Err() != nil {
		return cameraErr(CameraTimeout, ctx.Err())
	}
	low := strings.ToLower(stderr)
	switch {
	case strings.Contains(low, "permission denied"):
		return cameraErr(CameraPermission, err)
	case strings.Contains(low, "no such file"), strings.Contains(low, "no such device"):
		return cameraErr(CameraNotFound, err)
	case strings.Contains(low, "device or resource busy"):
		return cameraErr(CameraDeviceBusy, err)
	}
	return cameraErr(CameraConstraints, fmt.Errorf("%w: %s", err, firstLine(stderr)))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
