// Package capture owns the camera devices the station records from. A Camera
// acquires a Stream exactly once per logical camera session; the Stream's
// preview keeps running across any number of recordings and is released only
// when the Stream is closed. Recordings emit bounded binary fragments (chunks)
// while active and are stopped through a single idempotent Stop.
package capture

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Chunk is one bounded fragment of encoded video emitted by an active
// recording, in arrival order.
type Chunk []byte

// Camera is a recordable video source.
type Camera interface {
	// Open acquires the device and starts its live preview. It fails with a
	// *DeviceError when the device is missing, busy, or access is denied.
	Open(ctx context.Context) (Stream, error)

	// ClipName is the filename advertised for uploads from this device,
	// matching the container its recordings produce.
	ClipName() string
}

// Stream is an acquired, previewing camera stream.
type Stream interface {
	// StartRecording begins encoding and delivers chunks to emit as they are
	// produced. Only one recording may be active at a time.
	StartRecording(emit func(Chunk)) (Recording, error)

	// Preview returns the live preview sink bound to this stream.
	Preview() *PreviewSink

	// Close releases the device, stopping every track. Safe to call more
	// than once.
	Close() error
}

// Recording is one in-progress capture on a Stream.
type Recording interface {
	// Stop ends the recording and flushes any final fragment. Safe to call
	// more than once.
	Stop(ctx context.Context) error

	// Err delivers device-reported failures that occur while recording.
	Err() <-chan error
}

// Settings describes the capture format requested from a device.
type Settings struct {
	VideoDevice string // v4l2 device path, empty for automatic selection
	Width       int
	Height      int
	Framerate   int
	BitrateKbps int
}

func (s *Settings) applyDefaults() {
	if s.Width <= 0 {
		s.Width = 640
	}
	if s.Height <= 0 {
		s.Height = 480
	}
	if s.Framerate <= 0 {
		s.Framerate = 30
	}
	if s.BitrateKbps <= 0 {
		s.BitrateKbps = 2500
	}
}

// DeviceError reports that a camera could not be acquired or failed while in
// use. It is the only error kind a Camera surfaces to callers.
type DeviceError struct {
	Reason string
	Err    error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture device: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("capture device: %s", e.Reason)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

func newDeviceError(reason string, err error) *DeviceError {
	return &DeviceError{Reason: reason, Err: err}
}

// ErrRecordingActive is returned by StartRecording when a recording is
// already in progress on the stream.
var ErrRecordingActive = errors.New("capture: recording already active")

// ErrStreamClosed is returned when operating on a released stream.
var ErrStreamClosed = errors.New("capture: stream is closed")
