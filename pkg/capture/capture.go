// Package capture owns the microphone and camera for the duration of a
// recording or preview.
//
// [Controller] drives one voice recording at a time through the states
// idle, requesting-permission, recording and stopping. A recording is
// modelled as a finite chunk collector: the device recorder pushes encoded
// chunks on a channel, a collector goroutine gathers them, and [Controller.Stop]
// synchronously waits for the collector to finish before assembling the
// final [audio.Blob]. Every device handle is released on stop, on error and
// on [Controller.Close].
//
// Any failure to acquire a device is reported as a permission denial,
// matching what users see when the operating system or browser refuses
// access.
package capture

import (
	"context"
	"errors"
	"fmt"
)

// State is the lifecycle state of a [Controller].
type State string

const (
	StateIdle                 State = "idle"
	StateRequestingPermission State = "requesting-permission"
	StateRecording            State = "recording"
	StateStopping             State = "stopping"
)

// Permission records the outcome of the most recent device request.
type Permission string

const (
	PermissionNotYetAsked Permission = "not-yet-asked"
	PermissionGranted     Permission = "granted"
	PermissionDenied      Permission = "denied"
)

var (
	// ErrPermissionDenied is matched (via errors.Is) by every [*PermissionError].
	ErrPermissionDenied = errors.New("capture: permission denied")

	// ErrAlreadyActive is returned by Start when a recording is already in
	// progress or being set up.
	ErrAlreadyActive = errors.New("capture: recording already active")

	// ErrNotRecording is returned by Stop when nothing is being recorded.
	ErrNotRecording = errors.New("capture: not recording")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("capture: controller closed")
)

// PermissionError reports that a device could not be acquired.
type PermissionError struct {
	// Device is "microphone" or "camera".
	Device string
	Err    error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("capture: %s permission denied: %v", e.Device, e.Err)
}

// Unwrap returns the device error.
func (e *PermissionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPermissionDenied) succeed.
func (e *PermissionError) Is(target error) bool { return target == ErrPermissionDenied }

// Microphone grants access to an audio input device.
type Microphone interface {
	// Open acquires the device. A non-nil error means access was refused or
	// no device is available.
	Open(ctx context.Context) (Stream, error)
}

// Stream is a live, exclusively owned microphone stream.
type Stream interface {
	// SupportsFormat reports whether a recorder can produce mimeType.
	SupportsFormat(mimeType string) bool

	// NewRecorder creates a recorder producing mimeType. An empty mimeType
	// lets the stream choose its default container.
	NewRecorder(mimeType string) (Recorder, error)

	// Close stops the stream and releases the device.
	Close() error
}

// Recorder encodes a stream into chunks.
type Recorder interface {
	// MIMEType returns the container the recorder produces.
	MIMEType() string

	// Start begins recording. Chunks become available on Chunks.
	Start() error

	// Chunks delivers encoded data in order. The channel is closed after
	// the final chunk once Stop has been called.
	Chunks() <-chan []byte

	// Stop finalizes the recording. It flushes any buffered data to Chunks
	// and then closes the channel.
	Stop() error
}

// DefaultFormats is the recorder container preference order.
var DefaultFormats = []string{"audio/webm", "audio/mp4", "audio/wav"}
