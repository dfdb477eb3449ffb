// Package audio holds the PCM primitives shared by capture, playback and the
// AI gateway: raw frame types, format conversion, WAV framing and the
// base64/PCM16 codec used to move speech between the remote service and the
// local output device.
package audio

import "time"

// Frame is a chunk of signed 16-bit little-endian PCM as delivered by a
// capture device.
type Frame struct {
	// PCM audio data.
	Data []byte

	// SampleRate in Hz (e.g., 48000 for a typical device, 16000 for upload).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Blob is a finished recording: the complete encoded payload together with
// the container format it was recorded in.
type Blob struct {
	// Data is the encoded audio, e.g. a WAV file or a WebM stream.
	Data []byte

	// MIMEType identifies the container, e.g. "audio/wav".
	MIMEType string
}

// Empty reports whether the blob carries no audio.
func (b Blob) Empty() bool { return len(b.Data) == 0 }
