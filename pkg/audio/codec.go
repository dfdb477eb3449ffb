package audio

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrFormat is matched (via errors.Is) by every [*FormatError].
var ErrFormat = errors.New("audio: invalid encoding")

// ErrConversion is matched (via errors.Is) by every [*ConversionError].
var ErrConversion = errors.New("audio: blob conversion failed")

// FormatError reports encoded audio that could not be decoded.
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string { return fmt.Sprintf("audio: invalid encoding: %v", e.Err) }

// Unwrap returns the underlying decode error.
func (e *FormatError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFormat) succeed.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// ConversionError reports a failed read while turning a recording into text.
type ConversionError struct {
	Err error
}

func (e *ConversionError) Error() string { return fmt.Sprintf("audio: blob conversion failed: %v", e.Err) }

// Unwrap returns the underlying read error.
func (e *ConversionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrConversion) succeed.
func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

// EncodeBase64 returns the standard base64 encoding of data.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes standard base64 text. Invalid input yields a
// [*FormatError].
func DecodeBase64(text string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, &FormatError{Err: err}
	}
	return raw, nil
}

// BlobToBase64 drains r and returns its base64 encoding. A read failure or a
// cancelled ctx yields a [*ConversionError].
func BlobToBase64(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ConversionError{Err: err}
	}
	var buf bytes.Buffer
	enc := base64.NewEncoder(base64.StdEncoding, &buf)
	if _, err := io.Copy(enc, ctxReader{ctx: ctx, r: r}); err != nil {
		return "", &ConversionError{Err: err}
	}
	if err := enc.Close(); err != nil {
		return "", &ConversionError{Err: err}
	}
	return buf.String(), nil
}

// ctxReader aborts a copy once its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Buffer is a decoded, playable waveform: one slice of normalised samples per
// channel, all of equal length.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// Frames returns the number of sample frames in the buffer.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Channel returns the samples of channel ch.
func (b *Buffer) Channel(ch int) []float32 {
	return b.Channels[ch]
}

// DecodeAudioData interprets data as signed 16-bit little-endian PCM with
// channels interleaved channels and returns one normalised slice per channel.
// Each sample is divided by 32768. Trailing bytes that do not make up a full
// frame are dropped; an empty input yields a zero-frame buffer.
func DecodeAudioData(data []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: decode: invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("audio: decode: invalid channel count %d", channels)
	}

	frameSize := channels * 2
	frames := len(data) / frameSize

	buf := &Buffer{
		SampleRate: sampleRate,
		Channels:   make([][]float32, channels),
	}
	for ch := range channels {
		out := make([]float32, frames)
		for i := range frames {
			off := (i*channels + ch) * 2
			s := int16(binary.LittleEndian.Uint16(data[off:]))
			out[i] = float32(s) / 32768.0
		}
		buf.Channels[ch] = out
	}
	return buf, nil
}
