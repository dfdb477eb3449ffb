//go:build !portaudio

package portaudio

import (
	"context"
	"log/slog"

	"github.com/MrWong99/carecoach/pkg/capture"
	"github.com/MrWong99/carecoach/pkg/playback"
)

// Initialize is a no-op without PortAudio support.
func Initialize() error { return nil }

// Terminate is a no-op without PortAudio support.
func Terminate() error { return nil }

// Microphone refuses every Open with [ErrUnavailable].
type Microphone struct {
	log *slog.Logger
}

// NewMicrophone returns a microphone that is never available.
func NewMicrophone(_, _ int, log *slog.Logger) *Microphone {
	if log == nil {
		log = slog.Default()
	}
	return &Microphone{log: log}
}

func (m *Microphone) Open(_ context.Context) (capture.Stream, error) {
	m.log.Debug("portaudio: built without the portaudio tag, microphone unavailable")
	return nil, ErrUnavailable
}

// NewOutput always fails with [ErrUnavailable].
func NewOutput(_ context.Context, _, _ int) (playback.OutputContext, error) {
	return nil, ErrUnavailable
}

var (
	_ capture.Microphone = (*Microphone)(nil)
	_ playback.Factory   = NewOutput
)
