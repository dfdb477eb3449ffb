// Package playback plays synthesized speech through a single, lazily opened
// audio output context.
//
// Speech is an enhancement: every failure on the playback path is wrapped in
// a [*PlaybackError], logged, reported to the optional error hook and then
// swallowed so that the interview keeps going without sound.
//
// Each call to [Engine.Play] starts a fresh one-shot source on the shared
// output context. There is no queue; overlapping calls overlap audibly and it
// is up to the caller to sequence utterances.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/MrWong99/carecoach/pkg/audio"
)

// Output format of synthesized speech.
const (
	SampleRate = 24000
	Channels   = 1
)

// State is the lifecycle state of an [OutputContext].
type State string

const (
	StateRunning   State = "running"
	StateSuspended State = "suspended"
	StateClosed    State = "closed"
)

// ErrPlayback is matched (via errors.Is) by every [*PlaybackError].
var ErrPlayback = errors.New("playback: failed")

// PlaybackError wraps a failure at one stage of playback.
type PlaybackError struct {
	// Op names the failing stage: "open", "resume", "decode" or "start".
	Op  string
	Err error
}

func (e *PlaybackError) Error() string { return fmt.Sprintf("playback: %s: %v", e.Op, e.Err) }

// Unwrap returns the underlying error.
func (e *PlaybackError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPlayback) succeed.
func (e *PlaybackError) Is(target error) bool { return target == ErrPlayback }

// OutputContext is an audio output device session.
//
// Implementations must be safe for concurrent use; Start may be called again
// while an earlier source is still playing.
type OutputContext interface {
	// State reports whether the context is running, suspended or closed.
	State() State

	// Resume moves a suspended context back to running.
	Resume(ctx context.Context) error

	// Start plays buf once on a new source and returns without waiting for
	// playback to finish.
	Start(ctx context.Context, buf *audio.Buffer) error

	// Close releases the output device. Subsequent calls are no-ops.
	Close() error
}

// Factory opens an output context with the given format.
type Factory func(ctx context.Context, sampleRate, channels int) (OutputContext, error)

// Option is a functional option for [New].
type Option func(*Engine)

// WithErrorHook registers fn to be called with every absorbed playback error.
func WithErrorHook(fn func(error)) Option {
	return func(e *Engine) { e.onError = fn }
}

// WithLogger overrides the logger used for absorbed errors.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Engine owns one output context and plays base64 PCM16 speech on it.
type Engine struct {
	factory Factory
	onError func(error)
	log     *slog.Logger

	mu  sync.Mutex
	out OutputContext
}

// New returns an Engine that opens its output context through factory on the
// first call to Play.
func New(factory Factory, opts ...Option) *Engine {
	e := &Engine{factory: factory, log: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Play decodes encoded (base64 PCM16, 24 kHz mono) and starts it on the
// output context. Blank input is ignored. Errors are absorbed.
func (e *Engine) Play(ctx context.Context, encoded string) {
	if strings.TrimSpace(encoded) == "" {
		return
	}
	if err := e.play(ctx, encoded); err != nil {
		e.log.Warn("playback: speech dropped", "err", err)
		if e.onError != nil {
			e.onError(err)
		}
	}
}

func (e *Engine) play(ctx context.Context, encoded string) error {
	out, err := e.output(ctx)
	if err != nil {
		return &PlaybackError{Op: "open", Err: err}
	}
	if out.State() == StateSuspended {
		if err := out.Resume(ctx); err != nil {
			return &PlaybackError{Op: "resume", Err: err}
		}
	}

	raw, err := audio.DecodeBase64(encoded)
	if err != nil {
		return &PlaybackError{Op: "decode", Err: err}
	}
	buf, err := audio.DecodeAudioData(raw, SampleRate, Channels)
	if err != nil {
		return &PlaybackError{Op: "decode", Err: err}
	}
	if err := out.Start(ctx, buf); err != nil {
		return &PlaybackError{Op: "start", Err: err}
	}
	return nil
}

// output returns the current context, opening a new one if none exists yet
// or the previous one was closed underneath us.
func (e *Engine) output(ctx context.Context) (OutputContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.out != nil && e.out.State() != StateClosed {
		return e.out, nil
	}
	if e.factory == nil {
		return nil, errors.New("no output factory configured")
	}
	out, err := e.factory(ctx, SampleRate, Channels)
	if err != nil {
		return nil, err
	}
	e.out = out
	return out, nil
}

// Close releases the output context if one was opened.
func (e *Engine) Close() error {
	e.mu.Lock()
	out := e.out
	e.out = nil
	e.mu.Unlock()
	if out == nil {
		return nil
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("playback: close: %w", err)
	}
	return nil
}
