// Package mock provides a test double for the playback.OutputContext
// interface.
//
// Example:
//
//	out := &mock.Output{StateValue: playback.StateSuspended}
//	eng := playback.New(out.Factory())
//	eng.Play(ctx, encoded)
//	// out.ResumeCalls == 1, len(out.Started) == 1
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/carecoach/pkg/audio"
	"github.com/MrWong99/carecoach/pkg/playback"
)

// Output is a mock implementation of playback.OutputContext.
type Output struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// StateValue is returned by State. The zero value is treated as running.
	StateValue playback.State

	// ResumeErr, if non-nil, is returned from Resume.
	ResumeErr error

	// StartErr, if non-nil, is returned from Start.
	StartErr error

	// --- Call records ---

	// ResumeCalls counts calls to Resume.
	ResumeCalls int

	// Started records every buffer passed to Start.
	Started []*audio.Buffer

	// CloseCalls counts calls to Close.
	CloseCalls int
}

// State returns StateValue, defaulting to running.
func (o *Output) State() playback.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.StateValue == "" {
		return playback.StateRunning
	}
	return o.StateValue
}

// Resume records the call and, on success, sets the state to running.
func (o *Output) Resume(_ context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ResumeCalls++
	if o.ResumeErr != nil {
		return o.ResumeErr
	}
	o.StateValue = playback.StateRunning
	return nil
}

// Start records buf and returns StartErr.
func (o *Output) Start(_ context.Context, buf *audio.Buffer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.StartErr != nil {
		return o.StartErr
	}
	o.Started = append(o.Started, buf)
	return nil
}

// Close records the call and marks the output closed.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.CloseCalls++
	o.StateValue = playback.StateClosed
	return nil
}

// StartCount returns the number of buffers started so far.
func (o *Output) StartCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.Started)
}

// Factory returns a playback.Factory that always hands out o.
func (o *Output) Factory() playback.Factory {
	return func(context.Context, int, int) (playback.OutputContext, error) {
		return o, nil
	}
}

var _ playback.OutputContext = (*Output)(nil)
