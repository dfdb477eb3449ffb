// Package mock provides test doubles for the capture.Microphone and
// capture.Camera interfaces.
//
// Microphone hands out a fresh Stream per Open call. Each Stream's recorder
// emits the configured chunks when it is stopped, which mirrors how device
// recorders flush their final buffer on stop.
//
// Example:
//
//	mic := &mock.Microphone{
//	    Supported: []string{"audio/wav"},
//	    Chunks:    [][]byte{[]byte("a"), []byte("b")},
//	}
//	ctl := capture.NewController(mic)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/carecoach/pkg/capture"
)

// Microphone is a mock implementation of capture.Microphone.
type Microphone struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// OpenErr, if non-nil, is returned from Open.
	OpenErr error

	// Supported lists the MIME types streams report as supported.
	Supported []string

	// DefaultMIME is used when a recorder is created with an empty type.
	DefaultMIME string

	// Chunks are emitted by every recorder when it stops.
	Chunks [][]byte

	// RecorderErr, if non-nil, is returned from Stream.NewRecorder.
	RecorderErr error

	// StopErr, if non-nil, is returned from Recorder.Stop.
	StopErr error

	// HoldChunks makes Recorder.Stop return without flushing or closing the
	// chunk channel, like a device that fails mid-flush.
	HoldChunks bool

	// --- Call records ---

	// OpenCalls counts calls to Open.
	OpenCalls int

	// Streams holds every stream handed out by Open.
	Streams []*Stream
}

// Open records the call and returns a new Stream unless OpenErr is set.
func (m *Microphone) Open(_ context.Context) (capture.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpenCalls++
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	s := &Stream{mic: m}
	m.Streams = append(m.Streams, s)
	return s, nil
}

// OpenStreams returns how many handed-out streams have not been closed.
func (m *Microphone) OpenStreams() int {
	m.mu.Lock()
	streams := append([]*Stream(nil), m.Streams...)
	m.mu.Unlock()
	n := 0
	for _, s := range streams {
		if !s.IsClosed() {
			n++
		}
	}
	return n
}

// Stream is a mock capture.Stream.
type Stream struct {
	mic *Microphone

	mu        sync.Mutex
	closed    bool
	Recorders []*Recorder
}

// SupportsFormat reports whether mimeType is in the microphone's Supported list.
func (s *Stream) SupportsFormat(mimeType string) bool {
	s.mic.mu.Lock()
	defer s.mic.mu.Unlock()
	for _, f := range s.mic.Supported {
		if f == mimeType {
			return true
		}
	}
	return false
}

// NewRecorder returns a Recorder that emits the microphone's Chunks on Stop.
func (s *Stream) NewRecorder(mimeType string) (capture.Recorder, error) {
	s.mic.mu.Lock()
	if s.mic.RecorderErr != nil {
		err := s.mic.RecorderErr
		s.mic.mu.Unlock()
		return nil, err
	}
	if mimeType == "" {
		mimeType = s.mic.DefaultMIME
	}
	chunks := make([][]byte, len(s.mic.Chunks))
	for i, c := range s.mic.Chunks {
		chunks[i] = append([]byte(nil), c...)
	}
	stopErr, hold := s.mic.StopErr, s.mic.HoldChunks
	s.mic.mu.Unlock()

	r := &Recorder{mime: mimeType, chunks: chunks, stopErr: stopErr, hold: hold, ch: make(chan []byte, len(chunks))}
	s.mu.Lock()
	s.Recorders = append(s.Recorders, r)
	s.mu.Unlock()
	return r, nil
}

// Close marks the stream closed.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (s *Stream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Recorder is a mock capture.Recorder.
type Recorder struct {
	mime    string
	chunks  [][]byte
	stopErr error
	hold    bool
	ch      chan []byte

	mu      sync.Mutex
	started bool
	stopped bool
}

// MIMEType returns the format the recorder was created with.
func (r *Recorder) MIMEType() string { return r.mime }

// Start marks the recorder started.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	return nil
}

// Chunks returns the chunk channel.
func (r *Recorder) Chunks() <-chan []byte { return r.ch }

// Stop flushes the configured chunks and closes the channel. Repeated calls
// are no-ops.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil
	}
	r.stopped = true
	if r.hold {
		return r.stopErr
	}
	for _, c := range r.chunks {
		r.ch <- c
	}
	close(r.ch)
	return r.stopErr
}

// Camera is a mock implementation of capture.Camera.
type Camera struct {
	mu sync.Mutex

	// OpenErr, if non-nil, is returned from Open.
	OpenErr error

	// OpenCalls counts calls to Open.
	OpenCalls int

	// Feeds holds every feed handed out by Open.
	Feeds []*Feed
}

// Open records the call and returns a new Feed unless OpenErr is set.
func (c *Camera) Open(_ context.Context) (capture.Feed, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.OpenCalls++
	if c.OpenErr != nil {
		return nil, c.OpenErr
	}
	f := &Feed{}
	c.Feeds = append(c.Feeds, f)
	return f, nil
}

// Feed is a mock capture.Feed.
type Feed struct {
	mu     sync.Mutex
	closed bool
}

// Name returns a fixed device name.
func (f *Feed) Name() string { return "mock-camera" }

// Close marks the feed closed.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (f *Feed) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

var (
	_ capture.Microphone = (*Microphone)(nil)
	_ capture.Stream     = (*Stream)(nil)
	_ capture.Recorder   = (*Recorder)(nil)
	_ capture.Camera     = (*Camera)(nil)
	_ capture.Feed       = (*Feed)(nil)
)
