package capture

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/carecoach/pkg/audio"
)

// Option is a functional option for [NewController].
type Option func(*Controller)

// WithFormats overrides the container preference order.
func WithFormats(formats ...string) Option {
	return func(c *Controller) { c.formats = formats }
}

// WithTickInterval sets the elapsed-time resolution. Defaults to one second.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) { c.tickInterval = d }
}

// WithTickHandler registers fn to be called with the elapsed recording time
// on every tick.
func WithTickHandler(fn func(elapsed time.Duration)) Option {
	return func(c *Controller) { c.onTick = fn }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// Controller records one voice answer at a time. It is safe for concurrent
// use.
type Controller struct {
	mic          Microphone
	formats      []string
	tickInterval time.Duration
	onTick       func(time.Duration)
	log          *slog.Logger

	mu         sync.Mutex
	state      State
	permission Permission
	closed     bool
	elapsed    time.Duration
	session    *recording
}

// recording is everything owned by one capture session.
type recording struct {
	stream      Stream
	recorder    Recorder
	collected   chan [][]byte
	abandon     chan struct{}
	collectDone chan struct{}
	stopTick    chan struct{}
	tickDone    chan struct{}
	startedAt   time.Time
}

// abort stops the collector without waiting for the recorder to close its
// chunk channel.
func (r *recording) abort() {
	close(r.abandon)
	<-r.collectDone
}

// NewController returns an idle controller backed by mic.
func NewController(mic Microphone, opts ...Option) *Controller {
	c := &Controller{
		mic:          mic,
		formats:      DefaultFormats,
		tickInterval: time.Second,
		log:          slog.Default(),
		state:        StateIdle,
		permission:   PermissionNotYetAsked,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Permission returns the outcome of the most recent microphone request.
func (c *Controller) Permission() Permission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.permission
}

// Elapsed returns the recording time counted so far, at tick resolution.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Start acquires the microphone and begins recording. It fails with
// [ErrAlreadyActive] unless the controller is idle. If the microphone cannot
// be acquired the permission becomes denied and the returned error matches
// [ErrPermissionDenied].
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	c.state = StateRequestingPermission
	c.elapsed = 0
	c.mu.Unlock()

	stream, err := c.mic.Open(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.permission = PermissionDenied
		c.mu.Unlock()
		c.log.Warn("capture: microphone unavailable", "err", err)
		return &PermissionError{Device: "microphone", Err: err}
	}

	rec, err := c.begin(stream)
	if err != nil {
		if cerr := stream.Close(); cerr != nil {
			c.log.Warn("capture: release microphone", "err", cerr)
		}
		c.mu.Lock()
		c.state = StateIdle
		c.permission = PermissionGranted
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.permission = PermissionGranted
	if c.closed {
		c.mu.Unlock()
		c.teardown(rec)
		return ErrClosed
	}
	c.session = rec
	c.state = StateRecording
	c.mu.Unlock()

	c.log.Debug("capture: recording started", "format", rec.recorder.MIMEType())
	return nil
}

// begin creates and starts a recorder on stream along with its collector.
func (c *Controller) begin(stream Stream) (*recording, error) {
	mime := ""
	for _, f := range c.formats {
		if stream.SupportsFormat(f) {
			mime = f
			break
		}
	}
	recorder, err := stream.NewRecorder(mime)
	if err != nil {
		return nil, fmt.Errorf("capture: create recorder %q: %w", mime, err)
	}
	if err := recorder.Start(); err != nil {
		return nil, fmt.Errorf("capture: start recorder: %w", err)
	}

	rec := &recording{
		stream:    stream,
		recorder:  recorder,
		collected:   make(chan [][]byte, 1),
		abandon:     make(chan struct{}),
		collectDone: make(chan struct{}),
		stopTick:    make(chan struct{}),
		tickDone:    make(chan struct{}),
		startedAt:   time.Now(),
	}
	go func() {
		defer close(rec.collectDone)
		var chunks [][]byte
		for {
			select {
			case chunk, ok := <-recorder.Chunks():
				if !ok {
					rec.collected <- chunks
					return
				}
				if len(chunk) > 0 {
					chunks = append(chunks, chunk)
				}
			case <-rec.abandon:
				return
			}
		}
	}()
	go c.tick(rec)
	return rec, nil
}

func (c *Controller) tick(rec *recording) {
	defer close(rec.tickDone)
	t := time.NewTicker(c.tickInterval)
	defer t.Stop()
	for {
		select {
		case <-rec.stopTick:
			return
		case <-t.C:
			c.mu.Lock()
			c.elapsed += c.tickInterval
			elapsed := c.elapsed
			c.mu.Unlock()
			if c.onTick != nil {
				c.onTick(elapsed)
			}
		}
	}
}

// Stop finalizes the recording and returns the assembled blob. It fails with
// [ErrNotRecording] unless a recording is in progress. The microphone is
// released and the tick cleared on every path.
func (c *Controller) Stop(ctx context.Context) (audio.Blob, error) {
	c.mu.Lock()
	if c.state != StateRecording || c.session == nil {
		c.mu.Unlock()
		return audio.Blob{}, ErrNotRecording
	}
	rec := c.session
	c.state = StateStopping
	c.mu.Unlock()

	blob, err := c.finish(ctx, rec)

	c.mu.Lock()
	c.session = nil
	c.elapsed = 0
	c.state = StateIdle
	c.mu.Unlock()
	return blob, err
}

// finish stops the recorder, waits for every chunk and releases rec.
func (c *Controller) finish(ctx context.Context, rec *recording) (audio.Blob, error) {
	close(rec.stopTick)
	<-rec.tickDone
	defer func() {
		if err := rec.stream.Close(); err != nil {
			c.log.Warn("capture: release microphone", "err", err)
		}
	}()

	if err := rec.recorder.Stop(); err != nil {
		rec.abort()
		return audio.Blob{}, fmt.Errorf("capture: stop recorder: %w", err)
	}

	var chunks [][]byte
	select {
	case chunks = <-rec.collected:
	case <-ctx.Done():
		rec.abort()
		return audio.Blob{}, fmt.Errorf("capture: collect chunks: %w", ctx.Err())
	}

	blob := audio.Blob{
		Data:     bytes.Join(chunks, nil),
		MIMEType: rec.recorder.MIMEType(),
	}
	if strings.HasPrefix(blob.MIMEType, "audio/wav") && len(blob.Data) > 0 {
		if err := audio.FinalizeWAV(blob.Data); err != nil {
			c.log.Warn("capture: recording has no canonical wav header", "err", err)
		}
	}
	c.log.Debug("capture: recording stopped",
		"format", blob.MIMEType,
		"bytes", len(blob.Data),
		"duration", time.Since(rec.startedAt),
	)
	return blob, nil
}

// teardown releases rec without assembling a blob.
func (c *Controller) teardown(rec *recording) {
	close(rec.stopTick)
	<-rec.tickDone
	if err := rec.recorder.Stop(); err != nil {
		c.log.Warn("capture: stop recorder", "err", err)
	}
	rec.abort()
	if err := rec.stream.Close(); err != nil {
		c.log.Warn("capture: release microphone", "err", err)
	}
}

// Close discards any recording in progress and releases the microphone.
// The controller cannot be restarted afterwards.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	rec := c.session
	c.session = nil
	c.state = StateIdle
	c.elapsed = 0
	c.mu.Unlock()

	if rec != nil {
		c.teardown(rec)
	}
	return nil
}
