//go:build portaudio

package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/MrWong99/carecoach/pkg/audio"
	"github.com/MrWong99/carecoach/pkg/capture"
	"github.com/MrWong99/carecoach/pkg/playback"
)

// Initialize loads the PortAudio host API. Call it once before opening any
// device and pair it with [Terminate].
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}
	return nil
}

// Terminate releases the PortAudio host API.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("portaudio: terminate: %w", err)
	}
	return nil
}

// ─── Microphone ─────────────────────────────────────────────────────────────

// Microphone opens the default input device as mono PCM16.
type Microphone struct {
	captureRate int
	uploadRate  int
	log         *slog.Logger
}

// NewMicrophone returns a microphone that captures at captureRate and
// records WAV at uploadRate.
func NewMicrophone(captureRate, uploadRate int, log *slog.Logger) *Microphone {
	if log == nil {
		log = slog.Default()
	}
	return &Microphone{captureRate: captureRate, uploadRate: uploadRate, log: log}
}

// Open starts the default input stream.
func (m *Microphone) Open(_ context.Context) (capture.Stream, error) {
	buf := make([]int16, framesPerBuffer(m.captureRate))
	s, err := portaudio.OpenDefaultStream(1, 0, float64(m.captureRate), len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open input: %w", err)
	}
	if err := s.Start(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("portaudio: start input: %w", err)
	}
	m.log.Debug("portaudio: input stream opened", "sample_rate", m.captureRate)
	return &inputStream{mic: m, stream: s, buf: buf, started: time.Now()}, nil
}

type inputStream struct {
	mic     *Microphone
	stream  *portaudio.Stream
	buf     []int16
	started time.Time

	closeOnce sync.Once
	closeErr  error
}

func (s *inputStream) SupportsFormat(mimeType string) bool { return supportsFormat(mimeType) }

func (s *inputStream) NewRecorder(mimeType string) (capture.Recorder, error) {
	if !supportsFormat(mimeType) {
		return nil, fmt.Errorf("portaudio: unsupported recorder format %q", mimeType)
	}
	return &recorder{
		stream: s,
		conv:   audio.NewConverter(audio.Format{SampleRate: s.mic.uploadRate, Channels: 1}, s.mic.log),
		chunks: make(chan []byte, 32),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

func (s *inputStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = errors.Join(s.stream.Stop(), s.stream.Close())
		if s.closeErr != nil {
			s.closeErr = fmt.Errorf("portaudio: close input: %w", s.closeErr)
		}
	})
	return s.closeErr
}

// recorder reads the input stream on its own goroutine and emits a WAV
// header chunk followed by PCM chunks at the upload rate.
type recorder struct {
	stream *inputStream
	conv   *audio.Converter
	chunks chan []byte

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func (r *recorder) MIMEType() string      { return MIMEType }
func (r *recorder) Chunks() <-chan []byte { return r.chunks }

func (r *recorder) Start() error {
	r.startOnce.Do(func() { go r.loop() })
	return nil
}

func (r *recorder) loop() {
	defer close(r.done)
	defer close(r.chunks)

	if !r.send(audio.WAVHeader(r.conv.Target().SampleRate, r.conv.Target().Channels, -1)) {
		return
	}
	for {
		select {
		case <-r.stop:
			return
		default:
		}
		if err := r.stream.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			r.stream.mic.log.Warn("portaudio: read input", "err", err)
			return
		}
		frame := r.conv.Convert(audio.Frame{
			Data:       pcm16LE(r.stream.buf),
			SampleRate: r.stream.mic.captureRate,
			Channels:   1,
			Timestamp:  time.Since(r.stream.started),
		})
		if len(frame.Data) == 0 {
			continue
		}
		if !r.send(frame.Data) {
			return
		}
	}
}

func (r *recorder) send(chunk []byte) bool {
	select {
	case r.chunks <- chunk:
		return true
	case <-r.stop:
		return false
	}
}

// Stop ends the read loop after the buffer in flight and waits for the chunk
// channel to close.
func (r *recorder) Stop() error {
	r.stopOnce.Do(func() { close(r.stop) })
	r.startOnce.Do(func() { close(r.chunks); close(r.done) })
	<-r.done
	return nil
}

// ─── Output ─────────────────────────────────────────────────────────────────

// Output is a [playback.OutputContext] on the default output device. Every
// Start opens a short-lived stream that plays one buffer and closes itself.
type Output struct {
	sampleRate int
	channels   int
	log        *slog.Logger

	mu      sync.Mutex
	state   playback.State
	closing chan struct{}
	wg      sync.WaitGroup
}

// NewOutput has the [playback.Factory] signature.
func NewOutput(_ context.Context, sampleRate, channels int) (playback.OutputContext, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("portaudio: invalid output format %d Hz x %d", sampleRate, channels)
	}
	return &Output{
		sampleRate: sampleRate,
		channels:   channels,
		log:        slog.Default(),
		state:      playback.StateRunning,
		closing:    make(chan struct{}),
	}, nil
}

func (o *Output) State() playback.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Output) Resume(_ context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == playback.StateClosed {
		return errors.New("portaudio: output closed")
	}
	o.state = playback.StateRunning
	return nil
}

func (o *Output) Start(_ context.Context, buf *audio.Buffer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == playback.StateClosed {
		return errors.New("portaudio: output closed")
	}
	if len(buf.Channels) != o.channels {
		return fmt.Errorf("portaudio: buffer has %d channels, output has %d", len(buf.Channels), o.channels)
	}

	out := make([]float32, framesPerBuffer(o.sampleRate)*o.channels)
	s, err := portaudio.OpenDefaultStream(0, o.channels, float64(o.sampleRate), len(out)/o.channels, out)
	if err != nil {
		return fmt.Errorf("portaudio: open output: %w", err)
	}
	if err := s.Start(); err != nil {
		_ = s.Close()
		return fmt.Errorf("portaudio: start output: %w", err)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if err := errors.Join(s.Stop(), s.Close()); err != nil {
				o.log.Warn("portaudio: close output", "err", err)
			}
		}()
		for offset := 0; offset < buf.Frames(); {
			select {
			case <-o.closing:
				return
			default:
			}
			offset += interleave(out, buf, offset)
			if err := s.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
				o.log.Warn("portaudio: write output", "err", err)
				return
			}
		}
	}()
	return nil
}

// Close stops any source still playing and waits for it to release the
// device.
func (o *Output) Close() error {
	o.mu.Lock()
	if o.state == playback.StateClosed {
		o.mu.Unlock()
		return nil
	}
	o.state = playback.StateClosed
	close(o.closing)
	o.mu.Unlock()
	o.wg.Wait()
	return nil
}

var (
	_ capture.Microphone     = (*Microphone)(nil)
	_ capture.Stream         = (*inputStream)(nil)
	_ capture.Recorder       = (*recorder)(nil)
	_ playback.OutputContext = (*Output)(nil)
	_ playback.Factory       = NewOutput
)
