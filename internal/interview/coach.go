package interview

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/carecoach/internal/observe"
	"github.com/MrWong99/carecoach/pkg/audio"
	"github.com/MrWong99/carecoach/pkg/capture"
	"github.com/MrWong99/carecoach/pkg/gateway"
)

var (
	// ErrBusy is returned when a gateway round trip is already in flight.
	ErrBusy = errors.New("interview: busy")

	// ErrRecording is returned when an action would leave a running
	// recording behind. Stop the recording first.
	ErrRecording = errors.New("interview: recording in progress")

	// ErrEmptyAnswer is returned for a blank text answer or a recording that
	// captured nothing.
	ErrEmptyAnswer = errors.New("interview: empty answer")
)

// Gateway is the subset of *gateway.Client the coach uses.
type Gateway interface {
	BeginSession(ctx context.Context, region gateway.Region, facility gateway.Facility) (gateway.Opening, error)
	EvaluateAnswer(ctx context.Context, req gateway.EvaluateRequest) (gateway.Evaluation, error)
	NextQuestion(ctx context.Context, region gateway.Region, history []gateway.HistoryEntry, nextIndex int) (string, error)
	SynthesizeSpeech(ctx context.Context, text string) string
}

// Player plays base64 PCM16 speech. Failures are handled by the player.
type Player interface {
	Play(ctx context.Context, encoded string)
	Close() error
}

// Recorder is a microphone capture controller such as *capture.Controller.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (audio.Blob, error)
	State() capture.State
	Permission() capture.Permission
	Elapsed() time.Duration
	Close() error
}

// Camera is a self-view preview such as *capture.Preview.
type Camera interface {
	Toggle(ctx context.Context) (bool, error)
	Active() bool
	Close() error
}

// NoticeKind classifies a [Notice].
type NoticeKind string

const (
	NoticeMicDenied     NoticeKind = "mic-denied"
	NoticeRetry         NoticeKind = "retry"
	NoticeCamera        NoticeKind = "camera"
	NoticeEmptyAnswer   NoticeKind = "empty-answer"
	NoticeConfigReload  NoticeKind = "config-reload"
	NoticeConfigInvalid NoticeKind = "config-invalid"
)

// Evaluated describes one scored answer.
type Evaluated struct {
	Region        gateway.Region
	Facility      gateway.Facility
	QuestionIndex int
	Question      string
	Answer        string
	Voice         bool
	Evaluation    gateway.Evaluation
}

// Notice is a user-facing message.
type Notice struct {
	Kind NoticeKind
	Text string
}

// Option configures a [Coach].
type Option func(*Coach)

// WithCamera attaches a self-view preview.
func WithCamera(cam Camera) Option {
	return func(c *Coach) { c.camera = cam }
}

// WithOnChange registers fn to receive every published snapshot.
func WithOnChange(fn func(Session)) Option {
	return func(c *Coach) { c.onChange = append(c.onChange, fn) }
}

// WithOnBusy registers fn to receive busy guard changes.
func WithOnBusy(fn func(bool)) Option {
	return func(c *Coach) { c.onBusy = append(c.onBusy, fn) }
}

// WithOnNotice registers fn to receive notices.
func WithOnNotice(fn func(Notice)) Option {
	return func(c *Coach) { c.onNotice = append(c.onNotice, fn) }
}

// WithOnEvaluated registers fn to receive every scored answer.
func WithOnEvaluated(fn func(Evaluated)) Option {
	return func(c *Coach) { c.onEvaluated = append(c.onEvaluated, fn) }
}

// WithMetrics overrides the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coach) { c.metrics = m }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coach) { c.log = l }
}

// Coach drives one interview. Mutating operations hold a single busy guard;
// a second call while one is in flight returns [ErrBusy] and changes nothing.
// Snapshots may be read from any goroutine.
type Coach struct {
	gw       Gateway
	player   Player
	recorder Recorder
	camera   Camera
	metrics  *observe.Metrics
	log      *slog.Logger

	onChange []func(Session)
	onBusy   []func(bool)
	onNotice []func(Notice)

	onEvaluated []func(Evaluated)

	guard   *semaphore.Weighted
	busy    atomic.Bool
	session atomic.Pointer[Session]

	micNoticeShown atomic.Bool
	closeOnce      sync.Once
}

// New returns a coach holding initial. recorder may be nil, in which case
// only text answers are possible.
func New(gw Gateway, player Player, recorder Recorder, initial Session, opts ...Option) *Coach {
	c := &Coach{
		gw:       gw,
		player:   player,
		recorder: recorder,
		log:      slog.Default(),
		guard:    semaphore.NewWeighted(1),
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	c.session.Store(&initial)
	return c
}

// Session returns the current snapshot.
func (c *Coach) Session() Session { return *c.session.Load() }

// Busy reports whether a guarded operation is in flight.
func (c *Coach) Busy() bool { return c.busy.Load() }

// Recording reports whether the microphone is capturing.
func (c *Coach) Recording() bool {
	return c.recorder != nil && c.recorder.State() == capture.StateRecording
}

// RecordingElapsed returns the length of the current recording.
func (c *Coach) RecordingElapsed() time.Duration {
	if c.recorder == nil {
		return 0
	}
	return c.recorder.Elapsed()
}

// MicPermission returns the microphone permission status.
func (c *Coach) MicPermission() capture.Permission {
	if c.recorder == nil {
		return capture.PermissionDenied
	}
	return c.recorder.Permission()
}

// CameraActive reports whether the self-view is on.
func (c *Coach) CameraActive() bool { return c.camera != nil && c.camera.Active() }

// acquire takes the busy guard or fails with ErrBusy.
func (c *Coach) acquire() error {
	if !c.guard.TryAcquire(1) {
		return ErrBusy
	}
	c.busy.Store(true)
	for _, fn := range c.onBusy {
		fn(true)
	}
	return nil
}

func (c *Coach) release() {
	c.busy.Store(false)
	c.guard.Release(1)
	for _, fn := range c.onBusy {
		fn(false)
	}
}

func (c *Coach) publish(s Session) {
	c.session.Store(&s)
	for _, fn := range c.onChange {
		fn(s)
	}
}

func (c *Coach) notify(kind NoticeKind, text string) {
	n := Notice{Kind: kind, Text: text}
	c.log.Info("interview: notice", "kind", kind, "text", text)
	for _, fn := range c.onNotice {
		fn(n)
	}
}

// Notify forwards an externally produced notice to the observers.
func (c *Coach) Notify(kind NoticeKind, text string) { c.notify(kind, text) }

// SelectRegion changes the region during setup.
func (c *Coach) SelectRegion(r gateway.Region) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()
	next, err := SelectRegion(c.Session(), r)
	if err != nil {
		return err
	}
	c.publish(next)
	return nil
}

// SelectFacility changes the facility during setup.
func (c *Coach) SelectFacility(f gateway.Facility) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()
	next, err := SelectFacility(c.Session(), f)
	if err != nil {
		return err
	}
	c.publish(next)
	return nil
}

// Start fetches the opening line and enters the interviewing step.
func (c *Coach) Start(ctx context.Context) (err error) {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	s := c.Session()
	if s.Step != StepSetup {
		return &StepError{Op: "start", Step: s.Step}
	}
	ctx, span := observe.StartSpan(ctx, "interview.start",
		attribute.String("interview.region", string(s.Region)),
		attribute.String("interview.facility", string(s.Facility)),
	)
	defer func() { observe.EndSpan(span, err) }()

	opening, err := c.gw.BeginSession(ctx, s.Region, s.Facility)
	if err != nil {
		c.logger(ctx).Error("interview: begin session failed", "region", s.Region, "err", err)
		c.notify(NoticeRetry, "Could not reach the coach. Please try again.")
		return err
	}
	turn := c.coachTurn(ctx, opening.Line)
	next, err := Begin(s, turn)
	if err != nil {
		return err
	}
	c.publish(next)
	c.metrics.RecordSession(ctx, string(s.Region))
	c.metrics.RecordTurn(ctx, string(gateway.SpeakerCoach), "")
	c.player.Play(ctx, turn.Speech)
	return nil
}

// SubmitText answers the current question with typed text.
func (c *Coach) SubmitText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyAnswer
	}
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()
	if c.Recording() {
		return ErrRecording
	}

	next, err := AppendCandidate(c.Session(), text, false)
	if err != nil {
		return err
	}
	c.publish(next)
	c.metrics.RecordTurn(ctx, string(gateway.SpeakerCandidate), "text")
	return c.evaluate(ctx, next, text, nil)
}

// StartRecording opens the microphone. A denial is surfaced once as a
// notice; text answers keep working.
func (c *Coach) StartRecording(ctx context.Context) error {
	if c.recorder == nil {
		c.micDenied()
		return &capture.PermissionError{Device: "microphone", Err: errors.New("no microphone configured")}
	}
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	if s := c.Session(); s.Step != StepInterviewing {
		return &StepError{Op: "record", Step: s.Step}
	}
	if err := c.recorder.Start(ctx); err != nil {
		if errors.Is(err, capture.ErrPermissionDenied) {
			c.micDenied()
		}
		return err
	}
	c.metrics.ActiveRecordings.Add(ctx, 1)
	return nil
}

func (c *Coach) micDenied() {
	if c.micNoticeShown.CompareAndSwap(false, true) {
		c.notify(NoticeMicDenied, "Mic access denied. Please type your answer.")
	}
}

// StopRecording finishes the recording and submits it as a voice answer.
func (c *Coach) StopRecording(ctx context.Context) error {
	if c.recorder == nil {
		return capture.ErrNotRecording
	}
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	elapsed := c.recorder.Elapsed()
	blob, err := c.recorder.Stop(ctx)
	if errors.Is(err, capture.ErrNotRecording) {
		return err
	}
	c.metrics.ActiveRecordings.Add(ctx, -1)
	if err != nil {
		c.log.Error("interview: stop recording failed", "err", err)
		c.notify(NoticeRetry, "The recording failed. Please try again.")
		return err
	}
	c.metrics.RecordRecording(ctx, elapsed)
	if blob.Empty() {
		c.notify(NoticeEmptyAnswer, "Nothing was recorded. Please try again.")
		return ErrEmptyAnswer
	}

	next, err := AppendCandidate(c.Session(), "", true)
	if err != nil {
		return err
	}
	c.publish(next)
	c.metrics.RecordTurn(ctx, string(gateway.SpeakerCandidate), "voice")
	return c.evaluate(ctx, next, "", &blob)
}

// ToggleRecording starts or stops the recording.
func (c *Coach) ToggleRecording(ctx context.Context) error {
	if c.Recording() {
		return c.StopRecording(ctx)
	}
	return c.StartRecording(ctx)
}

// evaluate runs the evaluation round trip for the answer just appended to s.
// Must be called with the guard held.
func (c *Coach) evaluate(ctx context.Context, s Session, answer string, blob *audio.Blob) (err error) {
	ctx, span := observe.StartSpan(ctx, "interview.evaluate",
		attribute.Int("interview.question", s.QuestionIndex),
		attribute.Bool("interview.voice", blob != nil),
	)
	defer func() { observe.EndSpan(span, err) }()

	ev, err := c.gw.EvaluateAnswer(ctx, gateway.EvaluateRequest{
		Region:        s.Region,
		Facility:      s.Facility,
		Answer:        answer,
		History:       s.History(),
		QuestionIndex: s.QuestionIndex,
		Audio:         blob,
	})
	if err != nil {
		c.logger(ctx).Error("interview: evaluation failed", "question", s.QuestionIndex, "voice", blob != nil, "err", err)
		c.publish(FailEvaluation(c.Session()))
		c.notify(NoticeRetry, "Your answer could not be analysed. Please try again.")
		return err
	}

	reaction := c.coachTurn(ctx, ev.Reaction)
	next, err := ResolveEvaluation(c.Session(), ev, reaction)
	if err != nil {
		c.publish(FailEvaluation(c.Session()))
		return err
	}
	c.publish(next)
	c.metrics.RecordTurn(ctx, string(gateway.SpeakerCoach), "")
	c.evaluated(s, answer, blob != nil, ev)
	c.logger(ctx).Info("interview: answer evaluated", "question", s.QuestionIndex, "score", ev.Score, "step", next.Step)
	c.player.Play(ctx, reaction.Speech)
	return nil
}

func (c *Coach) evaluated(s Session, answer string, voice bool, ev gateway.Evaluation) {
	if len(c.onEvaluated) == 0 {
		return
	}
	e := Evaluated{
		Region:        s.Region,
		Facility:      s.Facility,
		QuestionIndex: s.QuestionIndex,
		Answer:        answer,
		Voice:         voice,
		Evaluation:    ev,
	}
	if q, ok := s.LastCoachTurn(); ok {
		e.Question = q.Text
	}
	if voice {
		e.Answer = ev.Transcription
	}
	for _, fn := range c.onEvaluated {
		fn(e)
	}
}

// Advance asks for the next question.
func (c *Coach) Advance(ctx context.Context) (err error) {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()
	if c.Recording() {
		return ErrRecording
	}

	s := c.Session()
	if s.Step != StepAwaitingNext || s.QuestionIndex >= s.TotalQuestions {
		return &StepError{Op: "advance", Step: s.Step}
	}
	ctx, span := observe.StartSpan(ctx, "interview.advance",
		attribute.Int("interview.question", s.QuestionIndex+1),
	)
	defer func() { observe.EndSpan(span, err) }()

	q, err := c.gw.NextQuestion(ctx, s.Region, s.History(), s.QuestionIndex+1)
	if err != nil {
		c.logger(ctx).Error("interview: next question failed", "next", s.QuestionIndex+1, "err", err)
		c.notify(NoticeRetry, "Could not load the next question. Please try again.")
		return err
	}
	turn := c.coachTurn(ctx, q)
	next, err := Advance(s, turn)
	if err != nil {
		return err
	}
	c.publish(next)
	c.metrics.RecordTurn(ctx, string(gateway.SpeakerCoach), "")
	c.player.Play(ctx, turn.Speech)
	return nil
}

// logger returns the coach logger tagged with the span in ctx.
func (c *Coach) logger(ctx context.Context) *slog.Logger { return observe.Logger(ctx, c.log) }

// coachTurn synthesizes speech for text before the turn is committed.
func (c *Coach) coachTurn(ctx context.Context, text string) Turn {
	return Turn{
		Speaker:    gateway.SpeakerCoach,
		Text:       text,
		Speech:     c.gw.SynthesizeSpeech(ctx, text),
		Expression: gateway.StageDirection(text),
	}
}

// Replay plays the speech of transcript entry i again. It reports whether
// there was anything to play.
func (c *Coach) Replay(ctx context.Context, i int) bool {
	s := c.Session()
	if i < 0 || i >= len(s.Transcript) || s.Transcript[i].Speech == "" {
		return false
	}
	c.player.Play(ctx, s.Transcript[i].Speech)
	return true
}

// ReplayLast plays the most recent coach turn's speech again.
func (c *Coach) ReplayLast(ctx context.Context) bool {
	s := c.Session()
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Speaker == gateway.SpeakerCoach {
			return c.Replay(ctx, i)
		}
	}
	return false
}

// ToggleCamera switches the self-view on or off.
func (c *Coach) ToggleCamera(ctx context.Context) (bool, error) {
	if c.camera == nil {
		c.notify(NoticeCamera, "No camera is configured.")
		return false, &capture.PermissionError{Device: "camera", Err: errors.New("no camera configured")}
	}
	on, err := c.camera.Toggle(ctx)
	if err != nil {
		c.notify(NoticeCamera, "The camera could not be turned on. Check its permissions.")
	}
	return on, err
}

// Reset discards the interview and returns to setup. A running recording is
// stopped and dropped.
func (c *Coach) Reset(ctx context.Context) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	if c.Recording() {
		if _, err := c.recorder.Stop(ctx); err != nil {
			c.log.Warn("interview: discarding recording failed", "err", err)
		}
		c.metrics.ActiveRecordings.Add(ctx, -1)
	}
	c.publish(Reset(c.Session()))
	return nil
}

// Close releases the microphone, camera and audio output.
func (c *Coach) Close() error {
	var errs []error
	c.closeOnce.Do(func() {
		if c.recorder != nil {
			errs = append(errs, c.recorder.Close())
		}
		if c.camera != nil {
			errs = append(errs, c.camera.Close())
		}
		errs = append(errs, c.player.Close())
	})
	return errors.Join(errs...)
}
