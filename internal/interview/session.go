// Package interview is the interview session state machine.
//
// A [Session] is an immutable snapshot: the transition functions in this file
// ([SelectRegion], [SelectFacility], [Begin], [AppendCandidate],
// [ResolveEvaluation], [FailEvaluation], [Advance] and [Reset]) take a
// snapshot and return a new one without touching the input. [Coach] owns the
// current snapshot and drives it with the gateway, the capture controller and
// the playback engine while holding a single busy guard.
//
// Step flow:
//
//	setup -> interviewing -> awaiting_next -> interviewing -> ... -> finished
package interview

import (
	"errors"
	"fmt"
	"slices"

	"github.com/MrWong99/carecoach/pkg/gateway"
)

// Step is the session's position in the interview.
type Step string

const (
	StepSetup        Step = "setup"
	StepInterviewing Step = "interviewing"
	StepAwaitingNext Step = "awaiting_next"
	StepFinished     Step = "finished"
)

const (
	// PendingText is shown for a voice answer while it is being transcribed.
	PendingText = "Transcribing your voice..."

	// TranscriptionErrorText replaces a pending answer whose evaluation failed.
	TranscriptionErrorText = "(Error in transcription)"

	// UntranscribedText replaces a pending answer when the evaluation came back
	// without a transcription.
	UntranscribedText = "(Voice answer)"
)

var (
	// ErrInvalidStep reports an operation that the current step does not allow.
	ErrInvalidStep = errors.New("interview: operation not allowed in current step")

	// ErrInvalidChoice reports an unknown region or facility.
	ErrInvalidChoice = errors.New("interview: invalid choice")

	// ErrPendingTurn reports an attempt to add an answer while another one is
	// still being transcribed.
	ErrPendingTurn = errors.New("interview: a turn is still pending")
)

// StepError wraps [ErrInvalidStep] with the operation and the step it was
// attempted in.
type StepError struct {
	Op   string
	Step Step
}

func (e *StepError) Error() string {
	return fmt.Sprintf("interview: %s not allowed in step %s", e.Op, e.Step)
}

// Is makes errors.Is(err, ErrInvalidStep) succeed.
func (e *StepError) Is(target error) bool { return target == ErrInvalidStep }

// Turn is one transcript entry.
type Turn struct {
	Speaker gateway.Speaker

	// Text is the display text. For a pending turn it is [PendingText].
	Text string

	// Pending is set while a voice answer awaits its transcription.
	Pending bool

	// Voice marks a candidate turn that was spoken rather than typed.
	Voice bool

	// Evaluation is attached to the coach turn that answers a candidate turn.
	Evaluation *gateway.Evaluation

	// Speech is the synthesized reaction as base64 PCM16, or "".
	Speech string

	// Expression is a short mood tag shown next to the coach, e.g. "smiles".
	Expression string
}

// Session is a snapshot of one interview.
type Session struct {
	Region         gateway.Region
	Facility       gateway.Facility
	Step           Step
	Transcript     []Turn
	QuestionIndex  int
	TotalQuestions int
}

// NewSession returns a session in the setup step. A non-positive total uses
// [gateway.DefaultTotalQuestions].
func NewSession(region gateway.Region, facility gateway.Facility, total int) Session {
	if total <= 0 {
		total = gateway.DefaultTotalQuestions
	}
	if !region.IsValid() {
		region = gateway.RegionOntario
	}
	if !facility.IsValid() {
		facility = gateway.FacilityLTC
	}
	return Session{
		Region:         region,
		Facility:       facility,
		Step:           StepSetup,
		TotalQuestions: total,
	}
}

// clone copies s with an independent transcript slice.
func (s Session) clone() Session {
	s.Transcript = slices.Clone(s.Transcript)
	return s
}

// PendingIndex returns the index of the nearest pending turn scanning from
// the end, or -1.
func (s Session) PendingIndex() int {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Pending {
			return i
		}
	}
	return -1
}

// History returns the settled transcript in the gateway's format. Pending
// turns are left out.
func (s Session) History() []gateway.HistoryEntry {
	out := make([]gateway.HistoryEntry, 0, len(s.Transcript))
	for _, t := range s.Transcript {
		if t.Pending {
			continue
		}
		out = append(out, gateway.HistoryEntry{Speaker: t.Speaker, Text: t.Text})
	}
	return out
}

// LastCoachTurn returns the most recent coach turn.
func (s Session) LastCoachTurn() (Turn, bool) {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Speaker == gateway.SpeakerCoach {
			return s.Transcript[i], true
		}
	}
	return Turn{}, false
}

// Expression returns the expression tag of the last turn, which the UI shows
// on the coach avatar.
func (s Session) Expression() string {
	if len(s.Transcript) == 0 {
		return ""
	}
	return s.Transcript[len(s.Transcript)-1].Expression
}

// SelectRegion changes the region. Only allowed during setup.
func SelectRegion(s Session, r gateway.Region) (Session, error) {
	if s.Step != StepSetup {
		return s, &StepError{Op: "select region", Step: s.Step}
	}
	if !r.IsValid() {
		return s, fmt.Errorf("%w: region %q", ErrInvalidChoice, r)
	}
	s.Region = r
	return s, nil
}

// SelectFacility changes the facility. Only allowed during setup.
func SelectFacility(s Session, f gateway.Facility) (Session, error) {
	if s.Step != StepSetup {
		return s, &StepError{Op: "select facility", Step: s.Step}
	}
	if !f.IsValid() {
		return s, fmt.Errorf("%w: facility %q", ErrInvalidChoice, f)
	}
	s.Facility = f
	return s, nil
}

// Begin starts the interview with the coach's opening turn, which carries
// question 1.
func Begin(s Session, opening Turn) (Session, error) {
	if s.Step != StepSetup {
		return s, &StepError{Op: "begin", Step: s.Step}
	}
	opening.Speaker = gateway.SpeakerCoach
	s.Transcript = []Turn{opening}
	s.QuestionIndex = 1
	s.Step = StepInterviewing
	return s, nil
}

// AppendCandidate adds the candidate's answer. A voice answer is added as a
// pending turn with [PendingText]; text is ignored for it.
func AppendCandidate(s Session, text string, voice bool) (Session, error) {
	if s.Step != StepInterviewing {
		return s, &StepError{Op: "answer", Step: s.Step}
	}
	if s.PendingIndex() >= 0 {
		return s, ErrPendingTurn
	}
	t := Turn{Speaker: gateway.SpeakerCandidate, Text: text, Voice: voice}
	if voice {
		t.Text = PendingText
		t.Pending = true
	}
	s = s.clone()
	s.Transcript = append(s.Transcript, t)
	return s, nil
}

// ResolveEvaluation settles the pending turn (if any) with the evaluation's
// transcription and appends the coach's reaction. The session finishes when
// the evaluation is terminal or the last question has been answered;
// otherwise it waits for the advance.
func ResolveEvaluation(s Session, ev gateway.Evaluation, reaction Turn) (Session, error) {
	if s.Step != StepInterviewing {
		return s, &StepError{Op: "resolve evaluation", Step: s.Step}
	}
	s = s.clone()
	if i := s.PendingIndex(); i >= 0 {
		text := ev.Transcription
		if text == "" {
			text = UntranscribedText
		}
		s.Transcript[i].Text = text
		s.Transcript[i].Pending = false
	}
	reaction.Speaker = gateway.SpeakerCoach
	reaction.Evaluation = &ev
	s.Transcript = append(s.Transcript, reaction)
	if ev.Finished || s.QuestionIndex >= s.TotalQuestions {
		s.Step = StepFinished
	} else {
		s.Step = StepAwaitingNext
	}
	return s, nil
}

// FailEvaluation marks every pending turn with [TranscriptionErrorText]. The
// step is unchanged so the candidate can answer again.
func FailEvaluation(s Session) Session {
	if s.PendingIndex() < 0 {
		return s
	}
	s = s.clone()
	for i := range s.Transcript {
		if s.Transcript[i].Pending {
			s.Transcript[i].Text = TranscriptionErrorText
			s.Transcript[i].Pending = false
		}
	}
	return s
}

// Advance appends the next question and moves the question index forward.
func Advance(s Session, question Turn) (Session, error) {
	if s.Step != StepAwaitingNext {
		return s, &StepError{Op: "advance", Step: s.Step}
	}
	if s.QuestionIndex >= s.TotalQuestions {
		return s, &StepError{Op: "advance past last question", Step: s.Step}
	}
	question.Speaker = gateway.SpeakerCoach
	s = s.clone()
	s.Transcript = append(s.Transcript, question)
	s.QuestionIndex++
	s.Step = StepInterviewing
	return s, nil
}

// Reset returns to setup, keeping the region, facility and series length.
func Reset(s Session) Session {
	return NewSession(s.Region, s.Facility, s.TotalQuestions)
}
