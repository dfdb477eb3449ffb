package interview_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/carecoach/internal/interview"
	"github.com/MrWong99/carecoach/pkg/gateway"
)

func begun(t *testing.T, total int) interview.Session {
	t.Helper()
	s := interview.NewSession(gateway.RegionOntario, gateway.FacilityLTC, total)
	s, err := interview.Begin(s, interview.Turn{Text: "Hello. Question one?"})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	return s
}

func TestNewSession_Defaults(t *testing.T) {
	t.Parallel()

	s := interview.NewSession("", "", 0)
	if s.Step != interview.StepSetup {
		t.Errorf("Step = %q", s.Step)
	}
	if s.Region != gateway.RegionOntario || s.Facility != gateway.FacilityLTC {
		t.Errorf("region/facility = %q/%q", s.Region, s.Facility)
	}
	if s.TotalQuestions != 20 || s.QuestionIndex != 0 || len(s.Transcript) != 0 {
		t.Errorf("session = %+v", s)
	}
}

func TestSelect_OnlyDuringSetup(t *testing.T) {
	t.Parallel()

	s := interview.NewSession(gateway.RegionOntario, gateway.FacilityLTC, 20)
	s, err := interview.SelectRegion(s, gateway.RegionSaskatchewan)
	if err != nil || s.Region != gateway.RegionSaskatchewan {
		t.Fatalf("SelectRegion = %q, %v", s.Region, err)
	}
	s, err = interview.SelectFacility(s, gateway.FacilityHospital)
	if err != nil || s.Facility != gateway.FacilityHospital {
		t.Fatalf("SelectFacility = %q, %v", s.Facility, err)
	}
	if _, err := interview.SelectRegion(s, "Yukon"); !errors.Is(err, interview.ErrInvalidChoice) {
		t.Errorf("invalid region err = %v", err)
	}
	if _, err := interview.SelectFacility(s, "Spa"); !errors.Is(err, interview.ErrInvalidChoice) {
		t.Errorf("invalid facility err = %v", err)
	}

	started, _ := interview.Begin(s, interview.Turn{Text: "Hi"})
	if _, err := interview.SelectRegion(started, gateway.RegionAlberta); !errors.Is(err, interview.ErrInvalidStep) {
		t.Errorf("SelectRegion after begin err = %v, want ErrInvalidStep", err)
	}
}

func TestBegin(t *testing.T) {
	t.Parallel()

	s := begun(t, 20)
	if s.Step != interview.StepInterviewing || s.QuestionIndex != 1 {
		t.Fatalf("step/index = %q/%d", s.Step, s.QuestionIndex)
	}
	if len(s.Transcript) != 1 || s.Transcript[0].Speaker != gateway.SpeakerCoach {
		t.Fatalf("transcript = %+v", s.Transcript)
	}
	if _, err := interview.Begin(s, interview.Turn{}); !errors.Is(err, interview.ErrInvalidStep) {
		t.Errorf("second Begin err = %v", err)
	}
}

func TestAppendCandidate_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	s := begun(t, 20)
	next, err := interview.AppendCandidate(s, "I always follow PPE protocol", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Transcript) != 1 {
		t.Errorf("input snapshot changed: %d turns", len(s.Transcript))
	}
	if len(next.Transcript) != 2 || next.Transcript[1].Text != "I always follow PPE protocol" {
		t.Errorf("transcript = %+v", next.Transcript)
	}
}

func TestAppendCandidate_VoiceIsPending(t *testing.T) {
	t.Parallel()

	s := begun(t, 20)
	s, err := interview.AppendCandidate(s, "ignored", true)
	if err != nil {
		t.Fatal(err)
	}
	last := s.Transcript[len(s.Transcript)-1]
	if !last.Pending || !last.Voice || last.Text != interview.PendingText {
		t.Errorf("voice turn = %+v", last)
	}
	if s.PendingIndex() != 1 {
		t.Errorf("PendingIndex = %d, want 1", s.PendingIndex())
	}
	if h := s.History(); len(h) != 1 {
		t.Errorf("History includes pending turn: %+v", h)
	}
	if _, err := interview.AppendCandidate(s, "more", false); !errors.Is(err, interview.ErrPendingTurn) {
		t.Errorf("second answer err = %v, want ErrPendingTurn", err)
	}
}

func TestResolveEvaluation_ReplacesPendingInPlace(t *testing.T) {
	t.Parallel()

	s := begun(t, 20)
	s, _ = interview.AppendCandidate(s, "", true)
	ev := gateway.Evaluation{Score: 6, Transcription: "I wash my hands first", Reaction: "[nods] Good."}
	s, err := interview.ResolveEvaluation(s, ev, interview.Turn{Text: ev.Reaction, Expression: "nods"})
	if err != nil {
		t.Fatal(err)
	}
	if s.PendingIndex() != -1 {
		t.Fatal("turn still pending")
	}
	if got := s.Transcript[1]; got.Text != "I wash my hands first" || got.Speaker != gateway.SpeakerCandidate {
		t.Errorf("resolved turn = %+v", got)
	}
	coach := s.Transcript[2]
	if coach.Evaluation == nil || coach.Evaluation.Score != 6 || coach.Speaker != gateway.SpeakerCoach {
		t.Errorf("coach turn = %+v", coach)
	}
	if s.Step != interview.StepAwaitingNext {
		t.Errorf("Step = %q, want awaiting_next", s.Step)
	}
	if s.Expression() != "nods" {
		t.Errorf("Expression = %q", s.Expression())
	}
}

func TestResolveEvaluation_EmptyTranscription(t *testing.T) {
	t.Parallel()

	s := begun(t, 20)
	s, _ = interview.AppendCandidate(s, "", true)
	s, _ = interview.ResolveEvaluation(s, gateway.Evaluation{}, interview.Turn{})
	if got := s.Transcript[1]; got.Pending || got.Text != interview.UntranscribedText {
		t.Errorf("turn = %+v", got)
	}
}

func TestResolveEvaluation_Finishes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		total    int
		finished bool
		want     interview.Step
	}{
		{"terminal flag", 20, true, interview.StepFinished},
		{"last question without flag", 1, false, interview.StepFinished},
		{"more to go", 20, false, interview.StepAwaitingNext},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := begun(t, tt.total)
			s, _ = interview.AppendCandidate(s, "answer", false)
			s, err := interview.ResolveEvaluation(s, gateway.Evaluation{Finished: tt.finished}, interview.Turn{})
			if err != nil {
				t.Fatal(err)
			}
			if s.Step != tt.want {
				t.Errorf("Step = %q, want %q", s.Step, tt.want)
			}
		})
	}
}

func TestFailEvaluation(t *testing.T) {
	t.Parallel()

	s := begun(t, 20)
	s, _ = interview.AppendCandidate(s, "", true)
	failed := interview.FailEvaluation(s)
	if failed.PendingIndex() != -1 {
		t.Fatal("pending turn survived failure")
	}
	if got := failed.Transcript[1].Text; got != interview.TranscriptionErrorText {
		t.Errorf("text = %q", got)
	}
	if failed.Step != interview.StepInterviewing {
		t.Errorf("Step = %q, want interviewing", failed.Step)
	}
	if !s.Transcript[1].Pending {
		t.Error("input snapshot changed")
	}

	// The candidate can answer again.
	if _, err := interview.AppendCandidate(failed, "typed instead", false); err != nil {
		t.Errorf("resubmit: %v", err)
	}
}

func TestAdvance_IndexMonotoneAndBounded(t *testing.T) {
	t.Parallel()

	const total = 3
	s := begun(t, total)
	prev := s.QuestionIndex
	for s.Step != interview.StepFinished {
		s, _ = interview.AppendCandidate(s, "answer", false)
		var err error
		s, err = interview.ResolveEvaluation(s, gateway.Evaluation{}, interview.Turn{Text: "ok"})
		if err != nil {
			t.Fatal(err)
		}
		if s.Step == interview.StepAwaitingNext {
			s, err = interview.Advance(s, interview.Turn{Text: "next?"})
			if err != nil {
				t.Fatal(err)
			}
		}
		if s.QuestionIndex < prev || s.QuestionIndex > total {
			t.Fatalf("QuestionIndex = %d after %d (total %d)", s.QuestionIndex, prev, total)
		}
		prev = s.QuestionIndex
	}
	if s.QuestionIndex != total {
		t.Errorf("final index = %d, want %d", s.QuestionIndex, total)
	}
	if _, err := interview.Advance(s, interview.Turn{}); !errors.Is(err, interview.ErrInvalidStep) {
		t.Errorf("Advance after finish err = %v", err)
	}
}

func TestAdvance_WrongStep(t *testing.T) {
	t.Parallel()

	s := begun(t, 20)
	if _, err := interview.Advance(s, interview.Turn{}); !errors.Is(err, interview.ErrInvalidStep) {
		t.Fatalf("err = %v", err)
	}
	var se *interview.StepError
	_, err := interview.Advance(s, interview.Turn{})
	if !errors.As(err, &se) || se.Step != interview.StepInterviewing {
		t.Errorf("StepError = %+v", se)
	}
}

func TestReset_KeepsSelection(t *testing.T) {
	t.Parallel()

	s := interview.NewSession(gateway.RegionManitoba, gateway.FacilityHomeCare, 5)
	s, _ = interview.Begin(s, interview.Turn{Text: "Hi"})
	r := interview.Reset(s)
	if r.Step != interview.StepSetup || len(r.Transcript) != 0 || r.QuestionIndex != 0 {
		t.Errorf("reset = %+v", r)
	}
	if r.Region != gateway.RegionManitoba || r.Facility != gateway.FacilityHomeCare || r.TotalQuestions != 5 {
		t.Errorf("selection lost: %+v", r)
	}
}
