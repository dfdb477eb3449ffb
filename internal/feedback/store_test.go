package feedback

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/carecoach/internal/interview"
	"github.com/MrWong99/carecoach/pkg/gateway"
)

func TestFileStore_SaveAndRecords(t *testing.T) {
	t.Parallel()

	store := NewFileStore(filepath.Join(t.TempDir(), "history.jsonl"))

	recs, skipped, err := store.Records()
	if err != nil || len(recs) != 0 || skipped != 0 {
		t.Fatalf("Records() on missing file = %v, %d, %v", recs, skipped, err)
	}

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	want := []Record{
		{Timestamp: ts, Region: "Ontario", Facility: "LTC", QuestionIndex: 1, Question: "Tell me about yourself?", Answer: "I am a PSW.", Score: 6},
		{Timestamp: ts, Region: "Alberta", Facility: "Hospital", QuestionIndex: 2, Question: "Why here?", Answer: "Teamwork.", Voice: true, Score: 8},
	}
	for _, r := range want {
		if err := store.Save(r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got, skipped, err := store.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if skipped != 0 || len(got) != len(want) {
		t.Fatalf("Records() = %d records, %d skipped", len(got), skipped)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFileStore_SkipsCorruptLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.jsonl")
	data := `{"region":"Ontario","score":5}` + "\n" + "not json\n\n" + `{"region":"Manitoba","score":9}` + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	got, skipped, err := NewFileStore(path).Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(got) != 2 || skipped != 1 {
		t.Errorf("Records() = %d records, %d skipped; want 2, 1", len(got), skipped)
	}
}

func TestFileStore_SaveError(t *testing.T) {
	t.Parallel()

	store := NewFileStore(filepath.Join(t.TempDir(), "missing", "history.jsonl"))
	if err := store.Save(Record{}); err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
}

func TestFileStore_Observe(t *testing.T) {
	t.Parallel()

	store := NewFileStore(filepath.Join(t.TempDir(), "history.jsonl"))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))
	store.now = func() time.Time { return now }

	hook := store.Observe(func(err error) { t.Errorf("unexpected error: %v", err) })
	hook(interview.Evaluated{
		Region:        gateway.RegionSaskatchewan,
		Facility:      gateway.FacilityHomeCare,
		QuestionIndex: 3,
		Question:      "How do you handle stress?",
		Answer:        "I take a short break.",
		Voice:         true,
		Evaluation: gateway.Evaluation{
			Score:       4,
			Strengths:   "Honest.",
			Improvement: "Use STAR.",
			ModelAnswer: "Situation...",
			Reaction:    "[nods] Thank you.",
		},
	})

	got, _, err := store.Records()
	if err != nil || len(got) != 1 {
		t.Fatalf("Records() = %v, %v", got, err)
	}
	want := Record{
		Timestamp:     now.UTC(),
		Region:        "Saskatchewan",
		Facility:      "Home Care",
		QuestionIndex: 3,
		Question:      "How do you handle stress?",
		Answer:        "I take a short break.",
		Voice:         true,
		Score:         4,
		Strengths:     "Honest.",
		Improvement:   "Use STAR.",
		ModelAnswer:   "Situation...",
	}
	if !got[0].Timestamp.Equal(want.Timestamp) {
		t.Errorf("timestamp = %v, want %v", got[0].Timestamp, want.Timestamp)
	}
	got[0].Timestamp = want.Timestamp
	if got[0] != want {
		t.Errorf("record = %+v, want %+v", got[0], want)
	}
}

func TestFileStore_ObserveReportsErrors(t *testing.T) {
	t.Parallel()

	store := NewFileStore(filepath.Join(t.TempDir(), "missing", "history.jsonl"))
	var got error
	store.Observe(func(err error) { got = err })(interview.Evaluated{})
	if got == nil {
		t.Fatal("expected write error")
	}
	var pe *os.PathError
	if !errors.As(got, &pe) {
		t.Errorf("error = %T, want wrapped *os.PathError", got)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	if s := Summarize(nil); s.Answers != 0 || s.Average != 0 {
		t.Errorf("Summarize(nil) = %+v", s)
	}

	s := Summarize([]Record{
		{Region: "Ontario", Score: 4},
		{Region: "Ontario", Score: 8},
		{Region: "Alberta", Score: 9},
	})
	if s.Answers != 3 || s.Average != 7 || s.Best != 9 || s.Worst != 4 {
		t.Errorf("Summarize = %+v", s)
	}
	if s.ByRegion["Ontario"] != 2 || s.ByRegion["Alberta"] != 1 {
		t.Errorf("ByRegion = %v", s.ByRegion)
	}
}
