// Package feedback keeps a practice log of scored answers. Each evaluation
// card is stored as one append-only JSON line in a local file, so a candidate
// can look back over past sessions.
package feedback

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/MrWong99/carecoach/internal/interview"
)

// Record is a single feedback entry written to the file store.
type Record struct {
	Timestamp     time.Time `json:"timestamp"`
	Region        string    `json:"region"`
	Facility      string    `json:"facility"`
	QuestionIndex int       `json:"question_index"`
	Question      string    `json:"question"`
	Answer        string    `json:"answer"`
	Voice         bool      `json:"voice,omitempty"`
	Score         int       `json:"score"`
	Strengths     string    `json:"strengths,omitempty"`
	Improvement   string    `json:"improvement,omitempty"`
	ModelAnswer   string    `json:"model_answer,omitempty"`
}

// FromEvaluated converts a coach event into a record stamped with now.
func FromEvaluated(e interview.Evaluated, now time.Time) Record {
	return Record{
		Timestamp:     now.UTC(),
		Region:        string(e.Region),
		Facility:      string(e.Facility),
		QuestionIndex: e.QuestionIndex,
		Question:      e.Question,
		Answer:        e.Answer,
		Voice:         e.Voice,
		Score:         e.Evaluation.Score,
		Strengths:     e.Evaluation.Strengths,
		Improvement:   e.Evaluation.Improvement,
		ModelAnswer:   e.Evaluation.ModelAnswer,
	}
}

// FileStore persists feedback as JSON lines in a local file.
// Thread-safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileStore creates a FileStore that writes to the given path.
// The file is created on the first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Path returns the log file location.
func (s *FileStore) Path() string { return s.path }

// Save appends a record to the file.
func (s *FileStore) Save(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("feedback: marshal: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("feedback: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("feedback: write: %w", err)
	}
	return nil
}

// Observe is an evaluation hook for the coach. Write failures are logged by
// the caller-supplied onErr, if any, and otherwise dropped.
func (s *FileStore) Observe(onErr func(error)) func(interview.Evaluated) {
	return func(e interview.Evaluated) {
		if err := s.Save(FromEvaluated(e, s.now())); err != nil && onErr != nil {
			onErr(err)
		}
	}
}

// Records reads every record in file order. A missing file yields no
// records. Lines that fail to decode are skipped and counted.
func (s *FileStore) Records() (records []Record, skipped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("feedback: open file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			skipped++
			continue
		}
		records = append(records, r)
	}
	if err := sc.Err(); err != nil {
		return records, skipped, fmt.Errorf("feedback: read: %w", err)
	}
	return records, skipped, nil
}

// Summary aggregates a set of records.
type Summary struct {
	Answers  int
	Average  float64
	Best     int
	Worst    int
	ByRegion map[string]int
}

// Summarize computes a [Summary] over records.
func Summarize(records []Record) Summary {
	s := Summary{ByRegion: make(map[string]int)}
	if len(records) == 0 {
		return s
	}
	s.Best, s.Worst = records[0].Score, records[0].Score
	total := 0
	for _, r := range records {
		total += r.Score
		s.Best = max(s.Best, r.Score)
		s.Worst = min(s.Worst, r.Score)
		s.ByRegion[r.Region]++
	}
	s.Answers = len(records)
	s.Average = float64(total) / float64(len(records))
	return s
}
