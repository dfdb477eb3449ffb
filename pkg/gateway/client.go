package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/MrWong99/carecoach/pkg/audio"
)

// DefaultTotalQuestions is the length of the scripted question series.
const DefaultTotalQuestions = 20

var (
	// ErrGateway is matched (via errors.Is) by every [*GatewayError].
	ErrGateway = errors.New("gateway: request failed")

	// ErrQuestionInReaction reports an evaluation whose reaction asks a new
	// question, which would break the answer/advance turn order.
	ErrQuestionInReaction = errors.New("gateway: evaluation reaction asks a question")
)

// GatewayError wraps a failed turn operation.
type GatewayError struct {
	// Op is the failing operation: "begin", "evaluate" or "next".
	Op  string
	Err error
}

func (e *GatewayError) Error() string { return fmt.Sprintf("gateway: %s: %v", e.Op, e.Err) }

// Unwrap returns the underlying error.
func (e *GatewayError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrGateway) succeed.
func (e *GatewayError) Is(target error) bool { return target == ErrGateway }

// ClientOption is a functional option for [NewClient].
type ClientOption func(*Client)

// WithFeedbackLanguage sets the language of the written feedback fields.
// The coach always speaks English. Defaults to "English".
func WithFeedbackLanguage(lang string) ClientOption {
	return func(c *Client) { c.language.Store(lang) }
}

// WithTotalQuestions overrides the question series length.
func WithTotalQuestions(n int) ClientOption {
	return func(c *Client) { c.total = n }
}

// WithCoachName sets the interviewer persona's name. Defaults to "Sarah".
func WithCoachName(name string) ClientOption {
	return func(c *Client) { c.coach = name }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// Client runs the interview turn operations against a [Backend].
type Client struct {
	backend  Backend
	language atomic.Value // string
	total    int
	coach    string
	log      *slog.Logger
}

// NewClient returns a Client that talks to b.
func NewClient(b Backend, opts ...ClientOption) *Client {
	c := &Client{
		backend: b,
		total:   DefaultTotalQuestions,
		coach:   "Sarah",
		log:     slog.Default(),
	}
	c.language.Store("English")
	for _, o := range opts {
		o(c)
	}
	return c
}

// TotalQuestions returns the configured series length.
func (c *Client) TotalQuestions() int { return c.total }

// CoachName returns the interviewer persona's name.
func (c *Client) CoachName() string { return c.coach }

// FeedbackLanguage returns the language of the written feedback.
func (c *Client) FeedbackLanguage() string { return c.language.Load().(string) }

// SetFeedbackLanguage changes the feedback language for subsequent calls.
func (c *Client) SetFeedbackLanguage(lang string) { c.language.Store(lang) }

// BeginSession asks the service for a greeting and the first question.
func (c *Client) BeginSession(ctx context.Context, region Region, facility Facility) (Opening, error) {
	prompt := fmt.Sprintf(
		"START PHASE. Greet the candidate briefly, introduce yourself as the hiring manager, "+
			"then ask question 1 of %d. Put the greeting and the question together in openingLine.",
		c.total)

	obj, err := c.generate(ctx, "begin", GenerateRequest{
		System: c.system(region, facility),
		Prompt: prompt,
		Schema: openingSchema,
	})
	if err != nil {
		return Opening{}, err
	}
	line := strings.TrimSpace(obj["openingLine"].(string))
	if line == "" {
		return Opening{}, &GatewayError{Op: "begin", Err: errors.New("empty opening line")}
	}
	return Opening{Line: line}, nil
}

// EvaluateAnswer scores one answer. When req.Audio is set the response must
// include a literal transcription. A reaction that asks a new question is
// rejected with [ErrQuestionInReaction].
func (c *Client) EvaluateAnswer(ctx context.Context, req EvaluateRequest) (Evaluation, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "EVALUATION PHASE. The candidate has just answered question %d of %d.\n", req.QuestionIndex, c.total)
	b.WriteString("Evaluate only this answer. Do not ask a new question and do not announce the next one; ")
	b.WriteString("the candidate moves on when they are ready.\n")
	fmt.Fprintf(&b, "Set isFinished to true only if this was question %d.\n", c.total)
	if req.Audio != nil {
		b.WriteString("The answer is attached as audio. Write a literal, word-for-word transcription in userTranscription.\n")
	} else {
		fmt.Fprintf(&b, "The candidate typed: %q\nSet userTranscription to an empty string.\n", req.Answer)
	}
	writeHistory(&b, req.History)

	obj, err := c.generate(ctx, "evaluate", GenerateRequest{
		System: c.system(req.Region, req.Facility),
		Prompt: b.String(),
		Audio:  req.Audio,
		Schema: evaluationSchema,
	})
	if err != nil {
		return Evaluation{}, err
	}

	ev := Evaluation{
		Score:         int(obj["score"].(float64)),
		Strengths:     strings.TrimSpace(obj["strengths"].(string)),
		Improvement:   strings.TrimSpace(obj["areasForImprovement"].(string)),
		ModelAnswer:   strings.TrimSpace(obj["refinedAnswer"].(string)),
		Transcription: strings.TrimSpace(obj["userTranscription"].(string)),
		Reaction:      strings.TrimSpace(obj["coachReaction"].(string)),
		Finished:      obj["isFinished"].(bool),
	}
	if req.Audio == nil {
		ev.Transcription = ""
	}
	if asksQuestion(ev.Reaction) {
		c.log.Warn("gateway: rejecting evaluation that asks a question", "reaction", ev.Reaction)
		return Evaluation{}, &GatewayError{Op: "evaluate", Err: ErrQuestionInReaction}
	}
	return ev, nil
}

// NextQuestion asks for question nextIndex given the transcript so far.
func (c *Client) NextQuestion(ctx context.Context, region Region, history []HistoryEntry, nextIndex int) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "QUESTION PHASE. Ask question %d of %d.\n", nextIndex, c.total)
	b.WriteString("Return exactly one new question. Do not repeat earlier questions. No feedback, no score.\n")
	writeHistory(&b, history)

	obj, err := c.generate(ctx, "next", GenerateRequest{
		System: c.system(region, ""),
		Prompt: b.String(),
		Schema: questionSchema,
	})
	if err != nil {
		return "", err
	}
	q := strings.TrimSpace(obj["question"].(string))
	if q == "" {
		return "", &GatewayError{Op: "next", Err: errors.New("empty question")}
	}
	return q, nil
}

// SynthesizeSpeech returns base64 PCM16 (24 kHz mono) for text with stage
// directions removed. It returns "" for empty text and on any failure.
func (c *Client) SynthesizeSpeech(ctx context.Context, text string) string {
	clean := StripStageDirections(text)
	if clean == "" {
		return ""
	}
	pcm, err := c.backend.Speak(ctx, clean)
	if err != nil {
		c.log.Warn("gateway: speech synthesis failed", "backend", c.backend.Name(), "err", err)
		return ""
	}
	if len(pcm) == 0 {
		return ""
	}
	return audio.EncodeBase64(pcm)
}

func (c *Client) generate(ctx context.Context, op string, req GenerateRequest) (map[string]any, error) {
	c.log.Debug("gateway: request", "op", op, "backend", c.backend.Name(), "audio", req.Audio != nil)
	raw, err := c.backend.Generate(ctx, req)
	if err != nil {
		return nil, &GatewayError{Op: op, Err: err}
	}
	obj, err := req.Schema.Decode(raw)
	if err != nil {
		return nil, &GatewayError{Op: op, Err: err}
	}
	return obj, nil
}

func (c *Client) system(region Region, facility Facility) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an experienced and encouraging hiring manager", c.coach)
	if facility.IsValid() {
		fmt.Fprintf(&b, " at a %s", facility.Describe())
	}
	fmt.Fprintf(&b, " in %s, Canada. You are interviewing a candidate for a %s position.\n", region, region.Role())
	fmt.Fprintf(&b, "The interview has exactly %d questions, asked one at a time.\n", c.total)
	b.WriteString("Cover realistic situations: resident safety, infection control and PPE, dementia and responsive behaviours, ")
	b.WriteString("person-centred care, dignity and privacy, teamwork, documentation, professional boundaries and time management.\n")
	fmt.Fprintf(&b, "Write strengths, areasForImprovement and refinedAnswer in %s. Speak to the candidate in English.\n", c.FeedbackLanguage())
	b.WriteString("refinedAnswer must be a strong model answer that follows the STAR method.\n")
	b.WriteString("coachReaction may start with one short stage direction in square brackets, such as [smiles].\n")
	b.WriteString("Follow the phase named at the start of each request strictly.")
	return b.String()
}

func writeHistory(b *strings.Builder, history []HistoryEntry) {
	if len(history) == 0 {
		return
	}
	b.WriteString("\nTranscript so far:\n")
	for _, h := range history {
		fmt.Fprintf(b, "%s: %s\n", h.Speaker, h.Text)
	}
}
