package gateway

import (
	"context"

	"github.com/MrWong99/carecoach/pkg/audio"
)

// Backend is a remote generative-AI service able to produce schema-constrained
// JSON and synthesized speech.
//
// Implementations must be safe for concurrent use. They must not retry; a
// failed call is reported to the caller as is.
type Backend interface {
	// Name identifies the backend in logs and metrics, e.g. "gemini".
	Name() string

	// Generate sends a single-turn request and returns the raw JSON text of
	// the response. The backend should ask the service to constrain its
	// output to req.Schema.
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// Speak synthesizes text and returns signed 16-bit little-endian PCM,
	// 24 kHz mono.
	Speak(ctx context.Context, text string) ([]byte, error)
}

// GenerateRequest is one structured generation call.
type GenerateRequest struct {
	// System is the persona and rule set for the call.
	System string

	// Prompt is the user-turn text.
	Prompt string

	// Audio, if non-nil, is attached to the user turn as inline data.
	Audio *audio.Blob

	// Schema describes the required response object.
	Schema *Schema
}
