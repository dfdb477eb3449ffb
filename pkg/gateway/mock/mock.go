// Package mock provides a test double for the gateway.Backend interface.
//
// Responses are served from queues so that a test can script a whole
// interview: each Generate call pops the next entry from Responses (or
// returns GenerateErr). When the queue is empty, Generate returns
// DefaultResponse.
//
// Example:
//
//	b := &mock.Backend{
//	    Responses: []string{`{"openingLine":"Hi! Question one?"}`},
//	    Speech:    []byte{0, 0},
//	}
//	c := gateway.NewClient(b)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/carecoach/pkg/gateway"
)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	Ctx context.Context
	Req gateway.GenerateRequest
}

// Backend is a mock implementation of gateway.Backend.
type Backend struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// NameValue is returned by Name. Defaults to "mock".
	NameValue string

	// Responses are returned by successive Generate calls.
	Responses []string

	// DefaultResponse is returned once Responses is exhausted.
	DefaultResponse string

	// GenerateErr, if non-nil, is returned from every Generate call.
	GenerateErr error

	// Block, if non-nil, makes Generate wait until it is closed or the
	// context is done.
	Block chan struct{}

	// Speech is returned by Speak.
	Speech []byte

	// SpeakErr, if non-nil, is returned from Speak.
	SpeakErr error

	// --- Call records ---

	// GenerateCalls records every call to Generate in order.
	GenerateCalls []GenerateCall

	// SpeakCalls records the text of every Speak call in order.
	SpeakCalls []string
}

// Name returns NameValue or "mock".
func (b *Backend) Name() string {
	if b.NameValue == "" {
		return "mock"
	}
	return b.NameValue
}

// Generate records the call and returns the next scripted response.
func (b *Backend) Generate(ctx context.Context, req gateway.GenerateRequest) (string, error) {
	b.mu.Lock()
	b.GenerateCalls = append(b.GenerateCalls, GenerateCall{Ctx: ctx, Req: req})
	block := b.Block
	b.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.GenerateErr != nil {
		return "", b.GenerateErr
	}
	if len(b.Responses) == 0 {
		return b.DefaultResponse, nil
	}
	resp := b.Responses[0]
	b.Responses = b.Responses[1:]
	return resp, nil
}

// Speak records the call and returns Speech, SpeakErr.
func (b *Backend) Speak(_ context.Context, text string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.SpeakCalls = append(b.SpeakCalls, text)
	if b.SpeakErr != nil {
		return nil, b.SpeakErr
	}
	return append([]byte(nil), b.Speech...), nil
}

// GenerateCount returns the number of Generate calls so far.
func (b *Backend) GenerateCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.GenerateCalls)
}

// LastRequest returns the most recent Generate request.
func (b *Backend) LastRequest() gateway.GenerateRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.GenerateCalls) == 0 {
		return gateway.GenerateRequest{}
	}
	return b.GenerateCalls[len(b.GenerateCalls)-1].Req
}

// Push appends responses to the queue.
func (b *Backend) Push(responses ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Responses = append(b.Responses, responses...)
}

// SetGenerateErr replaces GenerateErr.
func (b *Backend) SetGenerateErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.GenerateErr = err
}

var _ gateway.Backend = (*Backend)(nil)
