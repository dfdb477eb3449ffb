package resilience

import (
	"context"

	"github.com/MrWong99/carecoach/pkg/gateway"
)

// Backend guards a gateway.Backend with circuit breakers.
type Backend struct {
	inner    gateway.Backend
	generate *CircuitBreaker
	speak    *CircuitBreaker
}

var _ gateway.Backend = (*Backend)(nil)

// NewBackend wraps inner. cfg is used for both breakers; their names are
// derived from inner.Name().
func NewBackend(inner gateway.Backend, cfg Config) *Backend {
	gen := cfg
	gen.Name = inner.Name() + "/generate"
	sp := cfg
	sp.Name = inner.Name() + "/speak"
	return &Backend{
		inner:    inner,
		generate: NewCircuitBreaker(gen),
		speak:    NewCircuitBreaker(sp),
	}
}

// Name returns the wrapped backend's name.
func (b *Backend) Name() string { return b.inner.Name() }

// Generate forwards to the wrapped backend unless its breaker is open.
func (b *Backend) Generate(ctx context.Context, req gateway.GenerateRequest) (string, error) {
	var out string
	err := b.generate.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = b.inner.Generate(ctx, req)
		return err
	})
	return out, err
}

// Speak forwards to the wrapped backend unless its breaker is open.
func (b *Backend) Speak(ctx context.Context, text string) ([]byte, error) {
	var out []byte
	err := b.speak.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = b.inner.Speak(ctx, text)
		return err
	})
	return out, err
}

// States returns the generate and speak breaker states.
func (b *Backend) States() (generate, speak State) {
	return b.generate.State(), b.speak.State()
}
