package config

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/carecoach/pkg/gateway"
)

// ErrProviderNotRegistered is returned by [Registry.CreateGateway] when no
// factory has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// GatewayFactory builds a backend from its configuration block.
type GatewayFactory func(ctx context.Context, cfg GatewayConfig) (gateway.Backend, error)

// Registry maps gateway provider names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	gateway map[string]GatewayFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{gateway: make(map[string]GatewayFactory)}
}

// RegisterGateway registers a backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterGateway(name string, factory GatewayFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateway[name] = factory
}

// CreateGateway instantiates the backend registered under cfg.Provider.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateGateway(ctx context.Context, cfg GatewayConfig) (gateway.Backend, error) {
	r.mu.RLock()
	factory, ok := r.gateway[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: gateway/%q", ErrProviderNotRegistered, cfg.Provider)
	}
	return factory(ctx, cfg)
}

// GatewayNames returns the registered provider names, sorted.
func (r *Registry) GatewayNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.gateway))
	for n := range r.gateway {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
