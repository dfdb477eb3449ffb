package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/carecoach/internal/config"
	"github.com/MrWong99/carecoach/pkg/gateway"
	"github.com/MrWong99/carecoach/pkg/gateway/mock"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level config.LogLevel
		want  bool
	}{
		{config.LogDebug, true},
		{config.LogInfo, true},
		{config.LogWarn, true},
		{config.LogError, true},
		{"trace", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.level.IsValid(); got != tt.want {
			t.Errorf("LogLevel(%q).IsValid() = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestRegistry_CreateGateway(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	var got config.GatewayConfig
	reg.RegisterGateway("fake", func(_ context.Context, cfg config.GatewayConfig) (gateway.Backend, error) {
		got = cfg
		return &mock.Backend{NameValue: "fake"}, nil
	})

	b, err := reg.CreateGateway(context.Background(), config.GatewayConfig{Provider: "fake", Model: "m1"})
	if err != nil {
		t.Fatalf("CreateGateway: %v", err)
	}
	if b.Name() != "fake" || got.Model != "m1" {
		t.Errorf("backend %q created with %+v", b.Name(), got)
	}
	if names := reg.GatewayNames(); len(names) != 1 || names[0] != "fake" {
		t.Errorf("GatewayNames = %v", names)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	_, err := reg.CreateGateway(context.Background(), config.GatewayConfig{Provider: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()

	boom := errors.New("bad key")
	reg := config.NewRegistry()
	reg.RegisterGateway("x", func(context.Context, config.GatewayConfig) (gateway.Backend, error) {
		return nil, boom
	})
	if _, err := reg.CreateGateway(context.Background(), config.GatewayConfig{Provider: "x"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
