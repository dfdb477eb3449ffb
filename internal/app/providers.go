package app

import (
	"context"
	"log/slog"

	"github.com/MrWong99/carecoach/internal/config"
	"github.com/MrWong99/carecoach/pkg/gateway"
	"github.com/MrWong99/carecoach/pkg/gateway/gemini"
	"github.com/MrWong99/carecoach/pkg/gateway/openai"
)

// RegisterBuiltinGateways wires the built-in backend factories into reg.
//
// Provider-specific options:
//
//	gemini: api_version (string)
//	openai: organization (string)
func RegisterBuiltinGateways(reg *config.Registry) {
	reg.RegisterGateway("gemini", func(ctx context.Context, cfg config.GatewayConfig) (gateway.Backend, error) {
		var opts []gemini.Option
		if cfg.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.BaseURL))
		}
		if v := optString(cfg.Options, "api_version"); v != "" {
			opts = append(opts, gemini.WithAPIVersion(v))
		}
		if cfg.SpeechModel != "" {
			opts = append(opts, gemini.WithSpeechModel(cfg.SpeechModel))
		}
		if cfg.Voice != "" {
			opts = append(opts, gemini.WithVoice(cfg.Voice))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, gemini.WithTimeout(cfg.Timeout))
		}
		return gemini.New(ctx, cfg.APIKey, cfg.Model, opts...)
	})

	reg.RegisterGateway("openai", func(_ context.Context, cfg config.GatewayConfig) (gateway.Backend, error) {
		var opts []openai.Option
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if v := optString(cfg.Options, "organization"); v != "" {
			opts = append(opts, openai.WithOrganization(v))
		}
		if cfg.SpeechModel != "" {
			opts = append(opts, openai.WithSpeechModel(cfg.SpeechModel))
		}
		if cfg.Voice != "" {
			opts = append(opts, openai.WithVoice(cfg.Voice))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, openai.WithTimeout(cfg.Timeout))
		}
		return openai.New(cfg.APIKey, cfg.Model, opts...)
	})
}

// SlogLevel maps a configured level to its slog equivalent.
func SlogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}
