package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MrWong99/carecoach/internal/config"
	"github.com/MrWong99/carecoach/internal/health"
	"github.com/MrWong99/carecoach/pkg/playback"
)

// Preflight returns the checks run by `carecoach -check`: the gateway can be
// constructed, the microphone opens with an accepted recording format, the
// speaker opens, and the camera and practice log are usable. Nothing is
// sent to the gateway.
func Preflight(cfg *config.Config, devices Devices, reg *config.Registry) []health.Checker {
	if reg == nil {
		reg = config.NewRegistry()
		RegisterBuiltinGateways(reg)
	}

	checks := []health.Checker{
		{Name: "config", Check: func(context.Context) error { return config.Validate(cfg) }},
		{Name: "gateway", Check: func(ctx context.Context) error {
			_, err := reg.CreateGateway(ctx, cfg.Gateway)
			return err
		}},
		{Name: "microphone", Check: func(ctx context.Context) error {
			if devices.Microphone == nil {
				return errors.New("not configured")
			}
			stream, err := devices.Microphone.Open(ctx)
			if err != nil {
				return err
			}
			defer stream.Close()
			for _, f := range cfg.Audio.Formats {
				if stream.SupportsFormat(f) {
					return nil
				}
			}
			if stream.SupportsFormat("") {
				return nil
			}
			return fmt.Errorf("none of %v supported", cfg.Audio.Formats)
		}},
		{Name: "speaker", Check: func(ctx context.Context) error {
			if devices.Output == nil {
				return errors.New("not configured")
			}
			out, err := devices.Output(ctx, playback.SampleRate, playback.Channels)
			if err != nil {
				return err
			}
			return out.Close()
		}},
	}

	if devices.Camera != nil {
		checks = append(checks, health.Checker{Name: "camera", Optional: true, Check: func(ctx context.Context) error {
			feed, err := devices.Camera.Open(ctx)
			if err != nil {
				return err
			}
			return feed.Close()
		}})
	}
	if path := cfg.Interview.HistoryFile; path != "" {
		checks = append(checks, health.Checker{Name: "history", Optional: true, Check: func(context.Context) error {
			info, err := os.Stat(filepath.Dir(path))
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", filepath.Dir(path))
			}
			return nil
		}})
	}
	return checks
}
