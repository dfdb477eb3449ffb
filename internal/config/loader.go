package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/carecoach/pkg/capture"
	"github.com/MrWong99/carecoach/pkg/gateway"
)

// ValidGatewayNames lists the built-in gateway backends. [Validate] warns
// about other names, which may still be registered by the caller.
var ValidGatewayNames = []string{"gemini", "openai"}

// defaultModels is the structured-generation model per built-in backend.
var defaultModels = map[string]string{
	"gemini": "gemini-2.5-flash",
	"openai": "gpt-4o-audio-preview",
}

// apiKeyEnv is the environment variable consulted when gateway.api_key is empty.
var apiKeyEnv = map[string]string{
	"gemini": "GEMINI_API_KEY",
	"openai": "OPENAI_API_KEY",
}

// Default returns a configuration with every default applied and no API key
// beyond what the environment provides.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}
	if cfg.LogFile == "" {
		cfg.LogFile = "carecoach.log"
	}

	g := &cfg.Gateway
	if g.Provider == "" {
		g.Provider = "gemini"
	}
	if g.Model == "" {
		g.Model = defaultModels[g.Provider]
	}
	if g.APIKey == "" {
		if env, ok := apiKeyEnv[g.Provider]; ok {
			g.APIKey = os.Getenv(env)
		}
	}

	iv := &cfg.Interview
	if iv.FeedbackLanguage == "" {
		iv.FeedbackLanguage = "English"
	}
	if iv.CoachName == "" {
		iv.CoachName = "Sarah"
	}
	if iv.TotalQuestions == 0 {
		iv.TotalQuestions = gateway.DefaultTotalQuestions
	}

	a := &cfg.Audio
	if a.CaptureSampleRate == 0 {
		a.CaptureSampleRate = 48000
	}
	if a.UploadSampleRate == 0 {
		a.UploadSampleRate = 16000
	}
	if len(a.Formats) == 0 {
		a.Formats = slices.Clone(capture.DefaultFormats)
	}

	if cfg.Devices.Camera == "" {
		cfg.Devices.Camera = "/dev/video0"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "carecoach"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	g := cfg.Gateway
	if g.Provider == "" {
		errs = append(errs, errors.New("gateway.provider is required"))
	} else if !slices.Contains(ValidGatewayNames, g.Provider) {
		slog.Warn("unknown gateway provider; it must be registered before startup",
			"name", g.Provider,
			"known", ValidGatewayNames,
		)
	}
	if g.Model == "" {
		errs = append(errs, errors.New("gateway.model is required"))
	}
	if g.APIKey == "" {
		hint := ""
		if env, ok := apiKeyEnv[g.Provider]; ok {
			hint = " (or set " + env + ")"
		}
		errs = append(errs, fmt.Errorf("gateway.api_key is required%s", hint))
	}
	if g.Timeout < 0 {
		errs = append(errs, fmt.Errorf("gateway.timeout %v must not be negative", g.Timeout))
	}

	iv := cfg.Interview
	if iv.Region != "" && !gateway.Region(iv.Region).IsValid() {
		errs = append(errs, fmt.Errorf("interview.region %q is invalid; valid values: %s", iv.Region, joinValues(gateway.Regions())))
	}
	if iv.Facility != "" && !gateway.Facility(iv.Facility).IsValid() {
		errs = append(errs, fmt.Errorf("interview.facility %q is invalid; valid values: %s", iv.Facility, joinValues(gateway.Facilities())))
	}
	if iv.TotalQuestions < 0 {
		errs = append(errs, fmt.Errorf("interview.total_questions %d must be positive", iv.TotalQuestions))
	}

	a := cfg.Audio
	if a.CaptureSampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.capture_sample_rate %d must be positive", a.CaptureSampleRate))
	}
	if a.UploadSampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.upload_sample_rate %d must be positive", a.UploadSampleRate))
	}
	for i, f := range a.Formats {
		if !strings.HasPrefix(f, "audio/") {
			errs = append(errs, fmt.Errorf("audio.formats[%d] %q is not an audio MIME type", i, f))
		}
	}

	r := cfg.Resilience
	if r.MaxFailures < 0 || r.HalfOpenMax < 0 || r.ResetTimeout < 0 {
		errs = append(errs, errors.New("resilience values must not be negative"))
	}

	if cfg.Telemetry.ListenAddr != "" && !cfg.Telemetry.Enabled {
		errs = append(errs, errors.New("telemetry.listen_addr requires telemetry.enabled"))
	}

	return errors.Join(errs...)
}

func joinValues[T ~string](vals []T) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
