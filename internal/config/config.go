// Package config provides the configuration schema, loader, and backend
// registry for the interview coach.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFile receives all log output; the terminal belongs to the UI.
	// Default: "carecoach.log".
	LogFile string `yaml:"log_file"`

	Gateway    GatewayConfig    `yaml:"gateway"`
	Interview  InterviewConfig  `yaml:"interview"`
	Audio      AudioConfig      `yaml:"audio"`
	Devices    DevicesConfig    `yaml:"devices"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// GatewayConfig selects and configures the AI backend. Provider is used to
// look up the constructor in the [Registry].
type GatewayConfig struct {
	// Provider selects the registered backend ("gemini" or "openai").
	Provider string `yaml:"provider"`

	// APIKey authenticates against the provider. When empty it is read from
	// the provider's conventional environment variable (GEMINI_API_KEY,
	// OPENAI_API_KEY).
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model is the multimodal model used for structured generation.
	Model string `yaml:"model"`

	// SpeechModel is the text-to-speech model. Empty uses the backend default.
	SpeechModel string `yaml:"speech_model"`

	// Voice is the prebuilt voice name. Empty uses the backend default.
	Voice string `yaml:"voice"`

	// Timeout bounds a single request. Zero leaves it to the SDK.
	Timeout time.Duration `yaml:"timeout"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// InterviewConfig holds the coaching session defaults.
type InterviewConfig struct {
	// Region preselects the province on the setup screen.
	Region string `yaml:"region"`

	// Facility preselects the care setting on the setup screen.
	Facility string `yaml:"facility"`

	// FeedbackLanguage is the language of the written feedback. The coach
	// always speaks English. Default: English.
	FeedbackLanguage string `yaml:"feedback_language"`

	// CoachName is the interviewer persona's name. Default: Sarah.
	CoachName string `yaml:"coach_name"`

	// TotalQuestions is the length of the question series. Default: 20.
	TotalQuestions int `yaml:"total_questions"`

	// HistoryFile, when set, receives every evaluation card as a JSON line.
	HistoryFile string `yaml:"history_file"`
}

// AudioConfig holds capture and upload audio parameters.
type AudioConfig struct {
	// CaptureSampleRate is the microphone rate in Hz. Default: 48000.
	CaptureSampleRate int `yaml:"capture_sample_rate"`

	// UploadSampleRate is the rate of the WAV sent to the gateway. Default: 16000.
	UploadSampleRate int `yaml:"upload_sample_rate"`

	// Formats is the recording MIME preference order.
	// Default: audio/webm, audio/mp4, audio/wav.
	Formats []string `yaml:"formats"`
}

// DevicesConfig names the local devices.
type DevicesConfig struct {
	// Camera is the video device path. Default: /dev/video0.
	Camera string `yaml:"camera"`
}

// ResilienceConfig tunes the gateway circuit breakers. Zero values use the
// breaker defaults.
type ResilienceConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// TelemetryConfig controls OpenTelemetry setup.
type TelemetryConfig struct {
	// Enabled turns on the SDK providers. When false the global no-op
	// providers stay in place.
	Enabled bool `yaml:"enabled"`

	// ServiceName is reported in the resource. Default: carecoach.
	ServiceName string `yaml:"service_name"`

	// MetricsFile receives a Prometheus text snapshot on exit.
	MetricsFile string `yaml:"metrics_file"`

	// ListenAddr, when set, serves /metrics, /healthz and /readyz over HTTP.
	ListenAddr string `yaml:"listen_addr"`
}
