// Package openai provides a gateway.Backend backed by the OpenAI API.
//
// Structured turns use Chat Completions with a strict JSON schema response
// format; voice answers are attached as input_audio parts, which requires an
// audio-capable chat model and WAV or MP3 input. Speech uses the audio/speech
// endpoint with PCM output (24 kHz, 16-bit, mono).
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/carecoach/pkg/audio"
	"github.com/MrWong99/carecoach/pkg/gateway"
)

// Defaults used when the corresponding option is not given.
const (
	DefaultSpeechModel = string(oai.SpeechModelGPT4oMiniTTS)
	DefaultVoice       = string(oai.AudioSpeechNewParamsVoiceCoral)
)

// Backend implements gateway.Backend using the OpenAI API.
type Backend struct {
	client      oai.Client
	model       string
	speechModel string
	voice       string
}

// config holds optional configuration for the backend.
type config struct {
	baseURL      string
	organization string
	speechModel  string
	voice        string
	timeout      time.Duration
	httpClient   *http.Client
}

// Option is a functional option for Backend.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) { c.organization = org }
}

// WithSpeechModel sets the TTS model.
func WithSpeechModel(model string) Option {
	return func(c *config) { c.speechModel = model }
}

// WithVoice sets the TTS voice.
func WithVoice(voice string) Option {
	return func(c *config) { c.voice = voice }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// New constructs an OpenAI backend. The SDK's automatic retries are
// disabled; every call is single shot.
func New(apiKey, model string, opts ...Option) (*Backend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{speechModel: DefaultSpeechModel, voice: DefaultVoice}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	hc := cfg.httpClient
	if cfg.timeout > 0 {
		if hc == nil {
			hc = &http.Client{}
		}
		hc.Timeout = cfg.timeout
	}
	if hc != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(hc))
	}

	return &Backend{
		client:      oai.NewClient(reqOpts...),
		model:       model,
		speechModel: cfg.speechModel,
		voice:       cfg.voice,
	}, nil
}

// Name implements gateway.Backend.
func (b *Backend) Name() string { return "openai" }

// Generate implements gateway.Backend.
func (b *Backend) Generate(ctx context.Context, req gateway.GenerateRequest) (string, error) {
	parts := []oai.ChatCompletionContentPartUnionParam{oai.TextContentPart(req.Prompt)}
	if req.Audio != nil && !req.Audio.Empty() {
		format, err := audioFormat(req.Audio.MIMEType)
		if err != nil {
			return "", fmt.Errorf("openai: generate: %w", err)
		}
		parts = append(parts, oai.InputAudioContentPart(oai.ChatCompletionContentPartInputAudioInputAudioParam{
			Data:   audio.EncodeBase64(req.Audio.Data),
			Format: format,
		}))
	}

	var msgs []oai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, oai.SystemMessage(req.System))
	}
	msgs = append(msgs, oai.UserMessage(parts))

	params := oai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    shared.ChatModel(b.model),
	}
	if req.Schema != nil {
		params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.Schema.Name,
					Strict: param.NewOpt(true),
					Schema: req.Schema.JSONSchema(),
				},
			},
		}
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: generate: no choices in response")
	}
	text := resp.Choices[0].Message.Content
	if text == "" {
		if refusal := resp.Choices[0].Message.Refusal; refusal != "" {
			return "", fmt.Errorf("openai: generate: refused: %s", refusal)
		}
		return "", errors.New("openai: generate: empty response")
	}
	return text, nil
}

// Speak implements gateway.Backend.
func (b *Backend) Speak(ctx context.Context, text string) ([]byte, error) {
	resp, err := b.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Input:          text,
		Model:          oai.SpeechModel(b.speechModel),
		Voice:          oai.AudioSpeechNewParamsVoice(b.voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: speak: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: speak: read body: %w", err)
	}
	if len(pcm) == 0 {
		return nil, errors.New("openai: speak: empty audio")
	}
	return pcm, nil
}

// audioFormat maps a recording MIME type to an input_audio format.
func audioFormat(mime string) (string, error) {
	base, _, _ := strings.Cut(mime, ";")
	switch strings.TrimSpace(base) {
	case "audio/wav", "audio/wave", "audio/x-wav":
		return "wav", nil
	case "audio/mpeg", "audio/mp3":
		return "mp3", nil
	}
	return "", fmt.Errorf("unsupported audio format %q", mime)
}

var _ gateway.Backend = (*Backend)(nil)
