// Package gemini provides a gateway.Backend backed by the Google Gemini API.
//
// Structured turns use GenerateContent with a response schema and, for voice
// answers, the recording attached as inline data. Speech uses a Gemini TTS
// model with a prebuilt voice and returns the raw 24 kHz PCM16 payload.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/MrWong99/carecoach/pkg/gateway"
)

// Defaults used when the corresponding option is not given.
const (
	DefaultSpeechModel = "gemini-2.5-flash-preview-tts"
	DefaultVoice       = "Kore"
)

// Backend implements gateway.Backend using the Gemini API.
type Backend struct {
	client      *genai.Client
	model       string
	speechModel string
	voice       string
}

// config holds optional configuration for the backend.
type config struct {
	baseURL     string
	apiVersion  string
	speechModel string
	voice       string
	timeout     time.Duration
	httpClient  *http.Client
}

// Option is a functional option for Backend.
type Option func(*config)

// WithBaseURL overrides the default Gemini API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithAPIVersion overrides the API version, e.g. "v1beta".
func WithAPIVersion(v string) Option {
	return func(c *config) { c.apiVersion = v }
}

// WithSpeechModel sets the TTS model.
func WithSpeechModel(model string) Option {
	return func(c *config) { c.speechModel = model }
}

// WithVoice sets the prebuilt voice name.
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

// New constructs a Gemini backend.
func New(ctx context.Context, apiKey, model string, opts ...Option) (*Backend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("gemini: model must not be empty")
	}

	cfg := &config{speechModel: DefaultSpeechModel, voice: DefaultVoice}
	for _, o := range opts {
		o(cfg)
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.baseURL,
			APIVersion: cfg.apiVersion,
		},
		HTTPClient: cfg.httpClient,
	}
	if cfg.timeout > 0 {
		if cc.HTTPClient == nil {
			cc.HTTPClient = &http.Client{}
		}
		cc.HTTPClient.Timeout = cfg.timeout
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Backend{
		client:      client,
		model:       model,
		speechModel: cfg.speechModel,
		voice:       cfg.voice,
	}, nil
}

// Name implements gateway.Backend.
func (b *Backend) Name() string { return "gemini" }

// Generate implements gateway.Backend.
func (b *Backend) Generate(ctx context.Context, req gateway.GenerateRequest) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if req.Audio != nil && !req.Audio.Empty() {
		parts = append(parts, genai.NewPartFromBytes(req.Audio.Data, req.Audio.MIMEType))
	}

	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Schema != nil {
		cfg.ResponseSchema = convertSchema(req.Schema)
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini: generate: empty response")
	}
	return text, nil
}

// Speak implements gateway.Backend.
func (b *Backend) Speak(ctx context.Context, text string) ([]byte, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: b.voice},
			},
		},
	}
	resp, err := b.client.Models.GenerateContent(ctx, b.speechModel, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: speak: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("gemini: speak: empty response")
	}
	var pcm []byte
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData != nil {
			pcm = append(pcm, p.InlineData.Data...)
		}
	}
	if len(pcm) == 0 {
		return nil, errors.New("gemini: speak: no audio in response")
	}
	return pcm, nil
}

func convertSchema(s *gateway.Schema) *genai.Schema {
	out := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(s.Fields)),
		Required:   make([]string, 0, len(s.Fields)),
	}
	for _, f := range s.Fields {
		p := &genai.Schema{Description: f.Description, Minimum: f.Minimum, Maximum: f.Maximum}
		switch f.Kind {
		case gateway.KindString:
			p.Type = genai.TypeString
		case gateway.KindNumber:
			p.Type = genai.TypeNumber
		case gateway.KindInteger:
			p.Type = genai.TypeInteger
		case gateway.KindBoolean:
			p.Type = genai.TypeBoolean
		}
		out.Properties[f.Name] = p
		out.Required = append(out.Required, f.Name)
	}
	return out
}

var _ gateway.Backend = (*Backend)(nil)
