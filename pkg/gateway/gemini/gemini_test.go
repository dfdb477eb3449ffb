package gemini_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/carecoach/pkg/audio"
	"github.com/MrWong99/carecoach/pkg/gateway"
	"github.com/MrWong99/carecoach/pkg/gateway/gemini"
)

type recorded struct {
	mu     sync.Mutex
	paths  []string
	bodies []string
}

func (r *recorded) add(path, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	r.bodies = append(r.bodies, body)
}

func (r *recorded) last() (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paths[len(r.paths)-1], r.bodies[len(r.bodies)-1]
}

func newServer(t *testing.T, status int, respond func(body string) any) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		rec.add(r.URL.Path, string(b))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(respond(string(b)))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func newBackend(t *testing.T, srv *httptest.Server) *gemini.Backend {
	t.Helper()
	b, err := gemini.New(context.Background(), "test-key", "gemini-test",
		gemini.WithBaseURL(srv.URL),
		gemini.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func textResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
			},
		},
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := gemini.New(context.Background(), "", "m"); err == nil {
		t.Error("expected error for empty api key")
	}
	if _, err := gemini.New(context.Background(), "k", ""); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	srv, rec := newServer(t, http.StatusOK, func(string) any {
		return textResponse(`{"question":"Why care work?"}`)
	})
	b := newBackend(t, srv)

	schema := &gateway.Schema{Name: "question", Fields: []gateway.Field{{Name: "question", Kind: gateway.KindString}}}
	got, err := b.Generate(context.Background(), gateway.GenerateRequest{
		System: "You are a coach.",
		Prompt: "Ask question 2.",
		Schema: schema,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != `{"question":"Why care work?"}` {
		t.Errorf("Generate = %q", got)
	}

	path, body := rec.last()
	if !strings.HasSuffix(path, "gemini-test:generateContent") {
		t.Errorf("path = %q", path)
	}
	for _, s := range []string{"Ask question 2.", "You are a coach.", "application/json", `"question"`} {
		if !strings.Contains(body, s) {
			t.Errorf("request body missing %q: %s", s, body)
		}
	}
}

func TestGenerate_IntegerSchema(t *testing.T) {
	t.Parallel()

	srv, rec := newServer(t, http.StatusOK, func(string) any {
		return textResponse(`{"score":7}`)
	})
	b := newBackend(t, srv)

	schema := &gateway.Schema{Name: "score", Fields: []gateway.Field{{Name: "score", Kind: gateway.KindInteger}}}
	if _, err := b.Generate(context.Background(), gateway.GenerateRequest{Prompt: "Score it.", Schema: schema}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	_, body := rec.last()
	if !strings.Contains(body, `"INTEGER"`) {
		t.Errorf("request schema should type score as INTEGER: %s", body)
	}
}

func TestGenerate_WithAudio(t *testing.T) {
	t.Parallel()

	srv, rec := newServer(t, http.StatusOK, func(string) any { return textResponse(`{}`) })
	b := newBackend(t, srv)

	blob := &audio.Blob{Data: []byte("voice-bytes"), MIMEType: "audio/wav"}
	if _, err := b.Generate(context.Background(), gateway.GenerateRequest{Prompt: "Evaluate.", Audio: blob}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	_, body := rec.last()
	if !strings.Contains(body, base64.StdEncoding.EncodeToString(blob.Data)) {
		t.Errorf("request body missing inline audio: %s", body)
	}
	if !strings.Contains(body, "audio/wav") {
		t.Errorf("request body missing audio mime type: %s", body)
	}
}

func TestGenerate_EmptyCandidates(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, http.StatusOK, func(string) any { return map[string]any{"candidates": []any{}} })
	b := newBackend(t, srv)
	if _, err := b.Generate(context.Background(), gateway.GenerateRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestGenerate_HTTPError(t *testing.T) {
	t.Parallel()

	srv, rec := newServer(t, http.StatusInternalServerError, func(string) any {
		return map[string]any{"error": map[string]any{"code": 500, "message": "boom", "status": "INTERNAL"}}
	})
	b := newBackend(t, srv)
	if _, err := b.Generate(context.Background(), gateway.GenerateRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.paths) != 1 {
		t.Errorf("server hit %d times, want exactly 1 (no retry)", len(rec.paths))
	}
}

func TestSpeak(t *testing.T) {
	t.Parallel()

	pcm := []byte{0x00, 0x40, 0x00, 0xC0}
	srv, rec := newServer(t, http.StatusOK, func(string) any {
		return map[string]any{
			"candidates": []any{
				map[string]any{
					"content": map[string]any{
						"role": "model",
						"parts": []any{map[string]any{
							"inlineData": map[string]any{
								"mimeType": "audio/L16;codec=pcm;rate=24000",
								"data":     base64.StdEncoding.EncodeToString(pcm),
							},
						}},
					},
				},
			},
		}
	})
	b := newBackend(t, srv)

	got, err := b.Speak(context.Background(), "Well done.")
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if string(got) != string(pcm) {
		t.Errorf("Speak = %v, want %v", got, pcm)
	}
	path, body := rec.last()
	if !strings.HasSuffix(path, fmt.Sprintf("%s:generateContent", gemini.DefaultSpeechModel)) {
		t.Errorf("path = %q", path)
	}
	for _, s := range []string{"Well done.", gemini.DefaultVoice, "AUDIO"} {
		if !strings.Contains(body, s) {
			t.Errorf("request body missing %q: %s", s, body)
		}
	}
}

func TestSpeak_NoAudio(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, http.StatusOK, func(string) any { return textResponse("sorry") })
	b := newBackend(t, srv)
	if _, err := b.Speak(context.Background(), "hello"); err == nil {
		t.Fatal("expected error when response carries no audio")
	}
}
