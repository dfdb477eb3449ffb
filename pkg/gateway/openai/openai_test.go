package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/carecoach/pkg/audio"
	"github.com/MrWong99/carecoach/pkg/gateway"
	"github.com/MrWong99/carecoach/pkg/gateway/openai"
)

func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-test",
		"choices": []any{
			map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := openai.New("", "m"); err == nil {
		t.Error("expected error for empty api key")
	}
	if _, err := openai.New("k", ""); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	var body map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse(`{"question":"Why care work?"}`))
	}))
	defer srv.Close()

	b, err := openai.New("test-key", "gpt-test", openai.WithBaseURL(srv.URL), openai.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	schema := &gateway.Schema{Name: "question", Fields: []gateway.Field{{Name: "question", Kind: gateway.KindString}}}
	got, err := b.Generate(context.Background(), gateway.GenerateRequest{System: "Coach.", Prompt: "Ask.", Schema: schema})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != `{"question":"Why care work?"}` {
		t.Errorf("Generate = %q", got)
	}
	if !strings.HasSuffix(path, "/chat/completions") {
		t.Errorf("path = %q", path)
	}
	if body["model"] != "gpt-test" {
		t.Errorf("model = %v", body["model"])
	}
	rf, _ := body["response_format"].(map[string]any)
	if rf["type"] != "json_schema" {
		t.Errorf("response_format = %v", body["response_format"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want system + user", len(msgs))
	}
}

func TestGenerate_WithAudio(t *testing.T) {
	t.Parallel()

	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		raw = string(b)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse(`{}`))
	}))
	defer srv.Close()

	b, err := openai.New("k", "gpt-audio", openai.WithBaseURL(srv.URL), openai.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	blob := &audio.Blob{Data: []byte("wav-bytes"), MIMEType: "audio/wav"}
	if _, err := b.Generate(context.Background(), gateway.GenerateRequest{Prompt: "Evaluate.", Audio: blob}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, s := range []string{"input_audio", audio.EncodeBase64(blob.Data), `"format":"wav"`} {
		if !strings.Contains(raw, s) {
			t.Errorf("request body missing %q: %s", s, raw)
		}
	}
}

func TestGenerate_UnsupportedAudio(t *testing.T) {
	t.Parallel()

	b, err := openai.New("k", "gpt-audio", openai.WithBaseURL("http://127.0.0.1:1"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = b.Generate(context.Background(), gateway.GenerateRequest{
		Prompt: "x",
		Audio:  &audio.Blob{Data: []byte{1}, MIMEType: "audio/webm;codecs=opus"},
	})
	if err == nil || !strings.Contains(err.Error(), "unsupported audio format") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerate_NoRetry(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	b, err := openai.New("k", "gpt-test", openai.WithBaseURL(srv.URL), openai.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Generate(context.Background(), gateway.GenerateRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestSpeak(t *testing.T) {
	t.Parallel()

	pcm := []byte{1, 2, 3, 4}
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/speech") {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "audio/pcm")
		_, _ = w.Write(pcm)
	}))
	defer srv.Close()

	b, err := openai.New("k", "gpt-test", openai.WithBaseURL(srv.URL), openai.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	got, err := b.Speak(context.Background(), "Nice work.")
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if string(got) != string(pcm) {
		t.Errorf("Speak = %v", got)
	}
	if body["response_format"] != "pcm" || body["voice"] != openai.DefaultVoice || body["input"] != "Nice work." {
		t.Errorf("request body = %v", body)
	}
}
