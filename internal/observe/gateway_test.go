package observe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/carecoach/pkg/gateway"
	"github.com/MrWong99/carecoach/pkg/gateway/mock"
)

func TestInstrumentBackend_Generate(t *testing.T) {
	tp, exp := newTestTracerProvider(t)
	useTracerProvider(t, tp)
	m, reader := newTestMetrics(t)

	inner := &mock.Backend{NameValue: "gemini", Responses: []string{`{"question":"q"}`}}
	b := InstrumentBackend(inner, m)

	schema := &gateway.Schema{Name: "question"}
	out, err := b.Generate(context.Background(), gateway.GenerateRequest{Prompt: "p", Schema: schema})
	if err != nil || out != `{"question":"q"}` {
		t.Fatalf("Generate = %q, %v", out, err)
	}
	if b.Name() != "gemini" {
		t.Errorf("Name = %q", b.Name())
	}

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "gateway.generate" {
		t.Fatalf("spans = %v", spans)
	}
	var sawSchema bool
	for _, kv := range spans[0].Attributes {
		if kv.Key == "gateway.schema" && kv.Value.AsString() == "question" {
			sawSchema = true
		}
	}
	if !sawSchema {
		t.Error("span missing gateway.schema attribute")
	}

	rm := collect(t, reader)
	if got := sumWhere(t, rm, "carecoach.gateway.requests", "op", "generate"); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestInstrumentBackend_SpeakError(t *testing.T) {
	tp, exp := newTestTracerProvider(t)
	useTracerProvider(t, tp)
	m, reader := newTestMetrics(t)
	buf := captureLog(t)

	inner := &mock.Backend{NameValue: "openai", SpeakErr: errors.New("quota")}
	b := InstrumentBackend(inner, m)

	if _, err := b.Speak(context.Background(), "hello"); err == nil {
		t.Fatal("expected error")
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want Error", spans[0].Status.Code)
	}

	rm := collect(t, reader)
	if got := sumWhere(t, rm, "carecoach.gateway.errors", "backend", "openai"); got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}
	if !strings.Contains(buf.String(), "gateway call failed") {
		t.Errorf("expected warning log, got: %s", buf.String())
	}
}
