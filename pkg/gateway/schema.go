package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Kind is the JSON type of a schema field.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
)

// Field is one required property of a response object.
type Field struct {
	Name        string
	Kind        Kind
	Description string

	// Minimum and Maximum bound numeric fields when non-nil.
	Minimum *float64
	Maximum *float64
}

// Schema is a flat response object: every field is required and nothing else
// is allowed.
type Schema struct {
	// Name is a short identifier some services require, e.g. "evaluation".
	Name   string
	Fields []Field

	once     sync.Once
	compiled *gojsonschema.Schema
	err      error
}

// JSONSchema returns the schema as a JSON Schema document.
func (s *Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	required := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		p := map[string]any{"type": string(f.Kind)}
		if f.Description != "" {
			p["description"] = f.Description
		}
		if f.Minimum != nil {
			p["minimum"] = *f.Minimum
		}
		if f.Maximum != nil {
			p["maximum"] = *f.Maximum
		}
		props[f.Name] = p
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// Decode validates raw against the schema and returns the decoded object.
func (s *Schema) Decode(raw string) (map[string]any, error) {
	s.once.Do(func() {
		s.compiled, s.err = gojsonschema.NewSchema(gojsonschema.NewGoLoader(s.JSONSchema()))
	})
	if s.err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", s.Name, s.err)
	}

	doc := stripFences(raw)
	if doc == "" {
		return nil, fmt.Errorf("empty %s payload", s.Name)
	}
	result, err := s.compiled.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", s.Name, err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return nil, fmt.Errorf("%s payload violates schema: %s", s.Name, strings.Join(errs, "; "))
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", s.Name, err)
	}
	return out, nil
}

// stripFences removes a surrounding markdown code fence some models add even
// when asked for raw JSON.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func bound(v float64) *float64 { return &v }

var (
	openingSchema = &Schema{
		Name: "opening",
		Fields: []Field{
			{Name: "openingLine", Kind: KindString, Description: "Greeting followed by the first interview question."},
		},
	}

	evaluationSchema = &Schema{
		Name: "evaluation",
		Fields: []Field{
			{Name: "score", Kind: KindInteger, Description: "Score for the answer from 0 to 10.", Minimum: bound(MinScore), Maximum: bound(MaxScore)},
			{Name: "strengths", Kind: KindString, Description: "What the candidate did well."},
			{Name: "areasForImprovement", Kind: KindString, Description: "What the candidate should improve."},
			{Name: "refinedAnswer", Kind: KindString, Description: "A model answer using the STAR method."},
			{Name: "userTranscription", Kind: KindString, Description: "Literal transcription of the spoken answer, empty for typed answers."},
			{Name: "coachReaction", Kind: KindString, Description: "One or two sentences reacting to the answer. Never a question."},
			{Name: "isFinished", Kind: KindBoolean, Description: "True only after the final question has been answered."},
		},
	}

	questionSchema = &Schema{
		Name: "question",
		Fields: []Field{
			{Name: "question", Kind: KindString, Description: "Exactly one interview question."},
		},
	}
)
