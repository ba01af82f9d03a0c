// Package llm defines the provider-neutral model interface used by the
// advisor flows, plus a guarded wrapper that adds retries, a circuit breaker
// and outbound rate limiting around any backend.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Role of a message in a multi-turn request.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one prior turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

// Request is a single model invocation.
type Request struct {
	// Name identifies the calling flow in logs and metrics.
	Name        string
	System      string
	Prompt      string
	History     []Message
	Schema      *Schema // when set the backend must answer with matching JSON
	Temperature float32
	MaxTokens   int32
}

// Response is the model output.
type Response struct {
	Text       string
	Model      string
	TokensUsed int32
}

// Generator produces a complete response.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Streamer produces a response incrementally, calling onChunk per fragment.
// The returned Response holds the concatenated text.
type Streamer interface {
	Stream(ctx context.Context, req Request, onChunk func(string) error) (*Response, error)
}

// Model is a backend that can both generate and stream.
type Model interface {
	Generator
	Streamer
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrEmptyResponse is returned when a backend answers with no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// SchemaType is the JSON type of a schema node.
type SchemaType string

const (
	TypeObject SchemaType = "object"
	TypeArray  SchemaType = "array"
	TypeString SchemaType = "string"
)

// Schema is the small subset of JSON Schema the flows need.
type Schema struct {
	Type        SchemaType         `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
}

// JSON renders the schema as a JSON Schema document.
func (s *Schema) JSON() json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// DecodeJSON unmarshals model output into v, tolerating markdown code fences
// and prose around the JSON object.
func DecodeJSON(text string, v any) error {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```json")
		t = strings.TrimPrefix(t, "```")
		t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	}
	if start, end := strings.IndexByte(t, '{'), strings.LastIndexByte(t, '}'); start >= 0 && end > start {
		t = t[start : end+1]
	}
	if err := json.Unmarshal([]byte(t), v); err != nil {
		return fmt.Errorf("llm: decode json: %w", err)
	}
	return nil
}
