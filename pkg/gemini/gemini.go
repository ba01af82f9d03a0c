// Package gemini implements the llm interfaces on top of the Google GenAI SDK.
package gemini

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/pochini/pochini/pkg/llm"
	"google.golang.org/genai"
)

// Default model names.
const (
	DefaultModel      = "gemini-2.0-flash"
	DefaultEmbedModel = "gemini-embedding-001"
)

// models is the subset of *genai.Models the client calls.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Client talks to the Gemini API.
type Client struct {
	models     models
	model      string
	embedModel string
}

// New creates a Gemini client. Empty model names fall back to the defaults.
func New(ctx context.Context, apiKey, model, embedModel string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newClient(c.Models, model, embedModel), nil
}

func newClient(m models, model, embedModel string) *Client {
	if model == "" {
		model = DefaultModel
	}
	if embedModel == "" {
		embedModel = DefaultEmbedModel
	}
	return &Client{models: m, model: model, embedModel: embedModel}
}

var _ llm.Model = (*Client)(nil)
var _ llm.Embedder = (*Client)(nil)

// Generate implements llm.Generator.
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, toContents(req), toConfig(req))
	if err != nil {
		return nil, fmt.Errorf("gemini: generate: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, llm.ErrEmptyResponse
	}
	return &llm.Response{Text: text, Model: c.modelName(resp), TokensUsed: tokens(resp)}, nil
}

// Stream implements llm.Streamer.
func (c *Client) Stream(ctx context.Context, req llm.Request, onChunk func(string) error) (*llm.Response, error) {
	var (
		b    strings.Builder
		last *genai.GenerateContentResponse
	)
	for resp, err := range c.models.GenerateContentStream(ctx, c.model, toContents(req), toConfig(req)) {
		if err != nil {
			return nil, fmt.Errorf("gemini: stream: %w", err)
		}
		last = resp
		chunk := resp.Text()
		if chunk == "" {
			continue
		}
		b.WriteString(chunk)
		if err := onChunk(chunk); err != nil {
			return nil, err
		}
	}
	if b.Len() == 0 {
		return nil, llm.ErrEmptyResponse
	}
	return &llm.Response{Text: b.String(), Model: c.modelName(last), TokensUsed: tokens(last)}, nil
}

// Embed implements llm.Embedder.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := c.models.EmbedContent(ctx, c.embedModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: embed: %w", err)
	}
	if len(res.Embeddings) == 0 {
		return nil, fmt.Errorf("gemini: embed: no embeddings returned")
	}
	return res.Embeddings[0].Values, nil
}

func (c *Client) modelName(resp *genai.GenerateContentResponse) string {
	if resp != nil && resp.ModelVersion != "" {
		return resp.ModelVersion
	}
	return c.model
}

func tokens(resp *genai.GenerateContentResponse) int32 {
	if resp == nil || resp.UsageMetadata == nil {
		return 0
	}
	return resp.UsageMetadata.TotalTokenCount
}

func toContents(req llm.Request) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		role := genai.Role(genai.RoleUser)
		if m.Role == llm.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))
}

func toConfig(req llm.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{MaxOutputTokens: req.MaxTokens}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toSchema(req.Schema)
	}
	return cfg
}

func toSchema(s *llm.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{Description: s.Description, Required: s.Required}
	switch s.Type {
	case llm.TypeObject:
		out.Type = genai.TypeObject
	case llm.TypeArray:
		out.Type = genai.TypeArray
	default:
		out.Type = genai.TypeString
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = toSchema(v)
		}
	}
	out.Items = toSchema(s.Items)
	return out
}
