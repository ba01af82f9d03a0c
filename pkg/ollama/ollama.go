// Package ollama implements the llm interfaces against a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/pochini/pochini/pkg/llm"
)

// Client wraps the Ollama API client with a fixed chat and embedding model.
type Client struct {
	api        *api.Client
	chatModel  string
	embedModel string
}

// New creates an Ollama client for the server at baseURL.
func New(baseURL, chatModel, embedModel string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: parse url %q: %w", baseURL, err)
	}
	return &Client{
		api:        api.NewClient(u, http.DefaultClient),
		chatModel:  chatModel,
		embedModel: embedModel,
	}, nil
}

var _ llm.Model = (*Client)(nil)
var _ llm.Embedder = (*Client)(nil)

func (c *Client) chatRequest(req llm.Request, stream bool) *api.ChatRequest {
	msgs := make([]api.Message, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: req.System})
	}
	for _, m := range req.History {
		role := "user"
		if m.Role == llm.RoleModel {
			role = "assistant"
		}
		msgs = append(msgs, api.Message{Role: role, Content: m.Content})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: req.Prompt})

	opts := map[string]any{}
	if req.Temperature > 0 {
		opts["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	out := &api.ChatRequest{
		Model:    c.chatModel,
		Messages: msgs,
		Stream:   &stream,
		Options:  opts,
	}
	if req.Schema != nil {
		out.Format = req.Schema.JSON()
	}
	return out
}

// Generate implements llm.Generator.
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return c.chat(ctx, req, false, nil)
}

// Stream implements llm.Streamer.
func (c *Client) Stream(ctx context.Context, req llm.Request, onChunk func(string) error) (*llm.Response, error) {
	return c.chat(ctx, req, true, onChunk)
}

func (c *Client) chat(ctx context.Context, req llm.Request, stream bool, onChunk func(string) error) (*llm.Response, error) {
	var (
		b   strings.Builder
		out = &llm.Response{Model: c.chatModel}
	)
	err := c.api.Chat(ctx, c.chatRequest(req, stream), func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			b.WriteString(resp.Message.Content)
			if onChunk != nil {
				if err := onChunk(resp.Message.Content); err != nil {
					return err
				}
			}
		}
		if resp.Done {
			out.Model = resp.Model
			out.TokensUsed = int32(resp.PromptEvalCount + resp.EvalCount)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	if strings.TrimSpace(b.String()) == "" {
		return nil, llm.ErrEmptyResponse
	}
	out.Text = b.String()
	return out, nil
}

// Embed implements llm.Embedder.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.Embed(ctx, &api.EmbedRequest{Model: c.embedModel, Input: text})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama embed: no embeddings returned")
	}
	return resp.Embeddings[0], nil
}
