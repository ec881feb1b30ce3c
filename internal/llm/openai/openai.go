// Package openai implements retrieval.Embedder and assistant.Completer on
// any OpenAI-compatible API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/linnemanlabs/helpdesk/internal/assistant"
)

// Defaults used when no model is configured.
const (
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultChatModel      = "gpt-4o-mini"
)

// Config configures the API connection. BaseURL is optional and points the
// client at a compatible provider.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func newClient(cfg Config) *openai.Client {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		cc.HTTPClient = cfg.HTTPClient
	}
	return openai.NewClientWithConfig(cc)
}

// Embedder produces text embeddings.
type Embedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewEmbedder creates an Embedder. dimensions <= 0 keeps the model default.
func NewEmbedder(cfg Config, model string, dimensions int) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{client: newClient(cfg), model: model, dimensions: max(dimensions, 0)}
}

// Embed returns the embedding of a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request, preserving input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts to embed")
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("create embeddings: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("create embeddings: index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Completer sends chat completions.
type Completer struct {
	client *openai.Client
	model  string
}

// NewCompleter creates a Completer.
func NewCompleter(cfg Config, model string) *Completer {
	if model == "" {
		model = DefaultChatModel
	}
	return &Completer{client: newClient(cfg), model: model}
}

// Complete sends the system and user prompts as one chat request.
func (c *Completer) Complete(ctx context.Context, req *assistant.CompletionRequest) (*assistant.Completion, error) {
	resp, err := c.client.CreateChatCompletion(ctx, toChatRequest(c.model, req))
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion: no choices")
	}
	return &assistant.Completion{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		StopReason:   string(resp.Choices[0].FinishReason),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func toChatRequest(model string, req *assistant.CompletionRequest) openai.ChatCompletionRequest {
	var msgs []openai.ChatCompletionMessage
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})
	temp := float32(req.Temperature)
	if temp == 0 {
		// The field is omitempty; the API treats an absent temperature as 1.
		temp = math.SmallestNonzeroFloat32
	}
	return openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: temp,
		Messages:    msgs,
	}
}
