package goopenai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/poiesic/faqrag/ai"
	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrNoChoices is returned when the model responds without any completion.
	ErrNoChoices = errors.New("no choices returned from model")

	// ErrEmbeddingCount is returned when the service returns a different
	// number of vectors than requested.
	ErrEmbeddingCount = errors.New("embedding count mismatch")
)

// zeroTemperature is the smallest temperature go-openai will serialize.
// A literal zero is dropped by the request's omitempty tag.
const zeroTemperature = math.SmallestNonzeroFloat32

// Embedder implements ai.Embedder using go-openai.
type Embedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	logger *slog.Logger
}

// Generator implements ai.Generator using go-openai chat completions.
type Generator struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// Provider implements ai.Provider using go-openai.
type Provider struct {
	embedder  *Embedder
	generator *Generator
	logger    *slog.Logger
}

func newClient(host, token string) *openai.Client {
	cfg := openai.DefaultConfig(token)
	cfg.BaseURL = host
	return openai.NewClientWithConfig(cfg)
}

// NewProvider creates a provider backed by go-openai clients.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Provider{
		embedder: &Embedder{
			client: newClient(config.EmbeddingHost, config.APIKey),
			model:  openai.EmbeddingModel(config.EmbeddingModel),
			logger: slog.Default().With("component", "goopenai-embedder", "model", config.EmbeddingModel),
		},
		generator: &Generator{
			client: newClient(config.GenerationHost, config.APIKey),
			model:  config.GenerationModel,
			logger: slog.Default().With("component", "goopenai-generator", "model", config.GenerationModel),
		},
		logger: slog.Default().With("component", "goopenai-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Generator returns the text generation service.
func (p *Provider) Generator() ai.Generator {
	return p.generator
}

// Close is a no-op; the HTTP clients hold no dedicated resources.
func (p *Provider) Close() error {
	p.logger.Debug("closing go-openai provider")
	return nil
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple texts in one request.
// Results are placed by the index reported in the response.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: requested %d, received %d", ErrEmbeddingCount, len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) || vectors[item.Index] != nil {
			return nil, fmt.Errorf("%w: unexpected index %d", ErrEmbeddingCount, item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// Generate returns a single deterministic chat completion for prompt.
func (g *Generator) Generate(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: zeroTemperature,
		MaxTokens:   maxOutputTokens,
		N:           1,
	})
	if err != nil {
		g.logger.Error("failed to generate completion", "err", err)
		return "", err
	}
	if len(resp.Choices) < 1 {
		return "", ErrNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
