package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces text completions.
// Implementations must be thread-safe for concurrent use and must generate
// deterministically (no sampling) so that identical prompts yield identical
// output for a fixed model.
type Generator interface {
	// Generate returns a single completion for prompt, limited to
	// maxOutputTokens tokens.
	Generate(ctx context.Context, prompt string, maxOutputTokens int) (string, error)
}

// Provider aggregates model services for convenient initialization and
// lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the text generation service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
