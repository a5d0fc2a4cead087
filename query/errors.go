package query

import "errors"

var (
	// ErrInvalidK is returned when k is less than 1.
	ErrInvalidK = errors.New("k must be at least 1")

	// ErrInvalidThreshold is returned for a NaN threshold.
	ErrInvalidThreshold = errors.New("threshold must be a number")

	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrGeneratorRequired is returned when a generator is not provided.
	ErrGeneratorRequired = errors.New("generator required")

	// ErrEmptyGeneration is returned when the generator produces no text.
	ErrEmptyGeneration = errors.New("generator returned empty text")

	// ErrEmbeddingCount is returned when the embedder returns a different
	// number of vectors than candidates submitted.
	ErrEmbeddingCount = errors.New("embedding result count mismatch")

	// ErrEmbeddingDimension is returned when a candidate vector and the
	// question vector have different dimensions.
	ErrEmbeddingDimension = errors.New("embedding dimension mismatch")
)
