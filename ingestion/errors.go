package ingestion

import "errors"

var (
	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrRepositoryRequired is returned when an index repository is not provided.
	ErrRepositoryRequired = errors.New("index repository required")

	// ErrVectorCountMismatch is returned when the embedder returns a different
	// number of vectors than texts submitted.
	ErrVectorCountMismatch = errors.New("embedding result count mismatch")

	// ErrEmptyVector is returned when the embedder returns a zero-length vector.
	ErrEmptyVector = errors.New("embedder returned an empty vector")
)
