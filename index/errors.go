package index

import "errors"

var (
	// ErrDimensionMismatch is returned when a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyVector is returned when adding a zero-length vector.
	ErrEmptyVector = errors.New("vector cannot be empty")

	// ErrInvalidK is returned when k is less than 1.
	ErrInvalidK = errors.New("k must be at least 1")
)
