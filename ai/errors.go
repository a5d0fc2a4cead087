package ai

import "errors"

// ErrInvalidMaxAttempts is returned when maxAttempts is less than 1.
var ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
