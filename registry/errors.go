package registry

import "errors"

var (
	// ErrLoaderRequired is returned when no load function is provided.
	ErrLoaderRequired = errors.New("load function required")

	// ErrClosed is returned by Get after Close.
	ErrClosed = errors.New("registry closed")
)
