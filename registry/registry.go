// Package registry caches loaded configurations by name.
//
// A configuration is loaded on first use and kept until the registry is
// closed. Concurrent first requests for the same name share one load.
// Failed loads are not cached, so a later Get retries. A caller whose
// context ends stops waiting, but the load itself runs to completion.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/poiesic/faqrag/ai"
	"github.com/poiesic/faqrag/config"
	"github.com/poiesic/faqrag/core"
	"github.com/poiesic/faqrag/query"
)

// Configuration is a loaded, ready-to-query configuration.
type Configuration struct {
	Name     string
	Entry    config.Entry
	Header   core.IndexHeader
	Pipeline *query.Pipeline
	// Provider is closed with the configuration. May be nil.
	Provider ai.Provider
}

// Close releases the configuration's provider.
func (c *Configuration) Close() error {
	if c == nil || c.Provider == nil {
		return nil
	}
	return c.Provider.Close()
}

// LoadFunc loads the named configuration.
type LoadFunc func(ctx context.Context, name string, entry config.Entry) (*Configuration, error)

// Registry lazily loads and caches configurations.
type Registry struct {
	entries map[string]config.Entry
	load    LoadFunc
	logger  *slog.Logger

	mu     sync.RWMutex
	loaded map[string]*Configuration
	closed bool
	group  singleflight.Group
}

// Option configures a Registry.
type Option func(*Registry) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// New creates a registry over entries. Entries are copied.
func New(entries map[string]config.Entry, load LoadFunc, opts ...Option) (*Registry, error) {
	if load == nil {
		return nil, ErrLoaderRequired
	}
	r := &Registry{
		entries: maps.Clone(entries),
		load:    load,
		logger:  slog.Default(),
		loaded:  make(map[string]*Configuration),
	}
	if r.entries == nil {
		r.entries = make(map[string]config.Entry)
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "registry")
	return r, nil
}

// Names returns the configured names in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.entries))
}

// Loaded reports whether name has been loaded.
func (r *Registry) Loaded(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.loaded[name]
	return ok
}

// Get returns the named configuration, loading it on first use.
func (r *Registry) Get(ctx context.Context, name string) (*Configuration, error) {
	entry, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", core.ErrConfiguration, core.ErrUnknownConfiguration, name)
	}

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrClosed
	}
	if c, ok := r.loaded[name]; ok {
		r.mu.RUnlock()
		return c, nil
	}
	r.mu.RUnlock()

	// The shared load outlives any one caller; each caller stops waiting
	// when its own context ends.
	loadCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(name, func() (any, error) {
		// A previous flight may have finished between the read and DoChan.
		r.mu.RLock()
		c, ok := r.loaded[name]
		r.mu.RUnlock()
		if ok {
			return c, nil
		}

		r.logger.Info("loading configuration", "name", name)
		c, err := r.load(loadCtx, name, entry)
		if err != nil {
			r.logger.Error("failed to load configuration", "name", name, "err", err)
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			return nil, errors.Join(ErrClosed, c.Close())
		}
		r.loaded[name] = c
		return c, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			r.logger.Debug("shared configuration load", "name", name)
		}
		return res.Val.(*Configuration), nil
	}
}

// Close releases every loaded configuration. Subsequent Gets fail.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for _, name := range slices.Sorted(maps.Keys(r.loaded)) {
		if err := r.loaded[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", name, err))
		}
	}
	clear(r.loaded)
	return errors.Join(errs...)
}
