// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package faqrag

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/poiesic/faqrag/config"
	"github.com/poiesic/faqrag/core"
	"github.com/poiesic/faqrag/query"
	"github.com/poiesic/faqrag/registry"
)

// ErrConfigRequired is returned when NewEngine is called without a config.
var ErrConfigRequired = errors.New("config required")

// Engine answers questions against named configurations.
type Engine struct {
	cfg            *config.File
	registry       *registry.Registry
	newProvider    ProviderFactory
	metrics        *query.Metrics
	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
	retryAttempts  int
	retryDelay     time.Duration
	logger         *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithProviderFactory replaces NewProvider, typically with a mock in tests.
func WithProviderFactory(factory ProviderFactory) Option {
	return func(e *Engine) error {
		if factory == nil {
			factory = NewProvider
		}
		e.newProvider = factory
		return nil
	}
}

// WithMetricsRegisterer registers query metrics with reg.
// Metrics are disabled by default.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) error {
		e.registerer = reg
		return nil
	}
}

// WithTracerProvider sets the provider for query spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) error {
		e.tracerProvider = tp
		return nil
	}
}

// WithIngestRetry retries failed embedding calls during ingestion.
func WithIngestRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(e *Engine) error {
		e.retryAttempts = maxAttempts
		e.retryDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates an engine for the configurations in cfg.
// Nothing is loaded until first use.
func NewEngine(cfg *config.File, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		newProvider: NewProvider,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "engine")

	if e.registerer != nil {
		metrics, err := query.NewMetrics(e.registerer)
		if err != nil {
			return nil, err
		}
		e.metrics = metrics
	}

	reg, err := registry.New(cfg.Configurations, e.loadConfiguration, registry.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	e.registry = reg
	return e, nil
}

// DefaultParams returns the query parameters from the config defaults.
func (e *Engine) DefaultParams() query.Params {
	return query.Params{K: e.cfg.Defaults.K, Threshold: e.cfg.Threshold()}
}

// Configurations returns the configuration names in sorted order.
func (e *Engine) Configurations() []string {
	return e.registry.Names()
}

// Configuration returns the named configuration, loading it on first use.
func (e *Engine) Configuration(ctx context.Context, name string) (*registry.Configuration, error) {
	return e.registry.Get(ctx, name)
}

// Answer answers question using the named configuration.
func (e *Engine) Answer(ctx context.Context, question, name string, params query.Params) (*core.QueryResult, error) {
	c, err := e.registry.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.Pipeline.Answer(ctx, question, params)
}

// Close releases all loaded configurations.
func (e *Engine) Close() error {
	if err := e.registry.Close(); err != nil {
		e.logger.Error("error closing configurations", "err", err)
		return err
	}
	return nil
}
