package faqrag

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/faqrag/ai"
	"github.com/poiesic/faqrag/config"
	"github.com/poiesic/faqrag/core"
	"github.com/poiesic/faqrag/corpus"
	"github.com/poiesic/faqrag/index"
	"github.com/poiesic/faqrag/query"
	"github.com/poiesic/faqrag/registry"
	"github.com/poiesic/faqrag/storage"
	"github.com/poiesic/faqrag/storage/badger"
)

// loadConfiguration reads the persisted index and corpus for entry and
// builds a query pipeline over them.
func (e *Engine) loadConfiguration(ctx context.Context, name string, entry config.Entry) (*registry.Configuration, error) {
	logger := e.logger.With("configuration", name)

	header, vectors, err := loadIndex(ctx, entry.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrConfiguration, name, err)
	}

	records, err := corpus.Load(entry.CorpusPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrConfiguration, name, err)
	}
	if err := core.ValidatePairing(len(records), len(vectors)); err != nil {
		logger.Error("corpus and index disagree", "records", len(records), "vectors", len(vectors))
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	if header.Template != core.EmbeddingTemplate {
		logger.Warn("index built with a different embedding template",
			"indexTemplate", header.Template, "template", core.EmbeddingTemplate)
	}
	if header.CorpusFingerprint != corpus.Fingerprint(records) {
		logger.Warn("corpus changed since the index was built", "corpus", entry.CorpusPath)
	}
	if header.EmbeddingModel != "" && header.EmbeddingModel != entry.EmbeddingModel {
		logger.Warn("index built with a different embedding model",
			"indexModel", header.EmbeddingModel, "model", entry.EmbeddingModel)
	}

	idx := index.NewFlat(header.Dimension)
	if err := idx.Add(vectors...); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrConfiguration, name, err)
	}

	provider, err := e.newProvider(e.cfg.AIConfig(entry))
	if err != nil {
		return nil, fmt.Errorf("%s: creating provider: %w", name, err)
	}

	opts := []query.Option{
		query.WithName(name),
		query.WithLogger(e.logger),
		query.WithMetrics(e.metrics),
		query.WithAssistantName(e.cfg.Defaults.AssistantName),
		query.WithNotFoundAnswer(e.cfg.Defaults.NotFoundAnswer),
		query.WithMaxOutputTokens(e.cfg.Defaults.MaxOutputTokens),
	}
	if e.tracerProvider != nil {
		opts = append(opts, query.WithTracerProvider(e.tracerProvider))
	}
	pipeline, err := query.NewPipeline(records, idx, provider.Embedder(), provider.Generator(), opts...)
	if err != nil {
		return nil, errors.Join(err, provider.Close())
	}

	logger.Info("configuration loaded", "records", len(records), "dimension", header.Dimension)
	return &registry.Configuration{
		Name:     name,
		Entry:    entry,
		Header:   header,
		Pipeline: pipeline,
		Provider: provider,
	}, nil
}

// loadIndex reads the index at path and closes the store. The store is
// opened read-only and its directory is left untouched.
func loadIndex(ctx context.Context, path string) (core.IndexHeader, [][]float32, error) {
	backend, err := badger.OpenReadOnlyBackend(path)
	if err != nil {
		return core.IndexHeader{}, nil, fmt.Errorf("index %s: %w", path, err)
	}
	defer backend.Close()

	repo, err := badger.NewIndexRepository(backend)
	if err != nil {
		return core.IndexHeader{}, nil, err
	}
	defer repo.Close()

	header, vectors, err := repo.LoadIndex(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return core.IndexHeader{}, nil, fmt.Errorf("index %s: %w", path, err)
	}
	return header, vectors, err
}

// ingestEmbedder wraps embedder with the configured retry policy.
func (e *Engine) ingestEmbedder(embedder ai.Embedder) ai.Embedder {
	if e.retryAttempts > 1 {
		return ai.WithRetry(embedder, e.retryAttempts, e.retryDelay)
	}
	return embedder
}
