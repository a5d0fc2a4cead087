package faqrag

import (
	"context"
	"fmt"

	"github.com/poiesic/faqrag/core"
	"github.com/poiesic/faqrag/corpus"
	"github.com/poiesic/faqrag/ingestion"
	"github.com/poiesic/faqrag/storage/badger"
)

// Ingest embeds the corpus of the named configuration and writes its index.
// An existing index at the same path is replaced. Options are applied after
// the engine's defaults.
func (e *Engine) Ingest(ctx context.Context, name string, opts ...ingestion.Option) (*ingestion.Result, error) {
	entry, ok := e.cfg.Entry(name)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", core.ErrConfiguration, core.ErrUnknownConfiguration, name)
	}

	records, err := corpus.Load(entry.CorpusPath)
	if err != nil {
		return nil, err
	}

	provider, err := e.newProvider(e.cfg.AIConfig(entry))
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}
	defer provider.Close()

	pipeline, err := ingestion.NewPipeline(
		e.ingestEmbedder(provider.Embedder()),
		append([]ingestion.Option{
			ingestion.WithEmbeddingModel(entry.EmbeddingModel),
			ingestion.WithLogger(e.logger),
		}, opts...)...,
	)
	if err != nil {
		return nil, err
	}
	defer pipeline.Release()

	backend, err := badger.OpenBackend(entry.IndexPath, false)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			e.logger.Error("error closing index store", "path", entry.IndexPath, "err", err)
		}
	}()

	repo, err := badger.NewIndexRepository(backend)
	if err != nil {
		return nil, err
	}
	defer repo.Close()

	result, err := pipeline.Run(ctx, records, repo)
	if err != nil {
		return nil, err
	}
	e.logger.Info("index written", "configuration", name, "path", entry.IndexPath, "records", result.Header.Count)
	return result, nil
}
