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

package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/faqrag/ai"
	"github.com/poiesic/faqrag/core"
	"github.com/poiesic/faqrag/corpus"
	"github.com/poiesic/faqrag/index"
	"github.com/poiesic/faqrag/storage"
)

// DefaultBatchSize is the number of records embedded per oracle call.
const DefaultBatchSize = 32

// Pipeline embeds a corpus and materializes its vector index.
type Pipeline struct {
	embedder       ai.Embedder
	pool           *ants.Pool
	batchSize      int
	embeddingModel string
	progressWriter io.Writer
	reportInterval int
	logger         *slog.Logger
}

// Result is a built index together with the header describing it.
type Result struct {
	Index  *index.Flat
	Header core.IndexHeader
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many records are embedded per oracle call.
// Default is 32.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("batch size must be at least 1, got %d", size)
		}
		p.batchSize = size
		return nil
	}
}

// WithEmbeddingModel records the embedding model name in the index header.
func WithEmbeddingModel(model string) Option {
	return func(p *Pipeline) error {
		p.embeddingModel = model
		return nil
	}
}

// WithProgress reports progress to w every interval records.
func WithProgress(w io.Writer, interval int) Option {
	return func(p *Pipeline) error {
		if interval < 1 {
			interval = 1
		}
		p.progressWriter = w
		p.reportInterval = interval
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
// Call Release when done to free the worker pool.
func NewPipeline(embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		embedder:  embedder,
		pool:      pool,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// Build embeds records and returns the resulting index.
// The i-th vector of the index corresponds to records[i].
func (p *Pipeline) Build(ctx context.Context, records []core.Record) (*Result, error) {
	if err := core.ValidateCorpus(records); err != nil {
		return nil, err
	}

	inputs := make([]string, len(records))
	for i, r := range records {
		inputs[i] = core.EmbeddingInput(r)
	}

	var progress *ProgressTracker
	if p.progressWriter != nil {
		progress = NewProgressTracker(p.progressWriter, len(records), p.reportInterval)
		progress.Start()
	}

	p.logger.Info("embedding corpus", "records", len(records), "batchSize", p.batchSize)
	vectors, err := p.embedAll(ctx, inputs, progress)
	if err != nil {
		p.logger.Error("error embedding corpus", "err", err)
		return nil, err
	}
	if progress != nil {
		progress.Finish()
	}

	flat := index.NewFlat(0)
	if err := flat.Add(vectors...); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrOracle, err)
	}

	header := core.IndexHeader{
		Dimension:         flat.Dimension(),
		Count:             flat.Len(),
		EmbeddingModel:    p.embeddingModel,
		Template:          core.EmbeddingTemplate,
		CorpusFingerprint: corpus.Fingerprint(records),
		CreatedAt:         time.Now().UTC(),
	}
	p.logger.Info("built index", "records", header.Count, "dimension", header.Dimension)

	return &Result{Index: flat, Header: header}, nil
}

// embedAll embeds inputs in batches on the worker pool. Each batch writes
// into its own range of the result, so completion order does not matter.
func (p *Pipeline) embedAll(ctx context.Context, inputs []string, progress *ProgressTracker) ([][]float32, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vectors := make([][]float32, len(inputs))

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for start := 0; start < len(inputs); start += p.batchSize {
		end := min(start+p.batchSize, len(inputs))

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}

			out, err := p.embedder.EmbedTexts(ctx, inputs[start:end])
			if err != nil {
				fail(fmt.Errorf("%w: records %d-%d: %w", core.ErrOracle, start, end-1, err))
				return
			}
			if len(out) != end-start {
				fail(fmt.Errorf("%w: %w: records %d-%d: expected %d, received %d",
					core.ErrOracle, ErrVectorCountMismatch, start, end-1, end-start, len(out)))
				return
			}
			for i, v := range out {
				if len(v) == 0 {
					fail(fmt.Errorf("%w: %w: record %d", core.ErrOracle, ErrEmptyVector, start+i))
					return
				}
				vectors[start+i] = core.NormalizeVector(v)
			}
			if progress != nil {
				progress.Increment(end - start)
			}
		})
		if submitErr != nil {
			wg.Done()
			fail(submitErr)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Persist writes a built index through repo.
func (p *Pipeline) Persist(ctx context.Context, repo storage.IndexRepository, result *Result) error {
	if repo == nil {
		return ErrRepositoryRequired
	}
	if err := repo.SaveIndex(ctx, result.Header, result.Index.Vectors()); err != nil {
		p.logger.Error("error persisting index", "err", err)
		return err
	}
	p.logger.Info("persisted index", "records", result.Header.Count)
	return nil
}

// Run builds the index for records and persists it through repo.
func (p *Pipeline) Run(ctx context.Context, records []core.Record, repo storage.IndexRepository) (*Result, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	result, err := p.Build(ctx, records)
	if err != nil {
		return nil, err
	}
	if err := p.Persist(ctx, repo, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
