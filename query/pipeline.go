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

package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/poiesic/faqrag/ai"
	"github.com/poiesic/faqrag/core"
	"github.com/poiesic/faqrag/index"
)

const tracerName = "github.com/poiesic/faqrag/query"

// Defaults for the generation prompt.
const (
	DefaultAssistantName  = "FAQ-Bot"
	DefaultNotFoundAnswer = "I could not find that in the help data."
)

// Pipeline answers questions against one corpus and its paired index.
type Pipeline struct {
	name      string
	records   []core.Record
	// normalized questions, parallel to records
	questions []string
	index     index.Index
	embedder  ai.Embedder
	generator ai.Generator

	assistantName   string
	notFound        string
	maxOutputTokens int

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithName sets the configuration name used in logs, metrics and spans.
func WithName(name string) Option {
	return func(p *Pipeline) error {
		p.name = name
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

// WithMetrics sets the collectors updated by Answer. Nil disables metrics.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) error {
		p.metrics = m
		return nil
	}
}

// WithTracerProvider sets the provider for answer spans.
// Default is the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pipeline) error {
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		p.tracer = tp.Tracer(tracerName)
		return nil
	}
}

// WithAssistantName sets the assistant name written into the prompt.
func WithAssistantName(name string) Option {
	return func(p *Pipeline) error {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("assistant name cannot be empty")
		}
		p.assistantName = name
		return nil
	}
}

// WithNotFoundAnswer sets the sentinel answer for questions without a
// confident match.
func WithNotFoundAnswer(answer string) Option {
	return func(p *Pipeline) error {
		if strings.TrimSpace(answer) == "" {
			return fmt.Errorf("not-found answer cannot be empty")
		}
		p.notFound = answer
		return nil
	}
}

// WithMaxOutputTokens caps the generated answer length.
func WithMaxOutputTokens(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("max output tokens must be at least 1, got %d", n)
		}
		p.maxOutputTokens = n
		return nil
	}
}

// NewPipeline creates a pipeline over records and their paired index.
// The i-th index vector must describe records[i]; a length mismatch is a
// configuration error.
func NewPipeline(records []core.Record, idx index.Index, embedder ai.Embedder, generator ai.Generator, opts ...Option) (*Pipeline, error) {
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	if err := core.ValidatePairing(len(records), idx.Len()); err != nil {
		return nil, err
	}

	p := &Pipeline{
		records:         records,
		questions:       make([]string, len(records)),
		index:           idx,
		embedder:        embedder,
		generator:       generator,
		assistantName:   DefaultAssistantName,
		notFound:        DefaultNotFoundAnswer,
		maxOutputTokens: DefaultMaxOutputTokens,
		logger:          slog.Default(),
		tracer:          otel.Tracer(tracerName),
	}
	for i, r := range records {
		p.questions[i] = core.NormalizeQuestion(r.Question)
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "query", "configuration", p.name)

	return p, nil
}

// Name returns the configuration name.
func (p *Pipeline) Name() string {
	return p.name
}

// Len returns the number of records served.
func (p *Pipeline) Len() int {
	return len(p.records)
}

// NotFoundAnswer returns the sentinel answer text.
func (p *Pipeline) NotFoundAnswer() string {
	return p.notFound
}

// Answer answers question. See AnswerWithMonitor.
func (p *Pipeline) Answer(ctx context.Context, question string, params Params) (*core.QueryResult, error) {
	return p.AnswerWithMonitor(ctx, question, params, nil)
}

// AnswerWithMonitor answers question, reporting each stage to monitor.
// A nil monitor is allowed.
func (p *Pipeline) AnswerWithMonitor(ctx context.Context, question string, params Params, monitor Monitor) (result *core.QueryResult, err error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	ctx, span := p.tracer.Start(ctx, "query.Answer", trace.WithAttributes(
		attribute.String("faqrag.configuration", p.name),
		attribute.Int("faqrag.k", params.K),
		attribute.Float64("faqrag.threshold", float64(params.Threshold)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.String("faqrag.matched_via", result.MatchedVia.String()),
				attribute.Float64("faqrag.score", float64(result.Score)),
			)
			p.metrics.observeAnswer(p.name, result.MatchedVia.String())
		}
		span.End()
	}()

	monitor.Start(question)
	question = strings.TrimSpace(question)
	normalized := core.NormalizeQuestion(question)
	if normalized == "" {
		p.logger.Debug("empty question")
		result = core.NotFound(p.notFound)
		monitor.Finish(result)
		return result, nil
	}

	if result = p.directMatch(ctx, normalized); result != nil {
		monitor.DirectMatch(result.Position)
		monitor.Finish(result)
		return result, nil
	}

	queryVector, hits, err := p.retrieve(ctx, question, params.K)
	if err != nil {
		p.metrics.observeError(p.name, stageRetrieve)
		return nil, err
	}
	monitor.AfterRetrieval(hits)
	if len(hits) == 0 {
		result = core.NotFound(p.notFound)
		monitor.Finish(result)
		return result, nil
	}

	winner, score, scores, err := p.rerank(ctx, queryVector, hits)
	if err != nil {
		p.metrics.observeError(p.name, stageRerank)
		return nil, err
	}
	monitor.AfterRerank(scores, winner)
	p.metrics.observeScore(p.name, score)

	if math.IsNaN(float64(score)) || score < params.Threshold {
		p.logger.Debug("best candidate below threshold", "score", score, "threshold", params.Threshold)
		monitor.BelowThreshold(score, params.Threshold)
		result = core.NotFound(p.notFound)
		result.Score = score
		monitor.Finish(result)
		return result, nil
	}

	record := p.records[winner]
	p.logger.Debug("semantic match", "position", winner, "record", record.ID(), "score", score)
	contextText := core.ContextText(record)
	prompt := buildPrompt(p.assistantName, p.notFound, contextText, question)
	monitor.BeforeGeneration(prompt)

	answer, err := p.generate(ctx, prompt)
	if err != nil {
		p.metrics.observeError(p.name, stageGenerate)
		return nil, err
	}

	result = &core.QueryResult{
		Answer:     answer,
		Context:    contextText,
		MatchedVia: core.MatchSemantic,
		Score:      score,
		Position:   winner,
	}
	monitor.Finish(result)
	return result, nil
}

// directMatch returns the first record whose normalized question contains,
// or is contained in, the normalized query.
func (p *Pipeline) directMatch(ctx context.Context, normalized string) *core.QueryResult {
	defer p.metrics.observeStage(stageDirect, time.Now())
	_, span := p.tracer.Start(ctx, "query.direct")
	defer span.End()

	for i, q := range p.questions {
		if q == "" {
			continue
		}
		if strings.Contains(q, normalized) || strings.Contains(normalized, q) {
			span.SetAttributes(attribute.Int("faqrag.position", i))
			p.logger.Debug("direct match", "position", i, "record", p.records[i].ID())
			return &core.QueryResult{
				Answer:     p.records[i].Answer,
				Context:    p.records[i].Question,
				MatchedVia: core.MatchDirect,
				Position:   i,
			}
		}
	}
	return nil
}

// retrieve embeds the bare question and fetches the top-k index hits.
func (p *Pipeline) retrieve(ctx context.Context, question string, k int) ([]float32, []index.Hit, error) {
	defer p.metrics.observeStage(stageRetrieve, time.Now())
	ctx, span := p.tracer.Start(ctx, "query.retrieve", trace.WithAttributes(attribute.Int("faqrag.k", k)))
	defer span.End()

	vector, err := p.embedder.EmbedText(ctx, question)
	if err != nil {
		p.logger.Error("error embedding question", "err", err)
		span.RecordError(err)
		return nil, nil, fmt.Errorf("%w: embedding question: %w", core.ErrOracle, err)
	}
	if len(vector) == 0 {
		return nil, nil, fmt.Errorf("%w: embedding question: empty vector", core.ErrOracle)
	}
	vector = core.NormalizeVector(vector)

	hits, err := p.index.Search(ctx, vector, k)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, index.ErrDimensionMismatch) {
			return nil, nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
		}
		return nil, nil, err
	}
	for _, h := range hits {
		if h.Position < 0 || h.Position >= len(p.records) {
			err := fmt.Errorf("%w: %w: position %d, corpus has %d records",
				core.ErrConfiguration, core.ErrIndexOutOfRange, h.Position, len(p.records))
			p.logger.Error("index returned unknown position", "position", h.Position, "records", len(p.records))
			span.RecordError(err)
			return nil, nil, err
		}
	}
	span.SetAttributes(attribute.Int("faqrag.hits", len(hits)))
	return vector, hits, nil
}

// rerank scores each hit by cosine similarity between the query vector and
// the record's templated embedding. Ties go to the earliest hit.
func (p *Pipeline) rerank(ctx context.Context, queryVector []float32, hits []index.Hit) (int, float32, []float32, error) {
	defer p.metrics.observeStage(stageRerank, time.Now())
	ctx, span := p.tracer.Start(ctx, "query.rerank", trace.WithAttributes(attribute.Int("faqrag.candidates", len(hits))))
	defer span.End()

	inputs := make([]string, len(hits))
	for i, h := range hits {
		inputs[i] = core.EmbeddingInput(p.records[h.Position])
	}
	vectors, err := p.embedder.EmbedTexts(ctx, inputs)
	if err != nil {
		p.logger.Error("error embedding candidates", "candidates", len(inputs), "err", err)
		span.RecordError(err)
		return 0, 0, nil, fmt.Errorf("%w: embedding candidates: %w", core.ErrOracle, err)
	}
	if len(vectors) != len(inputs) {
		return 0, 0, nil, fmt.Errorf("%w: %w: submitted %d, received %d",
			core.ErrOracle, ErrEmbeddingCount, len(inputs), len(vectors))
	}

	scores := make([]float32, len(vectors))
	best := -1
	var bestScore float32
	for i, v := range vectors {
		if len(v) != len(queryVector) {
			span.RecordError(ErrEmbeddingDimension)
			return 0, 0, nil, fmt.Errorf("%w: %w: candidate %d has %d dimensions, question has %d",
				core.ErrOracle, ErrEmbeddingDimension, i, len(v), len(queryVector))
		}
		scores[i] = core.Cosine(queryVector, core.NormalizeVector(v))
		if math.IsNaN(float64(scores[i])) {
			continue
		}
		if best < 0 || scores[i] > bestScore {
			best = i
			bestScore = scores[i]
		}
	}
	if best < 0 {
		return hits[0].Position, float32(math.NaN()), scores, nil
	}

	position := hits[best].Position
	span.SetAttributes(
		attribute.Int("faqrag.position", position),
		attribute.Float64("faqrag.score", float64(bestScore)),
	)
	return position, bestScore, scores, nil
}

func (p *Pipeline) generate(ctx context.Context, prompt string) (string, error) {
	defer p.metrics.observeStage(stageGenerate, time.Now())
	ctx, span := p.tracer.Start(ctx, "query.generate")
	defer span.End()

	text, err := p.generator.Generate(ctx, prompt, p.maxOutputTokens)
	if err != nil {
		p.logger.Error("error generating answer", "err", err)
		span.RecordError(err)
		return "", fmt.Errorf("%w: generating answer: %w", core.ErrOracle, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		span.RecordError(ErrEmptyGeneration)
		return "", fmt.Errorf("%w: %w", core.ErrOracle, ErrEmptyGeneration)
	}
	return text, nil
}
