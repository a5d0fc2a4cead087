package query

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/poiesic/faqrag/ai/mock"
	"github.com/poiesic/faqrag/core"
	"github.com/poiesic/faqrag/index"
)

var testRecords = []core.Record{
	{Question: "How do I reset my password?", Answer: "Use the reset link on the login page."},
	{Question: "What are your opening hours?", Answer: "We are open 9 to 5 on weekdays."},
}

// buildIndex embeds records the way ingestion does.
func buildIndex(t *testing.T, embedder *mock.MockEmbedder, records []core.Record) *index.Flat {
	t.Helper()
	inputs := make([]string, len(records))
	for i, r := range records {
		inputs[i] = core.EmbeddingInput(r)
	}
	vectors, err := embedder.EmbedTexts(context.Background(), inputs)
	require.NoError(t, err)
	idx := index.NewFlat(0)
	for _, v := range vectors {
		require.NoError(t, idx.Add(core.NormalizeVector(v)))
	}
	return idx
}

type fixture struct {
	pipeline  *Pipeline
	embedder  *mock.MockEmbedder
	generator *mock.MockGenerator
}

func newFixture(t *testing.T, records []core.Record, opts ...Option) *fixture {
	t.Helper()
	idx := buildIndex(t, mock.NewKeywordEmbedder("password", "hours", "refund"), records)
	embedder := mock.NewKeywordEmbedder("password", "hours", "refund")
	generator := mock.NewMockGenerator()

	opts = append([]Option{WithName("test"), WithTracerProvider(noop.NewTracerProvider())}, opts...)
	p, err := NewPipeline(records, idx, embedder, generator, opts...)
	require.NoError(t, err)
	return &fixture{pipeline: p, embedder: embedder, generator: generator}
}

func TestNewPipeline(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	generator := mock.NewMockGenerator()
	idx := index.NewFlat(0)
	require.NoError(t, idx.Add([]float32{1, 0}, []float32{0, 1}))

	t.Run("requires index", func(t *testing.T) {
		_, err := NewPipeline(testRecords, nil, embedder, generator)
		assert.ErrorIs(t, err, ErrIndexRequired)
	})

	t.Run("requires embedder", func(t *testing.T) {
		_, err := NewPipeline(testRecords, idx, nil, generator)
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("requires generator", func(t *testing.T) {
		_, err := NewPipeline(testRecords, idx, embedder, nil)
		assert.ErrorIs(t, err, ErrGeneratorRequired)
	})

	t.Run("length mismatch is a configuration error", func(t *testing.T) {
		_, err := NewPipeline(testRecords[:1], idx, embedder, generator)
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrConfiguration)
		assert.ErrorIs(t, err, core.ErrLengthMismatch)
	})

	t.Run("rejects invalid options", func(t *testing.T) {
		_, err := NewPipeline(testRecords, idx, embedder, generator, WithMaxOutputTokens(0))
		assert.Error(t, err)
		_, err = NewPipeline(testRecords, idx, embedder, generator, WithNotFoundAnswer("  "))
		assert.Error(t, err)
		_, err = NewPipeline(testRecords, idx, embedder, generator, WithAssistantName(""))
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		p, err := NewPipeline(testRecords, idx, embedder, generator, WithName("faq"))
		require.NoError(t, err)
		assert.Equal(t, "faq", p.Name())
		assert.Equal(t, 2, p.Len())
		assert.Equal(t, DefaultNotFoundAnswer, p.NotFoundAnswer())
	})
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr error
	}{
		{"defaults", DefaultParams(), nil},
		{"k of one", Params{K: 1, Threshold: 0}, nil},
		{"zero k", Params{K: 0, Threshold: 0.45}, ErrInvalidK},
		{"negative k", Params{K: -3, Threshold: 0.45}, ErrInvalidK},
		{"nan threshold", Params{K: 5, Threshold: float32(math.NaN())}, ErrInvalidThreshold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
	assert.Equal(t, 5, DefaultParams().K)
	assert.InDelta(t, 0.45, DefaultParams().Threshold, 1e-6)
}

func TestAnswerDirectMatch(t *testing.T) {
	records := []core.Record{{Question: "What is X?", Answer: "X is Y."}}
	f := newFixture(t, records)

	tests := []struct {
		name     string
		question string
	}{
		{"lowercase without question mark", "what is x"},
		{"exact", "What is X?"},
		{"surrounding whitespace", "  WHAT IS X??  "},
		{"query contains stored question", "so what is x exactly"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.pipeline.Answer(context.Background(), tt.question, Params{K: 1, Threshold: 0.99})
			require.NoError(t, err)
			assert.Equal(t, core.MatchDirect, result.MatchedVia)
			assert.Equal(t, "X is Y.", result.Answer)
			assert.Equal(t, "What is X?", result.Context)
			assert.Equal(t, 0, result.Position)
		})
	}
	assert.Zero(t, f.embedder.CallCount())
	assert.Zero(t, f.generator.CallCount())
}

func TestAnswerDirectMatchFirstRecordWins(t *testing.T) {
	records := []core.Record{
		{Question: "Shipping", Answer: "first"},
		{Question: "Shipping costs", Answer: "second"},
	}
	f := newFixture(t, records)

	result, err := f.pipeline.Answer(context.Background(), "shipping costs", DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, core.MatchDirect, result.MatchedVia)
	assert.Equal(t, "first", result.Answer)
}

func TestAnswerSemantic(t *testing.T) {
	f := newFixture(t, testRecords)

	result, err := f.pipeline.Answer(context.Background(), "I forgot my password, help", DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, core.MatchSemantic, result.MatchedVia)
	assert.Equal(t, "Use the reset link on the login page.", result.Answer)
	assert.Equal(t, "Q: How do I reset my password?\nA: Use the reset link on the login page.", result.Context)
	assert.Equal(t, 0, result.Position)
	assert.InDelta(t, 1.0, result.Score, 1e-6)

	// One call for the question, one batch for the candidates.
	assert.Equal(t, 2, f.embedder.CallCount())
	assert.Equal(t, 3, f.embedder.TextCount())
	assert.Equal(t, 1, f.generator.CallCount())
}

func TestAnswerLogsRecordID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := newFixture(t, testRecords, WithLogger(logger))

	_, err := f.pipeline.Answer(context.Background(), "what are your opening hours", DefaultParams())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"msg":"direct match"`)
	assert.Contains(t, buf.String(), fmt.Sprintf(`"record":%d`, testRecords[1].ID()))

	buf.Reset()
	_, err = f.pipeline.Answer(context.Background(), "I forgot my password, help", DefaultParams())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"msg":"semantic match"`)
	assert.Contains(t, buf.String(), fmt.Sprintf(`"record":%d`, testRecords[0].ID()))
}

func TestAnswerBelowThreshold(t *testing.T) {
	f := newFixture(t, testRecords)

	result, err := f.pipeline.Answer(context.Background(), "What is your refund policy?", DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, core.MatchNone, result.MatchedVia)
	assert.Equal(t, DefaultNotFoundAnswer, result.Answer)
	assert.Empty(t, result.Context)
	assert.Equal(t, -1, result.Position)
	assert.Zero(t, f.generator.CallCount())
}

func TestAnswerKLargerThanCorpus(t *testing.T) {
	f := newFixture(t, testRecords)

	monitor := &recordingMonitor{}
	result, err := f.pipeline.AnswerWithMonitor(context.Background(), "opening hours on holidays", Params{K: 5, Threshold: 0.45}, monitor)
	require.NoError(t, err)

	assert.Len(t, monitor.hits, 2)
	assert.Len(t, monitor.scores, 2)
	assert.Equal(t, core.MatchSemantic, result.MatchedVia)
	assert.Equal(t, 1, result.Position)
}

func TestAnswerEmptyQuestion(t *testing.T) {
	f := newFixture(t, testRecords)

	for _, q := range []string{"", "   ", "\t\n", "?", " ?? "} {
		result, err := f.pipeline.Answer(context.Background(), q, DefaultParams())
		require.NoError(t, err)
		assert.Equal(t, core.MatchNone, result.MatchedVia, "question %q", q)
		assert.Equal(t, DefaultNotFoundAnswer, result.Answer)
		assert.Empty(t, result.Context)
	}
	assert.Zero(t, f.embedder.CallCount())
	assert.Zero(t, f.generator.CallCount())
}

func TestAnswerInvalidParams(t *testing.T) {
	f := newFixture(t, testRecords)

	_, err := f.pipeline.Answer(context.Background(), "anything", Params{K: 0, Threshold: 0.45})
	assert.ErrorIs(t, err, ErrInvalidK)
	assert.Zero(t, f.embedder.CallCount())
}

func TestAnswerThresholdMonotonic(t *testing.T) {
	f := newFixture(t, testRecords)
	question := "I forgot my password, help"

	seenNone := false
	for _, threshold := range []float32{-1, 0, 0.45, 0.9, 1.0, 1.01, 2} {
		result, err := f.pipeline.Answer(context.Background(), question, Params{K: 5, Threshold: threshold})
		require.NoError(t, err)
		if seenNone {
			assert.Equal(t, core.MatchNone, result.MatchedVia, "threshold %v", threshold)
		}
		if result.MatchedVia == core.MatchNone {
			seenNone = true
		}
	}
	assert.True(t, seenNone)
}

func TestAnswerIdempotent(t *testing.T) {
	f := newFixture(t, testRecords)
	question := "I forgot my password, help"

	first, err := f.pipeline.Answer(context.Background(), question, DefaultParams())
	require.NoError(t, err)
	for range 3 {
		again, err := f.pipeline.Answer(context.Background(), question, DefaultParams())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAnswerConcurrent(t *testing.T) {
	f := newFixture(t, testRecords)
	questions := []string{"I forgot my password, help", "refund please", "what is your opening hours", "opening hours on holidays"}

	want := make([]*core.QueryResult, len(questions))
	for i, q := range questions {
		r, err := f.pipeline.Answer(context.Background(), q, DefaultParams())
		require.NoError(t, err)
		want[i] = r
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := range 64 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := i % len(questions)
			r, err := f.pipeline.Answer(context.Background(), questions[q], DefaultParams())
			if err != nil {
				errs <- err
				return
			}
			if r.Answer != want[q].Answer || r.MatchedVia != want[q].MatchedVia {
				errs <- errors.New("result differs for " + questions[q])
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestAnswerRerankTieGoesToEarliest(t *testing.T) {
	records := []core.Record{
		{Question: "Change password", Answer: "Go to settings."},
		{Question: "Lost password", Answer: "Use the reset link."},
	}
	f := newFixture(t, records)

	result, err := f.pipeline.Answer(context.Background(), "my password does not work", DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, core.MatchSemantic, result.MatchedVia)
	assert.Equal(t, 0, result.Position)
	assert.Equal(t, "Go to settings.", result.Answer)
}

func TestAnswerPrompt(t *testing.T) {
	f := newFixture(t, testRecords, WithAssistantName("HelpDesk"), WithNotFoundAnswer("No idea."), WithMaxOutputTokens(64))

	var gotMax int
	f.generator.GenerateFunc = func(_ context.Context, _ string, maxOutputTokens int) (string, error) {
		gotMax = maxOutputTokens
		return "  Reset it from the login page.  ", nil
	}

	result, err := f.pipeline.Answer(context.Background(), "I forgot my password, help", DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, "Reset it from the login page.", result.Answer)
	assert.Equal(t, 64, gotMax)

	prompts := f.generator.Prompts()
	require.Len(t, prompts, 1)
	prompt := prompts[0]
	assert.True(t, strings.HasPrefix(prompt, "You are HelpDesk."))
	assert.Contains(t, prompt, "using ONLY the context below")
	assert.Contains(t, prompt, "say 'No idea.'")
	assert.Contains(t, prompt, "Context:\nQ: How do I reset my password?\nA: Use the reset link on the login page.")
	assert.NotContains(t, prompt, "opening hours")
	assert.True(t, strings.HasSuffix(prompt, "Question: I forgot my password, help\nAnswer:"))
}

func TestAnswerOracleErrors(t *testing.T) {
	oracleDown := errors.New("connection refused")

	t.Run("question embedding fails", func(t *testing.T) {
		f := newFixture(t, testRecords)
		f.embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
			return nil, oracleDown
		}
		_, err := f.pipeline.Answer(context.Background(), "I forgot my password, help", DefaultParams())
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrOracle)
		assert.ErrorIs(t, err, oracleDown)
		assert.NotErrorIs(t, err, core.ErrConfiguration)
	})

	t.Run("candidate embedding fails", func(t *testing.T) {
		f := newFixture(t, testRecords)
		f.embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
			return nil, oracleDown
		}
		_, err := f.pipeline.Answer(context.Background(), "I forgot my password, help", DefaultParams())
		assert.ErrorIs(t, err, core.ErrOracle)
	})

	t.Run("candidate count mismatch", func(t *testing.T) {
		f := newFixture(t, testRecords)
		f.embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
			return [][]float32{{1, 0, 0, 0}}, nil
		}
		_, err := f.pipeline.Answer(context.Background(), "I forgot my password, help", DefaultParams())
		assert.ErrorIs(t, err, core.ErrOracle)
		assert.ErrorIs(t, err, ErrEmbeddingCount)
	})

	t.Run("candidate dimension differs from question", func(t *testing.T) {
		f := newFixture(t, testRecords)
		f.embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
			vectors := make([][]float32, len(texts))
			for i := range texts {
				vectors[i] = []float32{1, 0}
			}
			return vectors, nil
		}
		result, err := f.pipeline.Answer(context.Background(), "I forgot my password, help", DefaultParams())
		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, core.ErrOracle)
		assert.ErrorIs(t, err, ErrEmbeddingDimension)
		assert.Zero(t, f.generator.CallCount())
	})

	t.Run("generation fails", func(t *testing.T) {
		f := newFixture(t, testRecords)
		f.generator.GenerateFunc = func(context.Context, string, int) (string, error) {
			return "", oracleDown
		}
		_, err := f.pipeline.Answer(context.Background(), "I forgot my password, help", DefaultParams())
		assert.ErrorIs(t, err, core.ErrOracle)
		assert.ErrorIs(t, err, oracleDown)
	})

	t.Run("empty generation", func(t *testing.T) {
		f := newFixture(t, testRecords)
		f.generator.GenerateFunc = func(context.Context, string, int) (string, error) {
			return " \n ", nil
		}
		_, err := f.pipeline.Answer(context.Background(), "I forgot my password, help", DefaultParams())
		assert.ErrorIs(t, err, core.ErrOracle)
		assert.ErrorIs(t, err, ErrEmptyGeneration)
	})
}

// fakeIndex returns canned hits.
type fakeIndex struct {
	length int
	hits   []index.Hit
}

func (f *fakeIndex) Add(...[]float32) error { return nil }
func (f *fakeIndex) Search(context.Context, []float32, int) ([]index.Hit, error) {
	return f.hits, nil
}
func (f *fakeIndex) Len() int       { return f.length }
func (f *fakeIndex) Dimension() int { return 4 }

func TestAnswerConfigurationErrors(t *testing.T) {
	t.Run("position out of range", func(t *testing.T) {
		idx := &fakeIndex{length: 2, hits: []index.Hit{{Position: 1, Score: 0.9}, {Position: 7, Score: 0.8}}}
		generator := mock.NewMockGenerator()
		p, err := NewPipeline(testRecords, idx, mock.NewKeywordEmbedder("password"), generator,
			WithTracerProvider(noop.NewTracerProvider()))
		require.NoError(t, err)

		_, err = p.Answer(context.Background(), "I forgot my password, help", DefaultParams())
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrConfiguration)
		assert.ErrorIs(t, err, core.ErrIndexOutOfRange)
		assert.Zero(t, generator.CallCount())
	})

	t.Run("no hits returns not found", func(t *testing.T) {
		idx := &fakeIndex{length: 2}
		p, err := NewPipeline(testRecords, idx, mock.NewKeywordEmbedder("password"), mock.NewMockGenerator())
		require.NoError(t, err)

		result, err := p.Answer(context.Background(), "I forgot my password, help", DefaultParams())
		require.NoError(t, err)
		assert.Equal(t, core.MatchNone, result.MatchedVia)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		idx := index.NewFlat(0)
		require.NoError(t, idx.Add([]float32{1, 0, 0}, []float32{0, 1, 0}))
		p, err := NewPipeline(testRecords, idx, mock.NewKeywordEmbedder("password"), mock.NewMockGenerator())
		require.NoError(t, err)

		_, err = p.Answer(context.Background(), "I forgot my password, help", DefaultParams())
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrConfiguration)
		assert.ErrorIs(t, err, index.ErrDimensionMismatch)
	})
}

func TestAnswerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	f := newFixture(t, testRecords, WithMetrics(metrics))
	ctx := context.Background()

	_, err = f.pipeline.Answer(ctx, "How do I reset my password", DefaultParams())
	require.NoError(t, err)
	_, err = f.pipeline.Answer(ctx, "I forgot my password, help", DefaultParams())
	require.NoError(t, err)
	_, err = f.pipeline.Answer(ctx, "refund please", DefaultParams())
	require.NoError(t, err)

	f.generator.GenerateFunc = func(context.Context, string, int) (string, error) {
		return "", errors.New("boom")
	}
	_, err = f.pipeline.Answer(ctx, "I forgot my password, help", DefaultParams())
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.answers.WithLabelValues("test", "direct")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.answers.WithLabelValues("test", "semantic")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.answers.WithLabelValues("test", "none")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.errors.WithLabelValues("test", "generate")), 0)
	assert.Equal(t, 4, testutil.CollectAndCount(metrics.stageDuration))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "duplicate registration")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeAnswer("x", "direct")
		m.observeError("x", stageRerank)
		m.observeScore("x", 0.5)
	})
}

type recordingMonitor struct {
	noopMonitor
	started  string
	direct   int
	hits     []index.Hit
	scores   []float32
	winner   int
	below    bool
	prompt   string
	finished *core.QueryResult
}

func (m *recordingMonitor) Start(q string)                 { m.started = q }
func (m *recordingMonitor) DirectMatch(position int)       { m.direct = position }
func (m *recordingMonitor) AfterRetrieval(h []index.Hit)   { m.hits = h }
func (m *recordingMonitor) AfterRerank(s []float32, w int) { m.scores, m.winner = s, w }
func (m *recordingMonitor) BelowThreshold(_, _ float32)    { m.below = true }
func (m *recordingMonitor) BeforeGeneration(p string)      { m.prompt = p }
func (m *recordingMonitor) Finish(r *core.QueryResult)     { m.finished = r }

func TestAnswerWithMonitor(t *testing.T) {
	f := newFixture(t, testRecords)

	t.Run("semantic path", func(t *testing.T) {
		m := &recordingMonitor{direct: -1}
		result, err := f.pipeline.AnswerWithMonitor(context.Background(), "I forgot my password, help", DefaultParams(), m)
		require.NoError(t, err)
		assert.Equal(t, "I forgot my password, help", m.started)
		assert.Equal(t, -1, m.direct)
		assert.Len(t, m.hits, 2)
		assert.Equal(t, 0, m.winner)
		assert.False(t, m.below)
		assert.NotEmpty(t, m.prompt)
		assert.Same(t, result, m.finished)
	})

	t.Run("below threshold path", func(t *testing.T) {
		m := &recordingMonitor{}
		_, err := f.pipeline.AnswerWithMonitor(context.Background(), "refund please", DefaultParams(), m)
		require.NoError(t, err)
		assert.True(t, m.below)
		assert.Empty(t, m.prompt)
	})
}
