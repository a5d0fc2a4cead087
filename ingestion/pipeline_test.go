package ingestion

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/faqrag/ai/mock"
	"github.com/poiesic/faqrag/core"
	"github.com/poiesic/faqrag/corpus"
	"github.com/poiesic/faqrag/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecords(n int) []core.Record {
	records := make([]core.Record, n)
	for i := range records {
		records[i] = core.Record{
			Question: "question " + string(rune('a'+i%26)) + time.Duration(i).String(),
			Answer:   "answer " + time.Duration(i).String(),
		}
	}
	return records
}

func newTestPipeline(t *testing.T, embedder *mock.MockEmbedder, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(embedder, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestNewPipeline(t *testing.T) {
	t.Run("requires embedder", func(t *testing.T) {
		_, err := NewPipeline(nil)
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("rejects invalid batch size", func(t *testing.T) {
		_, err := NewPipeline(mock.NewMockEmbedder(), WithBatchSize(0))
		assert.Error(t, err)
	})

	t.Run("applies options", func(t *testing.T) {
		p := newTestPipeline(t, mock.NewMockEmbedder(), WithBatchSize(7), WithPoolSize(3), WithEmbeddingModel("m"))
		assert.Equal(t, 7, p.batchSize)
		assert.Equal(t, 3, p.pool.Cap())
		assert.Equal(t, "m", p.embeddingModel)
	})
}

func TestBuild_PreservesCorpusOrder(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	reference := mock.NewMockEmbedder()
	// Random delays make batches complete out of order.
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		time.Sleep(time.Duration(rand.IntN(3)) * time.Millisecond)
		return reference.EmbedTexts(ctx, texts)
	}

	records := testRecords(50)
	p := newTestPipeline(t, embedder, WithBatchSize(3), WithPoolSize(8), WithEmbeddingModel("test-model"))

	result, err := p.Build(context.Background(), records)
	require.NoError(t, err)

	require.Equal(t, len(records), result.Index.Len())
	vectors := result.Index.Vectors()
	for i, r := range records {
		expected, err := reference.EmbedText(context.Background(), core.EmbeddingInput(r))
		require.NoError(t, err)
		assert.InDeltaSlice(t, core.NormalizeVector(expected), vectors[i], 1e-6, "record %d", i)
	}

	assert.Equal(t, 17, embedder.CallCount(), "ceil(50/3) batches")
	assert.Equal(t, 50, embedder.TextCount())
	assert.Equal(t, core.IndexHeader{
		Dimension:         mock.DefaultDimension,
		Count:             50,
		EmbeddingModel:    "test-model",
		Template:          core.EmbeddingTemplate,
		CorpusFingerprint: corpus.Fingerprint(records),
		CreatedAt:         result.Header.CreatedAt,
	}, result.Header)
	assert.False(t, result.Header.CreatedAt.IsZero())
}

func TestBuild_UsesEmbeddingTemplate(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	var seen []string
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		seen = append(seen, texts...)
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{3, 4}
		}
		return out, nil
	}

	p := newTestPipeline(t, embedder, WithPoolSize(1))
	result, err := p.Build(context.Background(), []core.Record{{Question: "What is X?", Answer: "X is Y."}})
	require.NoError(t, err)

	assert.Equal(t, []string{"Q: What is X? A: X is Y."}, seen)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, result.Index.Vectors()[0], 1e-6, "vectors are normalized")
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		records []core.Record
		embed   func(ctx context.Context, texts []string) ([][]float32, error)
		wantErr []error
	}{
		{
			name:    "empty corpus",
			records: nil,
			wantErr: []error{core.ErrEmptyCorpus},
		},
		{
			name:    "invalid record",
			records: []core.Record{{Question: "q", Answer: ""}},
			wantErr: []error{core.ErrInvalidRecord},
		},
		{
			name:    "oracle failure",
			records: testRecords(5),
			embed: func(context.Context, []string) ([][]float32, error) {
				return nil, errors.New("connection refused")
			},
			wantErr: []error{core.ErrOracle},
		},
		{
			name:    "short result",
			records: testRecords(5),
			embed: func(_ context.Context, texts []string) ([][]float32, error) {
				return make([][]float32, len(texts)-1), nil
			},
			wantErr: []error{core.ErrOracle, ErrVectorCountMismatch},
		},
		{
			name:    "empty vector",
			records: testRecords(2),
			embed: func(_ context.Context, texts []string) ([][]float32, error) {
				return make([][]float32, len(texts)), nil
			},
			wantErr: []error{core.ErrOracle, ErrEmptyVector},
		},
		{
			name:    "inconsistent dimension",
			records: testRecords(2),
			embed: func(_ context.Context, texts []string) ([][]float32, error) {
				if texts[0] == core.EmbeddingInput(testRecords(2)[0]) {
					return [][]float32{{1, 0}}, nil
				}
				return [][]float32{{1, 0, 0}}, nil
			},
			wantErr: []error{core.ErrOracle},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := mock.NewMockEmbedder()
			embedder.EmbedTextsFunc = tt.embed
			p := newTestPipeline(t, embedder, WithBatchSize(1), WithPoolSize(2))

			result, err := p.Build(context.Background(), tt.records)
			require.Error(t, err)
			assert.Nil(t, result)
			for _, want := range tt.wantErr {
				assert.ErrorIs(t, err, want)
			}
		})
	}
}

func TestBuild_FailureStopsRemainingBatches(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	var calls atomic.Int64
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	}

	p := newTestPipeline(t, embedder, WithBatchSize(1), WithPoolSize(1))
	_, err := p.Build(context.Background(), testRecords(20))
	require.ErrorIs(t, err, core.ErrOracle)
	assert.Less(t, calls.Load(), int64(20))
}

func TestBuild_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(t, mock.NewMockEmbedder())
	_, err := p.Build(ctx, testRecords(3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_PersistsIndex(t *testing.T) {
	repo, backend, err := badger.NewMemoryIndexRepository()
	require.NoError(t, err)
	defer backend.Close()

	records := testRecords(10)
	var progress bytes.Buffer
	p := newTestPipeline(t, mock.NewKeywordEmbedder("question", "answer", "a", "b"),
		WithBatchSize(4), WithProgress(&progress, 5))

	result, err := p.Run(context.Background(), records, repo)
	require.NoError(t, err)

	header, vectors, err := repo.LoadIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.Header.Count, header.Count)
	assert.Equal(t, result.Header.CorpusFingerprint, header.CorpusFingerprint)
	assert.Equal(t, result.Index.Vectors(), vectors)
	assert.Contains(t, progress.String(), "Embedded: 10/10")
}

func TestRun_RequiresRepository(t *testing.T) {
	p := newTestPipeline(t, mock.NewMockEmbedder())
	_, err := p.Run(context.Background(), testRecords(1), nil)
	assert.ErrorIs(t, err, ErrRepositoryRequired)
}
