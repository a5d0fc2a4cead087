package index

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/poiesic/faqrag/core"
)

// Flat is an exhaustive inner-product index. On unit vectors the inner
// product equals cosine similarity.
type Flat struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
}

var _ Index = (*Flat)(nil)

// NewFlat creates an empty flat index. A dimension of 0 is fixed by the first Add.
func NewFlat(dimension int) *Flat {
	return &Flat{dimension: dimension}
}

// Add appends vectors. Vectors are copied.
func (f *Flat) Add(vectors ...[]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dimension := f.dimension
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("vector %d: %w", i, ErrEmptyVector)
		}
		if dimension == 0 {
			dimension = len(v)
		}
		if len(v) != dimension {
			return fmt.Errorf("vector %d: %w: expected %d, got %d", i, ErrDimensionMismatch, dimension, len(v))
		}
	}

	f.dimension = dimension
	for _, v := range vectors {
		f.vectors = append(f.vectors, slices.Clone(v))
	}
	return nil
}

// Search scans every vector and returns the top k by inner product.
func (f *Flat) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.vectors) == 0 {
		return []Hit{}, nil
	}
	if len(query) != f.dimension {
		return nil, fmt.Errorf("%w: index has %d, query has %d", ErrDimensionMismatch, f.dimension, len(query))
	}

	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		hits[i] = Hit{Position: i, Score: core.Dot(query, v)}
	}

	slices.SortStableFunc(hits, func(a, b Hit) int {
		// Descending score; stable sort keeps ascending position on ties.
		return cmp.Compare(b.Score, a.Score)
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of stored vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dimension returns the vector dimension.
func (f *Flat) Dimension() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dimension
}

// Vectors returns copies of the stored vectors in position order.
func (f *Flat) Vectors() [][]float32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([][]float32, len(f.vectors))
	for i, v := range f.vectors {
		out[i] = slices.Clone(v)
	}
	return out
}
