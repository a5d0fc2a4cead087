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

// Package index provides nearest-neighbour search over normalized vectors.
//
// Positions are assigned in insertion order starting at zero, and are the
// join key back into the corpus the vectors were built from.
package index

import "context"

// Hit is a single search result.
type Hit struct {
	// Position is the insertion position of the matched vector.
	Position int
	// Score is the inner product between query and vector.
	Score float32
}

// Index is a vector index searched by inner product.
// Implementations must be safe for concurrent searches.
type Index interface {
	// Add appends vectors. Their positions continue from Len().
	Add(vectors ...[]float32) error

	// Search returns up to k hits ordered by descending score.
	// Ties are ordered by ascending position.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)

	// Len returns the number of stored vectors.
	Len() int

	// Dimension returns the vector dimension, or 0 while empty.
	Dimension() int
}
