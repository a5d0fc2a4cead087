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

package storage

import (
	"context"

	"github.com/poiesic/faqrag/core"
)

// IndexRepository persists a vector index artifact.
type IndexRepository interface {
	// SaveIndex replaces any stored index with header and vectors.
	// vectors[i] is stored at position i. header.Count must equal len(vectors).
	SaveIndex(ctx context.Context, header core.IndexHeader, vectors [][]float32) error

	// LoadIndex returns the stored header and vectors in position order.
	// Returns ErrNotFound if no index has been saved.
	LoadIndex(ctx context.Context) (core.IndexHeader, [][]float32, error)

	// Close releases resources held by the repository.
	// The underlying backend is not closed.
	Close() error
}
