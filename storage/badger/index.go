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

package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/faqrag/core"
	"github.com/poiesic/faqrag/storage"
)

// IndexRepository stores a single vector index in a Badger backend.
type IndexRepository struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.IndexRepository = (*IndexRepository)(nil)

// NewIndexRepository creates an index repository on an open backend.
func NewIndexRepository(backend *Backend) (storage.IndexRepository, error) {
	return newIndexRepository(backend)
}

func newIndexRepository(backend *Backend) (*IndexRepository, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &IndexRepository{
		backend: backend,
		logger:  slog.Default().With("component", "index-repository"),
	}, nil
}

// SaveIndex replaces the stored index with header and vectors.
func (r *IndexRepository) SaveIndex(ctx context.Context, header core.IndexHeader, vectors [][]float32) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if header.Count != len(vectors) {
		return fmt.Errorf("%w: header says %d, got %d", storage.ErrCountMismatch, header.Count, len(vectors))
	}
	for i, v := range vectors {
		if len(v) != header.Dimension {
			return fmt.Errorf("%w: vector %d has dimension %d, header says %d",
				storage.ErrCorruptIndex, i, len(v), header.Dimension)
		}
	}

	stale, err := r.stalePositions(len(vectors))
	if err != nil {
		return err
	}

	err = r.backend.WithWriteBatch(func(wb *badger.WriteBatch) error {
		for _, key := range stale {
			if err := wb.Delete(key); err != nil {
				return err
			}
		}
		for i, v := range vectors {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := wb.Set(makeVectorKey(i), storage.MarshalVector(v)); err != nil {
				return err
			}
		}
		return wb.Set([]byte(indexHeaderKey), storage.MarshalIndexHeader(header))
	})
	if err != nil {
		r.logger.Error("error saving index", "count", len(vectors), "err", err)
		return err
	}

	r.logger.Debug("saved index", "count", len(vectors), "dimension", header.Dimension, "removed", len(stale))
	return nil
}

// stalePositions returns keys of stored vectors at positions >= count.
func (r *IndexRepository) stalePositions(count int) ([][]byte, error) {
	var stale [][]byte
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(indexVectorPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeVectorKey(count)); iter.Valid(); iter.Next() {
			stale = append(stale, iter.Item().KeyCopy(nil))
		}
		return nil
	}, false)
	return stale, err
}

// LoadIndex returns the stored header and vectors in position order.
func (r *IndexRepository) LoadIndex(ctx context.Context) (core.IndexHeader, [][]float32, error) {
	var header core.IndexHeader
	var vectors [][]float32

	if r.backend.IsClosed() {
		return header, nil, storage.ErrStorageClosed
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(indexHeaderKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		err = item.Value(func(val []byte) error {
			header, err = storage.UnmarshalIndexHeader(val)
			return err
		})
		if err != nil {
			return err
		}

		vectors = make([][]float32, 0, header.Count)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(indexVectorPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			position, ok := parseVectorKey(item.Key())
			if !ok || position != len(vectors) {
				return fmt.Errorf("%w: expected position %d", storage.ErrCorruptIndex, len(vectors))
			}

			var vector []float32
			err := item.Value(func(val []byte) error {
				var err error
				vector, err = storage.UnmarshalVector(val)
				return err
			})
			if err != nil {
				return err
			}
			if len(vector) != header.Dimension {
				return fmt.Errorf("%w: vector %d has dimension %d, header says %d",
					storage.ErrCorruptIndex, position, len(vector), header.Dimension)
			}
			vectors = append(vectors, vector)
		}

		if len(vectors) != header.Count {
			return fmt.Errorf("%w: header says %d vectors, found %d",
				storage.ErrCorruptIndex, header.Count, len(vectors))
		}
		return nil
	}, false)
	if err != nil {
		return core.IndexHeader{}, nil, err
	}

	return header, vectors, nil
}

// Close is a no-op; the backend is owned by the caller.
func (r *IndexRepository) Close() error {
	return nil
}
