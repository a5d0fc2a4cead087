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

// Package storage provides the persistence abstraction for vector indexes.
//
// An index artifact is a header (core.IndexHeader) plus one vector per corpus
// position. Repositories write both atomically from the caller's point of
// view and load them back in position order.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return storage interfaces:
//
//	repo, err := badger.NewIndexRepository(backend)  // returns storage.IndexRepository
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/index", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	repo, err := badger.NewIndexRepository(backend)
//	header, vectors, err := repo.LoadIndex(ctx)
//
// Use in tests with in-memory storage:
//
//	repo, backend, err := badger.NewMemoryIndexRepository()
//
// # Serialization
//
// Headers and vectors are encoded with mus-go serializers (see
// serialization.go). Encodings carry a format version so that incompatible
// artifacts are rejected rather than misread.
package storage
