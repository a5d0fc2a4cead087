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

package core

import "errors"

// Error kinds. Callers classify failures with errors.Is against these.
var (
	// ErrConfiguration indicates a fatal configuration problem. It is never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrOracle indicates a failure reported by an embedding or generation oracle.
	ErrOracle = errors.New("oracle error")
)

// Configuration errors
var (
	// ErrUnknownConfiguration indicates an unregistered configuration name.
	ErrUnknownConfiguration = errors.New("unknown configuration")

	// ErrLengthMismatch indicates the corpus and index disagree on length.
	ErrLengthMismatch = errors.New("corpus and index length mismatch")

	// ErrIndexOutOfRange indicates the index returned a position outside the corpus.
	ErrIndexOutOfRange = errors.New("index position out of range")
)

// Domain validation errors
var (
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyQuestion indicates the Question field is empty.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrEmptyAnswer indicates the Answer field is empty.
	ErrEmptyAnswer = errors.New("answer cannot be empty")

	// ErrEmptyCorpus indicates a corpus without records.
	ErrEmptyCorpus = errors.New("corpus cannot be empty")
)
