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

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier used for diagnostics and fingerprints.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Record is a single curated question/answer pair.
// A record's identity is its position in the corpus. That position is the
// join key with the vector index built from the same corpus.
type Record struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// ID returns the content hash of the record.
func (r Record) ID() ID {
	return IDFromContent(EmbeddingInput(r))
}

// MatchKind reports which stage of the query pipeline produced an answer.
type MatchKind string

const (
	// MatchDirect means the question matched a stored record textually.
	MatchDirect MatchKind = "direct"
	// MatchSemantic means the answer was generated from a retrieved record.
	MatchSemantic MatchKind = "semantic"
	// MatchNone means no confident answer was found.
	MatchNone MatchKind = "none"
)

// String implements fmt.Stringer.
func (m MatchKind) String() string {
	return string(m)
}

// QueryResult is the outcome of answering a single question.
type QueryResult struct {
	Answer     string    `json:"answer"`
	Context    string    `json:"context"`
	MatchedVia MatchKind `json:"matched_via"`
	// Score is the winning rerank score. Zero for direct and empty results.
	Score float32 `json:"score"`
	// Position is the corpus position of the supporting record, or -1.
	Position int `json:"position"`
}

// NotFound builds the sentinel result returned when no answer is available.
func NotFound(answer string) *QueryResult {
	return &QueryResult{
		Answer:     answer,
		Context:    "",
		MatchedVia: MatchNone,
		Position:   -1,
	}
}

// IndexHeader describes a persisted vector index.
type IndexHeader struct {
	Dimension         int
	Count             int
	EmbeddingModel    string
	Template          string
	CorpusFingerprint ID
	CreatedAt         time.Time
}
