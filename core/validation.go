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
	"fmt"
	"strings"
)

// ValidateRecord validates a Record according to domain rules.
//
// Validation rules:
//   - Question must contain non-whitespace text
//   - Answer must contain non-whitespace text
func ValidateRecord(record Record) error {
	if strings.TrimSpace(record.Question) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyQuestion)
	}
	if strings.TrimSpace(record.Answer) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyAnswer)
	}
	return nil
}

// ValidateCorpus validates every record of a corpus, reporting the first
// offending position.
func ValidateCorpus(records []Record) error {
	if len(records) == 0 {
		return ErrEmptyCorpus
	}
	for i, record := range records {
		if err := ValidateRecord(record); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

// ValidatePairing checks that a corpus and its index have the same length.
func ValidatePairing(corpusLen, indexLen int) error {
	if corpusLen != indexLen {
		return fmt.Errorf("%w: %w: corpus has %d records, index has %d vectors",
			ErrConfiguration, ErrLengthMismatch, corpusLen, indexLen)
	}
	return nil
}
