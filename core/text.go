package core

import (
	"fmt"
	"strings"
)

// EmbeddingTemplate names the text layout that records are embedded with.
// It is stored in index headers so that stale indexes can be detected.
const EmbeddingTemplate = "Q: {question} A: {answer}"

// EmbeddingInput renders a record into the text handed to the embedding oracle.
// Ingestion and reranking must both use this function.
func EmbeddingInput(r Record) string {
	return fmt.Sprintf("Q: %s A: %s", r.Question, r.Answer)
}

// ContextText renders a record as generation context.
func ContextText(r Record) string {
	return fmt.Sprintf("Q: %s\nA: %s", r.Question, r.Answer)
}

// NormalizeQuestion folds a question for textual matching: lowercase,
// surrounding whitespace trimmed, trailing question marks removed.
func NormalizeQuestion(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, "?")
	return strings.TrimSpace(s)
}
