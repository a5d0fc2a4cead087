package main

import (
	"fmt"
	"io"

	"github.com/poiesic/faqrag/core"
	"github.com/poiesic/faqrag/index"
	"github.com/poiesic/faqrag/query"
)

// traceMonitor prints each answering stage.
type traceMonitor struct {
	w io.Writer
}

var _ query.Monitor = (*traceMonitor)(nil)

func newTraceMonitor(w io.Writer) *traceMonitor {
	return &traceMonitor{w: w}
}

func (m *traceMonitor) Start(question string) {
	fmt.Fprintf(m.w, "question: %q\n", question)
}

func (m *traceMonitor) DirectMatch(position int) {
	fmt.Fprintf(m.w, "direct match: record %d\n", position)
}

func (m *traceMonitor) AfterRetrieval(hits []index.Hit) {
	fmt.Fprintf(m.w, "retrieved %d candidates\n", len(hits))
	for i, h := range hits {
		fmt.Fprintf(m.w, "  %d: record %d [%0.3f]\n", i, h.Position, h.Score)
	}
}

func (m *traceMonitor) AfterRerank(scores []float32, winner int) {
	for i, s := range scores {
		fmt.Fprintf(m.w, "  rerank %d: %0.3f\n", i, s)
	}
	fmt.Fprintf(m.w, "winner: record %d\n", winner)
}

func (m *traceMonitor) BelowThreshold(score, threshold float32) {
	fmt.Fprintf(m.w, "score %0.3f below threshold %0.3f\n", score, threshold)
}

func (m *traceMonitor) BeforeGeneration(prompt string) {
	fmt.Fprintf(m.w, "prompt:\n%s\n", prompt)
}

func (m *traceMonitor) Finish(result *core.QueryResult) {
	fmt.Fprintf(m.w, "matched via: %s\n", result.MatchedVia)
}
