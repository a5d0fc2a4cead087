package query

import (
	"github.com/poiesic/faqrag/core"
	"github.com/poiesic/faqrag/index"
)

// Monitor provides hooks to observe the answering process.
// Implement this interface to trace intermediate results of each stage.
type Monitor interface {
	Start(question string)
	DirectMatch(position int)
	AfterRetrieval(hits []index.Hit)
	// AfterRerank receives candidate scores in retrieval order and the
	// corpus position of the winner.
	AfterRerank(scores []float32, winner int)
	BelowThreshold(score, threshold float32)
	BeforeGeneration(prompt string)
	Finish(result *core.QueryResult)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                 {}
func (n *noopMonitor) DirectMatch(_ int)              {}
func (n *noopMonitor) AfterRetrieval(_ []index.Hit)   {}
func (n *noopMonitor) AfterRerank(_ []float32, _ int) {}
func (n *noopMonitor) BelowThreshold(_, _ float32)    {}
func (n *noopMonitor) BeforeGeneration(_ string)      {}
func (n *noopMonitor) Finish(_ *core.QueryResult)     {}
