package mock

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// MockGenerator is a test double for ai.Generator.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, the answer line of the prompt's context is returned.
	GenerateFunc func(ctx context.Context, prompt string, maxOutputTokens int) (string, error)

	callCount atomic.Int64

	mu      sync.Mutex
	prompts []string
}

// NewMockGenerator creates a mock generator with default behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate records the prompt and produces a completion.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	m.callCount.Add(1)
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, maxOutputTokens)
	}
	return contextAnswer(prompt), nil
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	return int(m.callCount.Load())
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Reset clears recorded prompts, counters and injected behavior.
func (m *MockGenerator) Reset() {
	m.callCount.Store(0)
	m.mu.Lock()
	m.prompts = nil
	m.mu.Unlock()
	m.GenerateFunc = nil
}

// contextAnswer extracts the text following the last "A: " line.
func contextAnswer(prompt string) string {
	i := strings.LastIndex(prompt, "\nA: ")
	if i < 0 {
		return "mock completion"
	}
	rest := prompt[i+len("\nA: "):]
	if j := strings.Index(rest, "\n"); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}
