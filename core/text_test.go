package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeQuestion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "What is X?", want: "what is x"},
		{in: "what is x", want: "what is x"},
		{in: "  How??  ", want: "how"},
		{in: "?", want: ""},
		{in: "Is ? allowed inside", want: "is ? allowed inside"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeQuestion(tt.in))
		})
	}
}

func TestTemplates(t *testing.T) {
	r := Record{Question: "What is X?", Answer: "X is Y."}

	assert.Equal(t, "Q: What is X? A: X is Y.", EmbeddingInput(r))
	assert.Equal(t, "Q: What is X?\nA: X is Y.", ContextText(r))
}
