package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDFromContent(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, IDFromContent("hello"), IDFromContent("hello"))
	})

	t.Run("different content yields different ids", func(t *testing.T) {
		assert.NotEqual(t, IDFromContent("hello"), IDFromContent("world"))
	})
}

func TestRecordID(t *testing.T) {
	a := Record{Question: "How do I pay?", Answer: "Use UPI."}
	b := Record{Question: "How do I pay?", Answer: "Use a card."}

	assert.Equal(t, a.ID(), a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestNotFound(t *testing.T) {
	result := NotFound("nothing here")

	assert.Equal(t, "nothing here", result.Answer)
	assert.Empty(t, result.Context)
	assert.Equal(t, MatchNone, result.MatchedVia)
	assert.Equal(t, -1, result.Position)
	assert.Zero(t, result.Score)
}

func TestMatchKindString(t *testing.T) {
	assert.Equal(t, "direct", MatchDirect.String())
	assert.Equal(t, "semantic", MatchSemantic.String())
	assert.Equal(t, "none", MatchNone.String())
}
