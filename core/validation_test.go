package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  Record
		wantErr error
	}{
		{
			name:   "valid record",
			record: Record{Question: "What is X?", Answer: "X is a thing."},
		},
		{
			name:    "empty question",
			record:  Record{Question: "", Answer: "X is a thing."},
			wantErr: ErrEmptyQuestion,
		},
		{
			name:    "whitespace question",
			record:  Record{Question: "  \t", Answer: "X is a thing."},
			wantErr: ErrEmptyQuestion,
		},
		{
			name:    "empty answer",
			record:  Record{Question: "What is X?", Answer: ""},
			wantErr: ErrEmptyAnswer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord(tt.record)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRecord), "should wrap ErrInvalidRecord")
			assert.True(t, errors.Is(err, tt.wantErr), "should wrap %v", tt.wantErr)
		})
	}
}

func TestValidateCorpus(t *testing.T) {
	t.Run("empty corpus", func(t *testing.T) {
		assert.ErrorIs(t, ValidateCorpus(nil), ErrEmptyCorpus)
	})

	t.Run("reports offending position", func(t *testing.T) {
		err := ValidateCorpus([]Record{
			{Question: "a", Answer: "b"},
			{Question: "c", Answer: " "},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyAnswer)
		assert.Contains(t, err.Error(), "record 1")
	})

	t.Run("valid corpus", func(t *testing.T) {
		assert.NoError(t, ValidateCorpus([]Record{{Question: "a", Answer: "b"}}))
	})
}

func TestValidatePairing(t *testing.T) {
	assert.NoError(t, ValidatePairing(3, 3))

	err := ValidatePairing(3, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}
