package query

import (
	"fmt"
	"math"
)

// Defaults for Params and generation.
const (
	DefaultK               = 5
	DefaultThreshold       = float32(0.45)
	DefaultMaxOutputTokens = 200
)

// Params tunes a single Answer call.
type Params struct {
	// K is the number of candidates fetched from the index. Must be at least 1.
	K int
	// Threshold is the minimum rerank score for a semantic answer.
	Threshold float32
}

// DefaultParams returns K=5 and Threshold=0.45.
func DefaultParams() Params {
	return Params{K: DefaultK, Threshold: DefaultThreshold}
}

// Validate checks that the parameters are usable.
func (p Params) Validate() error {
	if p.K < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidK, p.K)
	}
	if math.IsNaN(float64(p.Threshold)) {
		return ErrInvalidThreshold
	}
	return nil
}
