package ingestion

import (
	"fmt"
	"math"

	"github.com/poiesic/lectern/ai"
	"github.com/poiesic/lectern/core"
)

// NormalizeVector returns v scaled to unit length. A zero vector stays zero.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var magnitude float64
	for _, val := range v {
		magnitude += float64(val) * float64(val)
	}
	magnitude = math.Sqrt(magnitude)

	result := make([]float32, len(v))
	if magnitude == 0 {
		return result
	}
	for i, val := range v {
		result[i] = float32(float64(val) / magnitude)
	}
	return result
}

// checkVector rejects vectors that must not reach the index.
// A dimension of 0 accepts any length.
func checkVector(v []float32, dimension int) error {
	switch {
	case len(v) == 0:
		return ai.ErrEmptyEmbedding
	case dimension > 0 && len(v) != dimension:
		return fmt.Errorf("%w: expected %d, got %d", ai.ErrDimensionMismatch, dimension, len(v))
	case !core.IsFiniteVector(v):
		return core.ErrInvalidVector
	}
	return nil
}
