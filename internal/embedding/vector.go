// Package embedding provides vector math and the binary codec for face
// embedding vectors. All vectors in the system share one fixed dimensionality
// (configured at startup); comparing vectors of different lengths is a
// programming error, not a runtime match failure.
package embedding

import (
	"fmt"
	"math"
)

// Cosine computes the cosine similarity between two vectors of equal length.
// Returns a value between -1 and 1, where 1 means identical direction.
// If either vector has zero norm the result is 0 so that corrupt or all-zero
// stored embeddings never produce a spurious perfect score.
//
// Both vectors must have the same length; use CheckDim before calling when the
// inputs cross a trust boundary.
func Cosine(a, b []float32) float64 {
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors.
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity
}

// Normalize returns a unit-length copy of the vector. A zero vector is
// returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}

	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// CheckDim verifies that a vector has the expected dimensionality.
func CheckDim(v []float32, dim int) error {
	if len(v) != dim {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(v), dim)
	}
	return nil
}
