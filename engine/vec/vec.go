// Package vec provides the vector math shared by retrieval and Fast Memory.
package vec

import "math"

// Cosine returns the cosine of the angle between a and b. Mismatched or
// degenerate vectors yield 0.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Similarity maps cosine into [0,1] by flooring negatives at zero, so that
// opposed vectors score as unrelated rather than as negative evidence.
func Similarity(a, b []float32) float32 {
	if c := Cosine(a, b); c > 0 {
		return c
	}
	return 0
}
