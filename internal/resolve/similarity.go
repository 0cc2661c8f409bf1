package resolve

import "math"

// Similarity computes the cosine similarity between two embeddings, clamped
// to [0, 1]. A zero-norm or length-mismatched input yields 0.0 — defined,
// not an error, to guard against degenerate embeddings.
func Similarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		sim = 1
	}
	if sim < 0 {
		sim = 0
	}
	return sim
}

// CosineDistance is 1 - Similarity, used by the offline clustering pass.
func CosineDistance(a, b []float32) float64 {
	return 1 - Similarity(a, b)
}
