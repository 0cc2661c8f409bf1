package resolve

import (
	"math"
	"testing"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{
			name:     "identical unit vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{1, 0, 0},
			expected: 1.0,
		},
		{
			name:     "identical arbitrary vectors",
			a:        []float32{0.3, -0.2, 0.9, 0.1},
			b:        []float32{0.3, -0.2, 0.9, 0.1},
			expected: 1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1, 0},
			b:        []float32{0, 1},
			expected: 0.0,
		},
		{
			name:     "zero vector left",
			a:        []float32{0, 0, 0},
			b:        []float32{1, 2, 3},
			expected: 0.0,
		},
		{
			name:     "zero vector right",
			a:        []float32{1, 2, 3},
			b:        []float32{0, 0, 0},
			expected: 0.0,
		},
		{
			name:     "both zero vectors",
			a:        []float32{0, 0},
			b:        []float32{0, 0},
			expected: 0.0,
		},
		{
			name:     "length mismatch",
			a:        []float32{1, 0},
			b:        []float32{1, 0, 0},
			expected: 0.0,
		},
		{
			name:     "empty vectors",
			a:        []float32{},
			b:        []float32{},
			expected: 0.0,
		},
		{
			name:     "opposite vectors clamp to zero",
			a:        []float32{1, 0},
			b:        []float32{-1, 0},
			expected: 0.0,
		},
		{
			name:     "known 3-4-5 angle",
			a:        []float32{3, 4},
			b:        []float32{1, 0},
			expected: 0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Similarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	pairs := [][2][]float32{
		{{0.1, 0.9, -0.3}, {0.4, 0.2, 0.8}},
		{{1, 2, 3, 4}, {4, 3, 2, 1}},
		{{0.5, 0.5}, {0.9, -0.1}},
	}

	for _, pair := range pairs {
		ab := Similarity(pair[0], pair[1])
		ba := Similarity(pair[1], pair[0])
		if ab != ba {
			t.Errorf("Similarity not symmetric: %v vs %v", ab, ba)
		}
	}
}

func TestSimilarityRange(t *testing.T) {
	vectors := [][]float32{
		{1, 0}, {-1, 0}, {0.7, 0.7}, {-0.3, 0.95}, {2, -5},
	}
	for _, a := range vectors {
		for _, b := range vectors {
			got := Similarity(a, b)
			if got < 0 || got > 1 {
				t.Errorf("Similarity(%v, %v) = %v, outside [0, 1]", a, b, got)
			}
		}
	}
}
