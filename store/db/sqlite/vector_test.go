package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVectorRoundTrip(t *testing.T) {
	vectors := [][]float32{
		{1, 2, 3},
		{-0.5, 0, 0.5},
		{},
	}
	for _, vec := range vectors {
		decoded := decodeVector(encodeVector(vec))
		if len(vec) == 0 {
			assert.Empty(t, decoded)
			continue
		}
		assert.Equal(t, vec, decoded)
	}
}

func TestCosineDistance(t *testing.T) {
	testCases := []struct {
		name   string
		a, b   []float32
		expect float32
	}{
		{"identical direction", []float32{1, 0}, []float32{2, 0}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expect, cosineDistance(tc.a, tc.b), 1e-5)
		})
	}
}

func TestCosineDistanceDegenerateInputs(t *testing.T) {
	// Mismatched lengths and zero vectors fall back to the maximum
	// distance so they rank last, never panic.
	assert.InDelta(t, 1, cosineDistance([]float32{1, 2}, []float32{1}), 1e-5)
	assert.InDelta(t, 1, cosineDistance([]float32{0, 0}, []float32{1, 0}), 1e-5)
}
