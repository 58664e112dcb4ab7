package speaker

import (
	"fmt"
	"math"
)

// Cosine returns the cosine similarity of a and b in [-1, 1]. A zero
// vector has similarity 0 with everything.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(-1, math.Min(1, sim)), nil
}

// UpdateCentroid folds sample into a centroid built from n samples:
// (centroid*n + sample) / (n+1). It returns a new slice and n+1.
func UpdateCentroid(centroid []float64, n int, sample []float64) ([]float64, int) {
	out := make([]float64, len(centroid))
	for i := range centroid {
		out[i] = (centroid[i]*float64(n) + sample[i]) / float64(n+1)
	}
	return out, n + 1
}
