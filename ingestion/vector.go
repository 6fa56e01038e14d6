package ingestion

import "math"

// NormalizeVector returns a unit-length copy of v. A zero vector maps
// to a zero vector of the same length; the input is never modified.
func NormalizeVector(v []float32) []float32 {
	out := make([]float32, len(v))
	if len(v) == 0 {
		return out
	}

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return out
	}

	inv := float32(1 / norm)
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}
