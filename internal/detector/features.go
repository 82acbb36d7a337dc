package detector

import "math"

// FeatureVector is a position and size invariant encoding of a landmark frame:
// x, y (and z for 3D frames) of every point relative to the wrist, divided by
// the wrist to index MCP distance. It is not rotation invariant.
type FeatureVector []float64

// minScale guards the division when the reference bone collapses to a point.
const minScale = 1e-10

// Features extracts the feature vector for the frame.
//
// Algorithm:
// 1. Reject frames with fewer than NumLandmarks points
// 2. Use the wrist as origin
// 3. Use the planar wrist to index MCP distance as the unit (1 if degenerate)
// 4. Emit (p - wrist) / scale per axis for every point, z included only for 3D frames
func (h *HandLandmarks) Features() (FeatureVector, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	origin := h.Points[Wrist]
	scale := Distance2D(origin, h.Points[IndexMCP])
	if scale < minScale {
		scale = 1
	}

	dims := 2
	if h.Has3D {
		dims = 3
	}

	vec := make(FeatureVector, 0, len(h.Points)*dims)
	for _, p := range h.Points {
		vec = append(vec, (p.X-origin.X)/scale, (p.Y-origin.Y)/scale)
		if h.Has3D {
			vec = append(vec, (p.Z-origin.Z)/scale)
		}
	}

	return vec, nil
}

// Distance returns the Euclidean distance between two vectors of equal length.
// Vectors of different length are infinitely far apart.
func Distance(a, b FeatureVector) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
