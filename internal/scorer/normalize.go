package scorer

import "math"

// Normalize min-max scales the present values into [0, 1]. Absent values
// stay absent. When every present value is equal (including a single
// present value) each normalizes to 0.
func Normalize(values []*float64) []*float64 {
	out := make([]*float64, len(values))

	lo, hi := math.Inf(1), math.Inf(-1)
	present := 0
	for _, v := range values {
		if v == nil {
			continue
		}
		present++
		lo = math.Min(lo, *v)
		hi = math.Max(hi, *v)
	}
	if present == 0 {
		return out
	}

	span := hi - lo
	for i, v := range values {
		if v == nil {
			continue
		}
		n := 0.0
		if span > 0 {
			n = (*v - lo) / span
		}
		out[i] = &n
	}
	return out
}

// Bell is a symmetric preference peaking at target: 1 - 2|v - target|,
// clipped to [0, 1].
func Bell(v, target float64) float64 {
	return clip01(1 - 2*math.Abs(v-target))
}

func clip01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
