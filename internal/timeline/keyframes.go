package timeline

import "math"

// Keyframes is a piecewise-linear curve over normalized time. Times must be
// non-decreasing and start at 0; each time pairs with the value at the same
// index. Tables of different length are cut to their common prefix.
type Keyframes struct {
	Times  []float64
	Values []float64
}

// At samples the curve at t. Outside the covered range, and for anything it
// cannot interpret, it returns the last value; an empty table yields 1.
func (k Keyframes) At(t float64) float64 {
	n := len(k.Times)
	if len(k.Values) < n {
		n = len(k.Values)
	}
	if n == 0 {
		return 1
	}
	last := k.Values[n-1]
	if math.IsNaN(t) || t >= k.Times[n-1] {
		return last
	}

	for i := 0; i < n-1; i++ {
		t0, t1 := k.Times[i], k.Times[i+1]
		if t < t0 || t >= t1 {
			continue
		}
		span := t1 - t0
		if span <= 0 {
			return k.Values[i+1]
		}
		v0, v1 := k.Values[i], k.Values[i+1]
		return v0 + (v1-v0)*(t-t0)/span
	}

	return last
}

// InterpolateScale samples the scale curve at position within a cycle of
// cycleSeconds. A non-positive cycle yields the last scale.
func InterpolateScale(position, cycleSeconds float64, times, scales []float64) float64 {
	k := Keyframes{Times: times, Values: scales}
	if !(cycleSeconds > 0) || math.IsInf(cycleSeconds, 0) {
		return k.At(math.Inf(1))
	}
	return k.At(position / cycleSeconds)
}
