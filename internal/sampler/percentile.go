package sampler

import "sort"

// percentile computes the p-th percentile (0..100) of values using linear
// interpolation between closest ranks, the same convention the upstream
// survey catalogs are binned with.
func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(rank)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Band is a closed interval [Lo, Hi] of condition values. Both endpoints
// are inclusive: a tile sitting exactly on a shared boundary belongs to
// the bands on both sides of it.
type Band struct {
	Lo, Hi float64
}

// Contains reports whether v falls inside the band.
func (b Band) Contains(v float64) bool {
	return v >= b.Lo && v <= b.Hi
}

// conditionBands splits the value range of one condition into three
// contiguous bands at the 33rd and 66th percentiles.
func conditionBands(values []float64) [3]Band {
	p0 := percentile(values, 0)
	p33 := percentile(values, 33)
	p66 := percentile(values, 66)
	p100 := percentile(values, 100)

	return [3]Band{
		{Lo: p0, Hi: p33},
		{Lo: p33, Hi: p66},
		{Lo: p66, Hi: p100},
	}
}
