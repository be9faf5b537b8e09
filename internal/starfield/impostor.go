package starfield

import (
	"fmt"
	"math"
)

// DefaultImpostorFraction keeps every tenth star.
const DefaultImpostorFraction = 0.1

// ImpostorCount returns ⌈n·fraction⌉ for a clamped fraction.
func ImpostorCount(n int, fraction float64) int {
	if n <= 0 || !(fraction > 0) {
		return 0
	}
	fraction = math.Min(fraction, 1)
	// The epsilon keeps exact products such as 100000·0.1 from rounding up.
	return min(int(math.Ceil(float64(n)*fraction-1e-9)), n)
}

// Reduce returns a deterministic subset of d for distant rendering.
// Element j of the result is source star j·N/M, which for a fraction of 0.1
// is every tenth star. A fraction above 1 is treated as 1. Source segments
// carry over, covering the impostor stars sampled from them.
func Reduce(d *Dataset, fraction float64) (*Dataset, error) {
	if math.IsNaN(fraction) || fraction <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrFraction, fraction)
	}
	if d == nil {
		return newDataset(0, ""), nil
	}
	if err := d.Validate(); err != nil {
		assertShape(err)
		return nil, fmt.Errorf("reduce: %w", err)
	}

	n := d.Len()
	m := ImpostorCount(n, fraction)
	out := newDataset(m, "")
	out.Tier = d.Tier
	for j := 0; j < m; j++ {
		src := j * n / m
		copy(out.Positions[3*j:3*j+3], d.Positions[3*src:3*src+3])
		copy(out.Colors[3*j:3*j+3], d.Colors[3*src:3*src+3])
		out.Sizes[j] = d.Sizes[src]
		out.Flickers[j] = d.Flickers[src]
	}
	for _, seg := range d.Segments {
		lo := impostorIndex(seg.Offset, n, m)
		hi := impostorIndex(seg.Offset+seg.Count, n, m)
		out.Segments = append(out.Segments, Segment{Population: seg.Population, Offset: lo, Count: hi - lo})
	}
	return out, nil
}

// impostorIndex returns the first element of an n-to-m reduction whose
// source index is at least src.
func impostorIndex(src, n, m int) int {
	if n <= 0 {
		return 0
	}
	return (src*m + n - 1) / n
}
