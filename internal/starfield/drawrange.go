package starfield

// Range is a contiguous slice of stars to draw.
type Range struct {
	Start int
	Count int
}

// End returns the index one past the last star.
func (r Range) End() int { return r.Start + r.Count }

// DrawRange limits a dataset to the star budget of tier without
// regenerating it. The result is [0, min(N, tier total)]. An unknown tier
// draws everything.
func DrawRange(d *Dataset, tier Tier) (start, count int) {
	n := d.Len()
	p, err := ParamsFor(tier)
	if err != nil {
		return 0, n
	}
	return 0, min(n, p.Total())
}

// PopulationRanges returns one range per segment, each trimmed to the
// population's count at tier. Population prefixes are representative
// samples: bulge, halo and cluster stars are drawn independently and
// arm stars follow a low-discrepancy progression, so a prefix of any
// segment keeps the full shape of the galaxy.
func PopulationRanges(d *Dataset, tier Tier) []Range {
	if d == nil {
		return nil
	}
	if len(d.Segments) == 0 {
		start, count := DrawRange(d, tier)
		return []Range{{Start: start, Count: count}}
	}
	p, err := ParamsFor(tier)
	if err != nil {
		return []Range{{Start: 0, Count: d.Len()}}
	}

	out := make([]Range, 0, len(d.Segments))
	for _, s := range d.Segments {
		limit := s.Count
		switch s.Population {
		case PopulationBulge:
			limit = p.BulgeStars
		case PopulationArms:
			limit = p.ArmStars
		case PopulationHalo:
			limit = p.HaloStars
		case PopulationClusters:
			limit = p.ClusterStars
		}
		out = append(out, Range{Start: s.Offset, Count: min(s.Count, limit)})
	}
	return out
}

// ImpostorRanges limits impostor, the reduction of primary, to the stars
// sampled from primary's draw ranges at tier. Lowering the tier therefore
// thins the distant view by the same proportion as the near one.
func ImpostorRanges(primary, impostor *Dataset, tier Tier) []Range {
	if impostor == nil {
		return nil
	}
	n, m := primary.Len(), impostor.Len()
	if n == 0 {
		return []Range{{Start: 0, Count: m}}
	}
	ranges := PopulationRanges(primary, tier)
	out := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		lo, hi := impostorIndex(r.Start, n, m), impostorIndex(r.End(), n, m)
		out = append(out, Range{Start: lo, Count: hi - lo})
	}
	return out
}

// RangeTotal sums the counts of rs.
func RangeTotal(rs []Range) int {
	total := 0
	for _, r := range rs {
		total += r.Count
	}
	return total
}
