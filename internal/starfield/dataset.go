package starfield

import (
	"fmt"
)

// Population names used in dataset segments.
const (
	PopulationBulge    = "bulge"
	PopulationArms     = "arms"
	PopulationHalo     = "halo"
	PopulationClusters = "clusters"
)

// Segment is a contiguous run of stars from one population.
type Segment struct {
	Population string
	Offset     int
	Count      int
}

// Dataset is a struct-of-arrays star field.
//
// Positions and Colors hold three components per star, Sizes and Flickers
// one. Element i of each array describes the same star.
type Dataset struct {
	Positions []float32
	Colors    []float32
	Sizes     []float32
	Flickers  []float32

	Tier     Tier
	Segments []Segment
}

// Star is a single star view assembled from a dataset.
type Star struct {
	X, Y, Z float32
	R, G, B float32
	Size    float32
	Flicker float32
}

func newDataset(n int, population string) *Dataset {
	d := &Dataset{
		Positions: make([]float32, 3*n),
		Colors:    make([]float32, 3*n),
		Sizes:     make([]float32, n),
		Flickers:  make([]float32, n),
	}
	if population != "" {
		d.Segments = []Segment{{Population: population, Offset: 0, Count: n}}
	}
	return d
}

// Len returns the number of stars. It trusts the Sizes array.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Sizes)
}

// Validate checks the 3N/3N/N/N layout.
func (d *Dataset) Validate() error {
	if d == nil {
		return nil
	}
	n := len(d.Sizes)
	if len(d.Positions) != 3*n || len(d.Colors) != 3*n || len(d.Flickers) != n {
		return &ShapeError{
			Positions: len(d.Positions),
			Colors:    len(d.Colors),
			Sizes:     len(d.Sizes),
			Flickers:  len(d.Flickers),
		}
	}
	return nil
}

// Clamp truncates all arrays to the largest star count every array can
// support. It returns the number of stars dropped.
func (d *Dataset) Clamp() int {
	if d == nil {
		return 0
	}
	n := min(len(d.Positions)/3, len(d.Colors)/3, len(d.Sizes), len(d.Flickers))
	dropped := max(len(d.Positions)/3, len(d.Colors)/3, len(d.Sizes), len(d.Flickers)) - n
	d.Positions = d.Positions[:3*n]
	d.Colors = d.Colors[:3*n]
	d.Sizes = d.Sizes[:n]
	d.Flickers = d.Flickers[:n]

	segs := d.Segments[:0]
	for _, s := range d.Segments {
		if s.Offset >= n {
			continue
		}
		if s.Offset+s.Count > n {
			s.Count = n - s.Offset
		}
		segs = append(segs, s)
	}
	d.Segments = segs
	return dropped
}

// Star returns star i. It panics if i is out of range.
func (d *Dataset) Star(i int) Star {
	p := d.Positions[3*i : 3*i+3]
	c := d.Colors[3*i : 3*i+3]
	return Star{
		X: p[0], Y: p[1], Z: p[2],
		R: c[0], G: c[1], B: c[2],
		Size:    d.Sizes[i],
		Flicker: d.Flickers[i],
	}
}

// Segment returns the segment for a population.
func (d *Dataset) Segment(population string) (Segment, bool) {
	if d == nil {
		return Segment{}, false
	}
	for _, s := range d.Segments {
		if s.Population == population {
			return s, true
		}
	}
	return Segment{}, false
}

func (d *Dataset) set(i int, x, y, z float64, col RGB, size, flicker float64) {
	d.Positions[3*i] = float32(x)
	d.Positions[3*i+1] = float32(y)
	d.Positions[3*i+2] = float32(z)
	d.Colors[3*i] = float32(col.R)
	d.Colors[3*i+1] = float32(col.G)
	d.Colors[3*i+2] = float32(col.B)
	d.Sizes[i] = float32(size)
	d.Flickers[i] = float32(flicker)
}

// Merge concatenates datasets in argument order. Storage is allocated once.
// Nil inputs are skipped. The result carries the tier of the first non-nil
// input and segments re-based onto the merged arrays.
func Merge(parts ...*Dataset) (*Dataset, error) {
	total := 0
	first := true
	var tier Tier
	for i, p := range parts {
		if p == nil {
			continue
		}
		if err := p.Validate(); err != nil {
			assertShape(err)
			return nil, fmt.Errorf("merge part %d: %w", i, err)
		}
		if first {
			tier, first = p.Tier, false
		}
		total += p.Len()
	}

	out := newDataset(total, "")
	out.Tier = tier
	out.Segments = make([]Segment, 0, len(parts))

	offset := 0
	for _, p := range parts {
		if p == nil {
			continue
		}
		n := p.Len()
		copy(out.Positions[3*offset:], p.Positions)
		copy(out.Colors[3*offset:], p.Colors)
		copy(out.Sizes[offset:], p.Sizes)
		copy(out.Flickers[offset:], p.Flickers)
		for _, s := range p.Segments {
			s.Offset += offset
			out.Segments = append(out.Segments, s)
		}
		offset += n
	}
	return out, nil
}
