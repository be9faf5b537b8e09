// Package lod picks a star representation from camera distance and frame rate.
package lod

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/litescript/ls-galaxy/internal/quality"
)

// Kind is a rendering representation.
type Kind int

const (
	KindInstanced Kind = iota
	KindPointSprites
	KindImpostor
)

func (k Kind) String() string {
	switch k {
	case KindInstanced:
		return "instanced"
	case KindPointSprites:
		return "point-sprites"
	case KindImpostor:
		return "impostor"
	default:
		return "unknown"
	}
}

// Shader is the shading complexity of a tier.
type Shader int

const (
	ShaderLow Shader = iota
	ShaderMedium
	ShaderHigh
)

func (s Shader) String() string {
	switch s {
	case ShaderLow:
		return "low"
	case ShaderMedium:
		return "medium"
	case ShaderHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Tier is one row of the LOD table.
type Tier struct {
	Distance float64 // minimum camera distance for this tier
	Kind     Kind
	Shader   Shader
}

// LowWaterFPS is the frame rate below which selection steps one tier coarser.
const LowWaterFPS = 30

// ErrUnsorted indicates LOD thresholds that are not strictly increasing.
var ErrUnsorted = errors.New("lod thresholds must be strictly increasing from zero")

// Table is an ordered set of LOD tiers, nearest first.
type Table struct {
	tiers []Tier
}

// DefaultTiers are the standard thresholds. Beyond 600 units the reduced
// impostor dataset stands in for the full field.
func DefaultTiers() []Tier {
	return []Tier{
		{Distance: 0, Kind: KindInstanced, Shader: ShaderMedium},
		{Distance: 150, Kind: KindPointSprites, Shader: ShaderMedium},
		{Distance: 600, Kind: KindImpostor, Shader: ShaderLow},
		{Distance: 2500, Kind: KindImpostor, Shader: ShaderLow},
	}
}

// NewTable validates and copies tiers.
func NewTable(tiers []Tier) (*Table, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrUnsorted)
	}
	if tiers[0].Distance != 0 {
		return nil, fmt.Errorf("%w: first threshold is %v", ErrUnsorted, tiers[0].Distance)
	}
	sorted := sort.SliceIsSorted(tiers, func(i, j int) bool {
		return tiers[i].Distance < tiers[j].Distance
	})
	if !sorted {
		return nil, ErrUnsorted
	}
	for i := 1; i < len(tiers); i++ {
		if !(tiers[i].Distance > tiers[i-1].Distance) {
			return nil, fmt.Errorf("%w: %v after %v", ErrUnsorted, tiers[i].Distance, tiers[i-1].Distance)
		}
	}
	t := &Table{tiers: make([]Tier, len(tiers))}
	copy(t.tiers, tiers)
	return t, nil
}

// DefaultTable returns a table built from DefaultTiers.
func DefaultTable() *Table {
	t, err := NewTable(DefaultTiers())
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of tiers.
func (t *Table) Len() int { return len(t.tiers) }

// At returns tier i.
func (t *Table) At(i int) Tier { return t.tiers[i] }

// Selection is the result of a LOD lookup.
type Selection struct {
	Index    int
	Tier     Tier
	Degraded bool // stepped coarser because of low FPS
}

// Select returns the tier with the greatest threshold not above distance.
// When recentFPS is below LowWaterFPS the selection moves one step further
// toward the coarsest tier. It never returns a tier finer than distance
// alone allows. Negative or NaN distances select the nearest tier.
func (t *Table) Select(distance, recentFPS float64) Selection {
	idx := 0
	if !math.IsNaN(distance) {
		// Last index whose threshold is <= distance.
		idx = sort.Search(len(t.tiers), func(i int) bool {
			return t.tiers[i].Distance > distance
		}) - 1
		idx = max(idx, 0)
	}

	s := Selection{Index: idx}
	if recentFPS < LowWaterFPS && idx < len(t.tiers)-1 {
		s.Index++
		s.Degraded = true
	}
	s.Tier = t.tiers[s.Index]
	return s
}

// SelectHistory selects using the mean of h. An empty history counts as
// healthy.
func (t *Table) SelectHistory(distance float64, h *quality.History) Selection {
	fps := math.Inf(1)
	if h != nil {
		if mean, ok := h.Mean(); ok {
			fps = mean
		}
	}
	return t.Select(distance, fps)
}
