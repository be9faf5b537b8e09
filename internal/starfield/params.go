// Package starfield generates procedural spiral-galaxy star datasets.
//
// A dataset is four parallel arrays (positions, colors, sizes, flicker rates)
// synthesized from a small table of structural parameters indexed by quality
// tier. Generation is pure given the tier and a seeded random source.
package starfield

import (
	"errors"
	"fmt"
	"math"
)

// Tier is a discrete quality level controlling star counts.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
	TierUltra
)

// Tiers lists every tier from cheapest to richest.
var Tiers = []Tier{TierLow, TierMedium, TierHigh, TierUltra}

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	case TierUltra:
		return "ultra"
	default:
		return "unknown"
	}
}

// Valid reports whether t is a member of the tier enum.
func (t Tier) Valid() bool {
	return t >= TierLow && t <= TierUltra
}

// Lower returns the next cheaper tier. Low stays low.
func (t Tier) Lower() Tier {
	if t <= TierLow {
		return TierLow
	}
	return t - 1
}

// Higher returns the next richer tier. Ultra stays ultra.
func (t Tier) Higher() Tier {
	if t >= TierUltra {
		return TierUltra
	}
	return t + 1
}

// ParseTier parses a tier name.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "low", "LOW":
		return TierLow, nil
	case "medium", "MEDIUM", "med":
		return TierMedium, nil
	case "high", "HIGH":
		return TierHigh, nil
	case "ultra", "ULTRA":
		return TierUltra, nil
	default:
		return TierLow, &ConfigError{Tier: -1, Reason: fmt.Sprintf("unknown tier %q", s), Err: ErrUnknownTier}
	}
}

// Params holds the structural parameters for one tier.
// Distances are in scene units; the disk lies in the XZ plane with Y up.
type Params struct {
	// Star counts by population
	BulgeStars   int
	ArmStars     int
	HaloStars    int
	ClusterStars int
	ClusterCount int

	// Galaxy structure
	ArmCount     int
	ArmTightness float64 // b in r = a·e^(bθ)
	ArmTurns     float64 // full turns covered by the progress range [0,1)
	DiskRadius   float64
	BulgeRadius  float64
	HaloRadius   float64
	DiskHeight   float64 // scale height at the galactic centre

	// Visual
	StarMinSize   float64
	StarMaxSize   float64
	RotationSpeed float64 // radians per second for the presentation layer
}

// Total returns the number of stars a generation pass produces.
func (p Params) Total() int {
	return p.BulgeStars + p.ArmStars + p.HaloStars + p.ClusterStars
}

// Validate checks the parameters for internal consistency.
func (p Params) Validate() error {
	switch {
	case p.BulgeStars < 0 || p.ArmStars < 0 || p.HaloStars < 0 || p.ClusterStars < 0:
		return errors.New("star counts must be non-negative")
	case p.ArmStars > 0 && p.ArmCount <= 0:
		return errors.New("arm stars require at least one arm")
	case p.ClusterStars > 0 && (p.ClusterCount <= 0 || p.ArmCount <= 0):
		return errors.New("cluster stars require clusters and arms")
	case !(p.DiskRadius > 0) || !(p.BulgeRadius > 0):
		return errors.New("disk and bulge radius must be positive")
	case p.HaloRadius < p.BulgeRadius:
		return errors.New("halo radius must not be smaller than bulge radius")
	case p.DiskHeight < 0:
		return errors.New("disk height must be non-negative")
	case !(p.ArmTurns > 0) || math.IsInf(p.ArmTightness, 0) || math.IsNaN(p.ArmTightness):
		return errors.New("arm turns must be positive and tightness finite")
	case !(p.StarMinSize > 0) || p.StarMaxSize < p.StarMinSize:
		return errors.New("star size range is invalid")
	}
	return nil
}

// DefaultClusterCount is the number of open clusters seeded along the arms.
const DefaultClusterCount = 25

// presets is the closed tier table. Ultra doubles high to reach two million
// stars.
var presets = [...]Params{
	TierLow: {
		BulgeStars:    20000,
		ArmStars:      60000,
		HaloStars:     15000,
		ClusterStars:  5000,
		ClusterCount:  DefaultClusterCount,
		ArmCount:      4,
		ArmTightness:  0.20,
		ArmTurns:      1.5,
		DiskRadius:    200,
		BulgeRadius:   30,
		HaloRadius:    250,
		DiskHeight:    15,
		StarMinSize:   0.5,
		StarMaxSize:   2.0,
		RotationSpeed: 0.02,
	},
	TierMedium: {
		BulgeStars:    80000,
		ArmStars:      350000,
		HaloStars:     50000,
		ClusterStars:  20000,
		ClusterCount:  DefaultClusterCount,
		ArmCount:      4,
		ArmTightness:  0.21,
		ArmTurns:      1.5,
		DiskRadius:    200,
		BulgeRadius:   30,
		HaloRadius:    280,
		DiskHeight:    12,
		StarMinSize:   0.4,
		StarMaxSize:   2.5,
		RotationSpeed: 0.02,
	},
	TierHigh: {
		BulgeStars:    150000,
		ArmStars:      700000,
		HaloStars:     100000,
		ClusterStars:  50000,
		ClusterCount:  DefaultClusterCount,
		ArmCount:      4,
		ArmTightness:  0.22,
		ArmTurns:      1.5,
		DiskRadius:    200,
		BulgeRadius:   30,
		HaloRadius:    300,
		DiskHeight:    10,
		StarMinSize:   0.3,
		StarMaxSize:   3.0,
		RotationSpeed: 0.02,
	},
	TierUltra: {
		BulgeStars:    300000,
		ArmStars:      1400000,
		HaloStars:     200000,
		ClusterStars:  100000,
		ClusterCount:  DefaultClusterCount,
		ArmCount:      4,
		ArmTightness:  0.22,
		ArmTurns:      1.5,
		DiskRadius:    200,
		BulgeRadius:   30,
		HaloRadius:    300,
		DiskHeight:    10,
		StarMinSize:   0.3,
		StarMaxSize:   3.0,
		RotationSpeed: 0.02,
	},
}

// ParamsFor returns the structural parameters for a tier.
// An unknown tier is a configuration error; no other tier is substituted.
func ParamsFor(t Tier) (Params, error) {
	if !t.Valid() {
		return Params{}, &ConfigError{Tier: t, Reason: "no parameters for tier", Err: ErrUnknownTier}
	}
	p := presets[t]
	if err := p.Validate(); err != nil {
		return Params{}, &ConfigError{Tier: t, Reason: err.Error(), Err: ErrInvalidParams}
	}
	return p, nil
}

// ValidateTable checks every preset. Call once at start-up.
func ValidateTable() error {
	prev := -1
	for _, t := range Tiers {
		p, err := ParamsFor(t)
		if err != nil {
			return err
		}
		if p.Total() <= prev {
			return &ConfigError{Tier: t, Reason: "star count does not grow with tier", Err: ErrInvalidParams}
		}
		prev = p.Total()
	}
	return nil
}
