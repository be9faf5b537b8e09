package starfield

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// SpectralClass is a Morgan-Keenan main-sequence class.
type SpectralClass byte

const (
	ClassO SpectralClass = 'O'
	ClassB SpectralClass = 'B'
	ClassA SpectralClass = 'A'
	ClassF SpectralClass = 'F'
	ClassG SpectralClass = 'G'
	ClassK SpectralClass = 'K'
	ClassM SpectralClass = 'M'
)

func (c SpectralClass) String() string {
	return string(rune(c))
}

// Classification describes one spectral class entry.
type Classification struct {
	Class          SpectralClass
	Abundance      float64 // percent of the main-sequence population
	TemperatureK   float64
	RelativeRadius float64 // solar radii
	Mass           float64 // solar masses
	ColorHex       string
}

// RGB is a linear color with components in [0,1].
type RGB struct {
	R, G, B float64
}

// classes is ordered hottest to coolest; Classify walks it cumulatively.
var classes = [...]Classification{
	{ClassO, 0.00003, 50000, 15, 60, "#9bb0ff"},
	{ClassB, 0.13, 20000, 7, 18, "#aabfff"},
	{ClassA, 0.6, 8500, 2.1, 3.2, "#cad7ff"},
	{ClassF, 3, 6500, 1.3, 1.7, "#f8f7ff"},
	{ClassG, 7.6, 5700, 1.1, 1.1, "#fff4ea"},
	{ClassK, 12.1, 4500, 0.9, 0.8, "#ffd2a1"},
	{ClassM, 76.45, 3200, 0.4, 0.3, "#ffcc6f"},
}

var (
	abundanceTotal float64
	// anchors holds the class colors sorted by ascending temperature.
	anchors [len(classes)]colorAnchor
)

type colorAnchor struct {
	tempK float64
	color colorful.Color
}

func init() {
	for i, c := range classes {
		abundanceTotal += c.Abundance
		col, err := colorful.Hex(c.ColorHex)
		if err != nil {
			panic(fmt.Sprintf("starfield: class %s color %q: %v", c.Class, c.ColorHex, err))
		}
		anchors[len(classes)-1-i] = colorAnchor{tempK: c.TemperatureK, color: col}
	}
}

// Classify maps a uniform sample u in [0,1) to a spectral class using the
// abundance table as an inverse CDF. The abundances are normalised by their
// total, so every u lands on a table entry. Out-of-range u is clamped.
func Classify(u float64) Classification {
	if math.IsNaN(u) || u < 0 {
		u = 0
	}
	if u > 1 {
		u = 1
	}
	target := u * abundanceTotal
	cum := 0.0
	for _, c := range classes {
		cum += c.Abundance
		if target < cum {
			return c
		}
	}
	return classes[len(classes)-1]
}

// TemperatureColor returns the color of a blackbody-like star at tempK,
// interpolating linearly in RGB between the class anchor colors.
// Temperatures outside the anchor range clamp to the end colors.
func TemperatureColor(tempK float64) RGB {
	first, last := anchors[0], anchors[len(anchors)-1]
	switch {
	case math.IsNaN(tempK) || tempK <= first.tempK:
		return toRGB(first.color)
	case tempK >= last.tempK:
		return toRGB(last.color)
	}
	for i := 1; i < len(anchors); i++ {
		hi := anchors[i]
		if tempK > hi.tempK {
			continue
		}
		lo := anchors[i-1]
		t := (tempK - lo.tempK) / (hi.tempK - lo.tempK)
		return toRGB(lo.color.BlendRgb(hi.color, t))
	}
	return toRGB(last.color)
}

func toRGB(c colorful.Color) RGB {
	return RGB{R: clamp01(c.R), G: clamp01(c.G), B: clamp01(c.B)}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
