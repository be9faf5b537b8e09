package starfield

import (
	"math"
	"math/bits"

	"github.com/aquilax/go-perlin"
)

// Source is the random source consumed by the generators.
// *math/rand/v2.Rand satisfies it.
type Source interface {
	Float64() float64
	NormFloat64() float64
}

const (
	noiseAlpha   = 2.0
	noiseBeta    = 2.0
	noiseOctaves = 3
)

// armNoise is coherent 2D noise used to wobble stars off the ideal spiral.
type armNoise struct {
	p *perlin.Perlin
}

// newArmNoise seeds the noise field from the generator's own stream so a
// pass stays reproducible for a given seed.
func newArmNoise(src Source) armNoise {
	seed := int64(src.Float64() * (1 << 53))
	return armNoise{p: perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, seed)}
}

// at returns a value roughly in [-1,1].
func (n armNoise) at(x, y float64) float64 {
	v := n.p.Noise2D(x, y)
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// radicalInverse returns the base-2 van der Corput value of i.
// Any prefix of the sequence 0,1,2,... is spread evenly over [0,1).
func radicalInverse(i uint64) float64 {
	return float64(bits.Reverse64(i)>>11) / (1 << 53)
}

// uniform returns a value in [lo,hi).
func uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// unitSphere returns a uniformly distributed direction.
func unitSphere(src Source) (x, y, z float64) {
	theta := src.Float64() * 2 * math.Pi
	phi := math.Acos(2*src.Float64() - 1)
	s := math.Sin(phi)
	return s * math.Cos(theta), math.Cos(phi), s * math.Sin(theta)
}
