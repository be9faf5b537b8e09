package starfield

import (
	"context"
	"math"
)

// GeneratorFunc synthesizes one stellar population.
type GeneratorFunc func(ctx context.Context, p Params, src Source) (*Dataset, error)

// cancelCheckInterval is how many stars a generator emits between context polls.
const cancelCheckInterval = 4096

func cancelled(ctx context.Context, i int) error {
	if i%cancelCheckInterval != 0 {
		return nil
	}
	return ctx.Err()
}

// GenerateBulge fills a squashed Gaussian sphere around the galactic centre
// with warm, older stars.
func GenerateBulge(ctx context.Context, p Params, src Source) (*Dataset, error) {
	n := max(p.BulgeStars, 0)
	d := newDataset(n, PopulationBulge)
	sigma := 0.4 * p.BulgeRadius

	for i := 0; i < n; i++ {
		if err := cancelled(ctx, i); err != nil {
			return nil, err
		}
		r := math.Abs(src.NormFloat64() * sigma)
		dx, dy, dz := unitSphere(src)
		temp := uniform(src, 4000, 8000)
		d.set(i,
			r*dx, r*dy*0.6, r*dz,
			TemperatureColor(temp),
			uniform(src, p.StarMinSize, p.StarMaxSize),
			uniform(src, 0.5, 2.5),
		)
	}
	return d, nil
}

// SpiralPoint returns the planar position at angle theta along a logarithmic
// spiral r = a·e^(bθ), rotated by offset.
func SpiralPoint(theta, a, b, offset float64) (x, z float64) {
	r := a * math.Exp(b*theta)
	angle := theta + offset
	return r * math.Cos(angle), r * math.Sin(angle)
}

// GenerateArms distributes stars along ArmCount logarithmic spiral arms.
//
// Star i sits on arm i mod ArmCount at a progress taken from a base-2
// radical inverse sequence, so every prefix of the output covers the whole
// length of every arm. Planar radius never exceeds DiskRadius.
func GenerateArms(ctx context.Context, p Params, src Source) (*Dataset, error) {
	n := max(p.ArmStars, 0)
	d := newDataset(n, PopulationArms)
	if n == 0 {
		return d, nil
	}

	noise := newArmNoise(src)
	a := 0.8 * p.BulgeRadius
	R := p.DiskRadius
	arms := p.ArmCount

	for i := 0; i < n; i++ {
		if err := cancelled(ctx, i); err != nil {
			return nil, err
		}
		arm := i % arms
		t := radicalInverse(uint64(i / arms))
		theta := t * p.ArmTurns * 2 * math.Pi
		offset := 2 * math.Pi * float64(arm) / float64(arms)

		x, z := SpiralPoint(theta, a, p.ArmTightness, offset)

		width := 10 + 20*t
		ny := float64(arm) * 10
		x += noise.at(theta*0.1, ny)*width + src.NormFloat64()*0.3*width
		z += noise.at(theta*0.1+100, ny)*width + src.NormFloat64()*0.3*width

		planar := math.Hypot(x, z)
		if planar > R {
			k := R / planar
			x *= k
			z *= k
			planar = R
		}
		y := src.NormFloat64() * p.DiskHeight * math.Exp(-planar/(0.5*R))

		frac := planar / R
		temp := 6000 + (1-frac)*4000 + uniform(src, 0, 2000)
		col := TemperatureColor(temp)
		if frac > 0.3 && frac < 0.8 && src.Float64() < 0.3 {
			col.R *= 0.8
			col.G *= 0.9
			col.B = math.Min(col.B*1.3, 1)
		}

		d.set(i, x, y, z, col,
			uniform(src, p.StarMinSize, p.StarMaxSize),
			uniform(src, 0.5, 2.5),
		)
	}
	return d, nil
}

// GenerateHalo scatters sparse, cool stars in a shell between BulgeRadius
// and HaloRadius.
func GenerateHalo(ctx context.Context, p Params, src Source) (*Dataset, error) {
	n := max(p.HaloStars, 0)
	d := newDataset(n, PopulationHalo)
	span := p.HaloRadius - p.BulgeRadius

	for i := 0; i < n; i++ {
		if err := cancelled(ctx, i); err != nil {
			return nil, err
		}
		r := p.BulgeRadius + math.Pow(src.Float64(), 0.3)*span
		dx, dy, dz := unitSphere(src)
		temp := uniform(src, 3000, 5000)
		d.set(i,
			r*dx, r*dy, r*dz,
			TemperatureColor(temp),
			p.StarMinSize*0.6+src.Float64()*p.StarMinSize,
			uniform(src, 0.3, 1.3),
		)
	}
	return d, nil
}

type cluster struct {
	x, y, z float64
	radius  float64
}

// GenerateClusters places ClusterCount dense open clusters of hot stars in
// the middle portion of the arms. Star i belongs to cluster i mod
// ClusterCount, so the output holds exactly ClusterStars stars.
func GenerateClusters(ctx context.Context, p Params, src Source) (*Dataset, error) {
	n := max(p.ClusterStars, 0)
	d := newDataset(n, PopulationClusters)
	if n == 0 {
		return d, nil
	}

	a := 0.8 * p.BulgeRadius
	centers := make([]cluster, p.ClusterCount)
	for c := range centers {
		arm := c % p.ArmCount
		offset := 2 * math.Pi * float64(arm) / float64(p.ArmCount)
		t := uniform(src, 0.2, 0.8)
		theta := t * p.ArmTurns * 2 * math.Pi
		x, z := SpiralPoint(theta, a, p.ArmTightness, offset)
		centers[c] = cluster{
			x:      x,
			y:      src.NormFloat64() * 3,
			z:      z,
			radius: uniform(src, 3, 8),
		}
	}

	for i := 0; i < n; i++ {
		if err := cancelled(ctx, i); err != nil {
			return nil, err
		}
		c := centers[i%len(centers)]
		r := math.Sqrt(src.Float64()) * c.radius
		dx, dy, dz := unitSphere(src)
		temp := uniform(src, 8000, 20000)
		d.set(i,
			c.x+r*dx, c.y+r*dy, c.z+r*dz,
			TemperatureColor(temp),
			p.StarMinSize+src.Float64()*p.StarMaxSize*1.2,
			uniform(src, 1, 4),
		)
	}
	return d, nil
}
