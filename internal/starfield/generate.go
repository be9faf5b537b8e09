package starfield

import (
	"context"
	"fmt"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
)

// Options tune a generation pass.
type Options struct {
	// Seed selects the random streams. Equal seeds give equal datasets.
	Seed uint64

	// Population toggles. A skipped population contributes zero stars.
	SkipArms     bool
	SkipHalo     bool
	SkipClusters bool
}

// population order is fixed; Merge concatenates in this order.
var populations = [...]struct {
	name string
	gen  GeneratorFunc
}{
	{PopulationBulge, GenerateBulge},
	{PopulationArms, GenerateArms},
	{PopulationHalo, GenerateHalo},
	{PopulationClusters, GenerateClusters},
}

// Generate builds the full star field for a tier.
func Generate(ctx context.Context, tier Tier, opts Options) (*Dataset, error) {
	p, err := ParamsFor(tier)
	if err != nil {
		return nil, err
	}
	return GenerateParams(ctx, tier, p, opts)
}

// GenerateParams builds a star field from explicit parameters. The four
// populations run concurrently on independent streams derived from
// opts.Seed and are merged as bulge, arms, halo, clusters.
func GenerateParams(ctx context.Context, tier Tier, p Params, opts Options) (*Dataset, error) {
	if opts.SkipArms {
		p.ArmStars = 0
	}
	if opts.SkipHalo {
		p.HaloStars = 0
	}
	if opts.SkipClusters {
		p.ClusterStars = 0
	}
	if err := p.Validate(); err != nil {
		return nil, &ConfigError{Tier: tier, Reason: err.Error(), Err: ErrInvalidParams}
	}

	parts := make([]*Dataset, len(populations))
	g, gctx := errgroup.WithContext(ctx)
	for k, pop := range populations {
		src := rand.New(rand.NewPCG(opts.Seed, uint64(k)+1))
		g.Go(func() error {
			d, err := pop.gen(gctx, p, src)
			if err != nil {
				return fmt.Errorf("generate %s: %w", pop.name, err)
			}
			parts[k] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out, err := Merge(parts...)
	if err != nil {
		return nil, err
	}
	out.Tier = tier
	if err := out.Validate(); err != nil {
		assertShape(err)
		out.Clamp()
	}
	return out, nil
}
