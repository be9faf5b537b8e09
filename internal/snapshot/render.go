// Package snapshot renders a star dataset to a still image and exports
// dataset statistics.
package snapshot

import (
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"

	"github.com/litescript/ls-galaxy/internal/astro"
	"github.com/litescript/ls-galaxy/internal/starfield"
)

// ErrSize is returned for non-positive image dimensions.
var ErrSize = errors.New("invalid snapshot size")

// Options controls a snapshot render.
type Options struct {
	Width    int
	Height   int
	Scale    int // supersampling factor, 1 disables
	Camera   astro.Camera
	Exposure float32 // 0 selects a default
	Angle    float64 // galaxy rotation about the Y axis, radians
}

const defaultExposure = 0.6

// Render draws the stars of d selected by ranges. A nil ranges slice draws
// every star. The result is Width×Height.
func Render(d *starfield.Dataset, ranges []starfield.Range, opts Options) (*image.RGBA, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrSize, opts.Width, opts.Height)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	scale := max(opts.Scale, 1)
	exposure := opts.Exposure
	if !(exposure > 0) {
		exposure = defaultExposure
	}
	if ranges == nil {
		ranges = []starfield.Range{{Start: 0, Count: d.Len()}}
	}

	w, h := opts.Width*scale, opts.Height*scale
	acc := newAccumulator(w, h)
	proj := astro.NewProjector(opts.Camera, float64(w)/float64(h))
	sin, cos := math.Sincos(opts.Angle)
	halfW, halfH := float64(w)/2, float64(h)/2
	// Pixel radius of a size-1 star one unit from the eye.
	pxPerUnit := halfH * float64(scale) / 4

	for _, r := range ranges {
		end := min(r.End(), d.Len())
		for i := max(r.Start, 0); i < end; i++ {
			x := float64(d.Positions[3*i])
			y := float64(d.Positions[3*i+1])
			z := float64(d.Positions[3*i+2])
			if opts.Angle != 0 {
				x, z = x*cos-z*sin, x*sin+z*cos
			}
			pt, ok := proj.ProjectXYZ(x, y, z)
			if !ok || pt.X < -1.05 || pt.X > 1.05 || pt.Y < -1.05 || pt.Y > 1.05 {
				continue
			}
			sx := (pt.X + 1) * halfW
			sy := (1 - pt.Y) * halfH
			size := float64(d.Sizes[i])
			radius := size * pxPerUnit / pt.Depth
			acc.splat(sx, sy, radius, d.Colors[3*i], d.Colors[3*i+1], d.Colors[3*i+2], float32(size))
		}
	}

	full := acc.image(exposure)
	if scale == 1 {
		return full, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), full, full.Bounds(), draw.Src, nil)
	return dst, nil
}

// Encode writes img as lossless WebP.
func Encode(w io.Writer, img image.Image) error {
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("webp encode: %w", err)
	}
	return nil
}

// WriteFile renders and encodes to path, creating parent directories.
func WriteFile(path string, d *starfield.Dataset, ranges []starfield.Range, opts Options) error {
	img, err := Render(d, ranges, opts)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
