package snapshot

import (
	"image"
	"math"
)

// accumulator is a linear-light RGB buffer that stars are added into.
type accumulator struct {
	width  int
	height int
	rgb    []float32 // RGB interleaved, len = W*H*3
}

func newAccumulator(w, h int) *accumulator {
	return &accumulator{width: w, height: h, rgb: make([]float32, w*h*3)}
}

// add blends a color into pixel (x, y). Out-of-bounds pixels are ignored.
func (a *accumulator) add(x, y int, r, g, b, weight float32) {
	if x < 0 || y < 0 || x >= a.width || y >= a.height {
		return
	}
	i := (y*a.width + x) * 3
	a.rgb[i] += r * weight
	a.rgb[i+1] += g * weight
	a.rgb[i+2] += b * weight
}

// splat draws a soft disc of the given radius in pixels.
func (a *accumulator) splat(cx, cy, radius float64, r, g, b, intensity float32) {
	if radius < 0.5 {
		a.add(int(cx), int(cy), r, g, b, intensity)
		return
	}
	x0, x1 := int(math.Floor(cx-radius)), int(math.Ceil(cx+radius))
	y0, y1 := int(math.Floor(cy-radius)), int(math.Ceil(cy+radius))
	r2 := radius * radius
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			d2 := dx*dx + dy*dy
			if d2 > r2 {
				continue
			}
			falloff := float32(1 - d2/r2)
			a.add(x, y, r, g, b, intensity*falloff*falloff)
		}
	}
}

// image tone-maps the buffer into an opaque RGBA image. exposure scales
// the accumulated light before the x/(1+x) curve.
func (a *accumulator) image(exposure float32) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, a.width, a.height))
	for i, j := 0, 0; i < len(a.rgb); i, j = i+3, j+4 {
		img.Pix[j] = toneMap(a.rgb[i] * exposure)
		img.Pix[j+1] = toneMap(a.rgb[i+1] * exposure)
		img.Pix[j+2] = toneMap(a.rgb[i+2] * exposure)
		img.Pix[j+3] = 0xff
	}
	return img
}

func toneMap(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	return uint8(255*v/(1+v) + 0.5)
}
