// Package astro provides galactic coordinate transformations and the orbit
// camera used to view the star field.
package astro

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrOrigin is returned when a direction is requested for the zero vector.
var ErrOrigin = errors.New("point is at the origin")

// GalacticCoord is a point in galactocentric spherical coordinates.
//
// The galactic plane is the XZ plane with Y up. Longitude is measured from
// +X toward +Z; latitude is the angle above the plane.
type GalacticCoord struct {
	R    float64 // distance from the centre in scene units
	LDeg float64 // longitude in degrees (0-360)
	BDeg float64 // latitude in degrees (-90 to +90)
}

// ToCartesian converts galactic coordinates to a scene position.
func (g GalacticCoord) ToCartesian() r3.Vec {
	l := degToRad(g.LDeg)
	b := degToRad(g.BDeg)
	return r3.Vec{
		X: g.R * math.Cos(b) * math.Cos(l),
		Y: g.R * math.Sin(b),
		Z: g.R * math.Cos(b) * math.Sin(l),
	}
}

// FromCartesian converts a scene position to galactic coordinates.
// The origin has no direction and returns ErrOrigin.
func FromCartesian(v r3.Vec) (GalacticCoord, error) {
	r := r3.Norm(v)
	if r == 0 {
		return GalacticCoord{}, ErrOrigin
	}
	b := math.Asin(clamp(v.Y/r, -1, 1))
	l := math.Atan2(v.Z, v.X)
	return GalacticCoord{
		R:    r,
		LDeg: normalizeDegrees(radToDeg(l)),
		BDeg: radToDeg(b),
	}, nil
}

// PlanarRadius returns the distance of v from the galactic rotation axis.
func PlanarRadius(v r3.Vec) float64 {
	return math.Hypot(v.X, v.Z)
}

// RotateY rotates v about the galactic axis by angle radians.
func RotateY(v r3.Vec, angle float64) r3.Vec {
	return r3.NewRotation(angle, r3.Vec{Y: 1}).Rotate(v)
}

// normalizeDegrees wraps an angle to [0, 360).
func normalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// degToRad converts degrees to radians.
func degToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// radToDeg converts radians to degrees.
func radToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
