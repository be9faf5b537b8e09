package astro

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Camera limits.
const (
	MinDistance     = 5.0
	MaxDistance     = 5000.0
	maxElevationDeg = 89.5
	nearPlane       = 0.1
)

// Camera is an orbit camera looking at Target from a point on a sphere.
// Azimuth and elevation use the galactic longitude and latitude
// conventions of GalacticCoord.
type Camera struct {
	Target       r3.Vec
	Distance     float64
	AzimuthDeg   float64
	ElevationDeg float64
	FOVDeg       float64
}

// DefaultCamera returns the wide view of the whole galaxy.
func DefaultCamera() Camera {
	return Presets()[len(Presets())-1].Camera
}

// Position returns the eye position.
func (c Camera) Position() r3.Vec {
	offset := GalacticCoord{R: c.Distance, LDeg: c.AzimuthDeg, BDeg: c.ElevationDeg}.ToCartesian()
	return r3.Add(c.Target, offset)
}

// Orbit moves the eye around the target by the given angles in degrees.
func (c Camera) Orbit(dAzDeg, dElDeg float64) Camera {
	c.AzimuthDeg = normalizeDegrees(c.AzimuthDeg + dAzDeg)
	c.ElevationDeg = clamp(c.ElevationDeg+dElDeg, -maxElevationDeg, maxElevationDeg)
	return c
}

// Zoom scales the eye distance by factor, within [MinDistance, MaxDistance].
func (c Camera) Zoom(factor float64) Camera {
	if !(factor > 0) {
		return c
	}
	c.Distance = clamp(c.Distance*factor, MinDistance, MaxDistance)
	return c
}

// CameraFromPosition builds an orbit camera that sits at pos looking at target.
func CameraFromPosition(pos, target r3.Vec, fovDeg float64) (Camera, error) {
	g, err := FromCartesian(r3.Sub(pos, target))
	if err != nil {
		return Camera{}, fmt.Errorf("camera at its target: %w", err)
	}
	return Camera{
		Target:       target,
		Distance:     clamp(g.R, MinDistance, MaxDistance),
		AzimuthDeg:   g.LDeg,
		ElevationDeg: clamp(g.BDeg, -maxElevationDeg, maxElevationDeg),
		FOVDeg:       fovDeg,
	}, nil
}

// Preset is a named camera position.
type Preset struct {
	Name   string
	Key    string
	Camera Camera
}

type presetDef struct {
	name, key   string
	pos, target r3.Vec
	fov         float64
}

var presetDefs = []presetDef{
	{"Top View", "1", r3.Vec{Y: 400}, r3.Vec{}, 60},
	{"Edge View", "2", r3.Vec{X: 400, Y: 20}, r3.Vec{}, 50},
	{"Core Close-up", "3", r3.Vec{X: 50, Y: 30, Z: 50}, r3.Vec{}, 45},
	{"Arm Flythrough", "4", r3.Vec{X: 100, Y: 15, Z: 80}, r3.Vec{X: 150, Z: 120}, 70},
	{"Wide Galaxy", "5", r3.Vec{X: 150, Y: 200, Z: 300}, r3.Vec{}, 55},
}

// Presets returns the standard viewpoints. The last one is the default.
func Presets() []Preset {
	out := make([]Preset, 0, len(presetDefs))
	for _, p := range presetDefs {
		cam, err := CameraFromPosition(p.pos, p.target, p.fov)
		if err != nil {
			continue
		}
		out = append(out, Preset{Name: p.name, Key: p.key, Camera: cam})
	}
	return out
}

// Transition animates between two cameras with cubic easing.
type Transition struct {
	From, To Camera
	Duration float64 // seconds
	elapsed  float64
}

// NewTransition starts an animation from one camera to another.
func NewTransition(from, to Camera, seconds float64) *Transition {
	return &Transition{From: from, To: to, Duration: seconds}
}

// Step advances the animation by dt seconds and returns the interpolated
// camera. done is true once the target camera is reached.
func (t *Transition) Step(dt float64) (cam Camera, done bool) {
	t.elapsed += dt
	if t.Duration <= 0 || t.elapsed >= t.Duration {
		return t.To, true
	}
	k := easeInOutCubic(t.elapsed / t.Duration)
	return Camera{
		Target:       r3.Add(t.From.Target, r3.Scale(k, r3.Sub(t.To.Target, t.From.Target))),
		Distance:     lerp(t.From.Distance, t.To.Distance, k),
		AzimuthDeg:   lerpAngle(t.From.AzimuthDeg, t.To.AzimuthDeg, k),
		ElevationDeg: lerp(t.From.ElevationDeg, t.To.ElevationDeg, k),
		FOVDeg:       lerp(t.From.FOVDeg, t.To.FOVDeg, k),
	}, false
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// lerpAngle interpolates degrees along the shorter arc.
func lerpAngle(a, b, t float64) float64 {
	diff := b - a
	for diff > 180 {
		diff -= 360
	}
	for diff < -180 {
		diff += 360
	}
	return normalizeDegrees(a + diff*t)
}

// ProjectedPoint is a point in normalized screen space.
type ProjectedPoint struct {
	X     float64 // -1 (left) to 1 (right) at the edge of the field of view
	Y     float64 // -1 (bottom) to 1 (top)
	Depth float64 // distance along the view direction
}

// Projector is a perspective projection precomputed for one camera.
type Projector struct {
	eye       r3.Vec
	forward   r3.Vec
	right     r3.Vec
	up        r3.Vec
	invTan    float64
	invAspect float64
}

// NewProjector prepares a projection for c. aspect is width over height
// of the viewport in the same units the caller will scale X and Y by.
func NewProjector(c Camera, aspect float64) Projector {
	eye := c.Position()
	forward := r3.Unit(r3.Sub(c.Target, eye))
	worldUp := r3.Vec{Y: 1}
	if math.Abs(r3.Dot(forward, worldUp)) > 0.999 {
		worldUp = r3.Vec{Z: -1}
	}
	right := r3.Unit(r3.Cross(forward, worldUp))
	up := r3.Cross(right, forward)
	if !(aspect > 0) {
		aspect = 1
	}
	return Projector{
		eye:       eye,
		forward:   forward,
		right:     right,
		up:        up,
		invTan:    1 / math.Tan(degToRad(c.FOVDeg)/2),
		invAspect: 1 / aspect,
	}
}

// Project maps a scene position to screen space. ok is false for points
// behind the near plane.
func (p Projector) Project(v r3.Vec) (ProjectedPoint, bool) {
	return p.ProjectXYZ(v.X, v.Y, v.Z)
}

// ProjectXYZ is Project without constructing a vector.
func (p Projector) ProjectXYZ(x, y, z float64) (ProjectedPoint, bool) {
	dx, dy, dz := x-p.eye.X, y-p.eye.Y, z-p.eye.Z
	depth := dx*p.forward.X + dy*p.forward.Y + dz*p.forward.Z
	if depth < nearPlane {
		return ProjectedPoint{}, false
	}
	sx := dx*p.right.X + dy*p.right.Y + dz*p.right.Z
	sy := dx*p.up.X + dy*p.up.Y + dz*p.up.Z
	return ProjectedPoint{
		X:     sx * p.invTan * p.invAspect / depth,
		Y:     sy * p.invTan / depth,
		Depth: depth,
	}, true
}

// Eye returns the eye position of the projection.
func (p Projector) Eye() r3.Vec {
	return p.eye
}
