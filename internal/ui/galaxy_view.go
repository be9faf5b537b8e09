package ui

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/litescript/ls-galaxy/internal/astro"
	"github.com/litescript/ls-galaxy/internal/lod"
	"github.com/litescript/ls-galaxy/internal/starfield"
	"github.com/litescript/ls-galaxy/internal/state"
)

const (
	// Camera controls
	orbitStepDeg   = 5.0
	zoomInFactor   = 0.8
	zoomOutFactor  = 1.25
	presetDuration = 1.2 // seconds

	// Terminal cells are roughly twice as tall as they are wide.
	cellAspect = 2.0

	// Per-cell light at which a cell is half way up the glyph ramp.
	cellHalfLight = 1.5

	// Flicker modulation depth
	flickerDepth = 0.15
)

// glyphRamp orders glyphs from faintest to brightest.
var glyphRamp = []rune{'.', '·', '•', '✶', '✸'}

// GalaxyViewModel renders the star field through an orbit camera.
type GalaxyViewModel struct {
	width  int
	height int

	camera     astro.Camera
	preset     string
	transition *astro.Transition

	rotate  bool
	angle   float64 // galaxy rotation about Y, radians
	elapsed float64 // seconds, drives flicker

	hidden map[string]bool // populations not drawn

	info  state.FrameInfo
	lines []string
	drawn int
}

// NewGalaxyViewModel creates a galaxy view at the default camera.
func NewGalaxyViewModel(rotate bool) GalaxyViewModel {
	presets := astro.Presets()
	return GalaxyViewModel{
		camera: astro.DefaultCamera(),
		preset: presets[len(presets)-1].Name,
		rotate: rotate,
		hidden: map[string]bool{},
	}
}

// SetSize updates the viewport size.
func (m GalaxyViewModel) SetSize(width, height int) GalaxyViewModel {
	m.width = width
	m.height = height
	return m
}

// Camera returns the current camera.
func (m GalaxyViewModel) Camera() astro.Camera {
	return m.camera
}

// ViewerDistance is the distance from the eye to the galactic centre.
func (m GalaxyViewModel) ViewerDistance() float64 {
	return r3.Norm(m.camera.Position())
}

// Drawn returns how many stars landed on the last canvas.
func (m GalaxyViewModel) Drawn() int {
	return m.drawn
}

// Update handles camera and display keys.
func (m GalaxyViewModel) Update(msg tea.Msg) (GalaxyViewModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "left", "h":
		m = m.orbit(-orbitStepDeg, 0)
	case "right", "l":
		m = m.orbit(orbitStepDeg, 0)
	case "up", "k":
		m = m.orbit(0, orbitStepDeg)
	case "down", "j":
		m = m.orbit(0, -orbitStepDeg)
	case "+", "=":
		m = m.zoom(zoomInFactor)
	case "-", "_":
		m = m.zoom(zoomOutFactor)
	case "r":
		m.rotate = !m.rotate
	case "A":
		m = m.toggle(starfield.PopulationArms)
	case "H":
		m = m.toggle(starfield.PopulationHalo)
	case "C":
		m = m.toggle(starfield.PopulationClusters)
	case "B":
		m = m.toggle(starfield.PopulationBulge)
	default:
		for _, p := range astro.Presets() {
			if key.String() == p.Key {
				m = m.startPreset(p)
				break
			}
		}
	}
	return m, nil
}

func (m GalaxyViewModel) orbit(dAz, dEl float64) GalaxyViewModel {
	m.transition = nil
	m.camera = m.camera.Orbit(dAz, dEl)
	m.preset = ""
	return m
}

func (m GalaxyViewModel) zoom(factor float64) GalaxyViewModel {
	m.transition = nil
	m.camera = m.camera.Zoom(factor)
	m.preset = ""
	return m
}

func (m GalaxyViewModel) startPreset(p astro.Preset) GalaxyViewModel {
	m.transition = astro.NewTransition(m.camera, p.Camera, presetDuration)
	m.preset = p.Name
	return m
}

// toggle flips a population's visibility. The map is copied so earlier
// model values keep their own state.
func (m GalaxyViewModel) toggle(population string) GalaxyViewModel {
	hidden := make(map[string]bool, len(m.hidden)+1)
	for k, v := range m.hidden {
		hidden[k] = v
	}
	hidden[population] = !hidden[population]
	m.hidden = hidden
	return m
}

// Advance moves time forward by dt seconds: camera animation, galaxy
// rotation and flicker phase.
func (m GalaxyViewModel) Advance(dt, rotationSpeed float64) GalaxyViewModel {
	if !(dt > 0) {
		return m
	}
	m.elapsed += dt
	if m.transition != nil {
		cam, done := m.transition.Step(dt)
		m.camera = cam
		if done {
			m.transition = nil
		}
	}
	if m.rotate {
		m.angle = math.Mod(m.angle+rotationSpeed*dt, 2*math.Pi)
	}
	return m
}

// Render rasterizes the frame into the model. It is called from Update so
// that View stays cheap and the cost can be measured.
func (m GalaxyViewModel) Render(info state.FrameInfo) GalaxyViewModel {
	m.info = info
	w, h := m.canvasSize()
	if w <= 0 || h <= 0 {
		m.lines, m.drawn = nil, 0
		return m
	}
	c := newCanvas(w, h)
	m.drawn = c.plot(info, m.camera, m.angle, m.elapsed, m.hidden)
	m.lines = c.lines()
	return m
}

func (m GalaxyViewModel) canvasSize() (int, int) {
	return m.width, m.height - 2
}

// View renders the galaxy view.
func (m GalaxyViewModel) View() string {
	if m.width < 20 || m.height < 6 {
		return "Galaxy view requires larger terminal"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if len(m.lines) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("60")).Render("  Generating galaxy..."))
	} else {
		b.WriteString(strings.Join(m.lines, "\n"))
	}
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	return b.String()
}

func (m GalaxyViewModel) renderHeader() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("135"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	accentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#d0c8ff"))

	preset := m.preset
	if preset == "" {
		preset = "Free"
	}
	camera := dimStyle.Render(fmt.Sprintf("Az:%.0f° El:%.0f° Dist:%.0f",
		m.camera.AzimuthDeg, m.camera.ElevationDeg, m.ViewerDistance()))

	var shown []string
	for _, p := range []string{starfield.PopulationBulge, starfield.PopulationArms, starfield.PopulationHalo, starfield.PopulationClusters} {
		if m.hidden[p] {
			shown = append(shown, dimStyle.Render(p))
		} else {
			shown = append(shown, accentStyle.Render(p))
		}
	}

	rot := dimStyle.Render("rotation: off")
	if m.rotate {
		rot = accentStyle.Render("rotation: on")
	}

	return fmt.Sprintf("%s | %s | %s | %s | %s",
		titleStyle.Render("Galaxy"), accentStyle.Render(preset), camera, strings.Join(shown, " "), rot)
}

func (m GalaxyViewModel) renderStatus() string {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	accentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229"))

	sel := m.info.Selection
	lodStr := fmt.Sprintf("LOD %d %s/%s", sel.Index, sel.Tier.Kind, sel.Tier.Shader)
	if sel.Degraded {
		lodStr += " (degraded)"
	}
	source := "primary"
	if sel.Tier.Kind == lod.KindImpostor {
		source = "impostor"
	}

	line := fmt.Sprintf(">>> %s | %s %d stars | on screen %d",
		lodStr, source, m.info.Active, m.drawn)
	return accentStyle.Render(line) + "  " + dimStyle.Render(fmt.Sprintf("data: %s", m.info.DataTier))
}

// canvas accumulates light per terminal cell.
type canvas struct {
	width, height int
	light         []float64 // weighted brightness per cell
	rgb           []float64 // weighted color sums, 3 per cell
}

func newCanvas(w, h int) *canvas {
	return &canvas{
		width:  w,
		height: h,
		light:  make([]float64, w*h),
		rgb:    make([]float64, 3*w*h),
	}
}

// plot projects the frame's stars and returns how many hit the canvas.
func (c *canvas) plot(info state.FrameInfo, cam astro.Camera, angle, elapsed float64, hidden map[string]bool) int {
	d := info.Dataset
	if d == nil {
		return 0
	}
	proj := astro.NewProjector(cam, float64(c.width)/(float64(c.height)*cellAspect))
	sin, cos := math.Sincos(angle)
	halfW, halfH := float64(c.width)/2, float64(c.height)/2
	// Ranges line up with segments for both the primary and impostor sets.
	bySegment := len(info.Ranges) == len(d.Segments)

	drawn := 0
	for ri, r := range info.Ranges {
		if bySegment && hidden[d.Segments[ri].Population] {
			continue
		}
		end := min(r.End(), d.Len())
		for i := max(r.Start, 0); i < end; i++ {
			x := float64(d.Positions[3*i])
			y := float64(d.Positions[3*i+1])
			z := float64(d.Positions[3*i+2])
			x, z = x*cos-z*sin, x*sin+z*cos

			pt, ok := proj.ProjectXYZ(x, y, z)
			if !ok {
				continue
			}
			cx := int((pt.X + 1) * halfW)
			cy := int((1 - pt.Y) * halfH)
			if cx < 0 || cy < 0 || cx >= c.width || cy >= c.height {
				continue
			}

			twinkle := 1 + flickerDepth*math.Sin(elapsed*float64(d.Flickers[i])+float64(i))
			w := float64(d.Sizes[i]) * twinkle
			k := cy*c.width + cx
			c.light[k] += w
			c.rgb[3*k] += w * float64(d.Colors[3*i])
			c.rgb[3*k+1] += w * float64(d.Colors[3*i+1])
			c.rgb[3*k+2] += w * float64(d.Colors[3*i+2])
			drawn++
		}
	}
	return drawn
}

// cell returns the glyph and color for cell k. ok is false for empty cells.
func (c *canvas) cell(k int) (rune, string, bool) {
	l := c.light[k]
	if !(l > 0) {
		return ' ', "", false
	}
	v := l / (l + cellHalfLight)
	idx := min(int(v*float64(len(glyphRamp))), len(glyphRamp)-1)

	col := colorful.Color{
		R: quantize(c.rgb[3*k] / l * (0.4 + 0.6*v)),
		G: quantize(c.rgb[3*k+1] / l * (0.4 + 0.6*v)),
		B: quantize(c.rgb[3*k+2] / l * (0.4 + 0.6*v)),
	}
	return glyphRamp[idx], col.Clamped().Hex(), true
}

// quantize snaps a channel to 1/16 steps so neighbouring cells share styles.
func quantize(v float64) float64 {
	return math.Round(v*16) / 16
}

// lines renders the canvas, one styled string per row. Runs of cells with
// the same color share one style.
func (c *canvas) lines() []string {
	out := make([]string, c.height)
	var row strings.Builder
	var run []rune
	runColor := ""

	flush := func() {
		if len(run) == 0 {
			return
		}
		if runColor == "" {
			row.WriteString(string(run))
		} else {
			row.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(runColor)).Render(string(run)))
		}
		run = run[:0]
	}

	for y := 0; y < c.height; y++ {
		row.Reset()
		runColor = ""
		for x := 0; x < c.width; x++ {
			glyph, color, _ := c.cell(y*c.width + x)
			if color != runColor {
				flush()
				runColor = color
			}
			run = append(run, glyph)
		}
		flush()
		out[y] = row.String()
	}
	return out
}
