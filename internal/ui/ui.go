// Package ui provides the terminal user interface using Bubble Tea.
package ui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/litescript/ls-galaxy/internal/logging"
	"github.com/litescript/ls-galaxy/internal/settings"
	"github.com/litescript/ls-galaxy/internal/snapshot"
	"github.com/litescript/ls-galaxy/internal/starfield"
	"github.com/litescript/ls-galaxy/internal/state"
	"github.com/litescript/ls-galaxy/internal/version"
)

// Msg types for Bubble Tea
type (
	// FrameMsg triggers one rendered frame.
	FrameMsg time.Time

	// settingsSavedMsg reports the result of persisting the tier.
	settingsSavedMsg struct {
		tier starfield.Tier
		err  error
	}

	// snapshotDoneMsg reports the result of writing a WebP snapshot.
	snapshotDoneMsg struct {
		path string
		err  error
	}
)

// Options configures the root model.
type Options struct {
	FrameInterval time.Duration
	Rotate        bool
	SettingsPath  string
	Snapshot      snapshot.Options // camera and angle are taken from the view
	SnapshotPath  string
	Logger        *slog.Logger
}

// Model is the root Bubble Tea model.
type Model struct {
	// Dependencies
	state  *state.Manager
	opts   Options
	logger *slog.Logger

	// UI state
	width     int
	height    int
	ready     bool
	statusMsg string
	animTick  int

	// Sub-models
	galaxy GalaxyViewModel

	// Frame timing
	lastFrame  time.Time
	renderCost time.Duration // time spent rasterizing the last frame
	fps        float64       // smoothed achieved frame rate

	snapshot state.Snapshot
}

// New creates a new root UI model.
func New(stateMgr *state.Manager, opts Options) Model {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = time.Second / 30
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return Model{
		state:    stateMgr,
		opts:     opts,
		logger:   logger.With("component", "ui"),
		galaxy:   NewGalaxyViewModel(opts.Rotate),
		snapshot: stateMgr.Snapshot(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return frameCmd(m.opts.FrameInterval)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "[":
			cmds = append(cmds, m.requestTier(m.snapshot.Tier.Lower()))
		case "]":
			cmds = append(cmds, m.requestTier(m.snapshot.Tier.Higher()))

		case "a":
			m.state.SetAdaptive(!m.state.Adaptive())
			m.snapshot = m.state.Snapshot()
			if m.snapshot.Adaptive {
				m.statusMsg = "Adaptive quality on"
			} else {
				m.statusMsg = "Adaptive quality off"
			}

		case "p":
			if cmd := m.takeSnapshot(); cmd != nil {
				m.statusMsg = "Writing snapshot..."
				cmds = append(cmds, cmd)
			}

		default:
			var cmd tea.Cmd
			m.galaxy, cmd = m.galaxy.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		// Title takes 3 lines, footer 2
		m.galaxy = m.galaxy.SetSize(msg.Width, msg.Height-5)

	case FrameMsg:
		m = m.frame(time.Time(msg))
		cmds = append(cmds, frameCmd(m.opts.FrameInterval))

	case settingsSavedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Saving settings failed: %v", msg.err)
			m.logger.Warn("save settings failed", "operation", "settings", "error", msg.err)
		} else {
			m.statusMsg = fmt.Sprintf("Quality %s saved", msg.tier)
		}

	case snapshotDoneMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Snapshot failed: %v", msg.err)
			m.logger.Error("snapshot failed", "operation", "snapshot", "path", msg.path, "error", msg.err)
		} else {
			m.statusMsg = "Snapshot written to " + msg.path
		}
	}

	return m, tea.Batch(cmds...)
}

// frame runs one tick of the render loop. The quality controller is fed
// the rate the renderer could sustain, 1/cost of the previous frame, since
// the achieved rate is capped by the tick interval.
func (m Model) frame(now time.Time) Model {
	dt := m.opts.FrameInterval
	if !m.lastFrame.IsZero() {
		dt = now.Sub(m.lastFrame)
	}
	m.lastFrame = now
	m.animTick++

	if dt > 0 {
		inst := 1 / dt.Seconds()
		if m.fps == 0 {
			m.fps = inst
		} else {
			m.fps = 0.9*m.fps + 0.1*inst
		}
	}

	var capacity float64
	if m.renderCost > 0 {
		capacity = 1 / m.renderCost.Seconds()
	}

	speed := 0.0
	if p, err := starfield.ParamsFor(m.snapshot.Tier); err == nil {
		speed = p.RotationSpeed
	}
	m.galaxy = m.galaxy.Advance(dt.Seconds(), speed)

	info := m.state.Frame(capacity, m.galaxy.ViewerDistance())
	start := time.Now()
	m.galaxy = m.galaxy.Render(info)
	m.renderCost = time.Since(start)

	m.snapshot = m.state.Snapshot()
	return m
}

func (m *Model) requestTier(t starfield.Tier) tea.Cmd {
	if err := m.state.RequestTier(t); err != nil {
		m.statusMsg = fmt.Sprintf("Quality change failed: %v", err)
		return nil
	}
	m.snapshot = m.state.Snapshot()
	m.statusMsg = fmt.Sprintf("Quality %s requested", m.snapshot.Tier)
	return saveSettingsCmd(m.opts.SettingsPath, m.snapshot.Tier)
}

func (m *Model) takeSnapshot() tea.Cmd {
	pub := m.snapshot.Published
	if pub == nil {
		m.statusMsg = "Nothing to snapshot yet"
		return nil
	}
	path := m.opts.SnapshotPath
	if path == "" {
		path = fmt.Sprintf("galaxy-%s.webp", time.Now().Format("20060102-150405"))
	}
	opts := m.opts.Snapshot
	opts.Camera = m.galaxy.Camera()
	opts.Angle = m.galaxy.angle
	ds := pub.Dataset
	ranges := starfield.PopulationRanges(ds, m.snapshot.Tier)

	return func() tea.Msg {
		err := snapshot.WriteFile(path, ds, ranges, opts)
		return snapshotDoneMsg{path: path, err: err}
	}
}

func saveSettingsCmd(path string, tier starfield.Tier) tea.Cmd {
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		return settingsSavedMsg{tier: tier, err: settings.Save(path, tier)}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return m.renderHeader() + "\n" + m.galaxy.View() + "\n" + m.renderFooter()
}

func (m Model) renderHeader() string {
	title := "  LS-GALAXY"
	var b strings.Builder
	b.WriteString("\n")
	runes := []rune(title)
	for col, r := range runes {
		style := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(gradientColor(col, len(runes))))
		b.WriteString(style.Render(string(r)))
	}
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	b.WriteString(muted.Render(fmt.Sprintf("  Procedural Galaxy · v%s", version.Version)))
	return b.String()
}

// gradientStops run blue -> purple -> magenta -> pink.
var gradientStops = []colorful.Color{
	mustHex("#3B82F6"),
	mustHex("#8B5CF6"),
	mustHex("#D946EF"),
	mustHex("#EC4899"),
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// gradientColor returns a hex color for a position along the title.
func gradientColor(col, width int) string {
	if width <= 1 {
		return gradientStops[0].Hex()
	}
	t := float64(col) / float64(width-1) * float64(len(gradientStops)-1)
	i := min(int(t), len(gradientStops)-2)
	return gradientStops[i].BlendLab(gradientStops[i+1], t-float64(i)).Clamped().Hex()
}

func (m Model) renderFooter() string {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#E84A27"))
	accentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#7B2CBF"))

	spinnerFrames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	spinner := spinnerFrames[m.animTick%len(spinnerFrames)]

	snap := m.snapshot
	adaptive := "manual"
	if snap.Adaptive {
		adaptive = "auto"
	}
	metrics := fmt.Sprintf("%.0f fps | %.1f ms | tier %s (%s)",
		m.fps, float64(m.renderCost.Microseconds())/1000, snap.Tier, adaptive)

	var status string
	switch {
	case snap.LastError != nil:
		status = errorStyle.Render("ERROR: " + snap.LastError.Error())
	case snap.Pending:
		status = accentStyle.Render(spinner) + dimStyle.Render(" generating")
	case snap.Published != nil:
		status = dimStyle.Render(fmt.Sprintf("%d stars in %s", snap.Published.Dataset.Len(),
			snap.LastDuration.Round(time.Millisecond)))
	}

	help := dimStyle.Render("arrows: orbit | +/-: zoom | 1-5: presets | [/]: quality | a: auto | r: rotate | A/H/C/B: layers | p: snapshot | q: quit")

	footer := "  " + accentStyle.Render(metrics) + "  " + status + "\n  " + help
	if m.statusMsg != "" {
		footer += "  " + dimStyle.Render(m.statusMsg)
	}
	return footer
}

func frameCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return FrameMsg(t)
	})
}
