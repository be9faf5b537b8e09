package ui

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/litescript/ls-galaxy/internal/dispatch"
	"github.com/litescript/ls-galaxy/internal/settings"
	"github.com/litescript/ls-galaxy/internal/starfield"
	"github.com/litescript/ls-galaxy/internal/state"
)

func newTestManager(t *testing.T, initial starfield.Tier) *state.Manager {
	t.Helper()
	gen := func(ctx context.Context, tier starfield.Tier) (*starfield.Dataset, error) {
		d := originStars(20, 20)
		d.Tier = tier
		return d, nil
	}
	d := dispatch.New(dispatch.WithGenerator(gen), dispatch.WithSyncThreshold(math.MaxInt))
	cfg := state.DefaultConfig()
	cfg.InitialTier = initial
	cfg.Adaptive = false
	m, err := state.NewManager(cfg, d)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

// collect runs cmd and any batched commands it returns.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func findMsg[T tea.Msg](cmd tea.Cmd) (T, bool) {
	for _, msg := range collect(cmd) {
		if m, ok := msg.(T); ok {
			return m, true
		}
	}
	var zero T
	return zero, false
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return next.(Model)
}

func TestModel_InitializingView(t *testing.T) {
	m := New(newTestManager(t, starfield.TierLow), Options{})
	if got := m.View(); got != "Initializing..." {
		t.Errorf("View() = %q before the window size is known", got)
	}
	if m.Init() == nil {
		t.Error("Init() returned no frame command")
	}
}

func TestModel_Frame(t *testing.T) {
	m := sized(New(newTestManager(t, starfield.TierLow), Options{FrameInterval: 20 * time.Millisecond}))

	now := time.Now()
	next, cmd := m.Update(FrameMsg(now))
	if cmd == nil {
		t.Fatal("frame did not schedule the next frame")
	}
	next, _ = next.(Model).Update(FrameMsg(now.Add(20 * time.Millisecond)))
	m = next.(Model)

	if m.galaxy.Drawn() != 40 {
		t.Errorf("Drawn() = %d, want 40", m.galaxy.Drawn())
	}
	if math.Abs(m.fps-50) > 1 {
		t.Errorf("fps = %v, want about 50", m.fps)
	}
	if m.snapshot.Frames != 2 {
		t.Errorf("Frames = %d, want 2", m.snapshot.Frames)
	}

	view := m.View()
	for _, want := range []string{"LS-GALAXY", "tier low", "40 stars"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestModel_QualityKeysPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	m := sized(New(newTestManager(t, starfield.TierLow), Options{SettingsPath: path}))

	next, cmd := m.Update(keyMsg("]"))
	m = next.(Model)
	if m.snapshot.Tier != starfield.TierMedium {
		t.Fatalf("tier = %v after ], want medium", m.snapshot.Tier)
	}
	saved, ok := findMsg[settingsSavedMsg](cmd)
	if !ok || saved.err != nil {
		t.Fatalf("save message = %#v, found %v", saved, ok)
	}

	tier, found, err := settings.Load(path)
	if err != nil || !found || tier != starfield.TierMedium {
		t.Errorf("settings.Load() = %v, %v, %v; want medium", tier, found, err)
	}

	next, _ = m.Update(saved)
	if !strings.Contains(next.(Model).statusMsg, "medium saved") {
		t.Errorf("statusMsg = %q", next.(Model).statusMsg)
	}

	next, _ = next.(Model).Update(keyMsg("["))
	if got := next.(Model).snapshot.Tier; got != starfield.TierLow {
		t.Errorf("tier = %v after [, want low", got)
	}
}

func TestModel_ToggleAdaptive(t *testing.T) {
	mgr := newTestManager(t, starfield.TierLow)
	m := sized(New(mgr, Options{}))

	next, _ := m.Update(keyMsg("a"))
	if !mgr.Adaptive() {
		t.Error("adaptive still off after a")
	}
	if !strings.Contains(next.(Model).statusMsg, "on") {
		t.Errorf("statusMsg = %q", next.(Model).statusMsg)
	}
}

func TestModel_Snapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.webp")
	opts := Options{SnapshotPath: path}
	opts.Snapshot.Width, opts.Snapshot.Height, opts.Snapshot.Scale = 32, 18, 1
	m := sized(New(newTestManager(t, starfield.TierLow), opts))

	_, cmd := m.Update(keyMsg("p"))
	done, ok := findMsg[snapshotDoneMsg](cmd)
	if !ok || done.err != nil || done.path != path {
		t.Errorf("snapshot message = %#v, found %v", done, ok)
	}
}

func TestModel_Quit(t *testing.T) {
	m := sized(New(newTestManager(t, starfield.TierLow), Options{}))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if _, ok := findMsg[tea.QuitMsg](cmd); !ok {
		t.Error("ctrl+c did not quit")
	}
}

func TestGradientColor(t *testing.T) {
	first := gradientColor(0, 10)
	last := gradientColor(9, 10)
	if len(first) != 7 || first[0] != '#' {
		t.Errorf("gradientColor(0) = %q, want #rrggbb", first)
	}
	if first == last {
		t.Error("gradient has no variation")
	}
	if got := gradientColor(0, 1); got != gradientStops[0].Hex() {
		t.Errorf("gradientColor(0, 1) = %q, want first stop", got)
	}
}
