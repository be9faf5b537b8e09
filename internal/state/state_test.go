package state

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/litescript/ls-galaxy/internal/dispatch"
	"github.com/litescript/ls-galaxy/internal/lod"
	"github.com/litescript/ls-galaxy/internal/starfield"
)

// bulgeDataset is a single-population dataset of n stars.
func bulgeDataset(n int, tier starfield.Tier) *starfield.Dataset {
	return &starfield.Dataset{
		Positions: make([]float32, 3*n),
		Colors:    make([]float32, 3*n),
		Sizes:     make([]float32, n),
		Flickers:  make([]float32, n),
		Tier:      tier,
		Segments:  []starfield.Segment{{Population: starfield.PopulationBulge, Offset: 0, Count: n}},
	}
}

type countingGenerator struct {
	n     int
	calls atomic.Int32
	fail  map[starfield.Tier]bool
}

func (g *countingGenerator) generate(ctx context.Context, tier starfield.Tier) (*starfield.Dataset, error) {
	g.calls.Add(1)
	if g.fail[tier] {
		return nil, errors.New("boom")
	}
	return bulgeDataset(g.n, tier), nil
}

func testConfig(initial starfield.Tier) Config {
	cfg := DefaultConfig()
	cfg.InitialTier = initial
	cfg.Quality.Cadence = 2
	cfg.Quality.HistorySize = 2
	cfg.Quality.PromoteAfter = 1
	return cfg
}

// newSyncManager builds a manager whose passes all run on the caller.
func newSyncManager(t *testing.T, cfg Config, gen *countingGenerator) *Manager {
	t.Helper()
	d := dispatch.New(
		dispatch.WithGenerator(gen.generate),
		dispatch.WithSyncThreshold(math.MaxInt),
	)
	m, err := NewManager(cfg, d)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func hasEvent(events []Event, typ EventType) bool {
	for _, e := range events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func TestNewManager_PublishesInitial(t *testing.T) {
	gen := &countingGenerator{n: 100}
	m := newSyncManager(t, testConfig(starfield.TierUltra), gen)

	if !m.HasData() {
		t.Fatal("HasData should be true after a synchronous initial pass")
	}
	snap := m.Snapshot()
	if snap.Tier != starfield.TierUltra || snap.Published.Tier != starfield.TierUltra {
		t.Errorf("tier = %v, published = %v; want ultra", snap.Tier, snap.Published.Tier)
	}
	if snap.Published.Impostor.Len() != 10 {
		t.Errorf("impostor Len() = %d, want 10", snap.Published.Impostor.Len())
	}
	got := eventTypes(snap.Events)
	if len(got) != 2 || got[0] != EventRequested || got[1] != EventGenerated {
		t.Errorf("events = %v, want [REQUESTED GENERATED]", got)
	}
}

func TestNewManager_InvalidSettings(t *testing.T) {
	cfg := testConfig(starfield.TierLow)
	cfg.Quality.Cadence = 0
	d := dispatch.New()
	defer d.Close()
	if _, err := NewManager(cfg, d); err == nil {
		t.Error("NewManager() accepted zero cadence")
	}
}

func TestFrame_DemotionUsesDrawRange(t *testing.T) {
	gen := &countingGenerator{n: 30000}
	m := newSyncManager(t, testConfig(starfield.TierMedium), gen)

	m.Frame(10, 0)
	info := m.Frame(10, 0)

	if !info.Evaluated || info.Decision.To != starfield.TierLow {
		t.Fatalf("decision = %+v, want demotion to low", info.Decision)
	}
	if info.Tier != starfield.TierLow || info.DataTier != starfield.TierMedium {
		t.Errorf("Tier/DataTier = %v/%v, want low/medium", info.Tier, info.DataTier)
	}
	if gen.calls.Load() != 1 {
		t.Errorf("generator calls = %d, want 1 (no regeneration on demotion)", gen.calls.Load())
	}
	// Low allows 20000 bulge stars.
	if info.Active != 20000 {
		t.Errorf("Active = %d, want 20000", info.Active)
	}
	if !hasEvent(m.Snapshot().Events, EventDrawRange) {
		t.Error("no DRAW_RANGE event recorded")
	}
}

func TestFrame_PromotionRequestsGeneration(t *testing.T) {
	gen := &countingGenerator{n: 100}
	m := newSyncManager(t, testConfig(starfield.TierLow), gen)

	m.Frame(120, 0)
	info := m.Frame(120, 0)

	if info.Tier != starfield.TierMedium {
		t.Fatalf("Tier = %v, want medium", info.Tier)
	}
	if info.DataTier != starfield.TierMedium {
		t.Errorf("DataTier = %v, want medium after synchronous pass", info.DataTier)
	}
	if gen.calls.Load() != 2 {
		t.Errorf("generator calls = %d, want 2", gen.calls.Load())
	}
}

func TestFrame_UpgradeWithinLiveDataset(t *testing.T) {
	gen := &countingGenerator{n: 100}
	m := newSyncManager(t, testConfig(starfield.TierHigh), gen)

	if err := m.RequestTier(starfield.TierLow); err != nil {
		t.Fatal(err)
	}
	if err := m.RequestTier(starfield.TierMedium); err != nil {
		t.Fatal(err)
	}
	if gen.calls.Load() != 1 {
		t.Errorf("generator calls = %d, want 1 (high dataset covers medium)", gen.calls.Load())
	}
	if m.Tier() != starfield.TierMedium {
		t.Errorf("Tier() = %v, want medium", m.Tier())
	}
}

func TestFrame_ImpostorAtDistance(t *testing.T) {
	gen := &countingGenerator{n: 30000}
	m := newSyncManager(t, testConfig(starfield.TierMedium), gen)

	info := m.Frame(0, 1000)
	if info.Selection.Tier.Kind != lod.KindImpostor {
		t.Fatalf("Kind = %v, want impostor", info.Selection.Tier.Kind)
	}
	if info.Dataset != m.Snapshot().Published.Impostor {
		t.Error("Dataset is not the published impostor")
	}
	if info.Active != 3000 {
		t.Errorf("Active = %d, want 3000", info.Active)
	}

	near := m.Frame(0, 10)
	if near.Selection.Tier.Kind != lod.KindInstanced || near.Dataset.Len() != 30000 {
		t.Errorf("near frame = kind %v, %d stars; want instanced, 30000", near.Selection.Tier.Kind, near.Dataset.Len())
	}
}

func TestFrame_LowFPSDegradesLOD(t *testing.T) {
	cfg := testConfig(starfield.TierLow)
	cfg.Adaptive = false
	gen := &countingGenerator{n: 100}
	m := newSyncManager(t, cfg, gen)

	info := m.Frame(10, 0)
	if !info.Selection.Degraded || info.Selection.Tier.Kind != lod.KindPointSprites {
		t.Errorf("selection = %+v, want degraded point sprites", info.Selection)
	}
	if info.Evaluated {
		t.Error("controller evaluated with adaptive quality off")
	}
	if info.Tier != starfield.TierLow {
		t.Errorf("Tier = %v, want low", info.Tier)
	}
}

func TestFrame_IgnoresInvalidFPS(t *testing.T) {
	gen := &countingGenerator{n: 100}
	m := newSyncManager(t, testConfig(starfield.TierLow), gen)

	for _, fps := range []float64{0, -5, math.NaN()} {
		m.Frame(fps, 0)
	}
	if n := m.Snapshot().Samples; n != 0 {
		t.Errorf("Samples = %d, want 0", n)
	}
}

func TestRequestTier_FailureKeepsPrevious(t *testing.T) {
	gen := &countingGenerator{n: 100, fail: map[starfield.Tier]bool{starfield.TierHigh: true}}
	m := newSyncManager(t, testConfig(starfield.TierMedium), gen)

	if err := m.RequestTier(starfield.TierHigh); err != nil {
		t.Fatalf("RequestTier() error = %v", err)
	}

	snap := m.Snapshot()
	if !errors.Is(snap.LastError, dispatch.ErrWorkerFailed) {
		t.Errorf("LastError = %v, want ErrWorkerFailed", snap.LastError)
	}
	if snap.Published.Tier != starfield.TierMedium {
		t.Errorf("published tier = %v, want medium", snap.Published.Tier)
	}
	if snap.Tier != starfield.TierMedium {
		t.Errorf("Tier = %v, want medium restored", snap.Tier)
	}
	if !hasEvent(snap.Events, EventFailed) {
		t.Error("no FAILED event recorded")
	}
}

func TestRequestTier_Invalid(t *testing.T) {
	m := newSyncManager(t, testConfig(starfield.TierLow), &countingGenerator{n: 10})
	if err := m.RequestTier(starfield.Tier(42)); !errors.Is(err, starfield.ErrUnknownTier) {
		t.Errorf("RequestTier(42) error = %v, want ErrUnknownTier", err)
	}
}

func TestManager_EventRing(t *testing.T) {
	cfg := testConfig(starfield.TierMedium)
	cfg.MaxEvents = 3
	m := newSyncManager(t, cfg, &countingGenerator{n: 10})

	for i := 0; i < 5; i++ {
		m.RequestTier(starfield.TierLow)
		m.RequestTier(starfield.TierMedium)
	}

	events := m.Snapshot().Events
	if len(events) != 3 {
		t.Fatalf("len(Events) = %d, want 3", len(events))
	}
	if last := events[2]; last.Type != EventDrawRange || last.To != "medium" {
		t.Errorf("last event = %+v, want DRAW_RANGE to medium", last)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Errorf("events out of order at %d", i)
		}
	}

	recent := m.RecentEvents(1)
	if len(recent) != 1 || recent[0] != events[2] {
		t.Errorf("RecentEvents(1) = %+v, want last event", recent)
	}
}

func TestManager_AwaitBackground(t *testing.T) {
	gen := &countingGenerator{n: 500}
	d := dispatch.New(dispatch.WithGenerator(gen.generate), dispatch.WithSyncThreshold(0))
	m, err := NewManager(testConfig(starfield.TierHigh), d)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Await(ctx); err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if !m.HasData() {
		t.Error("HasData should be true after Await")
	}
	if info := m.Frame(60, 0); info.Pending || info.Dataset.Len() != 500 {
		t.Errorf("frame after Await = pending %v, %d stars", info.Pending, info.Dataset.Len())
	}
}

func TestManager_ConcurrentSnapshots(t *testing.T) {
	m := newSyncManager(t, testConfig(starfield.TierLow), &countingGenerator{n: 100})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.Snapshot()
				_ = m.RecentEvents(5)
			}
		}()
	}
	for i := 0; i < 200; i++ {
		m.Frame(45, float64(i))
	}
	wg.Wait()

	if got := m.Snapshot().Frames; got != 200 {
		t.Errorf("Frames = %d, want 200", got)
	}
}

func TestSetAdaptive(t *testing.T) {
	m := newSyncManager(t, testConfig(starfield.TierMedium), &countingGenerator{n: 10})
	m.SetAdaptive(false)
	if m.Adaptive() {
		t.Fatal("Adaptive() = true after SetAdaptive(false)")
	}
	for i := 0; i < 10; i++ {
		m.Frame(5, 0)
	}
	if m.Tier() != starfield.TierMedium {
		t.Errorf("Tier() = %v, want medium with adaptive off", m.Tier())
	}
}

// A low-tier galaxy is generated on the caller, reduced ten to one and
// drawn as impostors from far away.
func TestEndToEnd_LowTier(t *testing.T) {
	if testing.Short() {
		t.Skip("generates 100000 stars")
	}
	d := dispatch.New(dispatch.WithOptions(starfield.Options{Seed: 1}))
	m, err := NewManager(testConfig(starfield.TierLow), d)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	snap := m.Snapshot()
	if snap.Published == nil {
		t.Fatal("low tier was not generated synchronously")
	}
	if n := snap.Published.Dataset.Len(); n != 100000 {
		t.Errorf("stars = %d, want 100000", n)
	}
	if n := snap.Published.Impostor.Len(); n != 10000 {
		t.Errorf("impostors = %d, want 10000", n)
	}

	info := m.Frame(55, 1000)
	if info.Selection.Tier.Kind != lod.KindImpostor {
		t.Errorf("Kind = %v, want impostor", info.Selection.Tier.Kind)
	}
	if info.Active != 10000 {
		t.Errorf("Active = %d, want 10000", info.Active)
	}
}

// tieredDataset has one segment per population sized as generated at tier.
func tieredDataset(t *testing.T, tier starfield.Tier) *starfield.Dataset {
	t.Helper()
	p, err := starfield.ParamsFor(tier)
	if err != nil {
		t.Fatal(err)
	}
	counts := []struct {
		population string
		n          int
	}{
		{starfield.PopulationBulge, p.BulgeStars},
		{starfield.PopulationArms, p.ArmStars},
		{starfield.PopulationHalo, p.HaloStars},
		{starfield.PopulationClusters, p.ClusterStars},
	}
	n := p.Total()
	d := bulgeDataset(n, tier)
	d.Segments = d.Segments[:0]
	offset := 0
	for _, c := range counts {
		d.Segments = append(d.Segments, starfield.Segment{Population: c.population, Offset: offset, Count: c.n})
		offset += c.n
	}
	return d
}

func TestFrame_ImpostorFollowsTier(t *testing.T) {
	gen := func(ctx context.Context, tier starfield.Tier) (*starfield.Dataset, error) {
		return tieredDataset(t, tier), nil
	}
	d := dispatch.New(dispatch.WithGenerator(gen), dispatch.WithSyncThreshold(math.MaxInt))
	m, err := NewManager(testConfig(starfield.TierMedium), d)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if info := m.Frame(40, 1000); info.Active != 50000 {
		t.Errorf("medium impostor Active = %d, want 50000", info.Active)
	}

	if err := m.RequestTier(starfield.TierLow); err != nil {
		t.Fatal(err)
	}
	info := m.Frame(40, 1000)
	if info.Selection.Tier.Kind != lod.KindImpostor {
		t.Fatalf("Kind = %v, want impostor", info.Selection.Tier.Kind)
	}
	if info.Tier != starfield.TierLow || info.DataTier != starfield.TierMedium {
		t.Errorf("Tier/DataTier = %v/%v, want low/medium", info.Tier, info.DataTier)
	}
	// A tenth of the 100000 stars low draws from the medium dataset.
	if info.Active != 10000 {
		t.Errorf("low impostor Active = %d, want 10000", info.Active)
	}
	if len(info.Ranges) != 4 {
		t.Fatalf("len(Ranges) = %d, want one per population", len(info.Ranges))
	}
	for i, r := range info.Ranges {
		seg := info.Dataset.Segments[i]
		if r.Start != seg.Offset || r.End() > seg.Offset+seg.Count {
			t.Errorf("range %d = %+v outside impostor segment %+v", i, r, seg)
		}
	}
}

func TestRequestTier_BackingOffCancelsPending(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gen := func(ctx context.Context, tier starfield.Tier) (*starfield.Dataset, error) {
		if tier == starfield.TierUltra {
			close(started)
			<-release
		}
		return bulgeDataset(100, tier), nil
	}
	// Low runs on the caller, ultra on the worker.
	d := dispatch.New(dispatch.WithGenerator(gen), dispatch.WithSyncThreshold(200000))
	m, err := NewManager(testConfig(starfield.TierLow), d)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if err := m.RequestTier(starfield.TierUltra); err != nil {
		t.Fatal(err)
	}
	<-started
	if err := m.RequestTier(starfield.TierLow); err != nil {
		t.Fatal(err)
	}
	if m.Snapshot().Pending {
		t.Error("ultra pass still pending after backing off to low")
	}
	close(release)

	deadline := time.Now().Add(5 * time.Second)
	for m.Snapshot().StaleCount == 0 && time.Now().Before(deadline) {
		m.Frame(0, 0)
		time.Sleep(time.Millisecond)
	}

	snap := m.Snapshot()
	if snap.StaleCount != 1 {
		t.Errorf("StaleCount = %d, want 1", snap.StaleCount)
	}
	if snap.Tier != starfield.TierLow || snap.Published.Tier != starfield.TierLow {
		t.Errorf("tier = %v, published = %v; want low/low", snap.Tier, snap.Published.Tier)
	}
	if !hasEvent(snap.Events, EventCancelled) {
		t.Errorf("events = %v, want a CANCELLED event", eventTypes(snap.Events))
	}
}
