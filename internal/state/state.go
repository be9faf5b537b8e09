// Package state provides thread-safe state management for the render loop.
//
// A Manager ties the quality controller, the generation dispatcher and the
// LOD table together. The render loop calls Frame once per frame; everything
// else reads Snapshot.
package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/litescript/ls-galaxy/internal/dispatch"
	"github.com/litescript/ls-galaxy/internal/lod"
	"github.com/litescript/ls-galaxy/internal/logging"
	"github.com/litescript/ls-galaxy/internal/quality"
	"github.com/litescript/ls-galaxy/internal/starfield"
)

// EventType represents the type of pipeline event.
type EventType string

const (
	EventTierChanged EventType = "TIER_CHANGED"
	EventDrawRange   EventType = "DRAW_RANGE"
	EventRequested   EventType = "REQUESTED"
	EventGenerated   EventType = "GENERATED"
	EventStale       EventType = "STALE"
	EventFallback    EventType = "FALLBACK"
	EventFailed      EventType = "FAILED"
	EventCancelled   EventType = "CANCELLED"
)

// Event represents a change in the generation pipeline.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Epoch     uint64    `json:"epoch,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Stars     int       `json:"stars,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Config holds configuration for the state manager.
type Config struct {
	InitialTier starfield.Tier
	Adaptive    bool
	Quality     quality.Settings
	LOD         *lod.Table
	MaxEvents   int
	Logger      *slog.Logger
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		InitialTier: starfield.TierMedium,
		Adaptive:    true,
		Quality:     quality.DefaultSettings(),
		LOD:         lod.DefaultTable(),
		MaxEvents:   50,
	}
}

// FrameInfo tells the renderer what to draw this frame.
type FrameInfo struct {
	Tier      starfield.Tier // active quality tier
	DataTier  starfield.Tier // tier the drawn dataset was generated at
	Selection lod.Selection
	Dataset   *starfield.Dataset // nil until the first pass is published
	Ranges    []starfield.Range
	Active    int // stars inside Ranges
	Decision  quality.Decision
	Evaluated bool // the controller ran this frame
	Pending   bool
}

// Manager handles all shared pipeline state with thread-safe access.
type Manager struct {
	mu sync.RWMutex

	controller *quality.Controller
	dispatcher *dispatch.Dispatcher
	lod        *lod.Table
	adaptive   bool
	logger     *slog.Logger
	evalLog    rate.Sometimes

	tier          starfield.Tier
	requested     starfield.Tier // tier of the latest generation request
	published     *dispatch.Published
	lastDecision  quality.Decision
	lastSelection lod.Selection
	lastDuration  time.Duration
	lastGenerated time.Time
	lastError     error
	frames        uint64

	// Event log (ring buffer)
	events       []Event
	maxEvents    int
	eventWriteAt int
}

// NewManager creates a manager and requests the initial tier. Tiers below
// the dispatcher's sync threshold are ready on return.
func NewManager(cfg Config, d *dispatch.Dispatcher) (*Manager, error) {
	ctrl, err := quality.NewController(cfg.Quality, cfg.InitialTier)
	if err != nil {
		return nil, fmt.Errorf("quality controller: %w", err)
	}
	table := cfg.LOD
	if table == nil {
		table = lod.DefaultTable()
	}
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = 50
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	m := &Manager{
		controller: ctrl,
		dispatcher: d,
		lod:        table,
		adaptive:   cfg.Adaptive,
		logger:     logger.With("component", "state"),
		evalLog:    rate.Sometimes{Interval: 5 * time.Second},
		tier:       ctrl.Tier(),
		maxEvents:  maxEvents,
		events:     make([]Event, 0, maxEvents),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestLocked(m.tier)
	m.pollLocked()
	return m, nil
}

// Frame records one frame and returns what to draw. fps is the measured
// rate of the previous frame; non-positive values are not recorded.
// distance is the camera distance from the galactic centre.
func (m *Manager) Frame(fps, distance float64) FrameInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.frames++
	var info FrameInfo
	switch {
	case !(fps > 0):
	case !m.adaptive:
		m.controller.History().Push(fps)
	default:
		if dec, ok := m.controller.Observe(fps); ok {
			info.Decision, info.Evaluated = dec, true
			m.lastDecision = dec
			m.evalLog.Do(func() {
				m.logger.Debug("quality evaluation",
					"operation", "frame",
					"mean_fps", dec.MeanFPS,
					"samples", dec.Samples,
					"reason", dec.Reason.String(),
					"tier", dec.To.String())
			})
			if dec.Changed() {
				m.changeTierLocked(dec)
			}
		}
	}

	m.pollLocked()

	sel := m.lod.SelectHistory(distance, m.controller.History())
	m.lastSelection = sel

	info.Tier = m.tier
	info.Selection = sel
	info.Pending = m.dispatcher.Pending()
	if m.published == nil {
		return info
	}

	info.DataTier = m.published.Tier
	if sel.Tier.Kind == lod.KindImpostor {
		info.Dataset = m.published.Impostor
		info.Ranges = starfield.ImpostorRanges(m.published.Dataset, info.Dataset, m.tier)
	} else {
		info.Dataset = m.published.Dataset
		info.Ranges = starfield.PopulationRanges(info.Dataset, m.tier)
	}
	info.Active = starfield.RangeTotal(info.Ranges)
	return info
}

// RequestTier applies a user override.
func (m *Manager) RequestTier(t starfield.Tier) error {
	dec, err := m.controller.Override(t)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastDecision = dec
	if dec.To != m.tier {
		m.changeTierLocked(dec)
	}
	m.pollLocked()
	return nil
}

// changeTierLocked moves to dec.To. A live dataset generated at or above the
// new tier only has its draw range changed, and any pending pass is
// cancelled; otherwise a pass is requested.
func (m *Manager) changeTierLocked(dec quality.Decision) {
	from := m.tier
	m.tier = dec.To
	m.addEvent(Event{
		Type:   EventTierChanged,
		From:   from.String(),
		To:     dec.To.String(),
		Detail: dec.Reason.String(),
	})
	m.logger.Info("quality tier changed",
		"operation", "tier",
		"from", from.String(),
		"to", dec.To.String(),
		"reason", dec.Reason.String(),
		"mean_fps", dec.MeanFPS)

	if m.published != nil && m.published.Tier >= dec.To {
		// A pass for a higher tier would replace the live dataset later.
		if epoch, ok := m.dispatcher.Cancel(); ok {
			m.addEvent(Event{Type: EventCancelled, Epoch: epoch, To: m.requested.String()})
			m.logger.Info("pending generation cancelled",
				"operation", "tier",
				"requested", m.requested.String(),
				"tier", dec.To.String())
		}
		m.addEvent(Event{
			Type:  EventDrawRange,
			From:  m.published.Tier.String(),
			To:    dec.To.String(),
			Stars: starfield.RangeTotal(starfield.PopulationRanges(m.published.Dataset, dec.To)),
		})
		return
	}
	m.requestLocked(dec.To)
}

func (m *Manager) requestLocked(t starfield.Tier) {
	m.requested = t
	epoch := m.dispatcher.Request(t)
	m.addEvent(Event{Type: EventRequested, Epoch: epoch, To: t.String()})
}

func (m *Manager) pollLocked() {
	for {
		res, ok := m.dispatcher.Poll()
		if !ok {
			return
		}
		m.handleResultLocked(res)
	}
}

func (m *Manager) handleResultLocked(res dispatch.Result) {
	switch {
	case res.Outcome == dispatch.OutcomeStale:
		m.addEvent(Event{Type: EventStale, Epoch: res.Epoch, To: res.Tier.String()})

	case res.Err != nil:
		m.lastError = res.Err
		m.addEvent(Event{Type: EventFailed, Epoch: res.Epoch, To: res.Tier.String(), Detail: res.Err.Error()})
		// The previous dataset stays in force, and with it its tier.
		if m.published != nil && m.tier > m.published.Tier {
			if dec, err := m.controller.Override(m.published.Tier); err == nil {
				m.lastDecision = dec
				m.tier = dec.To
			}
		}

	default:
		if res.Fallback {
			m.addEvent(Event{Type: EventFallback, Epoch: res.Epoch, To: res.Tier.String()})
		}
		m.published = m.dispatcher.Current()
		m.lastError = nil
		m.lastDuration = res.Duration
		m.lastGenerated = time.Now()
		m.addEvent(Event{
			Type:   EventGenerated,
			Epoch:  res.Epoch,
			To:     res.Tier.String(),
			Stars:  res.Dataset.Len(),
			Detail: res.Duration.Round(time.Millisecond).String(),
		})
	}
}

// Await blocks until the latest request is settled or ctx is done. It is
// meant for headless use before the first frame.
func (m *Manager) Await(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.dispatcher.Pending() {
		res, err := m.dispatcher.Await(ctx)
		if err != nil {
			return err
		}
		m.handleResultLocked(res)
	}
	return m.lastError
}

// Close stops background generation.
func (m *Manager) Close() {
	m.dispatcher.Close()
}

// addEvent adds an event to the ring buffer.
func (m *Manager) addEvent(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if len(m.events) < m.maxEvents {
		m.events = append(m.events, e)
	} else {
		m.events[m.eventWriteAt] = e
		m.eventWriteAt = (m.eventWriteAt + 1) % m.maxEvents
	}
}

// Snapshot represents an immutable snapshot of current state.
type Snapshot struct {
	Tier          starfield.Tier
	Adaptive      bool
	Published     *dispatch.Published
	Epoch         uint64
	Pending       bool
	StaleCount    uint64
	Frames        uint64
	MeanFPS       float64
	Samples       int
	LastDecision  quality.Decision
	LastSelection lod.Selection
	LastDuration  time.Duration
	LastGenerated time.Time
	LastError     error
	Events        []Event
}

// Snapshot returns a consistent snapshot of current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mean, _ := m.controller.History().Mean()
	return Snapshot{
		Tier:          m.tier,
		Adaptive:      m.adaptive,
		Published:     m.published,
		Epoch:         m.dispatcher.Epoch(),
		Pending:       m.dispatcher.Pending(),
		StaleCount:    m.dispatcher.StaleCount(),
		Frames:        m.frames,
		MeanFPS:       mean,
		Samples:       m.controller.History().Len(),
		LastDecision:  m.lastDecision,
		LastSelection: m.lastSelection,
		LastDuration:  m.lastDuration,
		LastGenerated: m.lastGenerated,
		LastError:     m.lastError,
		Events:        m.getEventsOrdered(),
	}
}

// getEventsOrdered returns events in chronological order.
func (m *Manager) getEventsOrdered() []Event {
	if len(m.events) == 0 {
		return nil
	}

	// If buffer isn't full yet, just copy
	if len(m.events) < m.maxEvents {
		result := make([]Event, len(m.events))
		copy(result, m.events)
		return result
	}

	// Ring buffer is full, reorder from oldest to newest
	result := make([]Event, m.maxEvents)
	for i := 0; i < m.maxEvents; i++ {
		idx := (m.eventWriteAt + i) % m.maxEvents
		result[i] = m.events[idx]
	}
	return result
}

// RecentEvents returns the last n events.
func (m *Manager) RecentEvents(n int) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.getEventsOrdered()
	if len(all) <= n {
		return all
	}
	return all[len(all)-n:]
}

// Adaptive reports whether the controller changes tiers on its own.
func (m *Manager) Adaptive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.adaptive
}

// SetAdaptive enables or disables automatic tier changes.
func (m *Manager) SetAdaptive(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adaptive = on
}

// Tier returns the active quality tier.
func (m *Manager) Tier() starfield.Tier {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tier
}

// HasData returns true once a pass has been published.
func (m *Manager) HasData() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.published != nil
}
