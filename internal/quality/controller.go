package quality

import (
	"fmt"
	"sync"

	"github.com/litescript/ls-galaxy/internal/starfield"
)

// Settings configures the controller.
type Settings struct {
	Cadence      int     // frames between evaluations
	HistorySize  int     // FPS samples in the trailing window
	LowFPS       float64 // mean below this demotes one tier
	HighFPS      float64 // mean above this counts toward promotion
	PromoteAfter int     // consecutive healthy evaluations before promoting; 0 disables promotion
	MinTier      starfield.Tier
	MaxTier      starfield.Tier
}

// DefaultSettings returns the standard thresholds.
func DefaultSettings() Settings {
	return Settings{
		Cadence:      60,
		HistorySize:  DefaultHistorySize,
		LowFPS:       30,
		HighFPS:      58,
		PromoteAfter: 3,
		MinTier:      starfield.TierLow,
		MaxTier:      starfield.TierUltra,
	}
}

// Validate checks the settings.
func (s Settings) Validate() error {
	switch {
	case s.Cadence <= 0:
		return fmt.Errorf("cadence must be positive, got %d", s.Cadence)
	case s.HistorySize <= 0:
		return fmt.Errorf("history size must be positive, got %d", s.HistorySize)
	case s.LowFPS >= s.HighFPS:
		return fmt.Errorf("low threshold %.1f must be below high threshold %.1f", s.LowFPS, s.HighFPS)
	case s.PromoteAfter < 0:
		return fmt.Errorf("promote-after must be non-negative, got %d", s.PromoteAfter)
	case !s.MinTier.Valid() || !s.MaxTier.Valid() || s.MinTier > s.MaxTier:
		return fmt.Errorf("tier bounds %v..%v are invalid", s.MinTier, s.MaxTier)
	}
	return nil
}

// Reason explains a decision.
type Reason int

const (
	ReasonNoData Reason = iota
	ReasonSteady
	ReasonLowFPS
	ReasonAtFloor
	ReasonHealthy
	ReasonPromoted
	ReasonAtCeiling
	ReasonOverride
)

func (r Reason) String() string {
	switch r {
	case ReasonNoData:
		return "no samples"
	case ReasonSteady:
		return "steady"
	case ReasonLowFPS:
		return "low fps"
	case ReasonAtFloor:
		return "low fps at floor"
	case ReasonHealthy:
		return "healthy"
	case ReasonPromoted:
		return "sustained high fps"
	case ReasonAtCeiling:
		return "high fps at ceiling"
	case ReasonOverride:
		return "user override"
	default:
		return "unknown"
	}
}

// Decision is the outcome of one evaluation.
type Decision struct {
	From    starfield.Tier
	To      starfield.Tier
	MeanFPS float64
	Samples int
	Reason  Reason
}

// Changed reports whether the decision moves to a different tier.
func (d Decision) Changed() bool {
	return d.From != d.To
}

// Controller is a tier state machine driven by mean FPS.
//
// Demotion moves exactly one tier per evaluation. Promotion also moves one
// tier but only after PromoteAfter consecutive evaluations above HighFPS.
// The controller only decides; it never regenerates data.
type Controller struct {
	mu       sync.Mutex
	settings Settings
	history  *History
	tier     starfield.Tier
	frames   int
	streak   int
}

// NewController creates a controller starting at initial.
func NewController(settings Settings, initial starfield.Tier) (*Controller, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if !initial.Valid() {
		return nil, fmt.Errorf("initial tier: %w", starfield.ErrUnknownTier)
	}
	return &Controller{
		settings: settings,
		history:  NewHistory(settings.HistorySize),
		tier:     clampTier(initial, settings),
	}, nil
}

// Tier returns the current tier.
func (c *Controller) Tier() starfield.Tier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tier
}

// History returns the FPS window.
func (c *Controller) History() *History {
	return c.history
}

// Settings returns the controller's settings.
func (c *Controller) Settings() Settings {
	return c.settings
}

// Observe records one frame's FPS. Every Cadence frames it evaluates and
// returns the decision with ok set.
func (c *Controller) Observe(fps float64) (Decision, bool) {
	c.history.Push(fps)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames++
	if c.frames < c.settings.Cadence {
		return Decision{}, false
	}
	c.frames = 0
	return c.evaluateLocked(), true
}

// Evaluate runs the state machine now against the current window.
func (c *Controller) Evaluate() Decision {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evaluateLocked()
}

func (c *Controller) evaluateLocked() Decision {
	d := Decision{From: c.tier, To: c.tier}
	mean, ok := c.history.Mean()
	if !ok {
		d.Reason = ReasonNoData
		return d
	}
	d.MeanFPS = mean
	d.Samples = c.history.Len()

	switch {
	case mean < c.settings.LowFPS:
		c.streak = 0
		if c.tier > c.settings.MinTier {
			c.tier = c.tier.Lower()
			d.Reason = ReasonLowFPS
		} else {
			d.Reason = ReasonAtFloor
		}
	case mean > c.settings.HighFPS:
		if c.settings.PromoteAfter == 0 {
			d.Reason = ReasonHealthy
			break
		}
		c.streak++
		switch {
		case c.tier >= c.settings.MaxTier:
			c.streak = 0
			d.Reason = ReasonAtCeiling
		case c.streak >= c.settings.PromoteAfter:
			c.streak = 0
			c.tier = c.tier.Higher()
			d.Reason = ReasonPromoted
		default:
			d.Reason = ReasonHealthy
		}
	default:
		c.streak = 0
		d.Reason = ReasonSteady
	}

	d.To = c.tier
	if d.Changed() {
		// Samples from the old tier say nothing about the new one.
		c.history.Reset()
	}
	return d
}

// Override sets the tier on user request. The promotion streak, FPS window
// and cadence counter restart, so the next automatic evaluation judges the
// new tier on a full window.
func (c *Controller) Override(t starfield.Tier) (Decision, error) {
	if !t.Valid() {
		return Decision{}, fmt.Errorf("override: %w", starfield.ErrUnknownTier)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	d := Decision{From: c.tier, Reason: ReasonOverride}
	c.tier = clampTier(t, c.settings)
	c.streak = 0
	c.frames = 0
	c.history.Reset()
	d.To = c.tier
	return d, nil
}

func clampTier(t starfield.Tier, s Settings) starfield.Tier {
	return max(s.MinTier, min(t, s.MaxTier))
}
