// Package feedback decides which coaching messages to emit for the
// current scores, throttled per category so the audio/visual collaborators
// are never spammed.
package feedback

import (
	"github.com/resqlab/pulsecoach/internal/domain/score"
)

// Category identifies a coaching message family. Each category carries
// its own cooldown clock.
type Category int

// Feedback categories.
const (
	RateLow Category = iota
	RateHigh
	RateGood
	DepthLow
	PlacementLow

	categoryCount
)

// String returns the wire name of the category.
func (c Category) String() string {
	switch c {
	case RateLow:
		return "rate_low"
	case RateHigh:
		return "rate_high"
	case RateGood:
		return "rate_good"
	case DepthLow:
		return "depth_low"
	case PlacementLow:
		return "placement_low"
	default:
		return "unknown"
	}
}

// Event is a single coaching message handed to the output collaborators.
type Event struct {
	Category  Category `json:"-"`
	Kind      string   `json:"category"`
	Message   string   `json:"message"`
	Timestamp float64  `json:"timestamp"`
}

// Messenger supplies the message text for a category given the scores
// it was triggered by. Implementations grade the text (e.g. placement
// slightly off vs. badly off) from the snapshot.
type Messenger interface {
	Coach(category Category, snap score.Snapshot) string
}

// Default cadence configuration.
const (
	defaultRateBandLow   = 100.0 // bpm; below is RateLow
	defaultRateBandHigh  = 120.0 // bpm; above is RateHigh
	defaultDepthFloor    = 0.7
	defaultPlacementGood = 0.8

	defaultRateWarnCooldown = 3.0 // seconds
	defaultRateGoodCooldown = 5.0
	defaultAdvisoryCooldown = 4.0 // depth/placement advisories
)

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithRateBand sets the acceptable bpm range.
func WithRateBand(low, high float64) Option {
	return func(c *Controller) {
		if low > 0 && high > low {
			c.rateBandLow = low
			c.rateBandHigh = high
		}
	}
}

// WithDepthFloor sets the depth score below which DepthLow fires.
func WithDepthFloor(floor float64) Option {
	return func(c *Controller) {
		if floor > 0 && floor <= 1 {
			c.depthFloor = floor
		}
	}
}

// WithPlacementFloor sets the placement score below which PlacementLow fires.
func WithPlacementFloor(floor float64) Option {
	return func(c *Controller) {
		if floor > 0 && floor <= 1 {
			c.placementFloor = floor
		}
	}
}

// WithCooldown overrides the cooldown for one category, in seconds.
func WithCooldown(category Category, seconds float64) Option {
	return func(c *Controller) {
		if category >= 0 && category < categoryCount && seconds >= 0 {
			c.cooldowns[category] = seconds
		}
	}
}

// WithMessenger sets the message text source.
func WithMessenger(m Messenger) Option {
	return func(c *Controller) {
		if m != nil {
			c.messenger = m
		}
	}
}

// Controller applies the per-category cooldown discipline. The rate
// categories are mutually exclusive by construction, so at most one rate
// message fires per tick; depth and placement advisories are independent
// and may accompany it.
//
// Not safe for concurrent use; the engine polls it from the single
// frame-processing path.
type Controller struct {
	rateBandLow    float64
	rateBandHigh   float64
	depthFloor     float64
	placementFloor float64

	cooldowns [categoryCount]float64
	lastEmit  [categoryCount]float64
	armed     [categoryCount]bool

	messenger Messenger
}

// NewController creates a cadence controller with configuration options.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		rateBandLow:    defaultRateBandLow,
		rateBandHigh:   defaultRateBandHigh,
		depthFloor:     defaultDepthFloor,
		placementFloor: defaultPlacementGood,
		messenger:      defaultMessenger{},
	}
	c.cooldowns[RateLow] = defaultRateWarnCooldown
	c.cooldowns[RateHigh] = defaultRateWarnCooldown
	c.cooldowns[RateGood] = defaultRateGoodCooldown
	c.cooldowns[DepthLow] = defaultAdvisoryCooldown
	c.cooldowns[PlacementLow] = defaultAdvisoryCooldown
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Poll returns the coaching events due at now for the given snapshot:
// zero or one rate message plus any due depth/placement advisories.
// Emission stamps the category's cooldown clock; the clock never moves
// backwards because the engine rejects non-monotonic time upstream.
func (c *Controller) Poll(snap score.Snapshot, now float64) []Event {
	var out []Event

	if snap.BPM > 0 {
		switch {
		case snap.BPM < c.rateBandLow:
			out = c.emit(out, RateLow, snap, now)
		case snap.BPM > c.rateBandHigh:
			out = c.emit(out, RateHigh, snap, now)
		default:
			out = c.emit(out, RateGood, snap, now)
		}
	}

	if snap.Depth < c.depthFloor {
		out = c.emit(out, DepthLow, snap, now)
	}
	if snap.Placement < c.placementFloor {
		out = c.emit(out, PlacementLow, snap, now)
	}

	return out
}

// emit appends an event for category unless its cooldown is still open.
func (c *Controller) emit(out []Event, category Category, snap score.Snapshot, now float64) []Event {
	if c.armed[category] && now-c.lastEmit[category] < c.cooldowns[category] {
		return out
	}
	c.lastEmit[category] = now
	c.armed[category] = true
	return append(out, Event{
		Category:  category,
		Kind:      category.String(),
		Message:   c.messenger.Coach(category, snap),
		Timestamp: now,
	})
}

// Reset clears all cooldown clocks.
func (c *Controller) Reset() {
	c.lastEmit = [categoryCount]float64{}
	c.armed = [categoryCount]bool{}
}

// defaultMessenger carries the terse built-in cues used when no richer
// guide is wired in.
type defaultMessenger struct{}

func (defaultMessenger) Coach(category Category, snap score.Snapshot) string {
	switch category {
	case RateLow:
		return "Go faster"
	case RateHigh:
		return "Go slower"
	case RateGood:
		return "Good pace, keep going!"
	case DepthLow:
		return "Push harder! Compress at least 2 inches deep."
	case PlacementLow:
		if snap.Placement >= 0.6 {
			return "Good placement, try to center hands more."
		}
		return "Move hands to center of chest, between nipples."
	default:
		return ""
	}
}
