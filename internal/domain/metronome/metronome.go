// Package metronome provides the fixed-tempo reference beat. It is
// decoupled from the detected compression rate on purpose: the clock is
// a steady pacing reference, not adaptive feedback, and it shares no
// mutable state with the frame-processing path.
package metronome

import (
	"context"
	"sync"
	"time"
)

// Default clock configuration.
const (
	defaultTargetBPM = 110.0
	defaultBeatWidth = 0.1 // seconds the flash window stays active per beat

	secondsPerMinute = 60
)

// Beat is one metronome pulse, delivered to audio/visual collaborators.
type Beat struct {
	Sequence  int64   `json:"sequence"`
	Timestamp float64 `json:"timestamp"`
}

// Option applies a configuration option to the Clock.
type Option func(*Clock)

// WithTargetBPM sets the reference tempo.
func WithTargetBPM(bpm float64) Option {
	return func(c *Clock) {
		if bpm > 0 {
			c.targetBPM = bpm
		}
	}
}

// WithBeatWidth sets how long each beat stays active for the flash query.
func WithBeatWidth(seconds float64) Option {
	return func(c *Clock) {
		if seconds > 0 {
			c.beatWidth = seconds
		}
	}
}

// Clock is the reference metronome. The flash-window query serves
// polling display collaborators; Run serves push-style audio
// collaborators. Epoch handling is the only guarded state.
type Clock struct {
	targetBPM float64
	beatWidth float64

	mu      sync.Mutex
	epoch   float64 // flash-timer origin
	started bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewClock creates a metronome clock with configuration options.
func NewClock(opts ...Option) *Clock {
	c := &Clock{
		targetBPM: defaultTargetBPM,
		beatWidth: defaultBeatWidth,
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Interval returns the beat period in seconds.
func (c *Clock) Interval() float64 {
	return secondsPerMinute / c.targetBPM
}

// TargetBPM returns the configured reference tempo.
func (c *Clock) TargetBPM() float64 {
	return c.targetBPM
}

// Start records the flash-timer epoch. Restarting moves the epoch.
func (c *Clock) Start(now float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch = now
	c.started = true
}

// Active reports whether the beat flash window is open at now:
// (now - epoch) mod interval < beatWidth. Before Start it is never
// active.
func (c *Clock) Active(now float64) bool {
	c.mu.Lock()
	epoch, started := c.epoch, c.started
	c.mu.Unlock()

	if !started || now < epoch {
		return false
	}

	elapsed := now - epoch
	interval := c.Interval()
	phase := elapsed - float64(int64(elapsed/interval))*interval
	return phase < c.beatWidth
}

// Run emits beats on the returned channel at the reference tempo until
// ctx is cancelled or Stop is called. It reads only the clock's fixed
// configuration; compression state stays untouched by design.
func (c *Clock) Run(ctx context.Context) <-chan Beat {
	beats := make(chan Beat, 1)

	go func() {
		defer close(beats)

		interval := time.Duration(c.Interval() * float64(time.Second))
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var seq int64
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case t := <-ticker.C:
				seq++
				beat := Beat{Sequence: seq, Timestamp: float64(t.UnixNano()) / float64(time.Second)}
				select {
				case beats <- beat:
				default:
					// Collaborator fell behind; drop the beat rather
					// than stall the clock.
				}
			}
		}
	}()

	return beats
}

// Stop halts further pulses. Idempotent; pending beats are discarded.
func (c *Clock) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// Reset clears the epoch so Active returns false until the next Start.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch = 0
	c.started = false
}
