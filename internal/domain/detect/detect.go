// Package detect turns the per-frame depth signal into discrete
// compression events, debouncing sensor jitter with a depth threshold
// and an interval-plausibility gate.
package detect

// Default detector configuration constants.
const (
	defaultDepthThreshold = 0.5
	defaultMinInterval    = 0.3 // seconds; rejects double-counts
	defaultMaxInterval    = 1.0 // seconds; rejects stale gaps
	defaultWindowCapacity = 10
)

// Event is a detected chest compression.
type Event struct {
	Timestamp float64 `json:"timestamp"`
}

// Option applies a configuration option to the Detector.
type Option func(*Detector)

// WithDepthThreshold sets the depth above which a frame counts as a press.
func WithDepthThreshold(threshold float64) Option {
	return func(d *Detector) {
		if threshold > 0 && threshold < 1 {
			d.depthThreshold = threshold
		}
	}
}

// WithIntervalBounds sets the plausible inter-compression interval, in
// seconds. Intervals at or outside the bounds are rejected.
func WithIntervalBounds(minInterval, maxInterval float64) Option {
	return func(d *Detector) {
		if minInterval > 0 && maxInterval > minInterval {
			d.minInterval = minInterval
			d.maxInterval = maxInterval
		}
	}
}

// WithWindowCapacity bounds the sliding window of retained events.
func WithWindowCapacity(capacity int) Option {
	return func(d *Detector) {
		if capacity > 1 {
			d.capacity = capacity
		}
	}
}

// Detector holds the debounce state and the bounded FIFO window of
// accepted events. It is not safe for concurrent use; the engine drives
// it from a single frame-processing path by design.
type Detector struct {
	depthThreshold float64
	minInterval    float64
	maxInterval    float64
	capacity       int

	lastPressAt float64 // timestamp of the last above-threshold frame, 0 = none yet
	window      []Event
}

// NewDetector creates a detector with configuration options.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		depthThreshold: defaultDepthThreshold,
		minInterval:    defaultMinInterval,
		maxInterval:    defaultMaxInterval,
		capacity:       defaultWindowCapacity,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.window = make([]Event, 0, d.capacity)
	return d
}

// Observe feeds one frame's depth signal into the detector. It returns
// the accepted compression event and true when the frame completes a
// plausible compression cycle.
//
// A frame registers as a press when depth exceeds the threshold. The
// press becomes an event only when the gap since the previous press is
// inside the plausibility bounds; faster gaps are treated as the same
// compression seen twice, slower ones as a stale restart. Every press
// refreshes the debounce timestamp regardless of acceptance, so a stale
// gap costs exactly one missed event.
func (d *Detector) Observe(depth, timestamp float64) (Event, bool) {
	if depth <= d.depthThreshold {
		return Event{}, false
	}

	accepted := false
	var ev Event
	if d.lastPressAt > 0 {
		interval := timestamp - d.lastPressAt
		if interval > d.minInterval && interval < d.maxInterval {
			ev = Event{Timestamp: timestamp}
			d.push(ev)
			accepted = true
		}
	}
	d.lastPressAt = timestamp

	return ev, accepted
}

// push appends an event, evicting the oldest beyond capacity.
func (d *Detector) push(ev Event) {
	if len(d.window) >= d.capacity {
		copy(d.window, d.window[1:])
		d.window = d.window[:len(d.window)-1]
	}
	d.window = append(d.window, ev)
}

// Window returns the retained event timestamps in chronological order.
// The returned slice is a copy; callers may keep it.
func (d *Detector) Window() []float64 {
	out := make([]float64, len(d.window))
	for i, ev := range d.window {
		out[i] = ev.Timestamp
	}
	return out
}

// Len returns the current number of retained events.
func (d *Detector) Len() int {
	return len(d.window)
}

// Reset clears the window and the debounce state.
func (d *Detector) Reset() {
	d.lastPressAt = 0
	d.window = d.window[:0]
}
