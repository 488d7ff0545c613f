// Package rate computes an instantaneous compression rate from the
// sliding window of recent event timestamps.
package rate

// Rate bounds, in beats per minute.
const (
	minBPM        = 0
	defaultMaxBPM = 200

	secondsPerMinute = 60
)

// Option applies a configuration option to the Estimator.
type Option func(*Estimator)

// WithMaxBPM sets the upper clamp on the reported rate.
func WithMaxBPM(bpm float64) Option {
	return func(e *Estimator) {
		if bpm > 0 {
			e.maxBPM = bpm
		}
	}
}

// Estimator derives BPM from event timestamps. It keeps no state beyond
// its configuration: the window itself is the only input, so the value
// stays correct under FIFO eviction without incremental bookkeeping.
type Estimator struct {
	maxBPM float64
}

// NewEstimator creates an estimator with configuration options.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		maxBPM: defaultMaxBPM,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BPM returns the mean rate over the window, clamped to [0,200].
// Fewer than two timestamps carry no interval information and yield 0.
// Timestamps must be in chronological order.
func (e *Estimator) BPM(timestamps []float64) float64 {
	if len(timestamps) < 2 {
		return 0
	}

	var total float64
	for i := 1; i < len(timestamps); i++ {
		total += timestamps[i] - timestamps[i-1]
	}
	avgInterval := total / float64(len(timestamps)-1)
	if avgInterval <= 0 {
		return 0
	}

	bpm := secondsPerMinute / avgInterval
	if bpm < minBPM {
		return minBPM
	}
	if bpm > e.maxBPM {
		return e.maxBPM
	}
	return bpm
}
