// Package app provides the core coaching service that implements the
// dependencies required by the HTTP and WebSocket adapters.
package app

import (
	"math"
	"sync"

	"github.com/resqlab/pulsecoach/internal/domain/detect"
	"github.com/resqlab/pulsecoach/internal/domain/feedback"
	"github.com/resqlab/pulsecoach/internal/domain/metronome"
	"github.com/resqlab/pulsecoach/internal/domain/model"
	"github.com/resqlab/pulsecoach/internal/domain/pose"
	"github.com/resqlab/pulsecoach/internal/domain/rate"
	"github.com/resqlab/pulsecoach/internal/domain/score"
	"github.com/resqlab/pulsecoach/pkg/metrics"
)

// QualityWeights blends the session aggregates into one 0-100 score.
type QualityWeights struct {
	Rate      float64
	Depth     float64
	Placement float64
}

// Session is one coaching session's analysis engine. Each tick is
// synchronous and O(window size); the only state is the bounded window,
// the cooldown clocks and the running aggregates, so a reset followed by
// an identical input replay reproduces identical output.
type Session struct {
	mu sync.Mutex

	id        string
	traineeID string

	scorer   *score.Scorer
	detector *detect.Detector
	rater    *rate.Estimator
	cadence  *feedback.Controller
	clock    *metronome.Clock

	weights QualityWeights

	// Tick state
	ticks         int
	lastTimestamp float64
	firstAt       float64
	snapshot      score.Snapshot

	// Aggregates for the summary
	compressions int
	sumBPM       float64
	bpmTicks     int
	sumDepth     float64
	sumPlacement float64
}

// NewSession assembles a session engine from its parts.
func NewSession(id, traineeID string, scorer *score.Scorer, detector *detect.Detector, rater *rate.Estimator, cadence *feedback.Controller, clock *metronome.Clock, weights QualityWeights) *Session {
	return &Session{
		id:        id,
		traineeID: traineeID,
		scorer:    scorer,
		detector:  detector,
		rater:     rater,
		cadence:   cadence,
		clock:     clock,
		weights:   weights,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// TraineeID returns the trainee the session belongs to.
func (s *Session) TraineeID() string { return s.traineeID }

// ProcessSample runs one tick: score the sample, feed the detector,
// recompute the rate. A tick whose timestamp does not advance past the
// previous one is treated as a duplicate or out-of-order frame and
// ignored, returning the last snapshot unchanged, so the detector's
// interval math never sees non-monotonic time.
func (s *Session) ProcessSample(sample pose.Sample) score.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticks > 0 && sample.Timestamp <= s.lastTimestamp {
		metrics.RecordSampleRejected()
		return s.snapshot
	}

	placement := s.scorer.Placement(sample)
	depth := s.scorer.Depth(sample)

	if _, accepted := s.detector.Observe(depth, sample.Timestamp); accepted {
		s.compressions++
		metrics.RecordCompressionDetected()
	}

	bpm := s.rater.BPM(s.detector.Window())
	s.snapshot = score.Snapshot{BPM: bpm, Depth: depth, Placement: placement}

	if s.ticks == 0 {
		s.firstAt = sample.Timestamp
		// The flash timer runs on the session's own timeline; the first
		// accepted frame is its epoch.
		s.clock.Start(sample.Timestamp)
	}
	s.lastTimestamp = sample.Timestamp
	s.ticks++

	if bpm > 0 {
		s.sumBPM += bpm
		s.bpmTicks++
	}
	s.sumDepth += depth
	s.sumPlacement += placement

	metrics.RecordSampleProcessed()
	return s.snapshot
}

// PollFeedback returns the coaching messages due at now, applying the
// per-category cooldowns. Call it once per tick after ProcessSample.
func (s *Session) PollFeedback(now float64) []feedback.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cadence.Poll(s.snapshot, now)
}

// MetronomeTick reports whether the reference beat's flash window is
// open at now, on the session's timeline.
func (s *Session) MetronomeTick(now float64) bool {
	return s.clock.Active(now)
}

// Snapshot returns the last computed snapshot.
func (s *Session) Snapshot() score.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Compressions returns the number of accepted compression events so far.
func (s *Session) Compressions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compressions
}

// Reset clears all session state: window, cooldown clocks, metronome
// epoch, aggregates. Idempotent; it is the recovery path for a corrupted
// session as well as the IDLE transition.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.detector.Reset()
	s.cadence.Reset()
	s.clock.Reset()

	s.ticks = 0
	s.lastTimestamp = 0
	s.firstAt = 0
	s.snapshot = score.Snapshot{}
	s.compressions = 0
	s.sumBPM = 0
	s.bpmTicks = 0
	s.sumDepth = 0
	s.sumPlacement = 0
}

// Summarize computes the session summary from the running aggregates.
func (s *Session) Summarize() model.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	var avgBPM, avgDepth, avgPlacement float64
	if s.bpmTicks > 0 {
		avgBPM = s.sumBPM / float64(s.bpmTicks)
	}
	if s.ticks > 0 {
		avgDepth = s.sumDepth / float64(s.ticks)
		avgPlacement = s.sumPlacement / float64(s.ticks)
	}

	return model.Summary{
		SessionID:    s.id,
		TraineeID:    s.traineeID,
		Duration:     s.lastTimestamp - s.firstAt,
		Compressions: s.compressions,
		AvgBPM:       avgBPM,
		AvgDepth:     avgDepth,
		AvgPlacement: avgPlacement,
		Quality:      s.quality(avgBPM, avgDepth, avgPlacement),
	}
}

// quality blends rate closeness to the reference tempo with the average
// depth and placement scores into a 0-100 composite.
func (s *Session) quality(avgBPM, avgDepth, avgPlacement float64) float64 {
	target := s.clock.TargetBPM()
	rateCloseness := 0.0
	if avgBPM > 0 && target > 0 {
		rateCloseness = math.Max(0, 1-math.Abs(avgBPM-target)/target)
	}

	total := s.weights.Rate + s.weights.Depth + s.weights.Placement
	if total <= 0 {
		return 0
	}
	blend := (s.weights.Rate*rateCloseness + s.weights.Depth*avgDepth + s.weights.Placement*avgPlacement) / total
	return math.Max(0, math.Min(100, blend*100))
}
