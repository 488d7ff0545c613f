// Package score converts pose samples into the 0-1 quality signals the
// rest of the engine runs on: hand-placement quality and a compression
// depth proxy.
package score

import (
	"math"

	"github.com/resqlab/pulsecoach/internal/domain/pose"
)

// Default scoring configuration constants.
const (
	// defaultPlacementScale maps typical wrist-to-chest offsets in
	// normalized image space into a usable 0-1 score range.
	defaultPlacementScale = 10.0
)

// Snapshot is the per-tick output of the engine: current rate and the two
// quality scores. It carries no history and no identity.
type Snapshot struct {
	BPM       float64 `json:"bpm"`       // clamped to [0,200]
	Depth     float64 `json:"depth"`     // clamped to [0,1]
	Placement float64 `json:"placement"` // clamped to [0,1]
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithPlacementScale sets the distance-to-score scale factor.
func WithPlacementScale(scale float64) Option {
	return func(s *Scorer) {
		if scale > 0 {
			s.placementScale = scale
		}
	}
}

// Scorer computes placement and depth signals from a single sample.
// Both methods degrade to 0 on missing landmarks instead of failing.
type Scorer struct {
	placementScale float64
}

// NewScorer creates a Scorer with configuration options.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		placementScale: defaultPlacementScale,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Placement scores how close the wrists sit to the chest center, the
// midpoint of the two shoulders. Missing shoulders mean there is no chest
// reference, so the score is 0. A wrist that is absent contributes its
// zero-value position, which pushes the score down rather than up.
func (s *Scorer) Placement(sample pose.Sample) float64 {
	if !sample.HasShoulders() {
		return 0
	}

	chest := sample.LeftShoulder.Midpoint(sample.RightShoulder)
	leftDist := sample.LeftWrist.DistanceTo(chest)
	rightDist := sample.RightWrist.DistanceTo(chest)
	avgDist := (leftDist + rightDist) / 2

	return clamp01(1 - avgDist*s.placementScale)
}

// Depth estimates compression depth from the average wrist height.
//
// This is an image-space displacement proxy, not verified anatomical
// depth: it assumes a fixed camera framing where wrist height in the
// frame tracks the compression cycle. Nothing calibrates it against a
// neutral hand height. Treat it as a heuristic signal only.
func (s *Scorer) Depth(sample pose.Sample) float64 {
	if !sample.HasWrists() {
		return 0
	}

	avgY := (sample.LeftWrist.Y + sample.RightWrist.Y) / 2
	return clamp01(1 - avgY)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
