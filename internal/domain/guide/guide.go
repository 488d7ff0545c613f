// Package guide provides coaching text: per-category cues graded by the
// current scores, step-by-step walkthrough guidance, and keyword-matched
// answers from a built-in knowledge base. The default implementation is
// fully offline and deterministic; the interface leaves room for a
// remotely narrated variant.
package guide

import (
	"fmt"
	"strings"

	"github.com/resqlab/pulsecoach/internal/domain/feedback"
	"github.com/resqlab/pulsecoach/internal/domain/score"
)

// Guide produces coaching and guidance text.
type Guide interface {
	feedback.Messenger

	// Step returns guidance for a zero-based walkthrough step.
	Step(step int) string

	// Steps returns the full walkthrough sequence.
	Steps() []string

	// EmergencyChecklist returns the ordered emergency response list.
	EmergencyChecklist() []string

	// Answer responds to a free-form question from the knowledge base.
	Answer(question string) string
}

// Default grading thresholds.
const (
	defaultPlacementPoor = 0.6 // below: reposition; above: refine
)

// Option applies a configuration option to the StaticGuide.
type Option func(*StaticGuide)

// WithRateBand sets the bpm range quoted in rate cues.
func WithRateBand(low, high float64) Option {
	return func(g *StaticGuide) {
		if low > 0 && high > low {
			g.rateBandLow = low
			g.rateBandHigh = high
		}
	}
}

// WithPlacementPoorThreshold sets the score below which placement cues
// switch from refinement to repositioning.
func WithPlacementPoorThreshold(threshold float64) Option {
	return func(g *StaticGuide) {
		if threshold > 0 && threshold < 1 {
			g.placementPoor = threshold
		}
	}
}

// StaticGuide is the offline Guide backed by fixed AHA-style guidance.
type StaticGuide struct {
	rateBandLow   float64
	rateBandHigh  float64
	placementPoor float64

	steps     []string
	checklist []string
	knowledge map[string]string
}

// NewStaticGuide creates the offline guide with configuration options.
func NewStaticGuide(opts ...Option) *StaticGuide {
	g := &StaticGuide{
		rateBandLow:   100,
		rateBandHigh:  120,
		placementPoor: defaultPlacementPoor,
		steps: []string{
			"Check responsiveness: tap shoulders and shout. If no response, call 911 immediately.",
			"Position victim: place on a firm, flat surface.",
			"Hand placement: place the heel of one hand in the center of the chest, between the nipples. Place the other hand on top.",
			"Begin compressions: push hard and fast, at least 2 inches deep, 100-120 BPM.",
			"Continue for 30 compressions: count out loud, maintain rhythm.",
			"Rescue breaths: give 2 breaths. Tilt head, pinch nose, 1-second breaths.",
			"Resume compressions: continue the 30:2 cycle until help arrives.",
		},
		checklist: []string{
			"Check scene safety - ensure it's safe to approach",
			"Check responsiveness - tap shoulders, shout",
			"Call 911 immediately - provide location and situation",
			"Check breathing - look, listen, feel for 10 seconds",
			"Begin CPR if no breathing or only gasping",
			"Use AED if available - follow voice prompts",
			"Continue until help arrives or victim recovers",
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.knowledge = buildKnowledge()
	return g
}

// Coach implements feedback.Messenger with performance-graded text.
func (g *StaticGuide) Coach(category feedback.Category, snap score.Snapshot) string {
	switch category {
	case feedback.RateLow:
		return fmt.Sprintf("Too slow at %.0f BPM. Speed up to %.0f-%.0f BPM.", snap.BPM, g.rateBandLow, g.rateBandHigh)
	case feedback.RateHigh:
		return fmt.Sprintf("Too fast at %.0f BPM. Slow down to %.0f-%.0f BPM.", snap.BPM, g.rateBandLow, g.rateBandHigh)
	case feedback.RateGood:
		return "Excellent rhythm! Keep going at this pace."
	case feedback.DepthLow:
		return "Push harder! Compress at least 2 inches deep."
	case feedback.PlacementLow:
		if snap.Placement >= g.placementPoor {
			return "Good placement, try to center hands more."
		}
		return "Move hands to center of chest, between nipples."
	default:
		return "Continue with current technique."
	}
}

// Step returns guidance for one walkthrough step; out-of-range steps get
// the generic continuation cue.
func (g *StaticGuide) Step(step int) string {
	if step < 0 || step >= len(g.steps) {
		return "Continue with current technique."
	}
	return g.steps[step]
}

// Steps returns a copy of the walkthrough sequence.
func (g *StaticGuide) Steps() []string {
	out := make([]string, len(g.steps))
	copy(out, g.steps)
	return out
}

// EmergencyChecklist returns a copy of the emergency response list.
func (g *StaticGuide) EmergencyChecklist() []string {
	out := make([]string, len(g.checklist))
	copy(out, g.checklist)
	return out
}

// Answer matches keywords against the knowledge base. Unknown questions
// fall through to the general summary.
func (g *StaticGuide) Answer(question string) string {
	q := strings.ToLower(question)
	for _, entry := range knowledgeOrder {
		for _, kw := range entry.keywords {
			if strings.Contains(q, kw) {
				return g.knowledge[entry.key]
			}
		}
	}
	return g.knowledge["general"]
}

// knowledgeOrder fixes matching priority so e.g. "how deep" wins over a
// stray "rate" elsewhere in the question.
var knowledgeOrder = []struct {
	key      string
	keywords []string
}{
	{"depth", []string{"depth", "how deep", "hard"}},
	{"rate", []string{"rate", "speed", "bpm", "fast"}},
	{"placement", []string{"hand", "placement", "where"}},
	{"breaths", []string{"breath", "rescue"}},
	{"emergency", []string{"emergency", "911", "help"}},
	{"aed", []string{"aed", "defibrillator"}},
}

func buildKnowledge() map[string]string {
	return map[string]string{
		"rate":      "Compress at 100-120 beats per minute. Use a metronome or count 'one-and-two-and-three' to maintain proper rhythm.",
		"depth":     "Compress at least 2 inches (5 cm) deep. Push hard and fast, allowing full chest recoil between compressions.",
		"placement": "Place the heel of one hand in the center of the chest, between the nipples. Place your other hand on top and interlock fingers.",
		"breaths":   "After 30 compressions, give 2 rescue breaths. Tilt head back, pinch nose, and give 1-second breaths until chest rises.",
		"emergency": "Call 911 immediately before starting CPR. If alone, call 911 first, then start CPR.",
		"aed":       "Use an AED if available. Turn it on and follow the voice prompts. Continue CPR between shocks.",
		"general":   "For CPR: 30 compressions at 100-120 BPM, then 2 rescue breaths. Call 911 immediately. Continue until help arrives or victim recovers.",
	}
}
