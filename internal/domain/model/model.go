// Package model contains domain models passed between layers.
package model

import (
	"github.com/resqlab/pulsecoach/internal/domain/feedback"
	"github.com/resqlab/pulsecoach/internal/domain/metronome"
)

// Signal is one outbound message for the audio/visual collaborators:
// either a coaching feedback event or a metronome beat, never both.
// Signals flow one way, from the engine to the sinks.
type Signal struct {
	SessionID string
	TraineeID string
	Feedback  *feedback.Event
	Beat      *metronome.Beat
}

// IsBeat reports whether the signal carries a metronome beat.
func (s Signal) IsBeat() bool {
	return s.Beat != nil
}

// Summary captures a finished session's aggregates. It is the record
// handed to the ranking repository and returned on session stop.
type Summary struct {
	SessionID    string  `json:"session_id"`
	TraineeID    string  `json:"trainee_id"`
	Duration     float64 `json:"duration_seconds"`
	Compressions int     `json:"total_compressions"`
	AvgBPM       float64 `json:"avg_bpm"`
	AvgDepth     float64 `json:"avg_depth"`
	AvgPlacement float64 `json:"avg_placement"`
	Quality      float64 `json:"quality_score"` // composite, [0,100]
}
