// Package repository defines the trainee ranking store interface and errors.
package repository

import "context"

// Entry represents a ranking row: a trainee's best session so far.
type Entry struct {
	Rank         int     `json:"rank"`
	TraineeID    string  `json:"trainee_id"`
	Quality      float64 `json:"quality"`
	SessionID    string  `json:"session_id"`
	Compressions int     `json:"compressions"`
	AvgBPM       float64 `json:"avg_bpm"`
}

// Store provides read/write access to the ranking state.
type Store interface {
	// RecordBest sets a new best session for trainee if its quality beats
	// the existing one. Returns true if the store updated the record.
	RecordBest(ctx context.Context, traineeID string, quality float64, sessionID string, compressions int, avgBPM float64) (bool, error)

	// Rank returns the current rank and best session for a trainee.
	// Returns ErrNotFound if the trainee is unknown.
	Rank(ctx context.Context, traineeID string) (Entry, error)

	// TopN returns the top-N entries ordered by quality desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of trainees tracked.
	Count(ctx context.Context) int
}
