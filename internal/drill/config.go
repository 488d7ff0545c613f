package drill

import "time"

// Config holds configuration for a coaching drill run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Trainees   int           // Number of simulated trainees
	DrillSecs  float64       // Simulated duration of each session in seconds
	SampleRate float64       // Pose samples per simulated second
	TopN       int           // Number of top entries to fetch
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	LogFile    string        // Log file for drill output
	Verbose    bool          // Enable verbose logging
}

// Summary mirrors the session summary returned by DELETE /sessions/{id}.
type Summary struct {
	SessionID    string  `json:"session_id"`
	TraineeID    string  `json:"trainee_id"`
	Duration     float64 `json:"duration"`
	Compressions int     `json:"compressions"`
	AvgBPM       float64 `json:"avg_bpm"`
	AvgDepth     float64 `json:"avg_depth"`
	AvgPlacement float64 `json:"avg_placement"`
	Quality      float64 `json:"quality"`
}

// Entry represents a ranking row returned by the service.
type Entry struct {
	Rank         int     `json:"rank"`
	TraineeID    string  `json:"trainee_id"`
	Quality      float64 `json:"quality"`
	SessionID    string  `json:"session_id"`
	Compressions int     `json:"compressions"`
	AvgBPM       float64 `json:"avg_bpm"`
}

// Stats holds drill statistics.
type Stats struct {
	SessionsStarted    int
	SessionsCompleted  int
	SessionsFailed     int
	SamplesSubmitted   int
	RankingsRetrieved  int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
