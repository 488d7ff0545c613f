// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...Option) initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// SignalQueueSize bounds the in-memory outbound signal queue.
	SignalQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of dispatch workers.
	WorkerCount int `koanf:"worker_count"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// TargetBPM is the metronome reference tempo.
	TargetBPM float64 `koanf:"target_bpm"`

	// BeatWidth is how long each metronome flash window stays open, seconds.
	BeatWidth float64 `koanf:"beat_width"`

	// DepthThreshold is the depth score that counts as a press.
	DepthThreshold float64 `koanf:"depth_threshold"`

	// MinIntervalSecs and MaxIntervalSecs bound plausible compression gaps.
	MinIntervalSecs float64 `koanf:"min_interval_secs"`
	MaxIntervalSecs float64 `koanf:"max_interval_secs"`

	// WindowCapacity sets how many recent compressions feed the rate estimate.
	WindowCapacity int `koanf:"window_capacity"`

	// RateBandLow and RateBandHigh delimit the acceptable bpm range.
	RateBandLow  float64 `koanf:"rate_band_low"`
	RateBandHigh float64 `koanf:"rate_band_high"`

	// DepthFloor is the depth score below which the depth advisory fires.
	DepthFloor float64 `koanf:"depth_floor"`

	// PlacementFloor is the placement score below which the placement
	// advisory fires.
	PlacementFloor float64 `koanf:"placement_floor"`

	// PlacementScale maps wrist-to-chest distance onto the placement score.
	PlacementScale float64 `koanf:"placement_scale"`

	// Cooldowns between repeats of the same message family, seconds.
	RateWarnCooldownSecs float64 `koanf:"rate_warn_cooldown_secs"`
	RateGoodCooldownSecs float64 `koanf:"rate_good_cooldown_secs"`
	AdvisoryCooldownSecs float64 `koanf:"advisory_cooldown_secs"`

	// Quality blend weights for the session summary score.
	QualityRateWeight      float64 `koanf:"quality_rate_weight"`
	QualityDepthWeight     float64 `koanf:"quality_depth_weight"`
	QualityPlacementWeight float64 `koanf:"quality_placement_weight"`
}

// New creates a Config using provided options. Context is accepted first to
// satisfy the project-wide convention; it is reserved for future use (e.g.,
// loading from env/files) and is currently unused.
func New(_ context.Context) *Config {
	c := &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		SignalQueueSize:     4096,
		WorkerCount:         2,
		MaxLeaderboardLimit: 100,

		TargetBPM:       110,
		BeatWidth:       0.1,
		DepthThreshold:  0.5,
		MinIntervalSecs: 0.3,
		MaxIntervalSecs: 1.0,
		WindowCapacity:  10,

		RateBandLow:    100,
		RateBandHigh:   120,
		DepthFloor:     0.7,
		PlacementFloor: 0.8,
		PlacementScale: 10,

		RateWarnCooldownSecs: 3,
		RateGoodCooldownSecs: 5,
		AdvisoryCooldownSecs: 4,

		QualityRateWeight:      0.5,
		QualityDepthWeight:     0.25,
		QualityPlacementWeight: 0.25,
	}
	return c
}
