package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/resqlab/pulsecoach/internal/drill"
)

// Default configuration constants.
const (
	defaultTrainees     = 50
	defaultDrillSecs    = 30.0
	defaultSampleRate   = 30.0
	defaultTopN         = 20
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 30 * time.Second
	defaultDrillTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		trainees   = flag.Int("trainees", defaultTrainees, "Number of simulated trainees")
		drillSecs  = flag.Float64("secs", defaultDrillSecs, "Simulated duration of each session in seconds")
		sampleRate = flag.Float64("rate", defaultSampleRate, "Pose samples per simulated second")
		topN       = flag.Int("top", defaultTopN, "Number of top entries to fetch from leaderboard")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile    = flag.String("log", "", "Log file for drill output (default: drill_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		drill.ShowHelp()
		return
	}

	// Setup logging
	if err := drill.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultDrillTimeout)
	defer cancel()

	// Create drill configuration
	config := &drill.Config{
		BaseURL:    *baseURL,
		Trainees:   *trainees,
		DrillSecs:  *drillSecs,
		SampleRate: *sampleRate,
		TopN:       *topN,
		Workers:    *workers,
		Timeout:    *timeout,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	// Run the drill
	if err := drill.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Drill failed: " + err.Error() + "\n")
		return
	}
}
