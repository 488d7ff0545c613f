package drill

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/resqlab/pulsecoach/pkg/logger"
)

// runSessions drives one simulated drill session per trainee, fanned out
// over a worker pool, and returns the session summaries keyed by trainee.
func runSessions(ctx context.Context, config *Config, stats *Stats) (map[string]Summary, error) {
	logger.Get().Info(ctx, "running drill sessions",
		logger.Int("trainees", config.Trainees),
		logger.Int("workers", config.Workers),
	)

	client := newHTTPClient(config.Timeout)

	traineeIDs := make([]string, config.Trainees)
	for i := range traineeIDs {
		traineeIDs[i] = "trainee-" + uuid.New().String()
	}

	var (
		mu        sync.Mutex
		summaries = make(map[string]Summary, config.Trainees)

		completed int64
		failed    int64
		samples   int64
	)

	// Progress reporting
	var lastReport time.Time
	reportInterval := 1 * time.Second

	traineeChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for index := range traineeChan {
				select {
				case <-ctx.Done():
					return
				default:
					traineeID := traineeIDs[index]
					summary, sent, err := runSingleSession(ctx, client, config, traineeID)
					atomic.AddInt64(&samples, int64(sent))
					if err != nil {
						atomic.AddInt64(&failed, 1)
						if config.Verbose {
							logger.Get().Warn(ctx, "drill session failed",
								logger.String("traineeID", traineeID),
								logger.Error(err),
							)
						}
					} else {
						mu.Lock()
						summaries[traineeID] = summary
						mu.Unlock()
						atomic.AddInt64(&completed, 1)
					}

					if time.Since(lastReport) >= reportInterval {
						lastReport = time.Now()
						logger.Get().Info(ctx, "drill progress",
							logger.Int("completed", int(atomic.LoadInt64(&completed))),
							logger.Int("failed", int(atomic.LoadInt64(&failed))),
							logger.Int("total", config.Trainees),
						)
					}
				}
			}
		}()
	}

	go func() {
		defer close(traineeChan)
		for i := range traineeIDs {
			select {
			case <-ctx.Done():
				return
			case traineeChan <- i:
			}
		}
	}()

	wg.Wait()

	stats.SessionsStarted = config.Trainees
	stats.SessionsCompleted = int(atomic.LoadInt64(&completed))
	stats.SessionsFailed = int(atomic.LoadInt64(&failed))
	stats.SamplesSubmitted = int(atomic.LoadInt64(&samples))

	logger.Get().Info(ctx, "drill sessions completed",
		logger.Int("completed", stats.SessionsCompleted),
		logger.Int("failed", stats.SessionsFailed),
		logger.Int("samples", stats.SamplesSubmitted),
	)

	return summaries, nil
}

// runSingleSession starts a session, streams a synthetic pose wave through
// it and stops it, returning the summary and the number of samples sent.
func runSingleSession(ctx context.Context, client *HTTPClient, config *Config, traineeID string) (Summary, int, error) {
	sessionID, err := startSession(ctx, client, config.BaseURL, traineeID)
	if err != nil {
		return Summary{}, 0, fmt.Errorf("start session: %w", err)
	}

	p := randomProfile()
	sent := 0
	for _, sample := range generateSamples(p, config.DrillSecs, config.SampleRate) {
		url := config.BaseURL + "/sessions/" + sessionID + "/samples"
		resp, err := client.Post(ctx, url, sample)
		if err != nil {
			return Summary{}, sent, fmt.Errorf("submit sample: %w", err)
		}
		_, _ = readResponseBody(resp)
		if resp.StatusCode != StatusOK {
			return Summary{}, sent, fmt.Errorf("submit sample: HTTP %d", resp.StatusCode)
		}
		sent++
	}

	summary, err := stopSession(ctx, client, config.BaseURL, sessionID)
	if err != nil {
		return Summary{}, sent, fmt.Errorf("stop session: %w", err)
	}

	return summary, sent, nil
}

// startSession creates a session for the trainee and returns its id.
func startSession(ctx context.Context, client *HTTPClient, baseURL, traineeID string) (string, error) {
	resp, err := client.Post(ctx, baseURL+"/sessions", map[string]string{"trainee_id": traineeID})
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusCreated {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := unmarshalJSON(body, &created); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if created.SessionID == "" {
		return "", fmt.Errorf("empty session id in response")
	}
	return created.SessionID, nil
}

// stopSession ends the session and returns its summary.
func stopSession(ctx context.Context, client *HTTPClient, baseURL, sessionID string) (Summary, error) {
	resp, err := client.Delete(ctx, baseURL+"/sessions/"+sessionID)
	if err != nil {
		return Summary{}, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return Summary{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var summary Summary
	if err := unmarshalJSON(body, &summary); err != nil {
		return Summary{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return summary, nil
}

// formatBPM renders a bpm value for log lines.
func formatBPM(bpm float64) string {
	return strconv.FormatFloat(bpm, 'f', 1, 64)
}
