package drill

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/resqlab/pulsecoach/pkg/logger"
)

// retrieveRankings retrieves rankings for all trainees concurrently.
func retrieveRankings(ctx context.Context, config *Config, summaries map[string]Summary, stats *Stats) ([]Entry, error) {
	logger.Get().Info(ctx, "retrieving rankings",
		logger.Int("trainees", len(summaries)),
		logger.Int("workers", config.Workers),
	)

	client := newHTTPClient(config.Timeout)

	traineeIDs := make([]string, 0, len(summaries))
	for traineeID := range summaries {
		traineeIDs = append(traineeIDs, traineeID)
	}

	rankings := make([]Entry, len(traineeIDs))
	var (
		retrieved int64
		failed    int64
	)

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
					entry, err := retrieveSingleRanking(ctx, client, config.BaseURL, traineeID)
					if err != nil {
						atomic.AddInt64(&failed, 1)
						if config.Verbose {
							logger.Get().Warn(ctx, "failed to get rank",
								logger.String("traineeID", traineeID),
								logger.Error(err),
							)
						}
					} else {
						rankings[index] = entry
						atomic.AddInt64(&retrieved, 1)
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

	// Filter out empty entries (failed retrievals)
	validRankings := make([]Entry, 0, len(rankings))
	for _, entry := range rankings {
		if entry.TraineeID != "" { // Empty TraineeID indicates failed retrieval
			validRankings = append(validRankings, entry)
		}
	}

	stats.RankingsRetrieved = len(validRankings)

	logger.Get().Info(ctx, "ranking retrieval completed",
		logger.Int("retrieved", len(validRankings)),
		logger.Int("failed", int(atomic.LoadInt64(&failed))),
	)

	return validRankings, nil
}

// retrieveSingleRanking retrieves ranking for a single trainee.
func retrieveSingleRanking(ctx context.Context, client *HTTPClient, baseURL, traineeID string) (Entry, error) {
	url := fmt.Sprintf("%s/rank/%s", baseURL, traineeID)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return Entry{}, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return Entry{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var entry Entry
	if err := unmarshalJSON(body, &entry); err != nil {
		return Entry{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return entry, nil
}

// getLeaderboard retrieves the top N leaderboard entries.
func getLeaderboard(ctx context.Context, config *Config, stats *Stats) ([]Entry, error) {
	logger.Get().Info(ctx, "getting leaderboard", logger.Int("topN", config.TopN))

	client := newHTTPClient(config.Timeout)
	url := fmt.Sprintf("%s/leaderboard?limit=%d", config.BaseURL, config.TopN)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var leaderboard []Entry
	if err := unmarshalJSON(body, &leaderboard); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	stats.LeaderboardEntries = len(leaderboard)
	logger.Get().Info(ctx, "retrieved leaderboard entries", logger.Int("count", len(leaderboard)))

	return leaderboard, nil
}
