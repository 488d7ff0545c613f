package drill

import (
	"context"
	"fmt"
	"sort"

	"github.com/resqlab/pulsecoach/pkg/logger"
)

// verifyResults verifies the consistency of rankings and leaderboard.
func verifyResults(ctx context.Context, config *Config, rankings, leaderboard []Entry, stats *Stats) error {
	logger.Get().Info(ctx, "verifying results")

	if len(rankings) == 0 {
		return fmt.Errorf("no rankings to verify")
	}

	// Sort rankings by quality (descending) to get top trainees
	sortedRankings := make([]Entry, len(rankings))
	copy(sortedRankings, rankings)
	sort.Slice(sortedRankings, func(i, j int) bool {
		return sortedRankings[i].Quality > sortedRankings[j].Quality
	})

	// Verify leaderboard consistency if we have leaderboard data
	if len(leaderboard) > 0 {
		if err := verifyLeaderboardConsistency(sortedRankings, leaderboard); err != nil {
			logger.Get().Warn(ctx, "leaderboard consistency warning", logger.Error(err))
		} else {
			logger.Get().Info(ctx, "leaderboard consistency verified")
		}
	}

	displayTopTrainees(ctx, sortedRankings, leaderboard, config.Verbose)

	logger.Get().Info(ctx, "result verification completed")
	return nil
}

// verifyLeaderboardConsistency checks if leaderboard matches top rankings.
func verifyLeaderboardConsistency(sortedRankings, leaderboard []Entry) error {
	if len(leaderboard) == 0 {
		return fmt.Errorf("empty leaderboard")
	}

	// Check if top entry in leaderboard matches highest ranked trainee
	topRanking := sortedRankings[0]
	topLeaderboard := leaderboard[0]

	if topRanking.TraineeID != topLeaderboard.TraineeID {
		return fmt.Errorf("top leaderboard entry (%s) does not match top ranked trainee (%s)",
			topLeaderboard.TraineeID, topRanking.TraineeID)
	}

	if topRanking.Quality != topLeaderboard.Quality {
		return fmt.Errorf("top leaderboard quality (%.3f) does not match top ranked quality (%.3f)",
			topLeaderboard.Quality, topRanking.Quality)
	}

	// Check if leaderboard is properly sorted
	for i := 1; i < len(leaderboard); i++ {
		if leaderboard[i].Quality > leaderboard[i-1].Quality {
			return fmt.Errorf("leaderboard not properly sorted: entry %d has higher quality than entry %d",
				i, i-1)
		}
	}

	return nil
}

// displayTopTrainees shows the top trainees from rankings and leaderboard.
func displayTopTrainees(ctx context.Context, sortedRankings, leaderboard []Entry, verbose bool) {
	topN := 10
	if len(sortedRankings) < topN {
		topN = len(sortedRankings)
	}

	for i := 0; i < topN; i++ {
		entry := sortedRankings[i]
		logger.Get().Info(ctx, "top trainee",
			logger.Int("rank", i+1),
			logger.String("traineeID", entry.TraineeID),
			logger.Float64("quality", entry.Quality),
			logger.String("avgBPM", formatBPM(entry.AvgBPM)),
		)
	}

	if verbose && len(sortedRankings) > 0 {
		avgQuality := calculateAverageQuality(sortedRankings)
		logger.Get().Info(ctx, "quality statistics",
			logger.Float64("average", avgQuality),
			logger.Float64("maximum", sortedRankings[0].Quality),
			logger.Float64("minimum", sortedRankings[len(sortedRankings)-1].Quality),
			logger.Int("leaderboardEntries", len(leaderboard)),
		)
	}
}

// calculateAverageQuality calculates the average quality from rankings.
func calculateAverageQuality(rankings []Entry) float64 {
	if len(rankings) == 0 {
		return 0
	}

	sum := 0.0
	for _, entry := range rankings {
		sum += entry.Quality
	}

	return sum / float64(len(rankings))
}
