package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"
)

// floatEqual compares two float64 values with a small tolerance for floating-point precision
func floatEqual(a, b float64) bool {
	const tolerance = 1e-10
	return math.Abs(a-b) < tolerance
}

func TestTreapStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	// Test empty store
	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	// Test inserting first entry
	updated, err := store.RecordBest(ctx, "trainee1", 85.5, "session1", 42, 108.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated {
		t.Error("expected record to succeed")
	}

	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	// Test rank query
	entry, err := store.Rank(ctx, "trainee1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rank != 1 {
		t.Errorf("expected rank 1, got %d", entry.Rank)
	}
	if entry.Quality != 85.5 {
		t.Errorf("expected quality 85.5, got %f", entry.Quality)
	}
	if entry.SessionID != "session1" {
		t.Errorf("expected session1, got %s", entry.SessionID)
	}
	if entry.Compressions != 42 {
		t.Errorf("expected 42 compressions, got %d", entry.Compressions)
	}
	if entry.AvgBPM != 108.0 {
		t.Errorf("expected avg BPM 108.0, got %f", entry.AvgBPM)
	}

	// Test TopN
	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].TraineeID != "trainee1" {
		t.Errorf("expected trainee1, got %s", entries[0].TraineeID)
	}
}

func TestTreapStore_QualityUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	// Insert initial quality
	updated, err := store.RecordBest(ctx, "trainee1", 50.0, "session1", 20, 95.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated {
		t.Error("expected record to succeed")
	}

	// Try to update with lower quality (should not replace)
	updated, err = store.RecordBest(ctx, "trainee1", 40.0, "session2", 15, 80.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated {
		t.Error("expected record to be rejected for lower quality")
	}

	// Equal quality is also not an improvement
	updated, err = store.RecordBest(ctx, "trainee1", 50.0, "session3", 22, 100.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated {
		t.Error("expected record to be rejected for equal quality")
	}

	// Update with higher quality (should succeed)
	updated, err = store.RecordBest(ctx, "trainee1", 90.0, "session4", 55, 112.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated {
		t.Error("expected record to succeed")
	}

	// Verify new best carries the new session details
	entry, err := store.Rank(ctx, "trainee1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Quality != 90.0 {
		t.Errorf("expected quality 90.0, got %f", entry.Quality)
	}
	if entry.SessionID != "session4" {
		t.Errorf("expected session4, got %s", entry.SessionID)
	}
	if entry.Compressions != 55 {
		t.Errorf("expected 55 compressions, got %d", entry.Compressions)
	}

	// Only one trainee tracked regardless of sessions
	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}
}

func TestTreapStore_Ordering(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	// Insert multiple trainees with different qualities
	trainees := []struct {
		id      string
		quality float64
	}{
		{"trainee1", 85.0},
		{"trainee2", 95.0},
		{"trainee3", 75.0},
		{"trainee4", 100.0},
		{"trainee5", 80.0},
	}

	for _, tr := range trainees {
		updated, err := store.RecordBest(ctx, tr.id, tr.quality, "s-"+tr.id, 30, 110.0)
		if err != nil {
			t.Fatalf("unexpected error recording %s: %v", tr.id, err)
		}
		if !updated {
			t.Errorf("expected record to succeed for %s", tr.id)
		}
	}

	// Test TopN ordering
	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 5 {
		t.Errorf("expected 5 entries, got %d", len(entries))
	}

	// Verify descending order by quality
	for i := 0; i < len(entries)-1; i++ {
		if entries[i].Quality < entries[i+1].Quality {
			t.Errorf("entries not in descending order: %f < %f", entries[i].Quality, entries[i+1].Quality)
		}
	}

	// Verify ranks are assigned correctly
	for i, entry := range entries {
		expectedRank := i + 1
		if entry.Rank != expectedRank {
			t.Errorf("entry %d: expected rank %d, got %d", i, expectedRank, entry.Rank)
		}
	}

	// Verify specific ordering
	expectedOrder := []string{"trainee4", "trainee2", "trainee1", "trainee5", "trainee3"}
	for i, expectedID := range expectedOrder {
		if entries[i].TraineeID != expectedID {
			t.Errorf("position %d: expected %s, got %s", i, expectedID, entries[i].TraineeID)
		}
	}
}

func TestTreapStore_TieBreaking(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	// Insert trainees with same quality but different IDs
	updated, err := store.RecordBest(ctx, "traineeB", 100.0, "sB", 40, 110.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated {
		t.Error("expected record to succeed")
	}

	updated, err = store.RecordBest(ctx, "traineeA", 100.0, "sA", 41, 111.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated {
		t.Error("expected record to succeed")
	}

	updated, err = store.RecordBest(ctx, "traineeC", 90.0, "sC", 35, 105.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated {
		t.Error("expected record to succeed")
	}

	// Test TopN to see tie-breaking
	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 3 {
		t.Errorf("expected 3 entries, got %d", len(entries))
	}

	// With same quality, traineeA should come before traineeB (alphabetical)
	if entries[0].TraineeID != "traineeA" {
		t.Errorf("expected traineeA first, got %s", entries[0].TraineeID)
	}
	if entries[1].TraineeID != "traineeB" {
		t.Errorf("expected traineeB second, got %s", entries[1].TraineeID)
	}

	// Tied entries share a rank; the next distinct quality takes the next rank
	if entries[0].Rank != 1 || entries[1].Rank != 1 {
		t.Errorf("expected shared rank 1 for tied entries, got %d and %d", entries[0].Rank, entries[1].Rank)
	}
	if entries[2].Rank != 2 {
		t.Errorf("expected rank 2 for traineeC, got %d", entries[2].Rank)
	}
}

func TestTreapStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()
	numGoroutines := 10
	numUpdates := 100

	// Start multiple goroutines recording different trainees
	done := make(chan bool, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			for j := 0; j < numUpdates; j++ {
				traineeID := fmt.Sprintf("trainee%d_%d", id, j)
				quality := float64(50 + j%50)
				if _, err := store.RecordBest(ctx, traineeID, quality, "s", j, 110.0); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
			done <- true
		}(i)
	}

	// Concurrent readers alongside the writers
	readerDone := make(chan bool)
	go func() {
		for i := 0; i < 50; i++ {
			if _, err := store.TopN(ctx, 10); err != nil {
				t.Errorf("unexpected TopN error: %v", err)
			}
			store.Count(ctx)
		}
		readerDone <- true
	}()

	for i := 0; i < numGoroutines; i++ {
		<-done
	}
	<-readerDone

	expected := numGoroutines * numUpdates
	if count := store.Count(ctx); count != expected {
		t.Errorf("expected count %d, got %d", expected, count)
	}
}

func TestTreapStore_ConcurrentBestUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	// Many goroutines compete to raise the same trainee's best quality.
	const workers = 8
	const attempts = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < attempts; i++ {
				quality := r.Float64() * 100
				if _, err := store.RecordBest(ctx, "contender", quality, "s", i, 110.0); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}(int64(w))
	}
	wg.Wait()

	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	entry, err := store.Rank(ctx, "contender")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rank != 1 {
		t.Errorf("expected rank 1, got %d", entry.Rank)
	}
	if entry.Quality < 0 || entry.Quality > 100 {
		t.Errorf("quality out of range: %f", entry.Quality)
	}
}

func TestTreapStore_EdgeCases(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	// Unknown trainee
	if _, err := store.Rank(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Invalid limits
	if _, err := store.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit for 0, got %v", err)
	}
	if _, err := store.TopN(ctx, -5); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit for -5, got %v", err)
	}

	// TopN larger than the population
	if _, err := store.RecordBest(ctx, "only", 60.0, "s1", 10, 100.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries, err := store.TopN(ctx, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(entries))
	}

	// NaN quality maps to zero rather than corrupting ordering
	updated, err := store.RecordBest(ctx, "nan", math.NaN(), "s2", 5, 90.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated {
		t.Error("expected first record to succeed")
	}
	entry, err := store.Rank(ctx, "nan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Quality != 0 {
		t.Errorf("expected NaN quality stored as 0, got %f", entry.Quality)
	}
}

func TestTreapStore_ExtremeQualityValues(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	values := []struct {
		id      string
		quality float64
	}{
		{"zero", 0.0},
		{"perfect", 100.0},
		{"tiny", 0.000000001},
		{"near", 99.999999999},
	}

	for _, v := range values {
		if _, err := store.RecordBest(ctx, v.id, v.quality, "s", 1, 100.0); err != nil {
			t.Fatalf("unexpected error for %s: %v", v.id, err)
		}
	}

	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	expectedOrder := []string{"perfect", "near", "tiny", "zero"}
	for i, id := range expectedOrder {
		if entries[i].TraineeID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, entries[i].TraineeID)
		}
	}

	// Fixed-point round trip preserves values at this precision
	for _, v := range values {
		entry, err := store.Rank(ctx, v.id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !floatEqual(entry.Quality, v.quality) {
			t.Errorf("%s: expected quality %v, got %v", v.id, v.quality, entry.Quality)
		}
	}
}

func TestTreapStore_EmptyAndSingleElement(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	// Empty store returns an empty TopN, not an error
	entries, err := store.TopN(ctx, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected 0 entries, got %d", len(entries))
	}

	// Single element
	if _, err := store.RecordBest(ctx, "solo", 77.7, "s1", 25, 107.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err = store.TopN(ctx, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Rank != 1 || entries[0].TraineeID != "solo" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestTreapStore_RankCorrectnessUnderStress(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	const n = 500
	r := rand.New(rand.NewSource(42))

	want := make(map[string]float64, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("trainee%04d", i)
		quality := r.Float64() * 100
		want[id] = quality
		if _, err := store.RecordBest(ctx, id, quality, "s", i, 110.0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Random re-records; only improvements should take effect
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("trainee%04d", r.Intn(n))
		quality := r.Float64() * 100
		updated, err := store.RecordBest(ctx, id, quality, "s2", i, 110.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated {
			want[id] = quality
		}
	}

	if count := store.Count(ctx); count != n {
		t.Fatalf("expected count %d, got %d", n, count)
	}

	entries, err := store.TopN(ctx, n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != n {
		t.Fatalf("expected %d entries, got %d", n, len(entries))
	}

	for i := 0; i < len(entries)-1; i++ {
		if entries[i].Quality < entries[i+1].Quality {
			t.Fatalf("ordering violated at %d: %f < %f", i, entries[i].Quality, entries[i+1].Quality)
		}
	}

	for _, entry := range entries {
		if !floatEqual(entry.Quality, want[entry.TraineeID]) {
			t.Errorf("%s: expected quality %v, got %v", entry.TraineeID, want[entry.TraineeID], entry.Quality)
		}
	}

	// Spot-check Rank agrees with TopN positions
	for i := 0; i < 10; i++ {
		sample := entries[r.Intn(len(entries))]
		ranked, err := store.Rank(ctx, sample.TraineeID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ranked.Rank != sample.Rank {
			t.Errorf("%s: Rank reported %d, TopN reported %d", sample.TraineeID, ranked.Rank, sample.Rank)
		}
	}
}

func TestTreapStore_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := NewTreapStore(ctx)
	defer store.Close()

	if _, err := store.RecordBest(ctx, "trainee1", 80.0, "s1", 30, 110.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Cancelling the construction context stops the metrics updater but the
	// store itself remains queryable.
	cancel()
	time.Sleep(10 * time.Millisecond)

	entry, err := store.Rank(context.Background(), "trainee1")
	if err != nil {
		t.Fatalf("unexpected error after cancel: %v", err)
	}
	if entry.Quality != 80.0 {
		t.Errorf("expected quality 80.0, got %f", entry.Quality)
	}
}

func TestTreapStore_CloseBehavior(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)

	if _, err := store.RecordBest(ctx, "trainee1", 65.0, "s1", 28, 104.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	// Close is idempotent
	if err := store.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}

	// Reads still work after close
	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}
}

func TestTreapStore_MetricsInterval(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx, WithMetricsUpdateInterval(10*time.Millisecond))
	defer store.Close()

	if _, err := store.RecordBest(ctx, "trainee1", 70.0, "s1", 26, 102.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Give the updater a couple of ticks; it must not race with writes.
	time.Sleep(35 * time.Millisecond)

	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}
}

func BenchmarkTreapStore_RecordBest(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	r := rand.New(rand.NewSource(1))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := fmt.Sprintf("trainee%d", i%10000)
		if _, err := store.RecordBest(ctx, id, r.Float64()*100, "s", i, 110.0); err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
	}
}

func BenchmarkTreapStore_TopN(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		id := fmt.Sprintf("trainee%d", i)
		if _, err := store.RecordBest(ctx, id, r.Float64()*100, "s", i, 110.0); err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.TopN(ctx, 20); err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
	}
}

func BenchmarkTreapStore_MixedWorkload(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("trainee%d", i)
		if _, err := store.RecordBest(ctx, id, r.Float64()*100, "s", i, 110.0); err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		localRand := rand.New(rand.NewSource(time.Now().UnixNano()))
		i := 0
		for pb.Next() {
			switch i % 4 {
			case 0:
				id := fmt.Sprintf("trainee%d", localRand.Intn(1000))
				_, _ = store.RecordBest(ctx, id, localRand.Float64()*100, "s", i, 110.0)
			case 1:
				_, _ = store.TopN(ctx, 10)
			case 2:
				id := fmt.Sprintf("trainee%d", localRand.Intn(1000))
				_, _ = store.Rank(ctx, id)
			case 3:
				store.Count(ctx)
			}
			i++
		}
	})
}
