// Package repository defines the trainee ranking store interface and errors.
package repository

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/resqlab/pulsecoach/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: quality DESC, then traineeID ASC (deterministic). The BST
// comparator treats "less" as "ranks earlier", so an in-order traversal
// yields the ranking from best to worst.

// qualityScale controls fixed-point scaling from float64. Quality scores
// live in [0,100], so a fixed scale keeps tie comparison exact.
const qualityScale = 1_000_000_000

type qualityFP int64

func toFixedPoint(x float64) qualityFP {
	if math.IsNaN(x) {
		return 0
	}
	return qualityFP(math.Round(x * qualityScale))
}

func toFloat(x qualityFP) float64 {
	return float64(x) / qualityScale
}

// record stores the fixed-point quality plus the session it came from.
type record struct {
	quality      qualityFP
	sessionID    string
	compressions int
	avgBPM       float64
}

// treap node
type node struct {
	id      string
	quality qualityFP
	prio    uint64
	left    *node
	right   *node
	size    int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aQuality, aID) ranks earlier than (bQuality, bID).
func less(aQuality qualityFP, aID string, bQuality qualityFP, bID string) bool {
	if aQuality != bQuality {
		return aQuality > bQuality // higher quality ranks earlier
	}
	return aID < bID // tie-breaker by id asc
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// qualityToPriority keeps higher-quality nodes near the treap root.
func qualityToPriority(q qualityFP) uint64 {
	const offset = uint64(1) << 63
	return uint64(q) + offset
}

func insert(n *node, id string, quality qualityFP) *node {
	if n == nil {
		return &node{id: id, quality: quality, prio: qualityToPriority(quality), size: 1}
	}
	if less(quality, id, n.quality, n.id) {
		n.left = insert(n.left, id, quality)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, quality)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, quality qualityFP) *node {
	if n == nil {
		return nil
	}
	if quality == n.quality && id == n.id {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, quality)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, quality)
		}
	} else if less(quality, id, n.quality, n.id) {
		n.left = deleteNode(n.left, id, quality)
	} else {
		n.right = deleteNode(n.right, id, quality)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, records map[string]record, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}

	collectTopN(n.left, limit, records, out)

	if len(*out) < limit {
		if rec, exists := records[n.id]; exists {
			*out = append(*out, Entry{
				TraineeID:    n.id,
				Quality:      toFloat(rec.quality),
				SessionID:    rec.sessionID,
				Compressions: rec.compressions,
				AvgBPM:       rec.avgBPM,
			})
		}
	}

	if len(*out) < limit {
		collectTopN(n.right, limit, records, out)
	}
}

// TreapStore is the in-memory ranking store.
type TreapStore struct {
	mu   sync.RWMutex
	root *node
	byID map[string]record

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		metricsUpdateInterval: 5 * time.Second,
		byID:                  make(map[string]record),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.stopChan = make(chan struct{})
	s.startMetricsUpdater(ctx)

	return s
}

// Close gracefully shuts down the background metrics goroutine.
func (s *TreapStore) Close() error {
	select {
	case <-s.stopChan:
		// Channel already closed
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// RecordBest implements Store.RecordBest with O(log n) expected time.
func (s *TreapStore) RecordBest(ctx context.Context, traineeID string, quality float64, sessionID string, compressions int, avgBPM float64) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	nq := toFixedPoint(quality)

	s.mu.Lock()
	if old, ok := s.byID[traineeID]; ok {
		if nq <= old.quality { // not an improvement
			s.mu.Unlock()
			return false, nil
		}
		s.root = deleteNode(s.root, traineeID, old.quality)
	}
	s.byID[traineeID] = record{quality: nq, sessionID: sessionID, compressions: compressions, avgBPM: avgBPM}
	s.root = insert(s.root, traineeID, nq)
	total := len(s.byID)
	s.mu.Unlock()

	metrics.UpdateRankedTrainees(total)
	return true, nil
}

// Rank returns the current rank and best session for a trainee.
func (s *TreapStore) Rank(ctx context.Context, traineeID string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.byID[traineeID]; !ok {
		return Entry{}, ErrNotFound
	}

	allEntries := make([]Entry, 0, len(s.byID))
	collectAll(s.root, s.byID, &allEntries)
	sortEntries(allEntries)
	assignRanksWithTies(allEntries)

	for _, entry := range allEntries {
		if entry.TraineeID == traineeID {
			return entry, nil
		}
	}

	return Entry{}, ErrNotFound
}

// TopN returns the top N entries ordered by quality desc.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, n)
	collectTopN(s.root, n, s.byID, &out)
	assignRanksWithTies(out)
	return out, nil
}

// Count returns the total number of trainees.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// startMetricsUpdater starts a background goroutine that refreshes
// ranking gauges.
func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.mu.RLock()
				total := len(s.byID)
				s.mu.RUnlock()
				metrics.UpdateRankedTrainees(total)
			}
		}
	}()
}

// collectAll appends all entries in rank order.
func collectAll(n *node, byID map[string]record, out *[]Entry) {
	if n == nil {
		return
	}
	collectAll(n.left, byID, out)
	if rec, ok := byID[n.id]; ok {
		*out = append(*out, Entry{
			TraineeID:    n.id,
			Quality:      toFloat(rec.quality),
			SessionID:    rec.sessionID,
			Compressions: rec.compressions,
			AvgBPM:       rec.avgBPM,
		})
	}
	collectAll(n.right, byID, out)
}

// sortEntries sorts by quality desc then traineeID asc, matching TopN.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Quality != entries[j].Quality {
			return entries[i].Quality > entries[j].Quality
		}
		return entries[i].TraineeID < entries[j].TraineeID
	})
}

// assignRanksWithTies gives equal quality equal rank; the next distinct
// quality takes the next consecutive rank.
func assignRanksWithTies(entries []Entry) {
	if len(entries) == 0 {
		return
	}

	currentRank := 1
	for i := 0; i < len(entries); i++ {
		entries[i].Rank = currentRank

		sameCount := 1
		for j := i + 1; j < len(entries) && entries[j].Quality == entries[i].Quality; j++ {
			entries[j].Rank = currentRank
			sameCount++
		}

		currentRank++
		i += sameCount - 1
	}
}
