package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	signalqueue "github.com/resqlab/pulsecoach/internal/adapters/mq/queue"
	workerpool "github.com/resqlab/pulsecoach/internal/adapters/mq/worker"
	repository "github.com/resqlab/pulsecoach/internal/adapters/repository"
	"github.com/resqlab/pulsecoach/internal/adapters/sink"
	"github.com/resqlab/pulsecoach/internal/domain/detect"
	"github.com/resqlab/pulsecoach/internal/domain/feedback"
	"github.com/resqlab/pulsecoach/internal/domain/guide"
	"github.com/resqlab/pulsecoach/internal/domain/metronome"
	"github.com/resqlab/pulsecoach/internal/domain/model"
	"github.com/resqlab/pulsecoach/internal/domain/pose"
	"github.com/resqlab/pulsecoach/internal/domain/rate"
	"github.com/resqlab/pulsecoach/internal/domain/score"
	"github.com/resqlab/pulsecoach/pkg/logger"
	"github.com/resqlab/pulsecoach/pkg/metrics"
)

// sessionHandle pairs a session engine with the cancel for its beat pump.
type sessionHandle struct {
	session *Session
	clock   *metronome.Clock
	cancel  context.CancelFunc
}

// Service implements the API dependencies for the coaching system. It
// owns the live sessions, the trainee ranking store, the guide and the
// outbound dispatch pipeline.
type Service struct {
	mu sync.RWMutex

	// Core components
	ranking     repository.Store
	signalQueue signalqueue.Queue
	pool        *workerpool.Pool
	outputs     *sink.Broadcaster
	coach       guide.Guide

	// Configuration
	workerCount    int
	queueSize      int
	targetBPM      float64
	beatWidth      float64
	depthThreshold float64
	minInterval    float64
	maxInterval    float64
	windowCapacity int
	rateBandLow    float64
	rateBandHigh   float64
	depthFloor     float64
	placementFloor float64
	placementScale float64
	cooldowns      map[feedback.Category]float64
	weights        QualityWeights
	extraSinks     []sink.Sink

	// State
	sessions map[string]*sessionHandle
	started  bool
	runCtx   context.Context
	stopRun  context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of dispatch workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the outbound signal queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithTargetBPM sets the metronome reference tempo for new sessions.
func WithTargetBPM(bpm float64) Option {
	return func(s *Service) {
		if bpm > 0 {
			s.targetBPM = bpm
		}
	}
}

// WithBeatWidth sets the metronome flash window in seconds.
func WithBeatWidth(seconds float64) Option {
	return func(s *Service) {
		if seconds > 0 {
			s.beatWidth = seconds
		}
	}
}

// WithDepthThreshold sets the press threshold for compression detection.
func WithDepthThreshold(threshold float64) Option {
	return func(s *Service) {
		if threshold > 0 && threshold < 1 {
			s.depthThreshold = threshold
		}
	}
}

// WithIntervalBounds sets the plausible compression interval range in seconds.
func WithIntervalBounds(minSecs, maxSecs float64) Option {
	return func(s *Service) {
		if minSecs > 0 && maxSecs > minSecs {
			s.minInterval = minSecs
			s.maxInterval = maxSecs
		}
	}
}

// WithWindowCapacity sets how many recent compressions feed the rate estimate.
func WithWindowCapacity(capacity int) Option {
	return func(s *Service) {
		if capacity > 1 {
			s.windowCapacity = capacity
		}
	}
}

// WithRateBand sets the acceptable bpm range for coaching.
func WithRateBand(low, high float64) Option {
	return func(s *Service) {
		if low > 0 && high > low {
			s.rateBandLow = low
			s.rateBandHigh = high
		}
	}
}

// WithDepthFloor sets the depth score below which the depth advisory fires.
func WithDepthFloor(floor float64) Option {
	return func(s *Service) {
		if floor > 0 && floor <= 1 {
			s.depthFloor = floor
		}
	}
}

// WithPlacementFloor sets the placement score below which the placement
// advisory fires.
func WithPlacementFloor(floor float64) Option {
	return func(s *Service) {
		if floor > 0 && floor <= 1 {
			s.placementFloor = floor
		}
	}
}

// WithPlacementScale sets the wrist-distance scale of the placement score.
func WithPlacementScale(scale float64) Option {
	return func(s *Service) {
		if scale > 0 {
			s.placementScale = scale
		}
	}
}

// WithCooldown overrides the cooldown for one feedback category, in seconds.
func WithCooldown(category feedback.Category, seconds float64) Option {
	return func(s *Service) {
		if seconds >= 0 {
			s.cooldowns[category] = seconds
		}
	}
}

// WithQualityWeights sets the session quality blend weights.
func WithQualityWeights(weights QualityWeights) Option {
	return func(s *Service) {
		if weights.Rate >= 0 && weights.Depth >= 0 && weights.Placement >= 0 {
			s.weights = weights
		}
	}
}

// WithGuide sets the knowledge source for coaching texts and Q&A.
func WithGuide(g guide.Guide) Option {
	return func(s *Service) {
		if g != nil {
			s.coach = g
		}
	}
}

// WithSinks registers additional outbound sinks next to the defaults.
func WithSinks(sinks ...sink.Sink) Option {
	return func(s *Service) {
		s.extraSinks = append(s.extraSinks, sinks...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    2,
		queueSize:      4096,
		targetBPM:      110,
		beatWidth:      0.1,
		depthThreshold: 0.5,
		minInterval:    0.3,
		maxInterval:    1.0,
		windowCapacity: 10,
		rateBandLow:    100,
		rateBandHigh:   120,
		depthFloor:     0.7,
		placementFloor: 0.8,
		placementScale: 10,
		cooldowns:      make(map[feedback.Category]float64),
		weights:        QualityWeights{Rate: 0.5, Depth: 0.25, Placement: 0.25},
		sessions:       make(map[string]*sessionHandle),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	if s.coach == nil {
		s.coach = guide.NewStaticGuide(
			guide.WithRateBand(s.rateBandLow, s.rateBandHigh),
		)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting coaching service...")

	// Session beat pumps and dispatch workers run on this context so they
	// survive the request that started them.
	s.runCtx, s.stopRun = context.WithCancel(context.WithoutCancel(ctx))

	s.ranking = repository.NewTreapStore(s.runCtx)
	s.logger.Info(ctx, "using treap ranking store")

	s.signalQueue = signalqueue.NewInMemoryQueue(
		signalqueue.WithCapacity(s.queueSize),
		signalqueue.WithBufferSize(s.queueSize),
	)

	s.outputs = sink.NewBroadcaster(sink.NewVisual(), sink.NewSpoken())
	for _, extra := range s.extraSinks {
		s.outputs.Add(extra)
	}

	s.pool = workerpool.NewPool(s.workerCount, s.signalQueue, s.outputs)
	s.pool.Start(s.runCtx)

	s.started = true
	s.logger.Info(ctx, "coaching service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Float64("targetBPM", s.targetBPM),
	)

	return nil
}

// Stop gracefully shuts down the service, ending all live sessions
// without recording them.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping coaching service...")

	for id, handle := range s.sessions {
		handle.clock.Stop()
		handle.cancel()
		delete(s.sessions, id)
	}
	metrics.UpdateActiveSessions(0)

	if s.pool != nil {
		s.pool.Stop()
	}

	if s.ranking != nil {
		if closer, ok := s.ranking.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}

	if q, ok := s.signalQueue.(*signalqueue.InMemoryQueue); ok {
		_ = q.Close()
	}

	if s.stopRun != nil {
		s.stopRun()
	}

	s.started = false
	s.logger.Info(ctx, "coaching service stopped")
}

// StartSession creates a new live session for a trainee and returns its id.
func (s *Service) StartSession(ctx context.Context, traineeID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return "", ErrNotStarted
	}
	if traineeID == "" {
		return "", ErrMissingTrainee
	}

	id := uuid.NewString()
	clock := metronome.NewClock(
		metronome.WithTargetBPM(s.targetBPM),
		metronome.WithBeatWidth(s.beatWidth),
	)
	session := NewSession(
		id,
		traineeID,
		score.NewScorer(score.WithPlacementScale(s.placementScale)),
		detect.NewDetector(
			detect.WithDepthThreshold(s.depthThreshold),
			detect.WithIntervalBounds(s.minInterval, s.maxInterval),
			detect.WithWindowCapacity(s.windowCapacity),
		),
		rate.NewEstimator(),
		s.newController(),
		clock,
		s.weights,
	)

	pumpCtx, cancel := context.WithCancel(s.runCtx)
	s.sessions[id] = &sessionHandle{session: session, clock: clock, cancel: cancel}
	go s.pumpBeats(pumpCtx, id, traineeID, clock)

	metrics.UpdateActiveSessions(len(s.sessions))
	s.logger.Info(ctx, "session started",
		logger.String("sessionID", id),
		logger.String("traineeID", traineeID),
	)

	return id, nil
}

// newController builds a cadence controller from the service configuration.
func (s *Service) newController() *feedback.Controller {
	opts := []feedback.Option{
		feedback.WithRateBand(s.rateBandLow, s.rateBandHigh),
		feedback.WithDepthFloor(s.depthFloor),
		feedback.WithPlacementFloor(s.placementFloor),
		feedback.WithMessenger(s.coach),
	}
	for category, seconds := range s.cooldowns {
		opts = append(opts, feedback.WithCooldown(category, seconds))
	}
	return feedback.NewController(opts...)
}

// pumpBeats forwards the session's metronome pulses into the dispatch
// queue until the session ends.
func (s *Service) pumpBeats(ctx context.Context, sessionID, traineeID string, clock *metronome.Clock) {
	for beat := range clock.Run(ctx) {
		b := beat
		s.signalQueue.Enqueue(ctx, model.Signal{
			SessionID: sessionID,
			TraineeID: traineeID,
			Beat:      &b,
		})
	}
}

// Submit runs one tick for a session: process the sample, collect due
// coaching messages, and report whether the metronome flash is open at
// the sample's timestamp. Feedback is also fanned out to the sinks.
func (s *Service) Submit(ctx context.Context, sessionID string, sample pose.Sample) (score.Snapshot, []feedback.Event, bool, error) {
	handle, err := s.handle(sessionID)
	if err != nil {
		return score.Snapshot{}, nil, false, err
	}

	snap := handle.session.ProcessSample(sample)
	events := handle.session.PollFeedback(sample.Timestamp)
	flash := handle.session.MetronomeTick(sample.Timestamp)

	for i := range events {
		ev := events[i]
		s.signalQueue.Enqueue(ctx, model.Signal{
			SessionID: sessionID,
			TraineeID: handle.session.TraineeID(),
			Feedback:  &ev,
		})
	}
	metrics.UpdateQueueSize(s.signalQueue.Len(ctx))

	return snap, events, flash, nil
}

// Snapshot returns a session's latest scores.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (score.Snapshot, error) {
	handle, err := s.handle(sessionID)
	if err != nil {
		return score.Snapshot{}, err
	}
	return handle.session.Snapshot(), nil
}

// ResetSession clears a session's analysis state without ending it.
func (s *Service) ResetSession(ctx context.Context, sessionID string) error {
	handle, err := s.handle(sessionID)
	if err != nil {
		return err
	}
	handle.session.Reset()
	s.logger.Info(ctx, "session reset", logger.String("sessionID", sessionID))
	return nil
}

// StopSession ends a session, computes its summary and records the
// trainee's quality score in the ranking store.
func (s *Service) StopSession(ctx context.Context, sessionID string) (model.Summary, error) {
	s.mu.Lock()
	handle, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	active := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return model.Summary{}, ErrSessionNotFound
	}

	handle.clock.Stop()
	handle.cancel()
	metrics.UpdateActiveSessions(active)

	summary := handle.session.Summarize()
	metrics.ObserveSessionQuality(summary.Quality)

	improved, err := s.ranking.RecordBest(ctx, summary.TraineeID, summary.Quality, summary.SessionID, summary.Compressions, summary.AvgBPM)
	if err != nil {
		s.logger.Error(ctx, "failed to record session in ranking store",
			logger.String("sessionID", sessionID),
			logger.Error(err),
		)
		return summary, err
	}

	s.logger.Info(ctx, "session stopped",
		logger.String("sessionID", sessionID),
		logger.String("traineeID", summary.TraineeID),
		logger.Int("compressions", summary.Compressions),
		logger.Float64("quality", summary.Quality),
		logger.Any("personalBest", improved),
	)

	return summary, nil
}

// TopN returns the best-ranked trainees.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingQueryLatency(float64(time.Since(start).Milliseconds()))
	}()
	return s.ranking.TopN(ctx, n)
}

// Rank returns a trainee's current standing.
func (s *Service) Rank(ctx context.Context, traineeID string) (repository.Entry, error) {
	return s.ranking.Rank(ctx, traineeID)
}

// Guide exposes the knowledge source for the walkthrough and Q&A endpoints.
func (s *Service) Guide() guide.Guide {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coach
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"targetBPM":   s.targetBPM,
	}

	if s.started {
		queueLen := s.signalQueue.Len(ctx)
		rankedTrainees := s.ranking.Count(ctx)

		stats["activeSessions"] = len(s.sessions)
		stats["queueLength"] = queueLen
		stats["rankedTrainees"] = rankedTrainees

		// Update metrics
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateRankedTrainees(rankedTrainees)
		metrics.UpdateActiveSessions(len(s.sessions))
	}

	return stats
}

// handle looks up a live session.
func (s *Service) handle(sessionID string) (*sessionHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, ErrNotStarted
	}
	handle, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return handle, nil
}
