// Package worker defines the dispatch workers that move outbound signals
// from the queue to the registered sinks.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/resqlab/pulsecoach/internal/adapters/mq/queue"
	"github.com/resqlab/pulsecoach/internal/adapters/sink"
	"github.com/resqlab/pulsecoach/pkg/logger"
	"github.com/resqlab/pulsecoach/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 2
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Signal abstracts what workers read off the queue.
type Signal = queue.Signal

// Queue defines how workers receive signals.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Signal
}

// Worker delivers signals to a sink until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// DispatchWorker implements Worker for delivering signals.
type DispatchWorker struct {
	queue Queue
	sink  sink.Sink
	name  string

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewDispatchWorker creates a new worker with configuration options.
func NewDispatchWorker(q Queue, s sink.Sink, opts ...Option) *DispatchWorker {
	w := &DispatchWorker{
		queue:    q,
		sink:     s,
		name:     "dispatch",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("dispatch"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "dispatch" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *DispatchWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	signalChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case signal, ok := <-signalChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			if err := w.deliver(ctx, signal); err != nil {
				w.logger.Error(ctx, "error delivering signal", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *DispatchWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// deliver hands one signal to the sink and records the outcome.
func (w *DispatchWorker) deliver(ctx context.Context, signal Signal) error {
	start := time.Now()
	defer func() {
		metrics.RecordDispatchLatency(float64(time.Since(start).Milliseconds()))
	}()

	if signal.IsBeat() {
		metrics.RecordMetronomeBeat()
	} else if signal.Feedback != nil {
		metrics.RecordFeedbackEmitted(signal.Feedback.Kind)
	}

	if err := w.sink.Deliver(ctx, signal); err != nil {
		metrics.RecordSinkError()
		metrics.RecordErrorByComponent("worker", "sink_error")
		w.logger.Error(ctx, "sink delivery failed",
			logger.String("sink", w.sink.Name()),
			logger.String("sessionID", signal.SessionID),
			logger.Error(err),
		)
		return fmt.Errorf("sink %s delivery failed: %w", w.sink.Name(), err)
	}

	return nil
}

// Pool manages multiple dispatch workers draining one queue.
type Pool struct {
	workers []*DispatchWorker
	queue   Queue
	sink    sink.Sink

	// Shutdown control
	shutdown chan struct{}

	// Logging
	logger logger.Logger
}

// NewPool creates a new dispatch pool.
func NewPool(workerCount int, q Queue, s sink.Sink) *Pool {
	if workerCount < 1 {
		workerCount = min(defaultWorkerCount, runtime.NumCPU())
	}

	pool := &Pool{
		workers:  make([]*DispatchWorker, workerCount),
		queue:    q,
		sink:     s,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("dispatch-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewDispatchWorker(
			q,
			s,
			WithName("dispatch-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerActiveCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	close(p.shutdown)

	for _, worker := range p.workers {
		select {
		case <-worker.shutdown:
			// Already signalled
		default:
			close(worker.shutdown)
		}
	}

	for _, worker := range p.workers {
		select {
		case <-worker.done:
			// Worker finished
		case <-time.After(workerShutdownTimeout):
			// Worker timeout
		}
	}
	metrics.UpdateWorkerActiveCount(0)
}

// Shutdown gracefully shuts down the entire pool, closing the queue first
// so no new signals arrive.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	close(p.shutdown)

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	metrics.UpdateWorkerActiveCount(0)
	return nil
}
