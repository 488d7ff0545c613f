// Package worker defines the dispatch workers that move outbound signals
// from the queue to the registered sinks.
package worker

import (
	"github.com/resqlab/pulsecoach/pkg/logger"
)

// Option applies a configuration option to the DispatchWorker.
type Option func(*DispatchWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *DispatchWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *DispatchWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}
