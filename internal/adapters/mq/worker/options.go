// Package worker drains the batch queue into the snapshot store.
package worker

import (
	"context"

	"github.com/nbunney/rrcompanion/internal/domain/model"
	"github.com/nbunney/rrcompanion/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithOnApplied registers a callback run after every successfully applied batch.
func WithOnApplied(fn func(ctx context.Context, b model.Batch)) Option {
	return func(w *InMemoryWorker) {
		w.onApplied = fn
	}
}
