// Package worker runs the single command loop that serializes every state
// transition of the service.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/hurdletime/pkg/logger"
	"github.com/okian/hurdletime/pkg/metrics"
)

// Command is one unit of work executed inside the loop.
type Command func(ctx context.Context)

// Queue defines how the worker receives commands.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Command
}

// Worker executes commands one at a time.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called,
	// or the queue is closed and drained.
	Run(ctx context.Context)

	// Shutdown stops the loop without draining.
	Shutdown(ctx context.Context) error

	// Done is closed once Run has returned.
	Done() <-chan struct{}
}

// InMemoryWorker implements Worker for commands read off an in-memory queue.
type InMemoryWorker struct {
	queue Queue
	name  string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	commands := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case cmd, ok := <-commands:
			if !ok {
				return
			}
			w.execute(ctx, cmd)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

// execute runs one command. A panicking command is logged and the loop
// keeps going.
func (w *InMemoryWorker) execute(ctx context.Context, cmd Command) {
	start := time.Now()
	defer func() {
		metrics.RecordCommandLatency(float64(time.Since(start).Microseconds()) / 1000)
		if r := recover(); r != nil {
			w.logger.Error(ctx, "command panicked", logger.Any("panic", r))
		}
	}()
	cmd(ctx)
}
