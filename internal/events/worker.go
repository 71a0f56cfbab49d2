package events

import (
	"context"
	"log/slog"
)

// Sink delivers events somewhere durable or observable: the journal store,
// a Kafka topic, a test recorder.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Worker decouples event emission from delivery. Domain steps enqueue
// without blocking; a background goroutine fans events out to every sink.
// A full inbox drops the event and logs it rather than stalling a
// registration.
type Worker struct {
	inbox  chan Event
	sinks  []Sink
	logger *slog.Logger
}

// NewWorker constructs a worker with a bounded inbox.
func NewWorker(logger *slog.Logger, buffer int, sinks ...Sink) *Worker {
	if buffer <= 0 {
		buffer = 256
	}
	return &Worker{
		inbox:  make(chan Event, buffer),
		sinks:  sinks,
		logger: logger,
	}
}

// Emit implements Publisher. It never blocks the emitting step.
func (w *Worker) Emit(ctx context.Context, event Event) {
	select {
	case w.inbox <- event:
	default:
		w.logger.WarnContext(ctx, "event inbox full, dropping event",
			"type", event.Type,
			"name_hash", event.NameHash,
		)
	}
}

// Run drains the inbox until the context is cancelled, then flushes
// whatever is still queued.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return ctx.Err()
		case event := <-w.inbox:
			w.deliver(ctx, event)
		}
	}
}

func (w *Worker) flush() {
	for {
		select {
		case event := <-w.inbox:
			w.deliver(context.Background(), event)
		default:
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, event Event) {
	for _, sink := range w.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			w.logger.ErrorContext(ctx, "event delivery failed",
				"type", event.Type,
				"name_hash", event.NameHash,
				"error", err,
			)
		}
	}
}
