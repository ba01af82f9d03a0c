package news

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sink receives every article after it has been stored, e.g. a NATS
// publisher or an inline recall indexer.
type Sink interface {
	Notify(ctx context.Context, a Article) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, a Article) error

func (f SinkFunc) Notify(ctx context.Context, a Article) error { return f(ctx, a) }

// Recorder appends articles to the feed without ever failing the request
// that produced them.
type Recorder struct {
	store   Store
	sinks   []Sink
	logger  *slog.Logger
	timeout time.Duration

	wg sync.WaitGroup
}

// NewRecorder creates a Recorder writing to store and notifying sinks.
func NewRecorder(store Store, logger *slog.Logger, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, sinks: sinks, logger: logger, timeout: 30 * time.Second}
}

// Record stores a synchronously and hands it to the sinks in the background.
// The caller's cancellation does not abort the sinks.
func (r *Recorder) Record(ctx context.Context, a Article) {
	if err := r.store.Add(ctx, a); err != nil {
		r.logger.Error("failed to record news article", "id", a.ID, "source", a.Source, "err", err)
		return
	}
	if len(r.sinks) == 0 {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		for _, s := range r.sinks {
			if err := s.Notify(ctx, a); err != nil {
				r.logger.Warn("news sink failed", "id", a.ID, "err", err)
			}
		}
	}()
}

// Close waits for pending sink notifications.
func (r *Recorder) Close() { r.wg.Wait() }
