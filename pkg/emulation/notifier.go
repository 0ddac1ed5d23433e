package emulation

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
)

// DefaultSignalBuffer is the Notifier queue size used when none is given.
const DefaultSignalBuffer = 64

// Notifier is an Observer that hands events to a background goroutine, where
// they are logged and counted. Observe never blocks: when the queue is full
// the event is dropped and counted.
type Notifier struct {
	events  chan Event
	logger  *slog.Logger
	metrics *Metrics
	dropped atomic.Uint64
}

type NotifierOption func(*Notifier)

func WithLogger(logger *slog.Logger) NotifierOption {
	return func(n *Notifier) {
		n.logger = logger
	}
}

func WithMetrics(m *Metrics) NotifierOption {
	return func(n *Notifier) {
		n.metrics = m
	}
}

// NewNotifier creates a Notifier with room for buffer pending events.
func NewNotifier(buffer int, opts ...NotifierOption) *Notifier {
	if buffer <= 0 {
		buffer = DefaultSignalBuffer
	}
	n := &Notifier{events: make(chan Event, buffer)}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	n.logger = n.logger.With("component", "emulation")
	return n
}

// Observe queues e without blocking.
func (n *Notifier) Observe(e Event) {
	select {
	case n.events <- e:
	default:
		n.dropped.Add(1)
		if n.metrics != nil {
			n.metrics.IncDropped()
		}
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (n *Notifier) Dropped() uint64 {
	return n.dropped.Load()
}

// Run consumes events until ctx is done, then handles whatever is already
// queued and returns nil.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case e := <-n.events:
			n.handle(ctx, e)
		case <-ctx.Done():
			n.drain()
			return nil
		}
	}
}

func (n *Notifier) drain() {
	for {
		select {
		case e := <-n.events:
			n.handle(context.Background(), e)
		default:
			return
		}
	}
}

func (n *Notifier) handle(ctx context.Context, e Event) {
	switch e.Signal {
	case SignalFrame:
		if n.metrics != nil {
			n.metrics.ObserveFrame(e)
		}
		n.logger.DebugContext(ctx, "frame answered",
			"command", e.Command.String(), "status", e.Status.Hex(), "length", e.Length, "inactive", e.Inactive)
		return
	case SignalReaderDetected:
		n.logger.InfoContext(ctx, "card reader detected")
	case SignalWriteAttempted:
		n.logger.WarnContext(ctx, "reader tried to write to the emulated card")
	case SignalSessionEnded:
		n.logger.InfoContext(ctx, "reader session ended", "reason", e.Reason.String())
	}
	if n.metrics != nil {
		n.metrics.ObserveSignal(e.Signal)
	}
}
