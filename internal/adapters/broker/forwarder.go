package broker

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
	"github.com/lcalzada-xor/aegis/internal/core/ports"
	"github.com/lcalzada-xor/aegis/internal/telemetry"
)

// DefaultQueueSize bounds the events waiting to be published.
const DefaultQueueSize = 256

// Forwarder hands simulator events to an EventPublisher on its own goroutine
// so that ticks never wait on the broker. It implements ports.TickObserver.
// When the queue is full, events are dropped and counted.
type Forwarder struct {
	pub     ports.EventPublisher
	queue   chan domain.NetworkEvent
	dropped atomic.Int64
}

func NewForwarder(pub ports.EventPublisher, queueSize int) *Forwarder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Forwarder{
		pub:   pub,
		queue: make(chan domain.NetworkEvent, queueSize),
	}
}

func (f *Forwarder) OnTick(event domain.NetworkEvent, _ domain.AggregatePoint) {
	select {
	case f.queue <- event:
	default:
		f.dropped.Add(1)
		telemetry.BrokerPublishErrors.Inc()
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (f *Forwarder) Dropped() int64 {
	return f.dropped.Load()
}

// Run publishes queued events until ctx is done, then closes the publisher.
func (f *Forwarder) Run(ctx context.Context) {
	defer f.pub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-f.queue:
			if err := f.pub.Publish(ctx, event); err != nil {
				telemetry.BrokerPublishErrors.Inc()
				slog.Warn("Failed to publish event", "id", event.ID, "error", err)
			}
		}
	}
}
