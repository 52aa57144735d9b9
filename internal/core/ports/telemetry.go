package ports

import (
	"context"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
)

// TickObserver is notified synchronously after every simulator tick.
// Implementations must not block; slow consumers hand off to their own goroutines.
type TickObserver interface {
	OnTick(event domain.NetworkEvent, point domain.AggregatePoint)
}

// TickObserverFunc adapts a function to TickObserver.
type TickObserverFunc func(event domain.NetworkEvent, point domain.AggregatePoint)

func (f TickObserverFunc) OnTick(event domain.NetworkEvent, point domain.AggregatePoint) {
	f(event, point)
}

// EventPublisher forwards simulated events to an external broker.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.NetworkEvent) error
	Close()
}

// TelemetryReader exposes consistent snapshots of the simulated telemetry.
type TelemetryReader interface {
	Events() []domain.NetworkEvent
	Points() []domain.AggregatePoint
	Event(id string) (domain.NetworkEvent, error)
}
