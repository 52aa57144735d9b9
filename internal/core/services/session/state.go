// Package session holds the process-wide dashboard state: the telemetry rings
// and the active view. All mutation goes through State's update operations.
package session

import (
	"fmt"
	"sync"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
)

// Default ring capacities.
const (
	DefaultEventCapacity = 50
	DefaultPointCapacity = 20
)

// ViewChangeFunc is called after the active view changed.
type ViewChangeFunc func(from, to domain.View)

// Snapshot is a consistent copy of the state at one instant.
type Snapshot struct {
	ActiveView domain.View
	Events     []domain.NetworkEvent
	Points     []domain.AggregatePoint
}

// State owns the event ring, the point ring and the active view.
type State struct {
	mu         sync.RWMutex
	events     *domain.Ring[domain.NetworkEvent]
	points     *domain.Ring[domain.AggregatePoint]
	activeView domain.View

	listenersMu sync.Mutex
	listeners   []ViewChangeFunc

	// navMu orders view transitions with their delivery to listeners.
	navMu sync.Mutex
}

// NewState creates an empty state showing the default view.
func NewState(eventCapacity, pointCapacity int) *State {
	if eventCapacity <= 0 {
		eventCapacity = DefaultEventCapacity
	}
	if pointCapacity <= 0 {
		pointCapacity = DefaultPointCapacity
	}
	return &State{
		events:     domain.NewRing[domain.NetworkEvent](eventCapacity),
		points:     domain.NewRing[domain.AggregatePoint](pointCapacity),
		activeView: domain.DefaultView,
	}
}

// AppendEvent pushes an event, evicting the oldest beyond capacity.
func (s *State) AppendEvent(e domain.NetworkEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events.Push(e)
}

// AppendPoint pushes an aggregate point, evicting the oldest beyond capacity.
func (s *State) AppendPoint(p domain.AggregatePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points.Push(p)
}

// RecordTick appends the event and the point of one tick atomically, so
// readers never observe one ring advanced without the other.
func (s *State) RecordTick(e domain.NetworkEvent, p domain.AggregatePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events.Push(e)
	s.points.Push(p)
}

// PointCapacity returns the capacity of the point ring.
func (s *State) PointCapacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.points.Cap()
}

// LastPoint returns the newest aggregate point.
func (s *State) LastPoint() (domain.AggregatePoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.points.Last()
}

// HasEvent reports whether an event with id is still in the ring.
func (s *State) HasEvent(id string) bool {
	_, err := s.Event(id)
	return err == nil
}

// Event looks up an event by id.
func (s *State) Event(id string) (domain.NetworkEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events.Find(func(e domain.NetworkEvent) bool { return e.ID == id })
	if !ok {
		return domain.NetworkEvent{}, fmt.Errorf("%w: %s", domain.ErrEventNotFound, id)
	}
	return e, nil
}

// Events returns the event ring, oldest first.
func (s *State) Events() []domain.NetworkEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events.Items()
}

// Points returns the point ring, oldest first.
func (s *State) Points() []domain.AggregatePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.points.Items()
}

// Snapshot copies the whole state under one lock.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ActiveView: s.activeView,
		Events:     s.events.Items(),
		Points:     s.points.Items(),
	}
}

// ActiveView returns the selected view.
func (s *State) ActiveView() domain.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeView
}

// SetActiveView selects a view. Listeners run only when the view actually
// changed, outside the state lock, and see transitions in the order they were
// applied. A listener must not call SetActiveView.
func (s *State) SetActiveView(v domain.View) error {
	if _, err := domain.ParseView(string(v)); err != nil {
		return err
	}

	s.navMu.Lock()
	defer s.navMu.Unlock()

	s.mu.Lock()
	from := s.activeView
	s.activeView = v
	s.mu.Unlock()

	if from == v {
		return nil
	}

	s.listenersMu.Lock()
	listeners := append([]ViewChangeFunc(nil), s.listeners...)
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(from, v)
	}
	return nil
}

// OnViewChange registers a listener for active-view transitions.
func (s *State) OnViewChange(fn ViewChangeFunc) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}
