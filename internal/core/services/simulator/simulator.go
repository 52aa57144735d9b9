// Package simulator fabricates the synthetic network telemetry shown by the
// dashboard. One event and one aggregate point are produced per tick.
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
	"github.com/lcalzada-xor/aegis/internal/core/ports"
	"github.com/lcalzada-xor/aegis/internal/core/services/schedule"
	"github.com/lcalzada-xor/aegis/internal/core/services/session"
)

// Seed ranges of the initial chart baseline and of derived points.
const (
	seedPacketsMin   = 200
	seedPacketsSpan  = 500
	seedThreatsSpan  = 50
	tickPacketsMin   = 300
	tickPacketsSpan  = 300
	pointLabelLayout = "15:04"
)

// Simulator drives the telemetry rings in session.State.
type Simulator struct {
	cfg       Config
	state     *session.State
	scheduler schedule.Scheduler
	rand      *rand.Rand
	now       func() time.Time
	observers []ports.TickObserver

	// rand is not safe for concurrent use; Tick and Seed hold genMu.
	genMu sync.Mutex

	lifeMu sync.Mutex
	stop   func()
}

// Option customizes a Simulator.
type Option func(*Simulator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithObserver registers a tick observer.
func WithObserver(o ports.TickObserver) Option {
	return func(s *Simulator) { s.observers = append(s.observers, o) }
}

// New creates a simulator. rng is the only source of randomness, so a seeded
// rng yields an exact, repeatable sequence.
func New(cfg Config, state *session.State, scheduler schedule.Scheduler, rng *rand.Rand, opts ...Option) *Simulator {
	s := &Simulator{
		cfg:       cfg,
		state:     state,
		scheduler: scheduler,
		rand:      rng,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRand returns a random source seeded with seed, or with the current time when seed is 0.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Seed fills the point ring with independent random points so the chart has a
// baseline before the first tick. Packets are drawn from [200,700), threats from [0,50).
func (s *Simulator) Seed() {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	capacity := s.state.PointCapacity()
	for i := 0; i < capacity; i++ {
		s.state.AppendPoint(domain.AggregatePoint{
			Label:   fmt.Sprintf("%d:00", i),
			Packets: s.rand.Intn(seedPacketsSpan) + seedPacketsMin,
			Threats: s.rand.Intn(seedThreatsSpan),
		})
	}
}

// Start schedules Tick every TickInterval. Calling Start on a running simulator is a no-op.
func (s *Simulator) Start(ctx context.Context) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.stop != nil {
		return
	}
	s.stop = s.scheduler.Every(ctx, s.cfg.TickInterval, func() { s.Tick() })
	slog.Info("Telemetry simulator started", "interval", s.cfg.TickInterval, "sources", len(s.cfg.Sources))
}

// Stop cancels the schedule. It is idempotent; no tick runs after it returns.
func (s *Simulator) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.stop == nil {
		return
	}
	s.stop()
	s.stop = nil
	slog.Info("Telemetry simulator stopped")
}

// Running reports whether a schedule is active.
func (s *Simulator) Running() bool {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.stop != nil
}

// Tick generates one event, derives the next aggregate point from the newest
// one and records both. It returns what was recorded.
func (s *Simulator) Tick() (domain.NetworkEvent, domain.AggregatePoint) {
	s.genMu.Lock()
	now := s.now()
	event := s.generateEvent(now)
	prev, _ := s.state.LastPoint()
	point := prev.Next(now.Format(pointLabelLayout), s.rand.Intn(tickPacketsSpan)+tickPacketsMin, event.Severity)
	s.state.RecordTick(event, point)
	s.genMu.Unlock()

	for _, o := range s.observers {
		o.OnTick(event, point)
	}
	return event, point
}

func (s *Simulator) generateEvent(now time.Time) domain.NetworkEvent {
	protocols := domain.Protocols()
	return domain.NetworkEvent{
		ID:        s.newID(),
		Timestamp: now.Truncate(time.Second),
		SourceIP:  s.cfg.Sources[s.rand.Intn(len(s.cfg.Sources))],
		DestIP:    s.cfg.Sink,
		Protocol:  protocols[s.rand.Intn(len(protocols))],
		Length:    s.rand.Intn(domain.MaxPacketLength),
		Info:      Descriptors[s.rand.Intn(len(Descriptors))],
		Severity:  s.drawSeverity(),
	}
}

// newID draws a random UUID from the injected source, redrawing on the
// (practically impossible) collision with an event still in the ring.
func (s *Simulator) newID() string {
	for {
		id, err := uuid.NewRandomFromReader(s.rand)
		if err != nil {
			id = uuid.New()
		}
		if !s.state.HasEvent(id.String()) {
			return id.String()
		}
	}
}

func (s *Simulator) drawSeverity() domain.Severity {
	if s.chance(s.cfg.ElevatedProbability) {
		if s.chance(s.cfg.CriticalShare) {
			return domain.SeverityCritical
		}
		return domain.SeverityHigh
	}
	if s.chance(s.cfg.MediumShare) {
		return domain.SeverityMedium
	}
	return domain.SeverityLow
}

func (s *Simulator) chance(p float64) bool {
	return s.rand.Float64() < p
}
