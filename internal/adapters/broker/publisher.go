package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
)

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes simulated events as JSON to NATS. Each event goes to
// "<subject>.<severity>", for example "aegis.events.critical", so subscribers
// can filter with "aegis.events.*" or a single level.
type NATSPublisher struct {
	nc      conn
	subject string
}

// NewNATSPublisher connects to url and publishes under subject.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("aegis-simulator"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	slog.Info("Connected to NATS server", "url", url, "subject", subject)
	return newPublisher(nc, subject), nil
}

func newPublisher(nc conn, subject string) *NATSPublisher {
	return &NATSPublisher{nc: nc, subject: strings.TrimSuffix(subject, ".")}
}

// SubjectFor returns the subject an event is published to.
func (p *NATSPublisher) SubjectFor(event domain.NetworkEvent) string {
	return p.subject + "." + event.Severity.Lower()
}

// Publish serializes event and publishes it.
func (p *NATSPublisher) Publish(ctx context.Context, event domain.NetworkEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.ID, err)
	}
	return p.nc.Publish(p.SubjectFor(event), data)
}

// Close drains and closes the NATS connection.
func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		slog.Warn("NATS drain failed", "error", err)
		return
	}
	slog.Info("NATS connection drained and closed")
}
