package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Protocol is the transport/application protocol of a simulated packet.
type Protocol string

const (
	ProtocolTCP   Protocol = "TCP"
	ProtocolUDP   Protocol = "UDP"
	ProtocolICMP  Protocol = "ICMP"
	ProtocolHTTP  Protocol = "HTTP"
	ProtocolHTTPS Protocol = "HTTPS"
)

// Protocols lists the protocol enumeration in draw order.
func Protocols() []Protocol {
	return []Protocol{ProtocolTCP, ProtocolUDP, ProtocolICMP, ProtocolHTTP, ProtocolHTTPS}
}

// ParseProtocol validates a protocol name.
func ParseProtocol(s string) (Protocol, error) {
	for _, p := range Protocols() {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProtocol, s)
}

// MaxPacketLength is the exclusive upper bound of a simulated packet length.
const MaxPacketLength = 1500

// NetworkEvent is one simulated packet. It is immutable once created.
type NetworkEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	SourceIP  string    `json:"sourceIp"`
	DestIP    string    `json:"destIp"`
	Protocol  Protocol  `json:"protocol"`
	Length    int       `json:"length"`
	Info      string    `json:"info"`
	Severity  Severity  `json:"threatLevel"`
}

// ClockTime renders the capture time as a 24h wall clock label (HH:MM:SS).
func (e NetworkEvent) ClockTime() string {
	return e.Timestamp.Format("15:04:05")
}

// MarshalJSON adds the clock label next to the RFC 3339 timestamp.
func (e NetworkEvent) MarshalJSON() ([]byte, error) {
	type alias NetworkEvent
	return json.Marshal(struct {
		alias
		Clock string `json:"clock"`
	}{alias: alias(e), Clock: e.ClockTime()})
}

// AggregatePoint is one sample of the traffic time series.
type AggregatePoint struct {
	Label   string `json:"timestamp"`
	Packets int    `json:"packets"`
	Threats int    `json:"threats"`
}

// Next derives the point that follows p for a tick that produced an event of
// severity sev: the threat counter carries forward and grows only for HIGH/CRITICAL.
func (p AggregatePoint) Next(label string, packets int, sev Severity) AggregatePoint {
	threats := p.Threats
	if sev.IsElevated() {
		threats++
	}
	return AggregatePoint{Label: label, Packets: packets, Threats: threats}
}
