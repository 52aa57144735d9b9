package simulator

import (
	"errors"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// DefaultSources is the candidate pool of simulated source addresses.
var DefaultSources = []string{
	"192.168.1.5", "10.0.0.42", "172.16.0.101",
	"45.33.22.11", "185.122.45.9", "91.102.11.4",
}

// DefaultSink is the fixed destination of every simulated packet.
const DefaultSink = "10.0.0.128"

// Descriptors is the canned set of packet descriptors.
var Descriptors = []string{
	"SYN/ACK",
	"GET /api/v1/auth",
	"UDP Source: 5321",
	"TLSv1.3 Handshake",
	"Standard Query 0x1",
}

// Config tunes the simulator. The severity draw is two-staged: an event is
// elevated with ElevatedProbability (CRITICAL with CriticalShare, else HIGH),
// otherwise routine (MEDIUM with MediumShare, else LOW).
type Config struct {
	TickInterval        time.Duration
	Sources             []string
	Sink                string
	ElevatedProbability float64
	CriticalShare       float64
	MediumShare         float64
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		TickInterval:        1500 * time.Millisecond,
		Sources:             append([]string(nil), DefaultSources...),
		Sink:                DefaultSink,
		ElevatedProbability: 0.05,
		CriticalShare:       0.2,
		MediumShare:         0.2,
	}
}

// Validate rejects configurations the simulator cannot run with.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if len(c.Sources) == 0 {
		return errors.New("source pool is empty")
	}
	if c.Sink == "" {
		return errors.New("sink address is empty")
	}
	for name, p := range map[string]float64{
		"elevated probability": c.ElevatedProbability,
		"critical share":       c.CriticalShare,
		"medium share":         c.MediumShare,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, p)
		}
	}
	return nil
}

// ExtendSources appends extra fake IPv4 addresses to base. The faker is seeded
// so the pool is reproducible for a given seed.
func ExtendSources(base []string, extra int, seed uint64) []string {
	pool := append([]string(nil), base...)
	if extra <= 0 {
		return pool
	}

	faker := gofakeit.New(seed)
	seen := make(map[string]bool, len(pool)+extra)
	for _, ip := range pool {
		seen[ip] = true
	}
	for added := 0; added < extra; {
		ip := faker.IPv4Address()
		if seen[ip] {
			continue
		}
		seen[ip] = true
		pool = append(pool, ip)
		added++
	}
	return pool
}
