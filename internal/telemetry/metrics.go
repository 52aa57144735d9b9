package telemetry

import (
	"sync"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
)

// Analysis outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	// SimulatorTicks counts ticks executed by the telemetry simulator
	SimulatorTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "simulator_ticks_total",
			Help:      "Total number of simulator ticks",
		},
	)

	// EventsGenerated counts simulated events by severity and protocol
	EventsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "events_generated_total",
			Help:      "Total number of simulated network events",
		},
		[]string{"severity", "protocol"},
	)

	// ThreatCounter mirrors the carry-forward threat counter of the newest point
	ThreatCounter = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aegis",
			Name:      "threat_counter",
			Help:      "Threat counter of the newest aggregate point",
		},
	)

	// Throughput mirrors the packet count of the newest point
	Throughput = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aegis",
			Name:      "throughput_packets",
			Help:      "Packet count of the newest aggregate point",
		},
	)

	// AnalysisRequests counts forensic analysis requests by outcome
	AnalysisRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "analysis_requests_total",
			Help:      "Total number of forensic analysis requests, partitioned by outcome",
		},
		[]string{"outcome"},
	)

	// AnalysisFailures counts failed analyses by diagnostic kind
	AnalysisFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "analysis_failures_total",
			Help:      "Total number of failed forensic analyses, partitioned by kind",
		},
		[]string{"kind"},
	)

	// AnalysisDuration observes end-to-end analysis latency
	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "aegis",
			Name:      "analysis_seconds",
			Help:      "Forensic analysis latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
	)

	// WebsocketClients tracks connected push-feed clients
	WebsocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aegis",
			Name:      "websocket_clients",
			Help:      "Number of connected WebSocket clients",
		},
	)

	// BrokerPublishErrors counts events the broker publisher failed to forward
	BrokerPublishErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "broker_publish_errors_total",
			Help:      "Total number of events that could not be published to the broker",
		},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry
// This function is idempotent and can be called multiple times safely
func InitMetrics() {
	once.Do(func() {
		for _, c := range []prometheus.Collector{
			SimulatorTicks,
			EventsGenerated,
			ThreatCounter,
			Throughput,
			AnalysisRequests,
			AnalysisFailures,
			AnalysisDuration,
			WebsocketClients,
			BrokerPublishErrors,
		} {
			prometheus.DefaultRegisterer.Register(c)
		}
		// Mutates the shared gRPC server metrics; must run before any server
		// starts handling calls.
		grpc_prometheus.EnableHandlingTimeHistogram()
	})
}

// TickMetrics records simulator output. It implements ports.TickObserver.
type TickMetrics struct{}

func (TickMetrics) OnTick(event domain.NetworkEvent, point domain.AggregatePoint) {
	SimulatorTicks.Inc()
	EventsGenerated.WithLabelValues(event.Severity.String(), string(event.Protocol)).Inc()
	ThreatCounter.Set(float64(point.Threats))
	Throughput.Set(float64(point.Packets))
}

// ObserveAnalysis records the latency and outcome of one analysis call.
func ObserveAnalysis(d time.Duration, err error) {
	AnalysisDuration.Observe(d.Seconds())
	if err == nil {
		AnalysisRequests.WithLabelValues(OutcomeSuccess).Inc()
		return
	}
	AnalysisRequests.WithLabelValues(OutcomeFailure).Inc()
	kind := string(domain.FailureKindOf(err))
	if kind == "" {
		kind = "other"
	}
	AnalysisFailures.WithLabelValues(kind).Inc()
}
