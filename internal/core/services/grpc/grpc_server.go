// Package grpc exposes the telemetry feed and the forensic analyzer over gRPC.
// Messages are google.protobuf.Struct values carrying the same JSON shapes as
// the HTTP API, so clients need no generated stubs.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
	"github.com/lcalzada-xor/aegis/internal/core/ports"
	"github.com/lcalzada-xor/aegis/internal/core/services/analysis"
	"github.com/lcalzada-xor/aegis/internal/core/services/session"
	"github.com/lcalzada-xor/aegis/internal/telemetry"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "aegis.v1.Telemetry"

// subscriberBuffer is the per-stream event backlog before events are dropped.
const subscriberBuffer = 64

// TelemetryServer is the server API of the Telemetry service.
type TelemetryServer interface {
	Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StreamEvents(*emptypb.Empty, grpc.ServerStream) error
	Analyze(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the Telemetry service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TelemetryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Snapshot", Handler: snapshotHandler},
		{MethodName: "Analyze", Handler: analyzeHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamEvents", Handler: streamEventsHandler, ServerStreams: true},
	},
}

// GrpcServer implements TelemetryServer and fans simulator ticks out to
// StreamEvents subscribers.
type GrpcServer struct {
	state     *session.State
	workbench *analysis.Workbench

	mu          sync.Mutex
	subscribers map[chan domain.NetworkEvent]struct{}
}

var _ ports.TickObserver = (*GrpcServer)(nil)

func NewGrpcServer(state *session.State, workbench *analysis.Workbench) *GrpcServer {
	return &GrpcServer{
		state:       state,
		workbench:   workbench,
		subscribers: make(map[chan domain.NetworkEvent]struct{}),
	}
}

// NewServer builds a grpc.Server with the Telemetry and health services
// registered and Prometheus interceptors installed.
func NewServer(svc *GrpcServer, opts ...grpc.ServerOption) *grpc.Server {
	telemetry.InitMetrics()
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}
	serverOpts = append(serverOpts, opts...)
	s := grpc.NewServer(serverOpts...)

	s.RegisterService(&ServiceDesc, svc)
	grpc_prometheus.Register(s)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthSrv)
	return s
}

// Snapshot returns the active view and both rings.
func (s *GrpcServer) Snapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap := s.state.Snapshot()
	return toStruct(map[string]any{
		"activeView": snap.ActiveView,
		"events":     snap.Events,
		"points":     snap.Points,
	})
}

// StreamEvents pushes every new event until the client cancels.
func (s *GrpcServer) StreamEvents(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ch := s.subscribe()
	defer s.unsubscribe(ch)

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case event := <-ch:
			msg, err := toStruct(event)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

// Analyze runs one forensic analysis and waits for its verdict.
func (s *GrpcServer) Analyze(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	input := req.GetFields()["input"].GetStringValue()

	outcome, err := s.workbench.Submit(ctx, input)
	switch {
	case errors.Is(err, domain.ErrEmptyInput):
		return nil, status.Error(codes.InvalidArgument, "input must not be empty")
	case errors.Is(err, domain.ErrAnalysisInFlight):
		return nil, status.Error(codes.FailedPrecondition, "an analysis is already in progress")
	case err != nil:
		return nil, status.Error(codes.Internal, err.Error())
	}

	select {
	case <-ctx.Done():
		return nil, status.FromContextError(ctx.Err()).Err()
	case o := <-outcome:
		switch {
		case o.Discarded:
			return nil, status.Error(codes.Aborted, "analysis was discarded")
		case o.Err != nil:
			return nil, status.Error(codes.Unavailable, analysis.FailureMessage)
		}
		return toStruct(map[string]any{
			"result":   o.Result,
			"priority": o.Result.Priority(),
		})
	}
}

// OnTick forwards the event to every subscriber without blocking.
func (s *GrpcServer) OnTick(event domain.NetworkEvent, _ domain.AggregatePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			slog.Debug("Dropping event for slow gRPC subscriber", "event_id", event.ID)
		}
	}
}

// Subscribers returns the number of open event streams.
func (s *GrpcServer) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

func (s *GrpcServer) subscribe() chan domain.NetworkEvent {
	ch := make(chan domain.NetworkEvent, subscriberBuffer)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *GrpcServer) unsubscribe(ch chan domain.NetworkEvent) {
	s.mu.Lock()
	delete(s.subscribers, ch)
	s.mu.Unlock()
}

// toStruct converts v through its JSON form so gRPC clients see the HTTP shapes.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("convert to struct: %w", err)
	}
	return st, nil
}

func snapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TelemetryServer).Snapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Snapshot"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TelemetryServer).Snapshot(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func analyzeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TelemetryServer).Analyze(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Analyze"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TelemetryServer).Analyze(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func streamEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(TelemetryServer).StreamEvents(in, stream)
}
