package grpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
)

var streamEventsDesc = &grpc.StreamDesc{StreamName: "StreamEvents", ServerStreams: true}

// Client calls the Telemetry service the way an external consumer would.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Snapshot fetches the raw snapshot struct.
func (c *Client) Snapshot(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Snapshot", new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Analyze submits input and decodes the verdict.
func (c *Client) Analyze(ctx context.Context, input string, opts ...grpc.CallOption) (domain.AnalysisResult, error) {
	req, err := structpb.NewStruct(map[string]any{"input": input})
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Analyze", req, out, opts...); err != nil {
		return domain.AnalysisResult{}, err
	}

	data, err := json.Marshal(out.GetFields()["result"].AsInterface())
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	return domain.ParseAnalysisResult(data)
}

// EventStream receives events pushed by StreamEvents.
type EventStream struct {
	stream grpc.ClientStream
}

// StreamEvents opens a server stream of new events.
func (c *Client) StreamEvents(ctx context.Context, opts ...grpc.CallOption) (*EventStream, error) {
	stream, err := c.cc.NewStream(ctx, streamEventsDesc, "/"+ServiceName+"/StreamEvents", opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(new(emptypb.Empty)); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{stream: stream}, nil
}

// Recv blocks for the next event.
func (s *EventStream) Recv() (domain.NetworkEvent, error) {
	msg := new(structpb.Struct)
	if err := s.stream.RecvMsg(msg); err != nil {
		return domain.NetworkEvent{}, err
	}
	data, err := protojson.Marshal(msg)
	if err != nil {
		return domain.NetworkEvent{}, err
	}
	var event domain.NetworkEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.NetworkEvent{}, err
	}
	return event, nil
}
