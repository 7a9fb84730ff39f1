package connection

import (
	"context"
	"encoding/json"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// jsonCodecName is registered once below so the bidirectional stream can
// frame Frame values without requiring a protoc-generated message type.
// A production deployment with real .proto-generated types would register
// the default proto codec instead and drop this file entirely.
const jsonCodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return jsonCodecName }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// subscribeStreamDesc describes the bidi-streaming RPC generated client code
// would normally expose as e.g. EventStoreClient.SubscribeStream.
var subscribeStreamDesc = grpc.StreamDesc{
	StreamName:    "SubscribeStream",
	ServerStreams: true,
	ClientStreams: true,
}

// clientStream adapts a *grpc.ClientStream to the package-local Stream
// interface so GRPCConnection does not depend on grpc types directly.
type clientStream struct {
	mu sync.Mutex
	cs grpc.ClientStream
}

func newClientStream(ctx context.Context, conn grpc.ClientConnInterface) (Stream, error) {
	cs, err := conn.NewStream(ctx, &subscribeStreamDesc, "/eventline.catchup.v1.EventStore/SubscribeStream",
		grpc.CallContentSubtype(jsonCodecName))
	if err != nil {
		return nil, err
	}
	return &clientStream{cs: cs}, nil
}

func (s *clientStream) Send(frame *Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cs.SendMsg(frame)
}

func (s *clientStream) Recv() (*Frame, error) {
	var frame Frame
	if err := s.cs.RecvMsg(&frame); err != nil {
		return nil, err
	}
	return &frame, nil
}

func (s *clientStream) CloseSend() error {
	return s.cs.CloseSend()
}
