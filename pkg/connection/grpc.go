package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/eventline-go/catchup/pkg/log"
	"github.com/eventline-go/catchup/pkg/metrics"
	"github.com/eventline-go/catchup/pkg/wire"
)

// callTimeout bounds each individual outbound RPC. It does not bound how
// long a subscription waits for live push traffic.
const callTimeout = 10 * time.Second

// Stream is the generated-client-shaped bidirectional RPC this package
// wraps: one call that streams wire-level frames in both directions. A real
// deployment generates this from a .proto service definition the same way
// this codebase generates proto.WarrenAPIClient; it is declared here as a
// plain interface so the rest of the package does not depend on a specific
// generator's output.
type Stream interface {
	Send(frame *Frame) error
	Recv() (*Frame, error)
	CloseSend() error
}

// Frame is the single wire envelope carried over the gRPC stream, framing
// either an outbound request or an inbound reply/notification.
type Frame struct {
	CorrelationID string
	Kind          string
	Payload       []byte // caller-defined encoding of the specific request/response
}

// Dialer opens a new bidirectional Stream against the event-store server.
// Production code supplies a function backed by a generated grpc client
// (e.g. client.SubscribeStream(ctx)); tests supply a fake.
type Dialer func(ctx context.Context) (Stream, error)

// GRPCConnection is a connection.Port[P] backed by a single long-lived gRPC
// bidirectional stream, following this codebase's existing gRPC client
// style (pkg/client.Client): one struct wrapping a generated client, each
// call scoped with its own context, errors wrapped with %w.
type GRPCConnection[P any] struct {
	target string
	dial   Dialer

	mu     sync.Mutex
	stream Stream

	events chan wire.Inbound[P]
	decode func(*Frame) (wire.Inbound[P], bool)

	logger zerolog.Logger
}

// NewGRPCConnection dials addr and starts pumping inbound frames onto the
// returned connection's Events() channel. decode turns a raw Frame into a
// wire.Inbound[P]; it returns ok=false for frames this connection does not
// recognize (which are dropped rather than failing the subscription).
func NewGRPCConnection[P any](ctx context.Context, addr string, decode func(*Frame) (wire.Inbound[P], bool)) (*GRPCConnection[P], error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to dial event store at %s: %w", addr, err)
	}
	dial := func(ctx context.Context) (Stream, error) {
		return newClientStream(ctx, conn)
	}
	stream, err := dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open subscribe stream: %w", err)
	}

	c := &GRPCConnection[P]{
		target: addr,
		dial:   dial,
		stream: stream,
		events: make(chan wire.Inbound[P], 64),
		decode: decode,
		logger: log.WithComponent("connection"),
	}
	metrics.RegisterComponent("connection", true, "connected to "+addr)
	go c.pump()
	return c, nil
}

func (c *GRPCConnection[P]) pump() {
	defer close(c.events)
	for {
		frame, err := c.stream.Recv()
		if err != nil {
			c.logger.Info().Err(err).Str("target", c.target).Msg("event store stream closed")
			metrics.UpdateComponent("connection", false, "stream closed: "+err.Error())
			return
		}
		msg, ok := c.decode(frame)
		if !ok {
			c.logger.Debug().Str("kind", frame.Kind).Msg("dropping unrecognized frame")
			continue
		}
		c.events <- msg
	}
}

func (c *GRPCConnection[P]) send(ctx context.Context, frame *Frame) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- c.stream.Send(frame) }()
	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("failed to send %s frame: %w", frame.Kind, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out sending %s frame: %w", frame.Kind, ctx.Err())
	}
}

func (c *GRPCConnection[P]) Read(ctx context.Context, req wire.ReadRequest[P]) error {
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode Read request: %w", err)
	}
	return c.send(ctx, &Frame{CorrelationID: req.CorrelationID, Kind: "Read", Payload: payload})
}

func (c *GRPCConnection[P]) SubscribeTo(ctx context.Context, req wire.SubscribeRequest) error {
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode SubscribeTo request: %w", err)
	}
	return c.send(ctx, &Frame{CorrelationID: req.CorrelationID, Kind: "SubscribeTo", Payload: payload})
}

func (c *GRPCConnection[P]) Unsubscribe(ctx context.Context, req wire.UnsubscribeRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode Unsubscribe request: %w", err)
	}
	return c.send(ctx, &Frame{CorrelationID: req.CorrelationID, Kind: "Unsubscribe", Payload: payload})
}

func (c *GRPCConnection[P]) Probe(ctx context.Context, req wire.ProbeRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode Probe request: %w", err)
	}
	return c.send(ctx, &Frame{CorrelationID: req.CorrelationID, Kind: "Probe", Payload: payload})
}

func (c *GRPCConnection[P]) Events() <-chan wire.Inbound[P] {
	return c.events
}
