// Package fakeconn provides an in-memory connection.Port implementation
// used by tests and by cmd/catchupctl's --fake demo mode, so the
// subscription engine can be exercised end-to-end without a real
// event-store server.
package fakeconn

import (
	"context"
	"sync"

	"github.com/eventline-go/catchup/pkg/wire"
)

// Connection is a connection.Port[P] backed entirely by in-memory channels.
// Outbound calls are recorded on buffered "Calls" channels a test can drain
// to assert what the subscription asked for; inbound messages are injected
// with Push. It is safe for concurrent use.
type Connection[P any] struct {
	mu     sync.Mutex
	events chan wire.Inbound[P]
	closed bool

	ReadCalls      chan wire.ReadRequest[P]
	SubscribeCalls chan wire.SubscribeRequest
	UnsubscribeCalls chan wire.UnsubscribeRequest
	ProbeCalls     chan wire.ProbeRequest
}

// New creates a Connection with the given inbound/outbound buffer depth.
// A depth of 0 is rounded up to a sensible default so Push/Read calls in
// tests don't block on an unbuffered channel before a reader is attached.
func New[P any](buffer int) *Connection[P] {
	if buffer <= 0 {
		buffer = 64
	}
	return &Connection[P]{
		events:           make(chan wire.Inbound[P], buffer),
		ReadCalls:        make(chan wire.ReadRequest[P], buffer),
		SubscribeCalls:   make(chan wire.SubscribeRequest, buffer),
		UnsubscribeCalls: make(chan wire.UnsubscribeRequest, buffer),
		ProbeCalls:       make(chan wire.ProbeRequest, buffer),
	}
}

func (c *Connection[P]) Read(ctx context.Context, req wire.ReadRequest[P]) error {
	select {
	case c.ReadCalls <- req:
	default:
	}
	return nil
}

func (c *Connection[P]) SubscribeTo(ctx context.Context, req wire.SubscribeRequest) error {
	select {
	case c.SubscribeCalls <- req:
	default:
	}
	return nil
}

func (c *Connection[P]) Unsubscribe(ctx context.Context, req wire.UnsubscribeRequest) error {
	select {
	case c.UnsubscribeCalls <- req:
	default:
	}
	return nil
}

func (c *Connection[P]) Probe(ctx context.Context, req wire.ProbeRequest) error {
	select {
	case c.ProbeCalls <- req:
	default:
	}
	return nil
}

func (c *Connection[P]) Events() <-chan wire.Inbound[P] {
	return c.events
}

// Push delivers an inbound message to the subscription. It is a no-op if
// the connection has already been Closed.
func (c *Connection[P]) Push(msg wire.Inbound[P]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.events <- msg
}

// Close simulates transport peer termination: the subscription observes
// this as its Events() channel closing (spec.md §4.4).
func (c *Connection[P]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}
