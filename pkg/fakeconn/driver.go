package fakeconn

import (
	"sync"

	"github.com/eventline-go/catchup/pkg/event"
	"github.com/eventline-go/catchup/pkg/wire"
)

// Driver wraps a Connection with a goroutine that auto-responds to every
// outbound call against an in-memory, append-only log, so a subscription
// can be exercised end-to-end without a real event-store server (the
// "in-memory fake connection" demo/test transport component). It is generic
// over the position type via the two index conversion functions the caller
// supplies, since Position and EventNumber don't share arithmetic.
type Driver[P any] struct {
	*Connection[P]

	mu         sync.Mutex
	log        []event.Event[P]
	subscribed bool

	toIndex   func(P) int
	fromIndex func(int) P

	stop chan struct{}
}

// NewDriver starts a Driver backed by an initially empty log. toIndex maps
// a read/subscribe position to a log slice index; fromIndex is its inverse,
// used to compute NextFrom/LastKnown positions in replies.
func NewDriver[P any](toIndex func(P) int, fromIndex func(int) P) *Driver[P] {
	d := &Driver[P]{
		Connection: New[P](256),
		toIndex:    toIndex,
		fromIndex:  fromIndex,
		stop:       make(chan struct{}),
	}
	go d.serve()
	return d
}

// Append adds an event to the log. If a subscription is currently active,
// it is also pushed live as an EventAppeared notification.
func (d *Driver[P]) Append(e event.Event[P]) {
	d.mu.Lock()
	d.log = append(d.log, e)
	subscribed := d.subscribed
	d.mu.Unlock()

	if subscribed {
		d.Connection.Push(wire.Inbound[P]{
			Kind:     wire.KindEventAppeared,
			Appeared: &wire.EventAppeared[P]{Event: e},
		})
	}
}

// Stop ends the driver's serve loop and closes the underlying connection.
func (d *Driver[P]) Stop() {
	close(d.stop)
	d.Connection.Close()
}

func (d *Driver[P]) serve() {
	for {
		select {
		case <-d.stop:
			return
		case req := <-d.Connection.ReadCalls:
			d.handleRead(req)
		case req := <-d.Connection.SubscribeCalls:
			d.handleSubscribe(req)
		case req := <-d.Connection.UnsubscribeCalls:
			d.handleUnsubscribe(req)
		case req := <-d.Connection.ProbeCalls:
			d.Connection.Push(wire.Inbound[P]{
				Kind:  wire.KindProbeAcknowledged,
				Probe: &wire.ProbeAcknowledged{CorrelationID: req.CorrelationID},
			})
		}
	}
}

func (d *Driver[P]) handleRead(req wire.ReadRequest[P]) {
	d.mu.Lock()
	idx := d.toIndex(req.From)
	if idx < 0 {
		idx = 0
	}
	total := len(d.log)
	end := idx + int(req.Count)
	if end > total {
		end = total
	}
	var page []event.Event[P]
	if idx < total {
		page = append(page, d.log[idx:end]...)
	}
	nextIdx := idx + len(page)
	endOfStream := nextIdx >= total
	nextFrom := d.fromIndex(nextIdx)
	d.mu.Unlock()

	d.Connection.Push(wire.Inbound[P]{
		Kind: wire.KindReadCompleted,
		Read: &wire.ReadCompleted[P]{
			CorrelationID: req.CorrelationID,
			Events:        page,
			NextFrom:      nextFrom,
			EndOfStream:   endOfStream,
		},
	})
}

func (d *Driver[P]) handleSubscribe(req wire.SubscribeRequest) {
	d.mu.Lock()
	lastIdx := len(d.log) - 1
	if lastIdx < 0 {
		lastIdx = 0
	}
	lastKnown := d.fromIndex(lastIdx)
	d.subscribed = true
	d.mu.Unlock()

	d.Connection.Push(wire.Inbound[P]{
		Kind:      wire.KindSubscribeCompleted,
		Subscribe: &wire.SubscribeCompleted[P]{CorrelationID: req.CorrelationID, LastKnown: lastKnown},
	})
}

func (d *Driver[P]) handleUnsubscribe(req wire.UnsubscribeRequest) {
	d.mu.Lock()
	d.subscribed = false
	d.mu.Unlock()

	d.Connection.Push(wire.Inbound[P]{
		Kind:  wire.KindUnsubscribed,
		Unsub: &wire.Unsubscribed{CorrelationID: req.CorrelationID},
	})
}
