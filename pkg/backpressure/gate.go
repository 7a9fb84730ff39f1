// Package backpressure implements the monotone delivery gate: it is the
// single primitive every code path (historical page, stashed live event,
// direct live push) goes through before anything reaches the consumer.
package backpressure

import (
	"math"

	"github.com/eventline-go/catchup/pkg/event"
	"github.com/eventline-go/catchup/pkg/position"
)

// DefaultBufferCapacity is the bound on how many filtered-but-undelivered
// events the gate holds before it reports Saturated. It is a fixed value,
// independent of the configured read batch size.
const DefaultBufferCapacity = 2048

// Gate owns the monotone "last delivered position" filter plus the bounded
// buffer and outstanding demand counter. It is not safe for concurrent use;
// the subscription state machine is the sole owner, serialized through its
// mailbox.
type Gate[P position.P[P]] struct {
	last    *P
	hasLast bool

	buffer []event.Event[P]
	cap    int

	demand uint64
}

// New creates a gate seeded with the caller's starting position. hasFrom
// indicates whether from was provided at all (no starting position means
// "no lower bound", i.e. start at the position type's First sentinel
// without excluding anything).
func New[P position.P[P]](from P, hasFrom bool, bufferCapacity int) *Gate[P] {
	if bufferCapacity <= 0 {
		bufferCapacity = DefaultBufferCapacity
	}
	g := &Gate[P]{cap: bufferCapacity}
	if hasFrom {
		g.last = &from
		g.hasLast = true
	}
	return g
}

// Last returns the greatest position delivered so far (or the configured
// starting position if nothing has been delivered yet), and whether any
// lower bound is set at all.
func (g *Gate[P]) Last() (P, bool) {
	if !g.hasLast {
		var zero P
		return zero, false
	}
	return *g.last, true
}

// Offer applies the monotone filter to events in order: anything at or
// before the current last position is dropped silently; everything else
// is buffered and advances last. It returns the number of events actually buffered (post-filter), for
// logging/metrics.
func (g *Gate[P]) Offer(events []event.Event[P]) int {
	accepted := 0
	for _, e := range events {
		if g.hasLast && !g.last.Less(e.Position) {
			continue
		}
		g.buffer = append(g.buffer, e)
		p := e.Position
		g.last = &p
		g.hasLast = true
		accepted++
	}
	return accepted
}

// Grant adds n to outstanding demand, saturating at math.MaxUint64 for
// "unbounded".
func (g *Gate[P]) Grant(n uint64) {
	if n == 0 {
		return
	}
	if math.MaxUint64-g.demand < n {
		g.demand = math.MaxUint64
		return
	}
	g.demand += n
}

// Demand reports outstanding demand.
func (g *Gate[P]) Demand() uint64 { return g.demand }

// Pending reports how many buffered events are waiting for demand.
func (g *Gate[P]) Pending() int { return len(g.buffer) }

// Drain pops buffered events while demand allows, decrementing demand per
// delivery; events are never delivered with zero demand.
func (g *Gate[P]) Drain() []event.Event[P] {
	if g.demand == 0 || len(g.buffer) == 0 {
		return nil
	}
	n := uint64(len(g.buffer))
	if g.demand < n {
		n = g.demand
	}
	out := g.buffer[:n]
	g.buffer = g.buffer[n:]
	if g.demand != math.MaxUint64 {
		g.demand -= n
	}
	return out
}

// Saturated reports whether the gate has hit its capacity bound with zero
// outstanding demand: the signal the subscription state machine uses to
// stop reading/pushing and transition to Unsubscribing.
func (g *Gate[P]) Saturated() bool {
	return g.demand == 0 && len(g.buffer) >= g.cap
}

// Reset discards all buffered events, used on Cancel.
func (g *Gate[P]) Reset() {
	g.buffer = nil
}
