// Package reconciler implements the catch-up merge: reconciling a paginated
// historical read with live events stashed while that paging was underway,
// until the two sources meet at a known position. It is owned exclusively
// by the subscription state machine's CatchingUp state (pkg/subscription);
// outside that state no Reconciler exists, matching invariant I2 (the stash
// is non-empty only during CatchingUp).
package reconciler

import (
	"github.com/eventline-go/catchup/pkg/event"
	"github.com/eventline-go/catchup/pkg/position"
)

// Reconciler owns the mutable state of one catch-up episode: the position
// the server reported as "last known" at subscribe-confirmation time, and
// the FIFO of live events stashed while historical pages are still being
// read. A Reconciler is created the instant a SubscribeCompleted demands a
// catch-up read and discarded the instant the meeting condition is reached.
type Reconciler[P position.P[P]] struct {
	subNum P
	stash  []event.Event[P]
}

// New creates a Reconciler for a catch-up episode confirmed at subNum: the
// position the server reports as current when the push subscription was
// confirmed. Historical paging must observe an event past subNum (or run
// out of events entirely) before the episode can end.
func New[P position.P[P]](subNum P) *Reconciler[P] {
	return &Reconciler[P]{subNum: subNum}
}

// Stash records a live event observed while a historical page is still
// outstanding. Stashed events are held in arrival order and are not
// filtered here; the monotone delivery gate filters them once Drain flushes
// them through it.
func (r *Reconciler[P]) Stash(e event.Event[P]) {
	r.stash = append(r.stash, e)
}

// Reconcile examines one historical page against the subscribe-confirmed
// position and reports whether the meeting condition holds: the page is
// empty, or it contains an event strictly past subNum. When true, the
// caller has paged far enough that every event the live push subscription
// could additionally report is already covered by either this page or the
// stash, and catching up is complete.
func (r *Reconciler[P]) Reconcile(events []event.Event[P]) bool {
	if len(events) == 0 {
		return true
	}
	for _, e := range events {
		if r.subNum.Less(e.Position) {
			return true
		}
	}
	return false
}

// Drain returns the stashed live events in arrival order and clears the
// stash. Callers flush the result through the delivery filter exactly once,
// the instant the meeting condition holds, so duplicate or stale stashed
// events are dropped the same way any other overlapping event is (spec
// "ignore wrong events while subscribed").
func (r *Reconciler[P]) Drain() []event.Event[P] {
	out := r.stash
	r.stash = nil
	return out
}

// Pending reports how many live events are currently stashed, awaiting the
// meeting condition.
func (r *Reconciler[P]) Pending() int {
	return len(r.stash)
}
