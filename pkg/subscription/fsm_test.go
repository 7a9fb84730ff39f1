package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventline-go/catchup/pkg/consumer"
	"github.com/eventline-go/catchup/pkg/event"
	"github.com/eventline-go/catchup/pkg/fakeconn"
	"github.com/eventline-go/catchup/pkg/position"
	"github.com/eventline-go/catchup/pkg/subscription"
	"github.com/eventline-go/catchup/pkg/wire"
)

const waitTimeout = 2 * time.Second

func pos(n int64) position.Position { return position.Position{Commit: n} }

func ev(n int64) event.Event[position.Position] {
	return event.Event[position.Position]{Position: pos(n), EventType: "test"}
}

// recordingSink is a consumer.Sink[position.Position] that records every
// signal it receives, for assertions in scenario tests.
type recordingSink struct {
	deliveries chan int64
	dropped    chan consumer.DropReason
	live       chan struct{}
	done       chan struct{}
	err        error
	onErr      bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		deliveries: make(chan int64, 64),
		dropped:    make(chan consumer.DropReason, 4),
		live:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

func (r *recordingSink) OnNext(e event.Event[position.Position]) { r.deliveries <- e.Position.Commit }
func (r *recordingSink) OnLiveProcessingStarted() {
	select {
	case r.live <- struct{}{}:
	default:
	}
}
func (r *recordingSink) OnDropped(reason consumer.DropReason) { r.dropped <- reason }
func (r *recordingSink) OnComplete()                          { close(r.done) }
func (r *recordingSink) OnError(err error) {
	r.err = err
	r.onErr = true
	close(r.done)
}

func (r *recordingSink) collect(t *testing.T, n int) []int64 {
	t.Helper()
	out := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		select {
		case p := <-r.deliveries:
			out = append(out, p)
		case <-time.After(waitTimeout):
			t.Fatalf("timed out waiting for delivery %d/%d, got %v so far", i+1, n, out)
		}
	}
	return out
}

func (r *recordingSink) assertNoMoreDeliveries(t *testing.T) {
	t.Helper()
	select {
	case p := <-r.deliveries:
		t.Fatalf("unexpected extra delivery: %d", p)
	case <-time.After(50 * time.Millisecond):
	}
}

func mustRead(t *testing.T, conn *fakeconn.Connection[position.Position]) wire.ReadRequest[position.Position] {
	t.Helper()
	select {
	case req := <-conn.ReadCalls:
		return req
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a Read call")
		return wire.ReadRequest[position.Position]{}
	}
}

func mustSubscribe(t *testing.T, conn *fakeconn.Connection[position.Position]) wire.SubscribeRequest {
	t.Helper()
	select {
	case req := <-conn.SubscribeCalls:
		return req
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a SubscribeTo call")
		return wire.SubscribeRequest{}
	}
}

func mustUnsubscribe(t *testing.T, conn *fakeconn.Connection[position.Position]) {
	t.Helper()
	select {
	case <-conn.UnsubscribeCalls:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for an Unsubscribe call")
	}
}

func assertNoRead(t *testing.T, conn *fakeconn.Connection[position.Position]) {
	t.Helper()
	select {
	case req := <-conn.ReadCalls:
		t.Fatalf("unexpected Read call: from=%v", req.From)
	case <-time.After(50 * time.Millisecond):
	}
}

func readCompleted(events []event.Event[position.Position], nextFrom int64, endOfStream bool) wire.Inbound[position.Position] {
	return wire.Inbound[position.Position]{
		Kind: wire.KindReadCompleted,
		Read: &wire.ReadCompleted[position.Position]{Events: events, NextFrom: pos(nextFrom), EndOfStream: endOfStream},
	}
}

func subscribeCompleted(lastKnown int64) wire.Inbound[position.Position] {
	return wire.Inbound[position.Position]{
		Kind:      wire.KindSubscribeCompleted,
		Subscribe: &wire.SubscribeCompleted[position.Position]{LastKnown: pos(lastKnown)},
	}
}

func eventAppeared(n int64) wire.Inbound[position.Position] {
	return wire.Inbound[position.Position]{
		Kind:     wire.KindEventAppeared,
		Appeared: &wire.EventAppeared[position.Position]{Event: ev(n)},
	}
}

func failure(err error) wire.Inbound[position.Position] {
	return wire.Inbound[position.Position]{Kind: wire.KindFailure, Err: err}
}

// Reading from start, subscribing once the historical read drains.
func TestScenario1_ReadFromStartThenSubscribe(t *testing.T) {
	conn := fakeconn.New[position.Position](16)
	sink := newRecordingSink()
	sub := subscription.NewAllSubscription(conn, sink, subscription.FromBeginning[position.Position]())
	sub.Run(context.Background())
	sub.Request(100)

	req := mustRead(t, conn)
	assert.Equal(t, int64(0), req.From.Commit)
	conn.Push(readCompleted([]event.Event[position.Position]{ev(1)}, 2, false))

	req = mustRead(t, conn)
	assert.Equal(t, int64(2), req.From.Commit)
	conn.Push(readCompleted(nil, 2, true))

	mustSubscribe(t, conn)
	conn.Push(subscribeCompleted(1))

	// Stray ReadCompleted observed while already Subscribed must be a no-op.
	conn.Push(readCompleted(nil, 0, false))

	assert.Equal(t, []int64{1}, sink.collect(t, 1))
	assertNoRead(t, conn)
}

// Catch-up bridges live events observed during the historical read.
func TestScenario2_CatchUpBridgesLiveEvents(t *testing.T) {
	conn := fakeconn.New[position.Position](32)
	sink := newRecordingSink()
	sub := subscription.NewAllSubscription(conn, sink, subscription.FromBeginning[position.Position]())
	sub.Run(context.Background())
	sub.Request(100)

	req := mustRead(t, conn)
	assert.Equal(t, int64(0), req.From.Commit)
	conn.Push(readCompleted([]event.Event[position.Position]{ev(0), ev(1)}, 2, false))

	req = mustRead(t, conn)
	assert.Equal(t, int64(2), req.From.Commit)
	conn.Push(readCompleted(nil, 2, true))

	mustSubscribe(t, conn)
	conn.Push(subscribeCompleted(4))

	req = mustRead(t, conn) // CatchingUp entry read at next=2
	assert.Equal(t, int64(2), req.From.Commit)
	conn.Push(eventAppeared(2))
	conn.Push(eventAppeared(3))
	conn.Push(eventAppeared(4))
	conn.Push(readCompleted([]event.Event[position.Position]{ev(1), ev(2)}, 3, false))

	req = mustRead(t, conn)
	assert.Equal(t, int64(3), req.From.Commit)
	conn.Push(eventAppeared(5))
	conn.Push(eventAppeared(6))
	conn.Push(readCompleted([]event.Event[position.Position]{ev(3), ev(4), ev(5)}, 6, false))

	// Duplicates after reaching Subscribed must produce no further output.
	conn.Push(eventAppeared(5))
	conn.Push(eventAppeared(6))

	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6}, sink.collect(t, 7))
	sink.assertNoMoreDeliveries(t)
}

// Already-delivered and duplicate events are ignored once subscribed.
func TestScenario3_IgnoreWrongEventsWhileSubscribed(t *testing.T) {
	conn := fakeconn.New[position.Position](32)
	sink := newRecordingSink()
	sub := subscription.NewAllSubscription(conn, sink, subscription.FromExact(pos(1)))
	sub.Run(context.Background())
	sub.Request(100)

	req := mustRead(t, conn)
	assert.Equal(t, int64(1), req.From.Commit)
	conn.Push(readCompleted(nil, 1, true))

	mustSubscribe(t, conn)
	conn.Push(subscribeCompleted(2))

	req = mustRead(t, conn)
	assert.Equal(t, int64(1), req.From.Commit)
	conn.Push(readCompleted(nil, 1, false))

	conn.Push(eventAppeared(0))
	conn.Push(eventAppeared(1))
	conn.Push(eventAppeared(1))
	conn.Push(eventAppeared(2))
	conn.Push(eventAppeared(2))
	conn.Push(eventAppeared(1))
	conn.Push(eventAppeared(3))
	conn.Push(eventAppeared(5))
	conn.Push(eventAppeared(4))

	assert.Equal(t, []int64{2, 3, 5}, sink.collect(t, 3))
	sink.assertNoMoreDeliveries(t)
}

// Stream-not-found is absorbed as an empty, end-of-stream read.
func TestScenario4_StreamNotFoundAbsorbed(t *testing.T) {
	conn := fakeconn.New[position.Position](16)
	sink := newRecordingSink()
	sub := subscription.NewAllSubscription(conn, sink, subscription.FromBeginning[position.Position]())
	sub.Run(context.Background())
	sub.Request(10)

	req := mustRead(t, conn)
	assert.Equal(t, int64(0), req.From.Commit)
	conn.Push(failure(wire.ErrStreamNotFound))

	mustSubscribe(t, conn)
	conn.Push(subscribeCompleted(0))

	select {
	case <-sink.done:
		t.Fatalf("subscription terminated unexpectedly: err=%v", sink.err)
	case <-time.After(50 * time.Millisecond):
	}
}

// A duplicate SubscribeCompleted observed while CatchingUp is a no-op.
func TestScenario5_DuplicateSubscribeCompletedIgnored(t *testing.T) {
	conn := fakeconn.New[position.Position](32)
	sink := newRecordingSink()
	sub := subscription.NewAllSubscription(conn, sink, subscription.FromBeginning[position.Position]())
	sub.Run(context.Background())
	sub.Request(100)

	mustRead(t, conn)
	conn.Push(readCompleted([]event.Event[position.Position]{ev(0)}, 1, false))

	mustRead(t, conn)
	conn.Push(readCompleted(nil, 1, true))

	mustSubscribe(t, conn)
	conn.Push(subscribeCompleted(2))

	mustRead(t, conn) // CatchingUp entry read

	// Duplicate confirmation: must not trigger a second subscribe or read.
	conn.Push(subscribeCompleted(2))
	assertNoRead(t, conn)
	select {
	case <-conn.SubscribeCalls:
		t.Fatal("unexpected second SubscribeTo call")
	case <-time.After(50 * time.Millisecond):
	}

	conn.Push(readCompleted([]event.Event[position.Position]{ev(1), ev(2)}, 3, false))
	assert.Equal(t, []int64{0, 1, 2}, sink.collect(t, 3))
}

// Cancel in every state yields OnComplete and no further output.
func TestScenario6_CancelInEveryState(t *testing.T) {
	t.Run("Reading", func(t *testing.T) {
		conn := fakeconn.New[position.Position](16)
		sink := newRecordingSink()
		sub := subscription.NewAllSubscription(conn, sink, subscription.FromBeginning[position.Position]())
		sub.Run(context.Background())
		mustRead(t, conn)

		sub.Cancel()
		waitDone(t, sink)
		assert.Equal(t, []consumer.DropReason{consumer.DropUserInitiated}, drain(sink.dropped))
		select {
		case <-conn.UnsubscribeCalls:
			t.Fatal("unexpected Unsubscribe call: never subscribed in Reading")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("Subscribing", func(t *testing.T) {
		conn := fakeconn.New[position.Position](16)
		sink := newRecordingSink()
		sub := subscription.NewAllSubscription(conn, sink, subscription.FromBeginning[position.Position]())
		sub.Run(context.Background())
		mustRead(t, conn)
		conn.Push(readCompleted(nil, 0, true))
		mustSubscribe(t, conn)

		sub.Cancel()
		waitDone(t, sink)
	})

	t.Run("CatchingUp", func(t *testing.T) {
		conn := fakeconn.New[position.Position](16)
		sink := newRecordingSink()
		sub := subscription.NewAllSubscription(conn, sink, subscription.FromBeginning[position.Position]())
		sub.Run(context.Background())
		mustRead(t, conn)
		conn.Push(readCompleted(nil, 0, true))
		mustSubscribe(t, conn)
		conn.Push(subscribeCompleted(5))
		mustRead(t, conn)

		sub.Cancel()
		mustUnsubscribe(t, conn)
		waitDone(t, sink)
	})

	t.Run("Subscribed", func(t *testing.T) {
		conn := fakeconn.New[position.Position](16)
		sink := newRecordingSink()
		sub := subscription.NewAllSubscription(conn, sink, subscription.FromBeginning[position.Position]())
		sub.Run(context.Background())
		mustRead(t, conn)
		conn.Push(readCompleted(nil, 0, true))
		mustSubscribe(t, conn)
		conn.Push(subscribeCompleted(0))
		mustRead(t, conn) // CatchingUp entry read
		conn.Push(readCompleted(nil, 0, false))

		sub.Cancel()
		mustUnsubscribe(t, conn)
		waitDone(t, sink)

		conn.Push(eventAppeared(99))
		sink.assertNoMoreDeliveries(t)
	})
}

func waitDone(t *testing.T, sink *recordingSink) {
	t.Helper()
	select {
	case <-sink.done:
		require.False(t, sink.onErr, "expected OnComplete, got OnError(%v)", sink.err)
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for subscription termination")
	}
}

// A pre-flight probe ack lets the subscription proceed straight into its
// normal Reading entry; in finite mode the end-of-stream read completes it.
func TestPreflightProbe_SucceedsThenReads(t *testing.T) {
	conn := fakeconn.New[position.Position](16)
	sink := newRecordingSink()
	sub := subscription.NewAllSubscription(conn, sink, subscription.FromBeginning[position.Position](),
		subscription.WithPreflightProbe[position.Position](),
		subscription.WithProbeTimeout[position.Position](waitTimeout),
		subscription.WithFinite[position.Position](),
	)
	sub.Run(context.Background())

	select {
	case req := <-conn.ProbeCalls:
		conn.Push(wire.Inbound[position.Position]{
			Kind:  wire.KindProbeAcknowledged,
			Probe: &wire.ProbeAcknowledged{CorrelationID: req.CorrelationID},
		})
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for the pre-flight probe request")
	}

	mustRead(t, conn)
	conn.Push(readCompleted(nil, 0, true))
	waitDone(t, sink)
}

// A failed pre-flight probe fails the subscription before it ever issues a
// Read or SubscribeTo request.
func TestPreflightProbe_FailureTerminatesSubscription(t *testing.T) {
	conn := fakeconn.New[position.Position](16)
	sink := newRecordingSink()
	sub := subscription.NewAllSubscription(conn, sink, subscription.FromBeginning[position.Position](),
		subscription.WithPreflightProbe[position.Position](),
		subscription.WithProbeTimeout[position.Position](waitTimeout),
	)
	sub.Run(context.Background())

	select {
	case <-conn.ProbeCalls:
		conn.Push(wire.Inbound[position.Position]{
			Kind: wire.KindFailure,
			Err:  wire.ErrServerError,
		})
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for the pre-flight probe request")
	}

	select {
	case <-sink.done:
		require.True(t, sink.onErr, "expected OnError from a failed pre-flight probe")
		assert.ErrorIs(t, sink.err, wire.ErrServerError)
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for subscription termination")
	}
	assertNoRead(t, conn)
}

func drain(ch chan consumer.DropReason) []consumer.DropReason {
	out := []consumer.DropReason{}
	for {
		select {
		case r := <-ch:
			out = append(out, r)
		default:
			return out
		}
	}
}
