// Package subscription implements the catch-up subscription state machine:
// a single generic skeleton, parameterized over the position type, shared
// by both the per-stream and all-streams instantiations. Each Subscription
// runs its own goroutine with a mailbox-serialized run loop, following this
// codebase's reconciler/worker pattern: a for-select loop owning all
// mutable state, with no locking required within one instance.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eventline-go/catchup/pkg/backpressure"
	"github.com/eventline-go/catchup/pkg/connection"
	"github.com/eventline-go/catchup/pkg/consumer"
	"github.com/eventline-go/catchup/pkg/event"
	"github.com/eventline-go/catchup/pkg/log"
	"github.com/eventline-go/catchup/pkg/metrics"
	"github.com/eventline-go/catchup/pkg/position"
	"github.com/eventline-go/catchup/pkg/probe"
	"github.com/eventline-go/catchup/pkg/reconciler"
	"github.com/eventline-go/catchup/pkg/wire"
)

// requestTimeout bounds each individual outbound call to the connection
// port, the way pkg/connection wraps every RPC in its own context.WithTimeout.
const requestTimeout = 10 * time.Second

type stateID int

const (
	stateReading stateID = iota
	stateSubscribing
	stateSubscribingFromLast
	stateCatchingUp
	stateSubscribed
	stateUnsubscribing
	stateTerminal
)

func (s stateID) String() string {
	switch s {
	case stateReading:
		return "Reading"
	case stateSubscribing:
		return "Subscribing"
	case stateSubscribingFromLast:
		return "SubscribingFromLast"
	case stateCatchingUp:
		return "CatchingUp"
	case stateSubscribed:
		return "Subscribed"
	case stateUnsubscribing:
		return "Unsubscribing"
	case stateTerminal:
		return "Terminal"
	default:
		return "Unknown"
	}
}

// Subscription is the catch-up state machine for one stream or all-streams
// read, generic over its position type P. Construct one with
// NewStreamSubscription or NewAllSubscription; call Run once to start its
// mailbox goroutine.
type Subscription[P position.P[P]] struct {
	cfg   Config[P]
	conn  connection.Port[P]
	sink  consumer.Sink[P]
	gate  *backpressure.Gate[P]
	probe *probe.AckProbe[P]
	logger zerolog.Logger

	state stateID
	next  P
	rec   *reconciler.Reconciler[P]

	catchUpTimer *metrics.Timer

	subscribingActive bool
	liveStarted       bool
	terminated        bool

	demandCh chan consumer.Demand
	done     chan struct{}
}

func newSubscription[P position.P[P]](conn connection.Port[P], sink consumer.Sink[P], cfg Config[P]) *Subscription[P] {
	var fromPos P
	hasFrom := false
	if cfg.Start.kind == startExact {
		fromPos = cfg.Start.exact
		hasFrom = true
	}

	id := uuid.NewString()
	logger := log.WithStream(cfg.StreamID)
	logger = logger.With().Str("subscription_id", id).Str("kind", cfg.Kind).Logger()

	return &Subscription[P]{
		cfg:      cfg,
		conn:     conn,
		sink:     sink,
		gate:     backpressure.New[P](fromPos, hasFrom, cfg.BufferCapacity),
		probe:    probe.New[P](conn, cfg.ProbeTimeout),
		logger:   logger,
		demandCh: make(chan consumer.Demand, 32),
		done:     make(chan struct{}),
	}
}

// Run starts the subscription's mailbox goroutine. ctx bounds the entire
// subscription lifetime: cancelling it is observed as connection
// termination, surfacing as a single clean OnComplete.
func (s *Subscription[P]) Run(ctx context.Context) {
	metrics.ActiveSubscriptions.WithLabelValues(s.cfg.Kind).Inc()
	metrics.RegisterComponent("subscription", true, "running")
	go func() {
		defer metrics.ActiveSubscriptions.WithLabelValues(s.cfg.Kind).Dec()
		s.run(ctx)
	}()
}

// Request adds n to outstanding consumer demand (n >= 1). It never blocks
// past the subscription's own termination.
func (s *Subscription[P]) Request(n uint64) {
	if n == 0 {
		return
	}
	select {
	case s.demandCh <- consumer.Demand{Request: n}:
	case <-s.done:
	}
}

// Cancel withdraws demand terminally, ending the subscription.
func (s *Subscription[P]) Cancel() {
	select {
	case s.demandCh <- consumer.Demand{Cancel: true}:
	case <-s.done:
	}
}

// Done closes once the subscription has reached its Terminal state and
// delivered exactly one of OnComplete/OnError to the consumer.
func (s *Subscription[P]) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription[P]) run(ctx context.Context) {
	defer close(s.done)
	s.enterInitial(ctx)
	for s.state != stateTerminal {
		select {
		case <-ctx.Done():
			s.completeDropped(consumer.DropConnectionClosed)
			return
		case d, ok := <-s.demandCh:
			if !ok {
				return
			}
			s.onDemand(ctx, d)
		case msg, ok := <-s.conn.Events():
			if !ok {
				s.completeDropped(consumer.DropConnectionClosed)
				return
			}
			s.onInbound(ctx, msg)
		}
	}
}

func (s *Subscription[P]) enterInitial(ctx context.Context) {
	if s.cfg.PreflightProbe {
		probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeoutOrDefault())
		err := s.probe.Check(probeCtx, uuid.NewString(), s.conn.Events())
		cancel()
		if err != nil {
			s.fail(fmt.Errorf("pre-flight readiness probe: %w", err))
			return
		}
	}

	switch s.cfg.Start.kind {
	case startFirst:
		var first P
		s.next = first
		s.enterReading(ctx)
	case startExact:
		s.next = s.cfg.Start.exact
		s.enterReading(ctx)
	case startLast:
		if s.cfg.Infinite {
			s.enterSubscribingFromLast(ctx)
		} else {
			s.complete()
		}
	}
}

func (s *Subscription[P]) probeTimeoutOrDefault() time.Duration {
	if s.cfg.ProbeTimeout > 0 {
		return s.cfg.ProbeTimeout
	}
	return probe.DefaultTimeout
}

func (s *Subscription[P]) onInbound(ctx context.Context, msg wire.Inbound[P]) {
	switch s.state {
	case stateReading:
		s.onReading(ctx, msg)
	case stateSubscribing:
		s.onSubscribing(ctx, msg)
	case stateSubscribingFromLast:
		s.onSubscribingFromLast(ctx, msg)
	case stateCatchingUp:
		s.onCatchingUp(ctx, msg)
	case stateSubscribed:
		s.onSubscribed(ctx, msg)
	case stateUnsubscribing:
		s.onUnsubscribing(ctx, msg)
	}
}

func (s *Subscription[P]) onDemand(ctx context.Context, d consumer.Demand) {
	if d.Cancel {
		if s.subscribingActive {
			s.issueUnsubscribeBestEffort(ctx)
		}
		s.gate.Reset()
		s.completeDropped(consumer.DropUserInitiated)
		return
	}
	s.gate.Grant(d.Request)
	s.deliverPending()
}

// --- Reading ---

func (s *Subscription[P]) enterReading(ctx context.Context) {
	s.state = stateReading
	s.issueRead(ctx, s.next)
}

func (s *Subscription[P]) onReading(ctx context.Context, msg wire.Inbound[P]) {
	switch msg.Kind {
	case wire.KindReadCompleted:
		s.handleReadCompleted(ctx, *msg.Read, false)
	case wire.KindFailure:
		if wire.IsRecoverableToEmpty(msg.Err) {
			s.handleReadCompleted(ctx, wire.ReadCompleted[P]{Events: nil, NextFrom: s.next, EndOfStream: true}, true)
			return
		}
		s.terminateOnFailure(msg.Err)
	}
}

func (s *Subscription[P]) handleReadCompleted(ctx context.Context, rc wire.ReadCompleted[P], notFound bool) {
	s.offer(rc.Events, "read")
	s.deliverPending()

	if rc.EndOfStream {
		s.next = rc.NextFrom
		if s.cfg.Infinite {
			s.enterSubscribing(ctx)
			return
		}
		if notFound {
			s.completeDropped(consumer.DropStreamNotFoundFinite)
			return
		}
		s.complete()
		return
	}

	s.next = rc.NextFrom
	if s.gate.Saturated() {
		s.enterUnsubscribing(ctx)
		return
	}
	s.enterReading(ctx)
}

// --- Subscribing / SubscribingFromLast ---

func (s *Subscription[P]) enterSubscribing(ctx context.Context) {
	s.state = stateSubscribing
	s.issueSubscribe(ctx)
}

func (s *Subscription[P]) enterSubscribingFromLast(ctx context.Context) {
	s.state = stateSubscribingFromLast
	s.issueSubscribe(ctx)
}

func (s *Subscription[P]) onSubscribing(ctx context.Context, msg wire.Inbound[P]) {
	switch msg.Kind {
	case wire.KindSubscribeCompleted:
		s.subscribingActive = true
		last, hasLast := s.gate.Last()
		mustCatchUp := !hasLast || last.Less(msg.Subscribe.LastKnown)
		if mustCatchUp {
			s.rec = reconciler.New[P](msg.Subscribe.LastKnown)
			s.catchUpTimer = metrics.NewTimer()
			s.enterCatchingUp(ctx)
			return
		}
		s.enterSubscribed(ctx)
	case wire.KindUnsubscribed:
		s.subscribingActive = false
		s.complete()
	case wire.KindFailure:
		s.terminateOnFailure(msg.Err)
	}
}

func (s *Subscription[P]) onSubscribingFromLast(ctx context.Context, msg wire.Inbound[P]) {
	switch msg.Kind {
	case wire.KindSubscribeCompleted:
		s.subscribingActive = true
		s.enterSubscribed(ctx)
	case wire.KindUnsubscribed:
		s.subscribingActive = false
		s.complete()
	case wire.KindFailure:
		s.terminateOnFailure(msg.Err)
	}
}

// --- CatchingUp ---

func (s *Subscription[P]) enterCatchingUp(ctx context.Context) {
	s.state = stateCatchingUp
	s.issueRead(ctx, s.next)
}

func (s *Subscription[P]) onCatchingUp(ctx context.Context, msg wire.Inbound[P]) {
	switch msg.Kind {
	case wire.KindEventAppeared:
		s.rec.Stash(msg.Appeared.Event)
	case wire.KindReadCompleted:
		s.handleCatchingUpRead(ctx, *msg.Read)
	case wire.KindFailure:
		if wire.IsRecoverableToEmpty(msg.Err) {
			s.flushStashAndSubscribe(ctx)
			return
		}
		s.terminateOnFailure(msg.Err)
	case wire.KindUnsubscribed:
		s.subscribingActive = false
		s.complete()
	case wire.KindSubscribeCompleted:
		// A duplicate confirmation observed while already catching up is a no-op.
	}
}

func (s *Subscription[P]) handleCatchingUpRead(ctx context.Context, rc wire.ReadCompleted[P]) {
	s.offer(rc.Events, "read")
	s.deliverPending()

	if s.rec.Reconcile(rc.Events) {
		s.flushStashAndSubscribe(ctx)
		return
	}

	s.next = rc.NextFrom
	if s.gate.Saturated() {
		s.enterUnsubscribing(ctx)
		return
	}
	s.enterCatchingUp(ctx)
}

func (s *Subscription[P]) flushStashAndSubscribe(ctx context.Context) {
	s.offer(s.rec.Drain(), "stash")
	s.rec = nil
	if s.catchUpTimer != nil {
		s.catchUpTimer.ObserveDuration(metrics.CatchUpDuration)
		s.catchUpTimer = nil
	}
	s.deliverPending()
	s.enterSubscribed(ctx)
}

// --- Subscribed ---

func (s *Subscription[P]) enterSubscribed(ctx context.Context) {
	s.state = stateSubscribed
	if !s.liveStarted {
		s.liveStarted = true
		s.sink.OnLiveProcessingStarted()
	}
}

func (s *Subscription[P]) onSubscribed(ctx context.Context, msg wire.Inbound[P]) {
	switch msg.Kind {
	case wire.KindEventAppeared:
		s.offer([]event.Event[P]{msg.Appeared.Event}, "live")
		s.deliverPending()
		if s.gate.Saturated() {
			s.enterUnsubscribing(ctx)
		}
	case wire.KindUnsubscribed:
		s.subscribingActive = false
		s.complete()
	case wire.KindFailure:
		s.terminateOnFailure(msg.Err)
	case wire.KindSubscribeCompleted:
		// duplicate confirmation once already subscribed: no-op.
	}
}

// --- Unsubscribing ---

func (s *Subscription[P]) enterUnsubscribing(ctx context.Context) {
	metrics.BackpressureStalls.WithLabelValues(s.cfg.Kind).Inc()
	s.state = stateUnsubscribing
	if s.subscribingActive {
		s.issueUnsubscribe(ctx)
	}
}

func (s *Subscription[P]) onUnsubscribing(ctx context.Context, msg wire.Inbound[P]) {
	switch msg.Kind {
	case wire.KindEventAppeared:
		// Absorbed: live traffic arriving while tearing down is discarded.
	case wire.KindUnsubscribed:
		s.subscribingActive = false
		s.complete()
	case wire.KindFailure:
		s.terminateOnFailure(msg.Err)
	}
}

// --- Outbound effects ---

func (s *Subscription[P]) issueRead(ctx context.Context, from P) {
	rctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	req := wire.ReadRequest[P]{
		CorrelationID:  uuid.NewString(),
		StreamID:       s.cfg.StreamID,
		From:           from,
		Count:          s.cfg.ReadBatchSize,
		Direction:      wire.Forward,
		ResolveLinkTos: s.cfg.ResolveLinkTos,
		Credentials:    s.cfg.Credentials,
	}
	if err := s.conn.Read(rctx, req); err != nil {
		s.fail(fmt.Errorf("read request: %w", err))
	}
}

func (s *Subscription[P]) issueSubscribe(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	req := wire.SubscribeRequest{
		CorrelationID:  uuid.NewString(),
		StreamID:       s.cfg.StreamID,
		ResolveLinkTos: s.cfg.ResolveLinkTos,
		Credentials:    s.cfg.Credentials,
	}
	if err := s.conn.SubscribeTo(sctx, req); err != nil {
		s.fail(fmt.Errorf("subscribe request: %w", err))
	}
}

func (s *Subscription[P]) issueUnsubscribe(ctx context.Context) {
	uctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	req := wire.UnsubscribeRequest{CorrelationID: uuid.NewString(), Credentials: s.cfg.Credentials}
	if err := s.conn.Unsubscribe(uctx, req); err != nil {
		s.fail(fmt.Errorf("unsubscribe request: %w", err))
	}
}

// issueUnsubscribeBestEffort is used on Cancel: the subscription is ending
// regardless of the outcome, so a transport error here is logged, not fatal.
func (s *Subscription[P]) issueUnsubscribeBestEffort(ctx context.Context) {
	uctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	req := wire.UnsubscribeRequest{CorrelationID: uuid.NewString(), Credentials: s.cfg.Credentials}
	if err := s.conn.Unsubscribe(uctx, req); err != nil {
		s.logger.Warn().Err(err).Msg("unsubscribe on cancel failed")
	}
}

func (s *Subscription[P]) offer(events []event.Event[P], origin string) {
	if len(events) == 0 {
		return
	}
	accepted := s.gate.Offer(events)
	if dropped := len(events) - accepted; dropped > 0 {
		metrics.EventsDroppedTotal.WithLabelValues(s.cfg.Kind, origin).Add(float64(dropped))
	}
}

func (s *Subscription[P]) deliverPending() {
	events := s.gate.Drain()
	if len(events) == 0 {
		return
	}
	metrics.EventsDeliveredTotal.WithLabelValues(s.cfg.Kind).Add(float64(len(events)))
	for _, e := range events {
		s.sink.OnNext(e)
	}
}

func dropReasonForFailure(err error) (consumer.DropReason, bool) {
	switch {
	case errors.Is(err, wire.ErrServerError):
		return consumer.DropServerError, true
	case errors.Is(err, wire.ErrSubscriberLimit):
		return consumer.DropSubscriberMaxCountReached, true
	default:
		return 0, false
	}
}

func (s *Subscription[P]) terminateOnFailure(err error) {
	if reason, ok := dropReasonForFailure(err); ok {
		s.failDropped(reason, err)
		return
	}
	s.fail(err)
}

// --- Terminal transitions ---

func (s *Subscription[P]) complete() {
	if s.terminated {
		return
	}
	s.terminated = true
	s.state = stateTerminal
	metrics.UpdateComponent("subscription", true, "completed")
	s.sink.OnComplete()
}

func (s *Subscription[P]) completeDropped(reason consumer.DropReason) {
	if s.terminated {
		return
	}
	s.terminated = true
	s.state = stateTerminal
	metrics.UpdateComponent("subscription", true, "dropped: "+reason.String())
	s.sink.OnDropped(reason)
	s.sink.OnComplete()
}

func (s *Subscription[P]) fail(err error) {
	if s.terminated {
		return
	}
	s.terminated = true
	s.state = stateTerminal
	metrics.UpdateComponent("subscription", false, err.Error())
	s.sink.OnError(err)
}

func (s *Subscription[P]) failDropped(reason consumer.DropReason, err error) {
	if s.terminated {
		return
	}
	s.terminated = true
	s.state = stateTerminal
	metrics.UpdateComponent("subscription", false, err.Error())
	s.sink.OnDropped(reason)
	s.sink.OnError(err)
}
