// Package consumer defines the downstream sink the subscription state
// machine delivers events to, and the demand/cancel signals that flow back
// from it (reactive-streams-shaped but language-neutral).
package consumer

import "github.com/eventline-go/catchup/pkg/event"

// DropReason explains why a subscription ended, supplementing OnComplete /
// OnError with a richer "subscription dropped" taxonomy.
type DropReason int

const (
	DropUserInitiated DropReason = iota
	DropConnectionClosed
	DropServerError
	DropStreamNotFoundFinite
	DropSubscriberMaxCountReached
)

func (r DropReason) String() string {
	switch r {
	case DropUserInitiated:
		return "UserInitiated"
	case DropConnectionClosed:
		return "ConnectionClosed"
	case DropServerError:
		return "ServerError"
	case DropStreamNotFoundFinite:
		return "StreamNotFoundFinite"
	case DropSubscriberMaxCountReached:
		return "SubscriberMaxCountReached"
	default:
		return "Unknown"
	}
}

// Sink is the consumer side of the subscription protocol. Exactly one of
// OnComplete / OnError is ever called. OnDropped precedes it when the
// subscription was dropped for one of the DropReason causes (including a
// consumer Cancel); a finite end-of-stream completion, a server Unsubscribed
// reply, or any other failure reports only OnComplete / OnError. OnNext is only ever called
// while the consumer has outstanding demand (I5); after Cancel, no further
// OnNext occurs.
type Sink[P any] interface {
	// OnNext delivers exactly one event. Never called with zero outstanding demand.
	OnNext(e event.Event[P])

	// OnLiveProcessingStarted is called exactly once, the instant the
	// subscription first catches up to live traffic (CatchingUp →
	// Subscribed, or Subscribing → Subscribed directly). It is never called
	// again even if the subscription later falls behind and recatches up,
	// since the core never re-enters CatchingUp once in Subscribed.
	OnLiveProcessingStarted()

	// OnDropped is called at most once, immediately before the terminal
	// OnComplete or OnError, explaining why the subscription ended.
	OnDropped(reason DropReason)

	// OnComplete is a terminal signal: no further calls of any kind follow it.
	OnComplete()

	// OnError is a terminal signal: no further calls of any kind follow it.
	OnError(err error)
}

// Demand is the additive credit signal a consumer uses to request events,
// and the cancellation signal it uses to tear the subscription down. A
// subscription reads these off a channel rather than via direct method
// calls so it can multiplex them alongside connection replies in its
// mailbox (pkg/subscription).
type Demand struct {
	// Request adds N to the subscription's outstanding demand. N must be >= 1.
	Request uint64
	// Cancel, when true, asks the subscription to stop immediately,
	// ignoring Request. A Demand message never sets both.
	Cancel bool
}
