package wire

import "github.com/eventline-go/catchup/pkg/event"

// ReadCompleted is the server's reply to a ReadRequest: a page of events in
// position order, the position to resume reading from, and whether the
// page reached the end of the stream/log as observed at read time.
type ReadCompleted[P any] struct {
	CorrelationID string
	Events        []event.Event[P]
	NextFrom      P
	EndOfStream   bool
}

// SubscribeCompleted confirms a subscription and reports the last position
// known to the server at confirmation time (the stream's last event number,
// or the log's last commit position). The subscription core compares this
// against its own last-delivered position to decide whether a catch-up read
// is required.
type SubscribeCompleted[P any] struct {
	CorrelationID string
	LastKnown     P
}

// EventAppeared is a live push notification for a single newly appended event.
type EventAppeared[P any] struct {
	CorrelationID string
	Event         event.Event[P]
}

// Unsubscribed is sent by the server when it tears down a push subscription,
// either because the client asked it to or because the server is shutting
// the channel down.
type Unsubscribed struct {
	CorrelationID string
}

// ProbeAcknowledged answers a ProbeRequest.
type ProbeAcknowledged struct {
	CorrelationID string
}
