package subscription

import (
	"github.com/eventline-go/catchup/pkg/connection"
	"github.com/eventline-go/catchup/pkg/consumer"
	"github.com/eventline-go/catchup/pkg/position"
)

// NewStreamSubscription builds a catch-up subscription over a single named
// stream, positions addressed by EventNumber. Call Run to start it.
func NewStreamSubscription(
	conn connection.Port[position.EventNumber],
	sink consumer.Sink[position.EventNumber],
	streamID string,
	start Start[position.EventNumber],
	opts ...Option[position.EventNumber],
) *Subscription[position.EventNumber] {
	cfg := newConfig(streamID, "stream", start, opts...)
	return newSubscription[position.EventNumber](conn, sink, cfg)
}
