package subscription

import (
	"time"

	"github.com/eventline-go/catchup/pkg/backpressure"
	"github.com/eventline-go/catchup/pkg/position"
	"github.com/eventline-go/catchup/pkg/wire"
)

// startKind tags which of the three from_exclusive cases a Start value
// represents.
type startKind int

const (
	startFirst startKind = iota
	startExact
	startLast
)

// Start captures the subscription's from_exclusive construction parameter:
// None (begin at First), Some(Exact(p)), or Some(Last) — "subscribe without
// a historical read, beginning at whatever is live when the server confirms
// the subscription".
type Start[P position.P[P]] struct {
	kind  startKind
	exact P
}

// FromBeginning starts the subscription at the position type's First
// sentinel, delivering every event ever written.
func FromBeginning[P position.P[P]]() Start[P] {
	return Start[P]{kind: startFirst}
}

// FromExact starts the subscription strictly after p: p itself is filtered
// out by the monotone gate.
func FromExact[P position.P[P]](p P) Start[P] {
	return Start[P]{kind: startExact, exact: p}
}

// FromEnd subscribes without any historical read, beginning at whatever
// position the server reports live at confirmation time. Combined with
// WithFinite, the subscription completes immediately without ever calling
// SubscribeTo.
func FromEnd[P position.P[P]]() Start[P] {
	return Start[P]{kind: startLast}
}

// Config holds every immutable parameter a subscription is constructed
// with. It is never mutated after construction; the zero value is not
// valid, use New*Subscription.
type Config[P position.P[P]] struct {
	StreamID       string
	Start          Start[P]
	ResolveLinkTos bool
	Credentials    *wire.Credentials
	Infinite       bool
	ReadBatchSize  uint32
	BufferCapacity int
	ProbeTimeout   time.Duration
	PreflightProbe bool
	Kind           string
}

// Option configures a Config at construction time, following the
// functional-options idiom used throughout this codebase's constructors.
type Option[P position.P[P]] func(*Config[P])

// WithCredentials attaches credentials to every outbound Read and
// SubscribeTo request.
func WithCredentials[P position.P[P]](creds wire.Credentials) Option[P] {
	return func(c *Config[P]) { c.Credentials = &creds }
}

// WithResolveLinkTos sets the resolve-link-tos passthrough flag.
func WithResolveLinkTos[P position.P[P]](resolve bool) Option[P] {
	return func(c *Config[P]) { c.ResolveLinkTos = resolve }
}

// WithReadBatchSize overrides the default historical-read page size.
func WithReadBatchSize[P position.P[P]](n uint32) Option[P] {
	return func(c *Config[P]) {
		if n > 0 {
			c.ReadBatchSize = n
		}
	}
}

// WithBufferCapacity overrides the backpressure gate's bounded buffer size.
func WithBufferCapacity[P position.P[P]](n int) Option[P] {
	return func(c *Config[P]) { c.BufferCapacity = n }
}

// WithFinite turns off live subscription: the subscription completes at
// end-of-stream without ever calling SubscribeTo.
func WithFinite[P position.P[P]]() Option[P] {
	return func(c *Config[P]) { c.Infinite = false }
}

// WithProbeTimeout overrides the readiness probe's round-trip deadline.
func WithProbeTimeout[P position.P[P]](d time.Duration) Option[P] {
	return func(c *Config[P]) { c.ProbeTimeout = d }
}

// WithPreflightProbe enables a one-time readiness round trip (pkg/probe)
// before the subscription issues its first Read or SubscribeTo, failing the
// subscription immediately if the connection doesn't answer. Off by
// default: the in-memory fakeconn.Driver answers every probe
// unconditionally, so the probe only earns its keep against a real,
// possibly-stale connection.
func WithPreflightProbe[P position.P[P]]() Option[P] {
	return func(c *Config[P]) { c.PreflightProbe = true }
}

const defaultReadBatchSize uint32 = 500

func newConfig[P position.P[P]](streamID string, kind string, start Start[P], opts ...Option[P]) Config[P] {
	cfg := Config[P]{
		StreamID:       streamID,
		Start:          start,
		Infinite:       true,
		ReadBatchSize:  defaultReadBatchSize,
		BufferCapacity: backpressure.DefaultBufferCapacity,
		ProbeTimeout:   0,
		Kind:           kind,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
