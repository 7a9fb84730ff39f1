// Package position defines the ordered position types used to address events
// in a stream or in the all-streams log, and the small contract the
// subscription state machine needs to stay generic over either one.
package position

import "fmt"

// P is the contract the subscription skeleton needs from a position type:
// a total order plus the two sentinel values used at construction time.
// EventNumber and Position both implement it.
type P[T any] interface {
	// Less reports whether the receiver sorts strictly before other.
	Less(other T) bool
	// Equal reports whether the receiver and other denote the same position.
	Equal(other T) bool
	// String renders the position for logging.
	fmt.Stringer
}

// EventNumber is a per-stream, zero-based, monotonically increasing position.
type EventNumber uint64

// FirstEventNumber is the position of the first event ever written to a stream.
const FirstEventNumber EventNumber = 0

// Less reports n < other.
func (n EventNumber) Less(other EventNumber) bool { return n < other }

// Equal reports n == other.
func (n EventNumber) Equal(other EventNumber) bool { return n == other }

func (n EventNumber) String() string { return fmt.Sprintf("%d", uint64(n)) }

// Position is a commit/prepare pair addressing a record in the all-streams
// transaction log. Positions are ordered lexicographically by (Commit, Prepare).
type Position struct {
	Commit  int64
	Prepare int64
}

// FirstPosition is the position of the first record in the transaction log.
var FirstPosition = Position{Commit: 0, Prepare: 0}

// Less reports whether p sorts strictly before other.
func (p Position) Less(other Position) bool {
	if p.Commit != other.Commit {
		return p.Commit < other.Commit
	}
	return p.Prepare < other.Prepare
}

// Equal reports whether p and other denote the same record.
func (p Position) Equal(other Position) bool {
	return p.Commit == other.Commit && p.Prepare == other.Prepare
}

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.Commit, p.Prepare) }

var (
	_ P[EventNumber] = EventNumber(0)
	_ P[Position]    = Position{}
)
