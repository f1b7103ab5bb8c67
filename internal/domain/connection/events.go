package connection

import (
	"time"

	"github.com/okian/hurdletime/internal/domain/model"
)

// EventKind distinguishes manager events.
type EventKind int

// Event kinds.
const (
	StateChanged EventKind = iota
	LinkLost
)

func (k EventKind) String() string {
	if k == LinkLost {
		return "connection_lost"
	}
	return "connection_state"
}

// Event is published on every state transition. A LinkLost event is
// emitted in addition to the StateChanged one when liveness fails.
type Event struct {
	Kind   EventKind
	From   model.ConnectionState
	To     model.ConnectionState
	Device string
	Err    error
	At     time.Time
}
