package service

import (
	"sync"
	"time"

	"github.com/okian/hurdletime/internal/domain/model"
	"github.com/okian/hurdletime/internal/domain/race"
)

// Event types pushed to subscribers.
const (
	EventConnection     = "connection"
	EventConnectionLost = "connection_lost"
	EventSplit          = "split"
	EventRace           = "race"
	EventSession        = "session"
	EventRoster         = "roster"
)

// Event is one notification for UI subscribers.
type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

// ConnectionChange is the payload of connection events.
type ConnectionChange struct {
	From   model.ConnectionState `json:"from"`
	To     model.ConnectionState `json:"to"`
	Device string                `json:"device,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// SplitReceived is the payload of split events.
type SplitReceived struct {
	Ms       uint32        `json:"ms"`
	Accepted bool          `json:"accepted"`
	Race     race.Snapshot `json:"race"`
}

// hub fans events out to subscribers. Slow subscribers lose events rather
// than stall the command loop.
type hub struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

func (h *hub) subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, max(buffer, 1))
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
}

func (h *hub) publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// closeAll ends every subscription.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
