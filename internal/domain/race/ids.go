package race

import (
	"sync"

	"github.com/segmentio/ksuid"
)

// monotonicIDs hands out KSUIDs that sort strictly in creation order, even
// for sessions committed within the same second.
type monotonicIDs struct {
	mu   sync.Mutex
	last ksuid.KSUID
}

func (g *monotonicIDs) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := ksuid.New()
	if ksuid.Compare(id, g.last) <= 0 {
		id = g.last.Next()
	}
	g.last = id
	return id.String()
}
