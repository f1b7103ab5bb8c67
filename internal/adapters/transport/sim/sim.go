// Package sim is a simulated hurdle sensor implementing the connection
// Transport. It emits the same 4-byte frames as the hardware.
package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/hurdletime/internal/domain/connection"
	"github.com/okian/hurdletime/internal/domain/decoder"
	"github.com/okian/hurdletime/pkg/logger"
)

// Transport simulates one sensor within radio range.
type Transport struct {
	name           string
	id             string
	interval       time.Duration
	jitter         time.Duration
	discoveryDelay time.Duration

	mu   sync.Mutex
	link *link
}

type link struct {
	dev    connection.Device
	mu     sync.Mutex
	alive  bool
	notify func([]byte)
	stop   chan struct{}
}

func (l *link) Device() connection.Device { return l.dev }

// New returns a simulated sensor advertising as ESP32-SIM.
func New(opts ...Option) *Transport {
	t := &Transport{
		name:     "ESP32-SIM",
		id:       uuid.NewString(),
		interval: 1200 * time.Millisecond,
		jitter:   150 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) FindDevice(ctx context.Context, prefixes []string) (connection.Device, error) {
	if t.discoveryDelay > 0 {
		timer := time.NewTimer(t.discoveryDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return connection.Device{}, ctx.Err()
		case <-timer.C:
		}
	}
	for _, p := range prefixes {
		if strings.HasPrefix(t.name, p) {
			return connection.Device{ID: t.id, Name: t.name}, nil
		}
	}
	return connection.Device{}, fmt.Errorf("%w: %s does not match %v", connection.ErrDeviceNotFound, t.name, prefixes)
}

func (t *Transport) Connect(ctx context.Context, d connection.Device) (connection.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.ID != t.id {
		return nil, fmt.Errorf("unknown device %s", d.ID)
	}
	l := &link{dev: d, alive: true, stop: make(chan struct{})}
	t.mu.Lock()
	old := t.link
	t.link = l
	t.mu.Unlock()
	if old != nil {
		old.close()
	}
	return l, nil
}

func (t *Transport) Subscribe(_ context.Context, cl connection.Link, onNotify func([]byte)) error {
	l, ok := cl.(*link)
	if !ok {
		return fmt.Errorf("%w: foreign link", connection.ErrServiceMissing)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.alive {
		return fmt.Errorf("link closed")
	}
	l.notify = onNotify
	return nil
}

func (t *Transport) Disconnect(cl connection.Link) error {
	if l, ok := cl.(*link); ok {
		l.close()
	}
	return nil
}

func (t *Transport) IsLinkAlive(cl connection.Link) bool {
	l, ok := cl.(*link)
	if !ok {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.alive
}

// Emit delivers one raw frame carrying ms. It reports false when no live
// subscription exists.
func (t *Transport) Emit(ms uint32) bool {
	return t.EmitRaw(decoder.Encode(ms))
}

// EmitRaw delivers an arbitrary payload, malformed ones included.
func (t *Transport) EmitRaw(buf []byte) bool {
	l := t.current()
	if l == nil {
		return false
	}
	l.mu.Lock()
	cb, alive := l.notify, l.alive
	l.mu.Unlock()
	if !alive || cb == nil {
		return false
	}
	cb(buf)
	return true
}

// DropLink kills the current link without notifying anyone, as when the
// sensor walks out of range. The next liveness check notices.
func (t *Transport) DropLink() {
	if l := t.current(); l != nil {
		l.close()
	}
}

// SimulateRun emits hurdles cumulative splits, spaced by the configured
// interval plus jitter, until done or the link closes.
func (t *Transport) SimulateRun(ctx context.Context, hurdles int) {
	l := t.current()
	if l == nil || hurdles < 1 {
		return
	}
	log := logger.Get().Named("sim")
	go func() {
		var elapsed time.Duration
		for i := 0; i < hurdles; i++ {
			step := t.interval
			if t.jitter > 0 {
				step += time.Duration(rand.Int64N(int64(2*t.jitter))) - t.jitter
			}
			step = max(step, time.Millisecond)
			select {
			case <-ctx.Done():
				return
			case <-l.stop:
				return
			case <-time.After(step):
			}
			elapsed += step
			if !t.Emit(uint32(elapsed.Milliseconds())) {
				return
			}
			log.Debug(ctx, "simulated hurdle", logger.Int("hurdle", i+1), logger.Duration("elapsed", elapsed))
		}
	}()
}

func (t *Transport) current() *link {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.link
}

func (l *link) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.alive {
		l.alive = false
		close(l.stop)
	}
}
