package connection

import (
	"context"
	"sync"
	"time"

	"github.com/okian/hurdletime/internal/domain/decoder"
	"github.com/okian/hurdletime/internal/domain/model"
	"github.com/okian/hurdletime/pkg/logger"
	"github.com/okian/hurdletime/pkg/metrics"
)

// Manager drives the sensor link state machine:
//
//	Disconnected -> Scanning -> Connecting -> Connected -> Lost
//
// Any failure during a scan returns to Disconnected. Lost is never
// recovered automatically.
type Manager struct {
	transport      Transport
	prefixes       []string
	connectTimeout time.Duration

	serialize func(fn func()) error
	onSplit   func(ms uint32, at time.Time)
	onEvent   func(Event)
	now       func() time.Time
	logger    logger.Logger

	mu         sync.Mutex
	state      model.ConnectionState
	device     Device
	link       Link
	lastSignal time.Time
	scanGen    uint64
	cancelScan context.CancelFunc
}

// NewManager creates a manager in the Disconnected state.
func NewManager(t Transport, opts ...Option) *Manager {
	m := &Manager{
		transport: t,
		prefixes:  append([]string(nil), decoder.DefaultNamePrefixes...),
		serialize: func(fn func()) error { fn(); return nil },
		now:       time.Now,
		logger:    logger.Get().Named("connection"),
		state:     model.Disconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	metrics.UpdateConnectionState(m.state.String())
	return m
}

// State returns the current connection state.
func (m *Manager) State() model.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// DeviceName returns the name of the current device, empty when there is none.
func (m *Manager) DeviceName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device.Name
}

// LastSignal returns the receipt time of the last notification, zero if none.
func (m *Manager) LastSignal() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSignal
}

// ScanAndConnect discovers a sensor matching namePrefixes (the configured
// defaults when empty), connects and subscribes to timing notifications.
// It blocks until the link is up or the attempt fails; every failure is a
// *FailedError and leaves the manager Disconnected.
//
// Transport calls run outside the serializer so Disconnect can cancel an
// attempt that is still in flight.
func (m *Manager) ScanAndConnect(ctx context.Context, namePrefixes []string) error {
	if len(namePrefixes) == 0 {
		namePrefixes = m.prefixes
	}

	var (
		scanCtx context.Context
		gen     uint64
		err     error
	)
	if serr := m.serialize(func() { scanCtx, gen, err = m.beginScan(ctx) }); serr != nil {
		return &FailedError{Cause: CauseCancelled, Err: serr}
	}
	if err != nil {
		return err
	}

	dev, err := m.transport.FindDevice(scanCtx, namePrefixes)
	if err == nil {
		if serr := m.serialize(func() { m.markConnecting(gen, dev) }); serr != nil {
			err = serr
		}
	}

	var link Link
	if err == nil {
		link, err = m.transport.Connect(scanCtx, dev)
	}
	if err == nil {
		err = m.transport.Subscribe(scanCtx, link, m.notificationHandler(link))
	}

	var result error
	if serr := m.serialize(func() { result = m.completeScan(scanCtx, gen, dev, link, err) }); serr != nil {
		m.release(link)
		return &FailedError{Cause: CauseCancelled, Err: serr}
	}
	return result
}

func (m *Manager) beginScan(ctx context.Context) (context.Context, uint64, error) {
	m.mu.Lock()
	switch m.state {
	case model.Scanning, model.Connecting, model.Connected:
		state := m.state
		m.mu.Unlock()
		metrics.RecordConnectionFailure(string(CauseBusy))
		m.logger.Warn(ctx, "scan rejected", logger.String("state", state.String()))
		return nil, 0, &FailedError{Cause: CauseBusy}
	}

	var (
		scanCtx context.Context
		cancel  context.CancelFunc
	)
	if m.connectTimeout > 0 {
		scanCtx, cancel = context.WithTimeout(ctx, m.connectTimeout)
	} else {
		scanCtx, cancel = context.WithCancel(ctx)
	}
	m.scanGen++
	gen := m.scanGen
	m.cancelScan = cancel
	m.device = Device{}
	ev := m.transition(model.Scanning)
	m.mu.Unlock()

	m.logger.Info(ctx, "scanning for sensor")
	m.emit(ev)
	return scanCtx, gen, nil
}

func (m *Manager) markConnecting(gen uint64, dev Device) {
	m.mu.Lock()
	if gen != m.scanGen || m.state != model.Scanning {
		m.mu.Unlock()
		// completeScan reports the cancellation.
		return
	}
	m.device = dev
	ev := m.transition(model.Connecting)
	m.mu.Unlock()

	m.logger.Info(context.Background(), "sensor found", logger.String("device", dev.Name))
	m.emit(ev)
}

func (m *Manager) completeScan(scanCtx context.Context, gen uint64, dev Device, link Link, err error) error {
	ctx := context.Background()

	m.mu.Lock()
	if gen != m.scanGen || (m.state != model.Scanning && m.state != model.Connecting) {
		m.mu.Unlock()
		m.release(link)
		metrics.RecordConnectionFailure(string(CauseCancelled))
		m.logger.Info(ctx, "scan cancelled")
		return &FailedError{Cause: CauseCancelled, Err: err}
	}
	if m.cancelScan != nil {
		defer m.cancelScan()
		m.cancelScan = nil
	}

	if err != nil {
		cause := classify(err, scanCtx.Err())
		m.device = Device{}
		ev := m.transition(model.Disconnected)
		m.mu.Unlock()

		m.release(link)
		metrics.RecordConnectionFailure(string(cause))
		m.logger.Warn(ctx, "connection attempt failed",
			logger.String("cause", string(cause)),
			logger.Error(err))
		ev.Err = err
		m.emit(ev)
		return &FailedError{Cause: cause, Err: err}
	}

	m.device = dev
	m.link = link
	ev := m.transition(model.Connected)
	m.mu.Unlock()

	m.logger.Info(ctx, "sensor connected", logger.String("device", dev.Name))
	m.emit(ev)
	return nil
}

// Disconnect tears down the active link and cancels any in-flight scan.
// It is idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.cancelScan != nil {
		m.cancelScan()
		m.cancelScan = nil
	}
	link := m.link
	m.link = nil
	m.device = Device{}
	var ev *Event
	if m.state != model.Disconnected {
		ev = m.transition(model.Disconnected)
	}
	m.mu.Unlock()

	m.release(link)
	if ev != nil {
		m.logger.Info(context.Background(), "sensor disconnected")
		m.emit(ev)
	}
}

// CheckLiveness polls the transport while Connected and moves to Lost when
// the link is gone. It reports whether the link was lost on this check.
func (m *Manager) CheckLiveness() bool {
	m.mu.Lock()
	if m.state != model.Connected || m.link == nil {
		m.mu.Unlock()
		return false
	}
	link := m.link
	m.mu.Unlock()

	metrics.RecordLivenessCheck()
	if m.transport.IsLinkAlive(link) {
		return false
	}

	m.mu.Lock()
	if m.link != link || m.state != model.Connected {
		m.mu.Unlock()
		return false
	}
	name := m.device.Name
	m.link = nil
	m.device = Device{}
	ev := m.transition(model.Lost)
	m.mu.Unlock()

	m.release(link)
	metrics.RecordConnectionLost()
	m.logger.Warn(context.Background(), "sensor link lost", logger.String("device", name))
	ev.Device = name
	ev.Err = ErrConnectionLost
	m.emit(ev)
	m.emit(&Event{Kind: LinkLost, From: model.Connected, To: model.Lost, Device: name, Err: ErrConnectionLost, At: ev.At})
	return true
}

// HandleNotification processes one raw notification received at at.
// Splits are forwarded only while Connected on the current link; anything
// else is dropped. A malformed payload is logged and counted, and the
// decode error returned for the caller's information.
func (m *Manager) HandleNotification(buf []byte, at time.Time) error {
	return m.handle(nil, buf, at)
}

func (m *Manager) notificationHandler(link Link) func([]byte) {
	return func(buf []byte) {
		at := m.now()
		payload := append([]byte(nil), buf...)
		if err := m.serialize(func() { _ = m.handle(link, payload, at) }); err != nil {
			metrics.RecordNotificationDropped("backpressure")
			m.logger.Warn(context.Background(), "notification rejected",
				logger.Int("bytes", len(payload)),
				logger.Error(err))
		}
	}
}

func (m *Manager) handle(from Link, buf []byte, at time.Time) error {
	metrics.RecordNotificationReceived()

	m.mu.Lock()
	state := m.state
	current := m.link
	if state == model.Connected && (from == nil || from == current) {
		m.lastSignal = at
	}
	m.mu.Unlock()

	if state != model.Connected || (from != nil && from != current) {
		metrics.RecordNotificationDropped(state.String())
		m.logger.Debug(context.Background(), "notification dropped", logger.String("state", state.String()))
		return nil
	}

	ms, err := decoder.Decode(buf)
	if err != nil {
		metrics.RecordNotificationMalformed()
		m.logger.Warn(context.Background(), "malformed notification", logger.Int("bytes", len(buf)), logger.Error(err))
		return err
	}
	if m.onSplit != nil {
		m.onSplit(ms, at)
	}
	return nil
}

// transition must be called with mu held.
func (m *Manager) transition(to model.ConnectionState) *Event {
	from := m.state
	m.state = to
	metrics.UpdateConnectionState(to.String())
	return &Event{Kind: StateChanged, From: from, To: to, Device: m.device.Name, At: m.now()}
}

func (m *Manager) emit(ev *Event) {
	if ev == nil || m.onEvent == nil {
		return
	}
	m.onEvent(*ev)
}

func (m *Manager) release(link Link) {
	if link == nil {
		return
	}
	if err := m.transport.Disconnect(link); err != nil {
		m.logger.Debug(context.Background(), "link teardown failed", logger.Error(err))
	}
}
