package ble

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"

	"github.com/okian/hurdletime/internal/domain/connection"
	"github.com/okian/hurdletime/internal/domain/decoder"
	"github.com/okian/hurdletime/internal/domain/model"
)

type fakePeer struct {
	mu           sync.Mutex
	notify       func([]byte)
	subscribeErr error
	disconnected bool
}

func (p *fakePeer) subscribe(_, _ bluetooth.UUID, onNotify func([]byte)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.subscribeErr != nil {
		return p.subscribeErr
	}
	p.notify = onNotify
	return nil
}

func (p *fakePeer) disconnect() error {
	p.mu.Lock()
	p.disconnected = true
	p.mu.Unlock()
	return nil
}

func (p *fakePeer) isDisconnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnected
}

type fakeRadio struct {
	mu       sync.Mutex
	device   connection.Device
	hold     chan struct{} // connect blocks until closed when set
	peer     *fakePeer
	up       bool
	stateErr error
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{
		device: connection.Device{ID: "AA:BB:CC:DD:EE:FF", Name: "ESP32-Hurdles"},
		peer:   &fakePeer{},
	}
}

func (r *fakeRadio) scan(_ context.Context, prefixes []string) (connection.Device, error) {
	if !matches(r.device.Name, prefixes) {
		return connection.Device{}, connection.ErrDeviceNotFound
	}
	return r.device, nil
}

func (r *fakeRadio) connect(string) (peer, error) {
	if r.hold != nil {
		<-r.hold
	}
	r.mu.Lock()
	r.up = true
	r.mu.Unlock()
	return r.peer, nil
}

func (r *fakeRadio) connected(string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.up, r.stateErr
}

func (r *fakeRadio) drop(err error) {
	r.mu.Lock()
	r.up = false
	r.stateErr = err
	r.mu.Unlock()
}

func newTestTransport(t *testing.T, r radio) *Transport {
	t.Helper()
	tr, err := newTransport(r)
	require.NoError(t, err)
	return tr
}

func TestMatches(t *testing.T) {
	require.True(t, matches("ESP32-Hurdles", decoder.DefaultNamePrefixes))
	require.True(t, matches("ESP-lane2", decoder.DefaultNamePrefixes))
	require.False(t, matches("Polar H10", decoder.DefaultNamePrefixes))
	require.False(t, matches("", decoder.DefaultNamePrefixes))
	require.False(t, matches("ESP32", nil))
}

func TestWithUUIDs(t *testing.T) {
	tr := &Transport{}
	require.NoError(t, WithUUIDs(decoder.ServiceUUID, decoder.CharacteristicUUID)(tr))
	require.Equal(t, decoder.ServiceUUID, tr.serviceUUID.String())
	require.Equal(t, decoder.CharacteristicUUID, tr.characteristic.String())

	require.Error(t, WithUUIDs("not-a-uuid", decoder.CharacteristicUUID)(tr))
}

func TestIsLinkAliveFollowsRadio(t *testing.T) {
	r := newFakeRadio()
	tr := newTestTransport(t, r)

	l, err := tr.Connect(context.Background(), r.device)
	require.NoError(t, err)
	require.True(t, tr.IsLinkAlive(l))

	r.drop(nil)
	require.False(t, tr.IsLinkAlive(l))

	r.drop(errors.New("org.freedesktop.DBus.Error.UnknownObject"))
	require.False(t, tr.IsLinkAlive(l))

	require.False(t, tr.IsLinkAlive(nil))
}

func TestConnectHonoursContext(t *testing.T) {
	r := newFakeRadio()
	r.hold = make(chan struct{})
	tr := newTestTransport(t, r)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	l, err := tr.Connect(ctx, r.device)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Nil(t, l)
	require.Less(t, time.Since(start), time.Second)

	// The radio finishes after the caller gave up; that link must not leak.
	close(r.hold)
	require.Eventually(t, r.peer.isDisconnected, time.Second, 5*time.Millisecond)
}

func TestSubscribeReportsMissingService(t *testing.T) {
	r := newFakeRadio()
	r.peer.subscribeErr = connection.ErrServiceMissing
	tr := newTestTransport(t, r)

	l, err := tr.Connect(context.Background(), r.device)
	require.NoError(t, err)
	require.ErrorIs(t, tr.Subscribe(context.Background(), l, func([]byte) {}), connection.ErrServiceMissing)
}

func TestManagerOverTransport(t *testing.T) {
	t.Run("lost link is detected", func(t *testing.T) {
		r := newFakeRadio()
		m := connection.NewManager(newTestTransport(t, r))

		require.NoError(t, m.ScanAndConnect(context.Background(), nil))
		require.Equal(t, model.Connected, m.State())
		require.False(t, m.CheckLiveness())

		r.drop(nil)
		require.True(t, m.CheckLiveness())
		require.Equal(t, model.Lost, m.State())
	})

	t.Run("stuck handshake times out", func(t *testing.T) {
		r := newFakeRadio()
		r.hold = make(chan struct{})
		m := connection.NewManager(newTestTransport(t, r), connection.WithConnectTimeout(30*time.Millisecond))

		err := m.ScanAndConnect(context.Background(), nil)
		var fe *connection.FailedError
		require.ErrorAs(t, err, &fe)
		require.Equal(t, connection.CauseTimeout, fe.Cause)
		require.Equal(t, model.Disconnected, m.State())

		close(r.hold)
		require.Eventually(t, r.peer.isDisconnected, time.Second, 5*time.Millisecond)
	})

	t.Run("disconnect cancels a pending handshake", func(t *testing.T) {
		r := newFakeRadio()
		r.hold = make(chan struct{})
		defer close(r.hold)
		m := connection.NewManager(newTestTransport(t, r))

		errc := make(chan error, 1)
		go func() { errc <- m.ScanAndConnect(context.Background(), nil) }()
		require.Eventually(t, func() bool { return m.State() == model.Connecting }, time.Second, 5*time.Millisecond)

		m.Disconnect()
		select {
		case err := <-errc:
			var fe *connection.FailedError
			require.ErrorAs(t, err, &fe)
			require.Equal(t, connection.CauseCancelled, fe.Cause)
		case <-time.After(time.Second):
			t.Fatal("ScanAndConnect did not return after Disconnect")
		}
		require.Equal(t, model.Disconnected, m.State())
	})
}
