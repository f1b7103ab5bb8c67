// Package ble implements the connection Transport over Bluetooth Low Energy.
package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tinygo.org/x/bluetooth"

	"github.com/okian/hurdletime/internal/domain/connection"
	"github.com/okian/hurdletime/internal/domain/decoder"
	"github.com/okian/hurdletime/pkg/logger"
)

// radio is the part of the host Bluetooth stack the transport drives.
// None of its calls take a context; Transport bounds them instead.
type radio interface {
	scan(ctx context.Context, prefixes []string) (connection.Device, error)
	connect(id string) (peer, error)
	connected(id string) (bool, error)
}

// peer is one established GATT link.
type peer interface {
	subscribe(service, characteristic bluetooth.UUID, onNotify func([]byte)) error
	disconnect() error
}

// Transport talks to the hurdle sensor through the host Bluetooth adapter.
type Transport struct {
	radio          radio
	serviceUUID    bluetooth.UUID
	characteristic bluetooth.UUID
	logger         logger.Logger
}

type link struct {
	dev  connection.Device
	peer peer
}

func (l *link) Device() connection.Device { return l.dev }

// Option applies a configuration option to the Transport.
type Option func(*Transport) error

// WithUUIDs overrides the timing service and characteristic identifiers.
func WithUUIDs(service, characteristic string) Option {
	return func(t *Transport) error {
		s, err := bluetooth.ParseUUID(service)
		if err != nil {
			return fmt.Errorf("service uuid %q: %w", service, err)
		}
		c, err := bluetooth.ParseUUID(characteristic)
		if err != nil {
			return fmt.Errorf("characteristic uuid %q: %w", characteristic, err)
		}
		t.serviceUUID, t.characteristic = s, c
		return nil
	}
}

// New enables the default adapter.
func New(opts ...Option) (*Transport, error) {
	r, err := newAdapterRadio(bluetooth.DefaultAdapter)
	if err != nil {
		return nil, err
	}
	return newTransport(r, opts...)
}

func newTransport(r radio, opts ...Option) (*Transport, error) {
	t := &Transport{
		radio:  r,
		logger: logger.Get().Named("ble"),
	}
	defaults := WithUUIDs(decoder.ServiceUUID, decoder.CharacteristicUUID)
	for _, opt := range append([]Option{defaults}, opts...) {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// FindDevice scans until an advertisement matches one of prefixes or ctx ends.
func (t *Transport) FindDevice(ctx context.Context, prefixes []string) (connection.Device, error) {
	return t.radio.scan(ctx, prefixes)
}

// Connect performs the GATT handshake. The radio call itself cannot be
// interrupted, so on ctx expiry Connect returns at once and a link that
// comes up afterwards is torn down in the background.
func (t *Transport) Connect(ctx context.Context, d connection.Device) (connection.Link, error) {
	type result struct {
		peer peer
		err  error
	}
	done := make(chan result, 1)
	go func() {
		p, err := t.radio.connect(d.ID)
		done <- result{peer: p, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("connect %s: %w", d.Name, r.err)
		}
		if err := ctx.Err(); err != nil {
			t.teardown(d, r.peer)
			return nil, err
		}
		return &link{dev: d, peer: r.peer}, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.err == nil {
				t.logger.Info(context.Background(), "late link after cancelled connect", logger.String("device", d.ID))
				t.teardown(d, r.peer)
			}
		}()
		return nil, ctx.Err()
	}
}

// Subscribe enables notifications on the timing characteristic.
func (t *Transport) Subscribe(ctx context.Context, cl connection.Link, onNotify func([]byte)) error {
	l, ok := cl.(*link)
	if !ok {
		return errors.New("foreign link")
	}
	done := make(chan error, 1)
	go func() { done <- l.peer.subscribe(t.serviceUUID, t.characteristic, onNotify) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// The caller releases the link, which fails the pending discovery.
		return ctx.Err()
	}
}

func (t *Transport) Disconnect(cl connection.Link) error {
	l, ok := cl.(*link)
	if !ok {
		return nil
	}
	return l.peer.disconnect()
}

// IsLinkAlive asks the host stack whether the device is still connected.
// A failed query counts as a dead link.
func (t *Transport) IsLinkAlive(cl connection.Link) bool {
	l, ok := cl.(*link)
	if !ok {
		return false
	}
	alive, err := t.radio.connected(l.dev.ID)
	if err != nil {
		t.logger.Warn(context.Background(), "link state query failed",
			logger.String("device", l.dev.ID),
			logger.Error(err))
		return false
	}
	return alive
}

func (t *Transport) teardown(d connection.Device, p peer) {
	if err := p.disconnect(); err != nil {
		t.logger.Debug(context.Background(), "link teardown failed", logger.String("device", d.ID), logger.Error(err))
	}
}

func matches(name string, prefixes []string) bool {
	if name == "" {
		return false
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
