package ble

import (
	"context"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/okian/hurdletime/internal/domain/connection"
)

// linkState reports whether the host stack still holds a connection.
type linkState interface {
	connected(id string) (bool, error)
	mark(id string, up bool)
}

type adapterRadio struct {
	adapter *bluetooth.Adapter
	state   linkState

	mu   sync.Mutex
	seen map[string]bluetooth.Address // device id -> address from the last scan
}

func newAdapterRadio(a *bluetooth.Adapter) (*adapterRadio, error) {
	if err := a.Enable(); err != nil {
		return nil, fmt.Errorf("enable bluetooth adapter: %w", err)
	}
	state, err := newLinkState(a)
	if err != nil {
		return nil, fmt.Errorf("link state: %w", err)
	}
	return &adapterRadio{
		adapter: a,
		state:   state,
		seen:    make(map[string]bluetooth.Address),
	}, nil
}

func (r *adapterRadio) scan(ctx context.Context, prefixes []string) (connection.Device, error) {
	var (
		found connection.Device
		addr  bluetooth.Address
		hit   bool
	)
	done := make(chan error, 1)
	go func() {
		done <- r.adapter.Scan(func(a *bluetooth.Adapter, res bluetooth.ScanResult) {
			name := res.LocalName()
			if hit || !matches(name, prefixes) {
				return
			}
			hit = true
			addr = res.Address
			found = connection.Device{ID: res.Address.String(), Name: name}
			_ = a.StopScan()
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return connection.Device{}, fmt.Errorf("scan: %w", err)
		}
	case <-ctx.Done():
		_ = r.adapter.StopScan()
		<-done
		return connection.Device{}, ctx.Err()
	}
	if !hit {
		return connection.Device{}, fmt.Errorf("%w: prefixes %v", connection.ErrDeviceNotFound, prefixes)
	}

	r.mu.Lock()
	r.seen[found.ID] = addr
	r.mu.Unlock()
	return found, nil
}

func (r *adapterRadio) connect(id string) (peer, error) {
	r.mu.Lock()
	addr, ok := r.seen[id]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s was not discovered", connection.ErrDeviceNotFound, id)
	}

	device, err := r.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, err
	}
	r.state.mark(id, true)
	return &devicePeer{id: id, device: device, state: r.state}, nil
}

func (r *adapterRadio) connected(id string) (bool, error) {
	return r.state.connected(id)
}

type devicePeer struct {
	id     string
	device bluetooth.Device
	state  linkState
}

func (p *devicePeer) subscribe(service, characteristic bluetooth.UUID, onNotify func([]byte)) error {
	services, err := p.device.DiscoverServices([]bluetooth.UUID{service})
	if err != nil {
		return fmt.Errorf("%w: service %s: %w", connection.ErrServiceMissing, service, err)
	}
	if len(services) == 0 {
		return fmt.Errorf("%w: service %s", connection.ErrServiceMissing, service)
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{characteristic})
	if err != nil {
		return fmt.Errorf("%w: characteristic %s: %w", connection.ErrServiceMissing, characteristic, err)
	}
	if len(chars) == 0 {
		return fmt.Errorf("%w: characteristic %s", connection.ErrServiceMissing, characteristic)
	}
	if err := chars[0].EnableNotifications(onNotify); err != nil {
		return fmt.Errorf("enable notifications: %w", err)
	}
	return nil
}

func (p *devicePeer) disconnect() error {
	p.state.mark(p.id, false)
	return p.device.Disconnect()
}
