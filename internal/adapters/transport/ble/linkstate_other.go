//go:build !linux

package ble

import (
	"sync"

	"tinygo.org/x/bluetooth"
)

// handlerState tracks links through the adapter's connect handler, which
// these platforms invoke on both connect and disconnect.
type handlerState struct {
	mu sync.Mutex
	up map[string]bool
}

func newLinkState(a *bluetooth.Adapter) (linkState, error) {
	s := &handlerState{up: make(map[string]bool)}
	a.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		s.mark(device.Address.String(), connected)
	})
	return s, nil
}

func (s *handlerState) connected(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.up[id], nil
}

func (s *handlerState) mark(id string, up bool) {
	s.mu.Lock()
	s.up[id] = up
	s.mu.Unlock()
}
