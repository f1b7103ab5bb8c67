package ble

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"tinygo.org/x/bluetooth"
)

const (
	bluezService       = "org.bluez"
	bluezAdapterPath   = "/org/bluez/hci0" // bluetooth.DefaultAdapter
	bluezConnectedProp = "org.bluez.Device1.Connected"
)

// bluezState reads Device1.Connected from BlueZ. The Linux radio stack
// never reports disconnects through the adapter's connect handler.
type bluezState struct {
	bus     *dbus.Conn
	adapter dbus.ObjectPath
}

func newLinkState(*bluetooth.Adapter) (linkState, error) {
	bus, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("system bus: %w", err)
	}
	return &bluezState{bus: bus, adapter: bluezAdapterPath}, nil
}

func (s *bluezState) connected(id string) (bool, error) {
	v, err := s.bus.Object(bluezService, devicePath(s.adapter, id)).GetProperty(bluezConnectedProp)
	if err != nil {
		return false, err
	}
	up, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%s: unexpected type %s", bluezConnectedProp, v.Signature())
	}
	return up, nil
}

// mark is a no-op; BlueZ is the source of truth.
func (*bluezState) mark(string, bool) {}

// devicePath maps a MAC such as AA:BB:CC:DD:EE:FF to its BlueZ object path.
func devicePath(adapter dbus.ObjectPath, mac string) dbus.ObjectPath {
	return dbus.ObjectPath(string(adapter) + "/dev_" + strings.ReplaceAll(strings.ToUpper(mac), ":", "_"))
}
