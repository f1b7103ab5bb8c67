// Package connection owns the sensor link lifecycle: discovery, handshake,
// liveness and notification forwarding.
package connection

import "context"

// Device is a discovered sensor, before any link exists.
type Device struct {
	ID   string
	Name string
}

// Link is an established connection to a Device. Implementations carry
// whatever the radio stack needs; the manager only compares and forwards it,
// so the dynamic type must be comparable (a pointer is the usual choice).
type Link interface {
	Device() Device
}

// Transport is the radio collaborator. Implementations must target
// decoder.ServiceUUID / decoder.CharacteristicUUID.
type Transport interface {
	// FindDevice discovers the first device whose advertised name starts
	// with one of namePrefixes. Wrap ErrDeviceNotFound when nothing matches.
	FindDevice(ctx context.Context, namePrefixes []string) (Device, error)
	// Connect performs the handshake.
	Connect(ctx context.Context, d Device) (Link, error)
	// Subscribe enables notifications on the timing characteristic.
	// Wrap ErrServiceMissing when the service or characteristic is absent.
	Subscribe(ctx context.Context, l Link, onNotify func(buf []byte)) error
	// Disconnect tears the link down.
	Disconnect(l Link) error
	// IsLinkAlive reports whether the stack still considers l connected.
	IsLinkAlive(l Link) bool
}
