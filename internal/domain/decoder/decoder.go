// Package decoder turns raw sensor notifications into split times.
//
// The sensor sends a single little-endian uint32 per notification: elapsed
// milliseconds since its own timing trigger. Anything after the first four
// bytes is ignored.
package decoder

import (
	"encoding/binary"
	"fmt"
)

// Wire identifiers of the timing sensor.
const (
	ServiceUUID        = "4fafc201-1fb5-459e-8fcc-c5c9c331914b"
	CharacteristicUUID = "beb5483e-36e1-4688-b7f5-ea07361b26a8"

	// FrameSize is the number of bytes a split occupies.
	FrameSize = 4
)

// DefaultNamePrefixes are the advertised device name prefixes we accept.
var DefaultNamePrefixes = []string{"ESP32", "ESP"}

// Decode returns the split time in milliseconds carried by buf.
func Decode(buf []byte) (uint32, error) {
	if len(buf) < FrameSize {
		return 0, fmt.Errorf("%w: got %d bytes, need %d", ErrMalformedNotification, len(buf), FrameSize)
	}
	return binary.LittleEndian.Uint32(buf[:FrameSize]), nil
}

// Encode is the inverse of Decode. Used by the simulated sensor.
func Encode(ms uint32) []byte {
	buf := make([]byte, FrameSize)
	binary.LittleEndian.PutUint32(buf, ms)
	return buf
}
