package model

// ConnectionState is the device link lifecycle.
type ConnectionState int

// Connection states.
const (
	Disconnected ConnectionState = iota
	Scanning
	Connecting
	Connected
	Lost
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Scanning:
		return "scanning"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Lost:
		return "lost"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s ConnectionState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// RaceState is Idle or Active.
type RaceState int

// Race states.
const (
	Idle RaceState = iota
	Active
)

func (s RaceState) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// MarshalText renders the state name in JSON payloads.
func (s RaceState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
