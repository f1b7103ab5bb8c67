package sim

import "time"

// Option applies a configuration option to the simulated Transport.
type Option func(*Transport)

// WithDeviceName sets the advertised name.
func WithDeviceName(name string) Option {
	return func(t *Transport) {
		t.name = name
	}
}

// WithSplitInterval sets the mean time between simulated hurdle crossings.
func WithSplitInterval(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithJitter sets the maximum random deviation added to each interval.
func WithJitter(d time.Duration) Option {
	return func(t *Transport) {
		if d >= 0 {
			t.jitter = d
		}
	}
}

// WithDiscoveryDelay makes FindDevice wait before answering.
func WithDiscoveryDelay(d time.Duration) Option {
	return func(t *Transport) {
		if d >= 0 {
			t.discoveryDelay = d
		}
	}
}
