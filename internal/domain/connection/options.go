package connection

import (
	"time"

	"github.com/okian/hurdletime/pkg/logger"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamePrefixes sets the default discovery filters.
func WithNamePrefixes(prefixes []string) Option {
	return func(m *Manager) {
		if len(prefixes) > 0 {
			m.prefixes = append([]string(nil), prefixes...)
		}
	}
}

// WithConnectTimeout bounds every ScanAndConnect call. Zero disables it.
func WithConnectTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.connectTimeout = d
		}
	}
}

// WithSerializer routes every state transition through run, which must
// execute fn in mutual exclusion with all other mutations and return only
// after fn has completed. An error means fn did not run.
func WithSerializer(run func(fn func()) error) Option {
	return func(m *Manager) {
		if run != nil {
			m.serialize = run
		}
	}
}

// WithSplitHandler registers the receiver of decoded splits.
func WithSplitHandler(fn func(ms uint32, at time.Time)) Option {
	return func(m *Manager) {
		m.onSplit = fn
	}
}

// WithEventHandler registers the receiver of state events.
func WithEventHandler(fn func(Event)) Option {
	return func(m *Manager) {
		m.onEvent = fn
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}
