package service

import (
	"time"

	"github.com/okian/hurdletime/internal/adapters/persistence"
	"github.com/okian/hurdletime/internal/domain/connection"
	"github.com/okian/hurdletime/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithTransport sets the radio collaborator.
func WithTransport(t connection.Transport) Option {
	return func(s *Service) {
		if t != nil {
			s.transport = t
		}
	}
}

// WithStore sets the persistence collaborator. The service closes it on Stop.
func WithStore(p persistence.Store) Option {
	return func(s *Service) {
		if p != nil {
			s.store = p
		}
	}
}

// WithSeedAthletes adds the default roster when none is stored.
func WithSeedAthletes(seed bool) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// WithNamePrefixes sets the discovery filters.
func WithNamePrefixes(prefixes []string) Option {
	return func(s *Service) {
		if len(prefixes) > 0 {
			s.prefixes = prefixes
		}
	}
}

// WithConnectTimeout bounds scan and handshake.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.connectTimeout = d
		}
	}
}

// WithLivenessInterval sets the link poll period.
func WithLivenessInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.livenessInterval = d
		}
	}
}

// WithDefaultHurdles sets the race target used when a caller passes zero.
func WithDefaultHurdles(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultHurdles = n
		}
	}
}

// WithQueueSize sets the maximum size of the command queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
