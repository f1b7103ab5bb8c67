// Package service hosts the timing core: it owns the connection manager,
// race machine and session repository, and serializes every transition
// through a single command loop.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/hurdletime/internal/adapters/export"
	commandqueue "github.com/okian/hurdletime/internal/adapters/mq/queue"
	"github.com/okian/hurdletime/internal/adapters/mq/worker"
	"github.com/okian/hurdletime/internal/adapters/persistence"
	"github.com/okian/hurdletime/internal/adapters/repository"
	"github.com/okian/hurdletime/internal/adapters/transport/sim"
	"github.com/okian/hurdletime/internal/domain/connection"
	"github.com/okian/hurdletime/internal/domain/decoder"
	"github.com/okian/hurdletime/internal/domain/model"
	"github.com/okian/hurdletime/internal/domain/race"
	"github.com/okian/hurdletime/internal/domain/types"
	"github.com/okian/hurdletime/pkg/logger"
	"github.com/okian/hurdletime/pkg/metrics"
)

const (
	defaultQueueSize        = 1024
	defaultLivenessInterval = time.Second
	defaultConnectTimeout   = 30 * time.Second
	defaultHurdles          = 5
	stopTimeout             = 5 * time.Second
	subscriberBuffer        = 64
)

// Simulator is implemented by transports that can fake a run.
type Simulator interface {
	SimulateRun(ctx context.Context, hurdles int)
	DropLink()
}

// Status is a consistent snapshot of connection and race state.
type Status struct {
	Connection     model.ConnectionState `json:"connection"`
	Device         string                `json:"device,omitempty"`
	LastSignal     time.Time             `json:"lastSignal,omitzero"`
	Race           race.Snapshot         `json:"race"`
	Athletes       int                   `json:"athletes"`
	Sessions       int                   `json:"sessions"`
	SessionsToday  int                   `json:"sessionsToday"`
	DefaultHurdles int                   `json:"defaultHurdles"`
}

// Service implements the API dependencies for the hurdle timer.
type Service struct {
	mu sync.Mutex // guards Start/Stop

	// Configuration
	transport        connection.Transport
	store            persistence.Store
	seed             bool
	prefixes         []string
	connectTimeout   time.Duration
	livenessInterval time.Duration
	defaultHurdles   int
	queueSize        int
	now              func() time.Time

	// Core components
	queue *commandqueue.InMemoryQueue[worker.Command]
	loop  *worker.InMemoryWorker
	conn  *connection.Manager
	race  *race.Machine
	repo  *repository.Memory
	hub   *hub

	// State
	started     atomic.Bool
	runCtx      context.Context
	cancelRun   context.CancelFunc
	persistCh   chan struct{}
	persistStop chan struct{}
	wg          sync.WaitGroup

	logger logger.Logger
}

// New constructs a Service. Without WithTransport a simulated sensor is
// used; without WithStore nothing outlives the process.
func New(opts ...Option) *Service {
	s := &Service{
		prefixes:         decoder.DefaultNamePrefixes,
		connectTimeout:   defaultConnectTimeout,
		livenessInterval: defaultLivenessInterval,
		defaultHurdles:   defaultHurdles,
		queueSize:        defaultQueueSize,
		now:              time.Now,
		hub:              newHub(),
		persistCh:        make(chan struct{}, 1),
		persistStop:      make(chan struct{}),
		logger:           logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.transport == nil {
		s.transport = sim.New()
	}
	if s.store == nil {
		s.store = persistence.NewMemoryStore()
	}

	s.queue = commandqueue.NewInMemoryQueue[worker.Command](commandqueue.WithCapacity(s.queueSize))
	s.loop = worker.NewInMemoryWorker(s.queue, worker.WithName("actor"))
	s.repo = repository.NewMemory(repository.WithOnChange(s.requestPersist))
	s.conn = connection.NewManager(s.transport,
		connection.WithNamePrefixes(s.prefixes),
		connection.WithConnectTimeout(s.connectTimeout),
		connection.WithSerializer(s.serialize),
		connection.WithSplitHandler(s.onSplit),
		connection.WithEventHandler(s.onConnectionEvent),
		connection.WithClock(s.now),
	)
	s.race = race.NewMachine(s.repo, s.repo, s.conn, race.WithClock(s.now))
	return s
}

// Start hydrates the repository and launches the command loop, the liveness
// ticker and the persistence worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started.Load() {
		return nil
	}
	if s.queue.IsClosed() {
		return ErrStopped
	}

	s.logger.Info(ctx, "starting hurdle timer service...")

	if err := s.repo.Hydrate(ctx, s.store); err != nil {
		return fmt.Errorf("hydrate repository: %w", err)
	}
	if s.seed {
		seeded, err := s.repo.Seed()
		if err != nil {
			return fmt.Errorf("seed roster: %w", err)
		}
		if seeded {
			s.logger.Info(ctx, "seeded default roster", logger.Int("athletes", len(repository.DefaultRoster)))
		}
	}

	s.runCtx, s.cancelRun = context.WithCancel(context.WithoutCancel(ctx))
	go s.loop.Run(context.Background())

	s.wg.Add(2)
	go s.livenessLoop(s.runCtx)
	go s.persistLoop()

	s.started.Store(true)
	s.logger.Info(ctx, "hurdle timer service started",
		logger.Int("queueSize", s.queueSize),
		logger.Duration("livenessInterval", s.livenessInterval),
		logger.Int("athletes", len(s.repo.Athletes())),
		logger.Int("sessions", len(s.repo.Sessions())),
	)
	return nil
}

// Stop commits any partial race, drops the link, drains the command loop
// and flushes the repository.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping hurdle timer service...")
	s.cancelRun()

	if err := s.do(ctx, func() {
		if session, err := s.race.Finish(); err != nil {
			s.logger.Error(ctx, "partial race not saved", logger.Error(err))
		} else if session != nil {
			s.logger.Info(ctx, "partial race saved on shutdown", logger.String("session_id", session.ID))
		}
		s.conn.Disconnect()
	}); err != nil {
		s.logger.Warn(ctx, "shutdown command not executed", logger.Error(err))
	}

	_ = s.queue.Close()
	select {
	case <-s.loop.Done():
	case <-ctx.Done():
		_ = s.loop.Shutdown(ctx)
	}
	s.started.Store(false)

	close(s.persistStop)
	s.wg.Wait()
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "closing store failed", logger.Error(err))
	}
	s.hub.closeAll()
	s.logger.Info(ctx, "hurdle timer service stopped")
}

// do runs fn inside the command loop and waits for it. ctx bounds only the
// enqueue: a queued command always runs, so do waits for it and its
// outcome is what the caller sees.
func (s *Service) do(ctx context.Context, fn func()) error {
	if !s.started.Load() || s.queue.IsClosed() {
		return ErrStopped
	}
	done := make(chan struct{})
	cmd := func(context.Context) {
		defer close(done)
		fn()
	}
	if !s.queue.Enqueue(ctx, cmd) {
		switch {
		case s.queue.IsClosed():
			return ErrStopped
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return ErrBackpressure
		}
	}
	select {
	case <-done:
		return nil
	case <-s.loop.Done():
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	}
}

func (s *Service) serialize(fn func()) error {
	return s.do(context.Background(), fn)
}

func (s *Service) livenessLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.livenessInterval)
	defer ticker.Stop()

	check := func(context.Context) { s.conn.CheckLiveness() }
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.queue.Enqueue(ctx, check) {
				s.logger.Debug(ctx, "liveness check skipped, queue busy")
			}
		}
	}
}

func (s *Service) requestPersist() {
	select {
	case s.persistCh <- struct{}{}:
	default:
	}
}

// persistLoop saves the repository whenever it changes. Failures are
// logged and counted; timing never waits on storage.
func (s *Service) persistLoop() {
	defer s.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-s.persistCh:
			s.persist(ctx)
		case <-s.persistStop:
			s.persist(ctx)
			return
		}
	}
}

func (s *Service) persist(ctx context.Context) {
	if err := s.repo.Persist(ctx, s.store); err != nil {
		metrics.RecordPersistenceError("save")
		s.logger.Error(ctx, "persisting repository failed", logger.Error(err))
	}
}

// onSplit runs inside the command loop.
func (s *Service) onSplit(ms uint32, at time.Time) {
	before := len(s.race.Snapshot().Splits)
	session, err := s.race.RecordSplit(ms)
	if err != nil {
		s.logger.Error(context.Background(), "split could not be committed", logger.Error(err))
	}

	snap := s.race.Snapshot()
	accepted := session != nil || len(snap.Splits) > before
	s.hub.publish(Event{Type: EventSplit, At: at, Data: SplitReceived{Ms: ms, Accepted: accepted, Race: snap}})
	if session != nil {
		s.hub.publish(Event{Type: EventSession, At: at, Data: *session})
		s.hub.publish(Event{Type: EventRace, At: at, Data: snap})
	}
}

// onConnectionEvent runs inside the command loop.
func (s *Service) onConnectionEvent(ev connection.Event) {
	change := ConnectionChange{From: ev.From, To: ev.To, Device: ev.Device}
	if ev.Err != nil {
		change.Error = ev.Err.Error()
	}
	typ := EventConnection
	if ev.Kind == connection.LinkLost {
		typ = EventConnectionLost
		if s.race.State() == model.Active {
			s.logger.Warn(context.Background(), "sensor lost during an active race, splits kept",
				logger.Int("splits", len(s.race.Snapshot().Splits)))
		}
	}
	s.hub.publish(Event{Type: typ, At: ev.At, Data: change})
}

// Connect scans for the sensor and connects. It blocks until connected or
// failed; Disconnect cancels it.
func (s *Service) Connect(ctx context.Context) error {
	if !s.started.Load() {
		return ErrStopped
	}
	return s.conn.ScanAndConnect(ctx, nil)
}

// Disconnect drops the link or cancels a scan in progress.
func (s *Service) Disconnect(ctx context.Context) error {
	return s.do(ctx, s.conn.Disconnect)
}

// StartRace begins a race. A zero hurdles value uses the configured default.
func (s *Service) StartRace(ctx context.Context, athleteID string, hurdles int) (race.Snapshot, error) {
	if hurdles == 0 {
		hurdles = s.defaultHurdles
	}
	var (
		snap race.Snapshot
		err  error
	)
	if derr := s.do(ctx, func() {
		if err = s.race.Start(athleteID, hurdles); err == nil {
			snap = s.race.Snapshot()
			s.hub.publish(Event{Type: EventRace, At: s.now(), Data: snap})
		}
	}); derr != nil {
		return race.Snapshot{}, derr
	}
	return snap, err
}

// FinishRace ends the race; the committed session is nil when nothing was
// recorded or no race was active.
func (s *Service) FinishRace(ctx context.Context) (*model.TrainingSession, error) {
	var (
		session *model.TrainingSession
		err     error
	)
	if derr := s.do(ctx, func() {
		wasActive := s.race.State() == model.Active
		session, err = s.race.Finish()
		if session != nil {
			s.hub.publish(Event{Type: EventSession, At: s.now(), Data: *session})
		}
		if wasActive && err == nil {
			s.hub.publish(Event{Type: EventRace, At: s.now(), Data: s.race.Snapshot()})
		}
	}); derr != nil {
		return nil, derr
	}
	return session, err
}

// Status returns connection and race state observed together.
func (s *Service) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.do(ctx, func() {
		st = Status{
			Connection:     s.conn.State(),
			Device:         s.conn.DeviceName(),
			LastSignal:     s.conn.LastSignal(),
			Race:           s.race.Snapshot(),
			Athletes:       len(s.repo.Athletes()),
			Sessions:       len(s.repo.Sessions()),
			SessionsToday:  s.repo.SessionsOn(s.now()),
			DefaultHurdles: s.defaultHurdles,
		}
	})
	return st, err
}

// Athletes lists the roster.
func (s *Service) Athletes(ctx context.Context) ([]model.Athlete, error) {
	var out []model.Athlete
	err := s.do(ctx, func() { out = s.repo.Athletes() })
	return out, err
}

// AddAthlete parses category and adds a roster entry.
func (s *Service) AddAthlete(ctx context.Context, name, category string) (model.Athlete, error) {
	cat, err := model.ParseCategory(category)
	if err != nil {
		return model.Athlete{}, fmt.Errorf("%w: %w", repository.ErrInvalidAthlete, err)
	}
	var a model.Athlete
	if derr := s.do(ctx, func() {
		if a, err = s.repo.AddAthlete(name, cat); err == nil {
			s.hub.publish(Event{Type: EventRoster, At: s.now(), Data: s.repo.Athletes()})
		}
	}); derr != nil {
		return model.Athlete{}, derr
	}
	return a, err
}

// RemoveAthlete deletes a roster entry; its sessions are kept.
func (s *Service) RemoveAthlete(ctx context.Context, id string) error {
	var err error
	if derr := s.do(ctx, func() {
		if err = s.repo.RemoveAthlete(id); err == nil {
			s.hub.publish(Event{Type: EventRoster, At: s.now(), Data: s.repo.Athletes()})
		}
	}); derr != nil {
		return derr
	}
	return err
}

// Sessions lists sessions in insertion order, filtered by athlete when
// athleteID is set.
func (s *Service) Sessions(ctx context.Context, athleteID string) ([]model.TrainingSession, error) {
	var out []model.TrainingSession
	err := s.do(ctx, func() {
		if athleteID == "" {
			out = s.repo.Sessions()
			return
		}
		out = s.repo.SessionsForAthlete(athleteID)
	})
	return out, err
}

// Stats aggregates an athlete's sessions. Unknown athletes without any
// sessions yield repository.ErrNotFound.
func (s *Service) Stats(ctx context.Context, athleteID string) (types.AthleteStats, error) {
	var (
		st    types.AthleteStats
		known bool
	)
	if err := s.do(ctx, func() {
		_, known = s.repo.Athlete(athleteID)
		st = s.repo.StatsForAthlete(athleteID)
	}); err != nil {
		return types.AthleteStats{}, err
	}
	if !known && !st.HasData {
		return st, fmt.Errorf("%w: %s", repository.ErrNotFound, athleteID)
	}
	return st, nil
}

// Leaderboard ranks athletes by best total time.
func (s *Service) Leaderboard(ctx context.Context) ([]types.Entry, error) {
	var out []types.Entry
	err := s.do(ctx, func() { out = s.repo.Leaderboard() })
	return out, err
}

// Export snapshots roster and sessions into a portable document.
func (s *Service) Export(ctx context.Context) (export.Document, error) {
	var doc export.Document
	err := s.do(ctx, func() {
		doc = export.New(s.repo.Athletes(), s.repo.Sessions(), s.now())
	})
	return doc, err
}

// Import replaces roster and sessions with doc.
func (s *Service) Import(ctx context.Context, doc export.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	var err error
	if derr := s.do(ctx, func() {
		if err = s.repo.Replace(doc.Athletes, doc.Sessions); err == nil {
			s.hub.publish(Event{Type: EventRoster, At: s.now(), Data: s.repo.Athletes()})
		}
	}); derr != nil {
		return derr
	}
	return err
}

// Subscribe streams events until cancel is called or the service stops.
func (s *Service) Subscribe() (<-chan Event, func()) {
	return s.hub.subscribe(subscriberBuffer)
}

// SimulateRun asks a simulated sensor to emit hurdles splits.
func (s *Service) SimulateRun(hurdles int) error {
	simulator, ok := s.transport.(Simulator)
	if !ok {
		return ErrUnsupported
	}
	if !s.started.Load() {
		return ErrStopped
	}
	if hurdles <= 0 {
		hurdles = s.defaultHurdles
	}
	simulator.SimulateRun(s.runCtx, hurdles)
	return nil
}

// DropLink makes a simulated sensor vanish.
func (s *Service) DropLink() error {
	simulator, ok := s.transport.(Simulator)
	if !ok {
		return ErrUnsupported
	}
	simulator.DropLink()
	return nil
}

// TransportName describes the active transport for logs and /status.
func (s *Service) TransportName() string {
	name := fmt.Sprintf("%T", s.transport)
	return strings.TrimPrefix(name, "*")
}
