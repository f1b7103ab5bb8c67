// Package race accumulates hurdle splits for one in-progress race and turns
// them into training sessions.
package race

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/hurdletime/internal/domain/model"
	"github.com/okian/hurdletime/pkg/logger"
	"github.com/okian/hurdletime/pkg/metrics"
)

// Roster resolves athletes by id.
type Roster interface {
	Athlete(id string) (model.Athlete, bool)
}

// SessionSink receives committed sessions.
type SessionSink interface {
	AddSession(s model.TrainingSession) error
}

// LinkState reports the sensor connection state.
type LinkState interface {
	State() model.ConnectionState
}

// Commit triggers, used as metric labels.
const (
	TriggerAuto   = "auto"
	TriggerManual = "manual"
)

// Snapshot is a copy of the machine state.
type Snapshot struct {
	State       model.RaceState `json:"state"`
	AthleteID   string          `json:"athleteId,omitempty"`
	AthleteName string          `json:"athleteName,omitempty"`
	Target      int             `json:"target,omitempty"`
	Splits      []uint32        `json:"splits"`
	StartedAt   time.Time       `json:"startedAt,omitzero"`
}

// Machine is the race state machine. It is not safe for concurrent use;
// the host serializes every call.
type Machine struct {
	roster Roster
	sink   SessionSink
	link   LinkState
	now    func() time.Time
	newID  func() string
	logger logger.Logger

	state     model.RaceState
	athlete   model.Athlete
	target    int
	splits    []uint32
	startedAt time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides the session id source.
func WithIDGenerator(gen func() string) Option {
	return func(m *Machine) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMachine returns an Idle machine.
func NewMachine(roster Roster, sink SessionSink, link LinkState, opts ...Option) *Machine {
	ids := &monotonicIDs{}
	m := &Machine{
		roster: roster,
		sink:   sink,
		link:   link,
		now:    time.Now,
		newID:  ids.next,
		logger: logger.Get().Named("race"),
		state:  model.Idle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns Idle or Active.
func (m *Machine) State() model.RaceState { return m.state }

// Snapshot copies the current state.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{State: m.state, Splits: append([]uint32{}, m.splits...)}
	if m.state == model.Active {
		s.AthleteID = m.athlete.ID
		s.AthleteName = m.athlete.Name
		s.Target = m.target
		s.StartedAt = m.startedAt
	}
	return s
}

// Start begins a race for athleteID with the given hurdle target. It fails
// with a *PreconditionError, leaving the state untouched, when a race is
// already active, the athlete is unknown, target is below one, or the
// sensor is not Connected.
func (m *Machine) Start(athleteID string, target int) error {
	if m.state == model.Active {
		return &PreconditionError{Reason: ReasonRaceActive}
	}
	if athleteID == "" {
		return &PreconditionError{Reason: ReasonNoAthlete}
	}
	athlete, ok := m.roster.Athlete(athleteID)
	if !ok {
		return &PreconditionError{Reason: ReasonNoAthlete}
	}
	if target < 1 {
		return &PreconditionError{Reason: ReasonInvalidHurdles}
	}
	if m.link.State() != model.Connected {
		return &PreconditionError{Reason: ReasonDeviceNotConnected}
	}

	m.state = model.Active
	m.athlete = athlete
	m.target = target
	m.splits = make([]uint32, 0, target)
	m.startedAt = m.now()
	metrics.UpdateRaceActive(true)
	m.logger.Info(context.Background(), "race started",
		logger.String("athlete_id", athlete.ID),
		logger.Int("target", target))
	return nil
}

// RecordSplit appends a split while Active. Splits while Idle, beyond the
// target, or lower than the previous split are dropped. When the split
// completes the target the race finishes immediately and the committed
// session is returned.
func (m *Machine) RecordSplit(ms uint32) (*model.TrainingSession, error) {
	if m.state != model.Active {
		m.ignore("idle", ms)
		return nil, nil
	}
	if len(m.splits) >= m.target {
		m.ignore("overflow", ms)
		return nil, nil
	}
	if n := len(m.splits); n > 0 && ms < m.splits[n-1] {
		m.ignore("out_of_order", ms)
		return nil, nil
	}

	m.splits = append(m.splits, ms)
	metrics.RecordSplit()
	m.logger.Debug(context.Background(), "split recorded",
		logger.Uint32("ms", ms),
		logger.Int("index", len(m.splits)))

	if len(m.splits) == m.target {
		return m.commit(TriggerAuto)
	}
	return nil, nil
}

// Finish ends the race. A non-empty working sequence is committed as a
// session with NumHurdles equal to the splits actually recorded; an empty
// one is discarded. Finish while Idle is a no-op.
func (m *Machine) Finish() (*model.TrainingSession, error) {
	if m.state != model.Active {
		return nil, nil
	}
	if len(m.splits) == 0 {
		m.logger.Info(context.Background(), "race abandoned without splits",
			logger.String("athlete_id", m.athlete.ID))
		m.reset()
		return nil, nil
	}
	return m.commit(TriggerManual)
}

func (m *Machine) commit(trigger string) (*model.TrainingSession, error) {
	session, err := model.NewSession(m.newID(), m.athlete, m.now(), m.splits)
	if err != nil {
		return nil, fmt.Errorf("build session: %w", err)
	}
	// On a sink failure the race stays Active so the splits are not lost.
	if err := m.sink.AddSession(session); err != nil {
		m.logger.Error(context.Background(), "session commit failed", logger.Error(err))
		return nil, fmt.Errorf("commit session: %w", err)
	}

	metrics.RecordSessionCommitted(trigger, session.TotalTime)
	m.logger.Info(context.Background(), "session committed",
		logger.String("session_id", session.ID),
		logger.String("athlete_id", session.AthleteID),
		logger.String("trigger", trigger),
		logger.Uint32("total_ms", session.TotalTime),
		logger.Int("hurdles", session.NumHurdles))
	m.reset()
	return &session, nil
}

func (m *Machine) reset() {
	m.state = model.Idle
	m.athlete = model.Athlete{}
	m.target = 0
	m.splits = nil
	m.startedAt = time.Time{}
	metrics.UpdateRaceActive(false)
}

func (m *Machine) ignore(reason string, ms uint32) {
	metrics.RecordSplitIgnored(reason)
	m.logger.Debug(context.Background(), "split ignored",
		logger.String("reason", reason),
		logger.Uint32("ms", ms))
}
