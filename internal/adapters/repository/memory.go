package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/hurdletime/internal/adapters/persistence"
	"github.com/okian/hurdletime/internal/domain/model"
	"github.com/okian/hurdletime/internal/domain/stats"
	"github.com/okian/hurdletime/internal/domain/types"
	"github.com/okian/hurdletime/pkg/metrics"
)

// DefaultRoster is seeded into an empty repository on first start.
var DefaultRoster = []struct {
	Name     string
	Category model.Category
}{
	{"Juan Pérez", model.CategoryJunior},
	{"María García", model.CategorySenior},
	{"Carlos López", model.CategoryJunior},
}

// Memory is the in-memory Store. Reads return copies, so callers may keep
// them across mutations.
type Memory struct {
	mu       sync.RWMutex
	athletes []model.Athlete
	sessions []model.TrainingSession
	index    map[string]int // athlete id -> position in athletes
	ids      map[string]struct{}

	newID    func() string
	onChange func()
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty repository.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		index: make(map[string]int),
		ids:   make(map[string]struct{}),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) AddSession(s model.TrainingSession) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	m.mu.Lock()
	if _, dup := m.ids[s.ID]; dup {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateSession, s.ID)
	}
	m.sessions = append(m.sessions, cloneSession(s))
	m.ids[s.ID] = struct{}{}
	m.mu.Unlock()

	m.changed()
	return nil
}

func (m *Memory) AddAthlete(name string, category model.Category) (model.Athlete, error) {
	a := model.Athlete{ID: m.newID(), Name: strings.TrimSpace(name), Category: category}
	if err := a.Validate(); err != nil {
		return model.Athlete{}, fmt.Errorf("%w: %w", ErrInvalidAthlete, err)
	}
	m.mu.Lock()
	if _, dup := m.index[a.ID]; dup {
		m.mu.Unlock()
		return model.Athlete{}, fmt.Errorf("%w: duplicate id %s", ErrInvalidAthlete, a.ID)
	}
	m.index[a.ID] = len(m.athletes)
	m.athletes = append(m.athletes, a)
	m.mu.Unlock()

	m.changed()
	return a, nil
}

func (m *Memory) RemoveAthlete(id string) error {
	m.mu.Lock()
	pos, ok := m.index[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.athletes = slices.Delete(m.athletes, pos, pos+1)
	m.reindex()
	m.mu.Unlock()

	m.changed()
	return nil
}

func (m *Memory) Athlete(id string) (model.Athlete, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.index[id]
	if !ok {
		return model.Athlete{}, false
	}
	return m.athletes[pos], true
}

func (m *Memory) Athletes() []model.Athlete {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.athletes)
}

func (m *Memory) Sessions() []model.TrainingSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneSessions(m.sessions)
}

func (m *Memory) SessionsForAthlete(id string) []model.TrainingSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.TrainingSession
	for _, s := range m.sessions {
		if s.AthleteID == id {
			out = append(out, cloneSession(s))
		}
	}
	return out
}

func (m *Memory) StatsForAthlete(id string) types.AthleteStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return stats.ForAthlete(m.sessions, id)
}

func (m *Memory) SessionsOn(day time.Time) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return stats.SessionsOn(m.sessions, day)
}

func (m *Memory) Leaderboard() []types.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return stats.Leaderboard(m.athletes, m.sessions)
}

func (m *Memory) Replace(athletes []model.Athlete, sessions []model.TrainingSession) error {
	if err := m.load(athletes, sessions); err != nil {
		return err
	}
	m.changed()
	return nil
}

// Seed adds DefaultRoster when the roster is empty and reports whether it did.
func (m *Memory) Seed() (bool, error) {
	m.mu.RLock()
	empty := len(m.athletes) == 0
	m.mu.RUnlock()
	if !empty {
		return false, nil
	}
	for _, d := range DefaultRoster {
		if _, err := m.AddAthlete(d.Name, d.Category); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (m *Memory) Hydrate(ctx context.Context, p persistence.Store) error {
	var (
		athletes []model.Athlete
		sessions []model.TrainingSession
	)
	if err := loadKey(ctx, p, persistence.KeyAthletes, &athletes); err != nil {
		return err
	}
	if err := loadKey(ctx, p, persistence.KeySessions, &sessions); err != nil {
		return err
	}
	return m.load(athletes, sessions)
}

func (m *Memory) Persist(ctx context.Context, p persistence.Store) error {
	m.mu.RLock()
	athletes, aerr := persistence.Marshal(m.athletes)
	sessions, serr := persistence.Marshal(m.sessions)
	m.mu.RUnlock()
	if err := errors.Join(aerr, serr); err != nil {
		return err
	}
	if err := p.Save(ctx, persistence.KeyAthletes, athletes); err != nil {
		return fmt.Errorf("save %s: %w", persistence.KeyAthletes, err)
	}
	if err := p.Save(ctx, persistence.KeySessions, sessions); err != nil {
		return fmt.Errorf("save %s: %w", persistence.KeySessions, err)
	}
	return nil
}

func (m *Memory) load(athletes []model.Athlete, sessions []model.TrainingSession) error {
	index := make(map[string]int, len(athletes))
	for i, a := range athletes {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidAthlete, err)
		}
		if _, dup := index[a.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidAthlete, a.ID)
		}
		index[a.ID] = i
	}
	ids := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSession, err)
		}
		if _, dup := ids[s.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateSession, s.ID)
		}
		ids[s.ID] = struct{}{}
	}

	m.mu.Lock()
	m.athletes = slices.Clone(athletes)
	m.sessions = cloneSessions(sessions)
	m.index = index
	m.ids = ids
	m.mu.Unlock()
	m.updateMetrics()
	return nil
}

// reindex must be called with mu held.
func (m *Memory) reindex() {
	m.index = make(map[string]int, len(m.athletes))
	for i, a := range m.athletes {
		m.index[a.ID] = i
	}
}

func (m *Memory) changed() {
	m.updateMetrics()
	if m.onChange != nil {
		m.onChange()
	}
}

func (m *Memory) updateMetrics() {
	m.mu.RLock()
	a, s := len(m.athletes), len(m.sessions)
	m.mu.RUnlock()
	metrics.UpdateRepositorySize(a, s)
}

func loadKey(ctx context.Context, p persistence.Store, key string, v any) error {
	blob, ok, err := p.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return nil
	}
	if err := persistence.Unmarshal(blob, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func cloneSession(s model.TrainingSession) model.TrainingSession {
	s.HurdleTimes = slices.Clone(s.HurdleTimes)
	return s
}

func cloneSessions(in []model.TrainingSession) []model.TrainingSession {
	if in == nil {
		return nil
	}
	out := make([]model.TrainingSession, len(in))
	for i, s := range in {
		out[i] = cloneSession(s)
	}
	return out
}
