// Package repository holds the athlete roster and the finalized session list.
package repository

import (
	"context"
	"time"

	"github.com/okian/hurdletime/internal/adapters/persistence"
	"github.com/okian/hurdletime/internal/domain/model"
	"github.com/okian/hurdletime/internal/domain/types"
)

// Store provides read/write access to the roster and sessions.
type Store interface {
	// AddSession appends a finalized session. Insertion order is kept.
	AddSession(s model.TrainingSession) error
	// AddAthlete creates a roster entry with a fresh id.
	AddAthlete(name string, category model.Category) (model.Athlete, error)
	// RemoveAthlete deletes a roster entry. Sessions that reference it are kept.
	// Returns ErrNotFound if the athlete is unknown.
	RemoveAthlete(id string) error

	Athlete(id string) (model.Athlete, bool)
	Athletes() []model.Athlete
	Sessions() []model.TrainingSession
	SessionsForAthlete(id string) []model.TrainingSession

	// StatsForAthlete returns count, best and mean total time. An athlete
	// without sessions yields the empty result.
	StatsForAthlete(id string) types.AthleteStats
	// SessionsOn counts sessions on day's calendar date.
	SessionsOn(day time.Time) int
	// Leaderboard ranks athletes by best total time.
	Leaderboard() []types.Entry

	// Replace swaps the whole data set, as done by an import.
	Replace(athletes []model.Athlete, sessions []model.TrainingSession) error

	// Hydrate loads both collections from p. Missing keys leave them empty.
	Hydrate(ctx context.Context, p persistence.Store) error
	// Persist saves both collections to p.
	Persist(ctx context.Context, p persistence.Store) error
}
