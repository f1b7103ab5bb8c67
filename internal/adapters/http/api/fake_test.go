package api_test

import (
	"context"

	"github.com/okian/hurdletime/internal/adapters/export"
	service "github.com/okian/hurdletime/internal/app"
	"github.com/okian/hurdletime/internal/domain/model"
	"github.com/okian/hurdletime/internal/domain/race"
	"github.com/okian/hurdletime/internal/domain/types"
)

// failing returns the same error from every call.
type failing struct{ err error }

func (f failing) Status(context.Context) (service.Status, error) { return service.Status{}, f.err }
func (f failing) Connect(context.Context) error                  { return f.err }
func (f failing) Disconnect(context.Context) error               { return f.err }

func (f failing) StartRace(context.Context, string, int) (race.Snapshot, error) {
	return race.Snapshot{}, f.err
}

func (f failing) FinishRace(context.Context) (*model.TrainingSession, error) { return nil, f.err }
func (f failing) Athletes(context.Context) ([]model.Athlete, error)          { return nil, f.err }

func (f failing) AddAthlete(context.Context, string, string) (model.Athlete, error) {
	return model.Athlete{}, f.err
}

func (f failing) RemoveAthlete(context.Context, string) error { return f.err }

func (f failing) Sessions(context.Context, string) ([]model.TrainingSession, error) {
	return nil, f.err
}

func (f failing) Stats(context.Context, string) (types.AthleteStats, error) {
	return types.AthleteStats{}, f.err
}

func (f failing) Leaderboard(context.Context) ([]types.Entry, error) { return nil, f.err }
func (f failing) Export(context.Context) (export.Document, error)    { return export.Document{}, f.err }
func (f failing) Import(context.Context, export.Document) error      { return f.err }
func (f failing) Subscribe() (<-chan service.Event, func())          { return nil, func() {} }
func (f failing) SimulateRun(int) error                              { return f.err }
func (f failing) DropLink() error                                    { return f.err }
