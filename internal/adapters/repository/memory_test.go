package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/hurdletime/internal/adapters/persistence"
	"github.com/okian/hurdletime/internal/adapters/repository"
	"github.com/okian/hurdletime/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("A%d", n)
	}
}

func sessionFor(id string, a model.Athlete, times ...uint32) model.TrainingSession {
	s, err := model.NewSession(id, a, time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC), times)
	if err != nil {
		panic(err)
	}
	return s
}

func TestRoster(t *testing.T) {
	Convey("Given an empty repository", t, func() {
		changes := 0
		repo := repository.NewMemory(
			repository.WithIDGenerator(sequentialIDs()),
			repository.WithOnChange(func() { changes++ }))

		Convey("When adding an athlete", func() {
			a, err := repo.AddAthlete("  Ana  ", model.CategorySenior)

			Convey("Then it should be stored with a fresh id and trimmed name", func() {
				So(err, ShouldBeNil)
				So(a.ID, ShouldEqual, "A1")
				So(a.Name, ShouldEqual, "Ana")
				got, ok := repo.Athlete("A1")
				So(ok, ShouldBeTrue)
				So(got, ShouldResemble, a)
				So(changes, ShouldEqual, 1)
			})
		})

		Convey("When adding an invalid athlete", func() {
			_, err1 := repo.AddAthlete("", model.CategorySenior)
			_, err2 := repo.AddAthlete("Bea", "Cadet")

			Convey("Then it should be rejected", func() {
				So(errors.Is(err1, repository.ErrInvalidAthlete), ShouldBeTrue)
				So(errors.Is(err2, repository.ErrInvalidAthlete), ShouldBeTrue)
				So(repo.Athletes(), ShouldBeEmpty)
				So(changes, ShouldEqual, 0)
			})
		})

		Convey("When removing an athlete that has sessions", func() {
			ana, _ := repo.AddAthlete("Ana", model.CategorySenior)
			bea, _ := repo.AddAthlete("Bea", model.CategoryJunior)
			So(repo.AddSession(sessionFor("S1", ana, 1000, 3500)), ShouldBeNil)
			So(repo.RemoveAthlete(ana.ID), ShouldBeNil)

			Convey("Then the roster should shrink but sessions stay", func() {
				_, ok := repo.Athlete(ana.ID)
				So(ok, ShouldBeFalse)
				still, ok := repo.Athlete(bea.ID)
				So(ok, ShouldBeTrue)
				So(still.Name, ShouldEqual, "Bea")
				So(repo.Sessions(), ShouldHaveLength, 1)
				So(repo.Sessions()[0].AthleteName, ShouldEqual, "Ana")
			})

			Convey("And removing it again should report not found", func() {
				So(errors.Is(repo.RemoveAthlete(ana.ID), repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When seeding", func() {
			seeded, err := repo.Seed()

			Convey("Then the default roster should be added once", func() {
				So(err, ShouldBeNil)
				So(seeded, ShouldBeTrue)
				So(repo.Athletes(), ShouldHaveLength, len(repository.DefaultRoster))
				again, _ := repo.Seed()
				So(again, ShouldBeFalse)
			})
		})
	})
}

func TestSessions(t *testing.T) {
	Convey("Given a repository with one athlete", t, func() {
		repo := repository.NewMemory(repository.WithIDGenerator(sequentialIDs()))
		ana, _ := repo.AddAthlete("Ana", model.CategorySenior)

		Convey("When sessions are added", func() {
			So(repo.AddSession(sessionFor("S1", ana, 1000, 2200, 3500)), ShouldBeNil)
			So(repo.AddSession(sessionFor("S2", ana, 1100, 3300)), ShouldBeNil)

			Convey("Then insertion order should be preserved", func() {
				got := repo.Sessions()
				So(got[0].ID, ShouldEqual, "S1")
				So(got[1].ID, ShouldEqual, "S2")
				So(repo.SessionsForAthlete(ana.ID), ShouldHaveLength, 2)
				So(repo.SessionsOn(time.Date(2025, 7, 1, 23, 0, 0, 0, time.UTC)), ShouldEqual, 2)
			})

			Convey("Then stats should aggregate total times", func() {
				s := repo.StatsForAthlete(ana.ID)
				So(s.Count, ShouldEqual, 2)
				So(s.Best, ShouldEqual, 3300)
				So(s.Average, ShouldEqual, 3400.0)
				So(repo.Leaderboard()[0].AthleteID, ShouldEqual, ana.ID)
			})

			Convey("Then returned sessions should be copies", func() {
				got := repo.Sessions()
				got[0].HurdleTimes[0] = 1
				So(repo.Sessions()[0].HurdleTimes[0], ShouldEqual, 1000)
			})

			Convey("Then a duplicate id should be rejected", func() {
				err := repo.AddSession(sessionFor("S1", ana, 900))
				So(errors.Is(err, repository.ErrDuplicateSession), ShouldBeTrue)
			})
		})

		Convey("When an invalid session is added", func() {
			bad := sessionFor("S9", ana, 1000)
			bad.TotalTime = 5
			err := repo.AddSession(bad)

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, repository.ErrInvalidSession), ShouldBeTrue)
				So(repo.Sessions(), ShouldBeEmpty)
			})
		})

		Convey("When asking stats for an athlete without sessions", func() {
			s := repo.StatsForAthlete(ana.ID)

			Convey("Then the empty result should be returned", func() {
				So(s.HasData, ShouldBeFalse)
				So(s.Count, ShouldEqual, 0)
			})
		})
	})
}

func TestReplace(t *testing.T) {
	Convey("Given a populated repository", t, func() {
		repo := repository.NewMemory(repository.WithIDGenerator(sequentialIDs()))
		ana, _ := repo.AddAthlete("Ana", model.CategorySenior)
		So(repo.AddSession(sessionFor("S1", ana, 1000)), ShouldBeNil)

		Convey("When replacing with an imported data set", func() {
			bea := model.Athlete{ID: "B1", Name: "Bea", Category: model.CategoryMaster}
			err := repo.Replace([]model.Athlete{bea}, []model.TrainingSession{sessionFor("S7", bea, 1500)})

			Convey("Then the old data should be gone", func() {
				So(err, ShouldBeNil)
				_, ok := repo.Athlete(ana.ID)
				So(ok, ShouldBeFalse)
				So(repo.Sessions(), ShouldHaveLength, 1)
				So(repo.Sessions()[0].ID, ShouldEqual, "S7")
			})
		})

		Convey("When the import holds duplicate athletes", func() {
			dup := model.Athlete{ID: "B1", Name: "Bea", Category: model.CategoryMaster}
			err := repo.Replace([]model.Athlete{dup, dup}, nil)

			Convey("Then nothing should change", func() {
				So(errors.Is(err, repository.ErrInvalidAthlete), ShouldBeTrue)
				_, ok := repo.Athlete(ana.ID)
				So(ok, ShouldBeTrue)
			})
		})
	})
}

func TestHydratePersist(t *testing.T) {
	Convey("Given a repository persisted to a store", t, func() {
		ctx := context.Background()
		store := persistence.NewMemoryStore()
		repo := repository.NewMemory(repository.WithIDGenerator(sequentialIDs()))
		ana, _ := repo.AddAthlete("Ana", model.CategorySenior)
		So(repo.AddSession(sessionFor("S1", ana, 1000, 2000)), ShouldBeNil)
		So(repo.Persist(ctx, store), ShouldBeNil)

		Convey("When a fresh repository hydrates from it", func() {
			fresh := repository.NewMemory()
			err := fresh.Hydrate(ctx, store)

			Convey("Then roster and sessions should be restored", func() {
				So(err, ShouldBeNil)
				So(fresh.Athletes(), ShouldResemble, repo.Athletes())
				got := fresh.Sessions()
				So(got, ShouldHaveLength, 1)
				So(got[0].HurdleTimes, ShouldResemble, []uint32{1000, 2000})
				So(got[0].Date.Equal(repo.Sessions()[0].Date), ShouldBeTrue)
			})
		})

		Convey("When hydrating from an empty store", func() {
			fresh := repository.NewMemory()
			So(fresh.Hydrate(ctx, persistence.NewMemoryStore()), ShouldBeNil)
			So(fresh.Athletes(), ShouldBeEmpty)
		})

		Convey("When the stored blob is corrupt", func() {
			So(store.Save(ctx, persistence.KeySessions, []byte{0xc1}), ShouldBeNil)
			err := repository.NewMemory().Hydrate(ctx, store)

			Convey("Then hydration should fail with a codec error", func() {
				So(errors.Is(err, persistence.ErrCodec), ShouldBeTrue)
			})
		})
	})
}
