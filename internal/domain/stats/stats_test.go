package stats_test

import (
	"testing"
	"time"

	"github.com/okian/hurdletime/internal/domain/model"
	"github.com/okian/hurdletime/internal/domain/stats"
	. "github.com/smartystreets/goconvey/convey"
)

func session(id, athleteID, name string, date time.Time, times ...uint32) model.TrainingSession {
	return model.TrainingSession{
		ID:          id,
		AthleteID:   athleteID,
		AthleteName: name,
		Date:        date,
		HurdleTimes: times,
		TotalTime:   times[len(times)-1],
		NumHurdles:  len(times),
	}
}

func TestForAthlete(t *testing.T) {
	day := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	sessions := []model.TrainingSession{
		session("S1", "A1", "Ana", day, 1000, 2200, 3500),
		session("S2", "A1", "Ana", day, 1100, 3300),
		session("S3", "A2", "Bea", day, 4000),
	}

	Convey("Given sessions for two athletes", t, func() {
		Convey("When computing stats for A1", func() {
			s := stats.ForAthlete(sessions, "A1")

			Convey("Then best should be the minimum and average the mean", func() {
				So(s.HasData, ShouldBeTrue)
				So(s.Count, ShouldEqual, 2)
				So(s.Best, ShouldEqual, 3300)
				So(s.Average, ShouldEqual, 3400.0)
			})
		})

		Convey("When computing stats for an athlete with no sessions", func() {
			s := stats.ForAthlete(sessions, "A3")

			Convey("Then the empty result should be returned", func() {
				So(s.HasData, ShouldBeFalse)
				So(s.Count, ShouldEqual, 0)
				So(s.Best, ShouldEqual, 0)
				So(s.Average, ShouldEqual, 0.0)
			})
		})

		Convey("When there are no sessions at all", func() {
			So(stats.ForAthlete(nil, "A1").HasData, ShouldBeFalse)
		})
	})
}

func TestSplitDeltas(t *testing.T) {
	Convey("Given cumulative splits", t, func() {
		So(stats.SplitDeltas([]uint32{1000, 2200, 3500}), ShouldResemble, []uint32{1000, 1200, 1300})
		So(stats.SplitDeltas([]uint32{700}), ShouldResemble, []uint32{700})
		So(stats.SplitDeltas(nil), ShouldBeEmpty)
	})
}

func TestFormatMillis(t *testing.T) {
	Convey("Given millisecond values", t, func() {
		So(stats.FormatMillis(1234), ShouldEqual, "1.234s")
		So(stats.FormatMillis(0), ShouldEqual, "0.000s")
		So(stats.FormatMillis(3500), ShouldEqual, "3.500s")
	})
}

func TestSessionsOn(t *testing.T) {
	Convey("Given sessions across two days", t, func() {
		today := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
		sessions := []model.TrainingSession{
			session("S1", "A1", "Ana", today.Add(-11*time.Hour), 1000),
			session("S2", "A1", "Ana", today.Add(-13*time.Hour), 1000),
			session("S3", "A2", "Bea", today.Add(5*time.Hour), 1000),
		}

		Convey("Then only same-day sessions should count", func() {
			So(stats.SessionsOn(sessions, today), ShouldEqual, 2)
		})
	})
}

func TestLeaderboard(t *testing.T) {
	Convey("Given a roster and sessions including a removed athlete", t, func() {
		day := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
		athletes := []model.Athlete{
			{ID: "A1", Name: "Ana", Category: model.CategorySenior},
			{ID: "A2", Name: "Bea", Category: model.CategoryJunior},
			{ID: "A4", Name: "Idle", Category: model.CategoryMaster},
		}
		sessions := []model.TrainingSession{
			session("S1", "A1", "Ana", day, 3500),
			session("S2", "A2", "Bea", day, 3200),
			session("S3", "A3", "Gone", day, 3300),
			session("S4", "A1", "Ana", day, 3100),
		}

		Convey("When ranking", func() {
			board := stats.Leaderboard(athletes, sessions)

			Convey("Then athletes should be ordered by best time", func() {
				So(board, ShouldHaveLength, 3)
				So(board[0].AthleteID, ShouldEqual, "A1")
				So(board[0].Best, ShouldEqual, 3100)
				So(board[0].Sessions, ShouldEqual, 2)
				So(board[0].Category, ShouldEqual, "Senior")
				So(board[1].AthleteID, ShouldEqual, "A2")
				So(board[2].AthleteName, ShouldEqual, "Gone")
				So(board[2].Category, ShouldBeEmpty)
				So(board[2].Rank, ShouldEqual, 3)
			})
		})
	})
}
