// Package stats derives read-only views from sessions and the roster.
package stats

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/okian/hurdletime/internal/domain/model"
	"github.com/okian/hurdletime/internal/domain/types"
)

// ForAthlete computes count, best and mean total time over the athlete's
// sessions. With no sessions it returns the empty result, HasData false.
func ForAthlete(sessions []model.TrainingSession, athleteID string) types.AthleteStats {
	mine := lo.Filter(sessions, func(s model.TrainingSession, _ int) bool {
		return s.AthleteID == athleteID
	})
	return aggregate(athleteID, mine)
}

func aggregate(athleteID string, sessions []model.TrainingSession) types.AthleteStats {
	out := types.AthleteStats{AthleteID: athleteID, Count: len(sessions)}
	if len(sessions) == 0 {
		return out
	}
	totals := lo.Map(sessions, func(s model.TrainingSession, _ int) uint32 { return s.TotalTime })
	sum := lo.SumBy(totals, func(t uint32) float64 { return float64(t) })
	out.Best = lo.Min(totals)
	out.Average = sum / float64(len(totals))
	out.HasData = true
	return out
}

// SplitDeltas turns cumulative splits into per-hurdle times: the first
// split as-is, then the difference to the previous one.
func SplitDeltas(hurdleTimes []uint32) []uint32 {
	return lo.Map(hurdleTimes, func(t uint32, i int) uint32 {
		if i == 0 || t < hurdleTimes[i-1] {
			return t
		}
		return t - hurdleTimes[i-1]
	})
}

// FormatMillis renders milliseconds as seconds with three decimals, "1.234s".
func FormatMillis(ms uint32) string {
	return fmt.Sprintf("%.3fs", float64(ms)/1000)
}

// SessionsOn counts sessions whose date falls on the same calendar day as
// day, in day's location.
func SessionsOn(sessions []model.TrainingSession, day time.Time) int {
	y, m, d := day.Date()
	return lo.CountBy(sessions, func(s model.TrainingSession) bool {
		sy, sm, sd := s.Date.In(day.Location()).Date()
		return sy == y && sm == m && sd == d
	})
}

// Leaderboard ranks every athlete with at least one session by best total
// time, then average, then name. Athletes missing from the roster keep the
// name recorded on their sessions.
func Leaderboard(athletes []model.Athlete, sessions []model.TrainingSession) []types.Entry {
	roster := lo.KeyBy(athletes, func(a model.Athlete) string { return a.ID })
	grouped := lo.GroupBy(sessions, func(s model.TrainingSession) string { return s.AthleteID })

	entries := lo.MapToSlice(grouped, func(id string, ss []model.TrainingSession) types.Entry {
		agg := aggregate(id, ss)
		e := types.Entry{
			AthleteID:   id,
			AthleteName: ss[len(ss)-1].AthleteName,
			Best:        agg.Best,
			Average:     agg.Average,
			Sessions:    agg.Count,
		}
		if a, ok := roster[id]; ok {
			e.AthleteName = a.Name
			e.Category = string(a.Category)
		}
		return e
	})

	slices.SortFunc(entries, func(a, b types.Entry) int {
		return cmp.Or(
			cmp.Compare(a.Best, b.Best),
			cmp.Compare(a.Average, b.Average),
			cmp.Compare(a.AthleteName, b.AthleteName),
			cmp.Compare(a.AthleteID, b.AthleteID),
		)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
