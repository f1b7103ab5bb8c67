// Package types contains read-model types shared by the stats facade and
// its consumers.
package types

// AthleteStats aggregates an athlete's session totals. HasData is false
// when the athlete has no sessions; Best and Average are zero then.
type AthleteStats struct {
	AthleteID string  `json:"athleteId"`
	Count     int     `json:"count"`
	Best      uint32  `json:"best"`
	Average   float64 `json:"average"`
	HasData   bool    `json:"hasData"`
}

// Entry represents a leaderboard entry
type Entry struct {
	Rank        int     `json:"rank"`
	AthleteID   string  `json:"athleteId"`
	AthleteName string  `json:"athleteName"`
	Category    string  `json:"category,omitempty"`
	Best        uint32  `json:"best"`
	Average     float64 `json:"average"`
	Sessions    int     `json:"sessions"`
}
