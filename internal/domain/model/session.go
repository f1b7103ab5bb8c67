package model

import (
	"fmt"
	"time"
)

// TrainingSession is a finalized, immutable race record.
//
// HurdleTimes holds cumulative elapsed milliseconds since the sensor's own
// start trigger, so TotalTime is always the last element.
type TrainingSession struct {
	ID          string    `json:"id" msgpack:"id"`
	AthleteID   string    `json:"athleteId" msgpack:"athleteId"`
	AthleteName string    `json:"athleteName" msgpack:"athleteName"`
	Date        time.Time `json:"date" msgpack:"date"`
	HurdleTimes []uint32  `json:"hurdleTimes" msgpack:"hurdleTimes"`
	TotalTime   uint32    `json:"totalTime" msgpack:"totalTime"`
	NumHurdles  int       `json:"numHurdles" msgpack:"numHurdles"`
}

// NewSession builds a session from a working split sequence. The split slice
// is copied.
func NewSession(id string, athlete Athlete, date time.Time, splits []uint32) (TrainingSession, error) {
	times := make([]uint32, len(splits))
	copy(times, splits)
	s := TrainingSession{
		ID:          id,
		AthleteID:   athlete.ID,
		AthleteName: athlete.Name,
		Date:        date,
		HurdleTimes: times,
		NumHurdles:  len(times),
	}
	if len(times) > 0 {
		s.TotalTime = times[len(times)-1]
	}
	return s, s.Validate()
}

// Validate checks that splits are non-decreasing and agree with TotalTime and NumHurdles.
func (s TrainingSession) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidSession)
	case s.AthleteID == "":
		return fmt.Errorf("%w: missing athlete id", ErrInvalidSession)
	case len(s.HurdleTimes) == 0:
		return fmt.Errorf("%w: no splits", ErrInvalidSession)
	case s.TotalTime != s.HurdleTimes[len(s.HurdleTimes)-1]:
		return fmt.Errorf("%w: total time %d does not match last split %d",
			ErrInvalidSession, s.TotalTime, s.HurdleTimes[len(s.HurdleTimes)-1])
	case len(s.HurdleTimes) > s.NumHurdles:
		return fmt.Errorf("%w: %d splits exceed %d hurdles", ErrInvalidSession, len(s.HurdleTimes), s.NumHurdles)
	}
	for i := 1; i < len(s.HurdleTimes); i++ {
		if s.HurdleTimes[i] < s.HurdleTimes[i-1] {
			return fmt.Errorf("%w: split %d decreases", ErrInvalidSession, i)
		}
	}
	return nil
}
