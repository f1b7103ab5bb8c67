package race

import (
	"errors"
	"fmt"
)

// ErrPreconditionNotMet is the kind of every Start rejection.
var ErrPreconditionNotMet = errors.New("race precondition not met")

// Reason names the precondition that blocked Start.
type Reason string

// Start preconditions, checked in this order.
const (
	ReasonRaceActive         Reason = "race_already_active"
	ReasonNoAthlete          Reason = "no_athlete_selected"
	ReasonInvalidHurdles     Reason = "invalid_hurdle_count"
	ReasonDeviceNotConnected Reason = "device_not_connected"
)

// PreconditionError reports which Start guard failed. No state changes
// when it is returned.
type PreconditionError struct {
	Reason Reason
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPreconditionNotMet, e.Reason)
}

func (e *PreconditionError) Unwrap() error { return ErrPreconditionNotMet }
