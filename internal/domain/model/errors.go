package model

import "errors"

// Sentinel kinds for model validation.
var (
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidAthlete  = errors.New("invalid athlete")
	ErrInvalidSession  = errors.New("invalid session")
)
