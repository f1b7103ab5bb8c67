package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound         = errors.New("athlete not found")
	ErrInvalidAthlete   = errors.New("invalid athlete")
	ErrInvalidSession   = errors.New("invalid session")
	ErrDuplicateSession = errors.New("duplicate session id")
)
