package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrStopped      = errors.New("service not running")
	ErrBackpressure = errors.New("command queue full")
	ErrUnsupported  = errors.New("not supported by the active transport")
)
