package persistence

import "errors"

// Sentinel kinds for persistence errors.
var (
	ErrClosed = errors.New("store closed")
	ErrCodec  = errors.New("blob encoding failed")
)
