// Package persistence provides the key-value collaborator used to hydrate and
// persist the roster and session list.
package persistence

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Keys under which the repository stores its collections.
const (
	KeyAthletes = "athletes"
	KeySessions = "sessions"
)

// Store loads and saves opaque blobs by key.
type Store interface {
	// Load returns the blob for key; ok is false when the key was never saved.
	Load(ctx context.Context, key string) (blob []byte, ok bool, err error)
	Save(ctx context.Context, key string, blob []byte) error
	Close() error
}

// Marshal encodes a collection for storage.
func Marshal(v any) ([]byte, error) {
	buf, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodec, err)
	}
	return buf, nil
}

// Unmarshal decodes a blob produced by Marshal.
func Unmarshal(blob []byte, v any) error {
	if err := msgpack.Unmarshal(blob, v); err != nil {
		return fmt.Errorf("%w: %w", ErrCodec, err)
	}
	return nil
}
