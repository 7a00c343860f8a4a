// Package interfaces defines service contracts for fiiboard
package interfaces

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by KeyedStore.Get for absent keys so callers
// can tell a miss from a backend failure.
var ErrKeyNotFound = errors.New("key not found")

// KeyedStore is the durable key→JSON-string store the quote cache sits on.
// The cache layer owns serialization; values are opaque strings here.
type KeyedStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}
