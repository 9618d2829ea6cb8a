package repository

import (
	"context"
	"errors"
)

var ErrKeyNotFound = errors.New("storage key not found")

// Storage is a persistent key-value store for serialized settings and vault data.
type Storage interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Save stores value under key, replacing any previous value.
	Save(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}
