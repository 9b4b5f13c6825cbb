// Package storage holds named cipher keys for the codec service.
package storage

import (
	"context"

	"github.com/polisai/polis-cipher/pkg/domain"
)

// KeyStore manages named keys. Implementations must be safe for concurrent use.
type KeyStore interface {
	// Put normalizes value and stores it under a new ID.
	Put(ctx context.Context, name, value string) (domain.StoredKey, error)

	// Get returns the key with the given ID or domain.ErrKeyNotFound.
	Get(ctx context.Context, id string) (domain.StoredKey, error)

	// Delete removes the key with the given ID or returns domain.ErrKeyNotFound.
	Delete(ctx context.Context, id string) error

	// List returns every key ordered by name, then ID.
	List(ctx context.Context) ([]domain.StoredKey, error)

	// Sync replaces the keys installed by a previous Sync, leaving keys created
	// with Put untouched.
	Sync(ctx context.Context, keys []domain.StoredKey) error
}
