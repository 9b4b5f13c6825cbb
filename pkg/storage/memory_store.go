package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/polisai/polis-cipher/pkg/cipher"
	"github.com/polisai/polis-cipher/pkg/domain"
)

// configKeyNamespace seeds IDs for configured keys that do not carry one, so
// the same name maps to the same ID across reloads.
var configKeyNamespace = uuid.MustParse("6f1c8a52-2d0e-4b7a-9a43-0c5e7d9b1f24")

// MemoryKeyStore is an in-memory implementation of KeyStore.
type MemoryKeyStore struct {
	mu     sync.RWMutex
	keys   map[string]domain.StoredKey
	synced map[string]struct{}
	now    func() time.Time
}

// NewMemoryKeyStore creates an empty MemoryKeyStore.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{
		keys:   make(map[string]domain.StoredKey),
		synced: make(map[string]struct{}),
		now:    time.Now,
	}
}

// Put stores the normalized value under a fresh random ID.
func (s *MemoryKeyStore) Put(_ context.Context, name, value string) (domain.StoredKey, error) {
	normalized, err := cipher.NormalizeKey(value)
	if err != nil {
		return domain.StoredKey{}, fmt.Errorf("store key %q: %w", name, err)
	}

	key := domain.StoredKey{
		ID:        uuid.New().String(),
		Name:      name,
		Value:     normalized,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.ID] = key
	return key, nil
}

// Get retrieves a key by ID.
func (s *MemoryKeyStore) Get(_ context.Context, id string) (domain.StoredKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[id]
	if !ok {
		return domain.StoredKey{}, fmt.Errorf("%w: %s", domain.ErrKeyNotFound, id)
	}
	return key, nil
}

// Delete removes a key by ID.
func (s *MemoryKeyStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrKeyNotFound, id)
	}
	delete(s.keys, id)
	delete(s.synced, id)
	return nil
}

// List returns a sorted snapshot of all keys.
func (s *MemoryKeyStore) List(_ context.Context) ([]domain.StoredKey, error) {
	s.mu.RLock()
	out := make([]domain.StoredKey, 0, len(s.keys))
	for _, key := range s.keys {
		out = append(out, key)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Sync validates every key first and only then swaps the configured set, so a
// bad entry leaves the store unchanged. Duplicate IDs, and IDs already held by
// keys created with Put, are rejected with domain.ErrKeyConflict.
func (s *MemoryKeyStore) Sync(_ context.Context, keys []domain.StoredKey) error {
	prepared := make([]domain.StoredKey, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		normalized, err := cipher.NormalizeKey(key.Value)
		if err != nil {
			return fmt.Errorf("sync key %q: %w", key.Name, err)
		}
		key.Value = normalized
		if key.ID == "" {
			key.ID = uuid.NewSHA1(configKeyNamespace, []byte(key.Name)).String()
		}
		if _, dup := seen[key.ID]; dup {
			return fmt.Errorf("sync key %q: %w: duplicate ID %s", key.Name, domain.ErrKeyConflict, key.ID)
		}
		seen[key.ID] = struct{}{}
		if key.CreatedAt.IsZero() {
			key.CreatedAt = s.now().UTC()
		}
		prepared = append(prepared, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range prepared {
		if _, ok := s.keys[key.ID]; !ok {
			continue
		}
		if _, synced := s.synced[key.ID]; !synced {
			return fmt.Errorf("sync key %q: %w: %s belongs to a stored key", key.Name, domain.ErrKeyConflict, key.ID)
		}
	}

	for id := range s.synced {
		delete(s.keys, id)
	}
	s.synced = make(map[string]struct{}, len(prepared))
	for _, key := range prepared {
		if existing, ok := s.keys[key.ID]; ok && existing.Value == key.Value {
			key.CreatedAt = existing.CreatedAt
		}
		s.keys[key.ID] = key
		s.synced[key.ID] = struct{}{}
	}
	return nil
}
