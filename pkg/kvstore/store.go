// Package kvstore holds the small durable key/value state the client keeps
// between runs: the last working endpoint and the last session snapshot.
//
// Every backend satisfies Store. Components never see the whole Store; they
// are handed a Slot bound to the single key they own.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when a key doesn't exist in the store.
var ErrNotFound = errors.New("key not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Store is a durable key/value store. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put overwrites any existing value for the key.
	Put(ctx context.Context, key string, value []byte) error
	// Delete is not an error if the key doesn't exist.
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryStore keeps values in a map. Values are copied on the way in and out.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.data, key)
	return nil
}

// Close marks the store closed. Data is kept so a test can "reopen" it via Reopen.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Reopen returns a new MemoryStore sharing this store's contents, which is
// how tests simulate a process restart.
func (m *MemoryStore) Reopen() *MemoryStore {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := NewMemoryStore()
	for k, v := range m.data {
		c := make([]byte, len(v))
		copy(c, v)
		n.data[k] = c
	}
	return n
}

// Slot is a Store narrowed to one key.
type Slot struct {
	store Store
	key   string
}

// NewSlot binds key on store.
func NewSlot(store Store, key string) *Slot {
	return &Slot{store: store, key: key}
}

// Key returns the bound key.
func (s *Slot) Key() string { return s.key }

// Load returns the stored bytes; ok is false when nothing is stored.
func (s *Slot) Load(ctx context.Context) (value []byte, ok bool, err error) {
	v, err := s.store.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", s.key, err)
	}
	return v, true, nil
}

// Save stores value under the bound key.
func (s *Slot) Save(ctx context.Context, value []byte) error {
	if err := s.store.Put(ctx, s.key, value); err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	return nil
}

// Clear removes the bound key.
func (s *Slot) Clear(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear %s: %w", s.key, err)
	}
	return nil
}

// LoadJSON decodes the stored value into v.
func (s *Slot) LoadJSON(ctx context.Context, v any) (bool, error) {
	raw, ok, err := s.Load(ctx)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", s.key, err)
	}
	return true, nil
}

// SaveJSON encodes v and stores it.
func (s *Slot) SaveJSON(ctx context.Context, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.key, err)
	}
	return s.Save(ctx, raw)
}
