// Package store keeps reveal snapshots between controller lifetimes.
//
// Memory hands complete snapshots (buffers included) from one controller to
// the next inside a process. SQLite persists the portable part of a snapshot
// so a reveal can resume after a restart; the formatting is rebuilt with
// mdreveal.Rehydrate.
package store

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/mdreveal"
)

// ErrNotFound is returned when no snapshot is stored under a key.
var ErrNotFound = errors.New("store: snapshot not found")

// Store saves portable snapshots by key.
type Store interface {
	Save(ctx context.Context, key string, snap mdreveal.PortableSnapshot) error
	Load(ctx context.Context, key string) (mdreveal.PortableSnapshot, error)
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process Store. Besides portable snapshots it holds full
// Snapshots for hand-off between controllers with Put and Take.
type Memory struct {
	mu       sync.Mutex
	portable map[string]mdreveal.PortableSnapshot
	full     map[string]mdreveal.Snapshot
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		portable: make(map[string]mdreveal.PortableSnapshot),
		full:     make(map[string]mdreveal.Snapshot),
	}
}

// Put stores a full snapshot, replacing any previous one under key.
func (m *Memory) Put(key string, snap mdreveal.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.full[key] = snap
}

// Take removes and returns the full snapshot under key.
func (m *Memory) Take(key string) (mdreveal.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.full[key]
	if ok {
		delete(m.full, key)
	}
	return snap, ok
}

func (m *Memory) Save(ctx context.Context, key string, snap mdreveal.PortableSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portable[key] = snap
	return nil
}

func (m *Memory) Load(ctx context.Context, key string) (mdreveal.PortableSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return mdreveal.PortableSnapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.portable[key]
	if !ok {
		return mdreveal.PortableSnapshot{}, ErrNotFound
	}
	return snap, nil
}

// Delete removes both the portable and the full snapshot under key. Deleting
// a missing key is not an error.
func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.portable, key)
	delete(m.full, key)
	return nil
}
