// Package enrichment implements the read-through, write-back catalog
// caches: system/ship-group/name/ticker maps backed by JSON files, plus
// the bounded celestial LRU and the standings-based veto lookup.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
)

// FetchFunc resolves a missing key against the upstream catalog (C1).
type FetchFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Map is a read-mostly, write-back cache: hits are served from an
// in-memory map under a read lock; misses call FetchFunc, then take the
// per-map file lock followed by the map's write lock, insert, persist
// the whole map to its backing JSON file, and return. That ordering
// (file lock before map lock) is mandatory and must be identical across
// every map in the process to avoid deadlock.
type Map[K comparable, V any] struct {
	mu    sync.RWMutex
	data  map[K]V
	path  string
	lock  *fileLock
	fetch FetchFunc[K, V]
	group singleflight.Group // golang.org/x/sync/singleflight: coalesce concurrent misses on one key
	name  string             // for logging
}

// NewMap loads an existing JSON file at path (if any) and returns a Map
// backed by it.
func NewMap[K comparable, V any](name, path string, fetch FetchFunc[K, V]) (*Map[K, V], error) {
	m := &Map[K, V]{
		data:  make(map[K]V),
		path:  path,
		fetch: fetch,
		name:  name,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("enrichment map %s: create dir: %w", name, err)
	}

	lock, err := newFileLock(path + ".lock")
	if err != nil {
		return nil, fmt.Errorf("enrichment map %s: %w", name, err)
	}
	m.lock = lock

	if raw, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(raw, &m.data); err != nil {
			slog.Warn("enrichment map: failed to parse existing file, starting empty",
				"map", name, "path", path, "error", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("enrichment map %s: read %s: %w", name, path, err)
	}

	return m, nil
}

// Get returns the cached value for key, fetching and persisting it on
// first miss. Entries once learned are never invalidated at runtime.
func (m *Map[K, V]) Get(ctx context.Context, key K) (V, error) {
	m.mu.RLock()
	if v, ok := m.data[key]; ok {
		m.mu.RUnlock()
		return v, nil
	}
	m.mu.RUnlock()

	flightKey := fmt.Sprintf("%v", key)
	v, err, _ := m.group.Do(flightKey, func() (any, error) {
		// Another flight for the same key may have completed while we
		// queued behind singleflight; re-check before hitting C1.
		m.mu.RLock()
		if existing, ok := m.data[key]; ok {
			m.mu.RUnlock()
			return existing, nil
		}
		m.mu.RUnlock()

		fetched, err := m.fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := m.insert(key, fetched); err != nil {
			slog.Error("enrichment map: failed to persist after insert",
				"map", m.name, "error", err)
		}
		return fetched, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// insert takes the file lock, then the map write lock, inserts the
// value, persists the whole map, and releases both, in that order.
// That ordering is mandatory and must be identical across every map in
// the process to avoid deadlock.
func (m *Map[K, V]) insert(key K, value V) error {
	if err := m.lock.Lock(); err != nil {
		return fmt.Errorf("enrichment map %s: file lock: %w", m.name, err)
	}
	defer m.lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
	return m.persistLocked()
}

// persistLocked rewrites the backing file in full. Caller must hold
// both the file lock and the map write lock.
func (m *Map[K, V]) persistLocked() error {
	raw, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return fmt.Errorf("enrichment map %s: marshal: %w", m.name, err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("enrichment map %s: write temp file: %w", m.name, err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("enrichment map %s: rename temp file: %w", m.name, err)
	}
	return nil
}

// Len reports the current number of cached entries.
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
