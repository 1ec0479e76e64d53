package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is the in-memory Store implementation. Safe for
// concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	files  map[string][]ClassifiedUnit
	closed bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]ClassifiedUnit)}
}

func (s *MemoryStore) ReplaceFile(_ context.Context, path string, units []ClassifiedUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if len(units) == 0 {
		delete(s.files, path)
		return nil
	}
	s.files[path] = append([]ClassifiedUnit(nil), units...)
	return nil
}

func (s *MemoryStore) DeleteFile(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	delete(s.files, path)
	return nil
}

func (s *MemoryStore) File(_ context.Context, path string) ([]ClassifiedUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	return append([]ClassifiedUnit(nil), s.files[path]...), nil
}

func (s *MemoryStore) Units(ctx context.Context) ([]ClassifiedUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	var units []ClassifiedUnit
	for _, path := range s.sortedPathsLocked() {
		units = append(units, s.files[path]...)
	}
	return units, nil
}

func (s *MemoryStore) Paths(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	return s.sortedPathsLocked(), nil
}

func (s *MemoryStore) PurposeLabels(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	seen := make(map[string]bool)
	for _, units := range s.files {
		for _, u := range units {
			seen[u.Purpose] = true
		}
	}
	return sortedKeys(seen), nil
}

func (s *MemoryStore) PatternLabels(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	seen := make(map[string]bool)
	for _, units := range s.files {
		for _, u := range units {
			for _, p := range u.Patterns {
				seen[p] = true
			}
		}
	}
	return sortedKeys(seen), nil
}

func (s *MemoryStore) PathsWithPurpose(_ context.Context, label string) ([]string, error) {
	return s.pathsMatching(func(u *ClassifiedUnit) bool { return u.Purpose == label })
}

func (s *MemoryStore) PathsWithPattern(_ context.Context, label string) ([]string, error) {
	return s.pathsMatching(func(u *ClassifiedUnit) bool {
		for _, p := range u.Patterns {
			if p == label {
				return true
			}
		}
		return false
	})
}

func (s *MemoryStore) pathsMatching(match func(*ClassifiedUnit) bool) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	var paths []string
	for path, units := range s.files {
		for i := range units {
			if match(&units[i]) {
				paths = append(paths, path)
				break
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}
	n := 0
	for _, units := range s.files {
		n += len(units)
	}
	return n, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.files = nil
	return nil
}

func (s *MemoryStore) sortedPathsLocked() []string {
	paths := make([]string, 0, len(s.files))
	for path := range s.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
