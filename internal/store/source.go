// Package store persists cell source text. The engine never sees these types
// directly; sessions read through them on load and write through them on
// every change.
package store

import (
	"errors"
	"sort"
	"sync"

	"cellscript/internal/types"
)

// ErrNotFound is returned by Read for an address with no stored source.
var ErrNotFound = errors.New("source not found")

// SourceStore is the persistence collaborator for cell source text.
type SourceStore interface {
	Read(addr types.Address) (string, error)
	Write(addr types.Address, text string) error
	Delete(addr types.Address) error
	Exists(addr types.Address) (bool, error)
	// List returns the stored addresses of container in address order.
	List(container string) ([]types.Address, error)
	// Containers returns every container with at least one stored cell, sorted.
	Containers() ([]string, error)
	Close() error
}

// NameStore is implemented by stores that also keep workbook-level named
// ranges.
type NameStore interface {
	Names() (map[string]string, error)
	DefineName(name, ref string) error
	RemoveName(name string) error
}

func sortAddresses(addrs []types.Address) {
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })
}

// =============================================================================
// MEMORY
// =============================================================================

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	sources map[types.Address]string
	names   map[string]string
}

var (
	_ SourceStore = (*MemoryStore)(nil)
	_ NameStore   = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sources: make(map[types.Address]string),
		names:   make(map[string]string),
	}
}

func (m *MemoryStore) Read(addr types.Address) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.sources[addr]
	if !ok {
		return "", ErrNotFound
	}
	return text, nil
}

func (m *MemoryStore) Write(addr types.Address, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[addr] = text
	return nil
}

func (m *MemoryStore) Delete(addr types.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sources, addr)
	return nil
}

func (m *MemoryStore) Exists(addr types.Address) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sources[addr]
	return ok, nil
}

func (m *MemoryStore) List(container string) ([]types.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.Address
	for addr := range m.sources {
		if addr.Container == container {
			out = append(out, addr)
		}
	}
	sortAddresses(out)
	return out, nil
}

func (m *MemoryStore) Containers() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for addr := range m.sources {
		if !seen[addr.Container] {
			seen[addr.Container] = true
			out = append(out, addr.Container)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) Names() (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.names))
	for k, v := range m.names {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) DefineName(name, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[name] = ref
	return nil
}

func (m *MemoryStore) RemoveName(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.names, name)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
