// Package source keeps one container's cell fragments ordered by address.
// Position in the store is the only dependency signal the engine uses.
package source

import (
	"sort"

	"cellscript/internal/namespace"
	"cellscript/internal/types"
)

// Unit is one address's fragment plus its execution bookkeeping.
type Unit struct {
	Address types.Address
	Source  string

	// Snapshot is the namespace as it was right before the unit last ran in
	// the current pass chain. Nil until then.
	Snapshot *namespace.Snapshot
}

// HasRun reports whether the unit has a snapshot in the current chain.
func (u *Unit) HasRun() bool { return u.Snapshot != nil }

// Store holds the units of one container in address order.
// It is not safe for concurrent use.
type Store struct {
	container string
	units     []*Unit
}

// NewStore creates an empty store for container.
func NewStore(container string) *Store {
	return &Store{container: container}
}

// Container returns the owning container id.
func (s *Store) Container() string { return s.container }

// Len returns the number of units.
func (s *Store) Len() int { return len(s.units) }

// At returns the unit at index i.
func (s *Store) At(i int) *Unit { return s.units[i] }

// Units returns the units in order. The slice is a copy; the units are not.
func (s *Store) Units() []*Unit {
	out := make([]*Unit, len(s.units))
	copy(out, s.units)
	return out
}

// search returns the insertion point for addr and whether it is occupied.
func (s *Store) search(addr types.Address) (int, bool) {
	i := sort.Search(len(s.units), func(i int) bool {
		return s.units[i].Address.Compare(addr) >= 0
	})
	return i, i < len(s.units) && s.units[i].Address == addr
}

func (s *Store) check(op string, addr types.Address) error {
	if addr.Container != s.container {
		return &types.SourceConflictError{Op: op, Address: addr, Reason: "address belongs to container " + addr.Container + ", store holds " + s.container}
	}
	if !addr.Valid() {
		return &types.SourceConflictError{Op: op, Address: addr, Reason: "negative row or column"}
	}
	return nil
}

// Add inserts a new unit and returns its index.
func (s *Store) Add(addr types.Address, text string) (int, error) {
	if err := s.check("add", addr); err != nil {
		return -1, err
	}
	i, found := s.search(addr)
	if found {
		return -1, &types.SourceConflictError{Op: "add", Address: addr, Reason: "address already has source"}
	}
	s.units = append(s.units, nil)
	copy(s.units[i+1:], s.units[i:])
	s.units[i] = &Unit{Address: addr, Source: text}
	return i, nil
}

// Replace updates the text of an existing unit in place.
func (s *Store) Replace(addr types.Address, text string) (int, error) {
	if err := s.check("replace", addr); err != nil {
		return -1, err
	}
	i, found := s.search(addr)
	if !found {
		return -1, &types.SourceConflictError{Op: "replace", Address: addr, Reason: "no source at address"}
	}
	s.units[i].Source = text
	return i, nil
}

// Remove deletes a unit and returns the index it occupied.
func (s *Store) Remove(addr types.Address) (int, error) {
	if err := s.check("remove", addr); err != nil {
		return -1, err
	}
	i, found := s.search(addr)
	if !found {
		return -1, &types.SourceConflictError{Op: "remove", Address: addr, Reason: "no source at address"}
	}
	copy(s.units[i:], s.units[i+1:])
	s.units[len(s.units)-1] = nil
	s.units = s.units[:len(s.units)-1]
	return i, nil
}

// IndexOf returns the position of addr.
func (s *Store) IndexOf(addr types.Address) (int, bool) {
	if addr.Container != s.container {
		return -1, false
	}
	i, found := s.search(addr)
	if !found {
		return -1, false
	}
	return i, true
}

// Get returns the unit at addr.
func (s *Store) Get(addr types.Address) (*Unit, bool) {
	i, ok := s.IndexOf(addr)
	if !ok {
		return nil, false
	}
	return s.units[i], true
}

// Verify checks that iteration order is strictly ascending.
func (s *Store) Verify() error {
	for i := 1; i < len(s.units); i++ {
		prev, next := s.units[i-1].Address, s.units[i].Address
		if prev.Compare(next) >= 0 {
			return &types.ConsistencyViolation{Index: i, Prev: prev, Next: next}
		}
	}
	return nil
}

// ClearSnapshots drops every unit's snapshot, starting a new pass chain.
func (s *Store) ClearSnapshots() {
	for _, u := range s.units {
		u.Snapshot = nil
	}
}
