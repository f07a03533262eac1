package namespace

import "go.starlark.net/starlark"

// Snapshot is an immutable copy of a Namespace's bindings at one point in
// the execution order.
type Snapshot struct {
	container string
	dict      starlark.StringDict
	order     []string
}

// Container returns the container the snapshot was taken from.
func (s *Snapshot) Container() string { return s.container }

// Get returns the value bound to name at capture time.
func (s *Snapshot) Get(name string) (starlark.Value, bool) {
	v, ok := s.dict[name]
	return v, ok
}

// Len returns the number of captured bindings.
func (s *Snapshot) Len() int { return len(s.dict) }

// Names returns the captured names in insertion order.
func (s *Snapshot) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Equal reports whether both snapshots bind the same names, in the same
// order, to equal values.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.container != o.container || len(s.order) != len(o.order) {
		return false
	}
	for i, name := range s.order {
		if o.order[i] != name {
			return false
		}
		if eq, err := starlark.Equal(s.dict[name], o.dict[name]); err != nil || !eq {
			return false
		}
	}
	return true
}
