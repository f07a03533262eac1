// Package namespace holds the per-container binding environment that every
// cell fragment executes against, plus immutable snapshots of it.
//
// A Namespace remembers the order in which names were first bound. Rebinding
// an existing name keeps its position, so "most recently added" means most
// recently introduced.
//
// Values are frozen after each cell runs, so a later cell cannot mutate a
// list or dict bound by an earlier one (data.append fails); it must rebind
// the name instead, e.g. data = data + [3].
package namespace

import (
	"sort"

	"go.starlark.net/starlark"
)

// Well-known bindings written by helpers during a fragment's own execution.
const (
	PlotBinding   = "__plot__"
	LookupBinding = "__lookup__"
)

// Names of the seeded helpers that classification recognizes by call.
const (
	PlotHelper   = "plot"
	LookupHelper = "ref"
)

// Seeder installs the fixed helper bindings. It must bind the same names to
// equivalent values every time it is called.
type Seeder func(ns *Namespace)

// Namespace is one container's mutable, insertion-ordered name table.
// It is not safe for concurrent use.
type Namespace struct {
	container string
	seeder    Seeder

	dict   starlark.StringDict
	order  []string
	index  map[string]int
	seeded map[string]bool
}

// New creates a namespace for container and seeds it.
func New(container string, seeder Seeder) *Namespace {
	ns := &Namespace{container: container, seeder: seeder}
	ns.Reset()
	return ns
}

// Container returns the owning container id.
func (ns *Namespace) Container() string { return ns.container }

// Reset clears every binding and re-runs the seeder.
func (ns *Namespace) Reset() {
	ns.dict = make(starlark.StringDict)
	ns.order = nil
	ns.index = make(map[string]int)
	ns.seeded = make(map[string]bool)

	if ns.seeder != nil {
		ns.seeder(ns)
	}
	for _, name := range ns.order {
		ns.seeded[name] = true
	}
}

// Set binds name, appending it to the order if it is new.
func (ns *Namespace) Set(name string, v starlark.Value) {
	if _, ok := ns.index[name]; !ok {
		ns.index[name] = len(ns.order)
		ns.order = append(ns.order, name)
	}
	ns.dict[name] = v
}

// Get returns the value bound to name.
func (ns *Namespace) Get(name string) (starlark.Value, bool) {
	v, ok := ns.dict[name]
	return v, ok
}

// Has reports whether name is bound.
func (ns *Namespace) Has(name string) bool {
	_, ok := ns.dict[name]
	return ok
}

// IsSeeded reports whether name belongs to the bootstrap set.
func (ns *Namespace) IsSeeded(name string) bool { return ns.seeded[name] }

// Len returns the number of bindings.
func (ns *Namespace) Len() int { return len(ns.dict) }

// Names returns all bound names in insertion order.
func (ns *Namespace) Names() []string {
	out := make([]string, len(ns.order))
	copy(out, ns.order)
	return out
}

// SeededNames returns the bootstrap names in insertion order.
func (ns *Namespace) SeededNames() []string {
	var out []string
	for _, name := range ns.order {
		if ns.seeded[name] {
			out = append(out, name)
		}
	}
	return out
}

// Dict exposes the live binding map for a script host. Hosts that write to
// it directly must call Sync afterwards.
func (ns *Namespace) Dict() starlark.StringDict { return ns.dict }

// Sync records names a host added to Dict directly. Names listed in hint are
// appended in that order; any others are appended sorted.
func (ns *Namespace) Sync(hint []string) {
	for _, name := range hint {
		if _, ok := ns.dict[name]; ok {
			ns.track(name)
		}
	}
	if len(ns.index) == len(ns.dict) {
		return
	}
	var rest []string
	for name := range ns.dict {
		if _, ok := ns.index[name]; !ok {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		ns.track(name)
	}
}

func (ns *Namespace) track(name string) {
	if _, ok := ns.index[name]; ok {
		return
	}
	ns.index[name] = len(ns.order)
	ns.order = append(ns.order, name)
}

// Freeze makes every bound value immutable so snapshots taken from here on
// cannot be changed through aliasing.
func (ns *Namespace) Freeze() {
	ns.dict.Freeze()
}

// Snapshot captures the current bindings. Values are shared, which is safe
// once they are frozen.
func (ns *Namespace) Snapshot() *Snapshot {
	s := &Snapshot{
		container: ns.container,
		dict:      make(starlark.StringDict, len(ns.dict)),
		order:     ns.Names(),
	}
	for k, v := range ns.dict {
		s.dict[k] = v
	}
	return s
}

// Restore replaces all bindings with the contents of s.
func (ns *Namespace) Restore(s *Snapshot) {
	ns.dict = make(starlark.StringDict, len(s.dict))
	for k, v := range s.dict {
		ns.dict[k] = v
	}
	ns.order = make([]string, len(s.order))
	copy(ns.order, s.order)
	ns.index = make(map[string]int, len(ns.order))
	for i, name := range ns.order {
		ns.index[name] = i
	}
}

// LastBinding returns the most recently introduced name accepted by keep.
func (ns *Namespace) LastBinding(keep func(name string, v starlark.Value) bool) (string, starlark.Value, bool) {
	for i := len(ns.order) - 1; i >= 0; i-- {
		name := ns.order[i]
		v := ns.dict[name]
		if keep(name, v) {
			return name, v, true
		}
	}
	return "", nil, false
}
