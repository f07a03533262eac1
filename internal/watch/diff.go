// Package watch keeps a workbook in step with its YAML file, re-running only
// what changed between two versions of the file.
package watch

import (
	"fmt"
	"sort"

	"cellscript/internal/session"
	"cellscript/internal/store"
	"cellscript/internal/types"

	"github.com/hashicorp/go-multierror"
)

// Op is the kind of change to one cell.
type Op int

const (
	OpAdd Op = iota
	OpReplace
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpReplace:
		return "replace"
	case OpRemove:
		return "remove"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Change is one cell-level difference between two documents.
type Change struct {
	Op      Op
	Address types.Address
	Source  string
}

func (c Change) String() string { return c.Op.String() + " " + c.Address.String() }

// NameChange is a named range that was defined, redefined or dropped.
// Ref is empty for a drop.
type NameChange struct {
	Name string
	Ref  string
}

// Diff lists the cell changes that turn prev into next: removals first, then
// additions and replacements, each group in address order.
func Diff(prev, next *store.Document) []Change {
	before, after := prev.Cells(), next.Cells()

	var removed, upserted []Change
	for addr := range before {
		if _, ok := after[addr]; !ok {
			removed = append(removed, Change{Op: OpRemove, Address: addr})
		}
	}
	for addr, text := range after {
		old, ok := before[addr]
		switch {
		case !ok:
			upserted = append(upserted, Change{Op: OpAdd, Address: addr, Source: text})
		case old != text:
			upserted = append(upserted, Change{Op: OpReplace, Address: addr, Source: text})
		}
	}

	byAddress := func(cs []Change) {
		sort.Slice(cs, func(i, j int) bool { return cs[i].Address.Less(cs[j].Address) })
	}
	byAddress(removed)
	byAddress(upserted)
	return append(removed, upserted...)
}

// DiffNames lists named-range differences, sorted by name.
func DiffNames(prev, next *store.Document) []NameChange {
	var out []NameChange
	for name, ref := range next.Names {
		if prev.Names[name] != ref {
			out = append(out, NameChange{Name: name, Ref: ref})
		}
	}
	for name := range prev.Names {
		if _, ok := next.Names[name]; !ok {
			out = append(out, NameChange{Name: name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Apply feeds changes into wb. Names are applied first so that cells added
// in the same version can already use them. A name change can affect any
// cell that reads it, so it ends with a full pass over the workbook. Every
// failure is collected.
func Apply(wb *session.Workbook, names []NameChange, changes []Change) error {
	var result *multierror.Error

	for _, nc := range names {
		if nc.Ref == "" {
			if err := wb.RemoveName(nc.Name); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}
		if err := wb.DefineName(nc.Name, nc.Ref); err != nil {
			result = multierror.Append(result, err)
		}
	}

	for _, c := range changes {
		s := wb.Container(c.Address.Container)
		var err error
		if c.Op == OpRemove {
			err = s.OnSourceRemoved(c.Address)
		} else {
			_, err = s.OnSourceChanged(c.Address, c.Source)
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", c, err))
		}
	}

	if len(names) > 0 {
		if err := wb.RunAll(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
