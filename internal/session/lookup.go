package session

import (
	"fmt"

	"cellscript/internal/helpers"
	"cellscript/internal/logging"
	"cellscript/internal/script"
	"cellscript/internal/types"

	"go.starlark.net/starlark"
)

var _ helpers.Resolver = (*Workbook)(nil)

// Resolve implements the ref() helper. target is a named range, a cell or a
// range, optionally qualified with a container. A single cell yields its
// value, a single row or column a flat list, anything wider a list of rows.
//
// Cells in the caller's own container at or after the caller are rejected
// with ErrForwardReference: they have not run yet in the current pass.
func (w *Workbook) Resolve(from types.Address, target string) (starlark.Value, error) {
	rng, err := w.rangeFor(from, target)
	if err != nil {
		return nil, err
	}

	rows := rng.Rows()
	if rng.Single() {
		return w.cellValue(from, rng.Start)
	}

	if len(rows) == 1 || len(rows[0]) == 1 {
		var flat []starlark.Value
		for _, row := range rows {
			for _, at := range row {
				v, err := w.cellValue(from, at)
				if err != nil {
					return nil, err
				}
				flat = append(flat, v)
			}
		}
		return starlark.NewList(flat), nil
	}

	out := make([]starlark.Value, len(rows))
	for i, row := range rows {
		line := make([]starlark.Value, len(row))
		for j, at := range row {
			v, err := w.cellValue(from, at)
			if err != nil {
				return nil, err
			}
			line[j] = v
		}
		out[i] = starlark.NewList(line)
	}
	return starlark.NewList(out), nil
}

func (w *Workbook) rangeFor(from types.Address, target string) (types.Range, error) {
	w.mu.RLock()
	ref, named := w.names[target]
	w.mu.RUnlock()
	if !named {
		ref = target
	}

	rng, err := types.ParseRange(ref, from.Container)
	if err != nil {
		if named {
			return types.Range{}, fmt.Errorf("name %s: %w", target, err)
		}
		return types.Range{}, fmt.Errorf("%w: %q", types.ErrUnknownReference, target)
	}
	if rng.Start.Container == "" {
		rng.Start.Container = from.Container
		rng.End.Container = from.Container
	}
	return rng, nil
}

func (w *Workbook) cellValue(from, at types.Address) (starlark.Value, error) {
	if at.Container == from.Container && at.Compare(from) >= 0 {
		return nil, fmt.Errorf("%s reads %s: %w", from.Cell(), at.Cell(), types.ErrForwardReference)
	}

	s, ok := w.Lookup(at.Container)
	if !ok {
		return nil, fmt.Errorf("%w: container %q", types.ErrUnknownReference, at.Container)
	}

	v, err := w.cache.Get(at.Container, at.Cell(), func() (interface{}, error) {
		logging.CacheDebug("loading %s", at)
		if r, ok := s.engine.Result(at); ok {
			return r, nil
		}
		return types.EmptyResult{}, nil
	})
	if err != nil {
		return nil, err
	}
	return script.ValueOfResult(v.(types.Result)), nil
}
