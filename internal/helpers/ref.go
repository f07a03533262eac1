package helpers

import (
	"fmt"

	"cellscript/internal/logging"
	"cellscript/internal/namespace"
	"cellscript/internal/script"
	"cellscript/internal/types"

	"go.starlark.net/starlark"
)

// Resolver turns a reference string ("B3", "Sheet2!B3", "A1:C4" or a
// workbook name) into a script value, as seen from the cell at from.
type Resolver interface {
	Resolve(from types.Address, target string) (starlark.Value, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(from types.Address, target string) (starlark.Value, error)

func (f ResolverFunc) Resolve(from types.Address, target string) (starlark.Value, error) {
	return f(from, target)
}

// ref(target)
//
// Lookup failures are returned as error values rather than raised, so a
// fragment that reads a missing cell still completes and classifies as Error.
func refBuiltin(ns *namespace.Namespace, resolver Resolver) *starlark.Builtin {
	return starlark.NewBuiltin(namespace.LookupHelper, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var target string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &target); err != nil {
			return nil, err
		}
		if resolver == nil {
			return nil, fmt.Errorf("%s: lookups are not configured", b.Name())
		}

		from, _ := script.CurrentAddress(thread)
		v, err := resolver.Resolve(from, target)
		if err != nil {
			logging.ScriptDebug("%s: ref(%q) failed: %v", from, target, err)
			v = script.NewCellError(err)
		}
		if v == nil {
			v = starlark.None
		}

		if !script.Evaluating(thread) {
			ns.Set(namespace.LookupBinding, v)
		}
		return v, nil
	})
}
