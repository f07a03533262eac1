// Package helpers provides the bindings every container namespace is seeded
// with: plot, ref, the value constructors, the math and json modules and
// SHEET.
package helpers

import (
	"cellscript/internal/namespace"
	"cellscript/internal/script"

	starlarkjson "go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
)

// SheetBinding holds the container id.
const SheetBinding = "SHEET"

// Env carries the collaborators the seeded helpers call into. Either may be
// nil; the corresponding helper then fails when called.
type Env struct {
	Resolver Resolver
	Plots    *PlotWriter
}

// Seeder returns the namespace seeder for env. The seed set and its order
// never vary, so two resets of the same container produce equal namespaces.
func Seeder(env Env) namespace.Seeder {
	constructors := script.Constructors()
	return func(ns *namespace.Namespace) {
		ns.Set(namespace.PlotHelper, plotBuiltin(ns, env.Plots))
		ns.Set(namespace.LookupHelper, refBuiltin(ns, env.Resolver))
		for _, name := range []string{"series", "frame", "error"} {
			ns.Set(name, constructors[name])
		}
		ns.Set("math", starlarkmath.Module)
		ns.Set("json", starlarkjson.Module)
		ns.Set(SheetBinding, starlark.String(ns.Container()))
	}
}

// SeedNames lists the seeded bindings in seeding order.
func SeedNames() []string {
	return []string{
		namespace.PlotHelper, namespace.LookupHelper,
		"series", "frame", "error",
		"math", "json", SheetBinding,
	}
}
