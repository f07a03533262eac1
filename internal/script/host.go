// Package script is the execution capability behind the engine: it runs a
// cell fragment against a namespace and evaluates standalone expressions.
// The Starlark host is the only implementation; the interface exists so a
// sandboxed interpreter can replace it.
package script

import (
	"fmt"
	"strings"

	"cellscript/internal/logging"
	"cellscript/internal/namespace"
	cellsyntax "cellscript/internal/syntax"
	"cellscript/internal/types"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Host executes fragments against a namespace.
type Host interface {
	// Exec runs src with ns as its globals. Bindings made before a failure
	// stay in ns.
	Exec(at types.Address, src string, ns *namespace.Namespace) error

	// Eval evaluates one expression against ns without modifying it.
	Eval(at types.Address, expr string, ns *namespace.Namespace) (starlark.Value, error)
}

// Options configures the Starlark host.
type Options struct {
	// MaxExecutionSteps bounds each Exec/Eval call (0 = unlimited).
	MaxExecutionSteps uint64
	AllowRecursion    bool
}

// Thread-local keys read by helper builtins.
const (
	addressKey = "cellscript.address"
	evalKey    = "cellscript.eval"
)

// StarlarkHost runs fragments with go.starlark.net.
type StarlarkHost struct {
	opts     Options
	fileOpts *syntax.FileOptions
	// annotations strips Python variable annotations, which Starlark rejects.
	annotations *cellsyntax.Parser
}

var _ Host = (*StarlarkHost)(nil)

// NewStarlarkHost creates a host. Top-level control flow, global
// reassignment, while loops and sets are always enabled.
func NewStarlarkHost(opts Options) *StarlarkHost {
	return &StarlarkHost{
		opts: opts,
		fileOpts: &syntax.FileOptions{
			Set:             true,
			While:           true,
			TopLevelControl: true,
			GlobalReassign:  true,
			Recursion:       opts.AllowRecursion,
		},
		annotations: cellsyntax.NewParser(),
	}
}

func (h *StarlarkHost) thread(at types.Address, eval bool) *starlark.Thread {
	thread := &starlark.Thread{
		Name: at.String(),
		Print: func(_ *starlark.Thread, msg string) {
			logging.Script("%s: %s", at, msg)
		},
	}
	if h.opts.MaxExecutionSteps > 0 {
		thread.SetMaxExecutionSteps(h.opts.MaxExecutionSteps)
	}
	thread.SetLocal(addressKey, at)
	thread.SetLocal(evalKey, eval)
	return thread
}

// Exec parses and runs src. Parse and resolve errors leave ns untouched.
func (h *StarlarkHost) Exec(at types.Address, src string, ns *namespace.Namespace) error {
	if strings.Contains(src, ":") {
		stripped, err := h.annotations.StripAnnotations(src)
		if err != nil {
			return fmt.Errorf("syntax error: %w", err)
		}
		src = stripped
	}

	f, err := h.fileOpts.Parse(at.String(), src, 0)
	if err != nil {
		logging.ScriptDebug("%s: parse failed: %v", at, err)
		return fmt.Errorf("syntax error: %w", err)
	}

	thread := h.thread(at, false)
	err = starlark.ExecREPLChunk(f, thread, ns.Dict())
	ns.Sync(boundGlobals(f))

	if err != nil {
		if evalErr, ok := err.(*starlark.EvalError); ok {
			logging.ScriptDebug("%s: execution failed:\n%s", at, evalErr.Backtrace())
		} else {
			logging.ScriptDebug("%s: execution failed: %v", at, err)
		}
		return err
	}
	return nil
}

// Eval evaluates expr with the namespace bindings as its environment.
func (h *StarlarkHost) Eval(at types.Address, expr string, ns *namespace.Namespace) (starlark.Value, error) {
	thread := h.thread(at, true)
	v, err := starlark.EvalOptions(h.fileOpts, thread, at.String(), expr, ns.Dict())
	if err != nil {
		return nil, err
	}
	return v, nil
}

// boundGlobals lists the globals a resolved chunk refers to, in order of
// first appearance.
func boundGlobals(f *syntax.File) []string {
	module, ok := f.Module.(*resolve.Module)
	if !ok || module == nil {
		return nil
	}
	names := make([]string, 0, len(module.Globals))
	for _, b := range module.Globals {
		names = append(names, b.First.Name)
	}
	return names
}

// CurrentAddress returns the address of the fragment running on thread.
func CurrentAddress(thread *starlark.Thread) (types.Address, bool) {
	at, ok := thread.Local(addressKey).(types.Address)
	return at, ok
}

// Evaluating reports whether thread belongs to a side-effect-free Eval.
// Helpers skip writing their well-known bindings when it does.
func Evaluating(thread *starlark.Thread) bool {
	eval, _ := thread.Local(evalKey).(bool)
	return eval
}
