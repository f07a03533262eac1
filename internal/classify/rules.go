package classify

import (
	"fmt"
	"strings"

	"cellscript/internal/namespace"
	"cellscript/internal/script"
	"cellscript/internal/syntax"
	"cellscript/internal/types"

	"go.starlark.net/starlark"
)

// Context is everything a rule may inspect. Rules read the namespace and
// never write to it.
type Context struct {
	Address   types.Address
	Source    string
	Tree      *syntax.Tree
	Namespace *namespace.Namespace
	Host      script.Host
}

// MatchFunc tests one rule. A false match with a nil error passes control to
// the next rule; an error is logged and treated the same way.
type MatchFunc func(ctx *Context) (types.Result, bool, error)

// Rule is a named, stateless classification strategy.
type Rule struct {
	Name  string
	Match MatchFunc
}

// DefaultRules returns the canonical chain in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "empty", Match: matchEmpty},
		{Name: "plot_statement", Match: matchCall(namespace.PlotHelper, syntax.StmtExpression, plotResult)},
		{Name: "plot_assignment", Match: matchCall(namespace.PlotHelper, syntax.StmtAssignment, plotResult)},
		{Name: "lookup_statement", Match: matchCall(namespace.LookupHelper, syntax.StmtExpression, lookupResult)},
		{Name: "lookup_assignment", Match: matchCall(namespace.LookupHelper, syntax.StmtAssignment, lookupResult)},
		{Name: "trailing_expression", Match: matchTrailingExpression},
		{Name: "trailing_assignment", Match: matchTrailingAssignment},
		{Name: "fallback", Match: matchFallback},
	}
}

func matchEmpty(ctx *Context) (types.Result, bool, error) {
	if ctx.Tree != nil {
		if ctx.Tree.Blank() {
			return types.EmptyResult{}, true, nil
		}
		return nil, false, nil
	}
	if cleanSource(ctx.Source) == "" {
		return types.EmptyResult{}, true, nil
	}
	return nil, false, nil
}

// cleanSource drops comments and whitespace. Used when no tree is available.
func cleanSource(src string) string {
	var b strings.Builder
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		b.WriteString(line)
	}
	return b.String()
}

func matchCall(helper string, kind syntax.StatementKind, extract MatchFunc) MatchFunc {
	return func(ctx *Context) (types.Result, bool, error) {
		if ctx.Tree == nil {
			return nil, false, nil
		}
		last := ctx.Tree.Last()
		if last.Kind != kind || !last.IsCallTo(helper) {
			return nil, false, nil
		}
		return extract(ctx)
	}
}

func plotResult(ctx *Context) (types.Result, bool, error) {
	v, ok := ctx.Namespace.Get(namespace.PlotBinding)
	if !ok || v == starlark.None {
		return types.ErrorResult{Cause: errNoArtifact}, true, nil
	}
	path, ok := starlark.AsString(v)
	if !ok {
		return nil, false, fmt.Errorf("%s holds %s, want string", namespace.PlotBinding, v.Type())
	}
	return types.PlotResult{Path: path}, true, nil
}

func lookupResult(ctx *Context) (types.Result, bool, error) {
	v, ok := ctx.Namespace.Get(namespace.LookupBinding)
	if !ok {
		return types.ErrorResult{Cause: errNoLookup}, true, nil
	}
	r, matched := Value(v)
	return r, matched, nil
}

func matchTrailingExpression(ctx *Context) (types.Result, bool, error) {
	if ctx.Tree == nil || ctx.Host == nil {
		return nil, false, nil
	}
	last := ctx.Tree.Last()
	if last.Kind != syntax.StmtExpression {
		return nil, false, nil
	}
	v, err := ctx.Host.Eval(ctx.Address, last.Expr, ctx.Namespace)
	if err != nil {
		return nil, false, err
	}
	r, matched := Value(v)
	return r, matched, nil
}

func matchTrailingAssignment(ctx *Context) (types.Result, bool, error) {
	if ctx.Tree == nil {
		return nil, false, nil
	}
	last := ctx.Tree.Last()
	if last.Kind != syntax.StmtAssignment || last.Target == "" {
		return nil, false, nil
	}
	v, ok := ctx.Namespace.Get(last.Target)
	if !ok {
		return nil, false, nil
	}
	r, matched := Value(v)
	return r, matched, nil
}

// matchFallback always matches.
func matchFallback(ctx *Context) (types.Result, bool, error) {
	ns := ctx.Namespace
	_, v, ok := ns.LastBinding(func(name string, v starlark.Value) bool {
		if ns.IsSeeded(name) || strings.HasPrefix(name, "__") {
			return false
		}
		_, callable := v.(starlark.Callable)
		return !callable
	})
	if !ok {
		return types.EmptyResult{}, true, nil
	}
	if r, matched := Value(v); matched {
		return r, true, nil
	}
	return types.EmptyResult{}, true, nil
}
