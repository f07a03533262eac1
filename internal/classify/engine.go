// Package classify turns a fragment's post-execution state into a typed
// Result by running a fixed chain of stateless rules.
package classify

import (
	"fmt"

	"cellscript/internal/logging"
	"cellscript/internal/namespace"
	"cellscript/internal/script"
	"cellscript/internal/syntax"
	"cellscript/internal/types"
)

// Engine runs a rule chain. It holds no per-call state, so one Engine may
// serve every container.
type Engine struct {
	rules  []Rule
	host   script.Host
	parser *syntax.Parser
}

// New creates an engine with the default rule chain.
func New(host script.Host, parser *syntax.Parser) *Engine {
	return NewWithRules(host, parser, DefaultRules())
}

// NewWithRules creates an engine with a custom chain. The chain should end
// with a rule that always matches; Classify returns Empty otherwise.
func NewWithRules(host script.Host, parser *syntax.Parser, rules []Rule) *Engine {
	return &Engine{rules: rules, host: host, parser: parser}
}

// RuleNames returns the chain in priority order.
func (e *Engine) RuleNames() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

// Classify parses source and classifies it against ns.
func (e *Engine) Classify(at types.Address, source string, ns *namespace.Namespace) types.Result {
	var tree *syntax.Tree
	if e.parser != nil {
		t, err := e.parser.Parse(source)
		if err != nil {
			logging.ClassifyWarn("%s: no syntax tree, classifying from source only: %v", at, err)
		} else {
			tree = t
		}
	}
	return e.ClassifyTree(at, source, tree, ns)
}

// ClassifyTree classifies with an already parsed tree. The first matching
// rule wins; rules that fail or panic count as non-matching.
func (e *Engine) ClassifyTree(at types.Address, source string, tree *syntax.Tree, ns *namespace.Namespace) types.Result {
	ctx := &Context{Address: at, Source: source, Tree: tree, Namespace: ns, Host: e.host}

	for _, rule := range e.rules {
		result, matched, err := e.try(rule, ctx)
		if err != nil {
			failure := &types.ClassificationFailure{Rule: rule.Name, Err: err}
			logging.ClassifyWarn("%s: %v", at, failure)
			continue
		}
		if matched {
			logging.ClassifyDebug("%s: rule %s -> %s", at, rule.Name, result.Kind())
			return result
		}
	}
	return types.EmptyResult{}
}

func (e *Engine) try(rule Rule, ctx *Context) (result types.Result, matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, matched, err = nil, false, fmt.Errorf("panic: %v", r)
		}
	}()
	result, matched, err = rule.Match(ctx)
	if matched && result == nil {
		return nil, false, fmt.Errorf("matched without a result")
	}
	return result, matched, err
}
