// Package syntax parses cell fragments with tree-sitter's Python grammar and
// reduces the result to what classification needs: whether the fragment is
// blank and the shape of its last top-level statement.
//
// Fragments are Starlark, which parses as a subset of Python. Parse errors
// never fail the parse; the affected statement is reported as StmtOther.
package syntax

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cellscript/internal/logging"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// StatementKind classifies the last top-level statement.
type StatementKind int

const (
	StmtNone       StatementKind = iota // no statements
	StmtExpression                      // bare expression
	StmtAssignment                      // simple, annotated or augmented assignment
	StmtOther                           // anything else, including parse errors
)

func (k StatementKind) String() string {
	switch k {
	case StmtNone:
		return "none"
	case StmtExpression:
		return "expression"
	case StmtAssignment:
		return "assignment"
	default:
		return "other"
	}
}

// Statement describes one top-level statement.
type Statement struct {
	Kind StatementKind

	// Text is the full statement source.
	Text string

	// Expr is the bare expression, or the right-hand side of an assignment.
	Expr string

	// Call is the callee name when Expr is a direct call to a plain name.
	Call string

	// Target is the last name bound by an assignment.
	Target string

	Augmented bool
	Annotated bool
}

// IsCallTo reports whether the statement's expression calls name directly.
func (s Statement) IsCallTo(name string) bool {
	return s.Call != "" && s.Call == name
}

// Tree is the reduced parse of one fragment.
type Tree struct {
	statements []Statement
	hasError   bool
}

// Blank reports whether the fragment holds nothing but comments and whitespace.
func (t *Tree) Blank() bool { return len(t.statements) == 0 }

// HasError reports whether tree-sitter had to recover from a syntax error.
func (t *Tree) HasError() bool { return t.hasError }

// Statements returns every top-level statement in order.
func (t *Tree) Statements() []Statement { return t.statements }

// Last returns the last top-level statement, or a StmtNone statement.
func (t *Tree) Last() Statement {
	if len(t.statements) == 0 {
		return Statement{Kind: StmtNone}
	}
	return t.statements[len(t.statements)-1]
}

// Parser wraps a tree-sitter parser. It is safe for concurrent use.
type Parser struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

// NewParser creates a parser for the Python grammar.
func NewParser() *Parser {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	return &Parser{parser: parser}
}

// Parse reduces src to a Tree.
func (p *Parser) Parse(src string) (*Tree, error) {
	content := []byte(src)

	p.mu.Lock()
	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	p.mu.Unlock()
	if err != nil {
		logging.Get(logging.CategoryClassify).Error("syntax: parse failed: %v", err)
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	out := &Tree{hasError: root.HasError()}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		out.statements = append(out.statements, reduce(child, content))
	}
	return out, nil
}

func reduce(node *sitter.Node, content []byte) Statement {
	text := strings.TrimSpace(node.Content(content))
	stmt := Statement{Kind: StmtOther, Text: text}

	if node.Type() != "expression_statement" || node.HasError() {
		return stmt
	}

	var exprs []*sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "comment" {
			exprs = append(exprs, child)
		}
	}
	if len(exprs) == 0 {
		return stmt
	}

	first := exprs[0]
	switch first.Type() {
	case "assignment":
		stmt.Kind = StmtAssignment
		assign := innermostAssignment(first)
		stmt.Annotated = assign.ChildByFieldName("type") != nil
		stmt.Target = lastIdentifier(assign.ChildByFieldName("left"), content)
		if right := assign.ChildByFieldName("right"); right != nil {
			stmt.Expr = right.Content(content)
			stmt.Call = callee(right, content)
		}
	case "augmented_assignment":
		stmt.Kind = StmtAssignment
		stmt.Augmented = true
		stmt.Target = lastIdentifier(first.ChildByFieldName("left"), content)
		if right := first.ChildByFieldName("right"); right != nil {
			stmt.Expr = right.Content(content)
			stmt.Call = callee(right, content)
		}
	case "yield":
		return stmt
	default:
		stmt.Kind = StmtExpression
		stmt.Expr = text
		if len(exprs) == 1 {
			stmt.Call = callee(first, content)
		}
	}
	return stmt
}

// innermostAssignment follows chained assignments (a = b = 1) to the one
// holding the value.
func innermostAssignment(node *sitter.Node) *sitter.Node {
	for {
		right := node.ChildByFieldName("right")
		if right == nil || right.Type() != "assignment" {
			return node
		}
		node = right
	}
}

// lastIdentifier returns the rightmost plain name in a target list.
func lastIdentifier(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	switch node.Type() {
	case "identifier":
		return node.Content(content)
	case "pattern_list", "tuple_pattern", "list_pattern", "expression_list", "tuple", "list":
		for i := int(node.NamedChildCount()) - 1; i >= 0; i-- {
			if name := lastIdentifier(node.NamedChild(i), content); name != "" {
				return name
			}
		}
	case "parenthesized_expression":
		if node.NamedChildCount() > 0 {
			return lastIdentifier(node.NamedChild(0), content)
		}
	}
	return ""
}

// callee returns the called name when node is a call to a plain identifier.
func callee(node *sitter.Node, content []byte) string {
	if node == nil || node.Type() != "call" {
		return ""
	}
	fn := node.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" {
		return ""
	}
	return fn.Content(content)
}

type splice struct {
	start, end uint32
	text       string
}

// StripAnnotations rewrites variable annotations out of src so a Starlark
// parser accepts it: "x: T = v" becomes "x = v" and a bare "x: T" becomes
// "pass". Everything else is returned byte for byte.
func (p *Parser) StripAnnotations(src string) (string, error) {
	content := []byte(src)

	p.mu.Lock()
	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	p.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("failed to parse fragment: %w", err)
	}
	defer tree.Close()

	var splices []splice
	collectAnnotations(tree.RootNode(), &splices)
	if len(splices) == 0 {
		return src, nil
	}

	// splices are collected in document order and never overlap
	var b strings.Builder
	b.Grow(len(content))
	prev := uint32(0)
	for _, s := range splices {
		b.Write(content[prev:s.start])
		b.WriteString(s.text)
		prev = s.end
	}
	b.Write(content[prev:])
	return b.String(), nil
}

func collectAnnotations(node *sitter.Node, out *[]splice) {
	if node.Type() == "assignment" && !node.HasError() {
		if typ := node.ChildByFieldName("type"); typ != nil {
			left := node.ChildByFieldName("left")
			right := node.ChildByFieldName("right")
			if right == nil {
				span := node
				if parent := node.Parent(); parent != nil && parent.Type() == "expression_statement" {
					span = parent
				}
				*out = append(*out, splice{start: span.StartByte(), end: span.EndByte(), text: "pass"})
				return
			}
			if left != nil {
				*out = append(*out, splice{start: left.EndByte(), end: typ.EndByte()})
			}
			collectAnnotations(right, out)
			return
		}
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		collectAnnotations(node.NamedChild(i), out)
	}
}
