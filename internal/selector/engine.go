// Package selector implements the message selector language: a lexer,
// a recursive descent parser, constant folding and a three-valued
// evaluator over a closed set of expression nodes.
package selector

import (
	"hash/fnv"
	"strings"

	"github.com/rmacdonaldsmith/meshbroker/pkg/selector"
)

// Engine compiles selector text against a function registry.
type Engine struct {
	registry *Registry
}

// NewEngine creates an engine. A nil registry gets the built-in functions.
func NewEngine(registry *Registry) *Engine {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Engine{registry: registry}
}

// Registry returns the registry used for function calls.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Compile implements selector.Compiler.
func (e *Engine) Compile(text string) (selector.Selector, error) {
	x, err := e.CompileExpression(text)
	if err != nil {
		return nil, err
	}
	return x, nil
}

// CompileExpression parses and folds text, returning the concrete type.
func (e *Engine) CompileExpression(text string) (*Expression, error) {
	root, err := Parse(text, e.registry)
	if err != nil {
		return nil, err
	}
	root = root.Compile()

	canonical := root.String()
	h := fnv.New64a()
	_, _ = h.Write([]byte(canonical))

	return &Expression{
		text:      strings.TrimSpace(text),
		root:      root,
		canonical: canonical,
		hash:      h.Sum64(),
	}, nil
}

// Expression is a compiled selector.
type Expression struct {
	text      string
	root      *Node
	canonical string
	hash      uint64
}

// Evaluate implements selector.Selector.
func (x *Expression) Evaluate(r selector.IdentifierResolver) bool {
	return x.root.Evaluate(r).IsTrue()
}

// Value evaluates the expression and returns the raw three-valued result.
func (x *Expression) Value(r selector.IdentifierResolver) Value {
	return x.root.Evaluate(r)
}

// String implements selector.Selector.
func (x *Expression) String() string { return x.canonical }

// Hash implements selector.Selector.
func (x *Expression) Hash() uint64 { return x.hash }

// Text returns the selector text as it was given, trimmed.
func (x *Expression) Text() string { return x.text }

// Root returns the folded expression tree.
func (x *Expression) Root() *Node { return x.root }

// Compile-time interface checks
var (
	_ selector.Compiler = (*Engine)(nil)
	_ selector.Selector = (*Expression)(nil)
)
