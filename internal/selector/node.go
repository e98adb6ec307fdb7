package selector

import (
	"strings"

	"github.com/rmacdonaldsmith/meshbroker/pkg/selector"
)

// NodeKind identifies the variant held by a Node.
type NodeKind uint8

// Node variants.
const (
	NodeLiteral NodeKind = iota
	NodeIdentifier
	NodeNegate
	NodeArithmetic
	NodeNot
	NodeLogical
	NodeComparison
	NodeBetween
	NodeIn
	NodeLike
	NodeIsNull
	NodeFunction
)

// Node is one node of a selector expression tree.
//
// Nodes are immutable once built. Compile returns a new tree and never
// modifies the receiver, so a tree may be shared between goroutines.
//
// Operand layout by kind:
//   - NodeNegate, NodeNot, NodeLike, NodeIsNull: [x]
//   - NodeArithmetic, NodeLogical, NodeComparison: [left, right]
//   - NodeBetween: [x, low, high]
//   - NodeIn: [x, item...]
//   - NodeFunction: arguments in call order
type Node struct {
	kind     NodeKind
	op       Op
	value    Value
	name     string
	operands []*Node
	negated  bool
	like     *likePattern
	registry *Registry
}

// Literal returns a constant node.
func Literal(v Value) *Node {
	return &Node{kind: NodeLiteral, value: v}
}

// Identifier returns a node that reads a message property.
func Identifier(name string) *Node {
	return &Node{kind: NodeIdentifier, name: name}
}

// Negate returns unary minus applied to x.
func Negate(x *Node) *Node {
	return &Node{kind: NodeNegate, operands: []*Node{x}}
}

// Arithmetic returns l op r for op in +, -, *, /.
func Arithmetic(op Op, l, r *Node) *Node {
	return &Node{kind: NodeArithmetic, op: op, operands: []*Node{l, r}}
}

// Not returns logical negation of x.
func Not(x *Node) *Node {
	return &Node{kind: NodeNot, operands: []*Node{x}}
}

// And returns l AND r.
func And(l, r *Node) *Node {
	return &Node{kind: NodeLogical, op: OpAnd, operands: []*Node{l, r}}
}

// Or returns l OR r.
func Or(l, r *Node) *Node {
	return &Node{kind: NodeLogical, op: OpOr, operands: []*Node{l, r}}
}

// Compare returns l op r for a comparison operator.
func Compare(op Op, l, r *Node) *Node {
	return &Node{kind: NodeComparison, op: op, operands: []*Node{l, r}}
}

// Between returns x [NOT] BETWEEN low AND high.
func Between(x, low, high *Node, negated bool) *Node {
	return &Node{kind: NodeBetween, operands: []*Node{x, low, high}, negated: negated}
}

// In returns x [NOT] IN (items...).
func In(x *Node, items []*Node, negated bool) *Node {
	ops := make([]*Node, 0, len(items)+1)
	ops = append(ops, x)
	ops = append(ops, items...)
	return &Node{kind: NodeIn, operands: ops, negated: negated}
}

// Like returns x [NOT] LIKE pattern [ESCAPE escape]. A zero escape means
// no escape character.
func Like(x *Node, pattern string, escape rune, negated bool) (*Node, error) {
	p, err := compileLike(pattern, escape)
	if err != nil {
		return nil, err
	}
	return &Node{kind: NodeLike, operands: []*Node{x}, like: p, negated: negated}, nil
}

// IsNull returns x IS [NOT] NULL.
func IsNull(x *Node, negated bool) *Node {
	return &Node{kind: NodeIsNull, operands: []*Node{x}, negated: negated}
}

// Call returns a call to a function registered in registry. The function
// is looked up again on every evaluation.
func Call(registry *Registry, name string, args ...*Node) (*Node, error) {
	name = strings.ToUpper(name)
	if err := registry.validate(name, args); err != nil {
		return nil, err
	}
	return &Node{kind: NodeFunction, name: name, operands: args, registry: registry}, nil
}

// Kind returns the node variant.
func (n *Node) Kind() NodeKind { return n.kind }

// Op returns the operator of arithmetic, logical and comparison nodes.
func (n *Node) Op() Op { return n.op }

// Value returns the constant held by a literal node.
func (n *Node) Value() Value { return n.value }

// Name returns the identifier or function name.
func (n *Node) Name() string { return n.name }

// Negated reports whether a BETWEEN, IN, LIKE or IS NULL node is negated.
func (n *Node) Negated() bool { return n.negated }

// Operands returns a copy of the child nodes.
func (n *Node) Operands() []*Node {
	out := make([]*Node, len(n.operands))
	copy(out, n.operands)
	return out
}

// Evaluate computes the value of the expression for one message.
// A nil resolver resolves every identifier to NULL.
func (n *Node) Evaluate(r selector.IdentifierResolver) Value {
	switch n.kind {
	case NodeLiteral:
		return n.value

	case NodeIdentifier:
		if r == nil {
			return Null()
		}
		v, ok := r.Get(n.name)
		if !ok {
			return Null()
		}
		return ValueOf(v)

	case NodeNegate:
		return negate(n.operands[0].Evaluate(r))

	case NodeArithmetic:
		return arithmetic(n.op, n.operands[0].Evaluate(r), n.operands[1].Evaluate(r))

	case NodeNot:
		return not(n.operands[0].Evaluate(r))

	case NodeLogical:
		l := n.operands[0].Evaluate(r)
		if b, known := truth(l); known {
			if n.op == OpAnd && !b {
				return Bool(false)
			}
			if n.op == OpOr && b {
				return Bool(true)
			}
		}
		rv := n.operands[1].Evaluate(r)
		if n.op == OpAnd {
			return and(l, rv)
		}
		return or(l, rv)

	case NodeComparison:
		return compare(n.op, n.operands[0].Evaluate(r), n.operands[1].Evaluate(r))

	case NodeBetween:
		x := n.operands[0].Evaluate(r)
		res := and(
			compare(OpGe, x, n.operands[1].Evaluate(r)),
			compare(OpLe, x, n.operands[2].Evaluate(r)),
		)
		if n.negated {
			return not(res)
		}
		return res

	case NodeIn:
		x := n.operands[0].Evaluate(r)
		if x.IsNull() {
			return Null()
		}
		found := false
		for _, item := range n.operands[1:] {
			if equal(x, item.Evaluate(r)) {
				found = true
				break
			}
		}
		return Bool(found != n.negated)

	case NodeLike:
		x := n.operands[0].Evaluate(r)
		s, ok := x.text()
		if !ok {
			return Null()
		}
		return Bool(n.like.match(s) != n.negated)

	case NodeIsNull:
		return Bool(n.operands[0].Evaluate(r).IsNull() != n.negated)

	case NodeFunction:
		fn := n.registry.lookup(n.name)
		if fn == nil {
			return Null()
		}
		args := make([]Value, len(n.operands))
		for i, a := range n.operands {
			args[i] = a.Evaluate(r)
		}
		return fn.Call(Invocation{Registry: n.registry, Resolver: r, Args: args})
	}
	return Null()
}

// Compile returns a simplified copy of the tree. A node whose operands
// all fold to literals is itself folded into a literal; a node with any
// non-literal operand keeps its shape. Function calls are never folded
// since their result may depend on the message payload.
func (n *Node) Compile() *Node {
	switch n.kind {
	case NodeLiteral, NodeIdentifier:
		return n
	}

	ops := make([]*Node, len(n.operands))
	constant := true
	for i, o := range n.operands {
		ops[i] = o.Compile()
		if ops[i].kind != NodeLiteral {
			constant = false
		}
	}
	c := *n
	c.operands = ops

	if n.kind == NodeFunction {
		return &c
	}
	if constant {
		return Literal(c.Evaluate(nil))
	}
	return &c
}

// String renders the tree in canonical selector syntax.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	switch n.kind {
	case NodeLiteral:
		b.WriteString(n.value.String())

	case NodeIdentifier:
		b.WriteString(n.name)

	case NodeNegate:
		b.WriteString("-")
		n.operands[0].writeWrapped(b)

	case NodeNot:
		b.WriteString("NOT ")
		n.operands[0].writeWrapped(b)

	case NodeArithmetic, NodeLogical, NodeComparison:
		b.WriteString("(")
		n.operands[0].write(b)
		b.WriteString(" ")
		b.WriteString(n.op.String())
		b.WriteString(" ")
		n.operands[1].write(b)
		b.WriteString(")")

	case NodeBetween:
		b.WriteString("(")
		n.operands[0].write(b)
		b.WriteString(n.notKeyword())
		b.WriteString(" BETWEEN ")
		n.operands[1].write(b)
		b.WriteString(" AND ")
		n.operands[2].write(b)
		b.WriteString(")")

	case NodeIn:
		b.WriteString("(")
		n.operands[0].write(b)
		b.WriteString(n.notKeyword())
		b.WriteString(" IN (")
		for i, item := range n.operands[1:] {
			if i > 0 {
				b.WriteString(", ")
			}
			item.write(b)
		}
		b.WriteString("))")

	case NodeLike:
		b.WriteString("(")
		n.operands[0].write(b)
		b.WriteString(n.notKeyword())
		b.WriteString(" LIKE ")
		b.WriteString(n.like.String())
		b.WriteString(")")

	case NodeIsNull:
		b.WriteString("(")
		n.operands[0].write(b)
		b.WriteString(" IS")
		b.WriteString(n.notKeyword())
		b.WriteString(" NULL)")

	case NodeFunction:
		b.WriteString(n.name)
		b.WriteString("(")
		for i, a := range n.operands {
			if i > 0 {
				b.WriteString(", ")
			}
			a.write(b)
		}
		b.WriteString(")")
	}
}

func (n *Node) writeWrapped(b *strings.Builder) {
	switch n.kind {
	case NodeNegate, NodeNot:
		b.WriteString("(")
		n.write(b)
		b.WriteString(")")
	default:
		n.write(b)
	}
}

func (n *Node) notKeyword() string {
	if n.negated {
		return " NOT"
	}
	return ""
}
