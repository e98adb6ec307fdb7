package selector

import (
	"testing"
)

func TestNode_NumericEquality(t *testing.T) {
	eq := Compare(OpEq, Literal(Int(2)), Literal(Float(2.0)))
	if got := eq.Evaluate(nil); !got.IsTrue() {
		t.Errorf("2 = 2.0: expected TRUE, got %v", got)
	}

	ne := Compare(OpNe, Literal(Int(2)), Literal(Int(2)))
	if got := ne.Evaluate(nil); got.IsTrue() || got.IsNull() {
		t.Errorf("2 <> 2: expected FALSE, got %v", got)
	}

	gt := Compare(OpGt, Literal(String("2")), Literal(String("3")))
	if got := gt.Evaluate(nil); got.IsTrue() || got.IsNull() {
		t.Errorf("'2' > '3': expected FALSE, got %v", got)
	}
}

func TestNode_DivideByZero(t *testing.T) {
	for _, n := range []*Node{
		Arithmetic(OpDiv, Literal(Int(1)), Literal(Int(0))),
		Arithmetic(OpDiv, Literal(Float(1.5)), Literal(Int(0))),
		Arithmetic(OpDiv, Literal(Int(1)), Literal(Float(0))),
	} {
		if got := n.Evaluate(nil); !got.IsNaN() {
			t.Errorf("%s: expected NaN, got %v", n, got)
		}
	}
}

func TestNode_CompileFolding(t *testing.T) {
	// A non-literal operand keeps the node intact
	partial := And(Literal(Bool(true)), Identifier("flag"))
	compiled := partial.Compile()
	if compiled.Kind() != NodeLogical {
		t.Fatalf("TRUE AND flag: expected logical node, got kind %d", compiled.Kind())
	}
	if ops := compiled.Operands(); ops[1].Kind() != NodeIdentifier {
		t.Errorf("expected identifier operand to survive, got kind %d", ops[1].Kind())
	}

	// All-literal operands collapse
	full := And(Literal(Bool(true)), Literal(Bool(false))).Compile()
	if full.Kind() != NodeLiteral {
		t.Fatalf("TRUE AND FALSE: expected literal, got kind %d", full.Kind())
	}
	if b, ok := full.Value().BoolValue(); !ok || b {
		t.Errorf("TRUE AND FALSE: expected FALSE, got %v", full.Value())
	}

	// Folding is recursive
	nested := Compare(OpGt, Identifier("x"), Arithmetic(OpMul, Literal(Int(2)), Literal(Int(10)))).Compile()
	if got := nested.String(); got != "(x > 20)" {
		t.Errorf("expected (x > 20), got %s", got)
	}
}

func TestNode_CompileDoesNotMutate(t *testing.T) {
	arith := Arithmetic(OpAdd, Literal(Int(1)), Literal(Int(2)))
	root := Compare(OpEq, Identifier("x"), arith)

	before := root.String()
	_ = root.Compile()

	if after := root.String(); after != before {
		t.Errorf("Compile changed the receiver: %s became %s", before, after)
	}
	if root.Operands()[1].Kind() != NodeArithmetic {
		t.Error("original arithmetic operand should remain an arithmetic node")
	}
}

func TestNode_ThreeValuedLogic(t *testing.T) {
	null := Literal(Null())
	tru := Literal(Bool(true))
	fal := Literal(Bool(false))

	tests := []struct {
		name string
		node *Node
		want Value
	}{
		{"null AND true", And(null, tru), Null()},
		{"null AND false", And(null, fal), Bool(false)},
		{"false AND null", And(fal, null), Bool(false)},
		{"null OR true", Or(null, tru), Bool(true)},
		{"null OR false", Or(null, fal), Null()},
		{"NOT null", Not(null), Null()},
		{"null = 1", Compare(OpEq, null, Literal(Int(1))), Null()},
		{"null IS NULL", IsNull(null, false), Bool(true)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.node.Evaluate(nil)
			if got.Kind() != tt.want.Kind() || got.Interface() != tt.want.Interface() {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNode_LikePatternErrors(t *testing.T) {
	if _, err := Like(Identifier("a"), `abc\`, '\\', false); err == nil {
		t.Error("expected error for pattern ending in escape character")
	}
	n, err := Like(Identifier("a"), `100\%`, '\\', false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !n.Evaluate(mapResolver{"a": "100%"}).IsTrue() {
		t.Error("expected escaped percent to match literally")
	}
	if n.Evaluate(mapResolver{"a": "1000"}).IsTrue() {
		t.Error("escaped percent should not act as a wildcard")
	}
}

type mapResolver map[string]any

func (m mapResolver) Get(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}
