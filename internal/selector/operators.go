package selector

import "math"

// Op is a binary or unary operator.
type Op uint8

// Operators understood by the evaluator.
const (
	OpNone Op = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpAnd
	OpOr
	OpEq
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
)

var opSymbols = [...]string{
	OpNone: "",
	OpAdd:  "+",
	OpSub:  "-",
	OpMul:  "*",
	OpDiv:  "/",
	OpAnd:  "AND",
	OpOr:   "OR",
	OpEq:   "=",
	OpNe:   "<>",
	OpGt:   ">",
	OpGe:   ">=",
	OpLt:   "<",
	OpLe:   "<=",
}

func (o Op) String() string {
	if int(o) < len(opSymbols) {
		return opSymbols[o]
	}
	return "?"
}

// arithmetic applies +, -, * or / to two values. Non-numeric operands give
// NULL and any division by zero gives NaN.
func arithmetic(op Op, l, r Value) Value {
	ln, lok := l.number()
	rn, rok := r.number()
	if !lok || !rok {
		return Null()
	}

	if ln.kind == KindInt && rn.kind == KindInt {
		a, b := ln.i, rn.i
		switch op {
		case OpAdd:
			return Int(a + b)
		case OpSub:
			return Int(a - b)
		case OpMul:
			return Int(a * b)
		case OpDiv:
			if b == 0 {
				return NaN()
			}
			return Int(a / b)
		}
		return Null()
	}

	a, _ := ln.FloatValue()
	b, _ := rn.FloatValue()
	switch op {
	case OpAdd:
		return Float(a + b)
	case OpSub:
		return Float(a - b)
	case OpMul:
		return Float(a * b)
	case OpDiv:
		if b == 0 {
			return NaN()
		}
		return Float(a / b)
	}
	return Null()
}

// negate flips the sign of a numeric value.
func negate(v Value) Value {
	n, ok := v.number()
	if !ok {
		return Null()
	}
	if n.kind == KindInt {
		return Int(-n.i)
	}
	return Float(-n.f)
}

// equal compares by value. Integers and floats compare numerically, and a
// numeric string compares numerically against a number. Values of
// unrelated types are never equal. NaN equals NaN.
func equal(l, r Value) bool {
	switch {
	case l.kind == KindBool && r.kind == KindBool:
		return l.b == r.b
	case l.kind == KindString && r.kind == KindString:
		return l.s == r.s
	case l.IsNumeric() || r.IsNumeric():
		ln, lok := l.number()
		rn, rok := r.number()
		if !lok || !rok {
			return false
		}
		if ln.kind == KindInt && rn.kind == KindInt {
			return ln.i == rn.i
		}
		a, _ := ln.FloatValue()
		b, _ := rn.FloatValue()
		if math.IsNaN(a) || math.IsNaN(b) {
			return math.IsNaN(a) && math.IsNaN(b)
		}
		return a == b
	}
	return false
}

// order returns -1, 0 or 1 and whether the operands are ordered at all.
// Only numbers are ordered; a numeric string takes part when the other
// side is a number. Two strings or two booleans are never ordered.
func order(l, r Value) (int, bool) {
	if !l.IsNumeric() && !r.IsNumeric() {
		return 0, false
	}
	ln, lok := l.number()
	rn, rok := r.number()
	if !lok || !rok {
		return 0, false
	}
	if ln.kind == KindInt && rn.kind == KindInt {
		switch {
		case ln.i < rn.i:
			return -1, true
		case ln.i > rn.i:
			return 1, true
		}
		return 0, true
	}
	a, _ := ln.FloatValue()
	b, _ := rn.FloatValue()
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		return 0, false
	case a < b:
		return -1, true
	case a > b:
		return 1, true
	}
	return 0, true
}

// compare applies a comparison operator. NULL operands give NULL.
func compare(op Op, l, r Value) Value {
	if l.IsNull() || r.IsNull() {
		return Null()
	}
	switch op {
	case OpEq:
		return Bool(equal(l, r))
	case OpNe:
		return Bool(!equal(l, r))
	}

	c, ok := order(l, r)
	if !ok {
		return Bool(false)
	}
	switch op {
	case OpGt:
		return Bool(c > 0)
	case OpGe:
		return Bool(c >= 0)
	case OpLt:
		return Bool(c < 0)
	case OpLe:
		return Bool(c <= 0)
	}
	return Null()
}

// truth maps a value onto three-valued logic: true, false or unknown.
func truth(v Value) (b bool, known bool) {
	if v.kind == KindBool {
		return v.b, true
	}
	return false, false
}

func and(l, r Value) Value {
	lb, lk := truth(l)
	if lk && !lb {
		return Bool(false)
	}
	rb, rk := truth(r)
	if rk && !rb {
		return Bool(false)
	}
	if lk && rk {
		return Bool(true)
	}
	return Null()
}

func or(l, r Value) Value {
	lb, lk := truth(l)
	if lk && lb {
		return Bool(true)
	}
	rb, rk := truth(r)
	if rk && rb {
		return Bool(true)
	}
	if lk && rk {
		return Bool(false)
	}
	return Null()
}

func not(v Value) Value {
	b, known := truth(v)
	if !known {
		return Null()
	}
	return Bool(!b)
}
