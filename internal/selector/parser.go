package selector

import (
	"github.com/rmacdonaldsmith/meshbroker/pkg/selector"
)

// parser is a recursive descent parser over the token stream.
//
// Grammar, lowest precedence first:
//
//	or         := and { OR and }
//	and        := not { AND not }
//	not        := NOT not | predicate
//	predicate  := additive [ cmp additive
//	                       | [NOT] BETWEEN additive AND additive
//	                       | [NOT] IN '(' additive { ',' additive } ')'
//	                       | [NOT] LIKE string [ESCAPE string]
//	                       | IS [NOT] NULL ]
//	additive   := term { ('+'|'-') term }
//	term       := unary { ('*'|'/') unary }
//	unary      := ('-'|'+') unary | primary
//	primary    := literal | ident [ '(' args ')' ] | '(' or ')'
type parser struct {
	tokens   []token
	pos      int
	registry *Registry
}

// Parse parses selector text into an uncompiled tree.
func Parse(text string, registry *Registry) (*Node, error) {
	tokens, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, registry: registry}
	if t := p.peek(); t.kind == tokEOF {
		return nil, p.errorAt(t, "empty selector")
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorAt(t, "unexpected token")
	}
	return n, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokKeyword && t.upper == kw
}

// isKeywordAt looks ahead without consuming.
func (p *parser) isKeywordAt(offset int, kw string) bool {
	i := p.pos + offset
	if i >= len(p.tokens) {
		return false
	}
	t := p.tokens[i]
	return t.kind == tokKeyword && t.upper == kw
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.isKeyword(kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return p.errorAt(p.peek(), "expected "+kw)
	}
	return nil
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.peek()
	if t.kind != kind {
		return t, p.errorAt(t, "expected "+what)
	}
	return p.next(), nil
}

func (p *parser) errorAt(t token, msg string) error {
	return &selector.ParseError{Pos: t.pos, Token: t.text, Msg: msg}
}

func (p *parser) parseOr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or(left, right)
	}
	return left, nil
}

func (p *parser) parseAnd() (*Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = And(left, right)
	}
	return left, nil
}

func (p *parser) parseNot() (*Node, error) {
	if p.acceptKeyword("NOT") {
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Not(x), nil
	}
	return p.parsePredicate()
}

func (p *parser) parsePredicate() (*Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	t := p.peek()
	if t.kind == tokOp {
		if op, ok := comparisonOps[t.upper]; ok {
			p.next()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return Compare(op, left, right), nil
		}
	}

	negated := false
	if p.isKeyword("NOT") && (p.isKeywordAt(1, "BETWEEN") || p.isKeywordAt(1, "IN") || p.isKeywordAt(1, "LIKE")) {
		p.next()
		negated = true
	}

	switch {
	case p.acceptKeyword("BETWEEN"):
		low, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		high, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return Between(left, low, high, negated), nil

	case p.acceptKeyword("IN"):
		if _, err := p.expect(tokLParen, "'('"); err != nil {
			return nil, err
		}
		var items []*Node
		for {
			item, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if p.peek().kind == tokComma {
				p.next()
				continue
			}
			break
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return In(left, items, negated), nil

	case p.isKeyword("LIKE"):
		likeTok := p.next()
		pat, err := p.expect(tokString, "pattern string")
		if err != nil {
			return nil, err
		}
		pattern, _ := pat.value.StringValue()
		var escape rune
		if p.acceptKeyword("ESCAPE") {
			esc, err := p.expect(tokString, "escape string")
			if err != nil {
				return nil, err
			}
			s, _ := esc.value.StringValue()
			r, ok := escapeRune(s)
			if !ok {
				return nil, p.errorAt(esc, "escape must be a single character")
			}
			escape = r
		}
		n, err := Like(left, pattern, escape, negated)
		if err != nil {
			return nil, p.errorAt(likeTok, err.Error())
		}
		return n, nil

	case p.isKeyword("IS"):
		if negated {
			return nil, p.errorAt(p.peek(), "unexpected IS")
		}
		p.next()
		not := p.acceptKeyword("NOT")
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return IsNull(left, not), nil
	}

	if negated {
		return nil, p.errorAt(p.peek(), "expected BETWEEN, IN or LIKE")
	}
	return left, nil
}

var comparisonOps = map[string]Op{
	"=":  OpEq,
	"<>": OpNe,
	"!=": OpNe,
	">":  OpGt,
	">=": OpGe,
	"<":  OpLt,
	"<=": OpLe,
}

func (p *parser) parseAdditive() (*Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		op := OpAdd
		if t.text == "-" {
			op = OpSub
		}
		left = Arithmetic(op, left, right)
	}
}

func (p *parser) parseTerm() (*Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		op := OpMul
		if t.text == "/" {
			op = OpDiv
		}
		left = Arithmetic(op, left, right)
	}
}

func (p *parser) parseUnary() (*Node, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "-" || t.text == "+") {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if t.text == "-" {
			return Negate(x), nil
		}
		return x, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*Node, error) {
	t := p.next()
	switch t.kind {
	case tokInt, tokFloat, tokString:
		return Literal(t.value), nil

	case tokKeyword:
		switch t.upper {
		case "TRUE":
			return Literal(Bool(true)), nil
		case "FALSE":
			return Literal(Bool(false)), nil
		case "NULL":
			return Literal(Null()), nil
		}
		return nil, p.errorAt(t, "unexpected keyword")

	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		return Identifier(t.text), nil

	case tokLParen:
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return n, nil

	case tokEOF:
		return nil, p.errorAt(t, "unexpected end of selector")
	}
	return nil, p.errorAt(t, "unexpected token")
}

func (p *parser) parseCall(name token) (*Node, error) {
	p.next() // '('
	var args []*Node
	if p.peek().kind != tokRParen {
		for {
			a, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.peek().kind == tokComma {
				p.next()
				continue
			}
			break
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	if p.registry == nil {
		return nil, p.errorAt(name, "functions are not available")
	}
	n, err := Call(p.registry, name.text, args...)
	if err != nil {
		return nil, p.errorAt(name, err.Error())
	}
	return n, nil
}
