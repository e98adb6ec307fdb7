package selector

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rmacdonaldsmith/meshbroker/pkg/selector"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokInt
	tokFloat
	tokLParen
	tokRParen
	tokComma
	tokOp
	tokKeyword
)

type token struct {
	kind tokenKind
	text string
	pos  int

	// upper holds the upper-cased text of keywords and operators.
	upper string
	value Value
}

var keywords = map[string]bool{
	"AND":     true,
	"OR":      true,
	"NOT":     true,
	"BETWEEN": true,
	"IN":      true,
	"LIKE":    true,
	"ESCAPE":  true,
	"IS":      true,
	"NULL":    true,
	"TRUE":    true,
	"FALSE":   true,
}

// lex splits selector text into tokens.
func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])
		switch {
		case unicode.IsSpace(r):
			i += size

		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++

		case r == '\'':
			tok, next, err := lexString(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next

		case r >= '0' && r <= '9', r == '.' && i+1 < len(input) && isDigit(input[i+1]):
			tok, next, err := lexNumber(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next

		case isIdentStart(r):
			start := i
			i += size
			for i < len(input) {
				r, size = utf8.DecodeRuneInString(input[i:])
				if !isIdentPart(r) {
					break
				}
				i += size
			}
			text := input[start:i]
			upper := strings.ToUpper(text)
			if keywords[upper] {
				tokens = append(tokens, token{kind: tokKeyword, text: text, upper: upper, pos: start})
			} else {
				tokens = append(tokens, token{kind: tokIdent, text: text, pos: start})
			}

		default:
			op, ok := lexOperator(input[i:])
			if !ok {
				return nil, &selector.ParseError{Pos: i, Token: string(r), Msg: "unexpected character"}
			}
			tokens = append(tokens, token{kind: tokOp, text: op, upper: op, pos: i})
			i += len(op)
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(input)})
	return tokens, nil
}

func lexOperator(s string) (string, bool) {
	for _, op := range []string{"<>", "!=", ">=", "<=", "=", ">", "<", "+", "-", "*", "/"} {
		if strings.HasPrefix(s, op) {
			return op, true
		}
	}
	return "", false
}

// lexString reads a quoted string literal. A doubled quote is a literal quote.
func lexString(input string, start int) (token, int, error) {
	var b strings.Builder
	i := start + 1
	for i < len(input) {
		c := input[i]
		if c == '\'' {
			if i+1 < len(input) && input[i+1] == '\'' {
				b.WriteByte('\'')
				i += 2
				continue
			}
			s := b.String()
			return token{kind: tokString, text: input[start : i+1], pos: start, value: String(s)}, i + 1, nil
		}
		b.WriteByte(c)
		i++
	}
	return token{}, 0, &selector.ParseError{Pos: start, Token: input[start:], Msg: "unterminated string literal"}
}

// lexNumber reads an integer or decimal literal with an optional exponent
// and an optional type suffix (l, f, d).
func lexNumber(input string, start int) (token, int, error) {
	i := start
	isFloat := false
	for i < len(input) && isDigit(input[i]) {
		i++
	}
	if i < len(input) && input[i] == '.' {
		isFloat = true
		i++
		for i < len(input) && isDigit(input[i]) {
			i++
		}
	}
	if i < len(input) && (input[i] == 'e' || input[i] == 'E') {
		j := i + 1
		if j < len(input) && (input[j] == '+' || input[j] == '-') {
			j++
		}
		if j < len(input) && isDigit(input[j]) {
			isFloat = true
			i = j
			for i < len(input) && isDigit(input[i]) {
				i++
			}
		}
	}
	text := input[start:i]
	if i < len(input) {
		switch input[i] {
		case 'l', 'L':
			i++
		case 'f', 'F', 'd', 'D':
			isFloat = true
			i++
		}
	}
	if i < len(input) && isIdentPartByte(input[i]) {
		return token{}, 0, &selector.ParseError{Pos: start, Token: input[start : i+1], Msg: "malformed number"}
	}

	if !isFloat {
		n, err := strconv.ParseInt(text, 10, 64)
		if err == nil {
			return token{kind: tokInt, text: input[start:i], pos: start, value: Int(n)}, i, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, 0, &selector.ParseError{Pos: start, Token: text, Msg: "malformed number"}
	}
	return token{kind: tokFloat, text: input[start:i], pos: start, value: Float(f)}, i, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || r == '.' || unicode.IsDigit(r)
}

func isIdentPartByte(c byte) bool {
	return c == '_' || c == '$' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
