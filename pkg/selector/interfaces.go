package selector

import "fmt"

// IdentifierResolver exposes message properties to a selector.
type IdentifierResolver interface {
	// Get returns the value of the named property and whether it exists.
	// Values are expected to be nil, bool, an integer or float type, string or []byte.
	Get(name string) (any, bool)
}

// PayloadResolver is implemented by resolvers that can also expose the raw
// message body. Parser functions such as PARSER('json', path) use it.
type PayloadResolver interface {
	IdentifierResolver

	// Payload returns the raw message body.
	Payload() []byte
}

// Selector is a compiled selector expression.
//
// A Selector is immutable after compilation and may be evaluated from many
// goroutines at once.
type Selector interface {
	// Evaluate reports whether the expression is TRUE for the given message.
	// UNKNOWN and FALSE both report false.
	Evaluate(resolver IdentifierResolver) bool

	// String returns the canonical form of the compiled expression.
	String() string

	// Hash returns a stable hash of the canonical form. Two selectors with
	// the same canonical form have the same hash.
	Hash() uint64
}

// Compiler turns selector text into a Selector.
type Compiler interface {
	// Compile parses and compiles text. Malformed text returns a *ParseError.
	Compile(text string) (Selector, error)
}

// ParseError describes malformed selector text.
type ParseError struct {
	// Pos is the zero-based byte offset of the offending token.
	Pos int

	// Token is the offending token text, empty at end of input.
	Token string

	// Msg describes what was expected.
	Msg string
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("selector: parse error at position %d: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("selector: parse error at position %d near %q: %s", e.Pos, e.Token, e.Msg)
}

// MapResolver resolves identifiers from a plain map.
type MapResolver map[string]any

// Get implements IdentifierResolver.
func (m MapResolver) Get(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// PayloadMap resolves identifiers from a map and exposes a raw payload.
type PayloadMap struct {
	Properties map[string]any
	Body       []byte
}

// Get implements IdentifierResolver.
func (p PayloadMap) Get(name string) (any, bool) {
	v, ok := p.Properties[name]
	return v, ok
}

// Payload implements PayloadResolver.
func (p PayloadMap) Payload() []byte {
	return p.Body
}

// Compile-time interface checks
var (
	_ IdentifierResolver = MapResolver(nil)
	_ PayloadResolver    = PayloadMap{}
)
