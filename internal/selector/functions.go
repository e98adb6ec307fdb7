package selector

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/rmacdonaldsmith/meshbroker/pkg/selector"
)

var (
	// ErrUnknownFunction is returned when a selector calls an unregistered function.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrArity is returned when a function is called with the wrong number of arguments.
	ErrArity = errors.New("wrong number of arguments")

	// ErrUnknownParser is returned when PARSER names a parser that is not registered.
	ErrUnknownParser = errors.New("unknown parser")
)

// Invocation carries one function call.
type Invocation struct {
	// Registry is the registry the calling selector was compiled against.
	Registry *Registry

	// Resolver is the message being evaluated. It may be nil.
	Resolver selector.IdentifierResolver

	// Args holds the evaluated arguments.
	Args []Value
}

// Function computes a value for one invocation.
type Function func(inv Invocation) Value

// FunctionDef describes a named function callable from selector text.
type FunctionDef struct {
	// Name is matched case-insensitively.
	Name string

	// MinArgs and MaxArgs bound the argument count. MaxArgs < 0 means unbounded.
	MinArgs int
	MaxArgs int

	// Validate optionally checks the unevaluated arguments when the
	// selector is compiled.
	Validate func(r *Registry, args []*Node) error

	// Call evaluates the function.
	Call Function
}

// PayloadParser extracts the value at path from a raw message payload.
// It reports false when the path does not exist.
type PayloadParser func(payload []byte, path string) (any, bool)

// Registry holds the functions and payload parsers available to selectors.
// It is safe for concurrent use; registrations made after a selector is
// compiled are visible to it on its next evaluation.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]*FunctionDef
	parsers   map[string]PayloadParser
}

// NewRegistry returns a registry with the built-in functions UPPER, LOWER,
// LENGTH, ABS and PARSER, and the "json" payload parser.
func NewRegistry() *Registry {
	r := &Registry{
		functions: make(map[string]*FunctionDef),
		parsers:   make(map[string]PayloadParser),
	}
	for _, def := range builtins() {
		_ = r.Register(def)
	}
	r.RegisterParser("json", parseJSON)
	return r
}

// Register adds or replaces a function.
func (r *Registry) Register(def FunctionDef) error {
	if def.Name == "" {
		return errors.New("function name cannot be empty")
	}
	if def.Call == nil {
		return fmt.Errorf("function %s: Call cannot be nil", def.Name)
	}
	name := strings.ToUpper(def.Name)
	def.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	r.functions[name] = &def
	return nil
}

// Unregister removes a function. Compiled selectors that call it
// evaluate the call as NULL from then on.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.functions, strings.ToUpper(name))
}

// RegisterParser adds or replaces a payload parser used by PARSER.
func (r *Registry) RegisterParser(name string, p PayloadParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[strings.ToLower(name)] = p
}

// Functions returns the registered function names in sorted order.
func (r *Registry) Functions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for n := range r.functions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(name string) *FunctionDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.functions[name]
}

func (r *Registry) parser(name string) PayloadParser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parsers[strings.ToLower(name)]
}

func (r *Registry) validate(name string, args []*Node) error {
	def := r.lookup(name)
	if def == nil {
		return fmt.Errorf("%w %s", ErrUnknownFunction, name)
	}
	if len(args) < def.MinArgs || (def.MaxArgs >= 0 && len(args) > def.MaxArgs) {
		return fmt.Errorf("%s: %w (got %d)", name, ErrArity, len(args))
	}
	if def.Validate != nil {
		return def.Validate(r, args)
	}
	return nil
}

func builtins() []FunctionDef {
	return []FunctionDef{
		{Name: "UPPER", MinArgs: 1, MaxArgs: 1, Call: stringFunc(strings.ToUpper)},
		{Name: "LOWER", MinArgs: 1, MaxArgs: 1, Call: stringFunc(strings.ToLower)},
		{Name: "LENGTH", MinArgs: 1, MaxArgs: 1, Call: func(inv Invocation) Value {
			s, ok := inv.Args[0].text()
			if !ok {
				return Null()
			}
			return Int(int64(utf8.RuneCountInString(s)))
		}},
		{Name: "ABS", MinArgs: 1, MaxArgs: 1, Call: func(inv Invocation) Value {
			n, ok := inv.Args[0].number()
			if !ok {
				return Null()
			}
			if n.kind == KindInt {
				if n.i < 0 {
					return Int(-n.i)
				}
				return n
			}
			return Float(math.Abs(n.f))
		}},
		{Name: "PARSER", MinArgs: 2, MaxArgs: 2, Validate: validateParser, Call: callParser},
	}
}

func stringFunc(f func(string) string) Function {
	return func(inv Invocation) Value {
		s, ok := inv.Args[0].StringValue()
		if !ok {
			return Null()
		}
		return String(f(s))
	}
}

// validateParser checks PARSER(format, path) when the format is a literal.
// An identifier format is resolved per message instead.
func validateParser(r *Registry, args []*Node) error {
	format := args[0]
	switch format.kind {
	case NodeLiteral:
		name, ok := format.value.StringValue()
		if !ok {
			return errors.New("PARSER: format must be a string or an identifier")
		}
		if r.parser(name) == nil {
			return fmt.Errorf("PARSER: %w %q", ErrUnknownParser, name)
		}
	case NodeIdentifier:
	default:
		return errors.New("PARSER: format must be a string or an identifier")
	}
	return nil
}

// callParser evaluates PARSER(format, path). The format is read from the
// first argument on every call, so an identifier format may select a
// different parser per message.
func callParser(inv Invocation) Value {
	format, ok := inv.Args[0].StringValue()
	if !ok {
		return Null()
	}
	path, ok := inv.Args[1].StringValue()
	if !ok {
		return Null()
	}
	p := inv.Registry.parser(format)
	if p == nil {
		return Null()
	}
	pr, ok := inv.Resolver.(selector.PayloadResolver)
	if !ok {
		return Null()
	}
	v, found := p(pr.Payload(), path)
	if !found {
		return Null()
	}
	return ValueOf(v)
}

func parseJSON(payload []byte, path string) (any, bool) {
	if len(payload) == 0 {
		return nil, false
	}
	if !gjson.ValidBytes(payload) {
		relaxed, ok := relaxJSON(payload)
		if !ok {
			return nil, false
		}
		payload = relaxed
	}
	res := gjson.GetBytes(payload, path)
	if !res.Exists() {
		return nil, false
	}
	switch res.Type {
	case gjson.Null:
		return nil, true
	case gjson.False, gjson.True:
		return res.Bool(), true
	case gjson.Number:
		if !strings.ContainsAny(res.Raw, ".eE") {
			return res.Int(), true
		}
		return res.Float(), true
	case gjson.String:
		return res.Str, true
	default:
		return res.Raw, true
	}
}
