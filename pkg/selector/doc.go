// Package selector provides the contracts for message selectors.
//
// A selector is a SQL-92 style boolean expression evaluated against the
// properties of a message, for example:
//
//	region = 'eu' AND priority BETWEEN 4 AND 9
//	symbol LIKE 'IB_%' ESCAPE '\'
//	PARSER('json', 'order.total') > 100.0
//
// This package defines:
//   - IdentifierResolver: how a selector reads message properties
//   - PayloadResolver: optional raw payload access for parser functions
//   - Selector: a compiled, immutable, concurrency-safe expression
//   - Compiler: turns selector text into a Selector
//   - ParseError: the error returned for malformed selector text
//
// Evaluation uses three-valued logic. A missing property is NULL, any
// comparison involving NULL is unknown, and a selector only matches when
// the whole expression evaluates to TRUE.
//
// Example usage:
//
//	sel, err := compiler.Compile("color = 'red' OR weight > 2.5")
//	if err != nil {
//		return err
//	}
//
//	if sel.Evaluate(selector.MapResolver{"color": "red"}) {
//		deliver(msg)
//	}
package selector
