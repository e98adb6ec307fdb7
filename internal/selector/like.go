package selector

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// likePattern is a compiled LIKE pattern.
type likePattern struct {
	text   string
	escape rune
	re     *regexp.Regexp
}

// compileLike converts a LIKE pattern into an anchored regular expression.
// '%' matches any run of characters, '_' matches exactly one, and the escape
// character makes the following character literal.
func compileLike(pattern string, escape rune) (*likePattern, error) {
	var b strings.Builder
	b.WriteString(`(?s)^`)

	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case escape != 0 && r == escape:
			escaped = true
		case r == '%':
			b.WriteString(`.*`)
		case r == '_':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		return nil, fmt.Errorf("pattern %q ends with escape character", pattern)
	}
	b.WriteString(`$`)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}
	return &likePattern{text: pattern, escape: escape, re: re}, nil
}

func (p *likePattern) match(s string) bool {
	return p.re.MatchString(s)
}

func (p *likePattern) String() string {
	s := String(p.text).String()
	if p.escape != 0 {
		s += " ESCAPE " + String(string(p.escape)).String()
	}
	return s
}

// escapeRune validates an ESCAPE clause, which must be a single character.
func escapeRune(s string) (rune, bool) {
	if utf8.RuneCountInString(s) != 1 {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, true
}
