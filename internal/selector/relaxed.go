package selector

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const relaxedDelimiters = " \t\r\n{}[]:,;=\"'"

// relaxJSON rewrites the loose object notation accepted by
// PARSER('json') into strict JSON. Keys and string values may be
// unquoted or single quoted, members may be separated by ';' and keys
// may be followed by '=' or '=>'. It reports false when the result is
// still not valid JSON.
func relaxJSON(src []byte) ([]byte, bool) {
	var out bytes.Buffer
	out.Grow(len(src) + 16)
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ';':
			out.WriteByte(',')
			i++
		case c == '=':
			out.WriteByte(':')
			i++
			if i < len(src) && src[i] == '>' {
				i++
			}
		case c == '"' || c == '\'':
			end, ok := closingQuote(src, i)
			if !ok {
				return nil, false
			}
			if c == '"' {
				out.Write(src[i : end+1])
			} else {
				s := strings.ReplaceAll(string(src[i+1:end]), `\'`, `'`)
				out.WriteString(strconv.Quote(s))
			}
			i = end + 1
		case strings.IndexByte(relaxedDelimiters, c) >= 0:
			out.WriteByte(c)
			i++
		default:
			j := i
			for j < len(src) && strings.IndexByte(relaxedDelimiters, src[j]) < 0 {
				j++
			}
			tok := string(src[i:j])
			if gjson.Valid(tok) {
				out.WriteString(tok)
			} else {
				out.WriteString(strconv.Quote(tok))
			}
			i = j
		}
	}
	relaxed := out.Bytes()
	return relaxed, gjson.ValidBytes(relaxed)
}

// closingQuote returns the index of the quote ending the string that
// starts at src[start], skipping escaped characters.
func closingQuote(src []byte, start int) (int, bool) {
	q := src[start]
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case q:
			return i, true
		}
	}
	return 0, false
}
