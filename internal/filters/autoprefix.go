package filters

import (
	"bytes"
	"context"
	"strings"
)

// prefixedProperties lists the properties that still need vendor-prefixed
// twins for the last two versions of the major browsers.
var prefixedProperties = map[string][]string{
	"appearance":           {"-webkit-", "-moz-"},
	"backdrop-filter":      {"-webkit-"},
	"box-decoration-break": {"-webkit-"},
	"hyphens":              {"-webkit-", "-ms-"},
	"mask":                 {"-webkit-"},
	"mask-image":           {"-webkit-"},
	"mask-size":            {"-webkit-"},
	"tab-size":             {"-moz-"},
	"text-size-adjust":     {"-webkit-", "-moz-", "-ms-"},
	"user-select":          {"-webkit-", "-moz-", "-ms-"},
}

// prefixedValues lists property/value pairs whose value needs a prefix.
var prefixedValues = map[string]map[string][]string{
	"position": {"sticky": {"-webkit-"}},
}

func newAutoprefix(Options) (Filter, error) {
	return Func{
		FilterName: "autoprefix",
		Fn: func(_ context.Context, f *File) ([]*File, error) {
			f.Contents = Autoprefix(f.Contents)
			return []*File{f}, nil
		},
	}, nil
}

// Autoprefix inserts vendor-prefixed declarations in front of the
// declarations listed in prefixedProperties and prefixedValues. The scan
// skips comments and string literals, and a value runs to the first ";" or
// "}" outside parentheses and quotes, so url(data:...;base64,...) stays
// whole. Matches followed by a "{" are selectors and are left alone.
func Autoprefix(css []byte) []byte {
	var out bytes.Buffer
	last, changed := 0, false
	declStart := true
	depth := 0
	for i := 0; i < len(css); {
		c := css[i]
		switch {
		case c == '"' || c == '\'':
			i = skipString(css, i)
			declStart = false
			continue
		case c == '/' && i+1 < len(css) && css[i+1] == '*':
			i = skipComment(css, i)
			continue
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0 && (c == '{' || c == ';' || c == '}'):
			declStart = true
			i++
			continue
		case isSpace(c):
			i++
			continue
		}

		if !declStart || depth > 0 || !isIdentByte(c) {
			declStart = false
			i++
			continue
		}
		declStart = false

		nameEnd := i
		for nameEnd < len(css) && isIdentByte(css[nameEnd]) {
			nameEnd++
		}
		colon := nameEnd
		for colon < len(css) && isSpace(css[colon]) {
			colon++
		}
		if colon >= len(css) || css[colon] != ':' {
			i = nameEnd
			continue
		}
		end, term := scanValue(css, colon+1)
		if term != ';' && term != '}' {
			i = nameEnd
			continue
		}

		prop := strings.ToLower(string(css[i:nameEnd]))
		value := strings.TrimSpace(string(css[colon+1 : end]))
		extra := prefixes(prop, value)
		if len(extra) > 0 {
			out.Write(css[last:i])
			for _, e := range extra {
				out.WriteString(e)
			}
			last, changed = i, true
		}
		i = end
	}
	if !changed {
		return css
	}
	out.Write(css[last:])
	return out.Bytes()
}

func prefixes(prop, value string) []string {
	var extra []string
	for _, p := range prefixedProperties[prop] {
		extra = append(extra, p+prop+":"+value+";")
	}
	if byValue, ok := prefixedValues[prop]; ok {
		for _, p := range byValue[strings.ToLower(value)] {
			extra = append(extra, prop+":"+p+value+";")
		}
	}
	return extra
}

// scanValue returns the index of the byte ending the value that starts at
// i and that byte, or len(css) and 0 when the input ends first.
func scanValue(css []byte, i int) (int, byte) {
	depth := 0
	for i < len(css) {
		c := css[i]
		switch {
		case c == '"' || c == '\'':
			i = skipString(css, i)
			continue
		case c == '/' && i+1 < len(css) && css[i+1] == '*':
			i = skipComment(css, i)
			continue
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0 && (c == ';' || c == '}' || c == '{'):
			return i, c
		}
		i++
	}
	return len(css), 0
}

// skipString returns the index just past the string literal opening at i.
func skipString(css []byte, i int) int {
	quote := css[i]
	for i++; i < len(css); i++ {
		switch css[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		}
	}
	return len(css)
}

// skipComment returns the index just past the comment opening at i.
func skipComment(css []byte, i int) int {
	if end := bytes.Index(css[i+2:], []byte("*/")); end >= 0 {
		return i + 2 + end + 2
	}
	return len(css)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isIdentByte(c byte) bool {
	return c == '-' || c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
