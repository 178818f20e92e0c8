// Package optspec parses the compact textual options syntax:
//
//	Curve.Measured (color='red' linewidth=2) [width=400 show_grid=True] {+framewise -axiswise}
//
// Parentheses hold style keywords, brackets plot keywords and braces norm
// flags. Several specifications may follow each other in one string.
package optspec

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/expr-lang/expr"
)

// Group names produced by Parse.
const (
	GroupStyle = "style"
	GroupPlot  = "plot"
	GroupNorm  = "norm"
)

// ParseError reports the byte offset at which parsing failed.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("optspec: %s at offset %d", e.Msg, e.Pos)
}

// literals are the Python style constants accepted in keyword values.
var literals = map[string]any{
	"True":  true,
	"False": false,
	"None":  nil,
}

// Parse converts text into identifier -> group -> keyword -> value.
func Parse(text string) (map[string]map[string]map[string]any, error) {
	p := &parser{src: text}
	out := map[string]map[string]map[string]any{}
	for {
		p.skipSpace()
		if p.done() {
			return out, nil
		}
		start := p.pos
		key := p.identifier()
		if key == "" {
			return nil, &ParseError{Pos: start, Msg: fmt.Sprintf("expected element identifier, found %q", p.rest(10))}
		}
		groups := out[key]
		if groups == nil {
			groups = map[string]map[string]any{}
			out[key] = groups
		}
		blocks := 0
		for {
			p.skipSpace()
			group, closer, ok := groupFor(p.peek())
			if !ok {
				break
			}
			bodyStart := p.pos + 1
			body, err := p.block(closer)
			if err != nil {
				return nil, err
			}
			keywords, err := parseBody(group, body, bodyStart)
			if err != nil {
				return nil, err
			}
			if groups[group] == nil {
				groups[group] = map[string]any{}
			}
			for keyword, value := range keywords {
				groups[group][keyword] = value
			}
			blocks++
		}
		if blocks == 0 {
			return nil, &ParseError{Pos: p.pos, Msg: fmt.Sprintf("identifier %q has no option group", key)}
		}
	}
}

func groupFor(r byte) (string, byte, bool) {
	switch r {
	case '(':
		return GroupStyle, ')', true
	case '[':
		return GroupPlot, ']', true
	case '{':
		return GroupNorm, '}', true
	default:
		return "", 0, false
	}
}

func parseBody(group, body string, offset int) (map[string]any, error) {
	if group == GroupNorm {
		return parseNorm(body, offset)
	}
	return parseKeywords(body, offset)
}

// parseNorm reads "+flag -flag" entries.
func parseNorm(body string, offset int) (map[string]any, error) {
	out := map[string]any{}
	for _, field := range strings.Fields(body) {
		if len(field) < 2 || (field[0] != '+' && field[0] != '-') {
			return nil, &ParseError{Pos: offset + strings.Index(body, field), Msg: fmt.Sprintf("norm flag %q must start with + or -", field)}
		}
		out[field[1:]] = field[0] == '+'
	}
	return out, nil
}

// parseKeywords reads "name=value" pairs separated by whitespace or commas.
func parseKeywords(body string, offset int) (map[string]any, error) {
	out := map[string]any{}
	p := &parser{src: body}
	for {
		p.skipSeparators()
		if p.done() {
			return out, nil
		}
		start := p.pos
		name := p.word()
		p.skipSpace()
		if name == "" || p.peek() != '=' {
			return nil, &ParseError{Pos: offset + start, Msg: fmt.Sprintf("expected keyword=value, found %q", p.rest(10))}
		}
		p.pos++
		valueStart := p.pos
		end := p.valueEnd()
		source := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(body[valueStart:end]), ","))
		if source == "" {
			return nil, &ParseError{Pos: offset + valueStart, Msg: fmt.Sprintf("keyword %q has no value", name)}
		}
		value, err := expr.Eval(source, literals)
		if err != nil {
			return nil, &ParseError{Pos: offset + valueStart, Msg: fmt.Sprintf("invalid value for %q: %v", name, err)}
		}
		out[name] = value
		p.pos = end
	}
}

type parser struct {
	src string
	pos int
}

func (p *parser) done() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.done() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) rest(n int) string {
	end := min(p.pos+n, len(p.src))
	return p.src[p.pos:end]
}

func (p *parser) skipSpace() {
	for !p.done() && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) skipSeparators() {
	for !p.done() && (unicode.IsSpace(rune(p.src[p.pos])) || p.src[p.pos] == ',') {
		p.pos++
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func (p *parser) word() string {
	start := p.pos
	for !p.done() && isWordByte(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

// identifier reads Type[.Group][.Label].
func (p *parser) identifier() string {
	start := p.pos
	for !p.done() && (isWordByte(p.src[p.pos]) || p.src[p.pos] == '.') {
		p.pos++
	}
	return strings.Trim(p.src[start:p.pos], ".")
}

// block consumes a bracketed block and returns its body.
func (p *parser) block(closer byte) (string, error) {
	open := p.pos
	p.pos++
	depth := 0
	for !p.done() {
		switch c := p.src[p.pos]; {
		case c == '\'' || c == '"':
			if err := p.skipString(c); err != nil {
				return "", err
			}
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			if depth == 0 {
				if c != closer {
					return "", &ParseError{Pos: p.pos, Msg: fmt.Sprintf("expected %q, found %q", closer, c)}
				}
				body := p.src[open+1 : p.pos]
				p.pos++
				return body, nil
			}
			depth--
		}
		p.pos++
	}
	return "", &ParseError{Pos: open, Msg: fmt.Sprintf("unterminated block, missing %q", closer)}
}

func (p *parser) skipString(quote byte) error {
	start := p.pos
	p.pos++
	for !p.done() {
		switch p.src[p.pos] {
		case '\\':
			p.pos += 2
			continue
		case quote:
			p.pos++
			return nil
		}
		p.pos++
	}
	return &ParseError{Pos: start, Msg: "unterminated string"}
}

// valueEnd returns the offset where the value starting at p.pos ends: the
// start of the next top-level "name=" or the end of input.
func (p *parser) valueEnd() int {
	save := p.pos
	defer func() { p.pos = save }()
	depth := 0
	for !p.done() {
		c := p.src[p.pos]
		switch {
		case c == '\'' || c == '"':
			if p.skipString(c) != nil {
				return len(p.src)
			}
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case depth == 0 && (unicode.IsSpace(rune(c)) || c == ','):
			if p.nextIsKeyword() {
				return p.pos
			}
		}
		p.pos++
	}
	return len(p.src)
}

// nextIsKeyword reports whether a "name=" follows the separator at p.pos.
func (p *parser) nextIsKeyword() bool {
	i := p.pos
	for i < len(p.src) && (unicode.IsSpace(rune(p.src[i])) || p.src[i] == ',') {
		i++
	}
	j := i
	for j < len(p.src) && isWordByte(p.src[j]) {
		j++
	}
	if j == i {
		return false
	}
	for j < len(p.src) && unicode.IsSpace(rune(p.src[j])) {
		j++
	}
	return j < len(p.src) && p.src[j] == '=' && (j+1 >= len(p.src) || p.src[j+1] != '=')
}
