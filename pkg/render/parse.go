package render

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrNoTableBlock is returned when text holds no decodable ```table block.
var ErrNoTableBlock = errors.New("render: no table block found")

var (
	tableBlockPattern = regexp.MustCompile("(?s)```table\\s*(.*?)```")
	optionPattern     = regexp.MustCompile(`option\s*=\s*\{`)
)

// ParseTableBlock decodes the last ```table block in text.
func ParseTableBlock(text string) (TableSpec, error) {
	matches := tableBlockPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return TableSpec{}, ErrNoTableBlock
	}
	body := matches[len(matches)-1][1]

	loc := optionPattern.FindStringIndex(body)
	if loc == nil {
		return TableSpec{}, fmt.Errorf("%w: missing option object", ErrNoTableBlock)
	}

	p := &literalParser{src: body, pos: loc[1] - 1}
	value, err := p.parseValue()
	if err != nil {
		return TableSpec{}, fmt.Errorf("decode table block: %w", err)
	}
	root, ok := value.(*object)
	if !ok {
		return TableSpec{}, fmt.Errorf("decode table block: option is not an object")
	}

	return tableFromObject(root)
}

func tableFromObject(root *object) (TableSpec, error) {
	data, _ := root.get("data").([]any)
	var spec TableSpec

	if cols, ok := root.get("columns").([]any); ok {
		for _, c := range cols {
			co, ok := c.(*object)
			if !ok {
				continue
			}
			prop, _ := co.get("prop").(string)
			label, _ := co.get("label").(string)
			if prop == "" {
				prop = label
			}
			if label == "" {
				label = prop
			}
			width, _ := co.get("width").(int64)
			spec.Columns = append(spec.Columns, TableColumn{Label: label, Prop: prop, Width: int(width)})
		}
	}

	// without column metadata the first row's key order is used
	if len(spec.Columns) == 0 && len(data) > 0 {
		if first, ok := data[0].(*object); ok {
			for _, k := range first.keys {
				spec.Columns = append(spec.Columns, TableColumn{Label: k, Prop: k})
			}
		}
	}

	if len(spec.Columns) == 0 {
		return TableSpec{}, fmt.Errorf("%w: no columns", ErrNoTableBlock)
	}

	for _, d := range data {
		rowObj, ok := d.(*object)
		if !ok {
			continue
		}
		cells := make([]any, len(spec.Columns))
		for j, c := range spec.Columns {
			v := rowObj.get(c.Prop)
			if v == nil {
				v = ""
			}
			cells[j] = v
		}
		spec.Rows = append(spec.Rows, cells)
	}

	if len(spec.Rows) == 0 {
		return TableSpec{}, fmt.Errorf("%w: no rows", ErrNoTableBlock)
	}
	return spec, nil
}

// object keeps key order from the literal.
type object struct {
	keys []string
	vals map[string]any
}

func (o *object) get(key string) any {
	return o.vals[key]
}

// literalParser reads the JavaScript object literal subset literalWriter
// emits, plus double-quoted strings and Python-style None/True/False.
type literalParser struct {
	src string
	pos int
}

func (p *literalParser) errorf(format string, args ...any) error {
	return fmt.Errorf("at offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		p.pos += size
	}
}

func (p *literalParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *literalParser) parseValue() (any, error) {
	switch c := p.peek(); {
	case c == '{':
		return p.parseObject()
	case c == '[':
		return p.parseArray()
	case c == '\'' || c == '"':
		return p.parseString()
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	case c == 0:
		return nil, p.errorf("unexpected end of input")
	default:
		word := p.parseWord()
		switch word {
		case "null", "None", "undefined":
			return nil, nil
		case "true", "True":
			return true, nil
		case "false", "False":
			return false, nil
		}
		return nil, p.errorf("unexpected token %q", word)
	}
}

func (p *literalParser) parseObject() (*object, error) {
	p.pos++ // {
	obj := &object{vals: make(map[string]any)}
	for {
		switch p.peek() {
		case '}':
			p.pos++
			return obj, nil
		case ',':
			p.pos++
			continue
		case 0:
			return nil, p.errorf("unterminated object")
		}

		var key string
		if c := p.peek(); c == '\'' || c == '"' {
			k, err := p.parseString()
			if err != nil {
				return nil, err
			}
			key = k
		} else {
			key = p.parseWord()
			if key == "" {
				return nil, p.errorf("expected key")
			}
		}

		if p.peek() != ':' {
			return nil, p.errorf("expected ':' after key %q", key)
		}
		p.pos++

		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if _, exists := obj.vals[key]; !exists {
			obj.keys = append(obj.keys, key)
		}
		obj.vals[key] = val
	}
}

func (p *literalParser) parseArray() ([]any, error) {
	p.pos++ // [
	items := []any{}
	for {
		switch p.peek() {
		case ']':
			p.pos++
			return items, nil
		case ',':
			p.pos++
			continue
		case 0:
			return nil, p.errorf("unterminated array")
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, val)
	}
}

func (p *literalParser) parseString() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\\' && p.pos+1 < len(p.src):
			next := p.src[p.pos+1]
			switch next {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'x', 'u':
				width := 2
				if next == 'u' {
					width = 4
				}
				end := p.pos + 2 + width
				if end > len(p.src) {
					return "", p.errorf("truncated \\%c escape", next)
				}
				code, err := strconv.ParseUint(p.src[p.pos+2:end], 16, 32)
				if err != nil {
					return "", p.errorf("invalid \\%c escape %q", next, p.src[p.pos+2:end])
				}
				b.WriteRune(rune(code))
				p.pos = end
				continue
			default:
				b.WriteByte(next)
			}
			p.pos += 2
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *literalParser) parseNumber() (any, error) {
	start := p.pos
	for p.pos < len(p.src) && strings.IndexByte("+-.0123456789eE", p.src[p.pos]) >= 0 {
		p.pos++
	}
	text := p.src[start:p.pos]
	if !strings.ContainsAny(text, ".eE") {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return n, nil
		}
		if u, err := strconv.ParseUint(text, 10, 64); err == nil {
			return u, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, p.errorf("invalid number %q", text)
	}
	return f, nil
}

func (p *literalParser) parseWord() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if r != '_' && r != '$' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		p.pos += size
	}
	return p.src[start:p.pos]
}
