package caps

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrSyntax is returned when caps string is malformed.
var ErrSyntax = errors.New("invalid caps")

var (
	intRe      = regexp.MustCompile(`^[-+]?\d+$`)
	fractionRe = regexp.MustCompile(`^([-+]?\d+)/(\d+)$`)
	typeRe     = regexp.MustCompile(`^\(\s*([a-z]+)\s*\)\s*`)
)

// MustParse is like Parse, but panics on error. Used for templates.
func MustParse(s string) *Caps {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse deserializes caps:
//
//	ANY
//	EMPTY
//	video/x-raw, width=(int)320, framerate=30/1; video/x-bayer
func Parse(s string) (*Caps, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "ANY":
		return Any(), nil
	case "EMPTY", "NONE", "":
		return Empty(), nil
	}
	parts, err := split(s, ';')
	if err != nil {
		return nil, err
	}
	c := Empty()
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		st, err := ParseStructure(p)
		if err != nil {
			return nil, err
		}
		c.structures = append(c.structures, st)
	}
	return c, nil
}

// ParseStructure deserializes a single structure.
func ParseStructure(s string) (*Structure, error) {
	parts, err := split(s, ',')
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(parts[0])
	if name == "" || strings.ContainsAny(name, "= ") {
		return nil, fmt.Errorf("%w: bad structure name %q", ErrSyntax, name)
	}
	st := NewStructure(name)
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		eq := strings.IndexByte(p, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("%w: field %q has no value", ErrSyntax, p)
		}
		v, err := ParseValue(p[eq+1:])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", strings.TrimSpace(p[:eq]), err)
		}
		st.Set(strings.TrimSpace(p[:eq]), v)
	}
	return st, nil
}

// ParseValue deserializes a single field value. Optional type annotation in
// parentheses forces the type, otherwise it's guessed: int, fraction,
// boolean, string.
func ParseValue(s string) (Value, error) {
	s = strings.TrimSpace(s)
	typ := ""
	if m := typeRe.FindStringSubmatch(s); m != nil {
		typ = m[1]
		s = s[len(m[0]):]
	}
	switch {
	case strings.HasPrefix(s, "["):
		if !strings.HasSuffix(s, "]") {
			return nil, fmt.Errorf("%w: unterminated range %q", ErrSyntax, s)
		}
		return parseRange(typ, s[1:len(s)-1])
	case strings.HasPrefix(s, "{"):
		if !strings.HasSuffix(s, "}") {
			return nil, fmt.Errorf("%w: unterminated list %q", ErrSyntax, s)
		}
		items, err := split(s[1:len(s)-1], ',')
		if err != nil {
			return nil, err
		}
		l := make(List, 0, len(items))
		for _, item := range items {
			v, err := parseScalar(typ, item)
			if err != nil {
				return nil, err
			}
			l = append(l, v)
		}
		return l, nil
	}
	return parseScalar(typ, s)
}

func parseRange(typ, s string) (Value, error) {
	items, err := split(s, ',')
	if err != nil {
		return nil, err
	}
	if len(items) != 2 {
		return nil, fmt.Errorf("%w: range must have two values %q", ErrSyntax, s)
	}
	lo, err := parseScalar(typ, items[0])
	if err != nil {
		return nil, err
	}
	hi, err := parseScalar(typ, items[1])
	if err != nil {
		return nil, err
	}
	switch l := lo.(type) {
	case Int:
		if h, ok := hi.(Int); ok && l <= h {
			return IntRange{Min: int(l), Max: int(h)}, nil
		}
	case Fraction:
		if h, ok := hi.(Fraction); ok && l.Compare(h) <= 0 {
			return FractionRange{Min: l, Max: h}, nil
		}
	}
	return nil, fmt.Errorf("%w: bad range %q", ErrSyntax, s)
}

func parseScalar(typ, s string) (Value, error) {
	s = strings.TrimSpace(s)
	if m := typeRe.FindStringSubmatch(s); m != nil && typ == "" {
		typ = m[1]
		s = s[len(m[0]):]
	}
	switch typ {
	case "int", "i":
		i, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%w: bad int %q", ErrSyntax, s)
		}
		return Int(i), nil
	case "fraction":
		if i, err := strconv.Atoi(s); err == nil {
			return Frac(i, 1), nil
		}
		return parseFraction(s)
	case "boolean", "bool", "b":
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%w: bad boolean %q", ErrSyntax, s)
		}
		return Bool(b), nil
	case "string", "s":
		return parseString(s)
	case "":
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrSyntax, typ)
	}
	switch {
	case intRe.MatchString(s):
		i, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%w: bad int %q", ErrSyntax, s)
		}
		return Int(i), nil
	case fractionRe.MatchString(s):
		return parseFraction(s)
	case s == "true" || s == "false":
		return Bool(s == "true"), nil
	}
	return parseString(s)
}

func parseFraction(s string) (Value, error) {
	m := fractionRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("%w: bad fraction %q", ErrSyntax, s)
	}
	num, _ := strconv.Atoi(m[1])
	den, _ := strconv.Atoi(m[2])
	if den == 0 {
		return nil, fmt.Errorf("%w: zero denominator %q", ErrSyntax, s)
	}
	return Frac(num, den), nil
}

func parseString(s string) (Value, error) {
	if strings.HasPrefix(s, `"`) {
		u, err := strconv.Unquote(s)
		if err != nil {
			return nil, fmt.Errorf("%w: bad string %s", ErrSyntax, s)
		}
		return String(u), nil
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty value", ErrSyntax)
	}
	return String(s), nil
}

// split breaks s by sep ignoring separators inside brackets and quotes.
func split(s string, sep byte) ([]string, error) {
	var (
		parts  []string
		depth  int
		quoted bool
		start  int
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && quoted:
			i++
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '[' || c == '{' || c == '(':
			depth++
		case c == ']' || c == '}' || c == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced %q", ErrSyntax, s)
			}
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if quoted || depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced %q", ErrSyntax, s)
	}
	return append(parts, s[start:]), nil
}
