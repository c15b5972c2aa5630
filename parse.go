package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"pipelined.dev/pipeline/caps"
)

// capsFilter is the factory used for bare caps in launch descriptions.
const capsFilter = "capsfilter"

// segment is a single element of launch description.
type segment struct {
	factory string
	props   [][2]string
}

// ParseLaunch builds a pipeline from launch description:
//
//	videotestsrc num-buffers=10 ! video/x-raw,width=320 ! fakesink name=sink
//
// Elements are separated by '!' and linked in order. Bare caps become a
// capsfilter. All unknown factories are reported at once in
// ParseError.Missing.
func (c *Context) ParseLaunch(desc string) (*Pipeline, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	parseErr := func(err error) error {
		return &ParseError{Desc: desc, Err: err}
	}
	segments, err := splitLaunch(desc)
	if err != nil {
		return nil, parseErr(err)
	}

	var missing []string
	for _, s := range segments {
		if _, err := c.registry.Lookup(s.factory); err != nil && !contains(missing, s.factory) {
			missing = append(missing, s.factory)
		}
	}
	if len(missing) > 0 {
		return nil, &ParseError{Desc: desc, Missing: missing, Err: ErrMissingElement}
	}

	p, err := c.NewPipeline("")
	if err != nil {
		return nil, err
	}
	elements := make([]Element, 0, len(segments))
	for _, s := range segments {
		e, err := c.MakeElement(s.factory, "")
		if err == nil {
			err = setProperties(e, s.props)
		}
		if err == nil {
			err = p.Add(e)
		}
		if err != nil {
			p.Close()
			return nil, parseErr(err)
		}
		elements = append(elements, e)
	}
	if err := p.LinkMany(elements...); err != nil {
		p.Close()
		return nil, parseErr(err)
	}
	return p, nil
}

func setProperties(e Element, props [][2]string) error {
	for _, kv := range props {
		if err := e.SetProperty(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

// splitLaunch splits description into segments.
func splitLaunch(desc string) ([]segment, error) {
	tokens, err := tokenize(desc)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, ErrEmptyPipeline
	}
	var (
		segments []segment
		current  []string
	)
	flush := func() error {
		if len(current) == 0 {
			return fmt.Errorf("%w: link without element", ErrSyntax)
		}
		s, err := parseSegment(current)
		if err != nil {
			return err
		}
		segments = append(segments, s)
		current = nil
		return nil
	}
	for _, t := range tokens {
		if t == "!" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		current = append(current, t)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return segments, nil
}

func parseSegment(tokens []string) (segment, error) {
	if isCaps(tokens[0]) {
		c, err := caps.Parse(strings.Join(tokens, " "))
		if err != nil {
			return segment{}, err
		}
		return segment{
			factory: capsFilter,
			props:   [][2]string{{"caps", c.String()}},
		}, nil
	}
	s := segment{factory: tokens[0]}
	for _, t := range tokens[1:] {
		k, v, ok := strings.Cut(t, "=")
		if !ok || k == "" {
			return segment{}, fmt.Errorf("%w: expected property, got %q", ErrSyntax, t)
		}
		v, err := unquote(v)
		if err != nil {
			return segment{}, fmt.Errorf("%w: property %s: %v", ErrSyntax, k, err)
		}
		s.props = append(s.props, [2]string{k, v})
	}
	return s, nil
}

// isCaps reports if token starts a media type like video/x-raw.
func isCaps(token string) bool {
	name, _, _ := strings.Cut(token, ",")
	return strings.Contains(name, "/") && !strings.Contains(name, "=")
}

func unquote(v string) (string, error) {
	if len(v) < 2 {
		return v, nil
	}
	switch v[0] {
	case '"':
		return strconv.Unquote(v)
	case '\'':
		if v[len(v)-1] != '\'' {
			return "", fmt.Errorf("unterminated quote in %s", v)
		}
		return v[1 : len(v)-1], nil
	}
	return v, nil
}

// tokenize splits description by spaces and '!' outside of quotes. Quotes
// are kept in tokens.
func tokenize(desc string) ([]string, error) {
	var (
		tokens []string
		b      strings.Builder
		quote  rune
	)
	emit := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	escaped := false
	for _, r := range desc {
		switch {
		case quote != 0:
			b.WriteRune(r)
			switch {
			case escaped:
				escaped = false
			case r == '\\' && quote == '"':
				escaped = true
			case r == quote:
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
			b.WriteRune(r)
		case r == '!':
			emit()
			tokens = append(tokens, "!")
		case r == ' ' || r == '\t' || r == '\n':
			emit()
		default:
			b.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("%w: unterminated quote", ErrSyntax)
	}
	emit()
	return tokens, nil
}
