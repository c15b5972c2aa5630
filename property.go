package pipeline

import (
	"fmt"
	"math"
	"strconv"

	"pipelined.dev/pipeline/caps"
)

// PropertyKind defines the type of property values.
type PropertyKind int

// property kinds
const (
	KindString PropertyKind = iota
	KindInt
	KindBool
	KindFloat
	KindCaps
)

func (k PropertyKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindFloat:
		return "float"
	case KindCaps:
		return "caps"
	}
	return fmt.Sprintf("PropertyKind(%d)", int(k))
}

// Property describes a configurable parameter of element. If Choices is
// not empty, string values must be one of them.
type Property struct {
	Name        string
	Description string
	Kind        PropertyKind
	Default     any
	Choices     []string
}

type property struct {
	Property
	value any
}

// InstallProperty adds property to the element. Value is set to default.
func (b *Base) InstallProperty(ps ...Property) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range ps {
		b.props = append(b.props, &property{Property: p, value: p.Default})
	}
}

// Properties returns descriptions of all properties.
func (b *Base) Properties() []Property {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ps := make([]Property, 0, len(b.props))
	for _, p := range b.props {
		ps = append(ps, p.Property)
	}
	return ps
}

// SetProperty converts value to the kind of property and sets it. Strings
// are parsed for all kinds. Name property renames the element if it's not
// added to pipeline yet.
func (b *Base) SetProperty(name string, value any) error {
	if name == "name" {
		return b.rename(value)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.property(name)
	if p == nil {
		return fmt.Errorf("%s: %w %q", b.name, ErrUnknownProperty, name)
	}
	v, err := convert(p.Kind, value)
	if err != nil {
		return fmt.Errorf("%s: property %q: %w", b.name, name, err)
	}
	if len(p.Choices) > 0 && !contains(p.Choices, v.(string)) {
		return fmt.Errorf("%s: property %q: %q is not one of %v", b.name, name, v, p.Choices)
	}
	p.value = v
	return nil
}

// Property returns the current value of property.
func (b *Base) Property(name string) (any, error) {
	if name == "name" {
		return b.Name(), nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	p := b.property(name)
	if p == nil {
		return nil, fmt.Errorf("%s: %w %q", b.name, ErrUnknownProperty, name)
	}
	return p.value, nil
}

// IntProperty returns the value of int property. Zero is returned if property is
// not installed.
func (b *Base) IntProperty(name string) int {
	v, _ := b.Property(name)
	i, _ := v.(int)
	return i
}

// BoolProperty returns the value of bool property.
func (b *Base) BoolProperty(name string) bool {
	v, _ := b.Property(name)
	r, _ := v.(bool)
	return r
}

// FloatProperty returns the value of float property.
func (b *Base) FloatProperty(name string) float64 {
	v, _ := b.Property(name)
	f, _ := v.(float64)
	return f
}

// StringProperty returns the value of string property.
func (b *Base) StringProperty(name string) string {
	v, _ := b.Property(name)
	s, _ := v.(string)
	return s
}

// CapsProperty returns the value of caps property.
func (b *Base) CapsProperty(name string) *caps.Caps {
	v, _ := b.Property(name)
	c, _ := v.(*caps.Caps)
	return c
}

func (b *Base) property(name string) *property {
	for _, p := range b.props {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (b *Base) rename(value any) error {
	name, ok := value.(string)
	if !ok || name == "" {
		return fmt.Errorf("invalid name %v", value)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pipeline != nil {
		return fmt.Errorf("%s: cannot rename element in pipeline", b.name)
	}
	b.name = name
	return nil
}

// convert returns the value of provided kind.
func convert(kind PropertyKind, value any) (any, error) {
	switch kind {
	case KindString:
		switch v := value.(type) {
		case string:
			return v, nil
		case fmt.Stringer:
			return v.String(), nil
		case int, int64, float64, bool:
			return fmt.Sprint(v), nil
		}
	case KindInt:
		switch v := value.(type) {
		case int:
			return v, nil
		case int32:
			return int(v), nil
		case int64:
			return int(v), nil
		case uint32:
			return int(v), nil
		case uint64:
			return int(v), nil
		case float64:
			if v == math.Trunc(v) {
				return int(v), nil
			}
		case string:
			i, err := strconv.ParseInt(v, 0, 64)
			if err != nil {
				return nil, err
			}
			return int(i), nil
		}
	case KindBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(v)
		}
	case KindFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			return strconv.ParseFloat(v, 64)
		}
	case KindCaps:
		switch v := value.(type) {
		case *caps.Caps:
			return v.Copy(), nil
		case string:
			return caps.Parse(v)
		}
	}
	return nil, fmt.Errorf("cannot convert %T to %v", value, kind)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
