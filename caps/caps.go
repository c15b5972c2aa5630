// Package caps describes the format of data flowing between pads.
//
// Caps are either ANY, EMPTY or an ordered list of structures. Structure
// is a media type name with ordered typed fields:
//
//	video/x-raw, format=(string)I420, width=(int)320, framerate=(fraction)30/1
//
// Fields keep the order they were declared in, which is also the order they
// are serialized and dumped in.
package caps

import (
	"fmt"
	"io"
	"strings"
)

// Field is a named value of a structure.
type Field struct {
	Name  string
	Value Value
}

// Structure is a media type with ordered fields.
type Structure struct {
	name   string
	fields []Field
}

// NewStructure creates a structure with provided fields.
func NewStructure(name string, fields ...Field) *Structure {
	s := &Structure{name: name}
	for _, f := range fields {
		s.Set(f.Name, f.Value)
	}
	return s
}

// Name returns media type of the structure.
func (s *Structure) Name() string {
	return s.name
}

// Fields returns fields in declaration order.
func (s *Structure) Fields() []Field {
	fields := make([]Field, len(s.fields))
	copy(fields, s.fields)
	return fields
}

// Get returns the value of the field.
func (s *Structure) Get(name string) (Value, bool) {
	if i := s.index(name); i >= 0 {
		return s.fields[i].Value, true
	}
	return nil, false
}

// Set replaces the value of existing field or appends a new one.
func (s *Structure) Set(name string, v Value) *Structure {
	if i := s.index(name); i >= 0 {
		s.fields[i].Value = v
		return s
	}
	s.fields = append(s.fields, Field{Name: name, Value: v})
	return s
}

// Int returns integer field value.
func (s *Structure) Int(name string) (int, bool) {
	v, ok := s.Get(name)
	if !ok {
		return 0, false
	}
	i, ok := v.(Int)
	return int(i), ok
}

// Fraction returns fraction field value.
func (s *Structure) Fraction(name string) (Fraction, bool) {
	v, ok := s.Get(name)
	if !ok {
		return Fraction{}, false
	}
	f, ok := v.(Fraction)
	return f, ok
}

// StringField returns string field value.
func (s *Structure) StringField(name string) (string, bool) {
	v, ok := s.Get(name)
	if !ok {
		return "", false
	}
	str, ok := v.(String)
	return string(str), ok
}

// IsFixed reports if all fields have single values.
func (s *Structure) IsFixed() bool {
	for _, f := range s.fields {
		if !f.Value.Fixed() {
			return false
		}
	}
	return true
}

// FixateNearestInt fixates the field to the value closest to target.
func (s *Structure) FixateNearestInt(name string, target int) {
	v, ok := s.Get(name)
	if !ok {
		return
	}
	switch vv := v.(type) {
	case IntRange:
		s.Set(name, Int(min(max(target, vv.Min), vv.Max)))
	case List:
		var (
			best Value
			dist = -1
		)
		for _, e := range vv {
			if i, ok := e.(Int); ok {
				d := int(i) - target
				if d < 0 {
					d = -d
				}
				if dist < 0 || d < dist {
					best, dist = i, d
				}
			}
		}
		if best != nil {
			s.Set(name, best)
		}
	}
}

// FixateNearestFraction fixates the field to the value closest to target.
func (s *Structure) FixateNearestFraction(name string, target Fraction) {
	v, ok := s.Get(name)
	if !ok {
		return
	}
	if r, ok := v.(FractionRange); ok {
		switch {
		case r.Contains(target):
			s.Set(name, target)
		case target.Compare(r.Min) < 0:
			s.Set(name, r.Min)
		default:
			s.Set(name, r.Max)
		}
	}
}

// Copy returns a deep copy of the structure.
func (s *Structure) Copy() *Structure {
	return &Structure{name: s.name, fields: s.Fields()}
}

// String serializes the structure with type annotations.
func (s *Structure) String() string {
	var b strings.Builder
	b.WriteString(s.name)
	for _, f := range s.fields {
		fmt.Fprintf(&b, ", %s=(%s)%s", f.Name, f.Value.Type(), f.Value.String())
	}
	return b.String()
}

func (s *Structure) index(name string) int {
	for i := range s.fields {
		if s.fields[i].Name == name {
			return i
		}
	}
	return -1
}

// intersect returns common structure or nil if there is none.
func (s *Structure) intersect(o *Structure) *Structure {
	if s.name != o.name {
		return nil
	}
	result := &Structure{name: s.name}
	for _, f := range s.fields {
		v := f.Value
		if ov, ok := o.Get(f.Name); ok {
			if v = intersectValues(v, ov); v == nil {
				return nil
			}
		}
		result.fields = append(result.fields, Field{Name: f.Name, Value: v})
	}
	for _, f := range o.fields {
		if s.index(f.Name) < 0 {
			result.fields = append(result.fields, f)
		}
	}
	return result
}

func (s *Structure) fixate() *Structure {
	result := &Structure{name: s.name}
	for _, f := range s.fields {
		if v := fixateValue(f.Value); v != nil {
			result.fields = append(result.fields, Field{Name: f.Name, Value: v})
		}
	}
	return result
}

// Caps is a set of possible formats.
type Caps struct {
	any        bool
	structures []*Structure
}

// Any returns caps that are compatible with everything.
func Any() *Caps {
	return &Caps{any: true}
}

// Empty returns caps that are compatible with nothing.
func Empty() *Caps {
	return &Caps{}
}

// New returns caps with provided structures.
func New(structures ...*Structure) *Caps {
	return &Caps{structures: structures}
}

// IsAny reports if caps are ANY.
func (c *Caps) IsAny() bool {
	return c != nil && c.any
}

// IsEmpty reports if caps are EMPTY.
func (c *Caps) IsEmpty() bool {
	return c == nil || (!c.any && len(c.structures) == 0)
}

// IsFixed reports if caps contain exactly one fixed structure.
func (c *Caps) IsFixed() bool {
	return !c.IsAny() && len(c.structures) == 1 && c.structures[0].IsFixed()
}

// Len returns number of structures.
func (c *Caps) Len() int {
	if c == nil {
		return 0
	}
	return len(c.structures)
}

// Structure returns i-th structure.
func (c *Caps) Structure(i int) *Structure {
	return c.structures[i]
}

// Structures returns all structures in order.
func (c *Caps) Structures() []*Structure {
	if c == nil {
		return nil
	}
	s := make([]*Structure, len(c.structures))
	copy(s, c.structures)
	return s
}

// Copy returns a deep copy.
func (c *Caps) Copy() *Caps {
	if c == nil {
		return Empty()
	}
	result := &Caps{any: c.any}
	for _, s := range c.structures {
		result.structures = append(result.structures, s.Copy())
	}
	return result
}

// Intersect returns caps that are compatible with both c and o.
func (c *Caps) Intersect(o *Caps) *Caps {
	switch {
	case c.IsEmpty() || o.IsEmpty():
		return Empty()
	case c.IsAny():
		return o.Copy()
	case o.IsAny():
		return c.Copy()
	}
	result := Empty()
	for _, a := range c.structures {
		for _, b := range o.structures {
			if s := a.intersect(b); s != nil {
				result.structures = append(result.structures, s)
			}
		}
	}
	return result
}

// CanIntersect reports if intersection is not empty.
func (c *Caps) CanIntersect(o *Caps) bool {
	return !c.Intersect(o).IsEmpty()
}

// Fixate returns caps with the first structure where every field is reduced
// to a single value. ANY and EMPTY caps cannot be fixated and are returned as
// is.
func (c *Caps) Fixate() *Caps {
	if c.IsAny() || c.IsEmpty() {
		return c.Copy()
	}
	return New(c.structures[0].fixate())
}

// String serializes caps.
func (c *Caps) String() string {
	switch {
	case c.IsAny():
		return "ANY"
	case c.IsEmpty():
		return "EMPTY"
	}
	s := make([]string, 0, len(c.structures))
	for _, st := range c.structures {
		s = append(s, st.String())
	}
	return strings.Join(s, "; ")
}

// Dump writes human-readable caps. ANY and EMPTY are written as sentinels,
// otherwise each structure name is followed by its fields, one per line:
//
//	video/x-raw
//	  width:320
//	  height:240
func Dump(w io.Writer, c *Caps, prefix string) error {
	if c.IsAny() {
		_, err := fmt.Fprintf(w, "%sANY\n", prefix)
		return err
	}
	if c.IsEmpty() {
		_, err := fmt.Fprintf(w, "%sEMPTY\n", prefix)
		return err
	}
	for _, s := range c.structures {
		if _, err := fmt.Fprintf(w, "%s%s\n", prefix, s.name); err != nil {
			return err
		}
		for _, f := range s.fields {
			if _, err := fmt.Fprintf(w, "%s  %s:%s\n", prefix, f.Name, f.Value.String()); err != nil {
				return err
			}
		}
	}
	return nil
}
