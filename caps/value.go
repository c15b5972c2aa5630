package caps

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a typed value of a structure field.
type Value interface {
	// String serializes the value without type annotation.
	String() string
	// Type returns the annotation used in serialized caps.
	Type() string
	// Fixed reports if value is a single value.
	Fixed() bool
}

type (
	// Int is an integer value.
	Int int
	// String is a string value.
	String string
	// Bool is a boolean value.
	Bool bool
	// Fraction is a rational value like framerate.
	Fraction struct {
		Num, Den int
	}
	// IntRange is an inclusive integer range.
	IntRange struct {
		Min, Max int
	}
	// FractionRange is an inclusive range of fractions.
	FractionRange struct {
		Min, Max Fraction
	}
	// List is a set of alternative values.
	List []Value
)

// MaxInt is the upper bound used in templates for unconstrained sizes.
const MaxInt = 2147483647

// Frac returns a fraction.
func Frac(num, den int) Fraction {
	return Fraction{Num: num, Den: den}
}

func (v Int) String() string { return strconv.Itoa(int(v)) }

// Type implements Value.
func (Int) Type() string { return "int" }

// Fixed implements Value.
func (Int) Fixed() bool { return true }

func (v String) String() string {
	s := string(v)
	if s == "" || strings.ContainsAny(s, " ,;=[]{}()\"") {
		return strconv.Quote(s)
	}
	return s
}

// Type implements Value.
func (String) Type() string { return "string" }

// Fixed implements Value.
func (String) Fixed() bool { return true }

func (v Bool) String() string { return strconv.FormatBool(bool(v)) }

// Type implements Value.
func (Bool) Type() string { return "boolean" }

// Fixed implements Value.
func (Bool) Fixed() bool { return true }

func (v Fraction) String() string { return fmt.Sprintf("%d/%d", v.Num, v.Den) }

// Type implements Value.
func (Fraction) Type() string { return "fraction" }

// Fixed implements Value.
func (Fraction) Fixed() bool { return true }

// Float returns fraction as floating point number.
func (v Fraction) Float() float64 {
	if v.Den == 0 {
		return 0
	}
	return float64(v.Num) / float64(v.Den)
}

// Compare returns -1, 0 or 1 if v is less, equal or greater than o.
func (v Fraction) Compare(o Fraction) int {
	l := int64(v.Num) * int64(o.Den)
	r := int64(o.Num) * int64(v.Den)
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	}
	return 0
}

func (v IntRange) String() string { return fmt.Sprintf("[ %d, %d ]", v.Min, v.Max) }

// Type implements Value.
func (IntRange) Type() string { return "int" }

// Fixed implements Value.
func (IntRange) Fixed() bool { return false }

// Contains reports if i is within range.
func (v IntRange) Contains(i int) bool { return i >= v.Min && i <= v.Max }

func (v FractionRange) String() string { return fmt.Sprintf("[ %v, %v ]", v.Min, v.Max) }

// Type implements Value.
func (FractionRange) Type() string { return "fraction" }

// Fixed implements Value.
func (FractionRange) Fixed() bool { return false }

// Contains reports if f is within range.
func (v FractionRange) Contains(f Fraction) bool {
	return v.Min.Compare(f) <= 0 && v.Max.Compare(f) >= 0
}

func (v List) String() string {
	s := make([]string, 0, len(v))
	for _, e := range v {
		s = append(s, e.String())
	}
	return "{ " + strings.Join(s, ", ") + " }"
}

// Type implements Value. List type is the type of its first element.
func (v List) Type() string {
	if len(v) == 0 {
		return ""
	}
	return v[0].Type()
}

// Fixed implements Value.
func (v List) Fixed() bool { return false }

// intersectValues returns the common subset of two values or nil.
func intersectValues(a, b Value) Value {
	if _, ok := b.(List); ok {
		if _, ok := a.(List); !ok {
			a, b = b, a
		}
	}
	switch av := a.(type) {
	case List:
		result := make(List, 0, len(av))
		for _, e := range av {
			if v := intersectValues(e, b); v != nil {
				result = appendUnique(result, v)
			}
		}
		switch len(result) {
		case 0:
			return nil
		case 1:
			return result[0]
		}
		return result
	case Int:
		switch bv := b.(type) {
		case Int:
			if av == bv {
				return av
			}
		case IntRange:
			if bv.Contains(int(av)) {
				return av
			}
		}
	case IntRange:
		switch bv := b.(type) {
		case Int:
			return intersectValues(bv, av)
		case IntRange:
			lo, hi := max(av.Min, bv.Min), min(av.Max, bv.Max)
			switch {
			case lo > hi:
				return nil
			case lo == hi:
				return Int(lo)
			}
			return IntRange{Min: lo, Max: hi}
		}
	case Fraction:
		switch bv := b.(type) {
		case Fraction:
			if av.Compare(bv) == 0 {
				return av
			}
		case FractionRange:
			if bv.Contains(av) {
				return av
			}
		}
	case FractionRange:
		switch bv := b.(type) {
		case Fraction:
			return intersectValues(bv, av)
		case FractionRange:
			lo, hi := av.Min, av.Max
			if bv.Min.Compare(lo) > 0 {
				lo = bv.Min
			}
			if bv.Max.Compare(hi) < 0 {
				hi = bv.Max
			}
			switch lo.Compare(hi) {
			case 1:
				return nil
			case 0:
				return lo
			}
			return FractionRange{Min: lo, Max: hi}
		}
	case String:
		if bv, ok := b.(String); ok && av == bv {
			return av
		}
	case Bool:
		if bv, ok := b.(Bool); ok && av == bv {
			return av
		}
	}
	return nil
}

func appendUnique(l List, v Value) List {
	for _, e := range l {
		if equalValues(e, v) {
			return l
		}
	}
	return append(l, v)
}

func equalValues(a, b Value) bool {
	la, aok := a.(List)
	lb, bok := b.(List)
	if aok || bok {
		if !(aok && bok) || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !equalValues(la[i], lb[i]) {
				return false
			}
		}
		return true
	}
	return a == b
}

// fixateValue picks a single value out of range or list.
func fixateValue(v Value) Value {
	switch vv := v.(type) {
	case IntRange:
		return Int(vv.Min)
	case FractionRange:
		return vv.Min
	case List:
		if len(vv) == 0 {
			return nil
		}
		return fixateValue(vv[0])
	}
	return v
}
