// Package value defines the normalized value tree produced from decoded
// MAT-file records: a closed sum of Mapping, Sequence, Matrix and Scalar.
package value

import (
	"math"
	"strconv"
	"strings"
)

// Value is one of Mapping, Sequence, Matrix or Scalar.
type Value interface {
	isValue()
}

// Field is one key/value pair of a Mapping.
type Field struct {
	Key   string
	Value Value
}

// Mapping is an ordered map with unique keys.
type Mapping struct {
	Fields []Field
}

// Sequence is an ordered list of values.
type Sequence struct {
	Elems []Value
}

// Scalar kinds.
type ScalarKind int

const (
	KindEmpty ScalarKind = iota
	KindFloat
	KindInt
	KindUint
	KindBool
	KindString
	KindComplex
)

// Scalar is a single value of the kind named by Kind; the other fields are
// zero.
type Scalar struct {
	Kind ScalarKind
	F    float64
	I    int64
	U    uint64
	B    bool
	S    string
	C    complex128
}

func (Mapping) isValue()  {}
func (Sequence) isValue() {}
func (Matrix) isValue()   {}
func (Scalar) isValue()   {}

// Set stores v under key, replacing an existing entry in place.
func (m *Mapping) Set(key string, v Value) {
	for i := range m.Fields {
		if m.Fields[i].Key == key {
			m.Fields[i].Value = v
			return
		}
	}
	m.Fields = append(m.Fields, Field{Key: key, Value: v})
}

// Get returns the value stored under key.
func (m Mapping) Get(key string) (Value, bool) {
	for _, f := range m.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in order.
func (m Mapping) Keys() []string {
	keys := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		keys[i] = f.Key
	}
	return keys
}

// Empty returns the missing-value Scalar, rendered as an empty cell.
func Empty() Scalar { return Scalar{Kind: KindEmpty} }

// Float returns a float Scalar.
func Float(v float64) Scalar { return Scalar{Kind: KindFloat, F: v} }

// Int returns a signed integer Scalar.
func Int(v int64) Scalar { return Scalar{Kind: KindInt, I: v} }

// Uint returns an unsigned integer Scalar.
func Uint(v uint64) Scalar { return Scalar{Kind: KindUint, U: v} }

// Bool returns a boolean Scalar.
func Bool(v bool) Scalar { return Scalar{Kind: KindBool, B: v} }

// String returns a text Scalar.
func String(v string) Scalar { return Scalar{Kind: KindString, S: v} }

// Complex returns a complex Scalar.
func Complex(v complex128) Scalar { return Scalar{Kind: KindComplex, C: v} }

// Text renders the scalar as it appears in a table cell. Integral floats
// drop the fractional part; NaN renders as an empty cell.
func (s Scalar) Text() string {
	switch s.Kind {
	case KindFloat:
		return FormatFloat(s.F)
	case KindInt:
		return strconv.FormatInt(s.I, 10)
	case KindUint:
		return strconv.FormatUint(s.U, 10)
	case KindBool:
		if s.B {
			return "True"
		}
		return "False"
	case KindString:
		return s.S
	case KindComplex:
		im := imag(s.C)
		sign := "+"
		if im < 0 || (im == 0 && math.Signbit(im)) {
			sign = "-"
			im = -im
		}
		return "(" + FormatFloat(real(s.C)) + sign + FormatFloat(im) + "j)"
	}
	return ""
}

// FormatFloat renders f in the shortest form that round-trips, switching to
// exponent notation outside [1e-4, 1e16).
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ""
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if f == 0 || (abs >= 1e-4 && abs < 1e16) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'e', -1, 64)
}

// Render returns a compact single-line text form of v, used for nested
// table cells and the row-of-strings fallback.
func Render(v Value) string {
	var b strings.Builder
	render(&b, v)
	return b.String()
}

func render(b *strings.Builder, v Value) {
	switch v := v.(type) {
	case Scalar:
		if v.Kind == KindString {
			b.WriteString(strconv.Quote(v.S))
			return
		}
		b.WriteString(v.Text())
	case Matrix:
		if err := v.Validate(); err != nil {
			b.WriteString("<" + err.Error() + ">")
			return
		}
		if v.Rank() == 1 {
			renderRow(b, v, 0)
			return
		}
		b.WriteByte('[')
		for r := 0; r < v.Rows(); r++ {
			if r > 0 {
				b.WriteByte(' ')
			}
			renderRow(b, v, r)
		}
		b.WriteByte(']')
	case Sequence:
		b.WriteByte('[')
		for i, e := range v.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			render(b, e)
		}
		b.WriteByte(']')
	case Mapping:
		b.WriteByte('{')
		for i, f := range v.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Key)
			b.WriteString(": ")
			render(b, f.Value)
		}
		b.WriteByte('}')
	case nil:
	}
}

func renderRow(b *strings.Builder, m Matrix, r int) {
	b.WriteByte('[')
	for c := 0; c < m.Cols(); c++ {
		if c > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(m.At(r, c).Text())
	}
	b.WriteByte(']')
}

// Flat reports whether v renders without nesting a Mapping anywhere inside
// it.
func Flat(v Value) bool {
	switch v := v.(type) {
	case Mapping:
		return false
	case Sequence:
		for _, e := range v.Elems {
			if !Flat(e) {
				return false
			}
		}
	}
	return true
}
