package value

import (
	"fmt"
	"sort"

	"github.com/twinfer/matcsv/pkg/matfile"
)

// Normalize converts a decoded record into a value tree. It never fails:
// anything it does not recognize becomes a string Scalar holding its text.
//
// Structs become Mappings and cells become Sequences, both recursively.
// Numeric arrays become Matrices without recursion; arrays of rank above 2
// become a Sequence of sub-arrays along the first axis. Plain []any and
// map[string]any pass through as Sequence and Mapping, the latter with keys
// sorted since Go maps carry no order.
func Normalize(raw any) Value {
	switch r := raw.(type) {
	case nil:
		return Empty()
	case Value:
		return r
	case *matfile.Struct:
		m := Mapping{Fields: make([]Field, 0, len(r.Fields))}
		for i, name := range r.Fields {
			var v any
			if i < len(r.Values) {
				v = r.Values[i]
			}
			m.Set(name, Normalize(v))
		}
		return m
	case *matfile.Cell:
		return normalizeList(r.Elems)
	case *matfile.Numeric:
		return normalizeNumeric(r)
	case *matfile.Sparse:
		dense, err := r.Dense()
		if err != nil {
			return String(fmt.Sprintf("<sparse %dx%d: %v>", r.Rows, r.Cols, err))
		}
		return normalizeNumeric(dense)
	case *matfile.Opaque:
		return String(r.String())
	case float64:
		return Float(r)
	case float32:
		return Float(float64(r))
	case int:
		return Int(int64(r))
	case int8:
		return Int(int64(r))
	case int16:
		return Int(int64(r))
	case int32:
		return Int(int64(r))
	case int64:
		return Int(r)
	case uint:
		return Uint(uint64(r))
	case uint8:
		return Uint(uint64(r))
	case uint16:
		return Uint(uint64(r))
	case uint32:
		return Uint(uint64(r))
	case uint64:
		return Uint(r)
	case bool:
		return Bool(r)
	case string:
		return String(r)
	case complex128:
		return Complex(r)
	case complex64:
		return Complex(complex128(r))
	case []float64:
		return FloatVector(append([]float64(nil), r...))
	case []any:
		return normalizeList(r)
	case map[string]any:
		keys := make([]string, 0, len(r))
		for k := range r {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := Mapping{Fields: make([]Field, 0, len(keys))}
		for _, k := range keys {
			m.Fields = append(m.Fields, Field{Key: k, Value: Normalize(r[k])})
		}
		return m
	case fmt.Stringer:
		return String(r.String())
	}
	return String(fmt.Sprint(raw))
}

func normalizeList(elems []any) Sequence {
	seq := Sequence{Elems: make([]Value, len(elems))}
	for i, e := range elems {
		seq.Elems[i] = Normalize(e)
	}
	return seq
}

func normalizeNumeric(n *matfile.Numeric) Value {
	dims := n.Dims
	size := 1
	for _, d := range dims {
		size *= d
	}
	if n.Len() != size {
		return String(fmt.Sprintf("<%s: %d values for dims %v>", n, n.Len(), dims))
	}

	switch len(dims) {
	case 0:
		return Normalize(elementOf(n, 0))
	case 1:
		return matrixOf(n, []int{dims[0]}, func(p int) int { return p })
	case 2:
		rows, cols := dims[0], dims[1]
		return matrixOf(n, []int{rows, cols}, func(p int) int {
			return p/cols + (p%cols)*rows
		})
	}

	// Column-major storage: element (i, k...) sits at i + d0*k.
	d0 := dims[0]
	seq := Sequence{Elems: make([]Value, d0)}
	for i := 0; i < d0; i++ {
		sub := n.Gather(dims[1:], func(k int) int { return i + d0*k })
		seq.Elems[i] = normalizeNumeric(sub)
	}
	return seq
}

func elementOf(n *matfile.Numeric, k int) any {
	switch n.Kind {
	case matfile.KindInt:
		return n.Int[k]
	case matfile.KindUint:
		return n.Uint[k]
	case matfile.KindBool:
		return n.Bool[k]
	case matfile.KindComplex:
		return n.Complex[k]
	}
	return n.Float[k]
}

// matrixOf copies n into a row-major Matrix; src maps a row-major position
// to its column-major index in n.
func matrixOf(n *matfile.Numeric, shape []int, src func(p int) int) Matrix {
	size := 1
	for _, d := range shape {
		size *= d
	}
	m := Matrix{Shape: shape}
	switch n.Kind {
	case matfile.KindInt:
		m.Elem = KindInt
		m.Ints = make([]int64, size)
		for p := range m.Ints {
			m.Ints[p] = n.Int[src(p)]
		}
	case matfile.KindUint:
		m.Elem = KindUint
		m.Uints = make([]uint64, size)
		for p := range m.Uints {
			m.Uints[p] = n.Uint[src(p)]
		}
	case matfile.KindBool:
		m.Elem = KindBool
		m.Bools = make([]bool, size)
		for p := range m.Bools {
			m.Bools[p] = n.Bool[src(p)]
		}
	case matfile.KindComplex:
		m.Elem = KindComplex
		m.Complexs = make([]complex128, size)
		for p := range m.Complexs {
			m.Complexs[p] = n.Complex[src(p)]
		}
	default:
		m.Elem = KindFloat
		m.Floats = make([]float64, size)
		for p := range m.Floats {
			m.Floats[p] = n.Float[src(p)]
		}
	}
	return m
}
