package matfile

import "fmt"

// raw converts a decoded array into the value handed to callers, with
// singleton dimensions squeezed out and 1x1 arrays reduced to scalars.
func (a *array) raw() any {
	switch {
	case a.class.numeric():
		return a.numeric()
	case a.class == ClassChar:
		return a.chars()
	case a.class == ClassCell:
		elems := make([]any, len(a.elems))
		for i, e := range a.elems {
			elems[i] = e.raw()
		}
		return nest(a.dims, elems)
	case a.class == ClassStruct, a.class == ClassObject:
		elems := make([]any, len(a.fields))
		for i, vals := range a.fields {
			st := &Struct{ClassName: a.className, Fields: a.fieldNames, Values: make([]any, len(vals))}
			for j, v := range vals {
				st.Values[j] = v.raw()
			}
			elems[i] = st
		}
		if len(elems) == 1 {
			return elems[0]
		}
		return nest(a.dims, elems)
	case a.class == ClassSparse:
		return a.sparse()
	}
	return &Opaque{Class: a.class}
}

func (a *array) kind() Kind {
	switch {
	case a.complex:
		return KindComplex
	case a.logical:
		return KindBool
	}
	switch a.class {
	case ClassInt8, ClassInt16, ClassInt32, ClassInt64:
		return KindInt
	case ClassUint8, ClassUint16, ClassUint32, ClassUint64:
		return KindUint
	}
	return KindFloat
}

func (a *array) numeric() any {
	size := product(a.dims)
	n := &Numeric{Class: a.class, Kind: a.kind(), Dims: squeezeDims(a.dims)}
	switch n.Kind {
	case KindComplex:
		n.Complex = make([]complex128, size)
		for k := range n.Complex {
			n.Complex[k] = complex(a.real.float(k), a.imag.float(k))
		}
	case KindBool:
		n.Bool = make([]bool, size)
		for k := range n.Bool {
			n.Bool[k] = a.real.uint(k) != 0
		}
	case KindInt:
		n.Int = make([]int64, size)
		for k := range n.Int {
			n.Int[k] = a.real.int(k)
		}
	case KindUint:
		n.Uint = make([]uint64, size)
		for k := range n.Uint {
			n.Uint[k] = a.real.uint(k)
		}
	default:
		n.Float = make([]float64, size)
		for k := range n.Float {
			n.Float[k] = a.real.float(k)
		}
	}
	if size == 1 && len(n.Dims) == 0 {
		return n.scalar(0)
	}
	return n
}

// scalar returns element k as a plain Go value.
func (n *Numeric) scalar(k int) any {
	switch n.Kind {
	case KindComplex:
		return n.Complex[k]
	case KindBool:
		return n.Bool[k]
	case KindInt:
		return n.Int[k]
	case KindUint:
		return n.Uint[k]
	}
	return n.Float[k]
}

// chars returns a 1xN array as one string and any array with more than one
// row as a Cell of row strings, so Nx1 gives N one-character strings.
func (a *array) chars() any {
	if len(a.dims) < 2 || a.dims[0] <= 1 || len(a.text) != product(a.dims) {
		return string(a.text)
	}
	rows := a.dims[0]
	cols := len(a.text) / rows
	lines := make([]any, rows)
	buf := make([]rune, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			buf[c] = a.text[r+c*rows]
		}
		lines[r] = string(buf)
	}
	return &Cell{Elems: lines}
}

func (a *array) sparse() any {
	sp := &Sparse{
		Rows:     a.dims[0],
		Cols:     a.dims[1],
		Kind:     KindFloat,
		RowIndex: a.rowIndex,
		ColStart: a.colStart,
	}
	nnz := a.real.len()
	switch {
	case a.complex:
		sp.Kind = KindComplex
		sp.Complex = make([]complex128, nnz)
		for k := range sp.Complex {
			sp.Complex[k] = complex(a.real.float(k), a.imag.float(k))
		}
	case a.logical:
		sp.Kind = KindBool
		sp.Bool = make([]bool, nnz)
		for k := range sp.Bool {
			sp.Bool[k] = a.real.float(k) != 0
		}
	default:
		sp.Float = make([]float64, nnz)
		for k := range sp.Float {
			sp.Float[k] = a.real.float(k)
		}
	}
	return sp
}

// nest arranges column-major elems with the given dims into Cells. After
// squeezing, rank 0 and 1 give a flat Cell; higher ranks nest along the first
// axis.
func nest(dims []int, elems []any) *Cell {
	sq := squeezeDims(dims)
	if len(sq) <= 1 {
		return &Cell{Elems: elems}
	}
	stride := sq[0]
	rest := sq[1:]
	size := product(rest)
	out := &Cell{Elems: make([]any, stride)}
	for i := 0; i < stride; i++ {
		sub := make([]any, size)
		for k := range sub {
			sub[k] = elems[i+stride*k]
		}
		out.Elems[i] = nest(rest, sub)
	}
	return out
}

func (n *Numeric) String() string {
	return fmt.Sprintf("%s array %v", n.Class, n.Dims)
}
