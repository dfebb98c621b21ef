package matfile

import (
	"fmt"
	"math"
	"strings"
)

// DataType is the type code of a MAT data element tag.
type DataType uint32

const (
	miINT8       DataType = 1
	miUINT8      DataType = 2
	miINT16      DataType = 3
	miUINT16     DataType = 4
	miINT32      DataType = 5
	miUINT32     DataType = 6
	miSINGLE     DataType = 7
	miDOUBLE     DataType = 9
	miINT64      DataType = 12
	miUINT64     DataType = 13
	miMATRIX     DataType = 14
	miCOMPRESSED DataType = 15
	miUTF8       DataType = 16
	miUTF16      DataType = 17
	miUTF32      DataType = 18
)

func (t DataType) String() string {
	switch t {
	case miINT8:
		return "miINT8"
	case miUINT8:
		return "miUINT8"
	case miINT16:
		return "miINT16"
	case miUINT16:
		return "miUINT16"
	case miINT32:
		return "miINT32"
	case miUINT32:
		return "miUINT32"
	case miSINGLE:
		return "miSINGLE"
	case miDOUBLE:
		return "miDOUBLE"
	case miINT64:
		return "miINT64"
	case miUINT64:
		return "miUINT64"
	case miMATRIX:
		return "miMATRIX"
	case miCOMPRESSED:
		return "miCOMPRESSED"
	case miUTF8:
		return "miUTF8"
	case miUTF16:
		return "miUTF16"
	case miUTF32:
		return "miUTF32"
	}
	return fmt.Sprintf("DataType(%d)", uint32(t))
}

// width returns the byte width of one value of t, or 0 for non-numeric types.
func (t DataType) width() int {
	switch t {
	case miINT8, miUINT8, miUTF8:
		return 1
	case miINT16, miUINT16, miUTF16:
		return 2
	case miINT32, miUINT32, miSINGLE, miUTF32:
		return 4
	case miDOUBLE, miINT64, miUINT64:
		return 8
	}
	return 0
}

// Class is the MATLAB array class stored in the array flags sub-element.
type Class uint8

const (
	ClassCell     Class = 1
	ClassStruct   Class = 2
	ClassObject   Class = 3
	ClassChar     Class = 4
	ClassSparse   Class = 5
	ClassDouble   Class = 6
	ClassSingle   Class = 7
	ClassInt8     Class = 8
	ClassUint8    Class = 9
	ClassInt16    Class = 10
	ClassUint16   Class = 11
	ClassInt32    Class = 12
	ClassUint32   Class = 13
	ClassInt64    Class = 14
	ClassUint64   Class = 15
	ClassFunction Class = 16
	ClassOpaque   Class = 17
)

var classNames = map[Class]string{
	ClassCell:     "cell",
	ClassStruct:   "struct",
	ClassObject:   "object",
	ClassChar:     "char",
	ClassSparse:   "sparse",
	ClassDouble:   "double",
	ClassSingle:   "single",
	ClassInt8:     "int8",
	ClassUint8:    "uint8",
	ClassInt16:    "int16",
	ClassUint16:   "uint16",
	ClassInt32:    "int32",
	ClassUint32:   "uint32",
	ClassInt64:    "int64",
	ClassUint64:   "uint64",
	ClassFunction: "function_handle",
	ClassOpaque:   "opaque",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

func (c Class) numeric() bool {
	return c >= ClassDouble && c <= ClassUint64
}

// Kind is the element kind of a numeric array.
type Kind int

const (
	KindFloat Kind = iota
	KindInt
	KindUint
	KindBool
	KindComplex
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindBool:
		return "bool"
	case KindComplex:
		return "complex"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Record is one top-level variable of a MAT-file.
type Record struct {
	Name   string
	Value  any
	Global bool
}

// File is a decoded MAT-file.
type File struct {
	Header    string
	Version   uint16
	BigEndian bool
	Records   []Record

	// Trailing is set when the file ends inside a data element. Records
	// decoded before that point are intact.
	Trailing error
}

// Lookup returns the record with the given name.
func (f *File) Lookup(name string) (Record, bool) {
	for _, r := range f.Records {
		if r.Name == name {
			return r, true
		}
	}
	return Record{}, false
}

// Struct is a 1x1 MATLAB struct or object. Fields keep file order.
type Struct struct {
	ClassName string // set for objects
	Fields    []string
	Values    []any
}

// Field returns the value stored under name.
func (s *Struct) Field(name string) (any, bool) {
	for i, f := range s.Fields {
		if f == name {
			return s.Values[i], true
		}
	}
	return nil, false
}

// Cell is a heterogeneous collection: a cell array, a struct array, or a
// multi-row char array. Rank > 1 collections nest along the first axis.
type Cell struct {
	Elems []any
}

// Numeric is a homogeneous numeric or logical array with singleton
// dimensions removed. Data is stored column-major, as in the file; exactly
// one of the data slices is populated according to Kind.
type Numeric struct {
	Class   Class
	Kind    Kind
	Dims    []int
	Float   []float64
	Int     []int64
	Uint    []uint64
	Bool    []bool
	Complex []complex128
}

// Len returns the number of elements.
func (n *Numeric) Len() int {
	switch n.Kind {
	case KindInt:
		return len(n.Int)
	case KindUint:
		return len(n.Uint)
	case KindBool:
		return len(n.Bool)
	case KindComplex:
		return len(n.Complex)
	}
	return len(n.Float)
}

// Gather builds an array with the given dims whose k-th column-major element
// is the element of n at flat index index(k).
func (n *Numeric) Gather(dims []int, index func(k int) int) *Numeric {
	size := product(dims)
	out := &Numeric{Class: n.Class, Kind: n.Kind, Dims: dims}
	switch n.Kind {
	case KindInt:
		out.Int = make([]int64, size)
		for k := range out.Int {
			out.Int[k] = n.Int[index(k)]
		}
	case KindUint:
		out.Uint = make([]uint64, size)
		for k := range out.Uint {
			out.Uint[k] = n.Uint[index(k)]
		}
	case KindBool:
		out.Bool = make([]bool, size)
		for k := range out.Bool {
			out.Bool[k] = n.Bool[index(k)]
		}
	case KindComplex:
		out.Complex = make([]complex128, size)
		for k := range out.Complex {
			out.Complex[k] = n.Complex[index(k)]
		}
	default:
		out.Float = make([]float64, size)
		for k := range out.Float {
			out.Float[k] = n.Float[index(k)]
		}
	}
	return out
}

// maxDense bounds the element count Sparse.Dense will allocate.
const maxDense = 1 << 24

// Sparse is a 2-D sparse matrix in compressed-column form.
type Sparse struct {
	Rows, Cols int
	Kind       Kind
	RowIndex   []int // ir
	ColStart   []int // jc, len Cols+1
	Float      []float64
	Bool       []bool
	Complex    []complex128
}

// Dense expands the matrix into a column-major Numeric array.
func (s *Sparse) Dense() (*Numeric, error) {
	if size, ok := checkedProduct([]int{s.Rows, s.Cols}); !ok || size > maxDense {
		return nil, fmt.Errorf("sparse %dx%d matrix too large to densify", s.Rows, s.Cols)
	}
	if len(s.ColStart) != s.Cols+1 {
		return nil, fmt.Errorf("sparse column index has %d entries, want %d", len(s.ColStart), s.Cols+1)
	}
	n := &Numeric{Class: ClassSparse, Kind: s.Kind, Dims: []int{s.Rows, s.Cols}}
	size := s.Rows * s.Cols
	switch s.Kind {
	case KindBool:
		n.Bool = make([]bool, size)
	case KindComplex:
		n.Complex = make([]complex128, size)
	default:
		n.Float = make([]float64, size)
	}
	for c := 0; c < s.Cols; c++ {
		for k := s.ColStart[c]; k < s.ColStart[c+1]; k++ {
			if k < 0 || k >= len(s.RowIndex) {
				return nil, fmt.Errorf("sparse entry %d out of range", k)
			}
			r := s.RowIndex[k]
			if r < 0 || r >= s.Rows {
				return nil, fmt.Errorf("sparse row index %d out of range", r)
			}
			at := r + c*s.Rows
			switch s.Kind {
			case KindBool:
				n.Bool[at] = k < len(s.Bool) && s.Bool[k]
			case KindComplex:
				if k < len(s.Complex) {
					n.Complex[at] = s.Complex[k]
				}
			default:
				if k < len(s.Float) {
					n.Float[at] = s.Float[k]
				}
			}
		}
	}
	return n, nil
}

// Opaque stands in for a value the reader keeps but does not interpret:
// function handles, MCOS objects, or a variable that failed to decode.
type Opaque struct {
	Class  Class
	Reason string
}

func (o *Opaque) String() string {
	if o.Reason != "" {
		return fmt.Sprintf("<%s: %s>", o.Class, o.Reason)
	}
	return fmt.Sprintf("<%s>", o.Class)
}

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// checkedProduct multiplies dims, reporting false for a negative dimension
// or an overflowing product.
func checkedProduct(dims []int) (int, bool) {
	n := 1
	for _, d := range dims {
		if d < 0 {
			return 0, false
		}
		if d != 0 && n > math.MaxInt/d {
			return 0, false
		}
		n *= d
	}
	return n, true
}

func squeezeDims(dims []int) []int {
	out := make([]int, 0, len(dims))
	for _, d := range dims {
		if d != 1 {
			out = append(out, d)
		}
	}
	return out
}

func trimNull(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
