package value

import "fmt"

// Matrix is a homogeneous rank-1 or rank-2 array stored row-major. Exactly
// one data slice is populated, chosen by Elem. A rank-1 matrix of n elements
// behaves as 1 x n for At, Rows and Cols.
type Matrix struct {
	Shape    []int
	Elem     ScalarKind
	Floats   []float64
	Ints     []int64
	Uints    []uint64
	Bools    []bool
	Complexs []complex128
}

// FloatMatrix returns a rows x cols float matrix over row-major data.
func FloatMatrix(rows, cols int, data []float64) Matrix {
	return Matrix{Shape: []int{rows, cols}, Elem: KindFloat, Floats: data}
}

// FloatVector returns a rank-1 float matrix.
func FloatVector(data []float64) Matrix {
	return Matrix{Shape: []int{len(data)}, Elem: KindFloat, Floats: data}
}

// IntMatrix returns a rows x cols integer matrix over row-major data.
func IntMatrix(rows, cols int, data []int64) Matrix {
	return Matrix{Shape: []int{rows, cols}, Elem: KindInt, Ints: data}
}

// Rank is 1 or 2.
func (m Matrix) Rank() int {
	return len(m.Shape)
}

// Len returns the element count.
func (m Matrix) Len() int {
	n := 1
	for _, d := range m.Shape {
		n *= d
	}
	return n
}

// Rows returns the row count; 1 for rank-1 matrices.
func (m Matrix) Rows() int {
	if m.Rank() == 2 {
		return m.Shape[0]
	}
	return 1
}

// Cols returns the column count; the length for rank-1 matrices.
func (m Matrix) Cols() int {
	if m.Rank() == 2 {
		return m.Shape[1]
	}
	if m.Rank() == 1 {
		return m.Shape[0]
	}
	return 0
}

// At returns the element at row r, column c.
func (m Matrix) At(r, c int) Scalar {
	return m.Elem1(r*m.Cols() + c)
}

// Elem1 returns the i-th element in row-major order.
func (m Matrix) Elem1(i int) Scalar {
	switch m.Elem {
	case KindInt:
		return Int(m.Ints[i])
	case KindUint:
		return Uint(m.Uints[i])
	case KindBool:
		return Bool(m.Bools[i])
	case KindComplex:
		return Complex(m.Complexs[i])
	}
	return Float(m.Floats[i])
}

// Row returns row r as a rank-1 matrix sharing m's storage.
func (m Matrix) Row(r int) Matrix {
	cols := m.Cols()
	lo, hi := r*cols, (r+1)*cols
	row := Matrix{Shape: []int{cols}, Elem: m.Elem}
	switch m.Elem {
	case KindInt:
		row.Ints = m.Ints[lo:hi]
	case KindUint:
		row.Uints = m.Uints[lo:hi]
	case KindBool:
		row.Bools = m.Bools[lo:hi]
	case KindComplex:
		row.Complexs = m.Complexs[lo:hi]
	default:
		row.Floats = m.Floats[lo:hi]
	}
	return row
}

// Validate checks that the shape matches the populated data slice.
func (m Matrix) Validate() error {
	if r := m.Rank(); r != 1 && r != 2 {
		return fmt.Errorf("matrix rank %d", r)
	}
	var n int
	switch m.Elem {
	case KindInt:
		n = len(m.Ints)
	case KindUint:
		n = len(m.Uints)
	case KindBool:
		n = len(m.Bools)
	case KindComplex:
		n = len(m.Complexs)
	case KindFloat:
		n = len(m.Floats)
	default:
		return fmt.Errorf("matrix element kind %d", m.Elem)
	}
	if n != m.Len() {
		return fmt.Errorf("matrix shape %v holds %d elements, data has %d", m.Shape, m.Len(), n)
	}
	return nil
}
