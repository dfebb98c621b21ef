// Package testutil builds MAT-file fixtures in memory for tests.
package testutil

import (
	"bytes"
	"compress/zlib"
	"strings"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
)

const (
	miINT8       = 1
	miUINT16     = 4
	miINT32      = 5
	miUINT32     = 6
	miDOUBLE     = 9
	miMATRIX     = 14
	miCOMPRESSED = 15
	miUTF8       = 16

	mxCELL   = 1
	mxSTRUCT = 2
	mxCHAR   = 4
	mxSPARSE = 5
	mxDOUBLE = 6
	mxINT32  = 12
	mxUINT8  = 9

	flagComplex = 0x0800
	flagGlobal  = 0x0400
	flagLogical = 0x0200
)

// encoder writes little-endian MAT elements.
type encoder struct {
	buf bytes.Buffer
	w   *kaitai.Writer
}

func newEncoder() *encoder {
	e := &encoder{}
	e.w = kaitai.NewWriter(&e.buf)
	return e
}

func (e *encoder) element(typ uint32, data []byte) {
	_ = e.w.WriteU4le(typ)
	_ = e.w.WriteU4le(uint32(len(data)))
	_ = e.w.WriteBytes(data)
	if pad := (8 - len(data)%8) % 8; pad > 0 {
		_ = e.w.WriteBytes(make([]byte, pad))
	}
}

func (e *encoder) raw(b []byte) {
	_ = e.w.WriteBytes(b)
}

func (e *encoder) bytes() []byte {
	return e.buf.Bytes()
}

func u32s(vals ...uint32) []byte {
	e := newEncoder()
	for _, v := range vals {
		_ = e.w.WriteU4le(v)
	}
	return e.bytes()
}

func i32s(vals ...int32) []byte {
	e := newEncoder()
	for _, v := range vals {
		_ = e.w.WriteS4le(v)
	}
	return e.bytes()
}

func f64s(vals ...float64) []byte {
	e := newEncoder()
	for _, v := range vals {
		_ = e.w.WriteF8le(v)
	}
	return e.bytes()
}

func u16s(vals ...uint16) []byte {
	e := newEncoder()
	for _, v := range vals {
		_ = e.w.WriteU2le(v)
	}
	return e.bytes()
}

// Var is a MAT variable fixture.
type Var interface {
	body() (class uint32, flags uint32, dims []int32, data []byte)
}

type varFunc func() (uint32, uint32, []int32, []byte)

func (f varFunc) body() (uint32, uint32, []int32, []byte) { return f() }

// matrix encodes v as a complete miMATRIX element.
func matrix(name string, v Var, extraFlags uint32) []byte {
	class, flags, dims, data := v.body()
	inner := newEncoder()
	inner.element(miUINT32, u32s(class|flags|extraFlags, 0))
	inner.element(miINT32, i32s(dims...))
	inner.element(miINT8, []byte(name))
	inner.raw(data)

	out := newEncoder()
	out.element(miMATRIX, inner.bytes())
	return out.bytes()
}

func colMajor[T any](rows, cols int, rowMajor []T) []T {
	out := make([]T, len(rowMajor))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[r+c*rows] = rowMajor[r*cols+c]
		}
	}
	return out
}

// Doubles is a rows x cols double array given in row-major order.
func Doubles(rows, cols int, rowMajor ...float64) Var {
	return varFunc(func() (uint32, uint32, []int32, []byte) {
		e := newEncoder()
		e.element(miDOUBLE, f64s(colMajor(rows, cols, rowMajor)...))
		return mxDOUBLE, 0, []int32{int32(rows), int32(cols)}, e.bytes()
	})
}

// Number is a 1x1 double.
func Number(v float64) Var {
	return Doubles(1, 1, v)
}

// Complex is a 1x1 complex double.
func Complex(re, im float64) Var {
	return varFunc(func() (uint32, uint32, []int32, []byte) {
		e := newEncoder()
		e.element(miDOUBLE, f64s(re))
		e.element(miDOUBLE, f64s(im))
		return mxDOUBLE, flagComplex, []int32{1, 1}, e.bytes()
	})
}

// Int32s is a rows x cols int32 array given in row-major order.
func Int32s(rows, cols int, rowMajor ...int32) Var {
	return varFunc(func() (uint32, uint32, []int32, []byte) {
		e := newEncoder()
		e.element(miINT32, i32s(colMajor(rows, cols, rowMajor)...))
		return mxINT32, 0, []int32{int32(rows), int32(cols)}, e.bytes()
	})
}

// Logicals is a rows x cols logical array given in row-major order.
func Logicals(rows, cols int, rowMajor ...bool) Var {
	return varFunc(func() (uint32, uint32, []int32, []byte) {
		vals := colMajor(rows, cols, rowMajor)
		data := make([]byte, len(vals))
		for i, v := range vals {
			if v {
				data[i] = 1
			}
		}
		e := newEncoder()
		e.element(2, data)
		return mxUINT8, flagLogical, []int32{int32(rows), int32(cols)}, e.bytes()
	})
}

// Char is a 1xN char array stored as UTF-8.
func Char(s string) Var {
	return varFunc(func() (uint32, uint32, []int32, []byte) {
		e := newEncoder()
		e.element(miUTF8, []byte(s))
		return mxCHAR, 0, []int32{1, int32(len([]rune(s)))}, e.bytes()
	})
}

// CharRows is an MxN char array stored as UTF-16 code units. Rows shorter
// than the longest are padded with spaces, as MATLAB's char() does.
func CharRows(rows ...string) Var {
	return varFunc(func() (uint32, uint32, []int32, []byte) {
		width := 0
		for _, r := range rows {
			width = max(width, len(r))
		}
		grid := make([]uint16, 0, len(rows)*width)
		for _, r := range rows {
			r += strings.Repeat(" ", width-len(r))
			for _, ch := range r {
				grid = append(grid, uint16(ch))
			}
		}
		e := newEncoder()
		e.element(miUINT16, u16s(colMajor(len(rows), width, grid)...))
		return mxCHAR, 0, []int32{int32(len(rows)), int32(width)}, e.bytes()
	})
}

// Cells is a rows x cols cell array given in row-major order.
func Cells(rows, cols int, rowMajor ...Var) Var {
	return varFunc(func() (uint32, uint32, []int32, []byte) {
		e := newEncoder()
		for _, v := range colMajor(rows, cols, rowMajor) {
			e.raw(matrix("", v, 0))
		}
		return mxCELL, 0, []int32{int32(rows), int32(cols)}, e.bytes()
	})
}

// Struct is a 1x1 struct with the given fields and values.
func Struct(fields []string, values ...Var) Var {
	return StructArray(fields, values)
}

// StructArray is a 1xN struct array; each element lists one value per field.
func StructArray(fields []string, elems ...[]Var) Var {
	return varFunc(func() (uint32, uint32, []int32, []byte) {
		nameLen := 1
		for _, f := range fields {
			nameLen = max(nameLen, len(f)+1)
		}
		names := make([]byte, nameLen*len(fields))
		for i, f := range fields {
			copy(names[i*nameLen:], f)
		}
		e := newEncoder()
		// field name length is written as a small data element
		_ = e.w.WriteU4le(uint32(4)<<16 | miINT32)
		_ = e.w.WriteS4le(int32(nameLen))
		e.element(miINT8, names)
		for _, vals := range elems {
			for _, v := range vals {
				e.raw(matrix("", v, 0))
			}
		}
		return mxSTRUCT, 0, []int32{1, int32(len(elems))}, e.bytes()
	})
}

// Sparse is a rows x cols sparse double matrix in compressed-column form.
func Sparse(rows, cols int, rowIndex, colStart []int32, values ...float64) Var {
	return varFunc(func() (uint32, uint32, []int32, []byte) {
		e := newEncoder()
		e.element(miINT32, i32s(rowIndex...))
		e.element(miINT32, i32s(colStart...))
		e.element(miDOUBLE, f64s(values...))
		return mxSPARSE, 0, []int32{int32(rows), int32(cols)}, e.bytes()
	})
}

// Raw wraps pre-encoded miMATRIX sub-elements, for malformed fixtures.
func Raw(class uint32, dims []int32, data []byte) Var {
	return varFunc(func() (uint32, uint32, []int32, []byte) {
		return class, 0, dims, data
	})
}

type namedVar struct {
	name   string
	v      Var
	global bool
}

// MatFile assembles a Level 5 MAT-file.
type MatFile struct {
	header     string
	vars       []namedVar
	compressed bool
	trailer    []byte
}

// NewMatFile starts a MAT-file with a standard header text.
func NewMatFile() *MatFile {
	return &MatFile{header: "MATLAB 5.0 MAT-file, Platform: GLNXA64, Created on: Mon Jan  1 00:00:00 2024"}
}

// Add appends a variable.
func (m *MatFile) Add(name string, v Var) *MatFile {
	m.vars = append(m.vars, namedVar{name: name, v: v})
	return m
}

// AddGlobal appends a variable flagged global.
func (m *MatFile) AddGlobal(name string, v Var) *MatFile {
	m.vars = append(m.vars, namedVar{name: name, v: v, global: true})
	return m
}

// Compressed makes every variable a zlib-compressed element.
func (m *MatFile) Compressed() *MatFile {
	m.compressed = true
	return m
}

// Trailer appends raw bytes after the last variable.
func (m *MatFile) Trailer(b []byte) *MatFile {
	m.trailer = b
	return m
}

// Bytes encodes the file.
func (m *MatFile) Bytes() []byte {
	e := newEncoder()
	text := []byte(m.header)
	if len(text) < 116 {
		text = append(text, bytes.Repeat([]byte(" "), 116-len(text))...)
	}
	e.raw(text[:116])
	e.raw(make([]byte, 8))
	_ = e.w.WriteU2le(0x0100)
	e.raw([]byte("IM"))

	for _, nv := range m.vars {
		var flags uint32
		if nv.global {
			flags = flagGlobal
		}
		el := matrix(nv.name, nv.v, flags)
		if !m.compressed {
			e.raw(el)
			continue
		}
		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		_, _ = zw.Write(el)
		_ = zw.Close()
		_ = e.w.WriteU4le(miCOMPRESSED)
		_ = e.w.WriteU4le(uint32(z.Len()))
		e.raw(z.Bytes())
	}
	e.raw(m.trailer)
	return e.bytes()
}
