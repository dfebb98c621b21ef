package matfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

const (
	headerSize     = 128
	headerTextSize = 116

	flagComplex = 0x0800
	flagGlobal  = 0x0400
	flagLogical = 0x0200
)

// Names of the records synthesized from the file header.
const (
	HeaderRecord  = "__header__"
	VersionRecord = "__version__"
	GlobalsRecord = "__globals__"
)

// Open reads and decodes the MAT-file at path.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading MAT-file: %w", err)
	}
	return Decode(data)
}

// Decode parses a Level 5 MAT-file. Header problems are returned as errors;
// a variable that cannot be decoded becomes an *Opaque record instead, so one
// bad variable never hides the others.
func Decode(data []byte) (*File, error) {
	if len(data) < headerSize {
		return nil, &DecodeError{Reason: fmt.Sprintf("file is %d bytes, shorter than the %d-byte header", len(data), headerSize)}
	}
	text := strings.TrimRight(trimNull(data[:headerTextSize]), " ")
	if strings.HasPrefix(text, "MATLAB 7.3") {
		return nil, fmt.Errorf("%w: v7.3 files are HDF5 containers", ErrUnsupportedVersion)
	}

	var big bool
	switch string(data[126:128]) {
	case "IM":
	case "MI":
		big = true
	default:
		if data[0] == 0 || data[1] == 0 || data[2] == 0 || data[3] == 0 {
			return nil, fmt.Errorf("%w: Level 4 file", ErrUnsupportedVersion)
		}
		return nil, &DecodeError{Offset: 126, Reason: fmt.Sprintf("bad endian indicator %q", data[126:128])}
	}

	s := newStream(data, big)
	if _, err := s.Seek(124, io.SeekStart); err != nil {
		return nil, &DecodeError{Offset: 124, Reason: "seeking to version", Err: err}
	}
	version, err := s.u2()
	if err != nil {
		return nil, &DecodeError{Offset: 124, Reason: "reading version", Err: err}
	}
	if _, err := s.Seek(headerSize, io.SeekStart); err != nil {
		return nil, &DecodeError{Offset: headerSize, Reason: "seeking past header", Err: err}
	}

	f := &File{Header: text, Version: version, BigEndian: big}
	var vars []Record
	for {
		eof, err := s.EOF()
		if err != nil || eof {
			break
		}
		pos, _ := s.Pos()
		el, err := s.element()
		if err != nil {
			f.Trailing = &DecodeError{Offset: pos, Reason: "truncated data element", Err: err}
			break
		}
		rec := decodeRecord(el, big)
		if rec.Name == "" {
			rec.Name = fmt.Sprintf("var%d", len(vars))
		}
		vars = append(vars, rec)
	}

	globals := &Cell{}
	for _, r := range vars {
		if r.Global {
			globals.Elems = append(globals.Elems, r.Name)
		}
	}
	f.Records = append([]Record{
		{Name: HeaderRecord, Value: text},
		{Name: VersionRecord, Value: "1.0"},
		{Name: GlobalsRecord, Value: globals},
	}, vars...)
	return f, nil
}

func decodeRecord(el element, big bool) (rec Record) {
	defer func() {
		if r := recover(); r != nil {
			rec = Record{Name: rec.Name, Value: &Opaque{Reason: fmt.Sprintf("decoder panic: %v", r)}}
		}
	}()
	if el.typ == miCOMPRESSED {
		inflated, err := kaitai.ProcessZlib(el.data)
		if err != nil {
			return Record{Value: &Opaque{Reason: "inflating compressed element: " + err.Error()}}
		}
		inner, err := newStream(inflated, big).element()
		if err != nil {
			return Record{Value: &Opaque{Reason: "compressed element: " + err.Error()}}
		}
		el = inner
	}
	if el.typ != miMATRIX {
		return Record{Value: &Opaque{Reason: fmt.Sprintf("unexpected top-level %s element", el.typ)}}
	}
	a, err := decodeArray(el.data, big)
	if err != nil {
		out := Record{Value: &Opaque{Reason: err.Error()}}
		if a != nil {
			out.Name = a.name
			out.Global = a.global
			out.Value.(*Opaque).Class = a.class
		}
		return out
	}
	return Record{Name: a.name, Value: a.raw(), Global: a.global}
}

// array is a decoded miMATRIX element before squeezing.
type array struct {
	class   Class
	complex bool
	global  bool
	logical bool
	dims    []int
	name    string

	real, imag numbers
	text       []rune

	elems []*array // cell elements, column-major

	className  string
	fieldNames []string
	fields     [][]*array // per struct element, per field

	rowIndex, colStart []int
}

// decodeArray parses the payload of a miMATRIX element. When err is non-nil
// the returned array, if any, carries whatever header fields were read.
func decodeArray(payload []byte, big bool) (*array, error) {
	if len(payload) == 0 {
		return &array{class: ClassDouble, dims: []int{0, 0}, real: numbers{f: []float64{}}}, nil
	}
	s := newStream(payload, big)

	flagsEl, err := s.element()
	if err != nil {
		return nil, fmt.Errorf("array flags: %w", err)
	}
	if flagsEl.typ != miUINT32 || len(flagsEl.data) < 8 {
		return nil, fmt.Errorf("array flags: unexpected %s of %d bytes", flagsEl.typ, len(flagsEl.data))
	}
	flagNums, err := decodeNumbers(element{typ: miUINT32, data: flagsEl.data[:8]}, big)
	if err != nil {
		return nil, fmt.Errorf("array flags: %w", err)
	}
	flags := flagNums.u[0]
	a := &array{
		class:   Class(flags & 0xff),
		complex: flags&flagComplex != 0,
		global:  flags&flagGlobal != 0,
		logical: flags&flagLogical != 0,
	}

	if a.class == ClassOpaque {
		nameEl, err := s.element()
		if err != nil {
			return a, fmt.Errorf("opaque name: %w", err)
		}
		a.name = trimNull(nameEl.data)
		return a, nil
	}

	dimsEl, err := s.element()
	if err != nil {
		return a, fmt.Errorf("dimensions: %w", err)
	}
	dims, err := decodeNumbers(dimsEl, big)
	if err != nil {
		return a, fmt.Errorf("dimensions: %w", err)
	}
	a.dims = dims.ints()
	for _, d := range a.dims {
		if d < 0 {
			return a, fmt.Errorf("negative dimension in %v", a.dims)
		}
	}

	nameEl, err := s.element()
	if err != nil {
		return a, fmt.Errorf("array name: %w", err)
	}
	a.name = trimNull(nameEl.data)

	size, ok := checkedProduct(a.dims)
	if !ok {
		return a, fmt.Errorf("dimensions %v overflow", a.dims)
	}
	// every stored element takes at least one byte; sparse dims are logical
	if a.class != ClassSparse && size > len(payload) {
		return a, fmt.Errorf("dimensions %v describe %d elements, more than a %d-byte array holds", a.dims, size, len(payload))
	}

	switch {
	case a.class.numeric():
		err = a.decodeNumeric(s, big)
	case a.class == ClassChar:
		err = a.decodeChar(s, big)
	case a.class == ClassCell:
		err = a.decodeCell(s, big)
	case a.class == ClassStruct, a.class == ClassObject:
		err = a.decodeStruct(s, big)
	case a.class == ClassSparse:
		err = a.decodeSparse(s, big)
	case a.class == ClassFunction:
		// Function handles are kept as opaque values.
	default:
		err = fmt.Errorf("unknown array class %d", uint8(a.class))
	}
	if err != nil {
		return a, fmt.Errorf("%s array %q: %w", a.class, a.name, err)
	}
	return a, nil
}

func (a *array) decodeNumeric(s *stream, big bool) error {
	want := product(a.dims)
	var err error
	if a.real, err = readNumbers(s, big, want); err != nil {
		return fmt.Errorf("real part: %w", err)
	}
	if a.complex {
		if a.imag, err = readNumbers(s, big, want); err != nil {
			return fmt.Errorf("imaginary part: %w", err)
		}
	}
	return nil
}

func readNumbers(s *stream, big bool, want int) (numbers, error) {
	el, err := s.element()
	if err != nil {
		return numbers{}, err
	}
	n, err := decodeNumbers(el, big)
	if err != nil {
		return numbers{}, err
	}
	if n.len() < want {
		return numbers{}, fmt.Errorf("%d values for %d elements", n.len(), want)
	}
	return n, nil
}

func (a *array) decodeChar(s *stream, big bool) error {
	if product(a.dims) == 0 {
		return nil
	}
	el, err := s.element()
	if err != nil {
		return err
	}
	var order unicode.Endianness = unicode.LittleEndian
	if big {
		order = unicode.BigEndian
	}
	var dec *encoding.Decoder
	switch el.typ {
	case miUTF8:
		a.text = []rune(string(el.data))
		return nil
	case miUTF16, miUINT16, miINT16:
		dec = unicode.UTF16(order, unicode.IgnoreBOM).NewDecoder()
	case miUTF32:
		utf32Order := utf32.LittleEndian
		if big {
			utf32Order = utf32.BigEndian
		}
		dec = utf32.UTF32(utf32Order, utf32.IgnoreBOM).NewDecoder()
	case miINT8, miUINT8:
		a.text = make([]rune, len(el.data))
		for i, b := range el.data {
			a.text[i] = rune(b)
		}
		return nil
	default:
		return fmt.Errorf("char data stored as %s", el.typ)
	}
	out, err := dec.Bytes(el.data)
	if err != nil {
		return fmt.Errorf("decoding %s text: %w", el.typ, err)
	}
	a.text = []rune(string(out))
	return nil
}

func (a *array) decodeCell(s *stream, big bool) error {
	n := product(a.dims)
	if err := needTags(s, n); err != nil {
		return err
	}
	a.elems = make([]*array, 0, n)
	for i := 0; i < n; i++ {
		child, err := readMatrix(s, big)
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		a.elems = append(a.elems, child)
	}
	return nil
}

func (a *array) decodeStruct(s *stream, big bool) error {
	if a.class == ClassObject {
		el, err := s.element()
		if err != nil {
			return fmt.Errorf("class name: %w", err)
		}
		a.className = trimNull(el.data)
	}
	lenEl, err := s.element()
	if err != nil {
		return fmt.Errorf("field name length: %w", err)
	}
	lens, err := decodeNumbers(lenEl, big)
	if err != nil || lens.len() != 1 {
		return fmt.Errorf("field name length: bad %s element", lenEl.typ)
	}
	nameLen := int(lens.int(0))
	namesEl, err := s.element()
	if err != nil {
		return fmt.Errorf("field names: %w", err)
	}
	if nameLen <= 0 {
		if len(namesEl.data) > 0 {
			return fmt.Errorf("field name length %d", nameLen)
		}
	} else {
		for off := 0; off+nameLen <= len(namesEl.data); off += nameLen {
			a.fieldNames = append(a.fieldNames, trimNull(namesEl.data[off:off+nameLen]))
		}
	}

	n := product(a.dims)
	if len(a.fieldNames) > 0 {
		if err := needTags(s, n*len(a.fieldNames)); err != nil {
			return err
		}
	}
	a.fields = make([][]*array, 0, n)
	for i := 0; i < n; i++ {
		vals := make([]*array, len(a.fieldNames))
		for j, field := range a.fieldNames {
			child, err := readMatrix(s, big)
			if err != nil {
				return fmt.Errorf("element %d field %q: %w", i, field, err)
			}
			vals[j] = child
		}
		a.fields = append(a.fields, vals)
	}
	return nil
}

func (a *array) decodeSparse(s *stream, big bool) error {
	if len(a.dims) != 2 {
		return fmt.Errorf("sparse array with %d dimensions", len(a.dims))
	}
	left, err := s.remaining()
	if err != nil {
		return err
	}
	if int64(a.dims[1]) >= left {
		return fmt.Errorf("%d sparse columns, %d bytes left", a.dims[1], left)
	}
	ir, err := readNumbers(s, big, 0)
	if err != nil {
		return fmt.Errorf("row indices: %w", err)
	}
	jc, err := readNumbers(s, big, a.dims[1]+1)
	if err != nil {
		return fmt.Errorf("column starts: %w", err)
	}
	a.rowIndex = ir.ints()
	a.colStart = jc.ints()[:a.dims[1]+1]
	nnz := a.colStart[a.dims[1]]
	if a.real, err = readNumbers(s, big, nnz); err != nil {
		return fmt.Errorf("values: %w", err)
	}
	if a.complex {
		if a.imag, err = readNumbers(s, big, nnz); err != nil {
			return fmt.Errorf("imaginary values: %w", err)
		}
	}
	return nil
}

// needTags checks that n sub-elements, 8 bytes each at least, fit in what
// is left of s.
func needTags(s *stream, n int) error {
	left, err := s.remaining()
	if err != nil {
		return err
	}
	if int64(n) > left/8 {
		return fmt.Errorf("%d elements cannot fit in %d bytes", n, left)
	}
	return nil
}

func readMatrix(s *stream, big bool) (*array, error) {
	el, err := s.element()
	if err != nil {
		return nil, err
	}
	if el.typ != miMATRIX {
		return nil, fmt.Errorf("expected miMATRIX, found %s", el.typ)
	}
	child, err := decodeArray(el.data, big)
	if err != nil {
		return nil, err
	}
	return child, nil
}

// IsNotExist reports whether err means the MAT-file is absent.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
