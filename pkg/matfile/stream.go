package matfile

import (
	"bytes"
	"fmt"
	"io"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
)

// stream reads MAT primitives in the byte order declared by the file header.
type stream struct {
	*kaitai.Stream
	big bool
}

func newStream(data []byte, big bool) *stream {
	return &stream{Stream: kaitai.NewStream(bytes.NewReader(data)), big: big}
}

func (s *stream) u2() (uint16, error) {
	if s.big {
		return s.ReadU2be()
	}
	return s.ReadU2le()
}

func (s *stream) u4() (uint32, error) {
	if s.big {
		return s.ReadU4be()
	}
	return s.ReadU4le()
}

func (s *stream) u8() (uint64, error) {
	if s.big {
		return s.ReadU8be()
	}
	return s.ReadU8le()
}

func (s *stream) s2() (int16, error) {
	if s.big {
		return s.ReadS2be()
	}
	return s.ReadS2le()
}

func (s *stream) s4() (int32, error) {
	if s.big {
		return s.ReadS4be()
	}
	return s.ReadS4le()
}

func (s *stream) s8() (int64, error) {
	if s.big {
		return s.ReadS8be()
	}
	return s.ReadS8le()
}

func (s *stream) f4() (float32, error) {
	if s.big {
		return s.ReadF4be()
	}
	return s.ReadF4le()
}

func (s *stream) f8() (float64, error) {
	if s.big {
		return s.ReadF8be()
	}
	return s.ReadF8le()
}

func (s *stream) remaining() (int64, error) {
	size, err := s.Size()
	if err != nil {
		return 0, err
	}
	pos, err := s.Pos()
	if err != nil {
		return 0, err
	}
	return size - pos, nil
}

// element is one tagged data element with its payload.
type element struct {
	typ  DataType
	data []byte
}

// element reads the next data element. Small data elements pack up to four
// payload bytes into the tag; full elements are padded to 8 bytes unless
// compressed.
func (s *stream) element() (element, error) {
	word, err := s.u4()
	if err != nil {
		return element{}, fmt.Errorf("reading tag: %w", err)
	}
	if word>>16 != 0 {
		n := int(word >> 16)
		if n > 4 {
			return element{}, fmt.Errorf("small data element claims %d bytes", n)
		}
		b, err := s.ReadBytes(4)
		if err != nil {
			return element{}, fmt.Errorf("reading small element payload: %w", err)
		}
		return element{typ: DataType(word & 0xffff), data: b[:n]}, nil
	}

	typ := DataType(word)
	n, err := s.u4()
	if err != nil {
		return element{}, fmt.Errorf("reading %s size: %w", typ, err)
	}
	left, err := s.remaining()
	if err != nil {
		return element{}, err
	}
	if int64(n) > left {
		return element{}, fmt.Errorf("%s element needs %d bytes, %d left: %w", typ, n, left, io.ErrUnexpectedEOF)
	}
	data, err := s.ReadBytes(int(n))
	if err != nil {
		return element{}, fmt.Errorf("reading %s payload: %w", typ, err)
	}
	if typ != miCOMPRESSED {
		if pad := (8 - int64(n)%8) % 8; pad > 0 {
			left, err := s.remaining()
			if err != nil {
				return element{}, err
			}
			if _, err := s.ReadBytes(int(min(pad, left))); err != nil {
				return element{}, fmt.Errorf("skipping padding: %w", err)
			}
		}
	}
	return element{typ: typ, data: data}, nil
}

// numbers holds a decoded numeric payload in the widest Go type of its
// storage class.
type numbers struct {
	f []float64
	i []int64
	u []uint64
}

func (n numbers) len() int {
	return len(n.f) + len(n.i) + len(n.u)
}

func (n numbers) float(k int) float64 {
	switch {
	case n.f != nil:
		return n.f[k]
	case n.i != nil:
		return float64(n.i[k])
	}
	return float64(n.u[k])
}

func (n numbers) int(k int) int64 {
	switch {
	case n.i != nil:
		return n.i[k]
	case n.f != nil:
		return int64(n.f[k])
	}
	return int64(n.u[k])
}

func (n numbers) uint(k int) uint64 {
	switch {
	case n.u != nil:
		return n.u[k]
	case n.f != nil:
		return uint64(n.f[k])
	}
	return uint64(n.i[k])
}

func (n numbers) ints() []int {
	out := make([]int, n.len())
	for k := range out {
		out[k] = int(n.int(k))
	}
	return out
}

// decodeNumbers reads every value of a numeric element. MATLAB may store an
// array in a narrower type than its class, e.g. a double array of small
// integers as miUINT8.
func decodeNumbers(el element, big bool) (numbers, error) {
	w := el.typ.width()
	if w == 0 {
		return numbers{}, fmt.Errorf("%s is not a numeric element", el.typ)
	}
	if len(el.data)%w != 0 {
		return numbers{}, fmt.Errorf("%s payload of %d bytes is not a multiple of %d", el.typ, len(el.data), w)
	}
	count := len(el.data) / w
	s := newStream(el.data, big)

	var (
		out numbers
		err error
	)
	switch el.typ {
	case miDOUBLE, miSINGLE:
		out.f = make([]float64, count)
		for k := range out.f {
			if el.typ == miDOUBLE {
				out.f[k], err = s.f8()
			} else {
				var v float32
				v, err = s.f4()
				out.f[k] = float64(v)
			}
			if err != nil {
				return numbers{}, err
			}
		}
	case miINT8, miINT16, miINT32, miINT64:
		out.i = make([]int64, count)
		for k := range out.i {
			switch el.typ {
			case miINT8:
				var v int8
				v, err = s.ReadS1()
				out.i[k] = int64(v)
			case miINT16:
				var v int16
				v, err = s.s2()
				out.i[k] = int64(v)
			case miINT32:
				var v int32
				v, err = s.s4()
				out.i[k] = int64(v)
			default:
				out.i[k], err = s.s8()
			}
			if err != nil {
				return numbers{}, err
			}
		}
	case miUINT8, miUINT16, miUINT32, miUINT64, miUTF8, miUTF16, miUTF32:
		out.u = make([]uint64, count)
		for k := range out.u {
			switch w {
			case 1:
				var v uint8
				v, err = s.ReadU1()
				out.u[k] = uint64(v)
			case 2:
				var v uint16
				v, err = s.u2()
				out.u[k] = uint64(v)
			case 4:
				var v uint32
				v, err = s.u4()
				out.u[k] = uint64(v)
			default:
				out.u[k], err = s.u8()
			}
			if err != nil {
				return numbers{}, err
			}
		}
	default:
		return numbers{}, fmt.Errorf("%s is not a numeric element", el.typ)
	}
	return out, nil
}
