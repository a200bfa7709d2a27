// Package wire implements the primitive encodings shared by the AMF codecs:
// big-endian fixed-width integers, IEEE-754 doubles and AMF3's U29 variable-length
// integers.
package wire

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/DMA-Software/dma-golso/pkg/amf"
)

// Largest value representable by a U29.
const MaxU29 = 0x1FFFFFFF

// Range of the AMF3 integer marker.
const (
	MinInt29 = -1 << 28
	MaxInt29 = 1<<28 - 1
)

// Reader is a cursor over an in-memory buffer, bounded by a limit that starts at
// the end of the buffer. Every short read reports ErrTruncatedInput with the
// offset at which the read started.
type Reader struct {
	buf   []byte
	pos   int
	limit int
}

// NewReader creates a reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{buf: data, limit: len(data)}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.pos
}

// SetLimit moves the limit to n, clamped between the current offset and the end
// of the buffer.
func (r *Reader) SetLimit(n int) {
	if n > len(r.buf) {
		n = len(r.buf)
	}
	if n < r.pos {
		n = r.pos
	}
	r.limit = n
}

// Remaining returns the number of bytes left before the limit.
func (r *Reader) Remaining() int {
	return r.limit - r.pos
}

func (r *Reader) truncated(want int) error {
	return amf.Errorf(amf.ErrTruncatedInput, r.pos, "need %d bytes, have %d", want, r.Remaining())
}

// Need fails with ErrTruncatedInput unless n more bytes are available. Decoders
// call it before allocating anything sized by a length read from the input.
func (r *Reader) Need(n int) error {
	if n < 0 || n > r.Remaining() {
		return r.truncated(n)
	}
	return nil
}

// NeedItems is Need for count items of at least size bytes each.
func (r *Reader) NeedItems(count uint32, size int) error {
	if uint64(count)*uint64(size) > uint64(r.Remaining()) {
		return amf.Errorf(amf.ErrTruncatedInput, r.pos, "%d items of %d bytes, have %d bytes", count, size, r.Remaining())
	}
	return nil
}

// ReadByte reads a single byte
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= r.limit {
		return 0, r.truncated(1)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes returns the next n bytes. The result aliases the underlying buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.Need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadRest returns every byte up to the limit.
func (r *Reader) ReadRest() []byte {
	b := r.buf[r.pos:r.limit]
	r.pos = r.limit
	return b
}

// ReadU16 reads a big-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadI16 reads a big-endian int16.
func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

// ReadU32 reads a big-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadI32 reads a big-endian int32.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadF64 reads a big-endian IEEE-754 double.
func (r *Reader) ReadF64() (float64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// ReadU29 reads an AMF3 variable-length unsigned integer.
// The first three bytes carry 7 bits each and flag continuation in their top bit;
// a fourth byte, if present, carries 8 bits.
func (r *Reader) ReadU29() (uint32, error) {
	start := r.pos
	var result uint32
	for i := 0; i < 4; i++ {
		b, err := r.ReadByte()
		if err != nil {
			r.pos = start
			return 0, amf.Errorf(amf.ErrTruncatedInput, start, "U29 ended after %d bytes", i)
		}
		if i == 3 {
			return result<<8 | uint32(b), nil
		}
		result = result<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return result, nil
		}
	}
	return result, nil
}

// ReadI29 reads an AMF3 integer: a U29 holding a 29-bit two's complement value.
func (r *Reader) ReadI29() (int32, error) {
	v, err := r.ReadU29()
	if err != nil {
		return 0, err
	}
	return SignExtend29(v), nil
}

// ReadUTF8 reads n bytes and checks that they form valid UTF-8.
func (r *Reader) ReadUTF8(n int) (string, error) {
	start := r.pos
	b, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", amf.Errorf(amf.ErrInvalidUTF8, start, "%d byte string", n)
	}
	return string(b), nil
}

// SignExtend29 interprets the low 29 bits of v as a signed integer.
func SignExtend29(v uint32) int32 {
	v &= MaxU29
	if v&0x10000000 != 0 {
		return int32(v) - 0x20000000
	}
	return int32(v)
}
