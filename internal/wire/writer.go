package wire

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/DMA-Software/dma-golso/pkg/amf"
)

// Writer writes primitives to an io.Writer and counts the bytes written so errors
// can report an offset.
type Writer struct {
	w   io.Writer
	n   int
	buf [8]byte
}

// NewWriter creates a writer on top of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Offset returns the number of bytes written so far.
func (w *Writer) Offset() int {
	return w.n
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.n += n
	return n, err
}

// WriteByte writes a single byte
func (w *Writer) WriteByte(b byte) error {
	w.buf[0] = b
	_, err := w.Write(w.buf[:1])
	return err
}

// WriteBytes writes p verbatim.
func (w *Writer) WriteBytes(p []byte) error {
	_, err := w.Write(p)
	return err
}

// WriteU16 writes a big-endian uint16.
func (w *Writer) WriteU16(v uint16) error {
	binary.BigEndian.PutUint16(w.buf[:2], v)
	_, err := w.Write(w.buf[:2])
	return err
}

// WriteI16 writes a big-endian int16.
func (w *Writer) WriteI16(v int16) error {
	return w.WriteU16(uint16(v))
}

// WriteU32 writes a big-endian uint32.
func (w *Writer) WriteU32(v uint32) error {
	binary.BigEndian.PutUint32(w.buf[:4], v)
	_, err := w.Write(w.buf[:4])
	return err
}

// WriteI32 writes a big-endian int32.
func (w *Writer) WriteI32(v int32) error {
	return w.WriteU32(uint32(v))
}

// WriteF64 writes a big-endian IEEE-754 double, preserving NaN payloads.
func (w *Writer) WriteF64(v float64) error {
	binary.BigEndian.PutUint64(w.buf[:8], math.Float64bits(v))
	_, err := w.Write(w.buf[:8])
	return err
}

// WriteU29 writes a 29-bit unsigned integer using variable-length encoding.
// The encoding uses 1-4 bytes where the MSB indicates continuation; values above
// MaxU29 are rejected with ErrValueOutOfRange.
func (w *Writer) WriteU29(v uint32) error {
	n, err := putU29(w.buf[:4], v)
	if err != nil {
		return amf.Errorf(amf.ErrValueOutOfRange, w.n, "U29 value 0x%X", v)
	}
	_, err = w.Write(w.buf[:n])
	return err
}

// WriteI29 writes an AMF3 integer. Callers check the range with FitsInt29 first.
func (w *Writer) WriteI29(v int32) error {
	if !FitsInt29(int64(v)) {
		return amf.Errorf(amf.ErrValueOutOfRange, w.n, "integer %d", v)
	}
	return w.WriteU29(uint32(v) & MaxU29)
}

// FitsInt29 reports whether v can be written with the AMF3 integer marker.
func FitsInt29(v int64) bool {
	return v >= MinInt29 && v <= MaxInt29
}

func putU29(b []byte, v uint32) (int, error) {
	switch {
	case v < 0x80:
		// 0xxxxxxx
		b[0] = byte(v)
		return 1, nil
	case v < 0x4000:
		// 1xxxxxxx 0xxxxxxx
		b[0] = byte(v>>7 | 0x80)
		b[1] = byte(v & 0x7F)
		return 2, nil
	case v < 0x200000:
		// 1xxxxxxx 1xxxxxxx 0xxxxxxx
		b[0] = byte(v>>14 | 0x80)
		b[1] = byte(v>>7&0x7F | 0x80)
		b[2] = byte(v & 0x7F)
		return 3, nil
	case v <= MaxU29:
		// 1xxxxxxx 1xxxxxxx 1xxxxxxx xxxxxxxx
		b[0] = byte(v>>22 | 0x80)
		b[1] = byte(v>>15&0x7F | 0x80)
		b[2] = byte(v>>8&0x7F | 0x80)
		b[3] = byte(v)
		return 4, nil
	default:
		return 0, amf.ErrValueOutOfRange
	}
}
