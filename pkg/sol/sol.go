// Package sol reads and writes Local Shared Object files: a small header naming
// the object and its AMF version, followed by a sequence of named AMF values.
package sol

import (
	"bytes"
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/DMA-Software/dma-golso/internal/wire"
	"github.com/DMA-Software/dma-golso/pkg/amf"
	"github.com/DMA-Software/dma-golso/pkg/amf0"
	"github.com/DMA-Software/dma-golso/pkg/amf3"
)

var (
	// ErrBadMagic is returned when the format marker or "TCSO" signature is wrong.
	ErrBadMagic = errors.New("bad SOL magic")
	// ErrLengthMismatch is returned when the declared body length is shorter than
	// the data that follows it.
	ErrLengthMismatch = errors.New("SOL length mismatch")
)

var (
	formatMarker = []byte{0x00, 0xBF}
	signature    = []byte("TCSO")

	// DefaultReserved is written when Header.Reserved is all zero.
	DefaultReserved = [6]byte{0x00, 0x04, 0x00, 0x00, 0x00, 0x00}
)

// Bytes before the length field, which the declared length does not count.
const lengthFieldEnd = 6

// Header is the fixed part of a SOL file.
type Header struct {
	Name    string
	Version amf.Version
	// Reserved and Padding are echoed verbatim on encode.
	Reserved [6]byte
	Padding  [3]byte
}

// Element is one named top-level value.
type Element struct {
	Name  string
	Value amf.Value
}

// Document is a decoded SOL file.
type Document struct {
	Header
	Body []Element
}

// Get returns the value of the first element called name.
func (d *Document) Get(name string) (amf.Value, bool) {
	for _, e := range d.Body {
		if e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

// Options configures SOL decoding and encoding.
type Options struct {
	amf3.Options
	// TolerateLength logs a warning and decodes the bytes present when the
	// declared length disagrees with the input, instead of failing.
	TolerateLength bool
	// Logger receives warnings. Nil means logrus.StandardLogger().
	Logger logrus.FieldLogger
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}

// Decode decodes a complete SOL file.
func Decode(data []byte, opts Options) (*Document, error) {
	r, err := NewReader(data, opts)
	if err != nil {
		return nil, err
	}
	for {
		_, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return &Document{Header: r.Header(), Body: r.Elements()}, nil
}

// Encode writes doc as a SOL file. The body is buffered so the length field can
// be filled in.
func Encode(doc *Document, opts Options) ([]byte, error) {
	if !doc.Version.Valid() {
		return nil, amf.Errorf(amf.ErrValueOutOfRange, 0, "AMF version %d", doc.Version)
	}
	if len(doc.Name) > 0xFFFF {
		return nil, amf.Errorf(amf.ErrValueOutOfRange, 0, "name of %d bytes", len(doc.Name))
	}

	var body bytes.Buffer
	if err := encodeBody(wire.NewWriter(&body), doc, opts); err != nil {
		return nil, err
	}

	reserved := doc.Reserved
	if reserved == ([6]byte{}) {
		reserved = DefaultReserved
	}

	var out bytes.Buffer
	w := wire.NewWriter(&out)
	length := len(signature) + len(reserved) + 2 + len(doc.Name) + len(doc.Padding) + 1 + body.Len()
	if uint64(length) > 0xFFFFFFFF {
		return nil, amf.Errorf(amf.ErrValueOutOfRange, 0, "body of %d bytes", length)
	}

	if err := w.WriteBytes(formatMarker); err != nil {
		return nil, err
	}
	if err := w.WriteU32(uint32(length)); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(signature); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(reserved[:]); err != nil {
		return nil, err
	}
	if err := w.WriteU16(uint16(len(doc.Name))); err != nil {
		return nil, err
	}
	if err := w.WriteBytes([]byte(doc.Name)); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(doc.Padding[:]); err != nil {
		return nil, err
	}
	if err := w.WriteByte(byte(doc.Version)); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(body.Bytes()); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// encodeBody writes the elements with one encoder, so reference tables span the
// whole body.
func encodeBody(w *wire.Writer, doc *Document, opts Options) error {
	var writeName func(string) error
	var writeValue func(amf.Value) error
	if doc.Version == amf.AMF3 {
		enc := amf3.NewAMF3Encoder(w, opts.Options)
		writeName, writeValue = enc.WriteString, enc.Encode
	} else {
		enc := amf0.NewAMF0Encoder(w, opts.Options)
		writeName, writeValue = enc.WriteString, enc.Encode
	}

	for i, e := range doc.Body {
		if endsBody(e.Value) && i != len(doc.Body)-1 {
			return amf.Errorf(amf.ErrValueOutOfRange, w.Offset(), "element %q holds a raw external and must be last", e.Name)
		}
		if err := writeName(e.Name); err != nil {
			return err
		}
		if err := writeValue(e.Value); err != nil {
			return err
		}
		if err := w.WriteByte(0x00); err != nil {
			return err
		}
	}
	return nil
}

// endsBody reports whether v is an object carrying raw external bytes. Such bytes
// have no length on the wire, so on decode they reach to the end of the body.
func endsBody(v amf.Value) bool {
	obj, ok := v.(*amf.Object)
	if !ok || obj == nil {
		return false
	}
	_, raw := obj.External.(amf.RawExternal)
	return raw
}
