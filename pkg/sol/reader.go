package sol

import (
	"bytes"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/DMA-Software/dma-golso/internal/wire"
	"github.com/DMA-Software/dma-golso/pkg/amf"
	"github.com/DMA-Software/dma-golso/pkg/amf0"
	"github.com/DMA-Software/dma-golso/pkg/amf3"
)

// Reader decodes a SOL body one element at a time. Elements decoded before a
// failure stay available through Elements.
//
// With amf3.Options.RawExternals, an element holding an unknown externalizable
// class ends the body: its raw bytes run up to the final padding byte and take
// any later elements with them.
type Reader struct {
	r        *wire.Reader
	end      int
	header   Header
	elements []Element
	err      error

	readName  func() (string, error)
	readValue func() (amf.Value, error)
}

// NewReader parses the header of data and prepares to decode its body.
func NewReader(data []byte, opts Options) (*Reader, error) {
	r := wire.NewReader(data)
	rd := &Reader{r: r, end: len(data)}

	magic, err := r.ReadBytes(len(formatMarker))
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, formatMarker) {
		return nil, amf.Errorf(ErrBadMagic, 0, "format marker % X", magic)
	}

	length, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if err := checkLength(length, len(data), opts); err != nil {
		return nil, err
	}

	sig, err := r.ReadBytes(len(signature))
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(sig, signature) {
		return nil, amf.Errorf(ErrBadMagic, lengthFieldEnd, "signature %q", sig)
	}

	reserved, err := r.ReadBytes(len(rd.header.Reserved))
	if err != nil {
		return nil, err
	}
	copy(rd.header.Reserved[:], reserved)

	nameLen, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	if nameLen > 0 {
		if rd.header.Name, err = r.ReadUTF8(int(nameLen)); err != nil {
			return nil, err
		}
	}

	padding, err := r.ReadBytes(len(rd.header.Padding))
	if err != nil {
		return nil, err
	}
	copy(rd.header.Padding[:], padding)

	versionAt := r.Offset()
	version, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	rd.header.Version = amf.Version(version)
	if !rd.header.Version.Valid() {
		return nil, amf.Errorf(ErrBadMagic, versionAt, "AMF version %d", version)
	}

	if rd.header.Version == amf.AMF3 {
		dec := amf3.NewAMF3Decoder(r, opts.Options)
		rd.readName, rd.readValue = dec.ReadString, dec.Decode
	} else {
		dec := amf0.NewAMF0Decoder(r, opts.Options)
		rd.readName, rd.readValue = dec.ReadString, dec.Decode
	}
	return rd, nil
}

// checkLength compares the declared length with the bytes after the length
// field. A short buffer is reported as truncated input, extra bytes as a length
// mismatch. With TolerateLength both are logged and decoding goes on over the
// bytes present.
func checkLength(declared uint32, total int, opts Options) error {
	actual := total - lengthFieldEnd
	if int64(declared) == int64(actual) {
		return nil
	}
	if opts.TolerateLength {
		opts.logger().WithFields(logrus.Fields{
			"declared": declared,
			"actual":   actual,
		}).Warn("SOL length field disagrees with file size")
		return nil
	}
	if int64(declared) > int64(actual) {
		return amf.Errorf(amf.ErrTruncatedInput, 2, "declared length %d, have %d bytes", declared, actual)
	}
	return amf.Errorf(ErrLengthMismatch, 2, "declared length %d, have %d bytes", declared, actual)
}

// Header returns the parsed header.
func (rd *Reader) Header() Header {
	return rd.header
}

// Next decodes the next element. It returns io.EOF once the body is exhausted.
// After an error every further call returns the same error.
func (rd *Reader) Next() (Element, error) {
	if rd.err != nil {
		return Element{}, rd.err
	}
	if rd.r.Remaining() == 0 {
		rd.err = io.EOF
		return Element{}, rd.err
	}

	e, err := rd.next()
	if err != nil {
		rd.err = err
		return Element{}, err
	}
	rd.elements = append(rd.elements, e)
	return e, nil
}

func (rd *Reader) next() (Element, error) {
	name, err := rd.readName()
	if err != nil {
		return Element{}, err
	}
	// The final byte is the last element's padding and never part of a value.
	rd.r.SetLimit(rd.end - 1)
	v, err := rd.readValue()
	rd.r.SetLimit(rd.end)
	if err != nil {
		return Element{}, err
	}

	at := rd.r.Offset()
	pad, err := rd.r.ReadByte()
	if err != nil {
		return Element{}, err
	}
	if pad != 0x00 {
		return Element{}, amf.Errorf(amf.ErrInvalidMarker, at, "element padding 0x%02X", pad)
	}
	return Element{Name: name, Value: v}, nil
}

// Elements returns the elements decoded so far.
func (rd *Reader) Elements() []Element {
	return rd.elements
}
