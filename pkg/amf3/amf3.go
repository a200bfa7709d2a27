// Package amf3 provides encoding and decoding of Action Message Format 3 (AMF3) data.
// AMF3 is a compact binary format used by Adobe Flash for serializing ActionScript objects.
//
// Strings, traits and complex values are written once per pass and referenced by
// index afterwards; the decoder hands back the same pointer for every reference to
// an index, which is how shared and cyclic object graphs survive a round trip.
package amf3

import (
	"bytes"

	"github.com/DMA-Software/dma-golso/internal/wire"
	"github.com/DMA-Software/dma-golso/pkg/amf"
)

// AMF3 Data Types as defined in the AMF3 specification
//
//goland:noinspection ALL
const (
	AMF3TypeUndefined    = 0x00
	AMF3TypeNull         = 0x01
	AMF3TypeFalse        = 0x02
	AMF3TypeTrue         = 0x03
	AMF3TypeInteger      = 0x04
	AMF3TypeDouble       = 0x05
	AMF3TypeString       = 0x06
	AMF3TypeXMLDocument  = 0x07
	AMF3TypeDate         = 0x08
	AMF3TypeArray        = 0x09
	AMF3TypeObject       = 0x0A
	AMF3TypeXML          = 0x0B
	AMF3TypeByteArray    = 0x0C
	AMF3TypeVectorInt    = 0x0D
	AMF3TypeVectorUInt   = 0x0E
	AMF3TypeVectorDouble = 0x0F
	AMF3TypeVectorObject = 0x10
	AMF3TypeDictionary   = 0x11
)

// DefaultMaxDepth bounds composite nesting when Options.MaxDepth is zero.
const DefaultMaxDepth = 128

// ExternalCodec reads and writes the body of one externalizable class.
// ReadExternal is called after the traits have been read; WriteExternal after
// they have been written.
type ExternalCodec interface {
	ReadExternal(d *AMF3Decoder, traits *amf.Traits) (amf.External, error)
	WriteExternal(e *AMF3Encoder, obj *amf.Object) error
}

// Options configures a decode or encode pass. The zero value is usable.
type Options struct {
	// MaxDepth bounds composite nesting. Zero means DefaultMaxDepth.
	MaxDepth int
	// Externals maps class names of externalizable traits to their codecs.
	Externals map[string]ExternalCodec
	// RawExternals makes the decoder capture the rest of the input as an
	// amf.RawExternal when it meets an externalizable class with no codec.
	RawExternals bool
}

// Register installs c as the codec of className.
func (o *Options) Register(className string, c ExternalCodec) {
	if o.Externals == nil {
		o.Externals = make(map[string]ExternalCodec)
	}
	o.Externals[className] = c
}

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

// Decode decodes a single AMF3 value from data.
func Decode(data []byte, opts Options) (amf.Value, error) {
	return NewAMF3Decoder(wire.NewReader(data), opts).Decode()
}

// Encode encodes v as a single AMF3 value.
func Encode(v amf.Value, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewAMF3Encoder(&buf, opts).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
