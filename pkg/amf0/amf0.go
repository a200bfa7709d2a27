// Package amf0 implements Action Message Format 0 encoding and decoding.
//
// AMF0 has no integer, vector, dictionary or byte-array types. Values that need
// them are carried by the AVM+ marker (0x11), which switches the rest of that one
// value to AMF3 with reference tables of its own.
package amf0

import (
	"bytes"

	"github.com/DMA-Software/dma-golso/internal/wire"
	"github.com/DMA-Software/dma-golso/pkg/amf"
	"github.com/DMA-Software/dma-golso/pkg/amf3"
)

// AMF0 Data Types as defined in the AMF0 specification
//
//goland:noinspection ALL
const (
	AMF0TypeNumber      = 0x00
	AMF0TypeBoolean     = 0x01
	AMF0TypeString      = 0x02
	AMF0TypeObject      = 0x03
	AMF0TypeMovieClip   = 0x04 // Reserved, not supported
	AMF0TypeNull        = 0x05
	AMF0TypeUndefined   = 0x06
	AMF0TypeReference   = 0x07
	AMF0TypeEcmaArray   = 0x08
	AMF0TypeObjectEnd   = 0x09
	AMF0TypeStrictArray = 0x0A
	AMF0TypeDate        = 0x0B
	AMF0TypeLongString  = 0x0C
	AMF0TypeUnsupported = 0x0D
	AMF0TypeRecordset   = 0x0E // Reserved, not supported
	AMF0TypeXMLDocument = 0x0F
	AMF0TypeTypedObject = 0x10
	AMF0TypeAVMPlus     = 0x11 // Switch to AMF3
)

// Largest reference index the 2-byte Reference marker can carry.
const maxReference = 0xFFFF

// Options configures a pass. The AMF3 settings apply to values embedded with
// the AVM+ marker; MaxDepth also bounds AMF0 nesting.
type Options = amf3.Options

// Decode decodes a single AMF0 value from data.
func Decode(data []byte, opts Options) (amf.Value, error) {
	return NewAMF0Decoder(wire.NewReader(data), opts).Decode()
}

// Encode encodes v as a single AMF0 value.
func Encode(v amf.Value, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewAMF0Encoder(&buf, opts).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func maxDepth(o Options) int {
	if o.MaxDepth <= 0 {
		return amf3.DefaultMaxDepth
	}
	return o.MaxDepth
}
