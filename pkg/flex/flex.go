// Package flex provides codecs for the externalizable collection classes of the
// Flex messaging framework. Each class wraps a single AMF3 value.
package flex

import (
	"github.com/DMA-Software/dma-golso/pkg/amf"
	"github.com/DMA-Software/dma-golso/pkg/amf3"
)

// Flex class names.
const (
	ArrayCollection = "flex.messaging.io.ArrayCollection"
	ArrayList       = "flex.messaging.io.ArrayList"
	ObjectProxy     = "flex.messaging.io.ObjectProxy"
)

// wrapper reads and writes one AMF3 value of the given kind as the class body.
type wrapper struct {
	payload amf.Kind
}

func (w wrapper) ReadExternal(d *amf3.AMF3Decoder, traits *amf.Traits) (amf.External, error) {
	start := d.Reader().Offset()
	v, err := d.Decode()
	if err != nil {
		return nil, err
	}
	if v.Kind() != w.payload {
		return nil, amf.Errorf(amf.ErrInvalidMarker, start, "%s body is %v, want %v", traits.ClassName, v.Kind(), w.payload)
	}
	return amf.WrappedExternal{Payload: v}, nil
}

func (w wrapper) WriteExternal(e *amf3.AMF3Encoder, obj *amf.Object) error {
	ext, ok := obj.External.(amf.WrappedExternal)
	if !ok || ext.Payload == nil || ext.Payload.Kind() != w.payload {
		return amf.Errorf(amf.ErrValueOutOfRange, e.Writer().Offset(), "%s needs a wrapped %v", obj.Traits.ClassName, w.payload)
	}
	return e.Encode(ext.Payload)
}

// Codecs returns the Flex class table keyed by class name.
func Codecs() map[string]amf3.ExternalCodec {
	return map[string]amf3.ExternalCodec{
		ArrayCollection: wrapper{payload: amf.KindArray},
		ArrayList:       wrapper{payload: amf.KindArray},
		ObjectProxy:     wrapper{payload: amf.KindObject},
	}
}

// Install registers every Flex codec in opts.
func Install(opts *amf3.Options) {
	for name, c := range Codecs() {
		opts.Register(name, c)
	}
}

// NewArrayCollection returns an ArrayCollection wrapping items.
func NewArrayCollection(items ...amf.Value) *amf.Object {
	return newWrapped(ArrayCollection, amf.NewArray(items...))
}

// NewObjectProxy returns an ObjectProxy wrapping obj.
func NewObjectProxy(obj *amf.Object) *amf.Object {
	return newWrapped(ObjectProxy, obj)
}

func newWrapped(className string, payload amf.Value) *amf.Object {
	return &amf.Object{
		Traits:   &amf.Traits{ClassName: className, Externalizable: true},
		External: amf.WrappedExternal{Payload: payload},
	}
}
