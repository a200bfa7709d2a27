package amf0

import (
	"io"
	"strconv"

	"github.com/DMA-Software/dma-golso/internal/reftable"
	"github.com/DMA-Software/dma-golso/internal/wire"
	"github.com/DMA-Software/dma-golso/pkg/amf"
	"github.com/DMA-Software/dma-golso/pkg/amf3"
)

// AMF0Encoder provides encoding of amf values to AMF0 format.
// The object reference table spans every Encode call.
//
//goland:noinspection ALL
type AMF0Encoder struct {
	w       *wire.Writer
	opts    Options
	objects *reftable.Encoder[amf.Value]
	depth   int
}

// NewAMF0Encoder creates a new AMF0 encoder that writes to the provided writer
func NewAMF0Encoder(w io.Writer, opts Options) *AMF0Encoder {
	ww, ok := w.(*wire.Writer)
	if !ok {
		ww = wire.NewWriter(w)
	}
	return &AMF0Encoder{
		w:       ww,
		opts:    opts,
		objects: reftable.NewEncoder[amf.Value](),
	}
}

// Encode encodes one value to AMF0 format
func (e *AMF0Encoder) Encode(v amf.Value) error {
	return e.encodeValue(v)
}

// WriteString writes a marker-less AMF0 string.
func (e *AMF0Encoder) WriteString(s string) error {
	return e.writeUTF8(s)
}

func (e *AMF0Encoder) enter() error {
	e.depth++
	if e.depth > maxDepth(e.opts) {
		return amf.Errorf(amf.ErrNestingTooDeep, e.w.Offset(), "limit %d", maxDepth(e.opts))
	}
	return nil
}

func (e *AMF0Encoder) leave() {
	e.depth--
}

func (e *AMF0Encoder) encodeValue(value amf.Value) error {
	switch v := value.(type) {
	case nil, amf.Null:
		return e.w.WriteByte(AMF0TypeNull)
	case amf.Undefined:
		return e.w.WriteByte(AMF0TypeUndefined)
	case amf.Unsupported:
		return e.w.WriteByte(AMF0TypeUnsupported)
	case amf.Boolean:
		var b byte
		if v {
			b = 1
		}
		return e.w.WriteBytes([]byte{AMF0TypeBoolean, b})
	case amf.Number:
		return e.encodeNumber(float64(v))
	case amf.Integer:
		return e.encodeNumber(float64(v))
	case amf.String:
		return e.encodeString(string(v))
	case amf.XMLDocument:
		if err := e.w.WriteByte(AMF0TypeXMLDocument); err != nil {
			return err
		}
		return e.writeLongUTF8(string(v))
	case amf.Date:
		if err := e.w.WriteByte(AMF0TypeDate); err != nil {
			return err
		}
		if err := e.w.WriteF64(v.Millis); err != nil {
			return err
		}
		return e.w.WriteI16(v.TZOffset)
	case *amf.Object:
		if v == nil {
			return e.w.WriteByte(AMF0TypeNull)
		}
		if needsAMF3(v) {
			return e.encodeAVMPlus(v)
		}
		return e.encodeObject(v)
	case *amf.Array:
		if v == nil {
			return e.w.WriteByte(AMF0TypeNull)
		}
		return e.encodeArray(v)
	case *amf.Vector:
		if v == nil {
			return e.w.WriteByte(AMF0TypeNull)
		}
		return e.encodeAVMPlus(v)
	case *amf.Dictionary:
		if v == nil {
			return e.w.WriteByte(AMF0TypeNull)
		}
		return e.encodeAVMPlus(v)
	case amf.XMLString, amf.ByteArray:
		return e.encodeAVMPlus(v)
	default:
		return amf.Errorf(amf.ErrValueOutOfRange, e.w.Offset(), "unsupported value type %T", value)
	}
}

// needsAMF3 reports whether obj has a shape AMF0 cannot express: sealed
// members, a non-dynamic class or an externalizable payload.
func needsAMF3(obj *amf.Object) bool {
	t := obj.Traits
	if t == nil {
		return false
	}
	return t.Externalizable || !t.Dynamic || len(t.Members) > 0 || len(obj.Sealed) > 0
}

func (e *AMF0Encoder) encodeNumber(v float64) error {
	if err := e.w.WriteByte(AMF0TypeNumber); err != nil {
		return err
	}
	return e.w.WriteF64(v)
}

func (e *AMF0Encoder) encodeString(s string) error {
	if len(s) > 0xFFFF {
		if err := e.w.WriteByte(AMF0TypeLongString); err != nil {
			return err
		}
		return e.writeLongUTF8(s)
	}
	if err := e.w.WriteByte(AMF0TypeString); err != nil {
		return err
	}
	return e.writeUTF8(s)
}

func (e *AMF0Encoder) writeUTF8(s string) error {
	if len(s) > 0xFFFF {
		return amf.Errorf(amf.ErrValueOutOfRange, e.w.Offset(), "string of %d bytes exceeds u16 length", len(s))
	}
	if err := e.w.WriteU16(uint16(len(s))); err != nil {
		return err
	}
	return e.w.WriteBytes([]byte(s))
}

func (e *AMF0Encoder) writeLongUTF8(s string) error {
	if uint64(len(s)) > 0xFFFFFFFF {
		return amf.Errorf(amf.ErrValueOutOfRange, e.w.Offset(), "string of %d bytes exceeds u32 length", len(s))
	}
	if err := e.w.WriteU32(uint32(len(s))); err != nil {
		return err
	}
	return e.w.WriteBytes([]byte(s))
}

// encodeAVMPlus writes v in AMF3 behind the 0x11 marker. The embedded value gets
// fresh AMF3 tables and takes no slot in the AMF0 object table.
func (e *AMF0Encoder) encodeAVMPlus(v amf.Value) error {
	if err := e.w.WriteByte(AMF0TypeAVMPlus); err != nil {
		return err
	}
	nested := amf3.NewAMF3Encoder(e.w, e.opts)
	nested.SetDepth(e.depth)
	return nested.Encode(v)
}

// reference writes a Reference marker when c was already sent and its index
// fits in two bytes. Otherwise c is given a fresh slot, mirroring the decoder,
// and the caller writes it inline.
func (e *AMF0Encoder) reference(c amf.Value) (bool, error) {
	if idx, ok := e.objects.Lookup(c); ok && idx <= maxReference {
		if err := e.w.WriteByte(AMF0TypeReference); err != nil {
			return false, err
		}
		return true, e.w.WriteU16(uint16(idx))
	} else if ok {
		e.objects.Reserve()
		return false, nil
	}
	e.objects.ResolveOrRegister(c)
	return false, nil
}

func (e *AMF0Encoder) encodeObject(obj *amf.Object) error {
	if done, err := e.reference(obj); done || err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	if obj.Traits != nil && obj.Traits.ClassName != "" {
		if err := e.w.WriteByte(AMF0TypeTypedObject); err != nil {
			return err
		}
		if err := e.writeUTF8(obj.Traits.ClassName); err != nil {
			return err
		}
	} else if err := e.w.WriteByte(AMF0TypeObject); err != nil {
		return err
	}

	for _, m := range obj.Dynamic {
		if err := e.writeProperty(m.Name, m.Value); err != nil {
			return err
		}
	}
	return e.writeObjectEnd()
}

// encodeArray writes an ECMA array when arr is marked ECMA or has associative
// entries, and a strict array otherwise. A marked array keeps its declared count.
func (e *AMF0Encoder) encodeArray(arr *amf.Array) error {
	if done, err := e.reference(arr); done || err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	if !arr.ECMA && len(arr.Associative) == 0 {
		if err := e.w.WriteByte(AMF0TypeStrictArray); err != nil {
			return err
		}
		if err := e.w.WriteU32(uint32(len(arr.Dense))); err != nil {
			return err
		}
		for _, item := range arr.Dense {
			if err := e.encodeValue(item); err != nil {
				return err
			}
		}
		return nil
	}

	if err := e.w.WriteByte(AMF0TypeEcmaArray); err != nil {
		return err
	}
	count := uint32(len(arr.Dense) + len(arr.Associative))
	if arr.ECMA {
		count = arr.Length
	}
	if err := e.w.WriteU32(count); err != nil {
		return err
	}
	for i, item := range arr.Dense {
		if err := e.writeProperty(strconv.Itoa(i), item); err != nil {
			return err
		}
	}
	for _, m := range arr.Associative {
		if err := e.writeProperty(m.Name, m.Value); err != nil {
			return err
		}
	}
	return e.writeObjectEnd()
}

func (e *AMF0Encoder) writeProperty(name string, v amf.Value) error {
	if name == "" {
		return amf.Errorf(amf.ErrValueOutOfRange, e.w.Offset(), "empty property name")
	}
	if err := e.writeUTF8(name); err != nil {
		return err
	}
	return e.encodeValue(v)
}

func (e *AMF0Encoder) writeObjectEnd() error {
	return e.w.WriteBytes([]byte{0x00, 0x00, AMF0TypeObjectEnd})
}
