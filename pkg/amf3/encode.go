package amf3

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/DMA-Software/dma-golso/internal/reftable"
	"github.com/DMA-Software/dma-golso/internal/wire"
	"github.com/DMA-Software/dma-golso/pkg/amf"
)

// maxInlineLength is the largest length that fits a U29 header next to its flag bit.
const maxInlineLength = wire.MaxU29 >> 1

// AMF3Encoder provides encoding of amf values to AMF3 format.
// Like the decoder, its reference tables span every Encode call.
//
//goland:noinspection ALL
type AMF3Encoder struct {
	w       *wire.Writer
	opts    Options
	strings *reftable.Encoder[string]
	traits  *reftable.Encoder[string]
	objects *reftable.Encoder[amf.Value]
	depth   int
}

// NewAMF3Encoder creates a new AMF3 encoder that writes to the provided writer
func NewAMF3Encoder(w io.Writer, opts Options) *AMF3Encoder {
	ww, ok := w.(*wire.Writer)
	if !ok {
		ww = wire.NewWriter(w)
	}
	return &AMF3Encoder{
		w:       ww,
		opts:    opts,
		strings: reftable.NewEncoder[string](),
		traits:  reftable.NewEncoder[string](),
		objects: reftable.NewEncoder[amf.Value](),
	}
}

// SetDepth sets the nesting depth the encoder starts from.
func (e *AMF3Encoder) SetDepth(depth int) {
	e.depth = depth
}

// Writer returns the underlying writer.
func (e *AMF3Encoder) Writer() *wire.Writer {
	return e.w
}

// Encode encodes one value to AMF3 format
func (e *AMF3Encoder) Encode(v amf.Value) error {
	return e.encodeValue(v)
}

// WriteString writes a marker-less AMF3 string, sharing the string reference
// table with the values.
func (e *AMF3Encoder) WriteString(s string) error {
	return e.writeString(s)
}

func (e *AMF3Encoder) enter() error {
	e.depth++
	if e.depth > e.opts.maxDepth() {
		return amf.Errorf(amf.ErrNestingTooDeep, e.w.Offset(), "limit %d", e.opts.maxDepth())
	}
	return nil
}

func (e *AMF3Encoder) leave() {
	e.depth--
}

func (e *AMF3Encoder) outOfRange(format string, args ...interface{}) error {
	return amf.Errorf(amf.ErrValueOutOfRange, e.w.Offset(), format, args...)
}

// encodeValue encodes any amf value to AMF3 format
func (e *AMF3Encoder) encodeValue(value amf.Value) error {
	if isNilComposite(value) {
		return e.w.WriteByte(AMF3TypeNull)
	}
	switch v := value.(type) {
	case nil, amf.Null:
		return e.w.WriteByte(AMF3TypeNull)
	case amf.Undefined, amf.Unsupported:
		return e.w.WriteByte(AMF3TypeUndefined)
	case amf.Boolean:
		if v {
			return e.w.WriteByte(AMF3TypeTrue)
		}
		return e.w.WriteByte(AMF3TypeFalse)
	case amf.Integer:
		// AMF3 integers are 29-bit, use double for larger values
		if !wire.FitsInt29(int64(v)) {
			return e.encodeDouble(float64(v))
		}
		if err := e.w.WriteByte(AMF3TypeInteger); err != nil {
			return err
		}
		return e.w.WriteI29(int32(v))
	case amf.Number:
		return e.encodeDouble(float64(v))
	case amf.String:
		if err := e.w.WriteByte(AMF3TypeString); err != nil {
			return err
		}
		return e.writeString(string(v))
	case amf.XMLDocument:
		return e.encodeInlineBytes(AMF3TypeXMLDocument, []byte(v))
	case amf.XMLString:
		return e.encodeInlineBytes(AMF3TypeXML, []byte(v))
	case amf.ByteArray:
		return e.encodeInlineBytes(AMF3TypeByteArray, v)
	case amf.Date:
		return e.encodeDate(v)
	case *amf.Array:
		return e.encodeArray(v)
	case *amf.Object:
		return e.encodeObject(v)
	case *amf.Vector:
		return e.encodeVector(v)
	case *amf.Dictionary:
		return e.encodeDictionary(v)
	default:
		return e.outOfRange("no AMF3 form for %T", value)
	}
}

// isNilComposite reports whether v is a typed nil pointer, which is written as null.
func isNilComposite(v amf.Value) bool {
	switch c := v.(type) {
	case *amf.Object:
		return c == nil
	case *amf.Array:
		return c == nil
	case *amf.Vector:
		return c == nil
	case *amf.Dictionary:
		return c == nil
	}
	return false
}

func (e *AMF3Encoder) encodeDouble(v float64) error {
	if err := e.w.WriteByte(AMF3TypeDouble); err != nil {
		return err
	}
	return e.w.WriteF64(v)
}

// writeString writes a string with reference table support.
// Empty strings are never added to the reference table.
func (e *AMF3Encoder) writeString(s string) error {
	if s == "" {
		return e.w.WriteU29(1)
	}
	if len(s) > maxInlineLength {
		return e.outOfRange("string of %d bytes", len(s))
	}
	if idx, reused := e.strings.ResolveOrRegister(s); reused {
		return e.writeReference(idx)
	}
	if err := e.w.WriteU29(uint32(len(s))<<1 | 1); err != nil {
		return err
	}
	return e.w.WriteBytes([]byte(s))
}

// writeReference writes a reference header: index << 1 with the inline bit clear.
func (e *AMF3Encoder) writeReference(idx uint32) error {
	if idx > maxInlineLength {
		return e.outOfRange("reference index %d", idx)
	}
	return e.w.WriteU29(idx << 1)
}

// writeInline writes an inline header: (n << 1) | 1.
func (e *AMF3Encoder) writeInline(n int) error {
	if n > maxInlineLength {
		return e.outOfRange("length %d", n)
	}
	return e.w.WriteU29(uint32(n)<<1 | 1)
}

// encodeInlineBytes writes XML and byte arrays. They occupy an object-table slot
// but have no identity in the value model, so they are always written inline.
func (e *AMF3Encoder) encodeInlineBytes(marker byte, b []byte) error {
	if err := e.w.WriteByte(marker); err != nil {
		return err
	}
	e.objects.Reserve()
	if err := e.writeInline(len(b)); err != nil {
		return err
	}
	return e.w.WriteBytes(b)
}

func (e *AMF3Encoder) encodeDate(v amf.Date) error {
	if err := e.w.WriteByte(AMF3TypeDate); err != nil {
		return err
	}
	e.objects.Reserve()
	if err := e.w.WriteU29(1); err != nil {
		return err
	}
	return e.w.WriteF64(v.Millis)
}

// registerComposite writes a reference if c was already written in this pass and
// reports whether it did so.
func (e *AMF3Encoder) registerComposite(c amf.Value) (bool, error) {
	idx, reused := e.objects.ResolveOrRegister(c)
	if !reused {
		return false, nil
	}
	return true, e.writeReference(idx)
}

// encodeArray encodes an array with dense and associative parts
func (e *AMF3Encoder) encodeArray(arr *amf.Array) error {
	if err := e.w.WriteByte(AMF3TypeArray); err != nil {
		return err
	}
	if done, err := e.registerComposite(arr); done || err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	if err := e.writeInline(len(arr.Dense)); err != nil {
		return err
	}
	for _, m := range arr.Associative {
		if m.Name == "" {
			return e.outOfRange("empty associative key")
		}
		if err := e.writeString(m.Name); err != nil {
			return err
		}
		if err := e.encodeValue(m.Value); err != nil {
			return err
		}
	}
	if err := e.writeString(""); err != nil {
		return err
	}
	for _, v := range arr.Dense {
		if err := e.encodeValue(v); err != nil {
			return err
		}
	}
	return nil
}

// traitsKey identifies a class shape for trait deduplication. Names are length
// prefixed so no choice of bytes inside them can make two shapes collide.
func traitsKey(t *amf.Traits) string {
	var b strings.Builder
	b.WriteString(strconv.FormatBool(t.Dynamic))
	b.WriteByte(',')
	b.WriteString(strconv.FormatBool(t.Externalizable))
	writeKeyPart(&b, t.ClassName)
	for _, m := range t.Members {
		writeKeyPart(&b, m)
	}
	return b.String()
}

func writeKeyPart(b *strings.Builder, s string) {
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

var anonymousTraits = &amf.Traits{Dynamic: true}

// encodeObject encodes an object with its traits, sealed and dynamic members
func (e *AMF3Encoder) encodeObject(obj *amf.Object) error {
	if err := e.w.WriteByte(AMF3TypeObject); err != nil {
		return err
	}
	if done, err := e.registerComposite(obj); done || err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	traits := obj.Traits
	if traits == nil {
		traits = anonymousTraits
	}
	if err := e.writeTraits(traits); err != nil {
		return err
	}

	if traits.Externalizable {
		return e.writeExternal(traits, obj)
	}

	if len(obj.Sealed) != len(traits.Members) {
		return e.outOfRange("class %q declares %d members, object has %d", traits.ClassName, len(traits.Members), len(obj.Sealed))
	}
	for _, m := range obj.Sealed {
		if err := e.encodeValue(m.Value); err != nil {
			return err
		}
	}

	if !traits.Dynamic {
		if len(obj.Dynamic) > 0 {
			return e.outOfRange("sealed class %q has %d dynamic members", traits.ClassName, len(obj.Dynamic))
		}
		return nil
	}
	for _, m := range obj.Dynamic {
		if m.Name == "" {
			return e.outOfRange("empty dynamic member name")
		}
		if err := e.writeString(m.Name); err != nil {
			return err
		}
		if err := e.encodeValue(m.Value); err != nil {
			return err
		}
	}
	return e.writeString("")
}

// writeTraits writes a trait reference if the same shape was written earlier in
// this pass, or the full trait definition otherwise.
func (e *AMF3Encoder) writeTraits(t *amf.Traits) error {
	if t.Externalizable && len(t.Members) > 0 {
		return e.outOfRange("externalizable class %q declares members", t.ClassName)
	}
	idx, reused := e.traits.ResolveOrRegister(traitsKey(t))
	if reused {
		if idx > wire.MaxU29>>2 {
			return e.outOfRange("trait index %d", idx)
		}
		// U29O-traits-ref: index << 2 | 0b01
		return e.w.WriteU29(idx<<2 | 0x01)
	}

	if len(t.Members) > wire.MaxU29>>4 {
		return e.outOfRange("%d sealed members", len(t.Members))
	}
	// U29O-traits: count << 4 | dynamic << 3 | externalizable << 2 | 0b11
	header := uint32(len(t.Members))<<4 | 0x03
	if t.Dynamic {
		header |= 0x08
	}
	if t.Externalizable {
		header |= 0x04
	}
	if err := e.w.WriteU29(header); err != nil {
		return err
	}
	if err := e.writeString(t.ClassName); err != nil {
		return err
	}
	for _, m := range t.Members {
		if err := e.writeString(m); err != nil {
			return err
		}
	}
	return nil
}

func (e *AMF3Encoder) writeExternal(t *amf.Traits, obj *amf.Object) error {
	if raw, ok := obj.External.(amf.RawExternal); ok {
		return e.w.WriteBytes(raw.Data)
	}
	if c, ok := e.opts.Externals[t.ClassName]; ok {
		return c.WriteExternal(e, obj)
	}
	return amf.Errorf(amf.ErrUnsupportedExternalizable, e.w.Offset(), "class %q", t.ClassName)
}

func (e *AMF3Encoder) encodeVector(vec *amf.Vector) error {
	var marker byte
	switch vec.Element {
	case amf.VectorInt:
		marker = AMF3TypeVectorInt
	case amf.VectorUInt:
		marker = AMF3TypeVectorUInt
	case amf.VectorDouble:
		marker = AMF3TypeVectorDouble
	case amf.VectorObject:
		marker = AMF3TypeVectorObject
	default:
		return e.outOfRange("vector kind %v", vec.Element)
	}
	if err := e.w.WriteByte(marker); err != nil {
		return err
	}
	if done, err := e.registerComposite(vec); done || err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	if err := e.writeInline(len(vec.Items)); err != nil {
		return err
	}
	fixed := byte(0)
	if vec.Fixed {
		fixed = 1
	}
	if err := e.w.WriteByte(fixed); err != nil {
		return err
	}

	if vec.Element == amf.VectorObject {
		if err := e.writeString(vec.ClassName); err != nil {
			return err
		}
		for _, item := range vec.Items {
			if err := e.encodeValue(item); err != nil {
				return err
			}
		}
		return nil
	}

	for i, item := range vec.Items {
		f, ok := numeric(item)
		if !ok {
			return e.outOfRange("item %d of %s vector is %T", i, vec.Element, item)
		}
		var err error
		switch vec.Element {
		case amf.VectorInt:
			if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
				return e.outOfRange("item %d (%v) of int vector", i, f)
			}
			err = e.w.WriteI32(int32(f))
		case amf.VectorUInt:
			if f != math.Trunc(f) || f < 0 || f > math.MaxUint32 {
				return e.outOfRange("item %d (%v) of uint vector", i, f)
			}
			err = e.w.WriteU32(uint32(f))
		default:
			err = e.w.WriteF64(f)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func numeric(v amf.Value) (float64, bool) {
	switch n := v.(type) {
	case amf.Integer:
		return float64(n), true
	case amf.Number:
		return float64(n), true
	}
	return 0, false
}

func (e *AMF3Encoder) encodeDictionary(dict *amf.Dictionary) error {
	if err := e.w.WriteByte(AMF3TypeDictionary); err != nil {
		return err
	}
	if done, err := e.registerComposite(dict); done || err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	if err := e.writeInline(len(dict.Entries)); err != nil {
		return err
	}
	weak := byte(0)
	if dict.WeakKeys {
		weak = 1
	}
	if err := e.w.WriteByte(weak); err != nil {
		return err
	}
	for _, entry := range dict.Entries {
		if err := e.encodeValue(entry.Key); err != nil {
			return err
		}
		if err := e.encodeValue(entry.Value); err != nil {
			return err
		}
	}
	return nil
}
