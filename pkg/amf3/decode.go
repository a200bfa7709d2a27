package amf3

import (
	"github.com/DMA-Software/dma-golso/internal/reftable"
	"github.com/DMA-Software/dma-golso/internal/wire"
	"github.com/DMA-Software/dma-golso/pkg/amf"
)

// AMF3Decoder provides decoding of AMF3 format to amf values.
// Its reference tables live as long as the decoder, so successive Decode calls
// may refer to strings and objects produced by earlier ones.
//
//goland:noinspection ALL
type AMF3Decoder struct {
	r       *wire.Reader
	opts    Options
	strings *reftable.Decoder[string]
	traits  *reftable.Decoder[*amf.Traits]
	objects *reftable.Decoder[amf.Value]
	depth   int
}

// NewAMF3Decoder creates a new AMF3 decoder that reads from the provided cursor
func NewAMF3Decoder(r *wire.Reader, opts Options) *AMF3Decoder {
	return &AMF3Decoder{
		r:       r,
		opts:    opts,
		strings: reftable.NewDecoder[string](),
		traits:  reftable.NewDecoder[*amf.Traits](),
		objects: reftable.NewDecoder[amf.Value](),
	}
}

// SetDepth sets the nesting depth the decoder starts from. Used when AMF3 data
// is embedded inside an AMF0 composite.
func (d *AMF3Decoder) SetDepth(depth int) {
	d.depth = depth
}

// Reader returns the underlying cursor.
func (d *AMF3Decoder) Reader() *wire.Reader {
	return d.r
}

// Decode decodes one AMF3 value
func (d *AMF3Decoder) Decode() (amf.Value, error) {
	return d.decodeValue()
}

// ReadString reads a marker-less AMF3 string (U29 header plus UTF-8 bytes),
// sharing the string reference table with the values.
func (d *AMF3Decoder) ReadString() (string, error) {
	return d.readString()
}

func (d *AMF3Decoder) enter() error {
	d.depth++
	if d.depth > d.opts.maxDepth() {
		return amf.Errorf(amf.ErrNestingTooDeep, d.r.Offset(), "limit %d", d.opts.maxDepth())
	}
	return nil
}

func (d *AMF3Decoder) leave() {
	d.depth--
}

// decodeValue reads a type marker and dispatches on it
func (d *AMF3Decoder) decodeValue() (amf.Value, error) {
	start := d.r.Offset()
	marker, err := d.r.ReadByte()
	if err != nil {
		return nil, err
	}

	switch marker {
	case AMF3TypeUndefined:
		return amf.Undefined{}, nil
	case AMF3TypeNull:
		return amf.Null{}, nil
	case AMF3TypeFalse:
		return amf.Boolean(false), nil
	case AMF3TypeTrue:
		return amf.Boolean(true), nil
	case AMF3TypeInteger:
		v, err := d.r.ReadI29()
		if err != nil {
			return nil, err
		}
		return amf.Integer(v), nil
	case AMF3TypeDouble:
		v, err := d.r.ReadF64()
		if err != nil {
			return nil, err
		}
		return amf.Number(v), nil
	case AMF3TypeString:
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		return amf.String(s), nil
	case AMF3TypeXMLDocument, AMF3TypeXML:
		return d.decodeXML(marker == AMF3TypeXML)
	case AMF3TypeDate:
		return d.decodeDate()
	case AMF3TypeArray:
		return d.decodeArray()
	case AMF3TypeObject:
		return d.decodeObject()
	case AMF3TypeByteArray:
		return d.decodeByteArray()
	case AMF3TypeVectorInt, AMF3TypeVectorUInt, AMF3TypeVectorDouble, AMF3TypeVectorObject:
		return d.decodeVector(marker)
	case AMF3TypeDictionary:
		return d.decodeDictionary()
	default:
		return nil, amf.Errorf(amf.ErrInvalidMarker, start, "AMF3 marker 0x%02X", marker)
	}
}

// readHeader reads a U29 reference header. When inline is false, n is an index
// into a reference table; otherwise it is the inline length or count.
func (d *AMF3Decoder) readHeader() (n uint32, inline bool, err error) {
	h, err := d.r.ReadU29()
	if err != nil {
		return 0, false, err
	}
	return h >> 1, h&1 == 1, nil
}

// readString reads a string with reference table support.
// Empty strings are never added to the reference table.
func (d *AMF3Decoder) readString() (string, error) {
	start := d.r.Offset()
	n, inline, err := d.readHeader()
	if err != nil {
		return "", err
	}
	if !inline {
		return d.strings.Lookup(n, start)
	}
	if n == 0 {
		return "", nil
	}
	s, err := d.r.ReadUTF8(int(n))
	if err != nil {
		return "", err
	}
	d.strings.Add(s)
	return s, nil
}

// lookupObject resolves an object-table reference.
func (d *AMF3Decoder) lookupObject(index uint32, offset int) (amf.Value, error) {
	return d.objects.Lookup(index, offset)
}

func (d *AMF3Decoder) decodeXML(isString bool) (amf.Value, error) {
	start := d.r.Offset()
	n, inline, err := d.readHeader()
	if err != nil {
		return nil, err
	}
	if !inline {
		return d.lookupObject(n, start)
	}
	s, err := d.r.ReadUTF8(int(n))
	if err != nil {
		return nil, err
	}
	var v amf.Value = amf.XMLDocument(s)
	if isString {
		v = amf.XMLString(s)
	}
	d.objects.Add(v)
	return v, nil
}

func (d *AMF3Decoder) decodeDate() (amf.Value, error) {
	start := d.r.Offset()
	n, inline, err := d.readHeader()
	if err != nil {
		return nil, err
	}
	if !inline {
		return d.lookupObject(n, start)
	}
	ms, err := d.r.ReadF64()
	if err != nil {
		return nil, err
	}
	v := amf.Date{Millis: ms}
	d.objects.Add(v)
	return v, nil
}

func (d *AMF3Decoder) decodeByteArray() (amf.Value, error) {
	start := d.r.Offset()
	n, inline, err := d.readHeader()
	if err != nil {
		return nil, err
	}
	if !inline {
		return d.lookupObject(n, start)
	}
	b, err := d.r.ReadBytes(int(n))
	if err != nil {
		return nil, err
	}
	v := amf.ByteArray(append([]byte(nil), b...))
	d.objects.Add(v)
	return v, nil
}

// decodeArray decodes an array with dense and associative parts.
// The array is registered before its elements so they may refer back to it.
func (d *AMF3Decoder) decodeArray() (amf.Value, error) {
	start := d.r.Offset()
	n, inline, err := d.readHeader()
	if err != nil {
		return nil, err
	}
	if !inline {
		return d.lookupObject(n, start)
	}
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	arr := &amf.Array{}
	d.objects.Add(arr)

	// Associative part: key-value pairs until an empty key
	for {
		key, err := d.readString()
		if err != nil {
			return nil, err
		}
		if key == "" {
			break
		}
		v, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		arr.Associative = append(arr.Associative, amf.Member{Name: key, Value: v})
	}

	// Dense part: every element takes at least its marker byte
	if err := d.r.NeedItems(n, 1); err != nil {
		return nil, err
	}
	arr.Dense = make([]amf.Value, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		arr.Dense = append(arr.Dense, v)
	}
	return arr, nil
}

// decodeObject decodes an object, its traits and its members.
func (d *AMF3Decoder) decodeObject() (amf.Value, error) {
	start := d.r.Offset()
	h, err := d.r.ReadU29()
	if err != nil {
		return nil, err
	}
	if h&1 == 0 {
		return d.lookupObject(h>>1, start)
	}
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	obj := &amf.Object{}
	d.objects.Add(obj)

	traits, err := d.readTraits(h>>1, start)
	if err != nil {
		return nil, err
	}
	obj.Traits = traits

	if traits.Externalizable {
		ext, err := d.readExternal(traits)
		if err != nil {
			return nil, err
		}
		obj.External = ext
		return obj, nil
	}

	if len(traits.Members) > 0 {
		obj.Sealed = make([]amf.Member, 0, len(traits.Members))
	}
	for _, name := range traits.Members {
		v, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		obj.Sealed = append(obj.Sealed, amf.Member{Name: name, Value: v})
	}

	if traits.Dynamic {
		for {
			name, err := d.readString()
			if err != nil {
				return nil, err
			}
			if name == "" {
				break
			}
			v, err := d.decodeValue()
			if err != nil {
				return nil, err
			}
			obj.Dynamic = append(obj.Dynamic, amf.Member{Name: name, Value: v})
		}
	}
	return obj, nil
}

// readTraits reads the trait part of an object header (the object header with
// its reference bit already shifted out).
func (d *AMF3Decoder) readTraits(h uint32, start int) (*amf.Traits, error) {
	if h&1 == 0 {
		return d.traits.Lookup(h>>1, start)
	}
	h >>= 1

	className, err := d.readString()
	if err != nil {
		return nil, err
	}
	traits := &amf.Traits{
		ClassName:      className,
		Externalizable: h&1 != 0,
		Dynamic:        h&2 != 0,
	}
	count := h >> 2
	if traits.Externalizable && count > 0 {
		return nil, amf.Errorf(amf.ErrInvalidMarker, start, "externalizable class %q declares %d members", className, count)
	}
	if err := d.r.NeedItems(count, 1); err != nil {
		return nil, err
	}
	if count > 0 {
		traits.Members = make([]string, 0, count)
	}
	for i := uint32(0); i < count; i++ {
		name, err := d.readString()
		if err != nil {
			return nil, err
		}
		traits.Members = append(traits.Members, name)
	}

	d.traits.Add(traits)
	return traits, nil
}

func (d *AMF3Decoder) readExternal(traits *amf.Traits) (amf.External, error) {
	if c, ok := d.opts.Externals[traits.ClassName]; ok {
		return c.ReadExternal(d, traits)
	}
	if d.opts.RawExternals {
		return amf.RawExternal{Data: append([]byte(nil), d.r.ReadRest()...)}, nil
	}
	return nil, amf.Errorf(amf.ErrUnsupportedExternalizable, d.r.Offset(), "class %q", traits.ClassName)
}

func (d *AMF3Decoder) decodeVector(marker byte) (amf.Value, error) {
	start := d.r.Offset()
	n, inline, err := d.readHeader()
	if err != nil {
		return nil, err
	}
	if !inline {
		return d.lookupObject(n, start)
	}
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	fixed, err := d.r.ReadByte()
	if err != nil {
		return nil, err
	}
	vec := &amf.Vector{Fixed: fixed != 0}
	d.objects.Add(vec)

	switch marker {
	case AMF3TypeVectorInt:
		vec.Element = amf.VectorInt
		if err := d.r.NeedItems(n, 4); err != nil {
			return nil, err
		}
		vec.Items = make([]amf.Value, 0, n)
		for i := uint32(0); i < n; i++ {
			v, err := d.r.ReadI32()
			if err != nil {
				return nil, err
			}
			vec.Items = append(vec.Items, amf.Integer(v))
		}
	case AMF3TypeVectorUInt:
		vec.Element = amf.VectorUInt
		if err := d.r.NeedItems(n, 4); err != nil {
			return nil, err
		}
		vec.Items = make([]amf.Value, 0, n)
		for i := uint32(0); i < n; i++ {
			v, err := d.r.ReadU32()
			if err != nil {
				return nil, err
			}
			vec.Items = append(vec.Items, amf.Number(v))
		}
	case AMF3TypeVectorDouble:
		vec.Element = amf.VectorDouble
		if err := d.r.NeedItems(n, 8); err != nil {
			return nil, err
		}
		vec.Items = make([]amf.Value, 0, n)
		for i := uint32(0); i < n; i++ {
			v, err := d.r.ReadF64()
			if err != nil {
				return nil, err
			}
			vec.Items = append(vec.Items, amf.Number(v))
		}
	default:
		vec.Element = amf.VectorObject
		className, err := d.readString()
		if err != nil {
			return nil, err
		}
		vec.ClassName = className
		if err := d.r.NeedItems(n, 1); err != nil {
			return nil, err
		}
		vec.Items = make([]amf.Value, 0, n)
		for i := uint32(0); i < n; i++ {
			v, err := d.decodeValue()
			if err != nil {
				return nil, err
			}
			vec.Items = append(vec.Items, v)
		}
	}
	return vec, nil
}

func (d *AMF3Decoder) decodeDictionary() (amf.Value, error) {
	start := d.r.Offset()
	n, inline, err := d.readHeader()
	if err != nil {
		return nil, err
	}
	if !inline {
		return d.lookupObject(n, start)
	}
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	weak, err := d.r.ReadByte()
	if err != nil {
		return nil, err
	}
	dict := &amf.Dictionary{WeakKeys: weak != 0}
	d.objects.Add(dict)

	// two values per entry, each at least one byte
	if err := d.r.NeedItems(n, 2); err != nil {
		return nil, err
	}
	dict.Entries = make([]amf.Entry, 0, n)
	for i := uint32(0); i < n; i++ {
		k, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		v, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		dict.Entries = append(dict.Entries, amf.Entry{Key: k, Value: v})
	}
	return dict, nil
}
