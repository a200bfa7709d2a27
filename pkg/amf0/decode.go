package amf0

import (
	"errors"
	"strconv"

	"github.com/DMA-Software/dma-golso/internal/reftable"
	"github.com/DMA-Software/dma-golso/internal/wire"
	"github.com/DMA-Software/dma-golso/pkg/amf"
	"github.com/DMA-Software/dma-golso/pkg/amf3"
)

// AMF0Decoder decodes AMF0 format to amf values
//
//goland:noinspection ALL
type AMF0Decoder struct {
	r       *wire.Reader
	opts    Options
	objects *reftable.Decoder[amf.Value]
	depth   int
}

// NewAMF0Decoder creates a new AMF0 decoder
func NewAMF0Decoder(r *wire.Reader, opts Options) *AMF0Decoder {
	return &AMF0Decoder{
		r:       r,
		opts:    opts,
		objects: reftable.NewDecoder[amf.Value](),
	}
}

// Decode decodes a value from AMF0 format
func (d *AMF0Decoder) Decode() (amf.Value, error) {
	return d.decodeValue()
}

// ReadString reads a marker-less AMF0 string (u16 length plus UTF-8 bytes).
func (d *AMF0Decoder) ReadString() (string, error) {
	return d.readUTF8(false)
}

func (d *AMF0Decoder) enter() error {
	d.depth++
	if d.depth > maxDepth(d.opts) {
		return amf.Errorf(amf.ErrNestingTooDeep, d.r.Offset(), "limit %d", maxDepth(d.opts))
	}
	return nil
}

func (d *AMF0Decoder) leave() {
	d.depth--
}

// decodeValue decodes any AMF0 value
func (d *AMF0Decoder) decodeValue() (amf.Value, error) {
	start := d.r.Offset()
	marker, err := d.r.ReadByte()
	if err != nil {
		return nil, err
	}

	switch marker {
	case AMF0TypeNumber:
		v, err := d.r.ReadF64()
		if err != nil {
			return nil, err
		}
		return amf.Number(v), nil
	case AMF0TypeBoolean:
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, err
		}
		return amf.Boolean(b != 0), nil
	case AMF0TypeString:
		s, err := d.readUTF8(false)
		if err != nil {
			return nil, err
		}
		return amf.String(s), nil
	case AMF0TypeLongString:
		s, err := d.readUTF8(true)
		if err != nil {
			return nil, err
		}
		return amf.String(s), nil
	case AMF0TypeXMLDocument:
		s, err := d.readUTF8(true)
		if err != nil {
			return nil, err
		}
		return amf.XMLDocument(s), nil
	case AMF0TypeNull:
		return amf.Null{}, nil
	case AMF0TypeUndefined:
		return amf.Undefined{}, nil
	case AMF0TypeUnsupported:
		return amf.Unsupported{}, nil
	case AMF0TypeDate:
		return d.decodeDate()
	case AMF0TypeObject:
		return d.decodeObject("")
	case AMF0TypeTypedObject:
		className, err := d.readUTF8(false)
		if err != nil {
			return nil, err
		}
		return d.decodeObject(className)
	case AMF0TypeEcmaArray:
		return d.decodeEcmaArray()
	case AMF0TypeStrictArray:
		return d.decodeStrictArray()
	case AMF0TypeReference:
		idx, err := d.r.ReadU16()
		if err != nil {
			return nil, err
		}
		return d.objects.Lookup(uint32(idx), start)
	case AMF0TypeAVMPlus:
		nested := amf3.NewAMF3Decoder(d.r, d.opts)
		nested.SetDepth(d.depth)
		return nested.Decode()
	default:
		return nil, amf.Errorf(amf.ErrInvalidMarker, start, "AMF0 marker 0x%02X", marker)
	}
}

// readUTF8 reads a UTF-8 string with a 2-byte or, for long strings, 4-byte length
func (d *AMF0Decoder) readUTF8(long bool) (string, error) {
	var n int
	if long {
		v, err := d.r.ReadU32()
		if err != nil {
			return "", err
		}
		n = int(v)
	} else {
		v, err := d.r.ReadU16()
		if err != nil {
			return "", err
		}
		n = int(v)
	}
	if n == 0 {
		return "", nil
	}
	if err := d.r.NeedItems(uint32(n), 1); err != nil {
		return "", err
	}
	return d.r.ReadUTF8(n)
}

func (d *AMF0Decoder) decodeDate() (amf.Value, error) {
	ms, err := d.r.ReadF64()
	if err != nil {
		return nil, err
	}
	tz, err := d.r.ReadI16()
	if err != nil {
		return nil, err
	}
	return amf.Date{Millis: ms, TZOffset: tz}, nil
}

// decodeObject decodes the body of an anonymous or typed object.
func (d *AMF0Decoder) decodeObject(className string) (amf.Value, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	obj := &amf.Object{Traits: &amf.Traits{ClassName: className, Dynamic: true}}
	d.objects.Add(obj)

	err := d.readProperties(func(key string, v amf.Value) {
		obj.Dynamic = append(obj.Dynamic, amf.Member{Name: key, Value: v})
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// decodeEcmaArray decodes an associative array. Keys "0", "1", ... met in order
// form the dense part; every other key is associative.
func (d *AMF0Decoder) decodeEcmaArray() (amf.Value, error) {
	// The count is advisory; the body is terminated like an object.
	count, err := d.r.ReadU32()
	if err != nil {
		return nil, err
	}
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	arr := &amf.Array{ECMA: true, Length: count}
	d.objects.Add(arr)

	err = d.readProperties(func(key string, v amf.Value) {
		if key == strconv.Itoa(len(arr.Dense)) {
			arr.Dense = append(arr.Dense, v)
			return
		}
		arr.Associative = append(arr.Associative, amf.Member{Name: key, Value: v})
	})
	if err != nil {
		return nil, err
	}
	return arr, nil
}

func (d *AMF0Decoder) decodeStrictArray() (amf.Value, error) {
	count, err := d.r.ReadU32()
	if err != nil {
		return nil, err
	}
	if err := d.r.NeedItems(count, 1); err != nil {
		return nil, err
	}
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	arr := &amf.Array{Dense: make([]amf.Value, 0, count)}
	d.objects.Add(arr)

	for i := uint32(0); i < count; i++ {
		v, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		arr.Dense = append(arr.Dense, v)
	}
	return arr, nil
}

// readProperties reads (key, value) pairs up to the 0x00 0x00 0x09 terminator.
func (d *AMF0Decoder) readProperties(add func(key string, v amf.Value)) error {
	for {
		start := d.r.Offset()
		key, err := d.readUTF8(false)
		if err != nil {
			return unterminated(err, start)
		}

		if key == "" {
			// Check for object end marker
			marker, err := d.r.ReadByte()
			if err != nil {
				return unterminated(err, start)
			}
			if marker != AMF0TypeObjectEnd {
				return amf.Errorf(amf.ErrInvalidMarker, start+2, "expected object end marker, got 0x%02X", marker)
			}
			return nil
		}

		v, err := d.decodeValue()
		if err != nil {
			return err
		}
		add(key, v)
	}
}

func unterminated(err error, offset int) error {
	if errors.Is(err, amf.ErrTruncatedInput) {
		return amf.Errorf(amf.ErrUnterminatedObject, offset, "input ended inside an object body")
	}
	return err
}
