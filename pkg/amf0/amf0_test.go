package amf0

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	goamf "github.com/Barber0/goamf-1"

	"github.com/DMA-Software/dma-golso/pkg/amf"
)

func sampleValue() amf.Value {
	shared := amf.NewObject(amf.Member{Name: "id", Value: amf.Number(7)})
	typed := &amf.Object{
		Traits:  &amf.Traits{ClassName: "app.User", Dynamic: true},
		Dynamic: []amf.Member{{Name: "name", Value: amf.String("zoë")}},
	}
	sealed := &amf.Object{
		Traits: &amf.Traits{ClassName: "geom.Point", Members: []string{"x"}},
		Sealed: []amf.Member{{Name: "x", Value: amf.Integer(3)}},
	}

	return amf.NewObject(
		amf.Member{Name: "num", Value: amf.Number(-0.5)},
		amf.Member{Name: "ok", Value: amf.Boolean(true)},
		amf.Member{Name: "nil", Value: amf.Null{}},
		amf.Member{Name: "undef", Value: amf.Undefined{}},
		amf.Member{Name: "unsupported", Value: amf.Unsupported{}},
		amf.Member{Name: "when", Value: amf.Date{Millis: 1234567890123, TZOffset: -60}},
		amf.Member{Name: "doc", Value: amf.XMLDocument("<root/>")},
		amf.Member{Name: "long", Value: amf.String(strings.Repeat("x", 0x10001))},
		amf.Member{Name: "user", Value: typed},
		amf.Member{Name: "list", Value: amf.NewArray(amf.String("a"), shared)},
		amf.Member{Name: "mixed", Value: &amf.Array{
			Dense:       []amf.Value{amf.Number(1), amf.Number(2)},
			Associative: []amf.Member{{Name: "total", Value: amf.Number(3)}},
			ECMA:        true,
			Length:      3,
		}},
		amf.Member{Name: "again", Value: shared},
		amf.Member{Name: "point", Value: sealed},
		amf.Member{Name: "blob", Value: amf.ByteArray{1, 2, 3}},
		amf.Member{Name: "ints", Value: &amf.Vector{Element: amf.VectorInt, Items: []amf.Value{amf.Integer(-1)}}},
	)
}

func TestRoundTrip(t *testing.T) {
	v := sampleValue()
	data, err := Encode(v, Options{})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(data, Options{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !amf.Equal(v, got) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, v)
	}

	again, err := Encode(got, Options{})
	if err != nil {
		t.Fatalf("re-encode failed: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Fatal("re-encoding the decoded value changed the bytes")
	}

	root := got.(*amf.Object)
	list, _ := root.Get("list")
	again1, _ := root.Get("again")
	if list.(*amf.Array).Dense[1] != again1 {
		t.Fatal("shared object was not decoded as a single instance")
	}
}

func TestNumberBytes(t *testing.T) {
	data, err := Encode(amf.Number(1), Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{AMF0TypeNumber, 0x3F, 0xF0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(data, want) {
		t.Fatalf("got % X, want % X", data, want)
	}
}

func TestObjectBytes(t *testing.T) {
	data, err := Encode(amf.NewObject(amf.Member{Name: "a", Value: amf.Boolean(true)}), Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{AMF0TypeObject, 0x00, 0x01, 'a', AMF0TypeBoolean, 0x01, 0x00, 0x00, AMF0TypeObjectEnd}
	if !bytes.Equal(data, want) {
		t.Fatalf("got % X, want % X", data, want)
	}
}

func TestIntegerWrittenAsNumber(t *testing.T) {
	data, err := Encode(amf.Integer(5), Options{})
	if err != nil {
		t.Fatal(err)
	}
	v, err := Decode(data, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if v != amf.Number(5) {
		t.Fatalf("decoded %#v, want Number(5)", v)
	}
}

func TestLongStringMarker(t *testing.T) {
	short, _ := Encode(amf.String(strings.Repeat("s", 0xFFFF)), Options{})
	long, _ := Encode(amf.String(strings.Repeat("s", 0x10000)), Options{})
	if short[0] != AMF0TypeString {
		t.Errorf("0xFFFF-byte string marker = 0x%02X", short[0])
	}
	if long[0] != AMF0TypeLongString {
		t.Errorf("0x10000-byte string marker = 0x%02X", long[0])
	}
}

func TestEcmaArraySplit(t *testing.T) {
	data := []byte{
		AMF0TypeEcmaArray, 0x00, 0x00, 0x00, 0x03,
		0x00, 0x01, '0', AMF0TypeNull,
		0x00, 0x01, 'k', AMF0TypeUndefined,
		0x00, 0x01, '1', AMF0TypeNull,
		0x00, 0x00, AMF0TypeObjectEnd,
	}
	v, err := Decode(data, Options{})
	if err != nil {
		t.Fatal(err)
	}
	arr := v.(*amf.Array)
	if len(arr.Dense) != 2 || len(arr.Associative) != 1 || arr.Associative[0].Name != "k" {
		t.Fatalf("split = %#v", arr)
	}
	if !arr.ECMA || arr.Length != 3 {
		t.Fatalf("form = ECMA %v, length %d", arr.ECMA, arr.Length)
	}
}

func TestEcmaArrayKeepsForm(t *testing.T) {
	cases := map[string][]byte{
		"numeric keys only": {
			AMF0TypeEcmaArray, 0x00, 0x00, 0x00, 0x02,
			0x00, 0x01, '0', AMF0TypeNull,
			0x00, 0x01, '1', AMF0TypeNull,
			0x00, 0x00, AMF0TypeObjectEnd,
		},
		"declared count differs": {
			AMF0TypeEcmaArray, 0x00, 0x00, 0x00, 0x00,
			0x00, 0x01, '0', AMF0TypeNull,
			0x00, 0x01, 'k', AMF0TypeUndefined,
			0x00, 0x00, AMF0TypeObjectEnd,
		},
		"empty": {
			AMF0TypeEcmaArray, 0x00, 0x00, 0x00, 0x00,
			0x00, 0x00, AMF0TypeObjectEnd,
		},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			v, err := Decode(data, Options{})
			if err != nil {
				t.Fatal(err)
			}
			out, err := Encode(v, Options{})
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(out, data) {
				t.Fatalf("re-encoded\n% X\nwant\n% X", out, data)
			}
		})
	}
}

func TestDenseArrayIsStrict(t *testing.T) {
	data, err := Encode(amf.NewArray(amf.Null{}), Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{AMF0TypeStrictArray, 0x00, 0x00, 0x00, 0x01, AMF0TypeNull}
	if !bytes.Equal(data, want) {
		t.Fatalf("got % X, want % X", data, want)
	}
}

func TestCycle(t *testing.T) {
	obj := amf.NewObject()
	obj.Set("self", obj)

	data, err := Encode(obj, Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{AMF0TypeObject, 0x00, 0x04, 's', 'e', 'l', 'f', AMF0TypeReference, 0x00, 0x00, 0x00, 0x00, AMF0TypeObjectEnd}
	if !bytes.Equal(data, want) {
		t.Fatalf("got % X, want % X", data, want)
	}

	v, err := Decode(data, Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := v.(*amf.Object)
	if self, _ := got.Get("self"); self != got {
		t.Fatal("self reference was not resolved to the enclosing object")
	}
}

func TestAVMPlusUsesFreshTables(t *testing.T) {
	vec := &amf.Vector{Element: amf.VectorDouble, Items: []amf.Value{amf.Number(1)}}
	data, err := Encode(amf.NewArray(vec, vec), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if n := bytes.Count(data, []byte{AMF0TypeAVMPlus}); n != 2 {
		t.Fatalf("found %d AVM+ markers, want 2", n)
	}

	v, err := Decode(data, Options{})
	if err != nil {
		t.Fatal(err)
	}
	items := v.(*amf.Array).Dense
	if items[0] == items[1] {
		t.Fatal("values behind separate AVM+ markers share an instance")
	}
	if !amf.Equal(items[0], vec) || !amf.Equal(items[1], vec) {
		t.Fatalf("decoded %#v", items)
	}
}

func TestNestingTooDeep(t *testing.T) {
	var v amf.Value = amf.Null{}
	for i := 0; i < 20; i++ {
		v = amf.NewArray(v)
	}
	data, err := Encode(v, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(data, Options{MaxDepth: 5}); !errors.Is(err, amf.ErrNestingTooDeep) {
		t.Fatalf("decode error = %v, want ErrNestingTooDeep", err)
	}
	if _, err := Encode(v, Options{MaxDepth: 5}); !errors.Is(err, amf.ErrNestingTooDeep) {
		t.Fatalf("encode error = %v, want ErrNestingTooDeep", err)
	}
}

func TestMalformedInput(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		kind error
	}{
		{"movieclip", []byte{AMF0TypeMovieClip}, amf.ErrInvalidMarker},
		{"recordset", []byte{AMF0TypeRecordset}, amf.ErrInvalidMarker},
		{"object end as value", []byte{AMF0TypeObjectEnd}, amf.ErrInvalidMarker},
		{"unknown marker", []byte{0x12}, amf.ErrInvalidMarker},
		{"forward reference", []byte{AMF0TypeReference, 0x00, 0x00}, amf.ErrInvalidReference},
		{"unterminated object", []byte{AMF0TypeObject, 0x00, 0x01, 'a', AMF0TypeNull}, amf.ErrUnterminatedObject},
		{"bad end marker", []byte{AMF0TypeObject, 0x00, 0x00, AMF0TypeNull}, amf.ErrInvalidMarker},
		{"huge strict array", []byte{AMF0TypeStrictArray, 0xFF, 0xFF, 0xFF, 0xFF}, amf.ErrTruncatedInput},
		{"invalid utf-8", []byte{AMF0TypeString, 0x00, 0x01, 0xFF}, amf.ErrInvalidUTF8},
		{"truncated number", []byte{AMF0TypeNumber, 0x3F}, amf.ErrTruncatedInput},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Decode(c.data, Options{})
			if !errors.Is(err, c.kind) {
				t.Fatalf("error = %v, want %v", err, c.kind)
			}
			if amf.OffsetOf(err) < 0 {
				t.Fatalf("error %v carries no offset", err)
			}
		})
	}
}

func TestTruncationNeverPanics(t *testing.T) {
	data, err := Encode(sampleValue(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	for n := 0; n < len(data); n++ {
		_, err := Decode(data[:n], Options{})
		if !errors.Is(err, amf.ErrTruncatedInput) && !errors.Is(err, amf.ErrInvalidReference) {
			t.Fatalf("prefix of %d bytes: error = %v", n, err)
		}
	}
}

func TestEncoderRejectsEmptyPropertyName(t *testing.T) {
	obj := amf.NewObject(amf.Member{Name: "", Value: amf.Null{}})
	if _, err := Encode(obj, Options{}); !errors.Is(err, amf.ErrValueOutOfRange) {
		t.Fatalf("error = %v, want ErrValueOutOfRange", err)
	}
}

func TestInteropWithGoamf(t *testing.T) {
	buf := new(bytes.Buffer)
	if _, err := goamf.WriteValue(buf, 3.5); err != nil {
		t.Fatalf("goamf write failed: %v", err)
	}
	v, err := Decode(buf.Bytes(), Options{})
	if err != nil {
		t.Fatalf("decoding goamf output failed: %v", err)
	}
	if v != amf.Number(3.5) {
		t.Fatalf("decoded %#v, want 3.5", v)
	}

	data, err := Encode(amf.String("connect"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := goamf.ReadValue(bytes.NewBuffer(data))
	if err != nil {
		t.Fatalf("goamf read failed: %v", err)
	}
	if s, ok := got.(string); !ok || s != "connect" {
		t.Fatalf("goamf decoded %#v, want connect", got)
	}
}
