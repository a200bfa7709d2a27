package flex

import (
	"bytes"
	"errors"
	"testing"

	"github.com/DMA-Software/dma-golso/pkg/amf"
	"github.com/DMA-Software/dma-golso/pkg/amf0"
	"github.com/DMA-Software/dma-golso/pkg/amf3"
)

func installed() amf3.Options {
	var opts amf3.Options
	Install(&opts)
	return opts
}

// externalHeader returns the AMF3 bytes of an inline externalizable object of
// the given class, up to its body.
func externalHeader(className string) []byte {
	b := []byte{amf3.AMF3TypeObject, 0x07, byte(len(className)<<1 | 1)}
	return append(b, className...)
}

func TestArrayCollectionRoundTrip(t *testing.T) {
	v := NewArrayCollection(amf.Integer(1), amf.String("two"))
	opts := installed()

	data, err := amf3.Encode(v, opts)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := append(externalHeader(ArrayCollection), amf3.AMF3TypeArray, 0x05, 0x01, amf3.AMF3TypeInteger, 0x01, amf3.AMF3TypeString, 0x07, 't', 'w', 'o')
	if !bytes.Equal(data, want) {
		t.Fatalf("got % X\nwant % X", data, want)
	}

	got, err := amf3.Decode(data, opts)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !amf.Equal(v, got) {
		t.Fatalf("round trip mismatch: %#v", got)
	}
}

func TestObjectProxyInsideAMF0(t *testing.T) {
	proxy := NewObjectProxy(amf.NewObject(amf.Member{Name: "k", Value: amf.Boolean(true)}))
	list := &amf.Object{
		Traits:   &amf.Traits{ClassName: ArrayList, Externalizable: true},
		External: amf.WrappedExternal{Payload: amf.NewArray(proxy)},
	}
	opts := installed()

	data, err := amf0.Encode(amf.NewArray(list), opts)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := amf0.Decode(data, opts)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !amf.Equal(amf.NewArray(list), got) {
		t.Fatalf("round trip mismatch: %#v", got)
	}
}

func TestUnregisteredClassFails(t *testing.T) {
	data, err := amf3.Encode(NewArrayCollection(), installed())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := amf3.Decode(data, amf3.Options{}); !errors.Is(err, amf.ErrUnsupportedExternalizable) {
		t.Fatalf("error = %v, want ErrUnsupportedExternalizable", err)
	}
}

func TestPayloadKindMismatch(t *testing.T) {
	opts := installed()

	bad := newWrapped(ArrayCollection, amf.NewObject())
	if _, err := amf3.Encode(bad, opts); !errors.Is(err, amf.ErrValueOutOfRange) {
		t.Fatalf("encode error = %v, want ErrValueOutOfRange", err)
	}

	data := append(externalHeader(ObjectProxy), amf3.AMF3TypeString, 0x03, 'x')
	if _, err := amf3.Decode(data, opts); !errors.Is(err, amf.ErrInvalidMarker) {
		t.Fatalf("decode error = %v, want ErrInvalidMarker", err)
	}
}

func TestCodecsTable(t *testing.T) {
	codecs := Codecs()
	for _, name := range []string{ArrayCollection, ArrayList, ObjectProxy} {
		if _, ok := codecs[name]; !ok {
			t.Errorf("missing codec for %s", name)
		}
	}
}
