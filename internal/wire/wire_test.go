package wire

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/DMA-Software/dma-golso/pkg/amf"
)

func TestU29Encodings(t *testing.T) {
	cases := []struct {
		value uint32
		wire  []byte
	}{
		{0, []byte{0x00}},
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x81, 0x00}},
		{0x3FFF, []byte{0xFF, 0x7F}},
		{0x4000, []byte{0x81, 0x80, 0x00}},
		{0x1FFFFF, []byte{0xFF, 0xFF, 0x7F}},
		{0x200000, []byte{0x80, 0xC0, 0x80, 0x00}},
		{MaxU29, []byte{0xFF, 0xFF, 0xFF, 0xFF}},
	}
	for _, c := range cases {
		got, err := encodeU29(c.value)
		if err != nil {
			t.Fatalf("encodeU29(0x%X) failed: %v", c.value, err)
		}
		if !bytes.Equal(got, c.wire) {
			t.Errorf("encodeU29(0x%X) = % X, want % X", c.value, got, c.wire)
		}
		v, n, err := decodeU29(c.wire)
		if err != nil {
			t.Fatalf("decodeU29(% X) failed: %v", c.wire, err)
		}
		if v != c.value || n != len(c.wire) {
			t.Errorf("decodeU29(% X) = 0x%X (%d bytes), want 0x%X (%d bytes)", c.wire, v, n, c.value, len(c.wire))
		}
	}
}

func TestU29OutOfRange(t *testing.T) {
	_, err := encodeU29(0x20000000)
	if !errors.Is(err, amf.ErrValueOutOfRange) {
		t.Fatalf("encodeU29(0x20000000) error = %v, want ErrValueOutOfRange", err)
	}
}

func TestU29Truncated(t *testing.T) {
	for _, data := range [][]byte{{}, {0x81}, {0x81, 0x80}, {0xFF, 0xFF, 0xFF}} {
		_, _, err := decodeU29(data)
		if !errors.Is(err, amf.ErrTruncatedInput) {
			t.Errorf("decodeU29(% X) error = %v, want ErrTruncatedInput", data, err)
		}
	}
}

func TestSignedInt29(t *testing.T) {
	for _, v := range []int32{0, 1, -1, MaxInt29, MinInt29, 123456, -123456} {
		var buf bytes.Buffer
		if err := NewWriter(&buf).WriteI29(v); err != nil {
			t.Fatalf("WriteI29(%d) failed: %v", v, err)
		}
		got, err := NewReader(buf.Bytes()).ReadI29()
		if err != nil {
			t.Fatalf("ReadI29 failed: %v", err)
		}
		if got != v {
			t.Errorf("integer %d came back as %d", v, got)
		}
	}

	var buf bytes.Buffer
	if err := NewWriter(&buf).WriteI29(MaxInt29 + 1); !errors.Is(err, amf.ErrValueOutOfRange) {
		t.Fatalf("WriteI29 beyond range error = %v, want ErrValueOutOfRange", err)
	}
}

func TestDoublesBigEndian(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteF64(1.0); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x3F, 0xF0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("1.0 encoded as % X, want % X", buf.Bytes(), want)
	}

	nan := math.Float64frombits(0x7FF8000000000123)
	buf.Reset()
	if err := w.WriteF64(nan); err != nil {
		t.Fatal(err)
	}
	got, err := NewReader(buf.Bytes()).ReadF64()
	if err != nil {
		t.Fatal(err)
	}
	if math.Float64bits(got) != 0x7FF8000000000123 {
		t.Fatalf("NaN payload lost: %X", math.Float64bits(got))
	}
	if w.Offset() != 16 {
		t.Fatalf("writer offset = %d, want 16", w.Offset())
	}
}

func TestReaderBoundsAndUTF8(t *testing.T) {
	r := NewReader([]byte("abc\xff"))
	if _, err := r.ReadBytes(5); !errors.Is(err, amf.ErrTruncatedInput) {
		t.Fatalf("read past end error = %v", err)
	}
	if s, err := r.ReadUTF8(3); err != nil || s != "abc" {
		t.Fatalf("ReadUTF8 = %q, %v", s, err)
	}
	r = NewReader([]byte("\xff\xfe"))
	_, err := r.ReadUTF8(2)
	if !errors.Is(err, amf.ErrInvalidUTF8) {
		t.Fatalf("invalid UTF-8 error = %v", err)
	}
	if amf.OffsetOf(err) != 0 {
		t.Fatalf("invalid UTF-8 offset = %d", amf.OffsetOf(err))
	}
}

func TestReaderLimit(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4})
	r.SetLimit(3)
	if rest := r.ReadRest(); !bytes.Equal(rest, []byte{1, 2, 3}) {
		t.Fatalf("ReadRest = % X", rest)
	}
	if _, err := r.ReadByte(); !errors.Is(err, amf.ErrTruncatedInput) {
		t.Fatalf("read past limit error = %v", err)
	}
	r.SetLimit(100)
	if b, err := r.ReadByte(); err != nil || b != 4 {
		t.Fatalf("ReadByte after raising limit = %d, %v", b, err)
	}
	r.SetLimit(0)
	if r.Remaining() != 0 || r.Offset() != 4 {
		t.Fatalf("limit below offset: remaining %d, offset %d", r.Remaining(), r.Offset())
	}
}

func encodeU29(v uint32) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewWriter(&buf).WriteU29(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeU29(data []byte) (uint32, int, error) {
	r := NewReader(data)
	v, err := r.ReadU29()
	return v, r.Offset(), err
}
