// Package reftable implements the per-pass reference tables of the AMF formats.
//
// Indices are assigned in first-occurrence order and never reused. The encode
// side maps an identity to its index; the decode side maps an index back to the
// value produced for it. A composite is registered before its children are
// decoded so that a child may refer back to its parent.
package reftable

import (
	"github.com/DMA-Software/dma-golso/pkg/amf"
)

// Encoder is the encode-side table. K is the identity of a registered item:
// a pointer for composites, the text for strings, a shape key for traits.
type Encoder[K comparable] struct {
	index map[K]uint32
	next  uint32
}

// NewEncoder creates an empty encode-side table.
func NewEncoder[K comparable]() *Encoder[K] {
	return &Encoder[K]{index: make(map[K]uint32)}
}

// ResolveOrRegister returns the index of k. If k was seen earlier in this pass the
// existing index is returned with reused set; otherwise k gets the next index.
func (t *Encoder[K]) ResolveOrRegister(k K) (index uint32, reused bool) {
	if i, ok := t.index[k]; ok {
		return i, true
	}
	i := t.next
	t.index[k] = i
	t.next++
	return i, false
}

// Lookup returns the index of k without registering it.
func (t *Encoder[K]) Lookup(k K) (uint32, bool) {
	i, ok := t.index[k]
	return i, ok
}

// Reserve consumes an index for an item that has no identity and can never be
// referenced again, keeping numbering aligned with the decoder.
func (t *Encoder[K]) Reserve() uint32 {
	i := t.next
	t.next++
	return i
}

// Decoder is the decode-side table. Composites are added before their children
// are decoded, so a child may refer back to an enclosing value.
type Decoder[T any] struct {
	items []T
}

// NewDecoder creates an empty decode-side table.
func NewDecoder[T any]() *Decoder[T] {
	return &Decoder[T]{}
}

// Add registers v under the next index.
func (t *Decoder[T]) Add(v T) uint32 {
	t.items = append(t.items, v)
	return uint32(len(t.items) - 1)
}

// Lookup returns the value registered under index. An index past the end of the
// table is a forward reference and fails with ErrInvalidReference.
func (t *Decoder[T]) Lookup(index uint32, offset int) (T, error) {
	if uint64(index) >= uint64(len(t.items)) {
		var zero T
		return zero, amf.Errorf(amf.ErrInvalidReference, offset, "index %d, table size %d", index, len(t.items))
	}
	return t.items[index], nil
}
