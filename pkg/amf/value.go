// Package amf defines the value model shared by the AMF0 and AMF3 codecs.
//
// Scalars are plain Go values. Composites (Object, Array, Vector, Dictionary) are
// pointers: pointer identity is object identity, so a graph that shares or cycles
// through a composite is expressed by reusing the same pointer.
package amf

import (
	"fmt"
	"time"
)

// Kind identifies the variant of a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBoolean
	KindNumber
	KindInteger
	KindString
	KindDate
	KindXMLDocument
	KindXMLString
	KindByteArray
	KindUnsupported
	KindObject
	KindArray
	KindVector
	KindDictionary
)

var kindNames = [...]string{
	KindUndefined:   "undefined",
	KindNull:        "null",
	KindBoolean:     "boolean",
	KindNumber:      "number",
	KindInteger:     "integer",
	KindString:      "string",
	KindDate:        "date",
	KindXMLDocument: "xml-document",
	KindXMLString:   "xml-string",
	KindByteArray:   "byte-array",
	KindUnsupported: "unsupported",
	KindObject:      "object",
	KindArray:       "array",
	KindVector:      "vector",
	KindDictionary:  "dictionary",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is any AMF value. The set of implementations is closed.
type Value interface {
	Kind() Kind
	isValue()
}

type Undefined struct{}

func (Undefined) Kind() Kind { return KindUndefined }
func (Undefined) isValue()   {}

type Null struct{}

func (Null) Kind() Kind { return KindNull }
func (Null) isValue()   {}

type Boolean bool

func (Boolean) Kind() Kind { return KindBoolean }
func (Boolean) isValue()   {}

// Number is an IEEE-754 double: the AMF0 number and the AMF3 double.
type Number float64

func (Number) Kind() Kind { return KindNumber }
func (Number) isValue()   {}

// Integer is the AMF3 integer. AMF0 has no integer type and writes it as a Number.
type Integer int32

func (Integer) Kind() Kind { return KindInteger }
func (Integer) isValue()   {}

type String string

func (String) Kind() Kind { return KindString }
func (String) isValue()   {}

// Date is milliseconds since the Unix epoch. TZOffset is only carried by AMF0.
type Date struct {
	Millis   float64
	TZOffset int16
}

func (Date) Kind() Kind { return KindDate }
func (Date) isValue()   {}

// Time returns the time.Time representation of the Date
func (d Date) Time() time.Time {
	return time.UnixMilli(int64(d.Millis))
}

// DateOf converts t to a Date with millisecond precision.
func DateOf(t time.Time) Date {
	return Date{Millis: float64(t.UnixMilli())}
}

type XMLDocument string

func (XMLDocument) Kind() Kind { return KindXMLDocument }
func (XMLDocument) isValue()   {}

type XMLString string

func (XMLString) Kind() Kind { return KindXMLString }
func (XMLString) isValue()   {}

type ByteArray []byte

func (ByteArray) Kind() Kind { return KindByteArray }
func (ByteArray) isValue()   {}

// Unsupported is the AMF0 "unsupported" marker.
type Unsupported struct{}

func (Unsupported) Kind() Kind { return KindUnsupported }
func (Unsupported) isValue()   {}

// Member is a named value inside an Object or the associative part of an Array.
type Member struct {
	Name  string
	Value Value
}

// Entry is a key/value pair of a Dictionary.
type Entry struct {
	Key   Value
	Value Value
}

// Traits describes an AMF3 class shape. Objects of the same shape share one *Traits.
type Traits struct {
	ClassName      string // empty for anonymous objects
	Dynamic        bool
	Externalizable bool
	Members        []string // sealed member names, in declaration order
}

// Anonymous reports whether the traits describe an untyped object.
func (t *Traits) Anonymous() bool {
	return t.ClassName == ""
}

// SameShape reports whether t and o describe the same class shape. Nil traits
// stand for an anonymous dynamic object, the shape NewObject gives.
func (t *Traits) SameShape(o *Traits) bool {
	if t == o {
		return true
	}
	if t == nil {
		t = &Traits{Dynamic: true}
	}
	if o == nil {
		o = &Traits{Dynamic: true}
	}
	if t.ClassName != o.ClassName || t.Dynamic != o.Dynamic || t.Externalizable != o.Externalizable {
		return false
	}
	if len(t.Members) != len(o.Members) {
		return false
	}
	for i := range t.Members {
		if t.Members[i] != o.Members[i] {
			return false
		}
	}
	return true
}

// External is the payload of an object whose traits are externalizable.
type External interface {
	isExternal()
}

// WrappedExternal is the payload of a known externalizable class: a single value
// decoded by the class strategy.
type WrappedExternal struct {
	Payload Value
}

func (WrappedExternal) isExternal() {}

// RawExternal holds the undecoded bytes of an unknown externalizable class.
type RawExternal struct {
	Data []byte
}

func (RawExternal) isExternal() {}

// Object is an ActionScript object. Sealed values line up with Traits.Members.
type Object struct {
	Traits   *Traits
	Sealed   []Member
	Dynamic  []Member
	External External
}

func (*Object) Kind() Kind { return KindObject }
func (*Object) isValue()   {}

// NewObject returns an anonymous dynamic object with the given members.
func NewObject(members ...Member) *Object {
	return &Object{
		Traits:  &Traits{Dynamic: true},
		Dynamic: members,
	}
}

// Get looks a member up by name, sealed members first.
func (o *Object) Get(name string) (Value, bool) {
	for _, m := range o.Sealed {
		if m.Name == name {
			return m.Value, true
		}
	}
	for _, m := range o.Dynamic {
		if m.Name == name {
			return m.Value, true
		}
	}
	return nil, false
}

// Set replaces the value of an existing member or appends a dynamic one.
func (o *Object) Set(name string, v Value) {
	for i := range o.Sealed {
		if o.Sealed[i].Name == name {
			o.Sealed[i].Value = v
			return
		}
	}
	for i := range o.Dynamic {
		if o.Dynamic[i].Name == name {
			o.Dynamic[i].Value = v
			return
		}
	}
	o.Dynamic = append(o.Dynamic, Member{Name: name, Value: v})
}

// Array is an ActionScript array: a dense part indexed from 0 and an
// associative part for every other key.
//
// ECMA records that the array came from, or is to be written as, an AMF0 ECMA
// array. Length is the count declared in that form; AMF0 echoes it as is. AMF3
// ignores both.
type Array struct {
	Dense       []Value
	Associative []Member
	ECMA        bool
	Length      uint32
}

func (*Array) Kind() Kind { return KindArray }
func (*Array) isValue()   {}

// NewArray returns a dense array.
func NewArray(items ...Value) *Array {
	return &Array{Dense: items}
}

// VectorKind is the element type of a Vector.
type VectorKind uint8

const (
	VectorInt VectorKind = iota
	VectorUInt
	VectorDouble
	VectorObject
)

func (k VectorKind) String() string {
	switch k {
	case VectorInt:
		return "int"
	case VectorUInt:
		return "uint"
	case VectorDouble:
		return "double"
	case VectorObject:
		return "object"
	default:
		return fmt.Sprintf("vector-kind(%d)", uint8(k))
	}
}

// Vector is an AMF3 typed vector. Int items are Integer values, UInt and Double
// items are Number values, Object items may be any Value. ClassName is only used
// by VectorObject.
type Vector struct {
	Element   VectorKind
	ClassName string
	Fixed     bool
	Items     []Value
}

func (*Vector) Kind() Kind { return KindVector }
func (*Vector) isValue()   {}

// Dictionary is an AMF3 dictionary with arbitrary keys.
type Dictionary struct {
	WeakKeys bool
	Entries  []Entry
}

func (*Dictionary) Kind() Kind { return KindDictionary }
func (*Dictionary) isValue()   {}

// IsComposite reports whether v takes part in reference tables by identity.
func IsComposite(v Value) bool {
	switch v.(type) {
	case *Object, *Array, *Vector, *Dictionary:
		return true
	}
	return false
}
