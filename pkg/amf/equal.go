package amf

import (
	"bytes"
	"math"
)

// Version selects the wire format of an AMF body.
type Version uint8

const (
	AMF0 Version = 0
	AMF3 Version = 3
)

func (v Version) String() string {
	switch v {
	case AMF0:
		return "AMF0"
	case AMF3:
		return "AMF3"
	default:
		return "AMF?"
	}
}

// Valid reports whether v is a known format version.
func (v Version) Valid() bool {
	return v == AMF0 || v == AMF3
}

// Equal reports whether a and b are structurally equal. Numbers are compared by
// bit pattern so NaN equals NaN. Cycles are handled: a pair of composites already
// under comparison is assumed equal.
func Equal(a, b Value) bool {
	c := comparer{seen: make(map[[2]Value]bool)}
	return c.equal(a, b)
}

type comparer struct {
	seen map[[2]Value]bool
}

func (c *comparer) equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	if IsComposite(a) {
		key := [2]Value{a, b}
		if c.seen[key] {
			return true
		}
		c.seen[key] = true
	}

	switch x := a.(type) {
	case Undefined, Null, Unsupported:
		return true
	case Boolean:
		return x == b.(Boolean)
	case Number:
		return math.Float64bits(float64(x)) == math.Float64bits(float64(b.(Number)))
	case Integer:
		return x == b.(Integer)
	case String:
		return x == b.(String)
	case XMLDocument:
		return x == b.(XMLDocument)
	case XMLString:
		return x == b.(XMLString)
	case Date:
		y := b.(Date)
		return math.Float64bits(x.Millis) == math.Float64bits(y.Millis) && x.TZOffset == y.TZOffset
	case ByteArray:
		return bytes.Equal(x, b.(ByteArray))
	case *Object:
		return c.object(x, b.(*Object))
	case *Array:
		y := b.(*Array)
		if x.ECMA != y.ECMA || x.Length != y.Length {
			return false
		}
		return c.values(x.Dense, y.Dense) && c.members(x.Associative, y.Associative)
	case *Vector:
		y := b.(*Vector)
		if x.Element != y.Element || x.Fixed != y.Fixed || x.ClassName != y.ClassName {
			return false
		}
		return c.values(x.Items, y.Items)
	case *Dictionary:
		y := b.(*Dictionary)
		if x.WeakKeys != y.WeakKeys || len(x.Entries) != len(y.Entries) {
			return false
		}
		for i := range x.Entries {
			if !c.equal(x.Entries[i].Key, y.Entries[i].Key) || !c.equal(x.Entries[i].Value, y.Entries[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

func (c *comparer) object(x, y *Object) bool {
	if !x.Traits.SameShape(y.Traits) {
		return false
	}
	if !c.members(x.Sealed, y.Sealed) || !c.members(x.Dynamic, y.Dynamic) {
		return false
	}
	switch ex := x.External.(type) {
	case nil:
		return y.External == nil
	case WrappedExternal:
		ey, ok := y.External.(WrappedExternal)
		return ok && c.equal(ex.Payload, ey.Payload)
	case RawExternal:
		ey, ok := y.External.(RawExternal)
		return ok && bytes.Equal(ex.Data, ey.Data)
	}
	return false
}

func (c *comparer) values(x, y []Value) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if !c.equal(x[i], y[i]) {
			return false
		}
	}
	return true
}

func (c *comparer) members(x, y []Member) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i].Name != y[i].Name || !c.equal(x[i].Value, y[i].Value) {
			return false
		}
	}
	return true
}
