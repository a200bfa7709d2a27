package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/DMA-Software/dma-golso/pkg/amf"
	"github.com/DMA-Software/dma-golso/pkg/sol"
)

// dumpDocument prints the header and every element r yields. Elements decoded
// before an error are printed before the error is returned.
func dumpDocument(w io.Writer, r *sol.Reader) error {
	h := r.Header()
	fmt.Fprintf(w, "name: %s\nversion: %s\n", h.Name, h.Version)

	d := &dumper{w: w, seen: make(map[amf.Value]int)}
	for {
		e, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		d.field(0, e.Name, e.Value)
	}
}

// dumper writes one line per value. Composites get a #n label the first time
// they appear and are printed as "-> #n" afterwards.
type dumper struct {
	w    io.Writer
	seen map[amf.Value]int
}

func (d *dumper) field(depth int, label string, v amf.Value) {
	fmt.Fprintf(d.w, "%s%s = ", strings.Repeat("  ", depth), label)

	if amf.IsComposite(v) {
		if n, ok := d.seen[v]; ok {
			fmt.Fprintf(d.w, "-> #%d\n", n)
			return
		}
		d.seen[v] = len(d.seen) + 1
	}

	switch x := v.(type) {
	case *amf.Object:
		class := "object"
		if x.Traits != nil && x.Traits.ClassName != "" {
			class = x.Traits.ClassName
		}
		fmt.Fprintf(d.w, "%s #%d\n", class, d.seen[v])
		for _, m := range x.Sealed {
			d.field(depth+1, m.Name, m.Value)
		}
		for _, m := range x.Dynamic {
			d.field(depth+1, m.Name, m.Value)
		}
		switch ext := x.External.(type) {
		case amf.WrappedExternal:
			d.field(depth+1, "(external)", ext.Payload)
		case amf.RawExternal:
			fmt.Fprintf(d.w, "%s(external) = %d raw bytes\n", strings.Repeat("  ", depth+1), len(ext.Data))
		}
	case *amf.Array:
		if x.ECMA {
			fmt.Fprintf(d.w, "ecma-array(%d) #%d\n", x.Length, d.seen[v])
		} else {
			fmt.Fprintf(d.w, "array #%d\n", d.seen[v])
		}
		for i, item := range x.Dense {
			d.field(depth+1, fmt.Sprintf("[%d]", i), item)
		}
		for _, m := range x.Associative {
			d.field(depth+1, m.Name, m.Value)
		}
	case *amf.Vector:
		fmt.Fprintf(d.w, "vector<%s> #%d\n", x.Element, d.seen[v])
		for i, item := range x.Items {
			d.field(depth+1, fmt.Sprintf("[%d]", i), item)
		}
	case *amf.Dictionary:
		fmt.Fprintf(d.w, "dictionary #%d\n", d.seen[v])
		for _, e := range x.Entries {
			d.field(depth+1, "key", e.Key)
			d.field(depth+2, "value", e.Value)
		}
	default:
		fmt.Fprintln(d.w, scalar(v))
	}
}

func scalar(v amf.Value) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case amf.String:
		return fmt.Sprintf("string %q", string(x))
	case amf.Number:
		return fmt.Sprintf("number %v", float64(x))
	case amf.Integer:
		return fmt.Sprintf("integer %d", int32(x))
	case amf.Boolean:
		return fmt.Sprintf("boolean %v", bool(x))
	case amf.Date:
		return fmt.Sprintf("date %s", x.Time().UTC().Format("2006-01-02T15:04:05.000Z"))
	case amf.ByteArray:
		return fmt.Sprintf("bytes % X", []byte(x))
	case amf.XMLDocument:
		return fmt.Sprintf("xml-document %q", string(x))
	case amf.XMLString:
		return fmt.Sprintf("xml %q", string(x))
	default:
		return v.Kind().String()
	}
}
