/*
Package editdoc converts decoded object streams into an editable XML document
and back. Every node becomes one element, definitions carry their handle in
an id attribute and back-references point to it with a ref attribute. Parse
of a rendered document yields the very same graph.
*/
package editdoc

import (
	"bytes"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/nspcc-dev/jserial/pkg/objstream"
)

// Errors returned by Parse.
var (
	ErrMalformedMarkup    = errors.New("malformed markup")
	ErrUndefinedReference = errors.New("undefined reference")
	ErrTypeMismatch       = errors.New("type mismatch")
)

// Element names.
const (
	elemStream         = "stream"
	elemNull           = "null"
	elemRef            = "ref"
	elemString         = "string"
	elemClassDesc      = "classdesc"
	elemProxyClassDesc = "proxyclassdesc"
	elemField          = "field"
	elemInterface      = "interface"
	elemAnnotation     = "annotation"
	elemSuper          = "super"
	elemObject         = "object"
	elemClassData      = "classdata"
	elemArray          = "array"
	elemBytes          = "bytes"
	elemEnum           = "enum"
	elemClass          = "class"
	elemBlockData      = "blockdata"
	elemReset          = "reset"
	elemException      = "exception"
)

// maxIndent is the nesting level elements stop being indented at, deeper
// elements are written at this level so that the document stays linear in
// the size of the stream.
const maxIndent = 32

// renderer is an internal rendering context. It follows handle definitions
// the way the decoder does to annotate class data with class and field
// names.
type renderer struct {
	enc  *xml.Encoder
	err  error
	defs map[objstream.Handle]objstream.Node

	depth int
	// open is set while the last started element has no children.
	open    bool
	started bool
}

// Render returns the XML document of s.
func Render(s *objstream.Stream) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	r := &renderer{enc: xml.NewEncoder(&buf)}
	r.reset()

	attrs := []xml.Attr{attr("version", strconv.FormatUint(uint64(s.Version), 10))}
	if len(s.Preamble) != 0 {
		attrs = append(attrs, attr("preamble", hex.EncodeToString(s.Preamble)))
	}
	r.start(elemStream, attrs...)
	for _, n := range s.Contents {
		r.node(n)
	}
	r.end(elemStream)
	if r.err == nil {
		r.err = r.enc.Flush()
	}
	if r.err != nil {
		return nil, r.err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// nameAttr falls back to the hex form of the value (under the "-hex"
// suffixed name) if it can't be an attribute value.
func nameAttr(name, value string) xml.Attr {
	if needsHex(value) {
		return attr(name+"-hex", hex.EncodeToString([]byte(value)))
	}
	return attr(name, value)
}

func withID(extra []xml.Attr, h objstream.Handle) []xml.Attr {
	attrs := slices.Clone(extra)
	if h != 0 {
		attrs = append(attrs, attr("id", h.String()))
	}
	return attrs
}

func (r *renderer) reset() {
	r.defs = make(map[objstream.Handle]objstream.Node)
}

func (r *renderer) define(n objstream.Defined) {
	if id := n.ID(); id != 0 {
		r.defs[id] = n
	}
}

func (r *renderer) resolve(n objstream.Node) *objstream.ClassDesc {
	switch t := n.(type) {
	case *objstream.ClassDesc:
		return t
	case *objstream.Ref:
		cd, _ := r.defs[t.Handle].(*objstream.ClassDesc)
		return cd
	}
	return nil
}

// chain returns the class hierarchy of desc root-most class first, as far
// as it can be resolved.
func (r *renderer) chain(desc objstream.Node) []*objstream.ClassDesc {
	var res []*objstream.ClassDesc
	seen := make(map[*objstream.ClassDesc]bool)
	for cd := r.resolve(desc); cd != nil && !seen[cd]; cd = r.resolve(cd.Super) {
		seen[cd] = true
		res = append(res, cd)
	}
	slices.Reverse(res)
	return res
}

func (r *renderer) token(t xml.Token) {
	if r.err == nil {
		r.err = r.enc.EncodeToken(t)
	}
}

func (r *renderer) newline() {
	if !r.started {
		r.started = true
		return
	}
	r.token(xml.CharData("\n" + strings.Repeat("  ", min(r.depth, maxIndent))))
}

func (r *renderer) start(name string, attrs ...xml.Attr) {
	r.newline()
	r.token(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
	r.depth++
	r.open = true
}

func (r *renderer) end(name string) {
	r.depth--
	if !r.open {
		r.newline()
	}
	r.token(xml.EndElement{Name: xml.Name{Local: name}})
	r.open = false
}

func (r *renderer) leaf(name, text string, attrs ...xml.Attr) {
	r.start(name, attrs...)
	if text != "" {
		r.token(xml.CharData(text))
	}
	r.end(name)
}

func (r *renderer) node(n objstream.Node, extra ...xml.Attr) {
	if r.err != nil {
		return
	}
	switch t := n.(type) {
	case *objstream.Null:
		r.leaf(elemNull, "", extra...)
	case *objstream.Ref:
		r.leaf(elemRef, "", append(slices.Clone(extra), attr("ref", t.Handle.String()))...)
	case *objstream.String:
		r.define(t)
		attrs := withID(extra, t.Handle)
		if needsHex(t.Value) {
			attrs = append(attrs, attr("encoding", "hex"))
			r.leaf(elemString, hex.EncodeToString([]byte(t.Value)), attrs...)
			return
		}
		r.leaf(elemString, t.Value, attrs...)
	case *objstream.ClassDesc:
		r.classDesc(t, extra)
	case *objstream.Object:
		r.object(t, extra)
	case *objstream.Array:
		r.array(t, extra)
	case *objstream.Enum:
		r.start(elemEnum, withID(extra, t.Handle)...)
		r.node(t.Desc)
		r.define(t)
		r.node(t.Constant)
		r.end(elemEnum)
	case *objstream.Class:
		r.start(elemClass, withID(extra, t.Handle)...)
		r.node(t.Desc)
		r.define(t)
		r.end(elemClass)
	case *objstream.Primitive:
		text, err := formatPrimitive(t)
		if err != nil {
			r.err = err
			return
		}
		r.leaf(t.Type.String(), text, extra...)
	case *objstream.BlockData:
		attrs := slices.Clone(extra)
		if t.Raw {
			attrs = append(attrs, attr("raw", "true"))
		}
		r.leaf(elemBlockData, hex.EncodeToString(t.Data), attrs...)
	case *objstream.Reset:
		r.reset()
		r.leaf(elemReset, "", extra...)
	case *objstream.Exception:
		r.reset()
		r.start(elemException, extra...)
		r.node(t.Throwable)
		r.end(elemException)
		r.reset()
	default:
		r.err = fmt.Errorf("%w: can't render %T", ErrTypeMismatch, n)
	}
}

func (r *renderer) classDesc(cd *objstream.ClassDesc, extra []xml.Attr) {
	r.define(cd)
	name := elemClassDesc
	attrs := withID(extra, cd.Handle)
	if cd.Proxy {
		name = elemProxyClassDesc
	} else {
		attrs = append(attrs,
			nameAttr("name", cd.Name),
			attr("suid", strconv.FormatInt(cd.SerialVersionUID, 10)),
			attr("flags", fmt.Sprintf("0x%02x", cd.Flags)))
	}
	r.start(name, attrs...)
	for _, iface := range cd.Interfaces {
		r.leaf(elemInterface, "", nameAttr("name", iface))
	}
	for _, f := range cd.Fields {
		if !f.Type.IsValid() {
			r.err = fmt.Errorf("%w: field %q has invalid type 0x%02x", ErrTypeMismatch, f.Name, byte(f.Type))
			return
		}
		attrs := []xml.Attr{attr("type", f.Type.String()), nameAttr("name", f.Name)}
		if f.ClassName == nil {
			r.leaf(elemField, "", attrs...)
			continue
		}
		r.start(elemField, attrs...)
		r.node(f.ClassName)
		r.end(elemField)
	}
	r.annotation(cd.Annotation)
	if cd.Super != nil {
		r.start(elemSuper)
		r.node(cd.Super)
		r.end(elemSuper)
	}
	r.end(name)
}

func (r *renderer) annotation(nodes []objstream.Node) {
	if len(nodes) == 0 {
		return
	}
	r.start(elemAnnotation)
	for _, n := range nodes {
		r.node(n)
	}
	r.end(elemAnnotation)
}

func (r *renderer) object(o *objstream.Object, extra []xml.Attr) {
	r.start(elemObject, withID(extra, o.Handle)...)
	r.node(o.Desc)
	r.define(o)
	chain := r.chain(o.Desc)
	if cd := r.resolve(o.Desc); cd != nil && cd.IsExternalizable() {
		chain = []*objstream.ClassDesc{cd}
	}
	for i := range o.Data {
		var cd *objstream.ClassDesc
		if i < len(chain) {
			cd = chain[i]
		}
		r.classData(cd, &o.Data[i])
	}
	r.end(elemObject)
}

func (r *renderer) classData(cd *objstream.ClassDesc, data *objstream.ClassData) {
	var (
		attrs  []xml.Attr
		fields []objstream.FieldDesc
	)
	if cd != nil && !cd.Proxy {
		attrs = append(attrs, nameAttr("class", cd.Name))
		if !cd.IsExternalizable() {
			fields = cd.WireFields()
		}
	}
	r.start(elemClassData, attrs...)
	for i, v := range data.Values {
		if i < len(fields) {
			r.node(v, nameAttr("field", fields[i].Name))
		} else {
			r.node(v)
		}
	}
	r.annotation(data.Annotation)
	r.end(elemClassData)
}

func (r *renderer) array(a *objstream.Array, extra []xml.Attr) {
	r.start(elemArray, withID(extra, a.Handle)...)
	r.node(a.Desc)
	r.define(a)
	if b, ok := byteElements(a.Elements); ok {
		r.leaf(elemBytes, hex.EncodeToString(b))
	} else {
		for _, el := range a.Elements {
			r.node(el)
		}
	}
	r.end(elemArray)
}

// byteElements packs elements into a byte slice if all of them are bytes.
func byteElements(elements []objstream.Node) ([]byte, bool) {
	if len(elements) == 0 {
		return nil, false
	}
	res := make([]byte, len(elements))
	for i, el := range elements {
		p, ok := el.(*objstream.Primitive)
		if !ok || p.Type != objstream.TypeByte || p.Int < -128 || p.Int > 127 {
			return nil, false
		}
		res[i] = byte(p.Int)
	}
	return res, true
}
