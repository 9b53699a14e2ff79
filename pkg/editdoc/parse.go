package editdoc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/nspcc-dev/jserial/pkg/objstream"
)

// element is a generic XML element, documents are read into a tree of them
// first and converted to nodes afterwards.
type element struct {
	name     string
	attrs    []xml.Attr
	children []*element
	text     []byte
	line     int
}

func (e *element) errorf(base error, format string, args ...any) error {
	return fmt.Errorf("%w: <%s> at line %d: %s", base, e.name, e.line, fmt.Sprintf(format, args...))
}

// attrMap returns element attributes failing on anything not allowed.
func (e *element) attrMap(allowed ...string) (map[string]string, error) {
	m := make(map[string]string, len(e.attrs))
	for _, a := range e.attrs {
		if a.Name.Space != "" || !slices.Contains(allowed, a.Name.Local) {
			return nil, e.errorf(ErrMalformedMarkup, "unexpected attribute %q", a.Name.Local)
		}
		if _, ok := m[a.Name.Local]; ok {
			return nil, e.errorf(ErrMalformedMarkup, "duplicate attribute %q", a.Name.Local)
		}
		m[a.Name.Local] = a.Value
	}
	return m, nil
}

// container checks that e only has whitespace between its children.
func (e *element) container() error {
	if len(bytes.TrimSpace(e.text)) != 0 {
		return e.errorf(ErrMalformedMarkup, "unexpected text")
	}
	return nil
}

// value returns the text of a leaf element.
func (e *element) value() (string, error) {
	if len(e.children) != 0 {
		return "", e.errorf(ErrMalformedMarkup, "unexpected <%s>", e.children[0].name)
	}
	return string(e.text), nil
}

// empty checks that e has neither children nor text.
func (e *element) empty() error {
	if len(e.children) != 0 {
		return e.errorf(ErrMalformedMarkup, "unexpected <%s>", e.children[0].name)
	}
	return e.container()
}

// only returns the single child of e.
func (e *element) only() (*element, error) {
	if err := e.container(); err != nil {
		return nil, err
	}
	if len(e.children) != 1 {
		return nil, e.errorf(ErrMalformedMarkup, "expected one child, got %d", len(e.children))
	}
	return e.children[0], nil
}

// nameValue returns the attribute with its "-hex" suffixed fallback.
func (e *element) nameValue(a map[string]string, name string) (string, bool, error) {
	v, plain := a[name]
	h, encoded := a[name+"-hex"]
	switch {
	case plain && encoded:
		return "", false, e.errorf(ErrMalformedMarkup, "both %s and %s-hex", name, name)
	case encoded:
		b, err := decodeHex(h)
		if err != nil {
			return "", false, e.errorf(ErrTypeMismatch, "%s-hex: %v", name, err)
		}
		return string(b), true, nil
	}
	return v, plain, nil
}

// maxElementDepth limits element nesting, every graph level takes at most
// this many elements.
const maxElementDepth = 4 * objstream.MaxNestingDepth

func readTree(data []byte) (*element, error) {
	var (
		d     = xml.NewDecoder(bytes.NewReader(data))
		root  *element
		stack []*element
	)
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMarkup, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			line, _ := d.InputPos()
			el := &element{name: t.Name.Local, attrs: t.Attr, line: line}
			if t.Name.Space != "" {
				return nil, el.errorf(ErrMalformedMarkup, "unexpected namespace %q", t.Name.Space)
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, el.errorf(ErrMalformedMarkup, "second root element")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
			if len(stack) > maxElementDepth {
				return nil, el.errorf(fmt.Errorf("%w: %w", ErrMalformedMarkup, objstream.ErrNestingTooDeep),
					"more than %d levels", maxElementDepth)
			}
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) != 0 {
					return nil, fmt.Errorf("%w: text outside of the root element", ErrMalformedMarkup)
				}
				continue
			}
			top := stack[len(stack)-1]
			top.text = append(top.text, t...)
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedMarkup)
	}
	return root, nil
}

// position is the place of a node in the document.
type position byte

const (
	posTop position = iota
	posAnnotation
	// posNested is a descriptor, a class name, an enum constant or a
	// throwable.
	posNested
	// posElement is an array element.
	posElement
	// posValue is a class data value, it may carry the field name.
	posValue
)

// parser is an internal conversion context. It tracks handles defined so
// far the same way the decoder does.
type parser struct {
	defs map[objstream.Handle]bool
}

// Parse converts an XML document produced by Render (and possibly edited)
// back into a stream graph. Definitions without id get no handle and are
// numbered on encoding.
func Parse(data []byte) (*objstream.Stream, error) {
	root, err := readTree(data)
	if err != nil {
		return nil, err
	}
	if root.name != elemStream {
		return nil, root.errorf(ErrMalformedMarkup, "expected <%s> root", elemStream)
	}
	a, err := root.attrMap("version", "preamble")
	if err != nil {
		return nil, err
	}
	if err := root.container(); err != nil {
		return nil, err
	}
	s := new(objstream.Stream)
	if v, ok := a["version"]; ok {
		ver, err := strconv.ParseUint(strings.TrimSpace(v), 10, 16)
		if err != nil {
			return nil, root.errorf(ErrTypeMismatch, "version %q", v)
		}
		s.Version = uint16(ver)
	}
	if v, ok := a["preamble"]; ok {
		if s.Preamble, err = decodeHex(v); err != nil {
			return nil, root.errorf(ErrTypeMismatch, "preamble: %v", err)
		}
	}
	p := &parser{}
	p.reset()
	for _, c := range root.children {
		n, err := p.content(c, posTop)
		if err != nil {
			return nil, err
		}
		s.Contents = append(s.Contents, n)
	}
	return s, nil
}

func (p *parser) reset() {
	p.defs = make(map[objstream.Handle]bool)
}

// id returns the optional handle of a definition.
func (p *parser) id(e *element, a map[string]string) (objstream.Handle, error) {
	v, ok := a["id"]
	if !ok {
		return 0, nil
	}
	h, err := parseHandle(v)
	if err != nil {
		return 0, e.errorf(ErrTypeMismatch, "%v", err)
	}
	return h, nil
}

func (p *parser) define(e *element, h objstream.Handle) error {
	if h == 0 {
		return nil
	}
	if p.defs[h] {
		return e.errorf(ErrMalformedMarkup, "handle %s is already defined", h)
	}
	p.defs[h] = true
	return nil
}

func (p *parser) content(e *element, pos position) (objstream.Node, error) {
	var extra []string
	if pos == posValue {
		extra = []string{"field", "field-hex"}
	}
	switch e.name {
	case elemNull:
		if _, err := e.attrMap(extra...); err != nil {
			return nil, err
		}
		if err := e.empty(); err != nil {
			return nil, err
		}
		return &objstream.Null{}, nil
	case elemRef:
		a, err := e.attrMap(append(extra, "ref")...)
		if err != nil {
			return nil, err
		}
		if err := e.empty(); err != nil {
			return nil, err
		}
		v, ok := a["ref"]
		if !ok {
			return nil, e.errorf(ErrMalformedMarkup, "missing ref attribute")
		}
		h, err := parseHandle(v)
		if err != nil {
			return nil, e.errorf(ErrTypeMismatch, "%v", err)
		}
		if !p.defs[h] {
			return nil, e.errorf(ErrUndefinedReference, "%s", h)
		}
		return &objstream.Ref{Handle: h}, nil
	case elemString:
		return p.str(e, extra)
	case elemClassDesc, elemProxyClassDesc:
		return p.classDesc(e, extra)
	case elemObject:
		return p.object(e, extra)
	case elemArray:
		return p.array(e, extra)
	case elemEnum:
		return p.enum(e, extra)
	case elemClass:
		a, err := e.attrMap(append(extra, "id")...)
		if err != nil {
			return nil, err
		}
		c := new(objstream.Class)
		if c.Handle, err = p.id(e, a); err != nil {
			return nil, err
		}
		d, err := e.only()
		if err != nil {
			return nil, err
		}
		if c.Desc, err = p.content(d, posNested); err != nil {
			return nil, err
		}
		return c, p.define(e, c.Handle)
	case elemBlockData:
		a, err := e.attrMap(append(extra, "raw")...)
		if err != nil {
			return nil, err
		}
		b := new(objstream.BlockData)
		if v, ok := a["raw"]; ok {
			if b.Raw, err = strconv.ParseBool(v); err != nil {
				return nil, e.errorf(ErrTypeMismatch, "raw %q", v)
			}
		}
		v, err := e.value()
		if err != nil {
			return nil, err
		}
		if b.Data, err = decodeHex(v); err != nil {
			return nil, e.errorf(ErrTypeMismatch, "%v", err)
		}
		return b, nil
	case elemReset:
		if _, err := e.attrMap(extra...); err != nil {
			return nil, err
		}
		if err := e.empty(); err != nil {
			return nil, err
		}
		p.reset()
		return &objstream.Reset{}, nil
	case elemException:
		if _, err := e.attrMap(extra...); err != nil {
			return nil, err
		}
		t, err := e.only()
		if err != nil {
			return nil, err
		}
		p.reset()
		n, err := p.content(t, posNested)
		if err != nil {
			return nil, err
		}
		p.reset()
		return &objstream.Exception{Throwable: n}, nil
	}
	if t, err := objstream.FieldTypeFromString(e.name); err == nil && t.IsPrimitive() {
		if pos != posValue && pos != posElement {
			return nil, e.errorf(ErrMalformedMarkup, "primitive outside of class data or array")
		}
		if _, err := e.attrMap(extra...); err != nil {
			return nil, err
		}
		v, err := e.value()
		if err != nil {
			return nil, err
		}
		prim, err := parsePrimitive(t, v)
		if err != nil {
			return nil, e.errorf(ErrTypeMismatch, "%v", err)
		}
		return prim, nil
	}
	return nil, e.errorf(ErrMalformedMarkup, "unknown element")
}

func (p *parser) str(e *element, extra []string) (*objstream.String, error) {
	a, err := e.attrMap(append(extra, "id", "encoding")...)
	if err != nil {
		return nil, err
	}
	s := new(objstream.String)
	if s.Handle, err = p.id(e, a); err != nil {
		return nil, err
	}
	if err := p.define(e, s.Handle); err != nil {
		return nil, err
	}
	v, err := e.value()
	if err != nil {
		return nil, err
	}
	switch enc := a["encoding"]; enc {
	case "":
		s.Value = v
	case "hex":
		b, err := decodeHex(v)
		if err != nil {
			return nil, e.errorf(ErrTypeMismatch, "%v", err)
		}
		s.Value = string(b)
	default:
		return nil, e.errorf(ErrMalformedMarkup, "unknown encoding %q", enc)
	}
	return s, nil
}

func (p *parser) classDesc(e *element, extra []string) (*objstream.ClassDesc, error) {
	cd := &objstream.ClassDesc{Proxy: e.name == elemProxyClassDesc}
	allowed := append(extra, "id")
	if !cd.Proxy {
		allowed = append(allowed, "name", "name-hex", "suid", "flags")
	}
	a, err := e.attrMap(allowed...)
	if err != nil {
		return nil, err
	}
	if cd.Handle, err = p.id(e, a); err != nil {
		return nil, err
	}
	if err := p.define(e, cd.Handle); err != nil {
		return nil, err
	}
	if !cd.Proxy {
		name, ok, err := e.nameValue(a, "name")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, e.errorf(ErrMalformedMarkup, "missing class name")
		}
		cd.Name = name
		if v, ok := a["suid"]; ok {
			if cd.SerialVersionUID, err = strconv.ParseInt(strings.TrimSpace(v), 0, 64); err != nil {
				return nil, e.errorf(ErrTypeMismatch, "suid %q", v)
			}
		}
		if v, ok := a["flags"]; ok {
			flags, err := strconv.ParseUint(strings.TrimSpace(v), 0, 8)
			if err != nil {
				return nil, e.errorf(ErrTypeMismatch, "flags %q", v)
			}
			cd.Flags = byte(flags)
		}
	}
	if err := e.container(); err != nil {
		return nil, err
	}
	// Children go in order: interfaces, fields, annotation, super.
	stage := 0
	for _, c := range e.children {
		var next int
		switch c.name {
		case elemInterface:
			next = 0
			a, err := c.attrMap("name", "name-hex")
			if err != nil {
				return nil, err
			}
			name, ok, err := c.nameValue(a, "name")
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, c.errorf(ErrMalformedMarkup, "missing interface name")
			}
			if err := c.empty(); err != nil {
				return nil, err
			}
			cd.Interfaces = append(cd.Interfaces, name)
		case elemField:
			next = 1
			f, err := p.field(c)
			if err != nil {
				return nil, err
			}
			cd.Fields = append(cd.Fields, f)
		case elemAnnotation:
			next = 2
			if stage == next {
				return nil, c.errorf(ErrMalformedMarkup, "second annotation")
			}
			if cd.Annotation, err = p.annotation(c); err != nil {
				return nil, err
			}
		case elemSuper:
			next = 3
			if stage == next {
				return nil, c.errorf(ErrMalformedMarkup, "second superclass")
			}
			s, err := c.only()
			if err != nil {
				return nil, err
			}
			if cd.Super, err = p.content(s, posNested); err != nil {
				return nil, err
			}
		default:
			return nil, c.errorf(ErrMalformedMarkup, "unexpected in <%s>", e.name)
		}
		if next < stage {
			return nil, c.errorf(ErrMalformedMarkup, "out of order in <%s>", e.name)
		}
		stage = next
	}
	return cd, nil
}

func (p *parser) field(e *element) (objstream.FieldDesc, error) {
	var f objstream.FieldDesc
	a, err := e.attrMap("type", "name", "name-hex")
	if err != nil {
		return f, err
	}
	t, ok := a["type"]
	if !ok {
		return f, e.errorf(ErrMalformedMarkup, "missing field type")
	}
	if f.Type, err = objstream.FieldTypeFromString(t); err != nil {
		return f, e.errorf(ErrTypeMismatch, "field type %q", t)
	}
	name, ok, err := e.nameValue(a, "name")
	if err != nil {
		return f, err
	}
	if !ok {
		return f, e.errorf(ErrMalformedMarkup, "missing field name")
	}
	f.Name = name
	if err := e.container(); err != nil {
		return f, err
	}
	switch len(e.children) {
	case 0:
	case 1:
		if f.ClassName, err = p.content(e.children[0], posNested); err != nil {
			return f, err
		}
	default:
		return f, e.errorf(ErrMalformedMarkup, "more than one type signature")
	}
	return f, nil
}

func (p *parser) annotation(e *element) ([]objstream.Node, error) {
	if _, err := e.attrMap(); err != nil {
		return nil, err
	}
	if err := e.container(); err != nil {
		return nil, err
	}
	var res []objstream.Node
	for _, c := range e.children {
		n, err := p.content(c, posAnnotation)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, nil
}

// head reads the id of a definition followed by its descriptor, which is
// the first child. The handle gets defined after the descriptor like it
// does on the wire.
func (p *parser) head(e *element, extra []string) (objstream.Handle, objstream.Node, error) {
	a, err := e.attrMap(append(extra, "id")...)
	if err != nil {
		return 0, nil, err
	}
	h, err := p.id(e, a)
	if err != nil {
		return 0, nil, err
	}
	if err := e.container(); err != nil {
		return 0, nil, err
	}
	if len(e.children) == 0 {
		return 0, nil, e.errorf(ErrMalformedMarkup, "missing class descriptor")
	}
	desc, err := p.content(e.children[0], posNested)
	if err != nil {
		return 0, nil, err
	}
	return h, desc, p.define(e, h)
}

func (p *parser) object(e *element, extra []string) (*objstream.Object, error) {
	h, desc, err := p.head(e, extra)
	if err != nil {
		return nil, err
	}
	o := &objstream.Object{Handle: h, Desc: desc}
	for _, c := range e.children[1:] {
		if c.name != elemClassData {
			return nil, c.errorf(ErrMalformedMarkup, "expected <%s>", elemClassData)
		}
		d, err := p.classData(c)
		if err != nil {
			return nil, err
		}
		o.Data = append(o.Data, d)
	}
	return o, nil
}

func (p *parser) classData(e *element) (objstream.ClassData, error) {
	var d objstream.ClassData
	if _, err := e.attrMap("class", "class-hex"); err != nil {
		return d, err
	}
	if err := e.container(); err != nil {
		return d, err
	}
	for i, c := range e.children {
		if c.name == elemAnnotation {
			if i != len(e.children)-1 {
				return d, c.errorf(ErrMalformedMarkup, "annotation must be the last in class data")
			}
			ann, err := p.annotation(c)
			if err != nil {
				return d, err
			}
			d.Annotation = ann
			continue
		}
		n, err := p.content(c, posValue)
		if err != nil {
			return d, err
		}
		d.Values = append(d.Values, n)
	}
	return d, nil
}

func (p *parser) array(e *element, extra []string) (*objstream.Array, error) {
	h, desc, err := p.head(e, extra)
	if err != nil {
		return nil, err
	}
	arr := &objstream.Array{Handle: h, Desc: desc}
	for _, c := range e.children[1:] {
		if c.name == elemBytes {
			if _, err := c.attrMap(); err != nil {
				return nil, err
			}
			v, err := c.value()
			if err != nil {
				return nil, err
			}
			b, err := decodeHex(v)
			if err != nil {
				return nil, c.errorf(ErrTypeMismatch, "%v", err)
			}
			for _, x := range b {
				arr.Elements = append(arr.Elements, &objstream.Primitive{Type: objstream.TypeByte, Int: int64(int8(x))})
			}
			continue
		}
		n, err := p.content(c, posElement)
		if err != nil {
			return nil, err
		}
		arr.Elements = append(arr.Elements, n)
	}
	return arr, nil
}

func (p *parser) enum(e *element, extra []string) (*objstream.Enum, error) {
	h, desc, err := p.head(e, extra)
	if err != nil {
		return nil, err
	}
	if len(e.children) != 2 {
		return nil, e.errorf(ErrMalformedMarkup, "expected descriptor and constant name")
	}
	en := &objstream.Enum{Handle: h, Desc: desc}
	if en.Constant, err = p.content(e.children[1], posNested); err != nil {
		return nil, err
	}
	return en, nil
}
