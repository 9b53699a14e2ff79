package objstream

import (
	"errors"
	"fmt"
	gio "io"

	"github.com/nspcc-dev/jserial/pkg/io"
)

// context restricts which content units are allowed at some position.
type context byte

const (
	// ctxTop is the stream top level.
	ctxTop context = iota
	// ctxAnnotation is a class or object annotation.
	ctxAnnotation
	// ctxValue is a field value or an array element.
	ctxValue
)

// decoder is an internal decoding context.
type decoder struct {
	*io.BinReader
	handles HandleTable
	depth   int
	// stopped is set once raw block data has consumed the rest of the input.
	stopped bool
}

// Decode parses a stream starting with the stream magic into a graph.
// Contents are read until the input is exhausted.
func Decode(data []byte) (*Stream, error) {
	d := &decoder{BinReader: io.NewBinReaderFromBuf(data)}
	m := d.ReadU16BE()
	v := d.ReadU16BE()
	if d.Err == nil && (m != StreamMagic || v != StreamVersion) {
		return nil, fmt.Errorf("%w: magic 0x%04x, version %d", ErrInvalidHeader, m, v)
	}
	s := &Stream{Version: v}
	for d.Err == nil && !d.stopped && d.Len() > 0 {
		n := d.readContent(ctxTop)
		if d.Err != nil {
			break
		}
		s.Contents = append(s.Contents, n)
	}
	if d.Err != nil {
		if errors.Is(d.Err, gio.EOF) || errors.Is(d.Err, gio.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w at offset %d", ErrTruncatedStream, d.Pos())
		}
		return nil, d.Err
	}
	return s, nil
}

func (d *decoder) fail(err error) {
	if d.Err == nil {
		d.Err = err
	}
}

// enter accounts for one more nesting level, the caller must call leave
// even if it fails.
func (d *decoder) enter() bool {
	d.depth++
	if d.depth > MaxNestingDepth {
		d.fail(fmt.Errorf("%w: more than %d levels at offset %d", ErrNestingTooDeep, MaxNestingDepth, d.Pos()))
		return false
	}
	return true
}

func (d *decoder) leave() {
	d.depth--
}

func (d *decoder) unknown(tc byte, pos int) {
	d.fail(fmt.Errorf("%w 0x%02x at offset %d", ErrUnknownTypeCode, tc, pos))
}

func (d *decoder) readContent(ctx context) Node {
	pos := d.Pos()
	tc := d.ReadB()
	if d.Err != nil {
		return nil
	}
	defer d.leave()
	if !d.enter() {
		return nil
	}
	switch tc {
	case tcNull:
		return &Null{}
	case tcReference:
		return d.readRef()
	case tcClassDesc:
		return d.readClassDesc()
	case tcProxyClassDesc:
		return d.readProxyClassDesc()
	case tcObject:
		return d.readObject()
	case tcString, tcLongString:
		return d.readString(tc == tcLongString)
	case tcArray:
		return d.readArray()
	case tcClass:
		return d.readClass()
	case tcEnum:
		return d.readEnum()
	case tcException:
		return d.readException()
	case tcReset:
		if ctx == ctxTop {
			d.handles.Reset()
			return &Reset{}
		}
	case tcBlockData:
		if ctx != ctxValue {
			n := d.ReadB()
			return &BlockData{Data: d.ReadBytes(int(n))}
		}
	case tcBlockDataLong:
		if ctx != ctxValue {
			n := int32(d.ReadU32BE())
			if n < 0 {
				d.fail(fmt.Errorf("negative block data length %d at offset %d", n, pos))
				return nil
			}
			return &BlockData{Data: d.ReadBytes(int(n))}
		}
	}
	d.unknown(tc, pos)
	return nil
}

func (d *decoder) readRef() *Ref {
	pos := d.Pos()
	h := Handle(d.ReadU32BE())
	if d.Err != nil {
		return nil
	}
	if _, ok := d.handles.Lookup(h); !ok {
		d.fail(fmt.Errorf("%w: %s at offset %d", ErrInvalidHandleReference, h, pos))
		return nil
	}
	return &Ref{Handle: h}
}

// resolveDesc returns the class descriptor n designates.
func (d *decoder) resolveDesc(n Node) (*ClassDesc, error) {
	switch t := n.(type) {
	case *ClassDesc:
		return t, nil
	case *Ref:
		if v, ok := d.handles.Lookup(t.Handle); ok {
			if cd, ok := v.(*ClassDesc); ok {
				return cd, nil
			}
		}
		return nil, fmt.Errorf("%w: %s is not a class descriptor", ErrInvalidHandleReference, t.Handle)
	}
	return nil, fmt.Errorf("%w: %T is not a class descriptor", ErrInvalidHandleReference, n)
}

// readDesc reads a class descriptor position which is either a new
// descriptor, a reference to one or (if allowNull is set) null.
func (d *decoder) readDesc(allowNull bool) (Node, *ClassDesc) {
	pos := d.Pos()
	tc := d.ReadB()
	if d.Err != nil {
		return nil, nil
	}
	defer d.leave()
	if !d.enter() {
		return nil, nil
	}
	var n Node
	switch tc {
	case tcNull:
		if allowNull {
			return &Null{}, nil
		}
	case tcClassDesc:
		n = d.readClassDesc()
	case tcProxyClassDesc:
		n = d.readProxyClassDesc()
	case tcReference:
		if r := d.readRef(); r != nil {
			n = r
		}
	}
	if n == nil {
		if d.Err == nil {
			d.unknown(tc, pos)
		}
		return nil, nil
	}
	cd, err := d.resolveDesc(n)
	if err != nil {
		d.fail(err)
		return nil, nil
	}
	return n, cd
}

// readStringRef reads a string or a reference to one, which is how field
// type signatures and enum constant names are written.
func (d *decoder) readStringRef(allowNull bool) Node {
	pos := d.Pos()
	tc := d.ReadB()
	if d.Err != nil {
		return nil
	}
	switch tc {
	case tcNull:
		if allowNull {
			return &Null{}
		}
	case tcString, tcLongString:
		return d.readString(tc == tcLongString)
	case tcReference:
		r := d.readRef()
		if r == nil {
			return nil
		}
		if v, _ := d.handles.Lookup(r.Handle); v.Kind() != StringK {
			d.fail(fmt.Errorf("%w: %s is not a string", ErrInvalidHandleReference, r.Handle))
			return nil
		}
		return r
	}
	d.unknown(tc, pos)
	return nil
}

func (d *decoder) readClassDesc() *ClassDesc {
	cd := &ClassDesc{}
	cd.Handle = d.handles.Assign(cd)
	cd.Name = d.ReadUTF()
	cd.SerialVersionUID = int64(d.ReadU64BE())
	cd.Flags = d.ReadB()
	n := int(d.ReadU16BE())
	for i := 0; i < n && d.Err == nil; i++ {
		pos := d.Pos()
		f := FieldDesc{Type: FieldType(d.ReadB())}
		if d.Err == nil && !f.Type.IsValid() {
			d.fail(fmt.Errorf("%w: field type 0x%02x at offset %d", ErrUnknownTypeCode, byte(f.Type), pos))
			break
		}
		f.Name = d.ReadUTF()
		if !f.Type.IsPrimitive() {
			f.ClassName = d.readStringRef(true)
		}
		cd.Fields = append(cd.Fields, f)
	}
	if d.Err != nil {
		return cd
	}
	cd.Annotation = d.readAnnotation()
	if d.Err != nil || d.stopped {
		return cd
	}
	cd.Super, _ = d.readDesc(true)
	return cd
}

func (d *decoder) readProxyClassDesc() *ClassDesc {
	cd := &ClassDesc{Proxy: true}
	cd.Handle = d.handles.Assign(cd)
	n := int32(d.ReadU32BE())
	if n < 0 || n > 0xFFFF {
		d.fail(fmt.Errorf("invalid proxy interface count %d", n))
		return cd
	}
	for i := int32(0); i < n && d.Err == nil; i++ {
		cd.Interfaces = append(cd.Interfaces, d.ReadUTF())
	}
	if d.Err != nil {
		return cd
	}
	cd.Annotation = d.readAnnotation()
	if d.Err != nil || d.stopped {
		return cd
	}
	cd.Super, _ = d.readDesc(true)
	return cd
}

// readAnnotation reads contents up to and including the end block marker.
func (d *decoder) readAnnotation() []Node {
	var res []Node
	for d.Err == nil && !d.stopped {
		if b, ok := d.PeekB(); ok && b == tcEndBlockData {
			d.ReadB()
			break
		}
		n := d.readContent(ctxAnnotation)
		if d.Err != nil {
			break
		}
		res = append(res, n)
	}
	return res
}

func (d *decoder) readObject() *Object {
	desc, cd := d.readDesc(false)
	obj := &Object{Desc: desc}
	if d.Err != nil {
		return obj
	}
	obj.Handle = d.handles.Assign(obj)
	if cd.IsExternalizable() {
		var data ClassData
		if cd.Has(FlagBlockData) {
			data.Annotation = d.readAnnotation()
		} else {
			// The external format isn't self-delimiting, keep everything.
			data.Annotation = []Node{&BlockData{Data: d.ReadRest(), Raw: true}}
			d.stopped = true
		}
		obj.Data = []ClassData{data}
		return obj
	}
	chain, err := hierarchy(cd, d.resolveDesc, ErrInvalidHandleReference)
	if err != nil {
		d.fail(err)
		return obj
	}
	for _, c := range chain {
		var data ClassData
		for _, f := range c.valueFields() {
			v := d.readValue(f.Type)
			if d.Err != nil {
				break
			}
			data.Values = append(data.Values, v)
			if d.stopped {
				break
			}
		}
		if d.Err == nil && !d.stopped && c.hasAnnotation() {
			data.Annotation = d.readAnnotation()
		}
		obj.Data = append(obj.Data, data)
		if d.Err != nil || d.stopped {
			break
		}
	}
	return obj
}

func (d *decoder) readValue(t FieldType) Node {
	switch t {
	case TypeByte:
		return &Primitive{Type: t, Int: int64(int8(d.ReadB()))}
	case TypeChar:
		return &Primitive{Type: t, Int: int64(d.ReadU16BE())}
	case TypeShort:
		return &Primitive{Type: t, Int: int64(int16(d.ReadU16BE()))}
	case TypeInt:
		return &Primitive{Type: t, Int: int64(int32(d.ReadU32BE()))}
	case TypeLong:
		return &Primitive{Type: t, Int: int64(d.ReadU64BE())}
	case TypeBoolean:
		return NewBool(d.ReadBool())
	case TypeFloat:
		return &Primitive{Type: t, Bits: uint64(d.ReadU32BE())}
	case TypeDouble:
		return &Primitive{Type: t, Bits: d.ReadU64BE()}
	default:
		return d.readContent(ctxValue)
	}
}

func (d *decoder) readArray() *Array {
	desc, cd := d.readDesc(false)
	arr := &Array{Desc: desc}
	if d.Err != nil {
		return arr
	}
	arr.Handle = d.handles.Assign(arr)
	comp, err := componentType(cd)
	if err != nil {
		d.fail(err)
		return arr
	}
	n := int32(d.ReadU32BE())
	if n < 0 {
		d.fail(fmt.Errorf("negative array length %d", n))
		return arr
	}
	for i := int32(0); i < n && d.Err == nil && !d.stopped; i++ {
		v := d.readValue(comp)
		if d.Err != nil {
			break
		}
		arr.Elements = append(arr.Elements, v)
	}
	return arr
}

func (d *decoder) readEnum() *Enum {
	desc, _ := d.readDesc(false)
	e := &Enum{Desc: desc}
	if d.Err != nil {
		return e
	}
	e.Handle = d.handles.Assign(e)
	e.Constant = d.readStringRef(false)
	return e
}

func (d *decoder) readClass() *Class {
	desc, _ := d.readDesc(false)
	c := &Class{Desc: desc}
	if d.Err != nil {
		return c
	}
	c.Handle = d.handles.Assign(c)
	return c
}

func (d *decoder) readString(long bool) *String {
	s := &String{}
	s.Handle = d.handles.Assign(s)
	if long {
		s.Value = d.ReadLongUTF()
	} else {
		s.Value = d.ReadUTF()
	}
	return s
}

func (d *decoder) readException() *Exception {
	d.handles.Reset()
	ex := &Exception{Throwable: d.readContent(ctxValue)}
	d.handles.Reset()
	return ex
}
