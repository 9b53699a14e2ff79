package objstream

import (
	"errors"
	"fmt"
	"math"

	"github.com/nspcc-dev/jserial/pkg/io"
)

// encContext is an internal serialization context.
type encContext struct {
	*io.BinWriter
	next Handle
	// wire maps node handles to the handles assigned in the output.
	wire map[Handle]Handle
	// nodes maps node handles to definitions seen so far.
	nodes map[Handle]Node
	// stopped is set after raw block data, nothing may follow it.
	stopped bool
}

// Encode serializes s. Node handles are renumbered in traversal order, so
// a graph edited by hand doesn't need dense handles, but every *Ref must
// point to a node defined before it.
func Encode(s *Stream) ([]byte, error) {
	w := io.NewBufBinWriter()
	e := encContext{BinWriter: w.BinWriter}
	e.reset()

	version := s.Version
	if version == 0 {
		version = StreamVersion
	}
	e.WriteBytes(s.Preamble)
	e.WriteU16BE(StreamMagic)
	e.WriteU16BE(version)
	for _, n := range s.Contents {
		e.writeContent(n, ctxTop)
		if e.Err != nil {
			break
		}
	}
	if e.Err != nil {
		if errors.Is(e.Err, io.ErrUTFTooLong) {
			return nil, fmt.Errorf("%w: %v", ErrValueOutOfRange, e.Err)
		}
		return nil, e.Err
	}
	return w.Bytes(), nil
}

func (e *encContext) fail(err error) {
	if e.Err == nil {
		e.Err = err
	}
}

func (e *encContext) reset() {
	e.next = BaseHandle
	e.wire = make(map[Handle]Handle)
	e.nodes = make(map[Handle]Node)
}

// define assigns the next wire handle to n.
func (e *encContext) define(n Defined) {
	h := e.next
	e.next++
	if id := n.ID(); id != 0 {
		e.wire[id] = h
		e.nodes[id] = n
	}
}

func (e *encContext) writeContent(n Node, ctx context) {
	if e.Err != nil {
		return
	}
	if e.stopped {
		e.fail(fmt.Errorf("%w: %s after raw block data", ErrFieldMismatch, kindOf(n)))
		return
	}
	switch t := n.(type) {
	case *Null:
		e.WriteB(tcNull)
	case *Ref:
		e.writeRef(t)
	case *ClassDesc:
		e.writeClassDesc(t)
	case *Object:
		e.writeObject(t)
	case *Array:
		e.writeArray(t)
	case *Enum:
		e.writeEnum(t)
	case *String:
		e.writeString(t)
	case *Class:
		e.WriteB(tcClass)
		e.writeDesc(t.Desc, false)
		e.define(t)
	case *Exception:
		e.WriteB(tcException)
		e.reset()
		e.writeContent(t.Throwable, ctxValue)
		e.reset()
	case *Reset:
		if ctx != ctxTop {
			e.fail(fmt.Errorf("%w: reset inside of an object", ErrFieldMismatch))
			return
		}
		e.WriteB(tcReset)
		e.reset()
	case *BlockData:
		if ctx == ctxValue {
			e.fail(fmt.Errorf("%w: block data in place of a value", ErrFieldMismatch))
			return
		}
		e.writeBlockData(t)
	case *Primitive:
		e.fail(fmt.Errorf("%w: %s primitive in place of an object", ErrFieldMismatch, t.Type))
	default:
		e.fail(fmt.Errorf("%w: %s in place of an object", ErrFieldMismatch, kindOf(n)))
	}
}

func kindOf(n Node) string {
	if n == nil {
		return "missing node"
	}
	return n.Kind().String()
}

func (e *encContext) writeRef(r *Ref) {
	h, ok := e.wire[r.Handle]
	if !ok {
		e.fail(fmt.Errorf("%w: %s", ErrDanglingReference, r.Handle))
		return
	}
	e.WriteB(tcReference)
	e.WriteU32BE(uint32(h))
}

func (e *encContext) resolveDesc(n Node) (*ClassDesc, error) {
	switch t := n.(type) {
	case *ClassDesc:
		return t, nil
	case *Ref:
		v, ok := e.nodes[t.Handle]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrDanglingReference, t.Handle)
		}
		if cd, ok := v.(*ClassDesc); ok {
			return cd, nil
		}
		return nil, fmt.Errorf("%w: %s is a %s, not a class descriptor", ErrFieldMismatch, t.Handle, v.Kind())
	}
	return nil, fmt.Errorf("%w: %s in place of a class descriptor", ErrFieldMismatch, kindOf(n))
}

// writeDesc writes a class descriptor position and returns the descriptor
// it designates (nil for null or on failure).
func (e *encContext) writeDesc(n Node, allowNull bool) *ClassDesc {
	if e.Err != nil {
		return nil
	}
	switch t := n.(type) {
	case nil, *Null:
		if allowNull {
			e.WriteB(tcNull)
			return nil
		}
	case *ClassDesc:
		e.writeClassDesc(t)
		return t
	case *Ref:
		cd, err := e.resolveDesc(t)
		if err != nil {
			e.fail(err)
			return nil
		}
		e.writeRef(t)
		return cd
	}
	e.fail(fmt.Errorf("%w: %s in place of a class descriptor", ErrFieldMismatch, kindOf(n)))
	return nil
}

func (e *encContext) writeStringRef(n Node, allowNull bool) {
	switch t := n.(type) {
	case *Null:
		if allowNull {
			e.WriteB(tcNull)
			return
		}
	case *String:
		e.writeString(t)
		return
	case *Ref:
		if v, ok := e.nodes[t.Handle]; ok && v.Kind() != StringK {
			e.fail(fmt.Errorf("%w: %s is a %s, not a string", ErrFieldMismatch, t.Handle, v.Kind()))
			return
		}
		e.writeRef(t)
		return
	}
	e.fail(fmt.Errorf("%w: %s in place of a string", ErrFieldMismatch, kindOf(n)))
}

func (e *encContext) writeClassDesc(cd *ClassDesc) {
	if cd.Proxy {
		e.WriteB(tcProxyClassDesc)
		e.define(cd)
		e.WriteU32BE(uint32(len(cd.Interfaces)))
		for _, name := range cd.Interfaces {
			e.WriteUTF(name)
		}
	} else {
		if len(cd.Fields) > math.MaxUint16 {
			e.fail(fmt.Errorf("%w: %q has too many fields", ErrFieldMismatch, cd.Name))
			return
		}
		e.WriteB(tcClassDesc)
		e.define(cd)
		e.WriteUTF(cd.Name)
		e.WriteU64BE(uint64(cd.SerialVersionUID))
		e.WriteB(cd.Flags)
		e.WriteU16BE(uint16(len(cd.Fields)))
		for _, f := range cd.Fields {
			if !f.Type.IsValid() {
				e.fail(fmt.Errorf("%w: field %q of %q has invalid type 0x%02x", ErrFieldMismatch, f.Name, cd.Name, byte(f.Type)))
				return
			}
			e.WriteB(byte(f.Type))
			e.WriteUTF(f.Name)
			if f.Type.IsPrimitive() {
				if f.ClassName != nil {
					e.fail(fmt.Errorf("%w: primitive field %q of %q has a type signature", ErrFieldMismatch, f.Name, cd.Name))
				}
				continue
			}
			e.writeStringRef(f.ClassName, true)
		}
	}
	e.writeAnnotation(cd.Annotation)
	if e.stopped {
		return
	}
	e.writeDesc(cd.Super, true)
}

func (e *encContext) writeAnnotation(nodes []Node) {
	for _, n := range nodes {
		e.writeContent(n, ctxAnnotation)
		if e.Err != nil || e.stopped {
			return
		}
	}
	e.WriteB(tcEndBlockData)
}

func (e *encContext) writeBlockData(b *BlockData) {
	switch {
	case b.Raw:
		e.WriteBytes(b.Data)
		e.stopped = true
	case len(b.Data) <= maxShortBlock:
		e.WriteB(tcBlockData)
		e.WriteB(byte(len(b.Data)))
		e.WriteBytes(b.Data)
	case len(b.Data) <= math.MaxInt32:
		e.WriteB(tcBlockDataLong)
		e.WriteU32BE(uint32(len(b.Data)))
		e.WriteBytes(b.Data)
	default:
		e.fail(fmt.Errorf("%w: block data of %d bytes", ErrValueOutOfRange, len(b.Data)))
	}
}

func (e *encContext) writeObject(o *Object) {
	e.WriteB(tcObject)
	cd := e.writeDesc(o.Desc, false)
	if e.Err != nil {
		return
	}
	e.define(o)
	if cd.IsExternalizable() {
		e.writeExternal(cd, o)
		return
	}
	chain, err := hierarchy(cd, e.resolveDesc, ErrFieldMismatch)
	if err != nil {
		e.fail(err)
		return
	}
	for i, c := range chain {
		if i >= len(o.Data) {
			e.fail(fmt.Errorf("%w: %q has no data for class %q", ErrFieldMismatch, cd.Name, c.Name))
			return
		}
		e.writeClassData(c, &o.Data[i])
		if e.Err != nil || e.stopped {
			return
		}
	}
	if len(o.Data) != len(chain) {
		e.fail(fmt.Errorf("%w: %q has %d classes in hierarchy, got data for %d", ErrFieldMismatch, cd.Name, len(chain), len(o.Data)))
	}
}

func (e *encContext) writeExternal(cd *ClassDesc, o *Object) {
	if len(o.Data) != 1 || len(o.Data[0].Values) != 0 {
		e.fail(fmt.Errorf("%w: externalizable %q must have external contents only", ErrFieldMismatch, cd.Name))
		return
	}
	ann := o.Data[0].Annotation
	if cd.Has(FlagBlockData) {
		e.writeAnnotation(ann)
		return
	}
	if len(ann) != 1 {
		e.fail(fmt.Errorf("%w: externalizable %q needs single raw block data", ErrFieldMismatch, cd.Name))
		return
	}
	if b, ok := ann[0].(*BlockData); !ok || !b.Raw {
		e.fail(fmt.Errorf("%w: externalizable %q needs single raw block data", ErrFieldMismatch, cd.Name))
		return
	}
	e.writeContent(ann[0], ctxAnnotation)
}

func (e *encContext) writeClassData(c *ClassDesc, data *ClassData) {
	fields := c.valueFields()
	for i, f := range fields {
		if i >= len(data.Values) {
			e.fail(fmt.Errorf("%w: %q has %d fields, got %d values", ErrFieldMismatch, c.Name, len(fields), len(data.Values)))
			return
		}
		e.writeValue(c, f, data.Values[i])
		if e.Err != nil || e.stopped {
			return
		}
	}
	if len(data.Values) != len(fields) {
		e.fail(fmt.Errorf("%w: %q has %d fields, got %d values", ErrFieldMismatch, c.Name, len(fields), len(data.Values)))
		return
	}
	if c.hasAnnotation() {
		e.writeAnnotation(data.Annotation)
	} else if len(data.Annotation) != 0 {
		e.fail(fmt.Errorf("%w: %q has no custom write logic, annotation is not allowed", ErrFieldMismatch, c.Name))
	}
}

func (e *encContext) writeValue(c *ClassDesc, f FieldDesc, v Node) {
	p, isPrim := v.(*Primitive)
	if f.Type.IsPrimitive() {
		if !isPrim || p.Type != f.Type {
			e.fail(fmt.Errorf("%w: %s field %q of %q got %s", ErrFieldMismatch, f.Type, f.Name, c.Name, describe(v)))
			return
		}
		e.writePrimitive(p)
		return
	}
	if isPrim {
		e.fail(fmt.Errorf("%w: %s field %q of %q got %s", ErrFieldMismatch, f.Type, f.Name, c.Name, describe(v)))
		return
	}
	e.writeContent(v, ctxValue)
}

func describe(n Node) string {
	if p, ok := n.(*Primitive); ok {
		return p.Type.String()
	}
	return kindOf(n)
}

func (e *encContext) writePrimitive(p *Primitive) {
	if err := p.checkRange(); err != nil {
		e.fail(err)
		return
	}
	switch p.Type {
	case TypeByte, TypeBoolean:
		e.WriteB(byte(p.Int))
	case TypeChar, TypeShort:
		e.WriteU16BE(uint16(p.Int))
	case TypeInt:
		e.WriteU32BE(uint32(p.Int))
	case TypeLong:
		e.WriteU64BE(uint64(p.Int))
	case TypeFloat:
		e.WriteU32BE(uint32(p.Bits))
	case TypeDouble:
		e.WriteU64BE(p.Bits)
	default:
		e.fail(fmt.Errorf("%w: invalid primitive type 0x%02x", ErrFieldMismatch, byte(p.Type)))
	}
}

// checkRange checks whether p's value fits its declared width.
func (p *Primitive) checkRange() error {
	var lo, hi int64
	switch p.Type {
	case TypeByte:
		lo, hi = math.MinInt8, math.MaxInt8
	case TypeChar:
		lo, hi = 0, math.MaxUint16
	case TypeShort:
		lo, hi = math.MinInt16, math.MaxInt16
	case TypeInt:
		lo, hi = math.MinInt32, math.MaxInt32
	case TypeBoolean:
		lo, hi = 0, 1
	case TypeFloat:
		if p.Bits > math.MaxUint32 {
			return fmt.Errorf("%w: float bit pattern 0x%x", ErrValueOutOfRange, p.Bits)
		}
		return nil
	default:
		return nil
	}
	if p.Int < lo || p.Int > hi {
		return fmt.Errorf("%w: %d doesn't fit %s", ErrValueOutOfRange, p.Int, p.Type)
	}
	return nil
}

func (e *encContext) writeArray(a *Array) {
	e.WriteB(tcArray)
	cd := e.writeDesc(a.Desc, false)
	if e.Err != nil {
		return
	}
	e.define(a)
	comp, err := componentType(cd)
	if err != nil {
		e.fail(err)
		return
	}
	if len(a.Elements) > math.MaxInt32 {
		e.fail(fmt.Errorf("%w: array of %d elements", ErrValueOutOfRange, len(a.Elements)))
		return
	}
	e.WriteU32BE(uint32(len(a.Elements)))
	f := FieldDesc{Type: comp, Name: "[]"}
	for _, el := range a.Elements {
		e.writeValue(cd, f, el)
		if e.Err != nil || e.stopped {
			return
		}
	}
}

func (e *encContext) writeEnum(en *Enum) {
	e.WriteB(tcEnum)
	e.writeDesc(en.Desc, false)
	if e.Err != nil {
		return
	}
	e.define(en)
	e.writeStringRef(en.Constant, false)
}

func (e *encContext) writeString(s *String) {
	if io.ModifiedUTF8Len(s.Value) > io.MaxShortUTFLen {
		e.WriteB(tcLongString)
		e.define(s)
		e.WriteLongUTF(s.Value)
		return
	}
	e.WriteB(tcString)
	e.define(s)
	e.WriteUTF(s.Value)
}
