package objstream

import (
	"fmt"
)

// Kind identifies the variant of a Node.
type Kind byte

// This block defines all node kinds.
const (
	NullK Kind = iota
	RefK
	ClassDescK
	ObjectK
	ArrayK
	EnumK
	StringK
	ClassK
	PrimitiveK
	BlockDataK
	ResetK
	ExceptionK
)

// String implements fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case NullK:
		return "Null"
	case RefK:
		return "Reference"
	case ClassDescK:
		return "ClassDesc"
	case ObjectK:
		return "Object"
	case ArrayK:
		return "Array"
	case EnumK:
		return "Enum"
	case StringK:
		return "String"
	case ClassK:
		return "Class"
	case PrimitiveK:
		return "Primitive"
	case BlockDataK:
		return "BlockData"
	case ResetK:
		return "Reset"
	case ExceptionK:
		return "Exception"
	default:
		return "INVALID"
	}
}

// Handle is a stream-local identifier of a shared node.
type Handle uint32

// String implements fmt.Stringer interface.
func (h Handle) String() string {
	return fmt.Sprintf("0x%06x", uint32(h))
}

// Node is an element of a decoded object graph. The set of implementations
// is closed, every one of them is defined in this package.
type Node interface {
	Kind() Kind
}

// Defined is implemented by nodes which get a handle when they first appear
// in a stream. A zero handle means the node has no identity of its own yet
// (it was added by hand) and is assigned one on encoding.
type Defined interface {
	Node
	ID() Handle
}

type (
	// Null is a null reference.
	Null struct{}

	// Ref is a back-reference to a node defined earlier in the stream.
	Ref struct {
		Handle Handle
	}

	// ClassDesc describes a class, its fields and its serializable
	// superclass. Proxy descriptors have Proxy set and list Interfaces
	// instead of Name, SerialVersionUID, Flags and Fields.
	ClassDesc struct {
		Handle           Handle
		Name             string
		SerialVersionUID int64
		Flags            byte
		Fields           []FieldDesc
		Annotation       []Node
		// Super is a *ClassDesc, a *Ref to one or *Null.
		Super      Node
		Proxy      bool
		Interfaces []string
	}

	// FieldDesc is a single serializable field of a class.
	FieldDesc struct {
		Type FieldType
		Name string
		// ClassName is the JVM type signature of object and array fields as
		// a *String or a *Ref to one, nil for primitive fields.
		ClassName Node
	}

	// Object is an instance of a serializable or externalizable class.
	Object struct {
		Handle Handle
		// Desc is a *ClassDesc or a *Ref to one.
		Desc Node
		// Data holds per-class data, root-most superclass first.
		Data []ClassData
	}

	// ClassData is the part of an object written by one class of its
	// hierarchy.
	ClassData struct {
		// Values are field values in wire order, see ClassDesc.WireFields.
		Values []Node
		// Annotation holds data written by custom write logic, it's only
		// present for classes flagged with FlagWriteMethod and for
		// externalizable classes.
		Annotation []Node
	}

	// Array is an array of primitives or references.
	Array struct {
		Handle   Handle
		Desc     Node
		Elements []Node
	}

	// Enum is an enum constant.
	Enum struct {
		Handle Handle
		Desc   Node
		// Constant is a *String or a *Ref to one.
		Constant Node
	}

	// String is a string value.
	String struct {
		Handle Handle
		Value  string
	}

	// Class is a java.lang.Class instance.
	Class struct {
		Handle Handle
		Desc   Node
	}

	// Primitive is a field value or an array element of primitive type.
	// Integral and boolean values are stored in Int, floating point ones
	// keep their IEEE 754 bit pattern in Bits.
	Primitive struct {
		Type FieldType
		Int  int64
		Bits uint64
	}

	// BlockData is an opaque run of bytes produced by custom write logic.
	// Raw block data is an unframed tail which extends to the end of the
	// stream, it's used for externalizable data the grammar can't delimit.
	BlockData struct {
		Data []byte
		Raw  bool
	}

	// Reset clears the handle table.
	Reset struct{}

	// Exception is a throwable written in place of a failed write. The
	// handle table is reset before and after it.
	Exception struct {
		Throwable Node
	}
)

// Stream is a decoded stream.
type Stream struct {
	// Preamble holds bytes preceding the stream magic in the carrying
	// payload, it is written back verbatim.
	Preamble []byte
	Version  uint16
	Contents []Node
}

// Kind implements Node interface.
func (*Null) Kind() Kind { return NullK }

// Kind implements Node interface.
func (*Ref) Kind() Kind { return RefK }

// Kind implements Node interface.
func (*ClassDesc) Kind() Kind { return ClassDescK }

// Kind implements Node interface.
func (*Object) Kind() Kind { return ObjectK }

// Kind implements Node interface.
func (*Array) Kind() Kind { return ArrayK }

// Kind implements Node interface.
func (*Enum) Kind() Kind { return EnumK }

// Kind implements Node interface.
func (*String) Kind() Kind { return StringK }

// Kind implements Node interface.
func (*Class) Kind() Kind { return ClassK }

// Kind implements Node interface.
func (*Primitive) Kind() Kind { return PrimitiveK }

// Kind implements Node interface.
func (*BlockData) Kind() Kind { return BlockDataK }

// Kind implements Node interface.
func (*Reset) Kind() Kind { return ResetK }

// Kind implements Node interface.
func (*Exception) Kind() Kind { return ExceptionK }

// ID implements Defined interface.
func (c *ClassDesc) ID() Handle { return c.Handle }

// ID implements Defined interface.
func (o *Object) ID() Handle { return o.Handle }

// ID implements Defined interface.
func (a *Array) ID() Handle { return a.Handle }

// ID implements Defined interface.
func (e *Enum) ID() Handle { return e.Handle }

// ID implements Defined interface.
func (s *String) ID() Handle { return s.Handle }

// ID implements Defined interface.
func (c *Class) ID() Handle { return c.Handle }

// Has checks whether all bits of flag are set.
func (c *ClassDesc) Has(flag byte) bool {
	return c.Flags&flag == flag
}

// IsExternalizable checks whether instances are written by custom external
// logic instead of field values.
func (c *ClassDesc) IsExternalizable() bool {
	return !c.Proxy && c.Has(FlagExternalizable)
}

// WireFields returns fields in the order their values are written: all
// primitive fields first, then object fields, each group keeping the
// descriptor order.
func (c *ClassDesc) WireFields() []FieldDesc {
	res := make([]FieldDesc, 0, len(c.Fields))
	for _, f := range c.Fields {
		if f.Type.IsPrimitive() {
			res = append(res, f)
		}
	}
	for _, f := range c.Fields {
		if !f.Type.IsPrimitive() {
			res = append(res, f)
		}
	}
	return res
}

// NewInt makes an int primitive.
func NewInt(v int32) *Primitive {
	return &Primitive{Type: TypeInt, Int: int64(v)}
}

// NewLong makes a long primitive.
func NewLong(v int64) *Primitive {
	return &Primitive{Type: TypeLong, Int: v}
}

// NewBool makes a boolean primitive.
func NewBool(v bool) *Primitive {
	p := &Primitive{Type: TypeBoolean}
	if v {
		p.Int = 1
	}
	return p
}
