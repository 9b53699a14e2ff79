/*
Package fixtures builds raw serialized streams for tests. It deliberately
doesn't depend on the codec, every byte is spelled out by hand.
*/
package fixtures

import (
	"github.com/nspcc-dev/jserial/pkg/io"
)

// Builder appends raw stream bytes.
type Builder struct {
	w *io.BufBinWriter
}

// NewStream starts a stream with the standard header.
func NewStream() *Builder {
	b := &Builder{w: io.NewBufBinWriter()}
	return b.U16(0xACED).U16(5)
}

// B appends bytes as is.
func (b *Builder) B(v ...byte) *Builder {
	b.w.WriteBytes(v)
	return b
}

// U16 appends a big-endian uint16.
func (b *Builder) U16(v uint16) *Builder {
	b.w.WriteU16BE(v)
	return b
}

// U32 appends a big-endian uint32.
func (b *Builder) U32(v uint32) *Builder {
	b.w.WriteU32BE(v)
	return b
}

// U64 appends a big-endian uint64.
func (b *Builder) U64(v uint64) *Builder {
	b.w.WriteU64BE(v)
	return b
}

// UTF appends a short modified UTF-8 string.
func (b *Builder) UTF(s string) *Builder {
	b.w.WriteUTF(s)
	return b
}

// Str appends a TC_STRING.
func (b *Builder) Str(s string) *Builder {
	return b.B(0x74).UTF(s)
}

// Ref appends a TC_REFERENCE.
func (b *Builder) Ref(h uint32) *Builder {
	return b.B(0x71).U32(h)
}

// Desc appends the header of a TC_CLASSDESC up to the field count.
func (b *Builder) Desc(name string, suid uint64, flags byte, fields uint16) *Builder {
	return b.B(0x72).UTF(name).U64(suid).B(flags).U16(fields)
}

// Field appends a primitive field descriptor.
func (b *Builder) Field(typ byte, name string) *Builder {
	return b.B(typ).UTF(name)
}

// EndNull closes a class descriptor with an empty annotation and no
// superclass.
func (b *Builder) EndNull() *Builder {
	return b.B(0x78, 0x70)
}

// Bytes returns the stream.
func (b *Builder) Bytes() []byte {
	if b.w.Err != nil {
		panic(b.w.Err)
	}
	return b.w.Bytes()
}

// Demo is a single Demo object with one field named count of the given
// primitive type, typ is 'I' or 'C'.
//
//	class Demo implements Serializable { int count; }
func Demo(typ byte, count uint32) []byte {
	b := NewStream().B(0x73).
		Desc("Demo", 0x0102030405060708, 0x02, 1).
		Field(typ, "count").
		EndNull()
	if typ == 'C' {
		return b.U16(uint16(count)).Bytes()
	}
	return b.U32(count).Bytes()
}

// SelfCycle is an object whose only field references the object itself.
// Handles: 0x7e0000 descriptor, 0x7e0001 field type string, 0x7e0002 object.
//
//	class Node implements Serializable { Node next; }
func SelfCycle() []byte {
	return NewStream().B(0x73).
		Desc("Node", 1, 0x02, 1).
		Field('L', "next").Str("LNode;").
		EndNull().
		Ref(0x7e0002).
		Bytes()
}

// ParentCycle is a Tree object holding a child whose parent field points
// back at the root, and a second top-level reference to the child.
//
//	class Tree implements Serializable { Tree child; Tree parent; }
func ParentCycle() []byte {
	return NewStream().B(0x73).
		Desc("Tree", 2, 0x02, 2).
		Field('L', "child").Str("LTree;").
		Field('L', "parent").Ref(0x7e0001).
		EndNull().
		// root 0x7e0002, its descriptor is the one above
		// root.child 0x7e0003 with a null child and root as its parent
		B(0x73).Ref(0x7e0000).
		B(0x70).Ref(0x7e0002).
		// root.parent
		B(0x70).
		Ref(0x7e0003).
		Bytes()
}

// WithAnnotation is an ArrayList-like object with custom write logic: a
// size field followed by block data and one string element.
func WithAnnotation() []byte {
	return NewStream().B(0x73).
		Desc("java.util.ArrayList", 0x7881D21D99C7619D, 0x03, 1).
		Field('I', "size").
		EndNull().
		U32(1).
		B(0x77, 4).U32(1).
		Str("elem").
		B(0x78).
		Bytes()
}

// Inherited is an object of class Child extending Base, Base data first.
func Inherited() []byte {
	return NewStream().B(0x73).
		Desc("Child", 3, 0x02, 2).
		Field('Z', "flag").
		Field('L', "name").Str("Ljava/lang/String;").
		B(0x78).
		Desc("Base", 4, 0x02, 2).
		Field('J', "id").
		Field('D', "ratio").
		EndNull().
		// Base: id, ratio
		U64(0xFFFFFFFFFFFFFFFF).U64(0x3FF8000000000000).
		// Child: flag, name
		B(1).Str("child").
		Bytes()
}

// Arrays has an int array, a byte array and a string array sharing an
// element with a back-reference.
func Arrays() []byte {
	return NewStream().
		B(0x75).Desc("[I", 0x4DBA602676EAB2A5, 0x02, 0).EndNull().
		U32(3).U32(1).U32(0xFFFFFFFE).U32(0x7FFFFFFF).
		B(0x75).Desc("[B", 0xACF317F8060854E0, 0x02, 0).EndNull().
		U32(4).B(0xDE, 0xAD, 0xBE, 0xEF).
		// descriptors 0x7e0000 and 0x7e0002, arrays 0x7e0001 and 0x7e0003
		B(0x75).Desc("[Ljava.lang.String;", 0xADD256E7E91D7B47, 0x02, 0).EndNull().
		U32(3).Str("a").Ref(0x7e0006).B(0x70).
		Bytes()
}

// NestedArrays is depth Object[] arrays each holding the next one, the
// innermost holds null. Every level takes 10 bytes.
func NestedArrays(depth int) []byte {
	b := NewStream().
		B(0x75).Desc("[Ljava.lang.Object;", 0x90CE589F1073296C, 0x02, 0).EndNull().
		U32(1)
	for i := 1; i < depth; i++ {
		b.B(0x75).Ref(0x7e0000).U32(1)
	}
	return b.B(0x70).Bytes()
}

// EnumColor is an enum constant RED followed by a reference to it.
func EnumColor() []byte {
	return NewStream().B(0x7E).
		Desc("Color", 0, 0x12, 0).B(0x78).
		Desc("java.lang.Enum", 0, 0x12, 0).EndNull().
		Str("RED").
		Ref(0x7e0002).
		Bytes()
}

// Mixed exercises top level units: block data (short and long), a long
// string, a class object, a proxy descriptor, a reset and an exception.
func Mixed() []byte {
	long := make([]byte, 300)
	for i := range long {
		long[i] = byte(i)
	}
	b := NewStream().
		B(0x77, 3, 1, 2, 3).
		B(0x7A).U32(300).B(long...).
		B(0x7C).U64(3).B('b', 'i', 'g').
		B(0x76).Desc("Demo", 5, 0x02, 0).EndNull().
		B(0x7D).U32(1).UTF("java.lang.Runnable").B(0x78).
		Desc("java.lang.reflect.Proxy", 6, 0x02, 0).EndNull().
		B(0x79).
		Str("after reset").
		B(0x7B).
		B(0x73).Desc("java.io.IOException", 7, 0x02, 0).EndNull()
	return b.Bytes()
}

// ExternalBlock is an externalizable object written in block data mode.
func ExternalBlock() []byte {
	return NewStream().B(0x73).
		Desc("Ext", 8, 0x0C, 0).EndNull().
		B(0x77, 2, 0xCA, 0xFE).
		Str("inner").
		B(0x78).
		Bytes()
}

// ExternalRaw is an externalizable object in the old unframed format, its
// data can't be delimited.
func ExternalRaw() []byte {
	return NewStream().
		Str("before").
		B(0x73).Desc("Legacy", 9, 0x04, 0).EndNull().
		B(0x01, 0x02, 0x73, 0xFF).
		Bytes()
}
