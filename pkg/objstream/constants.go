package objstream

// Stream header values.
const (
	StreamMagic   uint16 = 0xACED
	StreamVersion uint16 = 5
)

// MaxNestingDepth is the maximum depth of nested contents and superclass
// descriptors a stream can have.
const MaxNestingDepth = 1024

// BaseHandle is the first handle assigned in a stream and after every reset.
const BaseHandle Handle = 0x7E0000

// Type codes preceding every content unit in a stream.
const (
	tcNull           byte = 0x70
	tcReference      byte = 0x71
	tcClassDesc      byte = 0x72
	tcObject         byte = 0x73
	tcString         byte = 0x74
	tcArray          byte = 0x75
	tcClass          byte = 0x76
	tcBlockData      byte = 0x77
	tcEndBlockData   byte = 0x78
	tcReset          byte = 0x79
	tcBlockDataLong  byte = 0x7A
	tcException      byte = 0x7B
	tcLongString     byte = 0x7C
	tcProxyClassDesc byte = 0x7D
	tcEnum           byte = 0x7E
)

// Class descriptor flags.
const (
	FlagWriteMethod    byte = 0x01
	FlagSerializable   byte = 0x02
	FlagExternalizable byte = 0x04
	FlagBlockData      byte = 0x08
	FlagEnum           byte = 0x10
)

// maxShortBlock is the longest block data run written with the short form.
const maxShortBlock = 0xFF
