package io

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxArraySize is the maximum size of a length-prefixed byte run which can
// be decoded. Java streams use 32-bit lengths, but nothing legitimate comes
// close to this in an intercepted message.
const MaxArraySize = 0x4000000

// BinReader is a convenient wrapper around a byte slice and err object.
// Used to simplify error handling when reading into a structure with many
// fields. Once Err is set every subsequent read is a no-op returning zero
// values. All multi-byte integers are big-endian, as in java.io.DataInput.
type BinReader struct {
	data []byte
	pos  int
	Err  error
}

// NewBinReaderFromBuf makes a BinReader from byte buffer.
func NewBinReaderFromBuf(b []byte) *BinReader {
	return &BinReader{data: b}
}

// Pos returns the current cursor position.
func (r *BinReader) Pos() int {
	return r.pos
}

// Len returns the number of unread bytes.
func (r *BinReader) Len() int {
	return len(r.data) - r.pos
}

// PeekB returns the next byte without consuming it. ok is false when the
// reader is exhausted or failed.
func (r *BinReader) PeekB() (b byte, ok bool) {
	if r.Err != nil || r.pos >= len(r.data) {
		return 0, false
	}
	return r.data[r.pos], true
}

// next advances the cursor by n bytes and returns them, setting Err if there
// are not enough bytes left.
func (r *BinReader) next(n int) []byte {
	if r.Err != nil {
		return nil
	}
	if n > len(r.data)-r.pos {
		if r.pos == len(r.data) {
			r.Err = io.EOF
		} else {
			r.Err = io.ErrUnexpectedEOF
		}
		r.pos = len(r.data)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

// ReadB reads a byte from the underlying buffer.
func (r *BinReader) ReadB() byte {
	if b := r.next(1); b != nil {
		return b[0]
	}
	return 0
}

// ReadBool reads a boolean encoded as a byte, any non-zero value is true.
func (r *BinReader) ReadBool() bool {
	return r.ReadB() != 0
}

// ReadU16BE reads a big-endian uint16 value.
func (r *BinReader) ReadU16BE() uint16 {
	if b := r.next(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

// ReadU32BE reads a big-endian uint32 value.
func (r *BinReader) ReadU32BE() uint32 {
	if b := r.next(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

// ReadU64BE reads a big-endian uint64 value.
func (r *BinReader) ReadU64BE() uint64 {
	if b := r.next(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

// ReadBytes reads exactly n bytes and returns a copy of them, nil for an
// empty run.
func (r *BinReader) ReadBytes(n int) []byte {
	if r.Err != nil {
		return nil
	}
	if n < 0 || n > MaxArraySize {
		r.Err = fmt.Errorf("byte-slice is too big (%d)", n)
		return nil
	}
	b := r.next(n)
	if len(b) == 0 {
		return nil
	}
	res := make([]byte, n)
	copy(res, b)
	return res
}

// ReadRest consumes and returns a copy of all unread bytes.
func (r *BinReader) ReadRest() []byte {
	return r.ReadBytes(r.Len())
}

// ReadUTF reads a string in the java.io.DataInput.readUTF format: uint16
// byte length followed by modified UTF-8.
func (r *BinReader) ReadUTF() string {
	n := r.ReadU16BE()
	return DecodeModifiedUTF8(r.next(int(n)))
}

// ReadLongUTF reads a string prefixed with a uint64 byte length, used for
// strings which don't fit into ReadUTF limits.
func (r *BinReader) ReadLongUTF() string {
	n := r.ReadU64BE()
	if r.Err != nil {
		return ""
	}
	if n > MaxArraySize {
		r.Err = fmt.Errorf("string is too big (%d)", n)
		return ""
	}
	return DecodeModifiedUTF8(r.next(int(n)))
}
