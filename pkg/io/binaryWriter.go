package io

import (
	"encoding/binary"
	"errors"
	"io"
)

// MaxShortUTFLen is the longest modified UTF-8 encoding WriteUTF accepts.
const MaxShortUTFLen = 0xFFFF

// ErrUTFTooLong is set by WriteUTF when the string encoding doesn't fit into
// its 16-bit length prefix.
var ErrUTFTooLong = errors.New("encoded string is too long")

// BinWriter is a convenient wrapper around an io.Writer and err object.
// Used to simplify error handling when writing into an io.Writer
// from a struct with many fields. Integers are written big-endian.
type BinWriter struct {
	w   io.Writer
	Err error
	uv  [8]byte
}

// NewBinWriterFromIO makes a BinWriter from io.Writer.
func NewBinWriterFromIO(iow io.Writer) *BinWriter {
	return &BinWriter{w: iow}
}

// WriteU64BE writes a uint64 value into the underlying io.Writer in
// big-endian format.
func (w *BinWriter) WriteU64BE(u64 uint64) {
	binary.BigEndian.PutUint64(w.uv[:8], u64)
	w.WriteBytes(w.uv[:8])
}

// WriteU32BE writes a uint32 value into the underlying io.Writer in
// big-endian format.
func (w *BinWriter) WriteU32BE(u32 uint32) {
	binary.BigEndian.PutUint32(w.uv[:4], u32)
	w.WriteBytes(w.uv[:4])
}

// WriteU16BE writes a uint16 value into the underlying io.Writer in
// big-endian format.
func (w *BinWriter) WriteU16BE(u16 uint16) {
	binary.BigEndian.PutUint16(w.uv[:2], u16)
	w.WriteBytes(w.uv[:2])
}

// WriteB writes a byte into the underlying io.Writer.
func (w *BinWriter) WriteB(u8 byte) {
	w.uv[0] = u8
	w.WriteBytes(w.uv[:1])
}

// WriteBool writes a boolean value into the underlying io.Writer encoded as
// a byte with values of 0 or 1.
func (w *BinWriter) WriteBool(b bool) {
	var i byte
	if b {
		i = 1
	}
	w.WriteB(i)
}

// WriteBytes writes a variable byte into the underlying io.Writer without prefix.
func (w *BinWriter) WriteBytes(b []byte) {
	if w.Err != nil {
		return
	}
	_, w.Err = w.w.Write(b)
}

// WriteUTF writes s in the java.io.DataOutput.writeUTF format. Strings
// whose encoding exceeds MaxShortUTFLen set ErrUTFTooLong.
func (w *BinWriter) WriteUTF(s string) {
	if w.Err != nil {
		return
	}
	b := EncodeModifiedUTF8(s)
	if len(b) > MaxShortUTFLen {
		w.Err = ErrUTFTooLong
		return
	}
	w.WriteU16BE(uint16(len(b)))
	w.WriteBytes(b)
}

// WriteLongUTF writes s prefixed with a uint64 byte length.
func (w *BinWriter) WriteLongUTF(s string) {
	b := EncodeModifiedUTF8(s)
	w.WriteU64BE(uint64(len(b)))
	w.WriteBytes(b)
}
