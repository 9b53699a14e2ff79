package io

import (
	"bytes"
	"errors"
)

// ErrDrained is set as BufBinWriter error once its buffer is taken.
var ErrDrained = errors.New("buffer already drained")

// BufBinWriter is a BinWriter writing into its own buffer, the result is
// available via Bytes.
type BufBinWriter struct {
	*BinWriter
	buf bytes.Buffer
}

// NewBufBinWriter makes a BufBinWriter with an empty buffer.
func NewBufBinWriter() *BufBinWriter {
	bw := new(BufBinWriter)
	bw.BinWriter = NewBinWriterFromIO(&bw.buf)
	return bw
}

// Len returns the number of bytes written so far.
func (bw *BufBinWriter) Len() int {
	return bw.buf.Len()
}

// Bytes returns the written data or nil if any write failed. The writer
// can't be used after this call.
func (bw *BufBinWriter) Bytes() []byte {
	if bw.Err != nil {
		return nil
	}
	bw.Err = ErrDrained
	return bw.buf.Bytes()
}
