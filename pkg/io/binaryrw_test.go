package io

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadBE(t *testing.T) {
	bw := NewBufBinWriter()
	bw.WriteB(0x73)
	bw.WriteBool(true)
	bw.WriteU16BE(0xACED)
	bw.WriteU32BE(0x7E0001)
	bw.WriteU64BE(0x0102030405060708)
	require.NoError(t, bw.Err)
	buf := bw.Bytes()
	require.Equal(t, []byte{0x73, 1, 0xAC, 0xED, 0, 0x7E, 0, 1, 1, 2, 3, 4, 5, 6, 7, 8}, buf)

	br := NewBinReaderFromBuf(buf)
	require.Equal(t, byte(0x73), br.ReadB())
	require.True(t, br.ReadBool())
	require.Equal(t, uint16(0xACED), br.ReadU16BE())
	require.Equal(t, uint32(0x7E0001), br.ReadU32BE())
	require.Equal(t, uint64(0x0102030405060708), br.ReadU64BE())
	require.NoError(t, br.Err)
	require.Equal(t, 0, br.Len())
	require.Equal(t, len(buf), br.Pos())
}

func TestReaderErrorIsSticky(t *testing.T) {
	br := NewBinReaderFromBuf([]byte{1, 2, 3})
	require.Equal(t, uint16(0x0102), br.ReadU16BE())
	require.Equal(t, uint32(0), br.ReadU32BE())
	require.ErrorIs(t, br.Err, io.ErrUnexpectedEOF)
	require.Equal(t, byte(0), br.ReadB())
	require.ErrorIs(t, br.Err, io.ErrUnexpectedEOF)

	br = NewBinReaderFromBuf(nil)
	br.ReadB()
	require.ErrorIs(t, br.Err, io.EOF)
}

func TestPeekB(t *testing.T) {
	br := NewBinReaderFromBuf([]byte{0x78})
	b, ok := br.PeekB()
	require.True(t, ok)
	require.Equal(t, byte(0x78), b)
	require.Equal(t, 0, br.Pos())
	br.ReadB()
	_, ok = br.PeekB()
	require.False(t, ok)
}

func TestReadBytes(t *testing.T) {
	br := NewBinReaderFromBuf([]byte{1, 2, 3, 4})
	b := br.ReadBytes(2)
	require.Equal(t, []byte{1, 2}, b)
	require.Equal(t, []byte{3, 4}, br.ReadRest())
	require.Nil(t, br.ReadRest())
	require.NoError(t, br.Err)

	br = NewBinReaderFromBuf([]byte{1})
	require.Nil(t, br.ReadBytes(-1))
	require.Error(t, br.Err)
}

func TestUTF(t *testing.T) {
	testCases := map[string]struct {
		str  string
		wire []byte
	}{
		"ascii":     {"Demo", []byte("Demo")},
		"empty":     {"", []byte{}},
		"nul":       {"a\x00b", []byte{'a', 0xC0, 0x80, 'b'}},
		"two bytes": {"é", []byte{0xC3, 0xA9}},
		"bmp":       {"€", []byte{0xE2, 0x82, 0xAC}},
		"astral":    {"\U0001F600", []byte{0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80}},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.wire, EncodeModifiedUTF8(tc.str))
			require.Equal(t, tc.str, DecodeModifiedUTF8(tc.wire))
			require.Equal(t, len(tc.wire), ModifiedUTF8Len(tc.str))

			bw := NewBufBinWriter()
			bw.WriteUTF(tc.str)
			bw.WriteLongUTF(tc.str)
			require.NoError(t, bw.Err)
			br := NewBinReaderFromBuf(bw.Bytes())
			require.Equal(t, tc.str, br.ReadUTF())
			require.Equal(t, tc.str, br.ReadLongUTF())
			require.NoError(t, br.Err)
		})
	}
}

func TestLoneSurrogateSurvives(t *testing.T) {
	wire := []byte{'x', 0xED, 0xA0, 0x80, 'y'}
	s := DecodeModifiedUTF8(wire)
	require.Equal(t, wire, EncodeModifiedUTF8(s))
}

func TestWriteUTFTooLong(t *testing.T) {
	bw := NewBufBinWriter()
	bw.WriteUTF(string(make([]byte, MaxShortUTFLen+1)))
	require.ErrorIs(t, bw.Err, ErrUTFTooLong)
}

func TestBufBinWriterDrained(t *testing.T) {
	bw := NewBufBinWriter()
	bw.WriteB(1)
	require.Equal(t, 1, bw.Len())
	require.Equal(t, []byte{1}, bw.Bytes())
	bw.WriteB(2)
	require.ErrorIs(t, bw.Err, ErrDrained)
	require.Nil(t, bw.Bytes())
}
