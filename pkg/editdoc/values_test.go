package editdoc

import (
	"testing"

	"github.com/nspcc-dev/jserial/pkg/objstream"
	"github.com/stretchr/testify/require"
)

func TestPrimitiveText(t *testing.T) {
	testCases := []struct {
		p    objstream.Primitive
		text string
	}{
		{objstream.Primitive{Type: objstream.TypeInt, Int: -42}, "-42"},
		{objstream.Primitive{Type: objstream.TypeChar, Int: 0xFFFF}, "65535"},
		{objstream.Primitive{Type: objstream.TypeBoolean, Int: 1}, "true"},
		{objstream.Primitive{Type: objstream.TypeBoolean}, "false"},
		{objstream.Primitive{Type: objstream.TypeFloat, Bits: 0x3fc00000}, "1.5"},
		{objstream.Primitive{Type: objstream.TypeFloat, Bits: 0x3dcccccd}, "0.1"},
		{objstream.Primitive{Type: objstream.TypeFloat, Bits: 0x80000000}, "-0"},
		{objstream.Primitive{Type: objstream.TypeFloat, Bits: 0xff800000}, "-Inf"},
		{objstream.Primitive{Type: objstream.TypeFloat, Bits: canonicalNaN32}, "NaN"},
		{objstream.Primitive{Type: objstream.TypeFloat, Bits: 0xffc00000}, "0xffc00000"},
		{objstream.Primitive{Type: objstream.TypeDouble, Bits: 0x3fb999999999999a}, "0.1"},
		{objstream.Primitive{Type: objstream.TypeDouble, Bits: canonicalNaN64}, "NaN"},
		{objstream.Primitive{Type: objstream.TypeDouble, Bits: 1}, "5e-324"},
	}
	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			text, err := formatPrimitive(&tc.p)
			require.NoError(t, err)
			require.Equal(t, tc.text, text)

			p, err := parsePrimitive(tc.p.Type, " "+text+"\n")
			require.NoError(t, err)
			require.Equal(t, tc.p, *p)
		})
	}
}

func TestParsePrimitiveLenient(t *testing.T) {
	p, err := parsePrimitive(objstream.TypeFloat, "nan")
	require.NoError(t, err)
	require.Equal(t, uint64(canonicalNaN32), p.Bits)

	p, err = parsePrimitive(objstream.TypeBoolean, "1")
	require.NoError(t, err)
	require.Equal(t, int64(1), p.Int)

	// Width is checked on encoding.
	p, err = parsePrimitive(objstream.TypeByte, "1000")
	require.NoError(t, err)
	require.Equal(t, int64(1000), p.Int)

	_, err = parsePrimitive(objstream.TypeFloat, "1e60")
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestNeedsHex(t *testing.T) {
	require.False(t, needsHex("plain text\r\n\twith <markup> & ünïcode 😀"))
	require.True(t, needsHex("\x00"))
	require.True(t, needsHex("\x1b[0m"))
	require.True(t, needsHex("\xff"))
	require.True(t, needsHex("\ufffe"))
}
