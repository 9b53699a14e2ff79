package objstream

import (
	"bytes"
	"testing"

	"github.com/nspcc-dev/jserial/internal/fixtures"
	"github.com/stretchr/testify/require"
)

func allFixtures() map[string][]byte {
	return map[string][]byte{
		"demo int":       fixtures.Demo('I', 42),
		"demo char":      fixtures.Demo('C', 0xFFFF),
		"self cycle":     fixtures.SelfCycle(),
		"parent cycle":   fixtures.ParentCycle(),
		"annotation":     fixtures.WithAnnotation(),
		"inherited":      fixtures.Inherited(),
		"arrays":         fixtures.Arrays(),
		"enum":           fixtures.EnumColor(),
		"mixed":          fixtures.Mixed(),
		"external block": fixtures.ExternalBlock(),
		"external raw":   fixtures.ExternalRaw(),
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	for name, data := range allFixtures() {
		t.Run(name, func(t *testing.T) {
			s, err := Decode(data)
			require.NoError(t, err)
			out, err := Encode(s)
			require.NoError(t, err)

			actual, err := Decode(out)
			require.NoError(t, err)
			require.Equal(t, s, actual)

			// Mixed has a short value written as a long string.
			if name != "mixed" {
				require.Equal(t, data, out)
			}
		})
	}
}

func TestEncodePreamble(t *testing.T) {
	data := fixtures.Demo('I', 1)
	s, err := Decode(data)
	require.NoError(t, err)
	s.Preamble = []byte{0, 0, 0, 0x20}
	out, err := Encode(s)
	require.NoError(t, err)
	require.Equal(t, append([]byte{0, 0, 0, 0x20}, data...), out)
}

func TestEncodeRenumbers(t *testing.T) {
	s := &Stream{Contents: []Node{
		&String{Value: "anon"},
		&String{Handle: 0x100, Value: "x"},
		&Ref{Handle: 0x100},
	}}
	out, err := Encode(s)
	require.NoError(t, err)
	require.Equal(t, fixtures.NewStream().Str("anon").Str("x").Ref(0x7e0001).Bytes(), out)
}

func TestEncodeAfterReset(t *testing.T) {
	x := &String{Handle: BaseHandle, Value: "x"}
	s := &Stream{Contents: []Node{x, &Reset{}, &Ref{Handle: x.Handle}}}
	_, err := Encode(s)
	require.ErrorIs(t, err, ErrDanglingReference)
}

func TestEncodeLongForms(t *testing.T) {
	str := bytes.Repeat([]byte{'a'}, 0x10000)
	block := bytes.Repeat([]byte{7}, 256)
	s := &Stream{Contents: []Node{
		&String{Value: string(str)},
		&BlockData{Data: block},
	}}
	out, err := Encode(s)
	require.NoError(t, err)
	expected := fixtures.NewStream().
		B(0x7C).U64(uint64(len(str))).B(str...).
		B(0x7A).U32(256).B(block...).
		Bytes()
	require.Equal(t, expected, out)
}

func TestEncodeValueOutOfRange(t *testing.T) {
	t.Run("char", func(t *testing.T) {
		s, err := Decode(fixtures.Demo('C', 'x'))
		require.NoError(t, err)
		s.Contents[0].(*Object).Data[0].Values[0].(*Primitive).Int = -1
		_, err = Encode(s)
		require.ErrorIs(t, err, ErrValueOutOfRange)
	})
	testCases := map[string]*Primitive{
		"byte":    {Type: TypeByte, Int: 128},
		"short":   {Type: TypeShort, Int: -32769},
		"int":     {Type: TypeInt, Int: 1 << 31},
		"boolean": {Type: TypeBoolean, Int: 2},
		"float":   {Type: TypeFloat, Bits: 1 << 32},
	}
	for name, p := range testCases {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, p.checkRange(), ErrValueOutOfRange)
		})
	}
	t.Run("long name", func(t *testing.T) {
		s := &Stream{Contents: []Node{&ClassDesc{
			Name:  string(bytes.Repeat([]byte{'n'}, 0x10000)),
			Flags: FlagSerializable,
			Super: &Null{},
		}}}
		_, err := Encode(s)
		require.ErrorIs(t, err, ErrValueOutOfRange)
	})
}

func TestEncodeFieldMismatch(t *testing.T) {
	decode := func(t *testing.T, data []byte) *Stream {
		s, err := Decode(data)
		require.NoError(t, err)
		return s
	}
	testCases := map[string]func(t *testing.T) *Stream{
		"wrong primitive type": func(t *testing.T) *Stream {
			s := decode(t, fixtures.Demo('I', 1))
			s.Contents[0].(*Object).Data[0].Values[0] = NewLong(1)
			return s
		},
		"object for primitive": func(t *testing.T) *Stream {
			s := decode(t, fixtures.Demo('I', 1))
			s.Contents[0].(*Object).Data[0].Values[0] = &String{Value: "1"}
			return s
		},
		"primitive for object": func(t *testing.T) *Stream {
			s := decode(t, fixtures.SelfCycle())
			s.Contents[0].(*Object).Data[0].Values[0] = NewInt(1)
			return s
		},
		"missing value": func(t *testing.T) *Stream {
			s := decode(t, fixtures.Demo('I', 1))
			s.Contents[0].(*Object).Data[0].Values = nil
			return s
		},
		"extra value": func(t *testing.T) *Stream {
			s := decode(t, fixtures.Demo('I', 1))
			d := &s.Contents[0].(*Object).Data[0]
			d.Values = append(d.Values, NewInt(2))
			return s
		},
		"missing class data": func(t *testing.T) *Stream {
			s := decode(t, fixtures.Inherited())
			obj := s.Contents[0].(*Object)
			obj.Data = obj.Data[:1]
			return s
		},
		"unexpected annotation": func(t *testing.T) *Stream {
			s := decode(t, fixtures.Demo('I', 1))
			s.Contents[0].(*Object).Data[0].Annotation = []Node{&BlockData{Data: []byte{1}}}
			return s
		},
		"reset in annotation": func(t *testing.T) *Stream {
			s := decode(t, fixtures.WithAnnotation())
			d := &s.Contents[0].(*Object).Data[0]
			d.Annotation = append(d.Annotation, &Reset{})
			return s
		},
		"block data as value": func(t *testing.T) *Stream {
			s := decode(t, fixtures.SelfCycle())
			s.Contents[0].(*Object).Data[0].Values[0] = &BlockData{Data: []byte{1}}
			return s
		},
		"content after raw data": func(t *testing.T) *Stream {
			s := decode(t, fixtures.ExternalRaw())
			s.Contents = append(s.Contents, &Null{})
			return s
		},
		"raw data in block mode": func(t *testing.T) *Stream {
			s := decode(t, fixtures.ExternalRaw())
			s.Contents[1].(*Object).Data[0].Annotation[0] = &BlockData{Data: []byte{1}}
			return s
		},
		"desc ref to string": func(t *testing.T) *Stream {
			return &Stream{Contents: []Node{
				&String{Handle: BaseHandle, Value: "x"},
				&Object{Desc: &Ref{Handle: BaseHandle}},
			}}
		},
		"not an array class": func(t *testing.T) *Stream {
			return &Stream{Contents: []Node{&Array{Desc: &ClassDesc{
				Name: "Demo", Flags: FlagSerializable, Super: &Null{},
			}}}}
		},
		"invalid field type": func(t *testing.T) *Stream {
			return &Stream{Contents: []Node{&ClassDesc{
				Name:   "Demo",
				Flags:  FlagSerializable,
				Fields: []FieldDesc{{Type: 'Q', Name: "q"}},
				Super:  &Null{},
			}}}
		},
		"nil content": func(t *testing.T) *Stream {
			return &Stream{Contents: []Node{nil}}
		},
	}
	for name, f := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Encode(f(t))
			require.ErrorIs(t, err, ErrFieldMismatch)
		})
	}
}

func TestEncodeDangling(t *testing.T) {
	testCases := map[string]*Stream{
		"top level": {Contents: []Node{&Ref{Handle: BaseHandle}}},
		"forward": {Contents: []Node{
			&Ref{Handle: BaseHandle + 1},
			&String{Handle: BaseHandle + 1, Value: "later"},
		}},
		"descriptor": {Contents: []Node{&Object{Desc: &Ref{Handle: BaseHandle + 7}}}},
	}
	for name, s := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Encode(s)
			require.ErrorIs(t, err, ErrDanglingReference)
		})
	}
}
