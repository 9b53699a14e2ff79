package objstream

import (
	"math"
	"strconv"
	"testing"

	"github.com/nspcc-dev/jserial/internal/fixtures"
	"github.com/stretchr/testify/require"
)

func TestDecodeDemo(t *testing.T) {
	s, err := Decode(fixtures.Demo('I', 42))
	require.NoError(t, err)
	require.Equal(t, StreamVersion, s.Version)
	require.Len(t, s.Contents, 1)

	obj, ok := s.Contents[0].(*Object)
	require.True(t, ok)
	require.Equal(t, BaseHandle+1, obj.Handle)
	desc, ok := obj.Desc.(*ClassDesc)
	require.True(t, ok)
	require.Equal(t, BaseHandle, desc.Handle)
	require.Equal(t, "Demo", desc.Name)
	require.Equal(t, int64(0x0102030405060708), desc.SerialVersionUID)
	require.Equal(t, []FieldDesc{{Type: TypeInt, Name: "count"}}, desc.Fields)
	require.Equal(t, &Null{}, desc.Super)
	require.Equal(t, []ClassData{{Values: []Node{NewInt(42)}}}, obj.Data)
}

func TestDecodeSelfCycle(t *testing.T) {
	s, err := Decode(fixtures.SelfCycle())
	require.NoError(t, err)
	obj := s.Contents[0].(*Object)
	require.Equal(t, BaseHandle+2, obj.Handle)
	desc := obj.Desc.(*ClassDesc)
	require.Equal(t, &String{Handle: BaseHandle + 1, Value: "LNode;"}, desc.Fields[0].ClassName)
	require.Equal(t, []Node{&Ref{Handle: obj.Handle}}, obj.Data[0].Values)
}

func TestDecodeParentCycle(t *testing.T) {
	s, err := Decode(fixtures.ParentCycle())
	require.NoError(t, err)
	require.Len(t, s.Contents, 2)
	root := s.Contents[0].(*Object)
	desc := root.Desc.(*ClassDesc)
	require.Equal(t, &Ref{Handle: BaseHandle + 1}, desc.Fields[1].ClassName)

	child := root.Data[0].Values[0].(*Object)
	require.Equal(t, BaseHandle+3, child.Handle)
	require.Equal(t, &Ref{Handle: BaseHandle}, child.Desc)
	require.Equal(t, []Node{&Null{}, &Ref{Handle: root.Handle}}, child.Data[0].Values)
	require.Equal(t, &Null{}, root.Data[0].Values[1])
	require.Equal(t, &Ref{Handle: child.Handle}, s.Contents[1])
}

func TestDecodeAnnotation(t *testing.T) {
	s, err := Decode(fixtures.WithAnnotation())
	require.NoError(t, err)
	obj := s.Contents[0].(*Object)
	require.Equal(t, []ClassData{{
		Values: []Node{NewInt(1)},
		Annotation: []Node{
			&BlockData{Data: []byte{0, 0, 0, 1}},
			&String{Handle: BaseHandle + 2, Value: "elem"},
		},
	}}, obj.Data)
}

func TestDecodeInherited(t *testing.T) {
	s, err := Decode(fixtures.Inherited())
	require.NoError(t, err)
	obj := s.Contents[0].(*Object)
	desc := obj.Desc.(*ClassDesc)
	base := desc.Super.(*ClassDesc)
	require.Equal(t, "Base", base.Name)
	require.Equal(t, BaseHandle+2, base.Handle)
	require.Equal(t, BaseHandle+3, obj.Handle)
	require.Equal(t, []ClassData{
		{Values: []Node{NewLong(-1), &Primitive{Type: TypeDouble, Bits: math.Float64bits(1.5)}}},
		{Values: []Node{NewBool(true), &String{Handle: BaseHandle + 4, Value: "child"}}},
	}, obj.Data)
}

func TestDecodeArrays(t *testing.T) {
	s, err := Decode(fixtures.Arrays())
	require.NoError(t, err)
	require.Len(t, s.Contents, 3)

	ints := s.Contents[0].(*Array)
	require.Equal(t, []Node{NewInt(1), NewInt(-2), NewInt(math.MaxInt32)}, ints.Elements)

	bs := s.Contents[1].(*Array)
	require.Equal(t, BaseHandle+3, bs.Handle)
	require.Equal(t, []Node{
		&Primitive{Type: TypeByte, Int: -34},
		&Primitive{Type: TypeByte, Int: -83},
		&Primitive{Type: TypeByte, Int: -66},
		&Primitive{Type: TypeByte, Int: -17},
	}, bs.Elements)

	strs := s.Contents[2].(*Array)
	require.Equal(t, []Node{
		&String{Handle: BaseHandle + 6, Value: "a"},
		&Ref{Handle: BaseHandle + 6},
		&Null{},
	}, strs.Elements)
}

func TestDecodeEnum(t *testing.T) {
	s, err := Decode(fixtures.EnumColor())
	require.NoError(t, err)
	e := s.Contents[0].(*Enum)
	desc := e.Desc.(*ClassDesc)
	require.True(t, desc.Has(FlagEnum))
	require.Equal(t, "java.lang.Enum", desc.Super.(*ClassDesc).Name)
	require.Equal(t, &String{Handle: BaseHandle + 3, Value: "RED"}, e.Constant)
	require.Equal(t, &Ref{Handle: e.Handle}, s.Contents[1])
}

func TestDecodeMixed(t *testing.T) {
	s, err := Decode(fixtures.Mixed())
	require.NoError(t, err)
	require.Len(t, s.Contents, 8)
	require.Equal(t, &BlockData{Data: []byte{1, 2, 3}}, s.Contents[0])
	require.Len(t, s.Contents[1].(*BlockData).Data, 300)
	require.Equal(t, &String{Handle: BaseHandle, Value: "big"}, s.Contents[2])

	c := s.Contents[3].(*Class)
	require.Equal(t, BaseHandle+2, c.Handle)

	proxy := s.Contents[4].(*ClassDesc)
	require.True(t, proxy.Proxy)
	require.Equal(t, []string{"java.lang.Runnable"}, proxy.Interfaces)
	require.Equal(t, "java.lang.reflect.Proxy", proxy.Super.(*ClassDesc).Name)

	require.Equal(t, &Reset{}, s.Contents[5])
	require.Equal(t, &String{Handle: BaseHandle, Value: "after reset"}, s.Contents[6])

	ex := s.Contents[7].(*Exception)
	obj := ex.Throwable.(*Object)
	require.Equal(t, BaseHandle+1, obj.Handle)
	require.Equal(t, []ClassData{{}}, obj.Data)
}

func TestDecodeExternal(t *testing.T) {
	t.Run("block data mode", func(t *testing.T) {
		s, err := Decode(fixtures.ExternalBlock())
		require.NoError(t, err)
		obj := s.Contents[0].(*Object)
		require.Equal(t, []ClassData{{Annotation: []Node{
			&BlockData{Data: []byte{0xCA, 0xFE}},
			&String{Handle: BaseHandle + 2, Value: "inner"},
		}}}, obj.Data)
	})
	t.Run("unframed", func(t *testing.T) {
		s, err := Decode(fixtures.ExternalRaw())
		require.NoError(t, err)
		require.Len(t, s.Contents, 2)
		obj := s.Contents[1].(*Object)
		require.Equal(t, []ClassData{{Annotation: []Node{
			&BlockData{Data: []byte{0x01, 0x02, 0x73, 0xFF}, Raw: true},
		}}}, obj.Data)
	})
}

func TestDecodeErrors(t *testing.T) {
	demo := fixtures.Demo('I', 42)
	testCases := map[string]struct {
		data []byte
		err  error
	}{
		"bad magic":        {[]byte{0xCA, 0xFE, 0, 5}, ErrInvalidHeader},
		"bad version":      {[]byte{0xAC, 0xED, 0, 4}, ErrInvalidHeader},
		"short header":     {[]byte{0xAC, 0xED, 0}, ErrTruncatedStream},
		"unknown code":     {fixtures.NewStream().B(0x42).Bytes(), ErrUnknownTypeCode},
		"end block at top": {fixtures.NewStream().B(0x78).Bytes(), ErrUnknownTypeCode},
		"truncated value":  {demo[:len(demo)-2], ErrTruncatedStream},
		"truncated block":  {fixtures.NewStream().B(0x77, 10, 1, 2).Bytes(), ErrTruncatedStream},
		"dangling ref":     {fixtures.NewStream().Ref(0x7e0000).Bytes(), ErrInvalidHandleReference},
		"ref below base":   {fixtures.NewStream().Str("x").Ref(0x10).Bytes(), ErrInvalidHandleReference},
		"desc ref to string": {fixtures.NewStream().Str("x").
			B(0x73).Ref(0x7e0000).Bytes(), ErrInvalidHandleReference},
		"bad field type": {fixtures.NewStream().B(0x73).
			Desc("X", 0, 0x02, 1).Field('Q', "q").EndNull().Bytes(), ErrUnknownTypeCode},
		"reset in value": {fixtures.NewStream().B(0x73).
			Desc("X", 0, 0x02, 1).Field('L', "o").Str("LX;").EndNull().B(0x79).Bytes(), ErrUnknownTypeCode},
		"null object desc": {fixtures.NewStream().B(0x73, 0x70).Bytes(), ErrUnknownTypeCode},
		"forward ref": {fixtures.NewStream().B(0x73).
			Desc("X", 0, 0x02, 1).Field('L', "o").Str("LX;").EndNull().Ref(0x7e0003).Bytes(), ErrInvalidHandleReference},
		"deep arrays":  {fixtures.NestedArrays(MaxNestingDepth + 1), ErrNestingTooDeep},
		"deep supers":  {deepSupers(MaxNestingDepth + 1), ErrNestingTooDeep},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(tc.data)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

// deepSupers is an object of a class with n-1 ancestors.
func deepSupers(n int) []byte {
	b := fixtures.NewStream().B(0x73)
	for i := 0; i < n; i++ {
		b.Desc("C"+strconv.Itoa(i), 0, 0x02, 0).B(0x78)
	}
	return b.B(0x70).Bytes()
}

func TestDecodeNesting(t *testing.T) {
	s, err := Decode(fixtures.NestedArrays(MaxNestingDepth - 1))
	require.NoError(t, err)
	var depth int
	for n := s.Contents[0]; n.Kind() == ArrayK; n = n.(*Array).Elements[0] {
		depth++
	}
	require.Equal(t, MaxNestingDepth-1, depth)

	// The object and the terminating null take a level each.
	s, err = Decode(deepSupers(MaxNestingDepth - 2))
	require.NoError(t, err)
	require.Len(t, s.Contents[0].(*Object).Data, MaxNestingDepth-2)
}

func TestHandleTable(t *testing.T) {
	var ht HandleTable
	a, b := &String{Value: "a"}, &String{Value: "b"}
	require.Equal(t, BaseHandle, ht.Assign(a))
	require.Equal(t, BaseHandle+1, ht.Assign(b))
	require.Equal(t, 2, ht.Len())

	n, ok := ht.Lookup(BaseHandle + 1)
	require.True(t, ok)
	require.Same(t, b, n)
	_, ok = ht.Lookup(BaseHandle + 2)
	require.False(t, ok)
	_, ok = ht.Lookup(0)
	require.False(t, ok)

	ht.Reset()
	require.Equal(t, 0, ht.Len())
	require.Equal(t, BaseHandle, ht.Assign(b))
}
