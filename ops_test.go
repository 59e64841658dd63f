package shufmask

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	o, ok := Lookup("vpshufd")
	require.True(t, ok)
	require.Equal(t, "VPSHUFD", o.Name)
	require.Equal(t, FamPSHUF, o.Family)

	// Plan 9 and Intel spellings describe the same instruction.
	a, _ := Lookup("PSHUFL")
	b, _ := Lookup("PSHUFD")
	require.Equal(t, a.Family, b.Family)
	require.Equal(t, a.ElemBits, b.ElemBits)

	_, ok = Lookup("ADDQ")
	require.False(t, ok)

	names := Ops()
	require.Contains(t, names, "VPERM2I128")
	require.IsIncreasing(t, names)
}

func TestOpFeatures(t *testing.T) {
	o, _ := Lookup("VPSHUFD")
	require.Equal(t, AVX, o.FeatureFor(128))
	require.Equal(t, AVX2, o.FeatureFor(256))

	o, _ = Lookup("VSHUFPS")
	require.Equal(t, AVX, o.FeatureFor(256))

	o, _ = Lookup("PSHUFB")
	require.Equal(t, SSSE3, o.FeatureFor(128))
	require.False(t, o.HasImm())

	// Only checks that the query is answerable on any host.
	_ = HostSupports(AVX2)
	require.False(t, HostSupports(Feature("AVX-512")))
}

func TestOpVTFor(t *testing.T) {
	o, _ := Lookup("VPSHUFD")
	vt, err := o.VTFor(256)
	require.NoError(t, err)
	require.Equal(t, V8I32, vt)

	_, err = o.VTFor(0)
	require.ErrorIs(t, err, ErrPrecondition)

	o, _ = Lookup("PSHUFD")
	_, err = o.VTFor(256)
	require.ErrorIs(t, err, ErrPrecondition)
	vt, err = o.VTFor(0)
	require.NoError(t, err)
	require.Equal(t, V4I32, vt)

	o, _ = Lookup("PSHUFW")
	vt, err = o.VTFor(64)
	require.NoError(t, err)
	require.Equal(t, V4I16, vt)
}

func TestDecodeDispatch(t *testing.T) {
	cases := []struct {
		op   string
		vt   VT
		imm  uint8
		want Mask
	}{
		{"PSHUFL", V4I32, 0x1b, ints(3, 2, 1, 0)},
		{"VPSHUFD", V8I32, 0x1b, ints(3, 2, 1, 0, 7, 6, 5, 4)},
		{"SHUFPS", V4I32, 0x44, ints(0, 1, 4, 5)},
		{"PSHUFHW", V8I16, 0x1b, ints(0, 1, 2, 3, 7, 6, 5, 4)},
		{"PUNPCKLBW", V16I8, 0, ints(0, 16, 1, 17, 2, 18, 3, 19, 4, 20, 5, 21, 6, 22, 7, 23)},
		{"UNPCKHPD", V2I64, 0, ints(1, 3)},
		{"MOVHLPS", V4I32, 0, ints(6, 7, 2, 3)},
		{"MOVLHPS", V4I32, 0, ints(0, 1, 4, 5)},
		{"INSERTPS", V4I32, 0x90, ints(0, 6, 2, 3)},
		{"VPERMQ", V4I64, 0xe4, ints(0, 1, 2, 3)},
		{"VPERM2I128", V4I64, 0x20, ints(0, 1, 4, 5)},
		{"VPBLENDD", V8I32, 0xf0, ints(0, 1, 2, 3, 12, 13, 14, 15)},
		// PBLENDW reuses its immediate for the upper lane.
		{"VPBLENDW", V16I16, 0x01, ints(16, 1, 2, 3, 4, 5, 6, 7, 24, 9, 10, 11, 12, 13, 14, 15)},
	}
	for _, tc := range cases {
		r, err := Decode(tc.op, tc.vt, tc.imm)
		require.NoError(t, err, tc.op)
		require.False(t, r.NotShuffle, tc.op)
		require.Equal(t, tc.want, r.Mask, tc.op)
		require.Equal(t, tc.vt, r.VT)
	}
}

func TestDecodeDispatchNotShuffle(t *testing.T) {
	r, err := Decode("VPERM2F128", V4I64, 0x08)
	require.NoError(t, err)
	require.True(t, r.NotShuffle)
	require.Nil(t, r.Mask)

	r, err = Decode("VPERM2I128", V4I64, 0x80)
	require.NoError(t, err)
	require.True(t, r.NotShuffle)
}

func TestDecodeDispatchErrors(t *testing.T) {
	_, err := Decode("ADDQ", V4I32, 0)
	require.ErrorIs(t, err, ErrUnknownOp)

	_, err = Decode("PSHUFD", V8I16, 0)
	require.ErrorIs(t, err, ErrPrecondition)

	_, err = Decode("PSHUFD", V8I32, 0)
	require.ErrorIs(t, err, ErrPrecondition)

	_, err = Decode("PSHUFB", V16I8, 0)
	require.ErrorIs(t, err, ErrPrecondition)

	_, err = Decode("PALIGNR", V16I8, 40)
	require.ErrorIs(t, err, ErrPrecondition)
}

func TestDecodeControl(t *testing.T) {
	ctl := []byte{3, 2, 1, 0, 7, 6, 5, 4, 11, 10, 9, 8, 0x80, 0x80, 0x80, 0x80}
	r, err := DecodeControl("PSHUFB", ctl)
	require.NoError(t, err)
	require.Equal(t, ints(3, 2, 1, 0, 7, 6, 5, 4, 11, 10, 9, 8, Z, Z, Z, Z), r.Mask)
	require.Equal(t, V16I8, r.VT)

	_, err = DecodeControl("PSHUFB", make([]byte, 32))
	require.ErrorIs(t, err, ErrPrecondition)

	r, err = DecodeControl("VPSHUFB", make([]byte, 32))
	require.NoError(t, err)
	require.Len(t, r.Mask, 32)

	_, err = DecodeControl("PSHUFD", ctl)
	require.ErrorIs(t, err, ErrPrecondition)

	_, err = DecodeControl("NOPE", ctl)
	require.ErrorIs(t, err, ErrUnknownOp)
}
