package shufmask

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEltVariants(t *testing.T) {
	i, ok := Src(5).Index()
	require.True(t, ok)
	require.Equal(t, 5, i)
	require.False(t, Src(5).IsZero())

	_, ok = Zero.Index()
	require.False(t, ok)
	require.True(t, Zero.IsZero())

	// Index 0 and the zero lane stay distinct.
	require.NotEqual(t, Src(0), Zero)
}

func TestMaskValidate(t *testing.T) {
	require.NoError(t, Mask{Src(0), Src(7), Zero}.Validate(4))
	require.ErrorIs(t, Mask{Src(8)}.Validate(4), ErrPrecondition)
	require.NoError(t, Mask(nil).Validate(0))
}

func TestMaskInts(t *testing.T) {
	m := Mask{Src(3), Zero, Src(0)}
	require.Equal(t, []int{3, SentinelZero, 0}, m.Ints())

	back, err := MaskFromInts(m.Ints())
	require.NoError(t, err)
	require.Equal(t, m, back)

	_, err = MaskFromInts([]int{0, -5})
	require.ErrorIs(t, err, ErrPrecondition)
}

func TestMaskQueries(t *testing.T) {
	m := Mask{Src(0), Src(1), Zero, Src(6)}
	require.Equal(t, "[0 1 Z 6]", m.String())
	require.True(t, m.HasZero())
	require.True(t, m.UsesSecond(4))
	require.False(t, m.IsIdentity())
	require.True(t, Mask{Src(0), Src(1)}.IsIdentity())
	require.False(t, Mask{Src(0), Src(1)}.UsesSecond(2))
	require.Equal(t, "[]", Mask{}.String())
}
