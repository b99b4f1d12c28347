package field

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"
)

func TestSignedRoundTrip(t *testing.T) {
	for _, x := range []int64{0, 1, -1, 127, -128, 1 << 40, -(1 << 62)} {
		e := FromInt64(x)
		got, ok := ToInt64(&e)
		require.True(t, ok)
		require.Equal(t, x, got)
	}
	e := Pow2(100)
	_, ok := ToInt64(&e)
	require.False(t, ok)
}

func TestPadded(t *testing.T) {
	res := FromInt64sPadded([]int64{1, -2, 3}, 9)
	require.Len(t, res, 4)
	want := FromInt64s([]int64{1, -2, 3, 9})
	for i := range res {
		require.True(t, res[i].Equal(&want[i]), "entry %d", i)
	}
	require.Len(t, FromInt64sPadded(nil, 0), 1)
}

func TestArithmetic(t *testing.T) {
	p := Pow2(10)
	want := FromInt64(1024)
	require.True(t, p.Equal(&want))

	ps := Powers(FromInt64(3), 4)
	exp := FromInt64s([]int64{1, 3, 9, 27})
	for i := range ps {
		require.True(t, ps[i].Equal(&exp[i]))
	}
	require.Empty(t, Powers(FromInt64(3), 0))

	s := Sum(exp)
	want = FromInt64(40)
	require.True(t, s.Equal(&want))

	a := FromInt64s([]int64{1, 2, 3})
	b := FromInt64s([]int64{4, -5, 6, 100})
	ip := InnerProduct(a, b)
	want = FromInt64(12)
	require.True(t, ip.Equal(&want))

	var zero fr.Element
	ip = InnerProduct(nil, b)
	require.True(t, ip.Equal(&zero))
}
