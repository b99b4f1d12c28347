package poly

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"
)

func ints(xs ...int64) []fr.Element {
	res := make([]fr.Element, len(xs))
	for i, x := range xs {
		res[i].SetInt64(x)
	}
	return res
}

func randPoint(t *testing.T, n int) []fr.Element {
	res := make([]fr.Element, n)
	for i := range res {
		_, err := res[i].SetRandom()
		require.NoError(t, err)
	}
	return res
}

func TestEvalOnHypercube(t *testing.T) {
	m := MLE(ints(3, 1, 4, 1, 5, 9, 2, 6))
	require.Equal(t, 3, m.NumVars())
	for i := range m {
		// little-endian: variable k is bit k of the index
		point := ints(int64(i&1), int64(i>>1&1), int64(i>>2&1))
		v, err := m.Eval(point)
		require.NoError(t, err)
		require.True(t, v.Equal(&m[i]), "index %d", i)
	}
	_, err := m.Eval(ints(0, 1))
	require.Error(t, err)
}

func TestEqTable(t *testing.T) {
	m := MLE(ints(3, 1, 4, 1, 5, 9, 2, 6))
	r := randPoint(t, 3)
	eq := EqTable(r)

	var sum, t1 fr.Element
	for i := range m {
		t1.Mul(&m[i], &eq[i])
		sum.Add(&sum, &t1)
	}
	v, err := m.Eval(r)
	require.NoError(t, err)
	require.True(t, sum.Equal(&v))

	s := randPoint(t, 3)
	want, err := EqTable(s).Eval(r)
	require.NoError(t, err)
	got := EqEval(r, s)
	require.True(t, got.Equal(&want))
}

func TestMatrixRows(t *testing.T) {
	// 2 rows of 4 columns
	m := MLE(ints(1, 2, 3, 4, 5, 6, 7, 8))
	r := randPoint(t, 1)
	c := randPoint(t, 2)
	rows := MatrixRows(m, r, 2)
	require.Len(t, rows, 4)

	got, err := rows.Eval(c)
	require.NoError(t, err)
	want, err := m.Eval(Concat(c, r))
	require.NoError(t, err)
	require.True(t, got.Equal(&want))
}

func TestFoldKeepsInput(t *testing.T) {
	m := MLE(ints(1, 2, 3, 4))
	c := m.Clone()
	half := m.Fold(ints(2)[0])
	require.Equal(t, c, m)
	require.Equal(t, MLE(ints(3, 5)), half)
}

func TestInterpolate(t *testing.T) {
	// 2 - x + 3x^2
	p := Interpolate(ints(2, 4, 12))
	require.Equal(t, Univariate(ints(2, -1, 3)), p)
	x := ints(5)[0]
	v := p.Eval(&x)
	want := ints(72)[0]
	require.True(t, v.Equal(&want))
	s := p.SumOverBoolean()
	want = ints(6)[0]
	require.True(t, s.Equal(&want))

	require.Equal(t, Univariate(ints(0, 0)), Interpolate(ints(0, 0)))
	var zero fr.Element
	s = Univariate(nil).SumOverBoolean()
	require.True(t, s.Equal(&zero))
}
