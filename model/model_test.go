package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leopardracer/deep-prove/zkerr"
)

func TestRequantize(t *testing.T) {
	r := &Requantize{RightShift: 4, Range: 100, AfterBits: 4}
	for _, c := range []struct {
		e, res int64
	}{
		{0, 0},
		{7, 0},
		{8, 1},
		{24, 2},
		{-8, 0},
		{-9, -1},
		{-25, -2},
		{100, 6},
	} {
		res, err := r.Apply(c.e)
		require.NoError(t, err, "e=%d", c.e)
		require.Equal(t, c.res, res, "e=%d", c.e)
	}

	_, err := r.Apply(-201)
	require.True(t, errors.Is(err, zkerr.ErrRangeViolation))
	_, err = r.Apply(200)
	require.True(t, errors.Is(err, zkerr.ErrRangeViolation))
}

func TestRequantizeDecompose(t *testing.T) {
	r := &Requantize{RightShift: 7, Range: 200, AfterBits: 3}
	require.Equal(t, 3, r.NumChunks())
	require.Equal(t, 2, r.TopSlack())
	for e := int64(-200); e <= 200; e += 37 {
		res, chunks, err := r.Decompose(e)
		require.NoError(t, err)
		acc := (res + r.Sub()) << r.RightShift
		for k, d := range chunks {
			require.True(t, d >= 0 && d < 8)
			acc += d << (3 * k)
		}
		require.Equal(t, e+r.MaxBit(), acc)
		require.Less(t, chunks[2]<<r.TopSlack(), int64(8))
	}
}

func TestRequantFor(t *testing.T) {
	for _, bound := range []int64{1, 7, 100, 1 << 20, 123456789} {
		for _, after := range []int{3, 4, 8} {
			r := RequantFor(bound, after)
			for _, e := range []int64{-bound, -bound / 2, 0, bound / 3, bound} {
				_, err := r.Apply(e)
				require.NoError(t, err, "bound=%d after=%d e=%d", bound, after, e)
			}
		}
	}
}

func TestActivation(t *testing.T) {
	relu := ReLU(4)
	in, out := relu.Entries()
	require.Len(t, in, 16)
	require.Equal(t, int64(-8), in[0])
	require.Equal(t, int64(0), out[0])
	require.Equal(t, int64(7), out[15])
	_, err := relu.Eval(8)
	require.True(t, errors.Is(err, zkerr.ErrRangeViolation))

	clip := Clip(4, -2, 3)
	y, err := clip.Eval(-5)
	require.NoError(t, err)
	require.Equal(t, int64(-2), y)
	bits, err := clip.OutputBits(4)
	require.NoError(t, err)
	require.Equal(t, 3, bits)

	table := make([]int64, 8)
	for i := range table {
		table[i] = int64(i * i)
	}
	sq := TableActivation(3, table)
	y, err = sq.Eval(-4)
	require.NoError(t, err)
	require.Equal(t, int64(0), y)
	y, err = sq.Eval(3)
	require.NoError(t, err)
	require.Equal(t, int64(49), y)

	_, err = TableActivation(3, table[:5]).OutputShape([]int{2})
	require.True(t, errors.Is(err, zkerr.ErrShapeMismatch))
}

func testModel(t *testing.T) *Model {
	m, err := NewBuilder([]int{1, 4, 4}, 4).
		Conv(NewTensor([]int{2, 1, 2, 2}, []int64{1, -1, 2, 0, 3, 1, -2, 1}, 4), NewTensor([]int{2}, []int64{1, -1}, 4), 1, WithRequant(4)).
		ReLU().
		Pool(2, 1).
		Flatten().
		Dense(NewTensor([]int{2, 8}, []int64{1, 2, 3, 4, -1, -2, -3, -4, 0, 1, 0, 1, 0, 1, 0, 1}, 4), NewTensor([]int{2}, []int64{0, 3}, 4)).
		Build()
	require.NoError(t, err)
	return m
}

func TestBuilder(t *testing.T) {
	m := testModel(t)
	require.Len(t, m.Layers, 6)
	require.Equal(t, KindRequantize, m.Layers[1].Kind())

	bs, err := m.Boundaries()
	require.NoError(t, err)
	require.Len(t, bs, 7)
	require.Equal(t, []int{2, 3, 3}, bs[1].Shape)
	require.Equal(t, []int{2, 2, 2}, bs[4].Shape)
	require.Equal(t, []int{8}, bs[5].Shape)
	require.Equal(t, []int{2}, bs[6].Shape)
	for _, b := range bs {
		require.Equal(t, int64(0), b.Pad)
	}

	_, err = NewBuilder([]int{3}, 4).
		Dense(NewTensor([]int{2, 2}, []int64{1, 2, 3, 4}, 4), NewTensor([]int{2}, []int64{0, 0}, 4)).
		Build()
	require.True(t, errors.Is(err, zkerr.ErrShapeMismatch))
}

func TestPadPropagation(t *testing.T) {
	table := make([]int64, 16)
	for i := range table {
		table[i] = 5
	}
	m := &Model{
		InputShape: []int{3},
		InputBits:  4,
		Layers:     []Layer{TableActivation(4, table), &Flatten{}},
	}
	bs, err := m.Boundaries()
	require.NoError(t, err)
	require.Equal(t, int64(5), bs[1].Pad)
	require.Equal(t, int64(5), bs[2].Pad)
}

func TestCodec(t *testing.T) {
	m := testModel(t)
	data, err := Encode(m)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, m.Describe(), decoded.Describe())
	again, err := Encode(decoded)
	require.NoError(t, err)
	require.Equal(t, data, again)

	pub, err := Encode(m.Public())
	require.NoError(t, err)
	decodedPub, err := Decode(pub)
	require.NoError(t, err)
	require.Nil(t, decodedPub.Layers[0].(*Convolution).Kernel.Data)

	x := NewTensor([]int{2}, []int64{-3, 7}, 4)
	data, err = EncodeTensor(x)
	require.NoError(t, err)
	y, err := DecodeTensor(data)
	require.NoError(t, err)
	require.True(t, x.Equal(y))
}
