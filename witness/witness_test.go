package witness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leopardracer/deep-prove/field"
	"github.com/leopardracer/deep-prove/model"
	"github.com/leopardracer/deep-prove/zkerr"
)

func TestDense(t *testing.T) {
	m, err := model.NewBuilder([]int{2}, 4).
		Dense(model.NewTensor([]int{2, 2}, []int64{1, 2, 3, 4}, 4), model.NewTensor([]int{2}, []int64{0, 0}, 4)).
		Build()
	require.NoError(t, err)
	tr, err := Execute(m, model.NewTensor([]int{2}, []int64{1, 2}, 4))
	require.NoError(t, err)
	require.Equal(t, []int64{5, 11}, tr.Output().Data)
}

func TestConvPool(t *testing.T) {
	in := make([]int64, 16)
	for i := range in {
		in[i] = int64(i%5) - 2
	}
	m, err := model.NewBuilder([]int{1, 4, 4}, 3).
		Conv(model.NewTensor([]int{1, 1, 2, 2}, []int64{1, 0, 0, -1}, 2), model.NewTensor([]int{1}, []int64{1}, 2), 2).
		Pool(2, 1).
		Build()
	require.NoError(t, err)
	tr, err := Execute(m, model.NewTensor([]int{1, 4, 4}, in, 3))
	require.NoError(t, err)

	// in = [-2 -1 0 1 / 2 -2 -1 0 / 1 2 -2 -1 / 0 1 2 -2]
	convOut := tr.Steps[0].Output
	require.Equal(t, []int{1, 2, 2}, convOut.Shape)
	require.Equal(t, []int64{-2 + 2 + 1, 0 - 0 + 1, 1 - 1 + 1, -2 + 2 + 1}, convOut.Data)
	require.Equal(t, []int{1, 1, 1}, tr.Output().Shape)
	require.Equal(t, []int64{1 + 1 + 1 + 1}, tr.Output().Data)
}

func TestActivationRequant(t *testing.T) {
	m := &model.Model{
		InputShape: []int{4},
		InputBits:  8,
		Layers: []model.Layer{
			&model.Requantize{RightShift: 2, Range: 32, AfterBits: 6},
			model.ReLU(6),
		},
	}
	tr, err := Execute(m, model.NewTensor([]int{4}, []int64{-64, -5, 3, 100}, 8))
	require.NoError(t, err)
	require.Equal(t, []int64{-16, -2, 0, 25}, tr.Steps[0].Output.Data)
	require.Equal(t, []int64{0, 0, 0, 25}, tr.Output().Data)

	_, err = Execute(m, model.NewTensor([]int{4}, []int64{0, 0, 0, -100}, 8))
	require.True(t, errors.Is(err, zkerr.ErrRangeViolation))
	var le *zkerr.LayerError
	require.True(t, errors.As(err, &le))
	require.Equal(t, 0, le.Layer)
}

func TestErrors(t *testing.T) {
	m, err := model.NewBuilder([]int{2}, 4).
		Dense(model.NewTensor([]int{1, 2}, []int64{1, 1}, 4), model.NewTensor([]int{1}, []int64{0}, 4), model.WithOutBits(4)).
		Build()
	require.NoError(t, err)

	_, err = Execute(m, model.NewTensor([]int{3}, []int64{1, 2, 3}, 4))
	require.True(t, errors.Is(err, zkerr.ErrShapeMismatch))

	_, err = Execute(m, model.NewTensor([]int{2}, []int64{1, 8}, 5))
	require.True(t, errors.Is(err, zkerr.ErrRangeViolation))

	// 7 + 7 does not fit the declared 4 bits
	_, err = Execute(m, model.NewTensor([]int{2}, []int64{7, 7}, 4))
	require.True(t, errors.Is(err, zkerr.ErrRangeViolation))
}

func TestTable(t *testing.T) {
	table := make([]int64, 16)
	for i := range table {
		table[i] = 3
	}
	m := &model.Model{
		InputShape: []int{3},
		InputBits:  4,
		Layers:     []model.Layer{model.TableActivation(4, table)},
	}
	tr, err := Execute(m, model.NewTensor([]int{3}, []int64{1, 2, 3}, 4))
	require.NoError(t, err)
	in := tr.Table(0)
	require.Len(t, in, 4)
	require.True(t, in[3].IsZero())
	out := tr.Table(1)
	want := field.FromInt64(3)
	require.True(t, out[3].Equal(&want))
}
