package layered

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"

	"github.com/leopardracer/deep-prove/field"
	"github.com/leopardracer/deep-prove/model"
	"github.com/leopardracer/deep-prove/poly"
	"github.com/leopardracer/deep-prove/witness"
)

func convModel(t *testing.T) *model.Model {
	kernel := make([]int64, 2*2*2*2)
	for i := range kernel {
		kernel[i] = int64(i%3) - 1
	}
	m, err := model.NewBuilder([]int{2, 4, 5}, 4).
		Conv(model.NewTensor([]int{2, 2, 2, 2}, kernel, 3), model.NewTensor([]int{2}, []int64{1, -2}, 3), 1, model.WithRequant(5)).
		ReLU().
		Pool(2, 2).
		Flatten().
		Dense(model.NewTensor([]int{3, 4}, []int64{1, 0, -1, 2, 0, 1, 1, 1, -2, 3, 0, 1}, 3), model.NewTensor([]int{3}, []int64{0, 1, 2}, 3)).
		Build()
	require.NoError(t, err)
	return m
}

func TestCompile(t *testing.T) {
	m := convModel(t)
	p, err := Compile(m)
	require.NoError(t, err)
	require.Len(t, p.Steps, 6)
	require.Nil(t, p.Model.Layers[0].(*model.Convolution).Kernel.Data)

	conv := p.Steps[0]
	require.Equal(t, []int{2, 3, 4}, conv.OutShape)
	require.Equal(t, 6, conv.InVars)
	require.Equal(t, 5, conv.OutVars)
	require.Len(t, conv.Instances, 2)
	require.Equal(t, 4, conv.Instances[0].NumVars)
	require.Len(t, conv.Wiring.Mul, 2*3*4*2*2*2)

	req := p.Steps[1]
	require.Equal(t, DegreeLookupWitness, req.Instances[0].Degree)
	require.Equal(t, 5, req.Instances[1].NumVars)

	pool := p.Steps[3]
	require.Equal(t, []int{2, 1, 2}, pool.OutShape)
	require.Len(t, pool.Wiring.Add, 2*1*2*4)

	require.Empty(t, p.Steps[4].Instances)
	require.Equal(t, 2, p.OutputVars())

	stats := p.GetStats()
	require.Equal(t, 6, stats.NbLayer)
	require.Equal(t, 8, stats.NbSumcheck)
	require.Equal(t, len(conv.Wiring.Mul), stats.NbMul)

	again, err := Compile(m)
	require.NoError(t, err)
	require.Equal(t, p.Serialize(), again.Serialize())
	p2, err := Compile(m.Public())
	require.NoError(t, err)
	require.Equal(t, p.Serialize(), p2.Serialize())
}

func randomPoint(n int, seed int64) []fr.Element {
	res := make([]fr.Element, n)
	for i := range res {
		res[i].SetInt64(seed*31 + int64(i)*7 + 3)
	}
	return res
}

// The wiring predicates must reproduce the executed layers on the
// hypercube and agree with the folded tables off it.
func TestWiring(t *testing.T) {
	m := convModel(t)
	p, err := Compile(m)
	require.NoError(t, err)
	input := make([]int64, 40)
	for i := range input {
		input[i] = int64(i%7) - 3
	}
	tr, err := witness.Execute(m, model.NewTensor([]int{2, 4, 5}, input, 4))
	require.NoError(t, err)

	conv := p.Steps[0]
	c := m.Layers[0].(*model.Convolution)
	x := tr.Table(0)
	kernel := field.FromInt64sPadded(c.Kernel.Data, 0)
	plane := conv.OutShape[1] * conv.OutShape[2]
	bias := poly.MLE(field.FromInt64sPadded(c.BroadcastBias(plane), 0))
	y := tr.Table(1)

	r := randomPoint(conv.OutVars, 1)
	eqR := poly.EqTable(r)
	yr, err := y.Eval(r)
	require.NoError(t, err)
	br, err := bias.Eval(r)
	require.NoError(t, err)
	h := conv.Wiring.KernelFold(eqR, x)
	sum := field.InnerProduct(h, kernel)
	sum.Add(&sum, &br)
	require.True(t, sum.Equal(&yr))

	u := randomPoint(conv.Instances[0].NumVars, 2)
	v := randomPoint(conv.InVars, 3)
	g := conv.Wiring.InputFold(eqR, poly.EqTable(u))
	gv, err := g.Eval(v)
	require.NoError(t, err)
	mv := conv.Wiring.MulEval(eqR, poly.EqTable(u), poly.EqTable(v))
	require.True(t, gv.Equal(&mv))

	pool := p.Steps[3]
	px := tr.Table(3)
	py := tr.Table(4)
	r = randomPoint(pool.OutVars, 4)
	eqR = poly.EqTable(r)
	pyr, err := py.Eval(r)
	require.NoError(t, err)
	gp := pool.Wiring.AddFold(eqR)
	s := field.InnerProduct(gp, px)
	require.True(t, s.Equal(&pyr))
	v = randomPoint(pool.InVars, 5)
	gpv, err := gp.Eval(v)
	require.NoError(t, err)
	av := pool.Wiring.AddEval(eqR, poly.EqTable(v))
	require.True(t, gpv.Equal(&av))
}
