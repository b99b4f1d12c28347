package test

import (
	"math/rand"

	"github.com/leopardracer/deep-prove/model"
)

type randomModelConfig struct {
	seed       int
	nbDense    randRange
	width      randRange
	channels   randRange
	spatial    randRange
	inputBits  int
	weightBits int
	afterBits  randRange
	// percentages, cumulative like the layer kind draws below
	convPercent int
	poolPercent int
	actPercent  int
}

type randRange struct {
	l int
	r int
}

func (rr *randRange) sample(r *rand.Rand) int {
	return r.Intn(rr.r-rr.l+1) + rr.l
}

type randomModelGenerator struct {
	conf  *randomModelConfig
	rand  *rand.Rand
	shape []int
}

func newRandomModelGenerator(conf *randomModelConfig) *randomModelGenerator {
	return &randomModelGenerator{
		conf: conf,
		rand: rand.New(rand.NewSource(int64(conf.seed))),
	}
}

func (g *randomModelGenerator) values(n, bits int) []int64 {
	lo := int64(1) << (bits - 1)
	res := make([]int64, n)
	for i := range res {
		res[i] = g.rand.Int63n(2*lo) - lo
	}
	return res
}

func (g *randomModelGenerator) tensor(shape []int) model.Tensor {
	return model.NewTensor(shape, g.values(model.ShapeLen(shape), g.conf.weightBits), g.conf.weightBits)
}

// activation appends a random activation to b, whose current output is
// bits wide.
func (g *randomModelGenerator) activation(b *model.Builder, bits int) {
	if g.rand.Intn(100) >= g.conf.actPercent {
		return
	}
	switch g.rand.Intn(3) {
	case 0:
		b.ReLU()
	case 1:
		lo := g.rand.Int63n(4) - 3
		b.Clip(lo, lo+g.rand.Int63n(5))
	default:
		b.Table(g.values(1<<bits, 4))
	}
}

// model generates a random quantized network. The generation is
// deterministic given the seed.
func (g *randomModelGenerator) model() (*model.Model, error) {
	conf := g.conf
	var b *model.Builder
	var n int
	if g.rand.Intn(100) < conf.convPercent {
		c, h, w := conf.channels.sample(g.rand), conf.spatial.sample(g.rand), conf.spatial.sample(g.rand)
		g.shape = []int{c, h, w}
		b = model.NewBuilder(g.shape, conf.inputBits)
		o, k, stride := conf.channels.sample(g.rand), 2+g.rand.Intn(2), 1+g.rand.Intn(2)
		after := conf.afterBits.sample(g.rand)
		b.Conv(g.tensor([]int{o, c, k, k}), g.tensor([]int{o}), stride, model.WithRequant(after))
		g.activation(b, after)
		oh, ow := (h-k)/stride+1, (w-k)/stride+1
		if oh >= 2 && ow >= 2 && g.rand.Intn(100) < conf.poolPercent {
			b.Pool(2, 1)
			oh, ow = oh-1, ow-1
		}
		b.Flatten()
		n = o * oh * ow
	} else {
		n = conf.width.sample(g.rand)
		g.shape = []int{n}
		b = model.NewBuilder(g.shape, conf.inputBits)
	}
	nbDense := conf.nbDense.sample(g.rand)
	for i := 0; i < nbDense; i++ {
		rows := conf.width.sample(g.rand)
		after := conf.afterBits.sample(g.rand)
		b.Dense(g.tensor([]int{rows, n}), g.tensor([]int{rows}), model.WithRequant(after))
		if i < nbDense-1 {
			g.activation(b, after)
		}
		n = rows
	}
	return b.Build()
}

// input draws an input of the generated model's shape.
func (g *randomModelGenerator) input(m *model.Model) model.Tensor {
	return model.NewTensor(m.InputShape, g.values(model.ShapeLen(m.InputShape), m.InputBits), m.InputBits)
}
