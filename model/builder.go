package model

import (
	"fmt"

	"github.com/leopardracer/deep-prove/zkerr"
)

type layerConfig struct {
	requantBits int
	outBits     int
}

type LayerOption func(*layerConfig)

// WithRequant follows the layer with a Requantize layer scaling its
// accumulators down to afterBits bits.
func WithRequant(afterBits int) LayerOption {
	return func(c *layerConfig) {
		c.requantBits = afterBits
	}
}

// WithOutBits declares the output width of the layer instead of deriving it
// from the parameters.
func WithOutBits(bits int) LayerOption {
	return func(c *layerConfig) {
		c.outBits = bits
	}
}

// Builder assembles a model layer by layer, tracking the shape and the
// magnitude bound of the running tensor. The first error is kept and
// returned by Build.
type Builder struct {
	m     Model
	shape []int
	bits  int
	bound int64
	err   error
}

func NewBuilder(inputShape []int, inputBits int) *Builder {
	b := &Builder{
		m:     Model{InputShape: append([]int(nil), inputShape...), InputBits: inputBits},
		shape: append([]int(nil), inputShape...),
		bits:  inputBits,
	}
	if inputBits <= 0 || inputBits > MaxBits {
		b.err = zkerr.Range("input width %d outside [1, %d]", inputBits, MaxBits)
		return b
	}
	b.bound = int64(1) << (inputBits - 1)
	return b
}

func (b *Builder) push(l Layer) {
	if b.err != nil {
		return
	}
	shape, err := l.OutputShape(b.shape)
	if err != nil {
		b.err = fmt.Errorf("layer %d: %w", len(b.m.Layers), err)
		return
	}
	bits, err := l.OutputBits(b.bits)
	if err != nil {
		b.err = fmt.Errorf("layer %d: %w", len(b.m.Layers), err)
		return
	}
	b.m.Layers = append(b.m.Layers, l)
	b.shape = shape
	b.bits = bits
	if l.Kind() != KindFlatten {
		b.bound = int64(1) << (bits - 1)
	}
}

// pushAccumulating adds a Dense or Convolution layer whose accumulators are
// bounded by bound, lowering the requantization option if present.
func (b *Builder) pushAccumulating(l Layer, bound int64, outBits *int, opts []LayerOption) {
	var cfg layerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	*outBits = cfg.outBits
	if *outBits == 0 {
		*outBits = BitsFor(bound)
	}
	b.push(l)
	if b.err != nil {
		return
	}
	b.bound = bound
	if cfg.requantBits > 0 {
		b.push(RequantFor(bound, cfg.requantBits))
	}
}

func (b *Builder) Dense(weights, bias Tensor, opts ...LayerOption) *Builder {
	if b.err != nil {
		return b
	}
	d := &Dense{Weights: weights, Bias: bias}
	if err := d.validate(); err != nil {
		b.err = fmt.Errorf("layer %d: %w", len(b.m.Layers), err)
		return b
	}
	bound, err := d.AccumulatorBound(b.bound)
	if err != nil {
		b.err = fmt.Errorf("layer %d: %w", len(b.m.Layers), err)
		return b
	}
	b.pushAccumulating(d, bound, &d.OutBits, opts)
	return b
}

func (b *Builder) Conv(kernel, bias Tensor, stride int, opts ...LayerOption) *Builder {
	if b.err != nil {
		return b
	}
	c := &Convolution{Kernel: kernel, Bias: bias, Stride: stride}
	if err := c.validate(); err != nil {
		b.err = fmt.Errorf("layer %d: %w", len(b.m.Layers), err)
		return b
	}
	bound, err := c.AccumulatorBound(b.bound)
	if err != nil {
		b.err = fmt.Errorf("layer %d: %w", len(b.m.Layers), err)
		return b
	}
	b.pushAccumulating(c, bound, &c.OutBits, opts)
	return b
}

func (b *Builder) Pool(size, stride int) *Builder {
	b.push(&Pool{Size: size, Stride: stride})
	return b
}

func (b *Builder) ReLU() *Builder {
	b.push(ReLU(b.bits))
	return b
}

func (b *Builder) Clip(lo, hi int64) *Builder {
	b.push(Clip(b.bits, lo, hi))
	return b
}

func (b *Builder) Table(table []int64) *Builder {
	b.push(TableActivation(b.bits, table))
	return b
}

func (b *Builder) Requantize(r *Requantize) *Builder {
	b.push(r)
	return b
}

func (b *Builder) Flatten() *Builder {
	b.push(&Flatten{})
	return b
}

func (b *Builder) Build() (*Model, error) {
	if b.err != nil {
		return nil, b.err
	}
	m := b.m
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
