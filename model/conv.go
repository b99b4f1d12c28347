package model

import "fmt"

// Convolution is a valid cross-correlation of a [C, H, W] input with an
// [O, C, KH, KW] kernel, followed by a per-channel bias.
type Convolution struct {
	Kernel  Tensor `cbor:"kernel"`
	Bias    Tensor `cbor:"bias"`
	Stride  int    `cbor:"stride"`
	OutBits int    `cbor:"out_bits"`
}

func (c *Convolution) Kind() Kind { return KindConvolution }
func (c *Convolution) isLayer()   {}

// Dims returns the output channels, input channels and kernel height and
// width.
func (c *Convolution) Dims() (o, ch, kh, kw int) {
	s := c.Kernel.Shape
	return s[0], s[1], s[2], s[3]
}

func (c *Convolution) validate() error {
	if len(c.Kernel.Shape) != 4 {
		return shapeErr(KindConvolution, "kernel must have rank 4, got shape %v", c.Kernel.Shape)
	}
	if len(c.Bias.Shape) != 1 || c.Bias.Shape[0] != c.Kernel.Shape[0] {
		return shapeErr(KindConvolution, "bias shape %v does not match %d output channels", c.Bias.Shape, c.Kernel.Shape[0])
	}
	if c.Stride <= 0 {
		return shapeErr(KindConvolution, "non-positive stride %d", c.Stride)
	}
	if err := c.Kernel.Validate(); err != nil {
		return err
	}
	return c.Bias.Validate()
}

func (c *Convolution) OutputShape(in []int) ([]int, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if err := checkRank(KindConvolution, in, 3); err != nil {
		return nil, err
	}
	o, ch, kh, kw := c.Dims()
	if in[0] != ch {
		return nil, shapeErr(KindConvolution, "input has %d channels, kernel expects %d", in[0], ch)
	}
	if in[1] < kh || in[2] < kw {
		return nil, shapeErr(KindConvolution, "kernel %dx%d larger than input %dx%d", kh, kw, in[1], in[2])
	}
	return []int{o, (in[1]-kh)/c.Stride + 1, (in[2]-kw)/c.Stride + 1}, nil
}

func (c *Convolution) OutputBits(int) (int, error) {
	if c.OutBits <= 0 || c.OutBits > MaxBits {
		return 0, rangeErr(KindConvolution, "declared output width %d outside [1, %d]", c.OutBits, MaxBits)
	}
	return c.OutBits, nil
}

func (c *Convolution) PadValue(int64) int64 { return 0 }

// AccumulatorBound returns the largest magnitude an output can reach for
// inputs bounded by inAbs in magnitude.
func (c *Convolution) AccumulatorBound(inAbs int64) (int64, error) {
	if c.Kernel.Data == nil || c.Bias.Data == nil {
		return 0, nil
	}
	o, ch, kh, kw := c.Dims()
	per := ch * kh * kw
	var bound int64
	for oc := 0; oc < o; oc++ {
		acc := abs(c.Bias.Data[oc])
		var ok bool
		for _, k := range c.Kernel.Data[oc*per : (oc+1)*per] {
			if acc, ok = mulAddChecked(acc, abs(k), inAbs); !ok {
				return 0, rangeErr(KindConvolution, "accumulator overflows int64 at channel %d", oc)
			}
		}
		if acc > bound {
			bound = acc
		}
	}
	return bound, nil
}

// BroadcastBias returns the bias repeated over the plane of every output
// channel, laid out like the flattened output.
func (c *Convolution) BroadcastBias(plane int) []int64 {
	o, _, _, _ := c.Dims()
	res := make([]int64, o*plane)
	for oc := 0; oc < o; oc++ {
		for p := 0; p < plane; p++ {
			res[oc*plane+p] = c.Bias.Data[oc]
		}
	}
	return res
}

func (c *Convolution) Public() Layer {
	return &Convolution{Kernel: c.Kernel.Public(), Bias: c.Bias.Public(), Stride: c.Stride, OutBits: c.OutBits}
}

func (c *Convolution) Describe() string {
	o, ch, kh, kw := c.Dims()
	return fmt.Sprintf("Conv: %d->%d channels, kernel %dx%d, stride %d", ch, o, kh, kw, c.Stride)
}
