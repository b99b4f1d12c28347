// Package witness replays quantized inference and records the input and
// output of every layer.
package witness

import (
	"fmt"

	"github.com/consensys/gnark/logger"

	"github.com/leopardracer/deep-prove/field"
	"github.com/leopardracer/deep-prove/model"
	"github.com/leopardracer/deep-prove/poly"
	"github.com/leopardracer/deep-prove/utils"
	"github.com/leopardracer/deep-prove/zkerr"
)

type Step struct {
	Input  model.Tensor
	Output model.Tensor
}

// Trace holds one step per layer and the boundaries they were checked
// against. It is never modified once returned.
type Trace struct {
	Steps      []Step
	Boundaries []model.Boundary
}

func (t *Trace) Input() model.Tensor {
	return t.Steps[0].Input
}

func (t *Trace) Output() model.Tensor {
	return t.Steps[len(t.Steps)-1].Output
}

// Tensor returns the tensor at boundary k: the input of layer k, or the
// model output for k = len(Steps).
func (t *Trace) Tensor(k int) model.Tensor {
	if k == len(t.Steps) {
		return t.Output()
	}
	return t.Steps[k].Input
}

// Table returns the table of boundary k, padded with the boundary's pad
// value.
func (t *Trace) Table(k int) poly.MLE {
	return field.FromInt64sPadded(t.Tensor(k).Data, t.Boundaries[k].Pad)
}

// Execute runs m on input. Shapes are checked against the model
// boundaries and every value against its declared width.
func Execute(m *model.Model, input model.Tensor) (*Trace, error) {
	bs, err := m.Boundaries()
	if err != nil {
		return nil, err
	}
	if !model.ShapeEqual(input.Shape, m.InputShape) {
		return nil, zkerr.Shape("input shape %v, model expects %v", input.Shape, m.InputShape)
	}
	if len(input.Data) != input.Len() {
		return nil, zkerr.Shape("input shape %v holds %d values, got %d", input.Shape, input.Len(), len(input.Data))
	}
	cur := input.Clone()
	cur.Quant.Bits = m.InputBits
	if err := cur.Validate(); err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}

	log := logger.Logger()
	trace := &Trace{Steps: make([]Step, len(m.Layers)), Boundaries: bs}
	for i, l := range m.Layers {
		out, err := execLayer(l, cur)
		if err != nil {
			return nil, &zkerr.LayerError{Layer: i, Err: err}
		}
		want := bs[i+1]
		if !model.ShapeEqual(out.Shape, want.Shape) {
			return nil, &zkerr.LayerError{Layer: i, Err: zkerr.Shape("output shape %v, declared %v", out.Shape, want.Shape)}
		}
		out.Quant = model.Quant{Scale: 1, Bits: want.Bits}
		if err := out.Validate(); err != nil {
			return nil, &zkerr.LayerError{Layer: i, Err: err}
		}
		trace.Steps[i] = Step{Input: cur, Output: out}
		log.Debug().Int("layer", i).Str("kind", l.Kind().String()).Ints("shape", out.Shape).Msg("executed")
		cur = out
	}
	return trace, nil
}

func execLayer(l model.Layer, in model.Tensor) (model.Tensor, error) {
	switch l := l.(type) {
	case *model.Dense:
		return dense(l, in), nil
	case *model.Convolution:
		return conv(l, in), nil
	case *model.Pool:
		return pool(l, in), nil
	case *model.Activation:
		return mapValues(in, l.Eval)
	case *model.Requantize:
		return mapValues(in, l.Apply)
	case *model.Flatten:
		return model.Tensor{Shape: []int{in.Len()}, Data: append([]int64(nil), in.Data...)}, nil
	}
	return model.Tensor{}, zkerr.Shape("unsupported layer %T", l)
}

func dense(d *model.Dense, in model.Tensor) model.Tensor {
	rows, cols := d.Rows(), d.Cols()
	out := make([]int64, rows)
	utils.Parallelize(rows, func(start, end int) {
		for i := start; i < end; i++ {
			acc := d.Bias.Data[i]
			w := d.Weights.Data[i*cols : (i+1)*cols]
			for j, x := range in.Data {
				acc += w[j] * x
			}
			out[i] = acc
		}
	})
	return model.Tensor{Shape: []int{rows}, Data: out}
}

func conv(c *model.Convolution, in model.Tensor) model.Tensor {
	o, ch, kh, kw := c.Dims()
	h, w := in.Shape[1], in.Shape[2]
	oh, ow := (h-kh)/c.Stride+1, (w-kw)/c.Stride+1
	out := make([]int64, o*oh*ow)
	utils.Parallelize(o*oh, func(start, end int) {
		for row := start; row < end; row++ {
			oc, y := row/oh, row%oh
			for x := 0; x < ow; x++ {
				acc := c.Bias.Data[oc]
				for ic := 0; ic < ch; ic++ {
					for i := 0; i < kh; i++ {
						for j := 0; j < kw; j++ {
							k := c.Kernel.Data[((oc*ch+ic)*kh+i)*kw+j]
							acc += k * in.Data[(ic*h+y*c.Stride+i)*w+x*c.Stride+j]
						}
					}
				}
				out[(oc*oh+y)*ow+x] = acc
			}
		}
	})
	return model.Tensor{Shape: []int{o, oh, ow}, Data: out}
}

func pool(p *model.Pool, in model.Tensor) model.Tensor {
	ch, h, w := in.Shape[0], in.Shape[1], in.Shape[2]
	oh, ow := (h-p.Size)/p.Stride+1, (w-p.Size)/p.Stride+1
	out := make([]int64, ch*oh*ow)
	utils.Parallelize(ch*oh, func(start, end int) {
		for row := start; row < end; row++ {
			c, y := row/oh, row%oh
			for x := 0; x < ow; x++ {
				var acc int64
				for i := 0; i < p.Size; i++ {
					for j := 0; j < p.Size; j++ {
						acc += in.Data[(c*h+y*p.Stride+i)*w+x*p.Stride+j]
					}
				}
				out[(c*oh+y)*ow+x] = acc
			}
		}
	})
	return model.Tensor{Shape: []int{ch, oh, ow}, Data: out}
}

func mapValues(in model.Tensor, f func(int64) (int64, error)) (model.Tensor, error) {
	out := make([]int64, len(in.Data))
	err := utils.ParallelizeErr(len(in.Data), func(start, end int) error {
		for i := start; i < end; i++ {
			y, err := f(in.Data[i])
			if err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = y
		}
		return nil
	})
	if err != nil {
		return model.Tensor{}, err
	}
	return model.Tensor{Shape: append([]int(nil), in.Shape...), Data: out}, nil
}
