package test

import (
	"fmt"

	"github.com/leopardracer/deep-prove/model"
)

// Eval runs m on input with plain loops, one value at a time. It is the
// reference the witness executor is checked against.
func Eval(m *model.Model, input []int64) ([]int64, error) {
	cur := append([]int64(nil), input...)
	shape := append([]int(nil), m.InputShape...)
	for i, l := range m.Layers {
		next, err := applyLayer(l, shape, cur)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if shape, err = l.OutputShape(shape); err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func applyLayer(l model.Layer, shape []int, cur []int64) ([]int64, error) {
	switch l := l.(type) {
	case *model.Dense:
		rows, cols := l.Rows(), l.Cols()
		next := make([]int64, rows)
		for i := 0; i < rows; i++ {
			next[i] = l.Bias.Data[i]
			for j := 0; j < cols; j++ {
				next[i] += l.Weights.Data[i*cols+j] * cur[j]
			}
		}
		return next, nil
	case *model.Convolution:
		o, ch, kh, kw := l.Dims()
		h, w := shape[1], shape[2]
		oh, ow := (h-kh)/l.Stride+1, (w-kw)/l.Stride+1
		next := make([]int64, o*oh*ow)
		for oc := 0; oc < o; oc++ {
			for y := 0; y < oh; y++ {
				for x := 0; x < ow; x++ {
					acc := l.Bias.Data[oc]
					for ic := 0; ic < ch; ic++ {
						for i := 0; i < kh; i++ {
							for j := 0; j < kw; j++ {
								acc += l.Kernel.Data[((oc*ch+ic)*kh+i)*kw+j] * cur[(ic*h+y*l.Stride+i)*w+x*l.Stride+j]
							}
						}
					}
					next[(oc*oh+y)*ow+x] = acc
				}
			}
		}
		return next, nil
	case *model.Pool:
		ch, h, w := shape[0], shape[1], shape[2]
		oh, ow := (h-l.Size)/l.Stride+1, (w-l.Size)/l.Stride+1
		next := make([]int64, ch*oh*ow)
		for c := 0; c < ch; c++ {
			for y := 0; y < oh; y++ {
				for x := 0; x < ow; x++ {
					for i := 0; i < l.Size; i++ {
						for j := 0; j < l.Size; j++ {
							next[(c*oh+y)*ow+x] += cur[(c*h+y*l.Stride+i)*w+x*l.Stride+j]
						}
					}
				}
			}
		}
		return next, nil
	case *model.Activation:
		return mapEach(cur, l.Eval)
	case *model.Requantize:
		return mapEach(cur, l.Apply)
	case *model.Flatten:
		return cur, nil
	}
	return nil, fmt.Errorf("unsupported layer %T", l)
}

func mapEach(cur []int64, f func(int64) (int64, error)) ([]int64, error) {
	next := make([]int64, len(cur))
	for i, x := range cur {
		y, err := f(x)
		if err != nil {
			return nil, err
		}
		next[i] = y
	}
	return next, nil
}
