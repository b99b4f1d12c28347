package model

import (
	"fmt"

	"github.com/leopardracer/deep-prove/utils"
)

// Dense computes y = W x + b for W of shape [m, n].
type Dense struct {
	Weights Tensor `cbor:"weights"`
	Bias    Tensor `cbor:"bias"`
	OutBits int    `cbor:"out_bits"`
}

func (d *Dense) Kind() Kind { return KindDense }
func (d *Dense) isLayer()   {}

func (d *Dense) Rows() int { return d.Weights.Shape[0] }
func (d *Dense) Cols() int { return d.Weights.Shape[1] }

func (d *Dense) validate() error {
	if len(d.Weights.Shape) != 2 {
		return shapeErr(KindDense, "weights must be a matrix, got shape %v", d.Weights.Shape)
	}
	if len(d.Bias.Shape) != 1 || d.Bias.Shape[0] != d.Rows() {
		return shapeErr(KindDense, "bias shape %v does not match %d rows", d.Bias.Shape, d.Rows())
	}
	if err := d.Weights.Validate(); err != nil {
		return err
	}
	return d.Bias.Validate()
}

func (d *Dense) OutputShape(in []int) ([]int, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	if err := checkRank(KindDense, in, 1); err != nil {
		return nil, err
	}
	if in[0] != d.Cols() {
		return nil, shapeErr(KindDense, "input of length %d for %d columns", in[0], d.Cols())
	}
	return []int{d.Rows()}, nil
}

func (d *Dense) OutputBits(int) (int, error) {
	if d.OutBits <= 0 || d.OutBits > MaxBits {
		return 0, rangeErr(KindDense, "declared output width %d outside [1, %d]", d.OutBits, MaxBits)
	}
	return d.OutBits, nil
}

func (d *Dense) PadValue(int64) int64 { return 0 }

// AccumulatorBound returns the largest magnitude an output can reach for
// inputs bounded by inAbs in magnitude.
func (d *Dense) AccumulatorBound(inAbs int64) (int64, error) {
	if d.Weights.Data == nil || d.Bias.Data == nil {
		return 0, nil
	}
	var bound int64
	n := d.Cols()
	for i := 0; i < d.Rows(); i++ {
		acc := abs(d.Bias.Data[i])
		var ok bool
		for j := 0; j < n; j++ {
			if acc, ok = mulAddChecked(acc, abs(d.Weights.Data[i*n+j]), inAbs); !ok {
				return 0, rangeErr(KindDense, "accumulator overflows int64 at row %d", i)
			}
		}
		if acc > bound {
			bound = acc
		}
	}
	return bound, nil
}

func (d *Dense) Public() Layer {
	return &Dense{Weights: d.Weights.Public(), Bias: d.Bias.Public(), OutBits: d.OutBits}
}

func (d *Dense) Describe() string {
	return fmt.Sprintf("Dense: %dx%d", d.Rows(), d.Cols())
}

// WeightTable returns the weight matrix laid out row-major with both
// dimensions padded to powers of two.
func (d *Dense) WeightTable() (rows, cols int, data []int64) {
	rows = utils.NextPowerOfTwo(d.Rows())
	cols = utils.NextPowerOfTwo(d.Cols())
	data = make([]int64, rows*cols)
	for i := 0; i < d.Rows(); i++ {
		copy(data[i*cols:i*cols+d.Cols()], d.Weights.Data[i*d.Cols():(i+1)*d.Cols()])
	}
	return rows, cols, data
}
