// Package model is the quantized model IR consumed by the executor, the
// arithmetizer and the proving engines.
package model

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/leopardracer/deep-prove/zkerr"
)

// MaxBits bounds every declared bit-width so that values and accumulators
// stay inside int64.
const MaxBits = 62

// Quant describes how a tensor's integers map to real values. Only Bits
// takes part in the arithmetic; Scale and ZeroPoint are carried for
// dequantization.
type Quant struct {
	Scale     int64 `cbor:"scale"`
	ZeroPoint int64 `cbor:"zero_point"`
	Bits      int   `cbor:"bits"`
}

// Min returns the smallest value of the signed range.
func (q Quant) Min() int64 {
	return -(int64(1) << (q.Bits - 1))
}

// Max returns the largest value of the signed range.
func (q Quant) Max() int64 {
	return int64(1)<<(q.Bits-1) - 1
}

func (q Quant) Contains(x int64) bool {
	return x >= q.Min() && x <= q.Max()
}

// Dequantize maps x back to a real value. A zero scale is read as 1.
func (q Quant) Dequantize(x int64) float64 {
	scale := q.Scale
	if scale == 0 {
		scale = 1
	}
	return float64(x-q.ZeroPoint) / float64(scale)
}

// BitsFor returns the signed width needed to hold every value in
// [-bound, bound].
func BitsFor(bound int64) int {
	if bound < 0 {
		bound = -bound
	}
	return bits.Len64(uint64(bound)) + 1
}

type Tensor struct {
	Shape []int   `cbor:"shape"`
	Data  []int64 `cbor:"data"`
	Quant Quant   `cbor:"quant"`
}

func NewTensor(shape []int, data []int64, bits int) Tensor {
	return Tensor{
		Shape: append([]int(nil), shape...),
		Data:  data,
		Quant: Quant{Scale: 1, Bits: bits},
	}
}

// ShapeLen returns the number of entries of a shape.
func ShapeLen(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func (t Tensor) Len() int {
	return ShapeLen(t.Shape)
}

func ShapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Validate checks that the data matches the shape and that every value
// respects the declared bit-width.
func (t Tensor) Validate() error {
	for _, d := range t.Shape {
		if d <= 0 {
			return zkerr.Shape("non-positive dimension in shape %v", t.Shape)
		}
	}
	if t.Data != nil && len(t.Data) != t.Len() {
		return zkerr.Shape("shape %v holds %d values, got %d", t.Shape, t.Len(), len(t.Data))
	}
	if t.Quant.Bits <= 0 || t.Quant.Bits > MaxBits {
		return zkerr.Range("bit-width %d outside [1, %d]", t.Quant.Bits, MaxBits)
	}
	for i, x := range t.Data {
		if !t.Quant.Contains(x) {
			return zkerr.Range("value %d at index %d exceeds %d bits", x, i, t.Quant.Bits)
		}
	}
	return nil
}

// MaxAbs returns the largest magnitude in the tensor.
func (t Tensor) MaxAbs() int64 {
	var m int64
	for _, x := range t.Data {
		if x < 0 {
			x = -x
		}
		if x > m {
			m = x
		}
	}
	return m
}

// Public returns the tensor without its values.
func (t Tensor) Public() Tensor {
	return Tensor{Shape: append([]int(nil), t.Shape...), Quant: t.Quant}
}

func (t Tensor) Clone() Tensor {
	return Tensor{
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]int64(nil), t.Data...),
		Quant: t.Quant,
	}
}

func (t Tensor) Equal(o Tensor) bool {
	if !ShapeEqual(t.Shape, o.Shape) || len(t.Data) != len(o.Data) {
		return false
	}
	for i := range t.Data {
		if t.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// Dequantize returns the real values of the tensor.
func (t Tensor) Dequantize() []float64 {
	res := make([]float64, len(t.Data))
	for i, x := range t.Data {
		res[i] = t.Quant.Dequantize(x)
	}
	return res
}

func (t Tensor) String() string {
	return fmt.Sprintf("tensor%v(%d bits)", t.Shape, t.Quant.Bits)
}

// mulAddChecked returns acc + a*b and false on int64 overflow.
func mulAddChecked(acc, a, b int64) (int64, bool) {
	if a != 0 && b != 0 {
		if a == math.MinInt64 || b == math.MinInt64 {
			return 0, false
		}
		hi, lo := bits.Mul64(uint64(abs(a)), uint64(abs(b)))
		if hi != 0 || lo > math.MaxInt64 {
			return 0, false
		}
	}
	p := a * b
	s := acc + p
	if (p > 0 && s < acc) || (p < 0 && s > acc) {
		return 0, false
	}
	return s, true
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
