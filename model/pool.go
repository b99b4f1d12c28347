package model

import (
	"fmt"

	"github.com/leopardracer/deep-prove/utils"
)

// Pool sums every Size x Size window of a [C, H, W] input.
type Pool struct {
	Size   int `cbor:"size"`
	Stride int `cbor:"stride"`
}

func (p *Pool) Kind() Kind { return KindPool }
func (p *Pool) isLayer()   {}

func (p *Pool) OutputShape(in []int) ([]int, error) {
	if p.Size <= 0 || p.Stride <= 0 {
		return nil, shapeErr(KindPool, "window %d and stride %d must be positive", p.Size, p.Stride)
	}
	if err := checkRank(KindPool, in, 3); err != nil {
		return nil, err
	}
	if in[1] < p.Size || in[2] < p.Size {
		return nil, shapeErr(KindPool, "window %d larger than input %dx%d", p.Size, in[1], in[2])
	}
	return []int{in[0], (in[1]-p.Size)/p.Stride + 1, (in[2]-p.Size)/p.Stride + 1}, nil
}

// OutputBits grows the input width by the bits needed to add Size^2 values.
func (p *Pool) OutputBits(inBits int) (int, error) {
	bits := inBits + utils.Log2Ceil(p.Size*p.Size)
	if bits > MaxBits {
		return 0, rangeErr(KindPool, "output width %d exceeds %d", bits, MaxBits)
	}
	return bits, nil
}

func (p *Pool) PadValue(int64) int64 { return 0 }

func (p *Pool) Public() Layer {
	q := *p
	return &q
}

func (p *Pool) Describe() string {
	return fmt.Sprintf("SumPool: window %d, stride %d", p.Size, p.Stride)
}
