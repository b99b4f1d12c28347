package model

import (
	"fmt"
	"math/bits"
)

// Requantize scales accumulators back to AfterBits bits:
//
//	res = ((e + 2*Range) >> RightShift) - ((2*Range) >> RightShift)
//
// The discarded low bits are split in chunks of AfterBits bits so that every
// column of the decomposition is range checked against [0, 2^AfterBits).
type Requantize struct {
	RightShift int   `cbor:"right_shift"`
	Range      int64 `cbor:"range"`
	AfterBits  int   `cbor:"after_bits"`
}

// RequantFor returns the requantization of accumulators bounded by bound in
// magnitude to afterBits bits.
func RequantFor(bound int64, afterBits int) *Requantize {
	shift := bits.Len64(uint64(abs(bound))) - afterBits + 2
	if shift < 1 {
		shift = 1
	}
	return &Requantize{RightShift: shift, Range: abs(bound), AfterBits: afterBits}
}

func (r *Requantize) Kind() Kind { return KindRequantize }
func (r *Requantize) isLayer()   {}

func (r *Requantize) validate() error {
	if r.AfterBits < 2 || r.AfterBits > MaxLookupBits {
		return rangeErr(KindRequantize, "output width %d outside [2, %d]", r.AfterBits, MaxLookupBits)
	}
	if r.RightShift < 1 || r.RightShift > MaxBits {
		return rangeErr(KindRequantize, "shift %d outside [1, %d]", r.RightShift, MaxBits)
	}
	if r.Range < 0 || r.Range >= int64(1)<<(MaxBits-1) {
		return rangeErr(KindRequantize, "range %d outside [0, 2^%d)", r.Range, MaxBits-1)
	}
	return nil
}

func (r *Requantize) MaxBit() int64 { return r.Range << 1 }

// Sub is the offset removed after the shift.
func (r *Requantize) Sub() int64 { return r.MaxBit() >> r.RightShift }

// NumChunks returns how many AfterBits-wide chunks hold the discarded bits.
func (r *Requantize) NumChunks() int {
	return (r.RightShift + r.AfterBits - 1) / r.AfterBits
}

// TopSlack is the number of unused bits of the most significant chunk.
func (r *Requantize) TopSlack() int {
	return r.NumChunks()*r.AfterBits - r.RightShift
}

// Apply requantizes e.
func (r *Requantize) Apply(e int64) (int64, error) {
	shifted := e + r.MaxBit()
	if shifted < 0 {
		return 0, rangeErr(KindRequantize, "value %d below -%d", e, r.MaxBit())
	}
	res := (shifted >> r.RightShift) - r.Sub()
	lo := -(int64(1) << (r.AfterBits - 1))
	if res < lo || res > -lo-1 {
		return 0, rangeErr(KindRequantize, "value %d requantizes to %d, outside %d bits", e, res, r.AfterBits)
	}
	return res, nil
}

// Decompose returns the requantized value of e and the discarded low bits
// in chunks, least significant first.
func (r *Requantize) Decompose(e int64) (int64, []int64, error) {
	res, err := r.Apply(e)
	if err != nil {
		return 0, nil, err
	}
	low := (e + r.MaxBit()) & (int64(1)<<r.RightShift - 1)
	mask := int64(1)<<r.AfterBits - 1
	chunks := make([]int64, r.NumChunks())
	for k := range chunks {
		chunks[k] = low & mask
		low >>= r.AfterBits
	}
	return res, chunks, nil
}

func (r *Requantize) OutputShape(in []int) ([]int, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	if err := checkRank(KindRequantize, in, len(in)); err != nil {
		return nil, err
	}
	return append([]int(nil), in...), nil
}

func (r *Requantize) OutputBits(inBits int) (int, error) {
	if err := r.validate(); err != nil {
		return 0, err
	}
	return r.AfterBits, nil
}

// PadValue returns the requantized pad. Pads that do not requantize are
// rejected when the model boundaries are computed.
func (r *Requantize) PadValue(in int64) int64 {
	y, _ := r.Apply(in)
	return y
}

func (r *Requantize) Public() Layer {
	q := *r
	return &q
}

func (r *Requantize) Describe() string {
	return fmt.Sprintf("Requant: shift %d, range %d, %d bits", r.RightShift, r.Range, r.AfterBits)
}
