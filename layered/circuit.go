package layered

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/leopardracer/deep-prove/model"
	"github.com/leopardracer/deep-prove/poly"
	"github.com/leopardracer/deep-prove/utils"
)

// Wiring is the gate structure of a Convolution or Pool layer. Tables are
// padded to powers of two; the lengths below are the padded ones.
type Wiring struct {
	InputLen  uint64
	OutputLen uint64
	KernelLen uint64
	Mul       []GateMul
	Add       []GateAdd
}

// GateMul adds kernel[In0] * in[In1] to out[Out].
type GateMul struct {
	In0 uint64
	In1 uint64
	Out uint64
}

// GateAdd adds in[In] to out[Out].
type GateAdd struct {
	In  uint64
	Out uint64
}

func pow2(n int) uint64 {
	return uint64(utils.NextPowerOfTwo(n))
}

// ConvWiring lays out the gates of c on an input of shape [C, H, W]. Output
// out = o*P + p for a plane of P = OH*OW entries, kernel index
// ((o*C + c)*KH + i)*KW + j and input index (c*H + y*S + i)*W + x*S + j.
func ConvWiring(c *model.Convolution, in []int) *Wiring {
	o, ch, kh, kw := c.Dims()
	h, w := in[1], in[2]
	oh, ow := (h-kh)/c.Stride+1, (w-kw)/c.Stride+1
	res := &Wiring{
		InputLen:  pow2(ch * h * w),
		OutputLen: pow2(o * oh * ow),
		KernelLen: pow2(o * ch * kh * kw),
		Mul:       make([]GateMul, 0, o*oh*ow*ch*kh*kw),
	}
	for oc := 0; oc < o; oc++ {
		for y := 0; y < oh; y++ {
			for x := 0; x < ow; x++ {
				out := uint64((oc*oh+y)*ow + x)
				for ic := 0; ic < ch; ic++ {
					for i := 0; i < kh; i++ {
						for j := 0; j < kw; j++ {
							res.Mul = append(res.Mul, GateMul{
								In0: uint64(((oc*ch+ic)*kh+i)*kw + j),
								In1: uint64((ic*h+y*c.Stride+i)*w + x*c.Stride + j),
								Out: out,
							})
						}
					}
				}
			}
		}
	}
	return res
}

// PoolWiring lays out the add gates of p on an input of shape [C, H, W].
func PoolWiring(p *model.Pool, in []int) *Wiring {
	ch, h, w := in[0], in[1], in[2]
	oh, ow := (h-p.Size)/p.Stride+1, (w-p.Size)/p.Stride+1
	res := &Wiring{
		InputLen:  pow2(ch * h * w),
		OutputLen: pow2(ch * oh * ow),
		Add:       make([]GateAdd, 0, ch*oh*ow*p.Size*p.Size),
	}
	for c := 0; c < ch; c++ {
		for y := 0; y < oh; y++ {
			for x := 0; x < ow; x++ {
				out := uint64((c*oh+y)*ow + x)
				for i := 0; i < p.Size; i++ {
					for j := 0; j < p.Size; j++ {
						res.Add = append(res.Add, GateAdd{
							In:  uint64((c*h+y*p.Stride+i)*w + x*p.Stride + j),
							Out: out,
						})
					}
				}
			}
		}
	}
	return res
}

// Validate checks that every gate addresses its tables in range.
func (w *Wiring) Validate() error {
	for _, n := range []uint64{w.InputLen, w.OutputLen} {
		if n == 0 || (n&(n-1)) != 0 {
			return fmt.Errorf("table length %d not power of 2", n)
		}
	}
	if len(w.Mul) > 0 && (w.KernelLen == 0 || (w.KernelLen&(w.KernelLen-1)) != 0) {
		return fmt.Errorf("kernel length %d not power of 2", w.KernelLen)
	}
	for _, m := range w.Mul {
		if m.In0 >= w.KernelLen || m.In1 >= w.InputLen || m.Out >= w.OutputLen {
			return fmt.Errorf("mul gate (%d, %d, %d) out of range", m.In0, m.In1, m.Out)
		}
	}
	for _, a := range w.Add {
		if a.In >= w.InputLen || a.Out >= w.OutputLen {
			return fmt.Errorf("add gate (%d, %d) out of range", a.In, a.Out)
		}
	}
	return nil
}

func addTables(acc *poly.MLE, part poly.MLE) {
	for i := range part {
		(*acc)[i].Add(&(*acc)[i], &part[i])
	}
}

func addElems(acc *fr.Element, part fr.Element) {
	acc.Add(acc, &part)
}

// KernelFold returns H(a) = sum over mul gates with In0 = a of
// eqOut[Out] * in[In1].
func (w *Wiring) KernelFold(eqOut, in poly.MLE) poly.MLE {
	return utils.MapReduce(len(w.Mul), func(start, end int) poly.MLE {
		res := make(poly.MLE, w.KernelLen)
		var t fr.Element
		for _, g := range w.Mul[start:end] {
			t.Mul(&eqOut[g.Out], &in[g.In1])
			res[g.In0].Add(&res[g.In0], &t)
		}
		return res
	}, addTables)
}

// InputFold returns G(b) = sum over mul gates with In1 = b of
// eqOut[Out] * eqKernel[In0].
func (w *Wiring) InputFold(eqOut, eqKernel poly.MLE) poly.MLE {
	return utils.MapReduce(len(w.Mul), func(start, end int) poly.MLE {
		res := make(poly.MLE, w.InputLen)
		var t fr.Element
		for _, g := range w.Mul[start:end] {
			t.Mul(&eqOut[g.Out], &eqKernel[g.In0])
			res[g.In1].Add(&res[g.In1], &t)
		}
		return res
	}, addTables)
}

// MulEval evaluates the multilinear extension of the mul wiring predicate
// at the points whose eq tables are given.
func (w *Wiring) MulEval(eqOut, eqKernel, eqIn poly.MLE) fr.Element {
	return utils.MapReduce(len(w.Mul), func(start, end int) fr.Element {
		var res, t fr.Element
		for _, g := range w.Mul[start:end] {
			t.Mul(&eqOut[g.Out], &eqKernel[g.In0])
			t.Mul(&t, &eqIn[g.In1])
			res.Add(&res, &t)
		}
		return res
	}, addElems)
}

// AddFold returns G(b) = sum over add gates with In = b of eqOut[Out].
func (w *Wiring) AddFold(eqOut poly.MLE) poly.MLE {
	return utils.MapReduce(len(w.Add), func(start, end int) poly.MLE {
		res := make(poly.MLE, w.InputLen)
		for _, g := range w.Add[start:end] {
			res[g.In].Add(&res[g.In], &eqOut[g.Out])
		}
		return res
	}, addTables)
}

// AddEval evaluates the multilinear extension of the add wiring predicate.
func (w *Wiring) AddEval(eqOut, eqIn poly.MLE) fr.Element {
	return utils.MapReduce(len(w.Add), func(start, end int) fr.Element {
		var res, t fr.Element
		for _, g := range w.Add[start:end] {
			t.Mul(&eqOut[g.Out], &eqIn[g.In])
			res.Add(&res, &t)
		}
		return res
	}, addElems)
}
