// Package field lifts quantized integers into the bn254 scalar field and
// back.
package field

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/leopardracer/deep-prove/utils"
)

var ScalarField = fr.Modulus()

var halfField = new(big.Int).Rsh(fr.Modulus(), 1)

func FromInt64(x int64) fr.Element {
	var e fr.Element
	e.SetInt64(x)
	return e
}

func FromInt64s(xs []int64) []fr.Element {
	res := make([]fr.Element, len(xs))
	utils.Parallelize(len(xs), func(start, end int) {
		for i := start; i < end; i++ {
			res[i].SetInt64(xs[i])
		}
	})
	return res
}

// FromInt64sPadded lifts xs into a table of length 2^Log2Ceil(len(xs)) whose
// tail is filled with pad.
func FromInt64sPadded(xs []int64, pad int64) []fr.Element {
	n := utils.NextPowerOfTwo(len(xs))
	res := make([]fr.Element, n)
	utils.Parallelize(n, func(start, end int) {
		for i := start; i < end; i++ {
			if i < len(xs) {
				res[i].SetInt64(xs[i])
			} else {
				res[i].SetInt64(pad)
			}
		}
	})
	return res
}

// ToInt64 reads e as a signed integer, mapping the upper half of the field
// to negative values. ok is false when the value does not fit an int64.
func ToInt64(e *fr.Element) (x int64, ok bool) {
	b := e.BigInt(new(big.Int))
	if b.Cmp(halfField) > 0 {
		b.Sub(b, ScalarField)
	}
	if !b.IsInt64() {
		return 0, false
	}
	return b.Int64(), true
}

// Pow2 returns 2^k.
func Pow2(k int) fr.Element {
	var e fr.Element
	e.SetBigInt(new(big.Int).Lsh(big.NewInt(1), uint(k)))
	return e
}

// Powers returns [1, x, x^2, ..., x^(n-1)].
func Powers(x fr.Element, n int) []fr.Element {
	res := make([]fr.Element, n)
	if n == 0 {
		return res
	}
	res[0].SetOne()
	for i := 1; i < n; i++ {
		res[i].Mul(&res[i-1], &x)
	}
	return res
}

func Sum(xs []fr.Element) fr.Element {
	var s fr.Element
	for i := range xs {
		s.Add(&s, &xs[i])
	}
	return s
}

// InnerProduct returns sum a_i * b_i over the common prefix of a and b.
func InnerProduct(a, b []fr.Element) fr.Element {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return utils.MapReduce(n, func(start, end int) fr.Element {
		var s, t fr.Element
		for i := start; i < end; i++ {
			t.Mul(&a[i], &b[i])
			s.Add(&s, &t)
		}
		return s
	}, func(acc *fr.Element, part fr.Element) {
		acc.Add(acc, &part)
	})
}
