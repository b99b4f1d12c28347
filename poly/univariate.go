package poly

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Univariate is a polynomial given by its coefficients, lowest degree first.
type Univariate []fr.Element

func (p Univariate) Eval(x *fr.Element) fr.Element {
	var res fr.Element
	for i := len(p) - 1; i >= 0; i-- {
		res.Mul(&res, x)
		res.Add(&res, &p[i])
	}
	return res
}

// SumOverBoolean returns p(0) + p(1).
func (p Univariate) SumOverBoolean() fr.Element {
	var res fr.Element
	if len(p) == 0 {
		return res
	}
	for i := range p {
		res.Add(&res, &p[i])
	}
	res.Add(&res, &p[0])
	return res
}

// Interpolate returns the coefficients of the unique polynomial of degree
// len(evals)-1 taking evals[k] at x = k.
func Interpolate(evals []fr.Element) Univariate {
	n := len(evals)
	res := make(Univariate, n)
	basis := make([]fr.Element, n)
	for k := 0; k < n; k++ {
		if evals[k].IsZero() {
			continue
		}
		// basis <- prod_{j != k} (X - j) / (k - j)
		for i := range basis {
			basis[i].SetZero()
		}
		basis[0].SetOne()
		deg := 0
		var denom fr.Element
		denom.SetOne()
		for j := 0; j < n; j++ {
			if j == k {
				continue
			}
			var negJ, diff fr.Element
			negJ.SetInt64(int64(-j))
			for i := deg + 1; i > 0; i-- {
				var t fr.Element
				t.Mul(&basis[i], &negJ)
				basis[i].Add(&t, &basis[i-1])
			}
			basis[0].Mul(&basis[0], &negJ)
			deg++
			diff.SetInt64(int64(k - j))
			denom.Mul(&denom, &diff)
		}
		var scale fr.Element
		scale.Inverse(&denom)
		scale.Mul(&scale, &evals[k])
		for i := 0; i < n; i++ {
			var t fr.Element
			t.Mul(&basis[i], &scale)
			res[i].Add(&res[i], &t)
		}
	}
	return res
}
