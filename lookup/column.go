package lookup

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/leopardracer/deep-prove/field"
	"github.com/leopardracer/deep-prove/poly"
	"github.com/leopardracer/deep-prove/utils"
)

// Term is Coeff times base table Base.
type Term struct {
	Base  int
	Coeff int64
}

// Form is Const plus a linear combination of base tables.
type Form struct {
	Const int64
	Terms []Term
}

// Var is the form reading base table i unchanged.
func Var(i int) Form {
	return Form{Terms: []Term{{Base: i, Coeff: 1}}}
}

func (f Form) eval(bases [][]int64, i int) int64 {
	v := f.Const
	for _, t := range f.Terms {
		v += t.Coeff * bases[t.Base][i]
	}
	return v
}

// Column is a looked-up column. Output is only set for paired tables.
type Column struct {
	Input  Form
	Output *Form
}

// linear is a column after the pair is folded with beta:
// Const + sum Coeffs[q]*base_q.
type linear struct {
	Const  fr.Element
	Coeffs []fr.Element
}

func fold(c Column, beta fr.Element, nbBases int) linear {
	res := linear{Coeffs: make([]fr.Element, nbBases)}
	res.Const = field.FromInt64(c.Input.Const)
	for _, t := range c.Input.Terms {
		v := field.FromInt64(t.Coeff)
		res.Coeffs[t.Base].Add(&res.Coeffs[t.Base], &v)
	}
	if c.Output != nil {
		v := field.FromInt64(c.Output.Const)
		v.Mul(&v, &beta)
		res.Const.Add(&res.Const, &v)
		for _, t := range c.Output.Terms {
			v = field.FromInt64(t.Coeff)
			v.Mul(&v, &beta)
			res.Coeffs[t.Base].Add(&res.Coeffs[t.Base], &v)
		}
	}
	return res
}

func (l *linear) eval(values []fr.Element) fr.Element {
	res := l.Const
	var t fr.Element
	for q := range l.Coeffs {
		if l.Coeffs[q].IsZero() {
			continue
		}
		t.Mul(&l.Coeffs[q], &values[q])
		res.Add(&res, &t)
	}
	return res
}

// table returns the column values over the hypercube.
func (l *linear) table(bases []poly.MLE) poly.MLE {
	n := len(bases[0])
	res := make(poly.MLE, n)
	utils.Parallelize(n, func(start, end int) {
		var t fr.Element
		for i := start; i < end; i++ {
			res[i] = l.Const
			for q := range l.Coeffs {
				if l.Coeffs[q].IsZero() {
					continue
				}
				t.Mul(&l.Coeffs[q], &bases[q][i])
				res[i].Add(&res[i], &t)
			}
		}
	})
	return res
}
