// Package poly holds multilinear extension tables over the Boolean
// hypercube and the small univariate polynomials exchanged in sumcheck
// rounds.
//
// Tables are indexed little-endian: variable k of a point selects bit k of
// the table index.
package poly

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/leopardracer/deep-prove/utils"
)

// MLE is the evaluation table of a multilinear polynomial.
type MLE []fr.Element

func (m MLE) NumVars() int {
	return utils.Log2Ceil(len(m))
}

func (m MLE) Clone() MLE {
	res := make(MLE, len(m))
	copy(res, m)
	return res
}

// Fold fixes the lowest variable to c and returns the halved table.
func (m MLE) Fold(c fr.Element) MLE {
	half := len(m) / 2
	res := make(MLE, half)
	utils.Parallelize(half, func(start, end int) {
		var t fr.Element
		for i := start; i < end; i++ {
			t.Sub(&m[2*i+1], &m[2*i])
			t.Mul(&t, &c)
			res[i].Add(&m[2*i], &t)
		}
	})
	return res
}

// Eval evaluates the extension at point. The table is left untouched.
func (m MLE) Eval(point []fr.Element) (fr.Element, error) {
	if len(m) != 1<<len(point) {
		return fr.Element{}, fmt.Errorf("table of length %d evaluated at a point of %d variables", len(m), len(point))
	}
	cur := m
	for _, c := range point {
		cur = cur.Fold(c)
	}
	return cur[0], nil
}

// EqTable returns the table of eq(r, i) for every index i of a hypercube of
// len(r) variables.
func EqTable(r []fr.Element) MLE {
	res := make(MLE, 1<<len(r))
	res[0].SetOne()
	size := 1
	for _, rk := range r {
		var oneMinus fr.Element
		oneMinus.SetOne().Sub(&oneMinus, &rk)
		rk := rk
		utils.Parallelize(size, func(start, end int) {
			for i := start; i < end; i++ {
				res[i+size].Mul(&res[i], &rk)
				res[i].Mul(&res[i], &oneMinus)
			}
		})
		size <<= 1
	}
	return res
}

// EqEval returns eq(a, b) = prod a_k b_k + (1 - a_k)(1 - b_k).
func EqEval(a, b []fr.Element) fr.Element {
	var res, one, t, u fr.Element
	res.SetOne()
	one.SetOne()
	for k := range a {
		t.Mul(&a[k], &b[k])
		t.Double(&t)
		u.Add(&a[k], &b[k])
		t.Sub(&t, &u)
		t.Add(&t, &one)
		res.Mul(&res, &t)
	}
	return res
}

// Concat joins points so that a's variables become the low ones.
func Concat(a, b []fr.Element) []fr.Element {
	res := make([]fr.Element, 0, len(a)+len(b))
	res = append(res, a...)
	return append(res, b...)
}

// MatrixRows returns, for a row-major table with 2^colVars columns, the
// column vector sum_i eq(r, i) * M[i][.] where r fixes the row variables.
func MatrixRows(m MLE, r []fr.Element, colVars int) MLE {
	cols := 1 << colVars
	eq := EqTable(r)
	return utils.MapReduce(len(eq), func(start, end int) MLE {
		acc := make(MLE, cols)
		var t fr.Element
		for i := start; i < end; i++ {
			if eq[i].IsZero() {
				continue
			}
			row := m[i*cols : (i+1)*cols]
			for j := range row {
				t.Mul(&row[j], &eq[i])
				acc[j].Add(&acc[j], &t)
			}
		}
		return acc
	}, func(acc *MLE, part MLE) {
		for j := range part {
			(*acc)[j].Add(&(*acc)[j], &part[j])
		}
	})
}
