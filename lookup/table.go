// Package lookup proves that every row of a set of witness columns appears
// in a public table, with the logarithmic derivative identity
//
//	sum_j sum_i 1/(a - c_j(i)) = sum_k m_k/(a - T_k)
//
// The helper tables h_j = 1/(a - c_j) are committed; a zero-check sumcheck
// ties them to the columns and a second sumcheck ties the total to the
// multiplicities m.
package lookup

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/leopardracer/deep-prove/field"
	"github.com/leopardracer/deep-prove/poly"
	"github.com/leopardracer/deep-prove/utils"
	"github.com/leopardracer/deep-prove/zkerr"
)

// Table holds the entries Lo, Lo+1, ..., Lo+2^Bits-1, paired with Outputs
// when the table describes a function.
type Table struct {
	Lo      int64
	Bits    int
	Outputs []int64
}

// RangeTable returns the table of [0, 2^bits).
func RangeTable(bits int) Table {
	return Table{Bits: bits}
}

// FunctionTable returns the table of (x, outputs[x - lo]).
func FunctionTable(lo int64, bits int, outputs []int64) Table {
	return Table{Lo: lo, Bits: bits, Outputs: outputs}
}

func (t *Table) Len() int { return 1 << t.Bits }

// Paired reports whether entries are (input, output) pairs.
func (t *Table) Paired() bool { return t.Outputs != nil }

func (t *Table) validate() error {
	if t.Bits < 0 || t.Bits > 30 {
		return fmt.Errorf("table width %d out of range", t.Bits)
	}
	if t.Outputs != nil && len(t.Outputs) != t.Len() {
		return zkerr.Shape("table of %d outputs for %d entries", len(t.Outputs), t.Len())
	}
	return nil
}

// index returns the entry matching (in, out).
func (t *Table) index(in, out int64) (int, error) {
	k := in - t.Lo
	if k < 0 || k >= int64(t.Len()) {
		return 0, zkerr.Range("value %d outside the table [%d, %d)", in, t.Lo, t.Lo+int64(t.Len()))
	}
	if t.Paired() && t.Outputs[k] != out {
		return 0, zkerr.Range("pair (%d, %d) not in the table", in, out)
	}
	return int(k), nil
}

// inverses returns 1/(alpha - T_k - beta*f_k) for every entry.
func (t *Table) inverses(alpha, beta fr.Element) poly.MLE {
	res := make([]fr.Element, t.Len())
	utils.Parallelize(len(res), func(start, end int) {
		var v fr.Element
		for k := start; k < end; k++ {
			v = field.FromInt64(t.Lo + int64(k))
			if t.Paired() {
				o := field.FromInt64(t.Outputs[k])
				o.Mul(&o, &beta)
				v.Add(&v, &o)
			}
			res[k].Sub(&alpha, &v)
		}
	})
	return poly.MLE(fr.BatchInvert(res))
}
