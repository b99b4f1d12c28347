// Package sumcheck proves and verifies claims of the form
//
//	claim = sum_{x in {0,1}^n} sum_k c_k * prod_{f in F_k} T_f(x)
//
// where every T_f is a multilinear table. Each round the prover sends the
// coefficients of the round polynomial, the verifier checks it against the
// running claim and the transcript derives the next challenge.
package sumcheck

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/leopardracer/deep-prove/poly"
	"github.com/leopardracer/deep-prove/transcript"
	"github.com/leopardracer/deep-prove/utils"
	"github.com/leopardracer/deep-prove/zkerr"
)

// ErrSumMismatch is the reject reason of a round polynomial that does not
// sum to the running claim over {0,1}.
var ErrSumMismatch = errors.New("round polynomial does not sum to the claim")

// Term is Coeff times the product of the tables listed in Factors.
type Term struct {
	Coeff   fr.Element
	Factors []int
}

// Instance is the polynomial whose hypercube sum is being proven.
type Instance struct {
	Tables []poly.MLE
	Terms  []Term
}

// Degree returns the largest number of factors in a term.
func (inst *Instance) Degree() int {
	d := 0
	for _, term := range inst.Terms {
		if len(term.Factors) > d {
			d = len(term.Factors)
		}
	}
	return d
}

func (inst *Instance) NumVars() int {
	if len(inst.Tables) == 0 {
		return 0
	}
	return inst.Tables[0].NumVars()
}

func (inst *Instance) validate() error {
	if len(inst.Tables) == 0 {
		return errors.New("sumcheck instance without tables")
	}
	size := len(inst.Tables[0])
	if !utils.IsPowerOfTwo(size) {
		return fmt.Errorf("table length %d is not a power of two", size)
	}
	for i, tb := range inst.Tables {
		if len(tb) != size {
			return fmt.Errorf("table %d has length %d, expected %d", i, len(tb), size)
		}
	}
	for _, term := range inst.Terms {
		for _, f := range term.Factors {
			if f < 0 || f >= len(inst.Tables) {
				return fmt.Errorf("term references table %d of %d", f, len(inst.Tables))
			}
		}
	}
	return nil
}

// Eval evaluates the instance expression given one value per table.
func (inst *Instance) Eval(values []fr.Element) fr.Element {
	return evalTerms(inst.Terms, values)
}

func evalTerms(terms []Term, values []fr.Element) fr.Element {
	var res fr.Element
	for _, term := range terms {
		p := term.Coeff
		for _, f := range term.Factors {
			p.Mul(&p, &values[f])
		}
		res.Add(&res, &p)
	}
	return res
}

// Proof holds one round polynomial per variable.
type Proof struct {
	RoundPolys []poly.Univariate
}

// Size returns the number of field elements in the proof.
func (p *Proof) Size() int {
	n := 0
	for _, rp := range p.RoundPolys {
		n += len(rp)
	}
	return n
}

const (
	labelRound     = "sumcheck/round"
	labelChallenge = "sumcheck/challenge"
)

// Prove runs the protocol for inst against claim. Every round polynomial is
// sent with exactly degree+1 coefficients. It returns the proof, the point
// fixed by the challenges and the evaluation of every table at that point.
//
// The tables of inst are not modified.
func Prove(t *transcript.Transcript, inst *Instance, degree int, claim fr.Element) (Proof, []fr.Element, []fr.Element, error) {
	var proof Proof
	if err := inst.validate(); err != nil {
		return proof, nil, nil, err
	}
	if d := inst.Degree(); d > degree {
		return proof, nil, nil, zkerr.Protocol("instance has degree %d above the declared bound %d", d, degree)
	}
	n := inst.NumVars()
	tables := make([]poly.MLE, len(inst.Tables))
	copy(tables, inst.Tables)
	point := make([]fr.Element, 0, n)
	proof.RoundPolys = make([]poly.Univariate, 0, n)

	for round := 0; round < n; round++ {
		evals := roundEvals(tables, inst.Terms, degree)
		rp := poly.Interpolate(evals)
		if sum := rp.SumOverBoolean(); !sum.Equal(&claim) {
			return proof, nil, nil, zkerr.Round(round, zkerr.Protocol("witness does not satisfy the claim"))
		}
		t.AppendField(labelRound, rp...)
		c := t.Challenge(labelChallenge)
		claim = rp.Eval(&c)
		for i := range tables {
			tables[i] = tables[i].Fold(c)
		}
		point = append(point, c)
		proof.RoundPolys = append(proof.RoundPolys, rp)
	}

	finals := make([]fr.Element, len(tables))
	for i := range tables {
		finals[i] = tables[i][0]
	}
	if v := evalTerms(inst.Terms, finals); !v.Equal(&claim) {
		return proof, nil, nil, zkerr.Round(n, zkerr.Protocol("final evaluation does not match the claim"))
	}
	return proof, point, finals, nil
}

// roundEvals evaluates the round polynomial at 0..degree. Each chunk of the
// hypercube accumulates into its own partial vector.
func roundEvals(tables []poly.MLE, terms []Term, degree int) []fr.Element {
	half := len(tables[0]) / 2
	nbPoints := degree + 1
	return utils.MapReduce(half, func(start, end int) []fr.Element {
		acc := make([]fr.Element, nbPoints)
		vals := make([][]fr.Element, len(tables))
		for f := range vals {
			vals[f] = make([]fr.Element, nbPoints)
		}
		var diff, p fr.Element
		for i := start; i < end; i++ {
			for f, tb := range tables {
				v := vals[f]
				v[0] = tb[2*i]
				diff.Sub(&tb[2*i+1], &tb[2*i])
				for x := 1; x < nbPoints; x++ {
					v[x].Add(&v[x-1], &diff)
				}
			}
			for _, term := range terms {
				for x := 0; x < nbPoints; x++ {
					p = term.Coeff
					for _, f := range term.Factors {
						p.Mul(&p, &vals[f][x])
					}
					acc[x].Add(&acc[x], &p)
				}
			}
		}
		return acc
	}, func(acc *[]fr.Element, part []fr.Element) {
		for x := range part {
			(*acc)[x].Add(&(*acc)[x], &part[x])
		}
	})
}

// Verify replays the rounds of proof against claim. It returns the point
// fixed by the challenges and the claim the caller must check against the
// final evaluation of the expression.
//
// Errors are *zkerr.RoundError; a round polynomial with a coefficient count
// other than degree+1 is a protocol violation.
func Verify(t *transcript.Transcript, proof Proof, claim fr.Element, numVars, degree int) ([]fr.Element, fr.Element, error) {
	if len(proof.RoundPolys) != numVars {
		round := len(proof.RoundPolys)
		if round > numVars {
			round = numVars
		}
		return nil, claim, zkerr.Round(round, zkerr.Protocol("proof has %d rounds, expected %d", len(proof.RoundPolys), numVars))
	}
	point := make([]fr.Element, 0, numVars)
	for round, rp := range proof.RoundPolys {
		if len(rp) != degree+1 {
			return nil, claim, zkerr.Round(round, zkerr.Protocol("round polynomial has %d coefficients, degree bound is %d", len(rp), degree))
		}
		if sum := rp.SumOverBoolean(); !sum.Equal(&claim) {
			return nil, claim, zkerr.Round(round, ErrSumMismatch)
		}
		t.AppendField(labelRound, rp...)
		c := t.Challenge(labelChallenge)
		claim = rp.Eval(&c)
		point = append(point, c)
	}
	return point, claim, nil
}
