package commit

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/leopardracer/deep-prove/poly"
	"github.com/leopardracer/deep-prove/sumcheck"
	"github.com/leopardracer/deep-prove/transcript"
	"github.com/leopardracer/deep-prove/zkerr"
)

// AccumulationDegree is the degree of the sumcheck merging claims on one
// table: the table times a combination of eq tables.
const AccumulationDegree = 2

var errAccumulationFinal = errors.New("accumulated evaluation does not match the claim")

// AccumulationProof reduces several claims on one table to a single claim.
// It is empty when the table received one claim.
type AccumulationProof struct {
	Sumcheck sumcheck.Proof
	Value    fr.Element
}

func (p *AccumulationProof) Empty() bool {
	return len(p.Sumcheck.RoundPolys) == 0 && p.Value.IsZero()
}

// Accumulate merges claims on evals with a random linear combination:
//
//	sum_k l_k v_k = sum_x P(x) * sum_k l_k eq(r_k, x)
//
// and returns the single claim left at the end of the sumcheck.
func Accumulate(t *transcript.Transcript, evals poly.MLE, claims []Claim) (AccumulationProof, Claim, error) {
	var proof AccumulationProof
	numVars := evals.NumVars()
	for _, c := range claims {
		if len(c.Point) != numVars {
			return proof, Claim{}, zkerr.Shape("claim on %d variables for a table of %d variables", len(c.Point), numVars)
		}
	}
	if len(claims) == 1 {
		return proof, claims[0], nil
	}
	lambdas := t.Challenges("accumulate/lambda", len(claims))
	combined := make(poly.MLE, len(evals))
	var target fr.Element
	for k, c := range claims {
		eq := poly.EqTable(c.Point)
		for i := range combined {
			var v fr.Element
			v.Mul(&eq[i], &lambdas[k])
			combined[i].Add(&combined[i], &v)
		}
		var v fr.Element
		v.Mul(&c.Value, &lambdas[k])
		target.Add(&target, &v)
	}
	var one fr.Element
	one.SetOne()
	inst := &sumcheck.Instance{
		Tables: []poly.MLE{evals, combined},
		Terms:  []sumcheck.Term{{Coeff: one, Factors: []int{0, 1}}},
	}
	sc, point, finals, err := sumcheck.Prove(t, inst, AccumulationDegree, target)
	if err != nil {
		return proof, Claim{}, err
	}
	proof.Sumcheck = sc
	proof.Value = finals[0]
	t.AppendField("accumulate/value", proof.Value)
	return proof, Claim{Point: point, Value: proof.Value}, nil
}

// VerifyAccumulation replays Accumulate and returns the merged claim.
// Errors are *zkerr.RoundError.
func VerifyAccumulation(t *transcript.Transcript, proof AccumulationProof, claims []Claim, numVars int) (Claim, error) {
	for _, c := range claims {
		if len(c.Point) != numVars {
			return Claim{}, zkerr.Round(0, zkerr.Protocol("claim on %d variables for a table of %d variables", len(c.Point), numVars))
		}
	}
	if len(claims) == 1 {
		if !proof.Empty() {
			return Claim{}, zkerr.Round(0, zkerr.Protocol("unexpected accumulation proof for a single claim"))
		}
		return claims[0], nil
	}
	lambdas := t.Challenges("accumulate/lambda", len(claims))
	var target fr.Element
	for k, c := range claims {
		var v fr.Element
		v.Mul(&c.Value, &lambdas[k])
		target.Add(&target, &v)
	}
	point, final, err := sumcheck.Verify(t, proof.Sumcheck, target, numVars, AccumulationDegree)
	if err != nil {
		return Claim{}, err
	}
	var e fr.Element
	for k, c := range claims {
		eq := poly.EqEval(c.Point, point)
		eq.Mul(&eq, &lambdas[k])
		e.Add(&e, &eq)
	}
	e.Mul(&e, &proof.Value)
	if !e.Equal(&final) {
		return Claim{}, zkerr.Round(numVars, errAccumulationFinal)
	}
	t.AppendField("accumulate/value", proof.Value)
	return Claim{Point: point, Value: proof.Value}, nil
}
