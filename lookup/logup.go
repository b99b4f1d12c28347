package lookup

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/leopardracer/deep-prove/commit"
	"github.com/leopardracer/deep-prove/field"
	"github.com/leopardracer/deep-prove/poly"
	"github.com/leopardracer/deep-prove/sumcheck"
	"github.com/leopardracer/deep-prove/transcript"
	"github.com/leopardracer/deep-prove/utils"
	"github.com/leopardracer/deep-prove/zkerr"
)

// Degrees of the witness-side zero-check and of the table-side sumcheck.
const (
	DegreeWitness = 3
	DegreeTable   = 2
)

var (
	errWitnessFinal = errors.New("helper tables do not invert the looked-up columns")
	errTableFinal   = errors.New("multiplicities do not match the table")
)

// Lookup checks Columns, built from NumBases base tables of NumVars
// variables, against Table.
type Lookup struct {
	Table    Table
	Columns  []Column
	NumBases int
	NumVars  int
}

// Proof holds the messages of one lookup argument.
type Proof struct {
	Helpers      []commit.Commitment
	Sum          fr.Element
	Witness      sumcheck.Proof
	HelperEvals  []fr.Element
	BaseEvals    []fr.Element
	TableSide    sumcheck.Proof
	Multiplicity fr.Element
}

// Result carries the points left by the two sumchecks: claims on the base
// and helper tables hold at Sigma, the claim on the multiplicities at Tau.
type Result struct {
	Sigma []fr.Element
	Tau   []fr.Element
	// Helpers are the committed helper tables, prover side only.
	Helpers []poly.MLE
}

// Rounds returns the number of round indices the argument spans: the rounds
// of both sumchecks and their final checks.
func (l *Lookup) Rounds() int {
	return l.NumVars + 1 + l.Table.Bits + 1
}

// Multiplicities counts how many times every table entry is looked up.
// bases hold the integer values of the base tables, padding included.
func (l *Lookup) Multiplicities(bases [][]int64) ([]int64, error) {
	if err := l.Table.validate(); err != nil {
		return nil, err
	}
	if len(bases) != l.NumBases {
		return nil, zkerr.Shape("%d base tables, expected %d", len(bases), l.NumBases)
	}
	for _, b := range bases {
		if len(b) != 1<<l.NumVars {
			return nil, zkerr.Shape("base table of length %d, expected %d", len(b), 1<<l.NumVars)
		}
	}
	counts := make([]int64, l.Table.Len())
	for _, c := range l.Columns {
		for i := 0; i < 1<<l.NumVars; i++ {
			var out int64
			if c.Output != nil {
				out = c.Output.eval(bases, i)
			}
			k, err := l.Table.index(c.Input.eval(bases, i), out)
			if err != nil {
				return nil, err
			}
			counts[k]++
		}
	}
	return counts, nil
}

type challenges struct {
	alpha, beta fr.Element
	rho         []fr.Element
	lambdas     []fr.Element
	mu          fr.Element
}

func (l *Lookup) drawColumnChallenges(t *transcript.Transcript, ch *challenges) {
	if l.Table.Paired() {
		ch.beta = t.Challenge("lookup/beta")
	}
	ch.alpha = t.Challenge("lookup/alpha")
}

func (l *Lookup) drawBatchChallenges(t *transcript.Transcript, ch *challenges) {
	ch.rho = t.Challenges("lookup/rho", l.NumVars)
	ch.lambdas = t.Challenges("lookup/lambda", len(l.Columns))
	ch.mu = t.Challenge("lookup/mu")
}

// witnessTerms returns the zero-check expression
//
//	eq(rho, .) * sum_j l_j (h_j (a - c_j) - 1) + mu * sum_j h_j
//
// over tables [eq, h_1..h_J, base_1..base_Q].
func (l *Lookup) witnessTerms(lins []linear, ch *challenges) []sumcheck.Term {
	nbCols := len(l.Columns)
	terms := make([]sumcheck.Term, 0, 2*nbCols+1)
	var lambdaSum fr.Element
	for j := range lins {
		var c fr.Element
		c.Sub(&ch.alpha, &lins[j].Const)
		c.Mul(&c, &ch.lambdas[j])
		terms = append(terms, sumcheck.Term{Coeff: c, Factors: []int{0, 1 + j}})
		for q := range lins[j].Coeffs {
			if lins[j].Coeffs[q].IsZero() {
				continue
			}
			c.Mul(&lins[j].Coeffs[q], &ch.lambdas[j])
			c.Neg(&c)
			terms = append(terms, sumcheck.Term{Coeff: c, Factors: []int{0, 1 + j, 1 + nbCols + q}})
		}
		terms = append(terms, sumcheck.Term{Coeff: ch.mu, Factors: []int{1 + j}})
		lambdaSum.Add(&lambdaSum, &ch.lambdas[j])
	}
	lambdaSum.Neg(&lambdaSum)
	return append(terms, sumcheck.Term{Coeff: lambdaSum, Factors: []int{0}})
}

func (l *Lookup) linears(beta fr.Element) []linear {
	lins := make([]linear, len(l.Columns))
	for j, c := range l.Columns {
		lins[j] = fold(c, beta, l.NumBases)
	}
	return lins
}

func one() fr.Element {
	var o fr.Element
	o.SetOne()
	return o
}

// Prove runs the argument. The multiplicities must already be committed
// and absorbed by the caller; the helper tables are committed here.
func (l *Lookup) Prove(t *transcript.Transcript, scheme commit.Scheme, bases []poly.MLE, mult poly.MLE) (Proof, Result, error) {
	if len(bases) != l.NumBases || len(mult) != l.Table.Len() {
		return Proof{}, Result{}, zkerr.Shape("lookup over %d bases and %d multiplicities", len(bases), len(mult))
	}
	for _, b := range bases {
		if len(b) != 1<<l.NumVars {
			return Proof{}, Result{}, zkerr.Shape("base table of length %d, expected %d", len(b), 1<<l.NumVars)
		}
	}
	proof, res, ch, err := l.proveWitness(t, scheme, bases)
	if err != nil {
		return proof, res, err
	}
	if err := l.proveTable(t, &proof, &res, &ch, mult, proof.Sum); err != nil {
		return proof, res, err
	}
	return proof, res, nil
}

// proveWitness commits the helper tables and runs the zero-check tying them
// to the columns.
func (l *Lookup) proveWitness(t *transcript.Transcript, scheme commit.Scheme, bases []poly.MLE) (Proof, Result, challenges, error) {
	var proof Proof
	var res Result
	var ch challenges
	l.drawColumnChallenges(t, &ch)
	lins := l.linears(ch.beta)

	res.Helpers = make([]poly.MLE, len(l.Columns))
	proof.Helpers = make([]commit.Commitment, len(l.Columns))
	for j := range lins {
		c := lins[j].table(bases)
		utils.Parallelize(len(c), func(start, end int) {
			for i := start; i < end; i++ {
				c[i].Sub(&ch.alpha, &c[i])
			}
		})
		h := poly.MLE(fr.BatchInvert(c))
		cm, err := scheme.Commit(h)
		if err != nil {
			return proof, res, ch, zkerr.Commitment(err)
		}
		t.AppendBytes("lookup/helper", cm)
		res.Helpers[j] = h
		proof.Helpers[j] = cm
		s := field.Sum(h)
		proof.Sum.Add(&proof.Sum, &s)
	}
	t.AppendField("lookup/sum", proof.Sum)
	l.drawBatchChallenges(t, &ch)

	tables := make([]poly.MLE, 0, 1+len(res.Helpers)+len(bases))
	tables = append(tables, poly.EqTable(ch.rho))
	tables = append(tables, res.Helpers...)
	tables = append(tables, bases...)
	var claim fr.Element
	claim.Mul(&ch.mu, &proof.Sum)
	sc, sigma, finals, err := sumcheck.Prove(t, &sumcheck.Instance{Tables: tables, Terms: l.witnessTerms(lins, &ch)}, DegreeWitness, claim)
	if err != nil {
		return proof, res, ch, err
	}
	proof.Witness = sc
	proof.HelperEvals = finals[1 : 1+len(res.Helpers)]
	proof.BaseEvals = finals[1+len(res.Helpers):]
	t.AppendField("lookup/evals", finals[1:]...)
	res.Sigma = sigma
	return proof, res, ch, nil
}

// proveTable runs the sumcheck of sum_k m_k/(a - T_k) against claim.
func (l *Lookup) proveTable(t *transcript.Transcript, proof *Proof, res *Result, ch *challenges, mult poly.MLE, claim fr.Element) error {
	w := l.Table.inverses(ch.alpha, ch.beta)
	sc, tau, finals, err := sumcheck.Prove(t, &sumcheck.Instance{
		Tables: []poly.MLE{mult, w},
		Terms:  []sumcheck.Term{{Coeff: one(), Factors: []int{0, 1}}},
	}, DegreeTable, claim)
	if err != nil {
		return zkerr.ShiftRound(err, l.NumVars+1)
	}
	proof.TableSide = sc
	proof.Multiplicity = finals[0]
	t.AppendField("lookup/multiplicity", proof.Multiplicity)
	res.Tau = tau
	return nil
}

// Verify replays the argument. Errors are *zkerr.RoundError counted over
// Rounds().
func (l *Lookup) Verify(t *transcript.Transcript, proof *Proof) (Result, error) {
	var res Result
	nbCols := len(l.Columns)
	if len(proof.Helpers) != nbCols || len(proof.HelperEvals) != nbCols || len(proof.BaseEvals) != l.NumBases {
		return res, zkerr.Round(0, zkerr.Protocol("lookup proof shaped for %d columns and %d bases", len(proof.Helpers), len(proof.BaseEvals)))
	}
	var ch challenges
	l.drawColumnChallenges(t, &ch)
	lins := l.linears(ch.beta)
	for _, cm := range proof.Helpers {
		t.AppendBytes("lookup/helper", cm)
	}
	t.AppendField("lookup/sum", proof.Sum)
	l.drawBatchChallenges(t, &ch)

	var claim fr.Element
	claim.Mul(&ch.mu, &proof.Sum)
	sigma, final, err := sumcheck.Verify(t, proof.Witness, claim, l.NumVars, DegreeWitness)
	if err != nil {
		return res, err
	}
	values := make([]fr.Element, 0, 1+nbCols+l.NumBases)
	values = append(values, poly.EqEval(ch.rho, sigma))
	values = append(values, proof.HelperEvals...)
	values = append(values, proof.BaseEvals...)
	inst := sumcheck.Instance{Terms: l.witnessTerms(lins, &ch)}
	if e := inst.Eval(values); !e.Equal(&final) {
		return res, zkerr.Round(l.NumVars, errWitnessFinal)
	}
	t.AppendField("lookup/evals", values[1:]...)

	tau, final, err := sumcheck.Verify(t, proof.TableSide, proof.Sum, l.Table.Bits, DegreeTable)
	if err != nil {
		return res, zkerr.ShiftRound(err, l.NumVars+1)
	}
	w, err := l.Table.inverses(ch.alpha, ch.beta).Eval(tau)
	if err != nil {
		return res, zkerr.Round(l.Rounds()-1, err)
	}
	w.Mul(&w, &proof.Multiplicity)
	if !w.Equal(&final) {
		return res, zkerr.Round(l.Rounds()-1, errTableFinal)
	}
	t.AppendField("lookup/multiplicity", proof.Multiplicity)

	res.Sigma = sigma
	res.Tau = tau
	return res, nil
}
