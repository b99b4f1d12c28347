package gkr

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/logger"

	"github.com/leopardracer/deep-prove/commit"
	"github.com/leopardracer/deep-prove/lookup"
	"github.com/leopardracer/deep-prove/model"
	"github.com/leopardracer/deep-prove/poly"
	"github.com/leopardracer/deep-prove/sumcheck"
	"github.com/leopardracer/deep-prove/transcript"
	"github.com/leopardracer/deep-prove/zkerr"
)

var (
	errDenseFinal = errors.New("weight and input evaluations do not match the dense claim")
	errConvFinal  = errors.New("kernel, wiring and input evaluations do not match the convolution claim")
	errPoolFinal  = errors.New("wiring and input evaluations do not match the pool claim")
)

// Stage locates a reject in the verification.
type Stage uint8

const (
	StageInit Stage = iota
	StageLayer
	StageOpening
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "init"
	case StageLayer:
		return "layer"
	case StageOpening:
		return "opening"
	}
	return fmt.Sprintf("stage(%d)", s)
}

// Verdict is the outcome of a verification. A reject names the first
// failing check: Layer and Round for layer reductions, Poly for openings.
// Round is a running index over the sumcheck rounds of the layer where the
// final check of an instance counts as the round after its last one.
// Layer is -1 for rejects at init.
type Verdict struct {
	Accepted bool
	Layer    int
	Round    int
	Stage    Stage
	Poly     commit.PolyID
	Err      error
}

func (v Verdict) String() string {
	if v.Accepted {
		return "Accept"
	}
	switch v.Stage {
	case StageInit:
		return fmt.Sprintf("Reject at init: %v", v.Err)
	case StageOpening:
		return fmt.Sprintf("Reject at opening of %s: %v", v.Poly, v.Err)
	}
	return fmt.Sprintf("Reject at layer %d round %d: %v", v.Layer, v.Round, v.Err)
}

func reject(stage Stage, layer int, pid commit.PolyID, err error) Verdict {
	v := Verdict{Layer: layer, Stage: stage, Poly: pid, Err: err}
	var re *zkerr.RoundError
	if errors.As(err, &re) {
		v.Round = re.Round
	}
	return v
}

type verifier struct {
	vk    *VerifyingKey
	st    *Statement
	proof *Proof
	t     *transcript.Transcript
	book  *commit.Book
}

// Verify checks proof against the statement. A rejected proof is reported
// in the Verdict; the error is only set when the statement or the key
// cannot be used at all.
func Verify(vk *VerifyingKey, st *Statement, proof *Proof) (Verdict, error) {
	v, err := verify(vk, st, proof)
	if err != nil {
		return Verdict{}, err
	}
	log := logger.Logger()
	if !v.Accepted {
		log.Warn().
			Str("stage", v.Stage.String()).
			Int("layer", v.Layer).
			Int("round", v.Round).
			Err(v.Err).
			Msg("proof rejected")
	} else {
		log.Debug().Msg("proof accepted")
	}
	return v, nil
}

func verify(vk *VerifyingKey, st *Statement, proof *Proof) (Verdict, error) {
	if vk == nil || vk.Plan == nil || st == nil {
		return Verdict{}, fmt.Errorf("verification needs a verifying key and a statement")
	}
	plan := vk.Plan
	if !model.ShapeEqual(st.Output.Shape, plan.OutputShape()) || len(st.Output.Data) != st.Output.Len() {
		return Verdict{}, zkerr.Shape("statement output shape %v, model output %v", st.Output.Shape, plan.OutputShape())
	}
	if proof == nil {
		return reject(StageInit, -1, commit.PolyID{}, zkerr.Protocol("no proof")), nil
	}
	if len(proof.Layers) != len(plan.Steps) {
		return reject(StageInit, -1, commit.PolyID{}, zkerr.Protocol("proof of %d layers for a model of %d", len(proof.Layers), len(plan.Steps))), nil
	}
	for i := range plan.Steps {
		if err := checkShell(plan.Steps[i].Layer, proof.Layers[i]); err != nil {
			return reject(StageLayer, i, commit.PolyID{}, err), nil
		}
	}

	t, err := openHeader(vk.Params, plan, vk.Commitments, st)
	if err != nil {
		return Verdict{}, err
	}
	absorbWitnessCommitments(t, proof.Layers)
	claim, err := outputClaim(t, plan, st.Output)
	if err != nil {
		return Verdict{}, err
	}
	v := &verifier{vk: vk, st: st, proof: proof, t: t, book: commit.NewBook()}

	for i := len(plan.Steps) - 1; i >= 0; i-- {
		claim, err = v.verifyLayer(i, claim)
		if err != nil {
			return reject(StageLayer, i, commit.PolyID{}, err), nil
		}
	}

	v.book.Add(id(0, commit.PolyInput, 0), claim)
	ids := v.book.IDs()
	if len(proof.Openings) != len(ids) {
		return reject(StageOpening, -1, commit.PolyID{}, zkerr.Protocol("%d openings for %d committed tables", len(proof.Openings), len(ids))), nil
	}
	for k, pid := range ids {
		if err := v.verifyOpening(pid, &proof.Openings[k]); err != nil {
			return reject(StageOpening, pid.Layer, pid, err), nil
		}
	}
	return Verdict{Accepted: true}, nil
}

// checkShell checks that a layer proof has the variant of its layer and
// carries one chunk commitment per requantization chunk.
func checkShell(l model.Layer, lp LayerProof) error {
	if lp == nil {
		return zkerr.Round(0, zkerr.Protocol("missing %s proof", l.Kind()))
	}
	if lp.Kind() != l.Kind() {
		return zkerr.Round(0, zkerr.Protocol("%s proof for a %s layer", lp.Kind(), l.Kind()))
	}
	if r, ok := l.(*model.Requantize); ok {
		if n := len(lp.(*RequantProof).Chunks); n != r.NumChunks() {
			return zkerr.Round(0, zkerr.Protocol("%d chunk commitments, expected %d", n, r.NumChunks()))
		}
	}
	return nil
}

func (v *verifier) verifyLayer(i int, claim commit.Claim) (commit.Claim, error) {
	switch lp := v.proof.Layers[i].(type) {
	case *DenseProof:
		return v.verifyDense(i, claim, lp)
	case *ConvProof:
		return v.verifyConv(i, claim, lp)
	case *PoolProof:
		return v.verifyPool(i, claim, lp)
	case *FlattenProof:
		return claim, nil
	case *ActivationProof:
		return v.verifyLookup(i, claim, &lp.Lookup)
	case *RequantProof:
		return v.verifyLookup(i, claim, &lp.Lookup)
	}
	return commit.Claim{}, zkerr.Round(0, zkerr.Protocol("unknown layer proof %T", v.proof.Layers[i]))
}

func (v *verifier) verifyDense(i int, claim commit.Claim, proof *DenseProof) (commit.Claim, error) {
	inst := v.vk.Plan.Steps[i].Instances[0]
	t := v.t
	t.AppendField("dense/bias", proof.Bias)
	v.book.Add(id(i, commit.PolyBias, 0), commit.Claim{Point: claim.Point, Value: proof.Bias})

	var target fr.Element
	target.Sub(&claim.Value, &proof.Bias)
	point, final, err := sumcheck.Verify(t, proof.Sumcheck, target, inst.NumVars, inst.Degree)
	if err != nil {
		return commit.Claim{}, err
	}
	var e fr.Element
	e.Mul(&proof.Weight, &proof.Input)
	if !e.Equal(&final) {
		return commit.Claim{}, zkerr.Round(inst.NumVars, errDenseFinal)
	}
	t.AppendField("dense/evals", proof.Weight, proof.Input)
	v.book.Add(id(i, commit.PolyWeight, 0), commit.Claim{Point: poly.Concat(point, claim.Point), Value: proof.Weight})
	return commit.Claim{Point: point, Value: proof.Input}, nil
}

func (v *verifier) verifyConv(i int, claim commit.Claim, proof *ConvProof) (commit.Claim, error) {
	s := &v.vk.Plan.Steps[i]
	kernel, input := s.Instances[0], s.Instances[1]
	t := v.t
	t.AppendField("conv/bias", proof.Bias)
	v.book.Add(id(i, commit.PolyBias, 0), commit.Claim{Point: claim.Point, Value: proof.Bias})

	var target fr.Element
	target.Sub(&claim.Value, &proof.Bias)
	u, mid, err := sumcheck.Verify(t, proof.KernelPhase, target, kernel.NumVars, kernel.Degree)
	if err != nil {
		return commit.Claim{}, err
	}
	t.AppendField("conv/kernel", proof.Kernel)
	v.book.Add(id(i, commit.PolyWeight, 0), commit.Claim{Point: u, Value: proof.Kernel})

	offset := kernel.NumVars + 1
	pt, final, err := sumcheck.Verify(t, proof.InputPhase, mid, input.NumVars, input.Degree)
	if err != nil {
		return commit.Claim{}, zkerr.ShiftRound(err, offset)
	}
	e := s.Wiring.MulEval(poly.EqTable(claim.Point), poly.EqTable(u), poly.EqTable(pt))
	e.Mul(&e, &proof.Kernel)
	e.Mul(&e, &proof.Input)
	if !e.Equal(&final) {
		return commit.Claim{}, zkerr.Round(offset+input.NumVars, errConvFinal)
	}
	t.AppendField("conv/input", proof.Input)
	return commit.Claim{Point: pt, Value: proof.Input}, nil
}

func (v *verifier) verifyPool(i int, claim commit.Claim, proof *PoolProof) (commit.Claim, error) {
	s := &v.vk.Plan.Steps[i]
	inst := s.Instances[0]
	pt, final, err := sumcheck.Verify(v.t, proof.Sumcheck, claim.Value, inst.NumVars, inst.Degree)
	if err != nil {
		return commit.Claim{}, err
	}
	e := s.Wiring.AddEval(poly.EqTable(claim.Point), poly.EqTable(pt))
	e.Mul(&e, &proof.Input)
	if !e.Equal(&final) {
		return commit.Claim{}, zkerr.Round(inst.NumVars, errPoolFinal)
	}
	v.t.AppendField("pool/input", proof.Input)
	return commit.Claim{Point: pt, Value: proof.Input}, nil
}

func (v *verifier) verifyLookup(i int, claim commit.Claim, proof *lookup.Proof) (commit.Claim, error) {
	s := &v.vk.Plan.Steps[i]
	lk, err := lookupFor(s)
	if err != nil {
		return commit.Claim{}, zkerr.Round(0, err)
	}
	v.book.Add(id(i, commit.PolyOutput, 0), claim)
	res, err := lk.Verify(v.t, proof)
	if err != nil {
		return commit.Claim{}, err
	}
	return fileLookupClaims(v.book, i, s.Layer, proof, &res), nil
}

func (v *verifier) verifyOpening(pid commit.PolyID, o *PolyOpening) error {
	if o.ID != pid {
		return zkerr.Protocol("opening of %s, expected %s", o.ID, pid)
	}
	nbVars, err := polyVars(v.vk.Plan, pid)
	if err != nil {
		return err
	}
	claim, err := commit.VerifyAccumulation(v.t, o.Accumulation, v.book.Claims(pid), nbVars)
	if err != nil {
		return err
	}
	cm, err := v.commitmentOf(pid)
	if err != nil {
		return err
	}
	if err := v.vk.scheme.Verify(cm, claim.Point, claim.Value, o.Opening); err != nil {
		return zkerr.Commitment(err)
	}
	v.t.AppendBytes("opening", o.Opening)
	return nil
}

// commitmentOf returns the commitment a table is opened against: the
// statement for the input, the key for parameters and the layer proofs for
// lookup tables.
func (v *verifier) commitmentOf(pid commit.PolyID) (commit.Commitment, error) {
	switch pid.Kind {
	case commit.PolyInput:
		return v.st.Input, nil
	case commit.PolyWeight, commit.PolyBias:
		if c, ok := v.vk.commitments[pid]; ok {
			return c, nil
		}
	default:
		var (
			output, mult commit.Commitment
			chunks       []commit.Commitment
			lp           *lookup.Proof
		)
		switch l := v.proof.Layers[pid.Layer].(type) {
		case *ActivationProof:
			output, mult, lp = l.Output, l.Multiplicity, &l.Lookup
		case *RequantProof:
			output, mult, chunks, lp = l.Output, l.Multiplicity, l.Chunks, &l.Lookup
		default:
			return nil, zkerr.Protocol("no lookup commitments at layer %d", pid.Layer)
		}
		switch {
		case pid.Kind == commit.PolyOutput:
			return output, nil
		case pid.Kind == commit.PolyMultiplicity:
			return mult, nil
		case pid.Kind == commit.PolyChunk && pid.Index < len(chunks):
			return chunks[pid.Index], nil
		case pid.Kind == commit.PolyHelper && pid.Index < len(lp.Helpers):
			return lp.Helpers[pid.Index], nil
		}
	}
	return nil, zkerr.Protocol("no commitment for %s", pid)
}
