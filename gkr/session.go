package gkr

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/leopardracer/deep-prove/commit"
	"github.com/leopardracer/deep-prove/field"
	"github.com/leopardracer/deep-prove/layered"
	"github.com/leopardracer/deep-prove/lookup"
	"github.com/leopardracer/deep-prove/model"
	"github.com/leopardracer/deep-prove/poly"
	"github.com/leopardracer/deep-prove/transcript"
	"github.com/leopardracer/deep-prove/zkerr"
)

// openHeader starts the transcript of a session and absorbs everything
// public: parameters, plan, model commitment and statement.
func openHeader(params Params, plan *layered.Plan, cms []PolyCommitment, st *Statement) (*transcript.Transcript, error) {
	t, err := transcript.New(params.Transcript, Domain)
	if err != nil {
		return nil, err
	}
	t.AppendBytes("params", []byte(params.Scheme+"/"+params.Transcript))
	t.AppendBytes("plan", plan.Serialize())
	for _, c := range cms {
		t.AppendInt64("model/id", int64(c.ID.Layer), int64(c.ID.Kind), int64(c.ID.Index))
		t.AppendBytes("model/commitment", c.Commitment)
	}
	t.AppendBytes("input/commitment", st.Input)
	t.AppendInt64("output/shape", intsToInt64(st.Output.Shape)...)
	t.AppendInt64("output", st.Output.Data...)
	return t, nil
}

// absorbWitnessCommitments absorbs the challenge-independent commitments of
// the lookup layers, in layer order.
func absorbWitnessCommitments(t *transcript.Transcript, layers []LayerProof) {
	for _, l := range layers {
		switch l := l.(type) {
		case *ActivationProof:
			t.AppendBytes("activation/output", l.Output)
			t.AppendBytes("activation/multiplicity", l.Multiplicity)
		case *RequantProof:
			t.AppendBytes("requant/output", l.Output)
			for _, c := range l.Chunks {
				t.AppendBytes("requant/chunk", c)
			}
			t.AppendBytes("requant/multiplicity", l.Multiplicity)
		}
	}
}

// outputClaim draws the random point of the output claim and evaluates the
// declared output there.
func outputClaim(t *transcript.Transcript, plan *layered.Plan, out model.Tensor) (commit.Claim, error) {
	if !model.ShapeEqual(out.Shape, plan.OutputShape()) || len(out.Data) != out.Len() {
		return commit.Claim{}, zkerr.Shape("declared output shape %v, model output %v", out.Shape, plan.OutputShape())
	}
	r := t.Challenges("output/point", plan.OutputVars())
	v, err := poly.MLE(field.FromInt64sPadded(out.Data, plan.OutputPad())).Eval(r)
	if err != nil {
		return commit.Claim{}, err
	}
	return commit.Claim{Point: r, Value: v}, nil
}

func intsToInt64(xs []int) []int64 {
	res := make([]int64, len(xs))
	for i, x := range xs {
		res[i] = int64(x)
	}
	return res
}

// requantInput recombines the input of a requantization from its output
// and the discarded chunks:
//
//	x = 2^shift (y + sub) + sum_k 2^(after*k) d_k - 2*range
func requantInput(r *model.Requantize, y fr.Element, chunks []fr.Element) fr.Element {
	var x, t fr.Element
	sub := field.FromInt64(r.Sub())
	x.Add(&y, &sub)
	pow := field.Pow2(r.RightShift)
	x.Mul(&x, &pow)
	for k := range chunks {
		pow = field.Pow2(r.AfterBits * k)
		t.Mul(&chunks[k], &pow)
		x.Add(&x, &t)
	}
	mb := field.FromInt64(r.MaxBit())
	x.Sub(&x, &mb)
	return x
}

func id(layer int, kind commit.PolyKind, index int) commit.PolyID {
	return commit.PolyID{Layer: layer, Kind: kind, Index: index}
}

// polyVars returns the number of variables of a committed table.
func polyVars(plan *layered.Plan, pid commit.PolyID) (int, error) {
	if pid.Layer < 0 || pid.Layer >= len(plan.Steps) {
		return 0, zkerr.Protocol("table %s outside the plan", pid)
	}
	s := &plan.Steps[pid.Layer]
	switch pid.Kind {
	case commit.PolyInput:
		return plan.InputVars(), nil
	case commit.PolyWeight:
		if s.Layer.Kind() == model.KindConvolution {
			return s.Instances[0].NumVars, nil
		}
		return s.InVars + s.OutVars, nil
	case commit.PolyBias, commit.PolyOutput:
		return s.OutVars, nil
	case commit.PolyChunk, commit.PolyHelper:
		return s.InVars, nil
	case commit.PolyMultiplicity:
		return s.Instances[1].NumVars, nil
	}
	return 0, zkerr.Protocol("unknown table kind %s", pid.Kind)
}

// lookupFor returns the lookup argument of an Activation or Requantize
// step.
//
// Activation looks up (x, y) pairs over bases [x, y]. Requantize range
// checks y + 2^(after-1) and every chunk over bases [y, d_1..d_K]; when the
// top chunk holds fewer than after bits it is also checked shifted left by
// the slack.
func lookupFor(s *layered.Step) (*lookup.Lookup, error) {
	if len(s.Instances) != 2 || s.Instances[0].Degree != lookup.DegreeWitness || s.Instances[1].Degree != lookup.DegreeTable {
		return nil, zkerr.Protocol("step %d does not declare the lookup sumchecks", s.Index)
	}
	switch l := s.Layer.(type) {
	case *model.Activation:
		lo, _ := l.Domain()
		_, outs := l.Entries()
		out := lookup.Var(1)
		return &lookup.Lookup{
			Table:    lookup.FunctionTable(lo, l.InBits, outs),
			Columns:  []lookup.Column{{Input: lookup.Var(0), Output: &out}},
			NumBases: 2,
			NumVars:  s.InVars,
		}, nil
	case *model.Requantize:
		k := l.NumChunks()
		cols := make([]lookup.Column, 0, k+2)
		cols = append(cols, lookup.Column{Input: lookup.Form{
			Const: int64(1) << (l.AfterBits - 1),
			Terms: []lookup.Term{{Base: 0, Coeff: 1}},
		}})
		for c := 1; c <= k; c++ {
			cols = append(cols, lookup.Column{Input: lookup.Var(c)})
		}
		if slack := l.TopSlack(); slack > 0 {
			cols = append(cols, lookup.Column{Input: lookup.Form{
				Terms: []lookup.Term{{Base: k, Coeff: int64(1) << slack}},
			}})
		}
		return &lookup.Lookup{
			Table:    lookup.RangeTable(l.AfterBits),
			Columns:  cols,
			NumBases: k + 1,
			NumVars:  s.InVars,
		}, nil
	}
	return nil, zkerr.Protocol("layer %s has no lookup", s.Layer.Kind())
}

// fileLookupClaims files the claims left by the lookup argument of layer i
// and returns the claim on the layer input.
func fileLookupClaims(book *commit.Book, i int, l model.Layer, lp *lookup.Proof, res *lookup.Result) commit.Claim {
	sigma := res.Sigma
	for j, v := range lp.HelperEvals {
		book.Add(id(i, commit.PolyHelper, j), commit.Claim{Point: sigma, Value: v})
	}
	book.Add(id(i, commit.PolyMultiplicity, 0), commit.Claim{Point: res.Tau, Value: lp.Multiplicity})
	switch l := l.(type) {
	case *model.Activation:
		book.Add(id(i, commit.PolyOutput, 0), commit.Claim{Point: sigma, Value: lp.BaseEvals[1]})
		return commit.Claim{Point: sigma, Value: lp.BaseEvals[0]}
	case *model.Requantize:
		book.Add(id(i, commit.PolyOutput, 0), commit.Claim{Point: sigma, Value: lp.BaseEvals[0]})
		for k, v := range lp.BaseEvals[1:] {
			book.Add(id(i, commit.PolyChunk, k), commit.Claim{Point: sigma, Value: v})
		}
		return commit.Claim{Point: sigma, Value: requantInput(l, lp.BaseEvals[0], lp.BaseEvals[1:])}
	}
	return commit.Claim{}
}
