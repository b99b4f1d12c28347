package gkr

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/logger"
	"golang.org/x/sync/errgroup"

	"github.com/leopardracer/deep-prove/commit"
	"github.com/leopardracer/deep-prove/field"
	"github.com/leopardracer/deep-prove/lookup"
	"github.com/leopardracer/deep-prove/model"
	"github.com/leopardracer/deep-prove/poly"
	"github.com/leopardracer/deep-prove/sumcheck"
	"github.com/leopardracer/deep-prove/transcript"
	"github.com/leopardracer/deep-prove/utils"
	"github.com/leopardracer/deep-prove/witness"
	"github.com/leopardracer/deep-prove/zkerr"
)

type ProveOption func(*proveConfig)

type proveConfig struct {
	progress func(layer int)
}

// WithProgress calls f after each layer reduction with the index of the
// reduced layer. Layers are reduced from the last to the first.
func WithProgress(f func(layer int)) ProveOption {
	return func(c *proveConfig) {
		c.progress = f
	}
}

type stage uint8

const (
	stageInit stage = iota
	stageLayers
	stageOpen
	stageFinal
)

var stageNames = [...]string{"init", "layer reduction", "boundary open", "finalized"}

func (s stage) String() string {
	return stageNames[s]
}

// lookupWitness holds the tables of an Activation or Requantize layer that
// do not depend on any challenge.
type lookupWitness struct {
	lookup *lookup.Lookup
	bases  []poly.MLE
	mult   poly.MLE
	tables map[commit.PolyID]poly.MLE
}

// prover is one proving session. It is driven through init, one reduce
// per layer from the last, open and finalize; any other order is a
// protocol violation.
type prover struct {
	pk    *ProvingKey
	trace *witness.Trace
	st    *Statement
	cfg   proveConfig

	stage   stage
	next    int
	t       *transcript.Transcript
	book    *commit.Book
	claim   commit.Claim
	lookups []*lookupWitness
	tables  map[commit.PolyID]poly.MLE
	proof   *Proof
}

func one() fr.Element {
	var o fr.Element
	o.SetOne()
	return o
}

func (p *prover) expect(s stage) error {
	if p.stage != s {
		return zkerr.Protocol("%s requested during %s", s, p.stage)
	}
	return nil
}

// Prove executes the model of pk on input and proves the inference. It
// returns the proof and the statement it proves.
func Prove(pk *ProvingKey, input model.Tensor, opts ...ProveOption) (*Proof, *Statement, error) {
	var cfg proveConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	trace, err := witness.Execute(pk.Model, input)
	if err != nil {
		return nil, nil, err
	}
	inCm, err := pk.CommitInput(input)
	if err != nil {
		return nil, nil, err
	}
	st := &Statement{Input: inCm, Output: trace.Output()}
	p := &prover{pk: pk, trace: trace, st: st, cfg: cfg}
	if err := p.init(); err != nil {
		return nil, nil, err
	}
	for p.stage == stageLayers {
		if err := p.reduce(); err != nil {
			return nil, nil, err
		}
	}
	if err := p.open(); err != nil {
		return nil, nil, err
	}
	proof, err := p.finalize()
	if err != nil {
		return nil, nil, err
	}
	return proof, st, nil
}

func (p *prover) init() error {
	if err := p.expect(stageInit); err != nil {
		return err
	}
	plan := p.pk.Plan
	nbLayers := len(plan.Steps)
	p.book = commit.NewBook()
	p.proof = &Proof{Layers: make([]LayerProof, nbLayers)}
	p.lookups = make([]*lookupWitness, nbLayers)
	p.tables = map[commit.PolyID]poly.MLE{id(0, commit.PolyInput, 0): p.trace.Table(0)}

	var g errgroup.Group
	for i := range plan.Steps {
		switch plan.Steps[i].Layer.(type) {
		case *model.Activation, *model.Requantize:
			i := i
			g.Go(func() error {
				if err := p.commitLookup(i); err != nil {
					return &zkerr.LayerError{Layer: i, Err: err}
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, lw := range p.lookups {
		if lw == nil {
			continue
		}
		for pid, tb := range lw.tables {
			p.tables[pid] = tb
		}
	}

	t, err := openHeader(p.pk.Params, plan, p.pk.Commitments, p.st)
	if err != nil {
		return err
	}
	absorbWitnessCommitments(t, p.proof.Layers)
	claim, err := outputClaim(t, plan, p.st.Output)
	if err != nil {
		return err
	}
	p.t = t
	p.claim = claim
	p.next = nbLayers - 1
	p.stage = stageLayers
	log := logger.Logger()
	log.Debug().Int("layers", nbLayers).Int("witnessTables", len(p.tables)-1).Msg("prover initialized")
	return nil
}

// paddedInts pads data with pad up to the next power of two.
func paddedInts(data []int64, pad int64) []int64 {
	res := make([]int64, utils.NextPowerOfTwo(len(data)))
	copy(res, data)
	for i := len(data); i < len(res); i++ {
		res[i] = pad
	}
	return res
}

// commitLookup computes and commits the challenge-independent tables of
// lookup layer i. It only writes to slot i.
func (p *prover) commitLookup(i int) error {
	s := &p.pk.Plan.Steps[i]
	lk, err := lookupFor(s)
	if err != nil {
		return err
	}
	xs := paddedInts(p.trace.Tensor(i).Data, s.InPad)
	var ints [][]int64
	switch l := p.pk.Model.Layers[i].(type) {
	case *model.Activation:
		ints = [][]int64{xs, paddedInts(p.trace.Tensor(i+1).Data, s.OutPad)}
	case *model.Requantize:
		ints = make([][]int64, 1+l.NumChunks())
		for k := range ints {
			ints[k] = make([]int64, len(xs))
		}
		err := utils.ParallelizeErr(len(xs), func(start, end int) error {
			for j := start; j < end; j++ {
				y, chunks, err := l.Decompose(xs[j])
				if err != nil {
					return err
				}
				ints[0][j] = y
				for k, d := range chunks {
					ints[1+k][j] = d
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	counts, err := lk.Multiplicities(ints)
	if err != nil {
		return err
	}

	lw := &lookupWitness{
		lookup: lk,
		bases:  make([]poly.MLE, len(ints)),
		mult:   field.FromInt64s(counts),
		tables: make(map[commit.PolyID]poly.MLE),
	}
	for k := range ints {
		lw.bases[k] = field.FromInt64s(ints[k])
	}
	// the output is the second base of an activation and the first of a
	// requantization
	outBase := 0
	if _, ok := s.Layer.(*model.Activation); ok {
		outBase = 1
	}
	lw.tables[id(i, commit.PolyOutput, 0)] = lw.bases[outBase]
	for k := 1; outBase == 0 && k < len(lw.bases); k++ {
		lw.tables[id(i, commit.PolyChunk, k-1)] = lw.bases[k]
	}
	lw.tables[id(i, commit.PolyMultiplicity, 0)] = lw.mult

	cms := make(map[commit.PolyID]commit.Commitment, len(lw.tables))
	for pid, tb := range lw.tables {
		c, err := p.pk.scheme.Commit(tb)
		if err != nil {
			return fmt.Errorf("commit %s: %w", pid, zkerr.Commitment(err))
		}
		cms[pid] = c
	}
	switch s.Layer.(type) {
	case *model.Activation:
		p.proof.Layers[i] = &ActivationProof{
			Output:       cms[id(i, commit.PolyOutput, 0)],
			Multiplicity: cms[id(i, commit.PolyMultiplicity, 0)],
		}
	case *model.Requantize:
		rp := &RequantProof{
			Output:       cms[id(i, commit.PolyOutput, 0)],
			Chunks:       make([]commit.Commitment, len(lw.bases)-1),
			Multiplicity: cms[id(i, commit.PolyMultiplicity, 0)],
		}
		for k := range rp.Chunks {
			rp.Chunks[k] = cms[id(i, commit.PolyChunk, k)]
		}
		p.proof.Layers[i] = rp
	}
	p.lookups[i] = lw
	return nil
}

// reduce turns the claim on the output of the next layer into a claim on
// its input.
func (p *prover) reduce() error {
	if err := p.expect(stageLayers); err != nil {
		return err
	}
	i := p.next
	s := &p.pk.Plan.Steps[i]
	out := p.trace.Table(i + 1)
	if v, err := out.Eval(p.claim.Point); err != nil || !v.Equal(&p.claim.Value) {
		return &zkerr.LayerError{Layer: i, Err: zkerr.Protocol("claim on the layer output does not match the witness")}
	}

	var (
		lp    LayerProof
		claim commit.Claim
		err   error
	)
	switch l := p.pk.Model.Layers[i].(type) {
	case *model.Dense:
		lp, claim, err = p.proveDense(i, p.claim)
	case *model.Convolution:
		lp, claim, err = p.proveConv(i, p.claim)
	case *model.Pool:
		lp, claim, err = p.provePool(i, p.claim)
	case *model.Flatten:
		lp, claim = &FlattenProof{}, p.claim
	case *model.Activation, *model.Requantize:
		lp, claim, err = p.proveLookup(i, p.claim)
	default:
		err = zkerr.Protocol("unsupported layer %T", l)
	}
	if err != nil {
		var re *zkerr.RoundError
		round := 0
		if errors.As(err, &re) {
			round = re.Round
		}
		return &zkerr.LayerError{Layer: i, Round: round, Err: err}
	}
	p.proof.Layers[i] = lp
	p.claim = claim
	log := logger.Logger()
	log.Debug().
		Int("layer", i).
		Str("kind", s.Layer.Kind().String()).
		Int("size", lp.Size()).
		Msg("reduced")
	if p.cfg.progress != nil {
		p.cfg.progress(i)
	}
	p.next--
	if p.next < 0 {
		p.stage = stageOpen
	}
	return nil
}

func (p *prover) proveDense(i int, claim commit.Claim) (*DenseProof, commit.Claim, error) {
	s := &p.pk.Plan.Steps[i]
	r := claim.Point
	w := p.pk.tables[id(i, commit.PolyWeight, 0)]
	bias, err := p.pk.tables[id(i, commit.PolyBias, 0)].Eval(r)
	if err != nil {
		return nil, commit.Claim{}, err
	}
	t := p.t
	t.AppendField("dense/bias", bias)
	p.book.Add(id(i, commit.PolyBias, 0), commit.Claim{Point: r, Value: bias})

	var target fr.Element
	target.Sub(&claim.Value, &bias)
	inst := &sumcheck.Instance{
		Tables: []poly.MLE{poly.MatrixRows(w, r, s.InVars), p.trace.Table(i)},
		Terms:  []sumcheck.Term{{Coeff: one(), Factors: []int{0, 1}}},
	}
	sc, point, finals, err := sumcheck.Prove(t, inst, s.Instances[0].Degree, target)
	if err != nil {
		return nil, commit.Claim{}, err
	}
	proof := &DenseProof{Bias: bias, Sumcheck: sc, Weight: finals[0], Input: finals[1]}
	t.AppendField("dense/evals", proof.Weight, proof.Input)
	p.book.Add(id(i, commit.PolyWeight, 0), commit.Claim{Point: poly.Concat(point, r), Value: proof.Weight})
	return proof, commit.Claim{Point: point, Value: proof.Input}, nil
}

func (p *prover) proveConv(i int, claim commit.Claim) (*ConvProof, commit.Claim, error) {
	s := &p.pk.Plan.Steps[i]
	w := s.Wiring
	r := claim.Point
	bias, err := p.pk.tables[id(i, commit.PolyBias, 0)].Eval(r)
	if err != nil {
		return nil, commit.Claim{}, err
	}
	t := p.t
	t.AppendField("conv/bias", bias)
	p.book.Add(id(i, commit.PolyBias, 0), commit.Claim{Point: r, Value: bias})

	eqR := poly.EqTable(r)
	x := p.trace.Table(i)
	var target fr.Element
	target.Sub(&claim.Value, &bias)
	kernelInst := &sumcheck.Instance{
		Tables: []poly.MLE{p.pk.tables[id(i, commit.PolyWeight, 0)], w.KernelFold(eqR, x)},
		Terms:  []sumcheck.Term{{Coeff: one(), Factors: []int{0, 1}}},
	}
	sc1, u, finals, err := sumcheck.Prove(t, kernelInst, s.Instances[0].Degree, target)
	if err != nil {
		return nil, commit.Claim{}, err
	}
	proof := &ConvProof{Bias: bias, KernelPhase: sc1, Kernel: finals[0]}
	t.AppendField("conv/kernel", proof.Kernel)
	p.book.Add(id(i, commit.PolyWeight, 0), commit.Claim{Point: u, Value: proof.Kernel})

	var mid fr.Element
	mid.Mul(&finals[0], &finals[1])
	inputInst := &sumcheck.Instance{
		Tables: []poly.MLE{w.InputFold(eqR, poly.EqTable(u)), x},
		Terms:  []sumcheck.Term{{Coeff: proof.Kernel, Factors: []int{0, 1}}},
	}
	sc2, pt, finals, err := sumcheck.Prove(t, inputInst, s.Instances[1].Degree, mid)
	if err != nil {
		return nil, commit.Claim{}, zkerr.ShiftRound(err, s.Instances[0].NumVars+1)
	}
	proof.InputPhase = sc2
	proof.Input = finals[1]
	t.AppendField("conv/input", proof.Input)
	return proof, commit.Claim{Point: pt, Value: proof.Input}, nil
}

func (p *prover) provePool(i int, claim commit.Claim) (*PoolProof, commit.Claim, error) {
	s := &p.pk.Plan.Steps[i]
	inst := &sumcheck.Instance{
		Tables: []poly.MLE{s.Wiring.AddFold(poly.EqTable(claim.Point)), p.trace.Table(i)},
		Terms:  []sumcheck.Term{{Coeff: one(), Factors: []int{0, 1}}},
	}
	sc, pt, finals, err := sumcheck.Prove(p.t, inst, s.Instances[0].Degree, claim.Value)
	if err != nil {
		return nil, commit.Claim{}, err
	}
	proof := &PoolProof{Sumcheck: sc, Input: finals[1]}
	p.t.AppendField("pool/input", proof.Input)
	return proof, commit.Claim{Point: pt, Value: proof.Input}, nil
}

// proveLookup runs the lookup argument of an Activation or Requantize layer
// and completes the proof shell built at init.
func (p *prover) proveLookup(i int, claim commit.Claim) (LayerProof, commit.Claim, error) {
	lw := p.lookups[i]
	p.book.Add(id(i, commit.PolyOutput, 0), claim)
	lp, res, err := lw.lookup.Prove(p.t, p.pk.scheme, lw.bases, lw.mult)
	if err != nil {
		return nil, commit.Claim{}, err
	}
	for j, h := range res.Helpers {
		p.tables[id(i, commit.PolyHelper, j)] = h
	}
	next := fileLookupClaims(p.book, i, p.pk.Plan.Steps[i].Layer, &lp, &res)
	switch pr := p.proof.Layers[i].(type) {
	case *ActivationProof:
		pr.Lookup = lp
		return pr, next, nil
	case *RequantProof:
		pr.Lookup = lp
		return pr, next, nil
	}
	return nil, commit.Claim{}, zkerr.Protocol("layer %d has no lookup commitments", i)
}

func (p *prover) open() error {
	if err := p.expect(stageOpen); err != nil {
		return err
	}
	p.book.Add(id(0, commit.PolyInput, 0), p.claim)
	ids := p.book.IDs()
	p.proof.Openings = make([]PolyOpening, len(ids))
	for k, pid := range ids {
		tb, ok := p.tables[pid]
		if !ok {
			tb, ok = p.pk.tables[pid]
		}
		if !ok {
			return zkerr.Protocol("claims on unknown table %s", pid)
		}
		acc, claim, err := commit.Accumulate(p.t, tb, p.book.Claims(pid))
		if err != nil {
			return fmt.Errorf("accumulate %s: %w", pid, err)
		}
		v, opening, err := p.pk.scheme.Open(tb, claim.Point)
		if err != nil {
			return fmt.Errorf("open %s: %w", pid, zkerr.Commitment(err))
		}
		if !v.Equal(&claim.Value) {
			return zkerr.Protocol("opening of %s does not match its claim", pid)
		}
		p.t.AppendBytes("opening", opening)
		p.proof.Openings[k] = PolyOpening{ID: pid, Accumulation: acc, Opening: opening}
	}
	p.stage = stageFinal
	return nil
}

func (p *prover) finalize() (*Proof, error) {
	if err := p.expect(stageFinal); err != nil {
		return nil, err
	}
	log := logger.Logger()
	log.Debug().
		Int("size", p.proof.Size()).
		Int("openings", len(p.proof.Openings)).
		Int("messages", p.t.NbMessages()).
		Msg("proof finalized")
	return p.proof, nil
}
