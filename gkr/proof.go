package gkr

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/leopardracer/deep-prove/commit"
	"github.com/leopardracer/deep-prove/lookup"
	"github.com/leopardracer/deep-prove/model"
	"github.com/leopardracer/deep-prove/sumcheck"
)

// LayerProof is the reduction of one layer. The set of implementations is
// closed and mirrors the layer kinds.
type LayerProof interface {
	Kind() model.Kind
	// Size returns the number of field elements sent, commitments aside.
	Size() int
	isLayerProof()
}

type DenseProof struct {
	Bias     fr.Element
	Sumcheck sumcheck.Proof
	Weight   fr.Element
	Input    fr.Element
}

type ConvProof struct {
	Bias        fr.Element
	KernelPhase sumcheck.Proof
	Kernel      fr.Element
	InputPhase  sumcheck.Proof
	Input       fr.Element
}

type PoolProof struct {
	Sumcheck sumcheck.Proof
	Input    fr.Element
}

type FlattenProof struct{}

type ActivationProof struct {
	Output       commit.Commitment
	Multiplicity commit.Commitment
	Lookup       lookup.Proof
}

type RequantProof struct {
	Output       commit.Commitment
	Chunks       []commit.Commitment
	Multiplicity commit.Commitment
	Lookup       lookup.Proof
}

func (*DenseProof) Kind() model.Kind      { return model.KindDense }
func (*ConvProof) Kind() model.Kind       { return model.KindConvolution }
func (*PoolProof) Kind() model.Kind       { return model.KindPool }
func (*FlattenProof) Kind() model.Kind    { return model.KindFlatten }
func (*ActivationProof) Kind() model.Kind { return model.KindActivation }
func (*RequantProof) Kind() model.Kind    { return model.KindRequantize }

func (*DenseProof) isLayerProof()      {}
func (*ConvProof) isLayerProof()       {}
func (*PoolProof) isLayerProof()       {}
func (*FlattenProof) isLayerProof()    {}
func (*ActivationProof) isLayerProof() {}
func (*RequantProof) isLayerProof()    {}

func (p *DenseProof) Size() int { return 3 + p.Sumcheck.Size() }
func (p *ConvProof) Size() int {
	return 3 + p.KernelPhase.Size() + p.InputPhase.Size()
}
func (p *PoolProof) Size() int    { return 1 + p.Sumcheck.Size() }
func (p *FlattenProof) Size() int { return 0 }
func (p *ActivationProof) Size() int {
	return lookupSize(&p.Lookup)
}
func (p *RequantProof) Size() int {
	return lookupSize(&p.Lookup)
}

func lookupSize(p *lookup.Proof) int {
	return 2 + p.Witness.Size() + p.TableSide.Size() + len(p.HelperEvals) + len(p.BaseEvals)
}

// PolyOpening closes the claims made on one committed table: the
// accumulation merges them into one claim, the opening proves it.
type PolyOpening struct {
	ID           commit.PolyID
	Accumulation commit.AccumulationProof
	Opening      commit.Opening
}

// Proof is the whole non-interactive proof of one inference. Layers are
// indexed like the model layers; openings follow the claim book order.
type Proof struct {
	Layers   []LayerProof
	Openings []PolyOpening
}

// Size returns the number of field elements of the layer reductions and of
// the accumulations.
func (p *Proof) Size() int {
	n := 0
	for _, l := range p.Layers {
		n += l.Size()
	}
	for i := range p.Openings {
		n += 1 + p.Openings[i].Accumulation.Sumcheck.Size()
	}
	return n
}
