package gkr

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/leopardracer/deep-prove/commit"
	"github.com/leopardracer/deep-prove/lookup"
	"github.com/leopardracer/deep-prove/model"
	"github.com/leopardracer/deep-prove/poly"
	"github.com/leopardracer/deep-prove/sumcheck"
	"github.com/leopardracer/deep-prove/utils"
)

const proofMagic = 7310293695364789840

var errTooLong = errors.New("length exceeds the remaining input")

func appendSumcheck(o *utils.OutputBuf, p *sumcheck.Proof) {
	o.AppendUint32(uint32(len(p.RoundPolys)))
	for _, rp := range p.RoundPolys {
		o.AppendFields(rp)
	}
}

func appendLookup(o *utils.OutputBuf, p *lookup.Proof) {
	o.AppendUint32(uint32(len(p.Helpers)))
	for _, c := range p.Helpers {
		o.AppendBytes(c)
	}
	o.AppendField(&p.Sum)
	appendSumcheck(o, &p.Witness)
	o.AppendFields(p.HelperEvals)
	o.AppendFields(p.BaseEvals)
	appendSumcheck(o, &p.TableSide)
	o.AppendField(&p.Multiplicity)
}

// Serialize encodes the proof. Lengths are little-endian, field elements
// take 32 bytes and commitments and openings are length-prefixed.
func (p *Proof) Serialize() []byte {
	o := utils.OutputBuf{}
	o.AppendUint64(proofMagic)
	o.AppendUint32(uint32(len(p.Layers)))
	for _, l := range p.Layers {
		o.AppendUint32(uint32(l.Kind()))
		switch l := l.(type) {
		case *DenseProof:
			o.AppendField(&l.Bias)
			appendSumcheck(&o, &l.Sumcheck)
			o.AppendField(&l.Weight)
			o.AppendField(&l.Input)
		case *ConvProof:
			o.AppendField(&l.Bias)
			appendSumcheck(&o, &l.KernelPhase)
			o.AppendField(&l.Kernel)
			appendSumcheck(&o, &l.InputPhase)
			o.AppendField(&l.Input)
		case *PoolProof:
			appendSumcheck(&o, &l.Sumcheck)
			o.AppendField(&l.Input)
		case *FlattenProof:
		case *ActivationProof:
			o.AppendBytes(l.Output)
			o.AppendBytes(l.Multiplicity)
			appendLookup(&o, &l.Lookup)
		case *RequantProof:
			o.AppendBytes(l.Output)
			o.AppendUint32(uint32(len(l.Chunks)))
			for _, c := range l.Chunks {
				o.AppendBytes(c)
			}
			o.AppendBytes(l.Multiplicity)
			appendLookup(&o, &l.Lookup)
		}
	}
	o.AppendUint32(uint32(len(p.Openings)))
	for i := range p.Openings {
		op := &p.Openings[i]
		o.AppendUint32(uint32(op.ID.Layer))
		o.AppendUint32(uint32(op.ID.Kind))
		o.AppendUint32(uint32(op.ID.Index))
		appendSumcheck(&o, &op.Accumulation.Sumcheck)
		o.AppendField(&op.Accumulation.Value)
		o.AppendBytes(op.Opening)
	}
	return o.Bytes()
}

type proofReader struct {
	in  *utils.InputBuf
	err error
}

// count reads a length and bounds it by the remaining input, each entry
// taking at least minSize bytes.
func (r *proofReader) count(minSize int) int {
	if r.err != nil {
		return 0
	}
	n, err := r.in.ReadUint32()
	if err != nil {
		r.err = err
		return 0
	}
	if uint64(n)*uint64(minSize) > uint64(r.in.Len()) {
		r.err = errTooLong
		return 0
	}
	return int(n)
}

func (r *proofReader) field() fr.Element {
	if r.err != nil {
		return fr.Element{}
	}
	e, err := r.in.ReadField()
	r.err = err
	return e
}

func (r *proofReader) fields() []fr.Element {
	if r.err != nil {
		return nil
	}
	es, err := r.in.ReadFields()
	r.err = err
	return es
}

func (r *proofReader) bytes() []byte {
	if r.err != nil {
		return nil
	}
	b, err := r.in.ReadBytes()
	r.err = err
	return b
}

func (r *proofReader) sumcheck() sumcheck.Proof {
	n := r.count(4)
	p := sumcheck.Proof{RoundPolys: make([]poly.Univariate, n)}
	for k := range p.RoundPolys {
		p.RoundPolys[k] = r.fields()
	}
	return p
}

func (r *proofReader) commitments() []commit.Commitment {
	res := make([]commit.Commitment, r.count(4))
	for k := range res {
		res[k] = r.bytes()
	}
	return res
}

func (r *proofReader) lookup() lookup.Proof {
	var p lookup.Proof
	p.Helpers = r.commitments()
	p.Sum = r.field()
	p.Witness = r.sumcheck()
	p.HelperEvals = r.fields()
	p.BaseEvals = r.fields()
	p.TableSide = r.sumcheck()
	p.Multiplicity = r.field()
	return p
}

func (r *proofReader) layer() LayerProof {
	if r.err != nil {
		return nil
	}
	kind, err := r.in.ReadUint32()
	if err != nil {
		r.err = err
		return nil
	}
	switch model.Kind(kind) {
	case model.KindDense:
		l := &DenseProof{}
		l.Bias = r.field()
		l.Sumcheck = r.sumcheck()
		l.Weight = r.field()
		l.Input = r.field()
		return l
	case model.KindConvolution:
		l := &ConvProof{}
		l.Bias = r.field()
		l.KernelPhase = r.sumcheck()
		l.Kernel = r.field()
		l.InputPhase = r.sumcheck()
		l.Input = r.field()
		return l
	case model.KindPool:
		l := &PoolProof{}
		l.Sumcheck = r.sumcheck()
		l.Input = r.field()
		return l
	case model.KindFlatten:
		return &FlattenProof{}
	case model.KindActivation:
		l := &ActivationProof{}
		l.Output = r.bytes()
		l.Multiplicity = r.bytes()
		l.Lookup = r.lookup()
		return l
	case model.KindRequantize:
		l := &RequantProof{}
		l.Output = r.bytes()
		l.Chunks = r.commitments()
		l.Multiplicity = r.bytes()
		l.Lookup = r.lookup()
		return l
	}
	r.err = fmt.Errorf("unknown layer proof kind %d", kind)
	return nil
}

// DeserializeProof decodes a proof written by Serialize. Trailing bytes and
// non-canonical field elements are errors.
func DeserializeProof(data []byte) (*Proof, error) {
	r := &proofReader{in: utils.NewInputBuf(data)}
	magic, err := r.in.ReadUint64()
	if err != nil {
		return nil, err
	}
	if magic != proofMagic {
		return nil, fmt.Errorf("invalid proof magic %d", magic)
	}
	p := &Proof{Layers: make([]LayerProof, r.count(4))}
	for i := range p.Layers {
		p.Layers[i] = r.layer()
	}
	p.Openings = make([]PolyOpening, r.count(12))
	for i := range p.Openings {
		op := &p.Openings[i]
		var ids [3]uint32
		for k := range ids {
			if r.err == nil {
				ids[k], r.err = r.in.ReadUint32()
			}
		}
		if r.err == nil && ids[1] > uint32(commit.PolyMultiplicity) {
			r.err = fmt.Errorf("unknown polynomial kind %d", ids[1])
		}
		op.ID = commit.PolyID{Layer: int(ids[0]), Kind: commit.PolyKind(ids[1]), Index: int(ids[2])}
		op.Accumulation.Sumcheck = r.sumcheck()
		op.Accumulation.Value = r.field()
		op.Opening = r.bytes()
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.in.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after the proof", r.in.Len())
	}
	return p, nil
}
