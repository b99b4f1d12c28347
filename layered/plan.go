// Package layered turns a quantized model into the sequence of reductions
// proven by the GKR engine: one Step per layer, each listing the sumcheck
// instances it runs and the gate wiring it needs.
package layered

import (
	"fmt"

	"github.com/leopardracer/deep-prove/lookup"
	"github.com/leopardracer/deep-prove/model"
	"github.com/leopardracer/deep-prove/utils"
	"github.com/leopardracer/deep-prove/zkerr"
)

// Instance declares a sumcheck run by a step. The verifier takes the
// number of rounds and the degree bound from here, never from the proof.
type Instance struct {
	Name    string
	NumVars int
	Degree  int
}

const (
	DegreeProduct       = 2
	DegreeLookupWitness = lookup.DegreeWitness
	DegreeLookupTable   = lookup.DegreeTable
)

type Step struct {
	Index int
	// Layer is the public form of the layer: parameter values are absent.
	Layer     model.Layer
	InShape   []int
	OutShape  []int
	InVars    int
	OutVars   int
	InBits    int
	OutBits   int
	InPad     int64
	OutPad    int64
	Instances []Instance
	// Wiring is set for Convolution and Pool steps.
	Wiring *Wiring
}

func (s *Step) Rounds() int {
	n := 0
	for _, inst := range s.Instances {
		n += inst.NumVars
	}
	return n
}

type Plan struct {
	Model *model.Model
	Steps []Step
}

// Compile builds the plan of m. Only the public form of m is kept.
func Compile(m *model.Model) (*Plan, error) {
	bs, err := m.Boundaries()
	if err != nil {
		return nil, err
	}
	pub := m.Public()
	plan := &Plan{Model: pub, Steps: make([]Step, len(pub.Layers))}
	for i, l := range pub.Layers {
		in, out := bs[i], bs[i+1]
		s := Step{
			Index:    i,
			Layer:    l,
			InShape:  in.Shape,
			OutShape: out.Shape,
			InVars:   utils.Log2Ceil(model.ShapeLen(in.Shape)),
			OutVars:  utils.Log2Ceil(model.ShapeLen(out.Shape)),
			InBits:   in.Bits,
			OutBits:  out.Bits,
			InPad:    in.Pad,
			OutPad:   out.Pad,
		}
		if err := s.declare(); err != nil {
			return nil, &zkerr.LayerError{Layer: i, Err: err}
		}
		plan.Steps[i] = s
	}
	return plan, nil
}

func (s *Step) declare() error {
	switch l := s.Layer.(type) {
	case *model.Dense:
		s.Instances = []Instance{{Name: "dense", NumVars: s.InVars, Degree: DegreeProduct}}
	case *model.Convolution:
		s.Wiring = ConvWiring(l, s.InShape)
		s.Instances = []Instance{
			{Name: "conv/kernel", NumVars: utils.Log2Ceil(int(s.Wiring.KernelLen)), Degree: DegreeProduct},
			{Name: "conv/input", NumVars: s.InVars, Degree: DegreeProduct},
		}
	case *model.Pool:
		s.Wiring = PoolWiring(l, s.InShape)
		s.Instances = []Instance{{Name: "pool", NumVars: s.InVars, Degree: DegreeProduct}}
	case *model.Activation:
		s.Instances = []Instance{
			{Name: "lookup/witness", NumVars: s.InVars, Degree: DegreeLookupWitness},
			{Name: "lookup/table", NumVars: l.InBits, Degree: DegreeLookupTable},
		}
	case *model.Requantize:
		s.Instances = []Instance{
			{Name: "lookup/witness", NumVars: s.InVars, Degree: DegreeLookupWitness},
			{Name: "lookup/table", NumVars: l.AfterBits, Degree: DegreeLookupTable},
		}
	case *model.Flatten:
	default:
		return zkerr.Shape("unsupported layer %T", l)
	}
	if s.Wiring != nil {
		if err := s.Wiring.Validate(); err != nil {
			return zkerr.Shape("%s wiring: %v", s.Layer.Kind(), err)
		}
	}
	return nil
}

func (s *Step) String() string {
	return fmt.Sprintf("%d %s in=%v out=%v", s.Index, s.Layer.Describe(), s.InShape, s.OutShape)
}

// InputVars returns the number of variables of the model input table.
func (p *Plan) InputVars() int {
	return p.Steps[0].InVars
}

// OutputVars returns the number of variables of the model output table.
func (p *Plan) OutputVars() int {
	return p.Steps[len(p.Steps)-1].OutVars
}

func (p *Plan) OutputShape() []int {
	return p.Steps[len(p.Steps)-1].OutShape
}

func (p *Plan) OutputPad() int64 {
	return p.Steps[len(p.Steps)-1].OutPad
}
