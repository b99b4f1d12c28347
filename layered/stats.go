package layered

import (
	"github.com/leopardracer/deep-prove/model"
)

type LayerStats struct {
	Kind model.Kind
	// number of sumcheck rounds run by the layer
	NbRounds int
	// number of round polynomial coefficients sent by the layer
	NbCoeffs int
	NbMul    int
	NbAdd    int
	// number of looked-up values, padding included
	NbLookups int
}

type Stats struct {
	// number of layers in the model
	NbLayer int
	// number of sumcheck instances over all layers
	NbSumcheck int
	NbRounds   int
	NbCoeffs   int
	// number of mul/add gates of wired layers
	NbMul     int
	NbAdd     int
	NbLookups int
	// number of variables of the input and output tables
	InputVars  int
	OutputVars int
	Layers     []LayerStats
}

// GetStats collects the size of every reduction of the plan.
func (p *Plan) GetStats() Stats {
	ar := Stats{
		NbLayer:    len(p.Steps),
		InputVars:  p.InputVars(),
		OutputVars: p.OutputVars(),
		Layers:     make([]LayerStats, len(p.Steps)),
	}
	for i := range p.Steps {
		s := &p.Steps[i]
		r := &ar.Layers[i]
		r.Kind = s.Layer.Kind()
		for _, inst := range s.Instances {
			r.NbRounds += inst.NumVars
			r.NbCoeffs += inst.NumVars * (inst.Degree + 1)
		}
		if s.Wiring != nil {
			r.NbMul = len(s.Wiring.Mul)
			r.NbAdd = len(s.Wiring.Add)
		}
		switch l := s.Layer.(type) {
		case *model.Activation:
			r.NbLookups = 1 << s.InVars
		case *model.Requantize:
			cols := l.NumChunks() + 1
			if l.TopSlack() > 0 {
				cols++
			}
			r.NbLookups = cols << s.InVars
		}
		ar.NbSumcheck += len(s.Instances)
		ar.NbRounds += r.NbRounds
		ar.NbCoeffs += r.NbCoeffs
		ar.NbMul += r.NbMul
		ar.NbAdd += r.NbAdd
		ar.NbLookups += r.NbLookups
	}
	return ar
}
