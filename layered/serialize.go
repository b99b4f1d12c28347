package layered

import (
	"github.com/leopardracer/deep-prove/model"
	"github.com/leopardracer/deep-prove/utils"
)

const planMagic = 3626604230490605892

func appendShape(o *utils.OutputBuf, shape []int) {
	o.AppendUint64(uint64(len(shape)))
	for _, d := range shape {
		o.AppendUint64(uint64(d))
	}
}

// Serialize returns the canonical public description of the plan. Both
// sides of a session absorb it, so any change of topology, widths, pads or
// public layer parameters changes every challenge.
func (p *Plan) Serialize() []byte {
	o := utils.OutputBuf{}
	o.AppendUint64(planMagic)
	appendShape(&o, p.Model.InputShape)
	o.AppendUint64(uint64(p.Model.InputBits))
	o.AppendUint64(uint64(len(p.Steps)))
	for i := range p.Steps {
		s := &p.Steps[i]
		o.AppendUint64(uint64(s.Layer.Kind()))
		appendShape(&o, s.InShape)
		appendShape(&o, s.OutShape)
		o.AppendUint64(uint64(s.InBits))
		o.AppendUint64(uint64(s.OutBits))
		o.AppendUint64(uint64(s.InPad))
		o.AppendUint64(uint64(s.OutPad))
		switch l := s.Layer.(type) {
		case *model.Dense:
			appendShape(&o, l.Weights.Shape)
		case *model.Convolution:
			appendShape(&o, l.Kernel.Shape)
			o.AppendUint64(uint64(l.Stride))
		case *model.Pool:
			o.AppendUint64(uint64(l.Size))
			o.AppendUint64(uint64(l.Stride))
		case *model.Activation:
			o.AppendUint64(uint64(l.Func))
			o.AppendUint64(uint64(l.InBits))
			o.AppendUint64(uint64(l.Lo))
			o.AppendUint64(uint64(l.Hi))
			o.AppendUint64(uint64(len(l.Table)))
			for _, y := range l.Table {
				o.AppendUint64(uint64(y))
			}
		case *model.Requantize:
			o.AppendUint64(uint64(l.RightShift))
			o.AppendUint64(uint64(l.Range))
			o.AppendUint64(uint64(l.AfterBits))
		}
		o.AppendUint64(uint64(len(s.Instances)))
		for _, inst := range s.Instances {
			o.AppendBytes([]byte(inst.Name))
			o.AppendUint64(uint64(inst.NumVars))
			o.AppendUint64(uint64(inst.Degree))
		}
	}
	return o.Bytes()
}
