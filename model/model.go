package model

import (
	"fmt"
	"strings"

	"github.com/leopardracer/deep-prove/zkerr"
)

// Model is an ordered list of layers applied to an input of InputShape whose
// values fit InputBits bits.
type Model struct {
	InputShape []int
	InputBits  int
	Layers     []Layer
}

// Boundary describes the tensor between two layers: boundary k is the input
// of layer k, boundary len(Layers) is the model output.
type Boundary struct {
	Shape []int
	Bits  int
	// Pad is the value of the padding entries of the tensor's table.
	Pad int64
}

// Boundaries walks the layers and returns the shape, width and pad value of
// every boundary.
func (m *Model) Boundaries() ([]Boundary, error) {
	if len(m.Layers) == 0 {
		return nil, zkerr.Shape("model without layers")
	}
	if m.InputBits <= 0 || m.InputBits > MaxBits {
		return nil, zkerr.Range("input width %d outside [1, %d]", m.InputBits, MaxBits)
	}
	res := make([]Boundary, 0, len(m.Layers)+1)
	cur := Boundary{Shape: append([]int(nil), m.InputShape...), Bits: m.InputBits}
	if err := checkRank(KindFlatten, cur.Shape, len(cur.Shape)); err != nil || len(cur.Shape) == 0 {
		return nil, zkerr.Shape("invalid input shape %v", m.InputShape)
	}
	res = append(res, cur)
	for i, l := range m.Layers {
		shape, err := l.OutputShape(cur.Shape)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		bits, err := l.OutputBits(cur.Bits)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if err := checkPad(l, cur.Pad); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if err := checkAccumulator(l, cur.Bits); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		cur = Boundary{Shape: shape, Bits: bits, Pad: l.PadValue(cur.Pad)}
		res = append(res, cur)
	}
	return res, nil
}

func checkPad(l Layer, pad int64) error {
	switch l := l.(type) {
	case *Activation:
		_, err := l.Eval(pad)
		return err
	case *Requantize:
		_, err := l.Apply(pad)
		return err
	}
	return nil
}

// checkAccumulator rejects parameters whose accumulators can overflow
// int64 for inputs of inBits bits. Public layers carry no values and pass.
func checkAccumulator(l Layer, inBits int) error {
	inAbs := int64(1) << (inBits - 1)
	var err error
	switch l := l.(type) {
	case *Dense:
		_, err = l.AccumulatorBound(inAbs)
	case *Convolution:
		_, err = l.AccumulatorBound(inAbs)
	}
	return err
}

func (m *Model) Validate() error {
	_, err := m.Boundaries()
	return err
}

// OutputShape returns the shape of the model output.
func (m *Model) OutputShape() ([]int, error) {
	b, err := m.Boundaries()
	if err != nil {
		return nil, err
	}
	return b[len(b)-1].Shape, nil
}

// Public returns the model with every parameter value stripped.
func (m *Model) Public() *Model {
	res := &Model{
		InputShape: append([]int(nil), m.InputShape...),
		InputBits:  m.InputBits,
		Layers:     make([]Layer, len(m.Layers)),
	}
	for i, l := range m.Layers {
		res.Layers[i] = l.Public()
	}
	return res
}

func (m *Model) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Input: %v (%d bits)\n", m.InputShape, m.InputBits)
	for i, l := range m.Layers {
		fmt.Fprintf(&sb, "%3d %s\n", i, l.Describe())
	}
	return sb.String()
}
