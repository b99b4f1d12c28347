package model

import "fmt"

// MaxLookupBits bounds the width of every lookup table domain.
const MaxLookupBits = 24

type ActFunc uint8

const (
	ActReLU ActFunc = iota
	ActClip
	ActTable
)

func (f ActFunc) String() string {
	switch f {
	case ActReLU:
		return "relu"
	case ActClip:
		return "clip"
	case ActTable:
		return "table"
	}
	return fmt.Sprintf("act(%d)", f)
}

// Activation applies a function to every input value. Its domain is the
// signed range of InBits bits; it is proven by a lookup into the table of
// every (x, f(x)) over that domain.
type Activation struct {
	Func   ActFunc `cbor:"func"`
	InBits int     `cbor:"in_bits"`
	Lo     int64   `cbor:"lo,omitempty"`
	Hi     int64   `cbor:"hi,omitempty"`
	// Table holds f(x) at index x + 2^(InBits-1) for ActTable.
	Table []int64 `cbor:"table,omitempty"`
}

func ReLU(inBits int) *Activation {
	return &Activation{Func: ActReLU, InBits: inBits}
}

func Clip(inBits int, lo, hi int64) *Activation {
	return &Activation{Func: ActClip, InBits: inBits, Lo: lo, Hi: hi}
}

func TableActivation(inBits int, table []int64) *Activation {
	return &Activation{Func: ActTable, InBits: inBits, Table: table}
}

func (a *Activation) Kind() Kind { return KindActivation }
func (a *Activation) isLayer()   {}

// Domain returns the bounds of the input domain, lo inclusive and hi
// exclusive.
func (a *Activation) Domain() (lo, hi int64) {
	return -(int64(1) << (a.InBits - 1)), int64(1) << (a.InBits - 1)
}

func (a *Activation) validate() error {
	if a.InBits <= 0 || a.InBits > MaxLookupBits {
		return rangeErr(KindActivation, "input width %d outside [1, %d]", a.InBits, MaxLookupBits)
	}
	switch a.Func {
	case ActReLU:
	case ActClip:
		if a.Lo > a.Hi {
			return rangeErr(KindActivation, "clip bounds [%d, %d] are empty", a.Lo, a.Hi)
		}
	case ActTable:
		if len(a.Table) != 1<<a.InBits {
			return shapeErr(KindActivation, "table of %d entries for a %d-bit domain", len(a.Table), a.InBits)
		}
	default:
		return shapeErr(KindActivation, "unknown function %v", a.Func)
	}
	return nil
}

// Eval applies the function to x, which must lie in the domain.
func (a *Activation) Eval(x int64) (int64, error) {
	lo, hi := a.Domain()
	if x < lo || x >= hi {
		return 0, rangeErr(KindActivation, "input %d outside the %d-bit domain", x, a.InBits)
	}
	switch a.Func {
	case ActReLU:
		if x < 0 {
			return 0, nil
		}
		return x, nil
	case ActClip:
		if x < a.Lo {
			return a.Lo, nil
		}
		if x > a.Hi {
			return a.Hi, nil
		}
		return x, nil
	case ActTable:
		return a.Table[x-lo], nil
	}
	return 0, shapeErr(KindActivation, "unknown function %v", a.Func)
}

// Entries returns the lookup table: every input of the domain in increasing
// order and the matching outputs.
func (a *Activation) Entries() (inputs, outputs []int64) {
	lo, hi := a.Domain()
	inputs = make([]int64, 0, hi-lo)
	outputs = make([]int64, 0, hi-lo)
	for x := lo; x < hi; x++ {
		y, _ := a.Eval(x)
		inputs = append(inputs, x)
		outputs = append(outputs, y)
	}
	return inputs, outputs
}

func (a *Activation) OutputShape(in []int) ([]int, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	if err := checkRank(KindActivation, in, len(in)); err != nil {
		return nil, err
	}
	return append([]int(nil), in...), nil
}

func (a *Activation) OutputBits(inBits int) (int, error) {
	if err := a.validate(); err != nil {
		return 0, err
	}
	if inBits > a.InBits {
		return 0, rangeErr(KindActivation, "%d-bit input for a %d-bit domain", inBits, a.InBits)
	}
	switch a.Func {
	case ActReLU:
		return a.InBits, nil
	case ActClip:
		m := abs(a.Lo)
		if abs(a.Hi) > m {
			m = abs(a.Hi)
		}
		return BitsFor(m), nil
	}
	var m int64
	for _, y := range a.Table {
		if abs(y) > m {
			m = abs(y)
		}
	}
	return BitsFor(m), nil
}

// PadValue returns f(in). Inputs outside the domain are rejected when the
// model boundaries are computed.
func (a *Activation) PadValue(in int64) int64 {
	y, _ := a.Eval(in)
	return y
}

func (a *Activation) Public() Layer {
	return &Activation{Func: a.Func, InBits: a.InBits, Lo: a.Lo, Hi: a.Hi, Table: append([]int64(nil), a.Table...)}
}

func (a *Activation) Describe() string {
	switch a.Func {
	case ActClip:
		return fmt.Sprintf("Activation: clip[%d, %d] on %d bits", a.Lo, a.Hi, a.InBits)
	}
	return fmt.Sprintf("Activation: %s on %d bits", a.Func, a.InBits)
}
