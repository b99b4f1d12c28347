package model

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/leopardracer/deep-prove/zkerr"
)

var encMode cbor.EncMode

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
}

type layerWire struct {
	Kind       Kind         `cbor:"kind"`
	Dense      *Dense       `cbor:"dense,omitempty"`
	Conv       *Convolution `cbor:"conv,omitempty"`
	Activation *Activation  `cbor:"activation,omitempty"`
	Requantize *Requantize  `cbor:"requantize,omitempty"`
	Pool       *Pool        `cbor:"pool,omitempty"`
}

type modelWire struct {
	InputShape []int       `cbor:"input_shape"`
	InputBits  int         `cbor:"input_bits"`
	Layers     []layerWire `cbor:"layers"`
}

func toWire(l Layer) layerWire {
	w := layerWire{Kind: l.Kind()}
	switch l := l.(type) {
	case *Dense:
		w.Dense = l
	case *Convolution:
		w.Conv = l
	case *Activation:
		w.Activation = l
	case *Requantize:
		w.Requantize = l
	case *Pool:
		w.Pool = l
	}
	return w
}

func fromWire(w layerWire) (Layer, error) {
	missing := zkerr.Shape("missing %s parameters", w.Kind)
	switch w.Kind {
	case KindDense:
		if w.Dense == nil {
			return nil, missing
		}
		return w.Dense, nil
	case KindConvolution:
		if w.Conv == nil {
			return nil, missing
		}
		return w.Conv, nil
	case KindActivation:
		if w.Activation == nil {
			return nil, missing
		}
		return w.Activation, nil
	case KindRequantize:
		if w.Requantize == nil {
			return nil, missing
		}
		return w.Requantize, nil
	case KindPool:
		if w.Pool == nil {
			return nil, missing
		}
		return w.Pool, nil
	case KindFlatten:
		return &Flatten{}, nil
	}
	return nil, zkerr.Shape("unknown layer kind %d", w.Kind)
}

func (m *Model) MarshalCBOR() ([]byte, error) {
	w := modelWire{InputShape: m.InputShape, InputBits: m.InputBits, Layers: make([]layerWire, len(m.Layers))}
	for i, l := range m.Layers {
		w.Layers[i] = toWire(l)
	}
	return encMode.Marshal(w)
}

func (m *Model) UnmarshalCBOR(data []byte) error {
	var w modelWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	layers := make([]Layer, len(w.Layers))
	for i := range w.Layers {
		l, err := fromWire(w.Layers[i])
		if err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
		layers[i] = l
	}
	*m = Model{InputShape: w.InputShape, InputBits: w.InputBits, Layers: layers}
	return nil
}

// Encode serializes a model with deterministic CBOR.
func Encode(m *Model) ([]byte, error) {
	return m.MarshalCBOR()
}

// Decode parses and validates a model.
func Decode(data []byte) (*Model, error) {
	m := new(Model)
	if err := m.UnmarshalCBOR(data); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func EncodeTensor(t Tensor) ([]byte, error) {
	return encMode.Marshal(t)
}

func DecodeTensor(data []byte) (Tensor, error) {
	var t Tensor
	if err := cbor.Unmarshal(data, &t); err != nil {
		return t, err
	}
	return t, t.Validate()
}

// Marshal encodes any value with the deterministic encoding used for models.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}
