package model

import "fmt"

type Kind uint8

const (
	KindDense Kind = iota
	KindConvolution
	KindActivation
	KindRequantize
	KindPool
	KindFlatten
)

var kindNames = [...]string{"dense", "convolution", "activation", "requantize", "pool", "flatten"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Layer is a closed set of operators: Dense, Convolution, Activation,
// Requantize, Pool and Flatten. Consumers dispatch with a type switch.
type Layer interface {
	Kind() Kind
	// OutputShape returns the output shape for an input of shape in.
	OutputShape(in []int) ([]int, error)
	// OutputBits returns the declared signed width of every output value
	// for inputs of inBits bits.
	OutputBits(inBits int) (int, error)
	// PadValue returns the value produced at a padding entry whose input
	// is in.
	PadValue(in int64) int64
	// Public strips the parameter values, keeping shapes and
	// quantization parameters.
	Public() Layer
	Describe() string

	isLayer()
}

func checkRank(kind Kind, in []int, rank int) error {
	if len(in) != rank {
		return shapeErr(kind, "expected a rank %d input, got shape %v", rank, in)
	}
	for _, d := range in {
		if d <= 0 {
			return shapeErr(kind, "non-positive dimension in shape %v", in)
		}
	}
	return nil
}
