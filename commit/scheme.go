// Package commit binds the protocol's terminal claims to polynomial
// commitments of the model parameters, the network input and the auxiliary
// witness columns of lookup layers.
package commit

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Scheme names accepted by NewScheme.
const (
	Hyrax = "hyrax"
	Raw   = "raw"
)

// ErrInvalidOpening is returned by Scheme.Verify for an opening that does
// not match the commitment, the point or the value.
var ErrInvalidOpening = errors.New("invalid opening")

// Commitment and Opening are opaque to the protocol: it absorbs them into
// the transcript and forwards them to the scheme.
type (
	Commitment []byte
	Opening    []byte
)

// Scheme is a multilinear polynomial commitment scheme over tables of
// length 2^n.
type Scheme interface {
	Name() string
	Commit(evals []fr.Element) (Commitment, error)
	Open(evals []fr.Element, point []fr.Element) (fr.Element, Opening, error)
	// Verify returns nil when o proves that the committed table evaluates
	// to value at point.
	Verify(c Commitment, point []fr.Element, value fr.Element, o Opening) error
}

func NewScheme(name string) (Scheme, error) {
	switch name {
	case Hyrax, "":
		return NewHyrax(), nil
	case Raw:
		return RawScheme{}, nil
	}
	return nil, fmt.Errorf("unknown commitment scheme %q", name)
}
