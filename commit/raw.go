package commit

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/sha3"

	"github.com/leopardracer/deep-prove/poly"
	"github.com/leopardracer/deep-prove/utils"
)

// RawScheme commits to the sha3-256 digest of the table and opens by
// revealing the whole table. It is binding but not hiding.
type RawScheme struct{}

func (RawScheme) Name() string { return Raw }

func rawDigest(evals []fr.Element) []byte {
	buf := utils.OutputBuf{}
	buf.AppendFields(evals)
	d := sha3.Sum256(buf.Bytes())
	return d[:]
}

func (RawScheme) Commit(evals []fr.Element) (Commitment, error) {
	if !utils.IsPowerOfTwo(len(evals)) {
		return nil, fmt.Errorf("table length %d is not a power of two", len(evals))
	}
	return rawDigest(evals), nil
}

func (RawScheme) Open(evals []fr.Element, point []fr.Element) (fr.Element, Opening, error) {
	v, err := poly.MLE(evals).Eval(point)
	if err != nil {
		return v, nil, err
	}
	buf := utils.OutputBuf{}
	buf.AppendFields(evals)
	return v, buf.Bytes(), nil
}

func (RawScheme) Verify(c Commitment, point []fr.Element, value fr.Element, o Opening) error {
	in := utils.NewInputBuf(o)
	evals, err := in.ReadFields()
	if err != nil || in.Len() != 0 {
		return fmt.Errorf("%w: malformed raw opening", ErrInvalidOpening)
	}
	if !bytes.Equal(rawDigest(evals), c) {
		return fmt.Errorf("%w: digest mismatch", ErrInvalidOpening)
	}
	v, err := poly.MLE(evals).Eval(point)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOpening, err)
	}
	if !v.Equal(&value) {
		return fmt.Errorf("%w: value mismatch", ErrInvalidOpening)
	}
	return nil
}
