package commit

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/leopardracer/deep-prove/field"
	"github.com/leopardracer/deep-prove/poly"
	"github.com/leopardracer/deep-prove/utils"
)

var hyraxDST = []byte("DEEP-PROVE-HYRAX-BN254-G1")

// HyraxScheme arranges a table of 2^n entries as a matrix of 2^(n/2) rows
// and commits to every row with a Pedersen vector commitment. Generators are
// hashed to the curve, so the setup is transparent.
type HyraxScheme struct {
	mu   sync.Mutex
	gens []bn254.G1Affine
}

func NewHyrax() *HyraxScheme {
	return &HyraxScheme{}
}

func (h *HyraxScheme) Name() string { return Hyrax }

func (h *HyraxScheme) generators(n int) ([]bn254.G1Affine, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.gens); i < n; i++ {
		g, err := bn254.HashToG1([]byte("generator-"+strconv.Itoa(i)), hyraxDST)
		if err != nil {
			return nil, err
		}
		h.gens = append(h.gens, g)
	}
	return h.gens[:n], nil
}

// split returns the number of row and column variables of a table.
func split(numVars int) (rowVars, colVars int) {
	colVars = (numVars + 1) / 2
	return numVars - colVars, colVars
}

func (h *HyraxScheme) Commit(evals []fr.Element) (Commitment, error) {
	if !utils.IsPowerOfTwo(len(evals)) {
		return nil, fmt.Errorf("table length %d is not a power of two", len(evals))
	}
	numVars := utils.Log2Ceil(len(evals))
	rowVars, colVars := split(numVars)
	cols := 1 << colVars
	gens, err := h.generators(cols)
	if err != nil {
		return nil, err
	}
	rows := make([]bn254.G1Affine, 1<<rowVars)
	err = utils.ParallelizeErr(len(rows), func(start, end int) error {
		for i := start; i < end; i++ {
			if _, err := rows[i].MultiExp(gens, evals[i*cols:(i+1)*cols], ecc.MultiExpConfig{NbTasks: 1}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	buf := utils.OutputBuf{}
	buf.AppendUint32(uint32(numVars))
	for i := range rows {
		b := rows[i].Bytes()
		buf.AppendBytes(b[:])
	}
	return buf.Bytes(), nil
}

// hyraxRowSize is the encoded size of one row commitment: a length prefix
// and a compressed point.
const hyraxRowSize = 4 + bn254.SizeOfG1AffineCompressed

// decodeHyraxCommitment parses c as a commitment to a table of numVars
// variables. The row count is checked against the input length before
// anything is allocated.
func decodeHyraxCommitment(c Commitment, numVars int) ([]bn254.G1Affine, error) {
	in := utils.NewInputBuf(c)
	nv, err := in.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("%w: malformed hyrax commitment", ErrInvalidOpening)
	}
	if uint64(nv) != uint64(numVars) {
		return nil, fmt.Errorf("%w: commitment has %d variables, point has %d", ErrInvalidOpening, nv, numVars)
	}
	rowVars, _ := split(numVars)
	if rowVars >= 32 || (1<<rowVars)*hyraxRowSize != in.Len() {
		return nil, fmt.Errorf("%w: hyrax commitment of %d bytes for %d row variables", ErrInvalidOpening, len(c), rowVars)
	}
	rows := make([]bn254.G1Affine, 1<<rowVars)
	for i := range rows {
		b, err := in.ReadBytes()
		if err != nil || len(b) != bn254.SizeOfG1AffineCompressed {
			return nil, fmt.Errorf("%w: malformed hyrax commitment", ErrInvalidOpening)
		}
		if _, err := rows[i].SetBytes(b); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOpening, err)
		}
	}
	return rows, nil
}

// Open reveals t = L^T * F where L is the eq table of the row part of point.
func (h *HyraxScheme) Open(evals []fr.Element, point []fr.Element) (fr.Element, Opening, error) {
	var value fr.Element
	if len(evals) != 1<<len(point) {
		return value, nil, fmt.Errorf("table of length %d opened at a point of %d variables", len(evals), len(point))
	}
	_, colVars := split(len(point))
	t := poly.MatrixRows(evals, point[colVars:], colVars)
	value = field.InnerProduct(t, poly.EqTable(point[:colVars]))
	buf := utils.OutputBuf{}
	buf.AppendFields(t)
	return value, buf.Bytes(), nil
}

func (h *HyraxScheme) Verify(c Commitment, point []fr.Element, value fr.Element, o Opening) error {
	numVars := len(point)
	rows, err := decodeHyraxCommitment(c, numVars)
	if err != nil {
		return err
	}
	_, colVars := split(numVars)
	in := utils.NewInputBuf(o)
	t, err := in.ReadFields()
	if err != nil || in.Len() != 0 || len(t) != 1<<colVars {
		return fmt.Errorf("%w: malformed hyrax opening", ErrInvalidOpening)
	}
	gens, err := h.generators(len(t))
	if err != nil {
		return err
	}
	var lhs, rhs bn254.G1Affine
	if _, err := lhs.MultiExp(rows, poly.EqTable(point[colVars:]), ecc.MultiExpConfig{}); err != nil {
		return err
	}
	if _, err := rhs.MultiExp(gens, t, ecc.MultiExpConfig{}); err != nil {
		return err
	}
	if !lhs.Equal(&rhs) {
		return fmt.Errorf("%w: row combination does not match the commitment", ErrInvalidOpening)
	}
	if v := field.InnerProduct(t, poly.EqTable(point[:colVars])); !v.Equal(&value) {
		return fmt.Errorf("%w: value mismatch", ErrInvalidOpening)
	}
	return nil
}
