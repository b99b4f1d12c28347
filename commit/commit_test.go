package commit

import (
	"errors"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"

	"github.com/leopardracer/deep-prove/poly"
	"github.com/leopardracer/deep-prove/transcript"
	"github.com/leopardracer/deep-prove/utils"
	"github.com/leopardracer/deep-prove/zkerr"
)

func randElems(t *testing.T, n int) []fr.Element {
	res := make([]fr.Element, n)
	for i := range res {
		_, err := res[i].SetRandom()
		require.NoError(t, err)
	}
	return res
}

func TestSchemes(t *testing.T) {
	for _, name := range []string{Hyrax, Raw} {
		s, err := NewScheme(name)
		require.NoError(t, err)
		require.Equal(t, name, s.Name())
		for _, numVars := range []int{1, 3, 4} {
			evals := randElems(t, 1<<numVars)
			c, err := s.Commit(evals)
			require.NoError(t, err)
			point := randElems(t, numVars)
			v, o, err := s.Open(evals, point)
			require.NoError(t, err)
			want, err := poly.MLE(evals).Eval(point)
			require.NoError(t, err)
			require.True(t, v.Equal(&want), "%s %d", name, numVars)
			require.NoError(t, s.Verify(c, point, v, o), "%s %d", name, numVars)

			var bad fr.Element
			bad.SetOne()
			bad.Add(&bad, &v)
			require.ErrorIs(t, s.Verify(c, point, bad, o), ErrInvalidOpening)

			other := randElems(t, 1<<numVars)
			oc, err := s.Commit(other)
			require.NoError(t, err)
			require.Error(t, s.Verify(oc, point, v, o))
			require.Error(t, s.Verify(c, point, v, o[:len(o)-1]))
		}
	}
	_, err := NewScheme("kzg")
	require.Error(t, err)
}

func TestForgedHyraxCommitment(t *testing.T) {
	h := NewHyrax()
	evals := randElems(t, 16)
	point := randElems(t, 4)
	c, err := h.Commit(evals)
	require.NoError(t, err)
	v, o, err := h.Open(evals, point)
	require.NoError(t, err)

	header := func(numVars uint32) Commitment {
		buf := utils.OutputBuf{}
		buf.AppendUint32(numVars)
		return buf.Bytes()
	}
	for _, tc := range []struct {
		name string
		c    Commitment
	}{
		{"empty", nil},
		{"huge header", header(64)},
		{"header only", header(4)},
		{"wrong arity", append(header(5), c[4:]...)},
		{"missing row", c[:len(c)-hyraxRowSize]},
		{"extra row", append(append(Commitment(nil), c...), c[4:4+hyraxRowSize]...)},
	} {
		require.ErrorIs(t, h.Verify(tc.c, point, v, o), ErrInvalidOpening, tc.name)
	}
	require.NoError(t, h.Verify(c, point, v, o))
}

func TestOpenShape(t *testing.T) {
	for _, s := range []Scheme{NewHyrax(), RawScheme{}} {
		_, _, err := s.Open(randElems(t, 8), randElems(t, 2))
		require.Error(t, err, s.Name())
	}
	_, err := RawScheme{}.Commit(randElems(t, 3))
	require.Error(t, err)
}

func newTranscript(t *testing.T) *transcript.Transcript {
	tr, err := transcript.New(transcript.Keccak256, "commit-test")
	require.NoError(t, err)
	return tr
}

func TestAccumulate(t *testing.T) {
	evals := poly.MLE(randElems(t, 8))
	claims := make([]Claim, 3)
	for k := range claims {
		claims[k].Point = randElems(t, 3)
		v, err := evals.Eval(claims[k].Point)
		require.NoError(t, err)
		claims[k].Value = v
	}

	proof, merged, err := Accumulate(newTranscript(t), evals, claims)
	require.NoError(t, err)
	require.False(t, proof.Empty())
	want, err := evals.Eval(merged.Point)
	require.NoError(t, err)
	require.True(t, merged.Value.Equal(&want))

	got, err := VerifyAccumulation(newTranscript(t), proof, claims, 3)
	require.NoError(t, err)
	require.Equal(t, merged.Point, got.Point)
	require.True(t, got.Value.Equal(&merged.Value))

	var one fr.Element
	one.SetOne()
	tampered := proof
	tampered.Value.Add(&tampered.Value, &one)
	_, err = VerifyAccumulation(newTranscript(t), tampered, claims, 3)
	var re *zkerr.RoundError
	require.True(t, errors.As(err, &re))
	require.Equal(t, 3, re.Round)

	wrong := append([]Claim(nil), claims...)
	wrong[1].Value.Add(&wrong[1].Value, &one)
	_, err = VerifyAccumulation(newTranscript(t), proof, wrong, 3)
	require.True(t, errors.As(err, &re))
	require.Equal(t, 0, re.Round)
}

func TestAccumulateSingle(t *testing.T) {
	evals := poly.MLE(randElems(t, 4))
	c := Claim{Point: randElems(t, 2)}
	proof, merged, err := Accumulate(newTranscript(t), evals, []Claim{c})
	require.NoError(t, err)
	require.True(t, proof.Empty())
	require.Equal(t, c, merged)

	got, err := VerifyAccumulation(newTranscript(t), proof, []Claim{c}, 2)
	require.NoError(t, err)
	require.Equal(t, c, got)

	proof.Value.SetOne()
	_, err = VerifyAccumulation(newTranscript(t), proof, []Claim{c}, 2)
	require.ErrorIs(t, err, zkerr.ErrProtocolViolation)

	_, _, err = Accumulate(newTranscript(t), evals, []Claim{{Point: randElems(t, 3)}})
	require.ErrorIs(t, err, zkerr.ErrShapeMismatch)
}

func TestBookOrder(t *testing.T) {
	b := NewBook()
	ids := []PolyID{
		{Layer: 2, Kind: PolyOutput},
		{Layer: 0, Kind: PolyBias},
		{Layer: 0, Kind: PolyWeight},
		{Layer: 2, Kind: PolyChunk, Index: 1},
		{Layer: 2, Kind: PolyChunk, Index: 0},
	}
	for _, id := range ids {
		b.Add(id, Claim{})
	}
	b.Add(ids[0], Claim{})
	require.Equal(t, 5, b.Len())
	require.Len(t, b.Claims(ids[0]), 2)
	require.Equal(t, []PolyID{ids[2], ids[1], ids[0], ids[4], ids[3]}, b.IDs())
	require.Equal(t, "chunk[2.1]", ids[3].String())
}
