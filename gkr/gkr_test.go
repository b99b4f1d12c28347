package gkr

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"

	"github.com/leopardracer/deep-prove/commit"
	"github.com/leopardracer/deep-prove/model"
	"github.com/leopardracer/deep-prove/transcript"
	"github.com/leopardracer/deep-prove/utils"
	"github.com/leopardracer/deep-prove/zkerr"
)

var rawParams = Params{Scheme: commit.Raw, Transcript: transcript.Keccak256}

func denseModel(t *testing.T, w []int64) *model.Model {
	m, err := model.NewBuilder([]int{2}, 4).
		Dense(model.NewTensor([]int{2, 2}, w, 4), model.NewTensor([]int{2}, []int64{0, 0}, 4)).
		Build()
	require.NoError(t, err)
	return m
}

func convModel(t *testing.T) *model.Model {
	m, err := model.NewBuilder([]int{1, 4, 4}, 4).
		Conv(model.NewTensor([]int{2, 1, 2, 2}, []int64{1, -1, 2, 0, 3, 1, -2, 1}, 4), model.NewTensor([]int{2}, []int64{1, -1}, 4), 1, model.WithRequant(4)).
		ReLU().
		Pool(2, 1).
		Flatten().
		Dense(model.NewTensor([]int{3, 8}, []int64{1, 2, 3, 4, -1, -2, -3, -4, 0, 1, 0, 1, 0, 1, 0, 1, 5, 0, 0, 0, 0, 0, 0, -5}, 4), model.NewTensor([]int{3}, []int64{0, 3, -2}, 4)).
		Build()
	require.NoError(t, err)
	return m
}

// padModel has a non-zero pad after the clip and a table activation.
func padModel(t *testing.T) *model.Model {
	table := make([]int64, 16)
	for i := range table {
		table[i] = int64(i*i%7) - 3
	}
	m, err := model.NewBuilder([]int{3}, 4).
		Dense(model.NewTensor([]int{3, 3}, []int64{1, 2, -3, 4, 0, 1, -2, -1, 7}, 4), model.NewTensor([]int{3}, []int64{1, 0, -1}, 4), model.WithRequant(4)).
		Clip(1, 5).
		Dense(model.NewTensor([]int{2, 3}, []int64{3, -1, 2, 1, 1, 1}, 4), model.NewTensor([]int{2}, []int64{0, 0}, 4), model.WithRequant(4)).
		Table(table).
		Build()
	require.NoError(t, err)
	return m
}

func proveVerify(t *testing.T, m *model.Model, params Params, input []int64) (Verdict, *VerifyingKey, *Statement, *Proof) {
	pk, vk, err := Setup(m, params)
	require.NoError(t, err)
	proof, st, err := Prove(pk, model.NewTensor(m.InputShape, input, m.InputBits))
	require.NoError(t, err)
	v, err := Verify(vk, st, proof)
	require.NoError(t, err)
	return v, vk, st, proof
}

func TestDenseEndToEnd(t *testing.T) {
	m := denseModel(t, []int64{1, 2, 3, 4})
	v, _, st, _ := proveVerify(t, m, DefaultParams(), []int64{1, 2})
	require.True(t, v.Accepted, v.String())
	require.Equal(t, []int64{5, 11}, st.Output.Data)
}

func TestFlippedWeight(t *testing.T) {
	_, vk, err := Setup(denseModel(t, []int64{1, 2, 3, 4}), DefaultParams())
	require.NoError(t, err)
	flipped, _, err := Setup(denseModel(t, []int64{1, 2, 3, 5}), DefaultParams())
	require.NoError(t, err)

	proof, st, err := Prove(flipped, model.NewTensor([]int{2}, []int64{1, 2}, 4))
	require.NoError(t, err)
	require.Equal(t, []int64{5, 13}, st.Output.Data)
	v, err := Verify(vk, st, proof)
	require.NoError(t, err)
	require.False(t, v.Accepted)
	require.Equal(t, StageLayer, v.Stage)
	require.Equal(t, 0, v.Layer)
	require.Equal(t, 0, v.Round)
}

func TestCompleteness(t *testing.T) {
	for _, c := range []struct {
		name   string
		model  func(*testing.T) *model.Model
		params Params
		input  []int64
	}{
		{"conv", convModel, rawParams, []int64{1, -2, 3, 0, 7, -8, 2, 2, 0, 0, 1, -1, 5, 4, -3, 6}},
		{"conv-hyrax", convModel, DefaultParams(), []int64{-8, -8, -8, -8, 7, 7, 7, 7, 0, 1, 2, 3, -1, -2, -3, -4}},
		{"pad", padModel, rawParams, []int64{3, -4, 7}},
		{"pad-mimc", padModel, Params{Scheme: commit.Raw, Transcript: transcript.MiMC}, []int64{-8, 0, 1}},
	} {
		t.Run(c.name, func(t *testing.T) {
			v, _, _, proof := proveVerify(t, c.model(t), c.params, c.input)
			require.True(t, v.Accepted, v.String())
			require.Positive(t, proof.Size())
		})
	}
}

func clone(t *testing.T, p *Proof) *Proof {
	q, err := DeserializeProof(p.Serialize())
	require.NoError(t, err)
	return q
}

func addOne(e *fr.Element) {
	var o fr.Element
	o.SetOne()
	e.Add(e, &o)
}

func TestMutations(t *testing.T) {
	m := convModel(t)
	input := []int64{1, -2, 3, 0, 7, -8, 2, 2, 0, 0, 1, -1, 5, 4, -3, 6}
	v, vk, st, proof := proveVerify(t, m, rawParams, input)
	require.True(t, v.Accepted, v.String())
	last := len(m.Layers) - 1

	for _, c := range []struct {
		name   string
		mutate func(p *Proof)
		check  func(v Verdict)
	}{
		{
			name: "round coefficient",
			mutate: func(p *Proof) {
				addOne(&p.Layers[last].(*DenseProof).Sumcheck.RoundPolys[1][1])
			},
			check: func(v Verdict) {
				require.Equal(t, StageLayer, v.Stage)
				require.Equal(t, last, v.Layer)
				require.Equal(t, 1, v.Round)
			},
		},
		{
			name: "final value",
			mutate: func(p *Proof) {
				addOne(&p.Layers[last].(*DenseProof).Input)
			},
			check: func(v Verdict) {
				require.Equal(t, last, v.Layer)
				require.Equal(t, vk.Plan.Steps[last].InVars, v.Round)
			},
		},
		{
			name: "conv input phase",
			mutate: func(p *Proof) {
				addOne(&p.Layers[0].(*ConvProof).InputPhase.RoundPolys[0][0])
			},
			check: func(v Verdict) {
				require.Equal(t, 0, v.Layer)
				require.Equal(t, vk.Plan.Steps[0].Instances[0].NumVars+1, v.Round)
			},
		},
		{
			name: "lookup sum",
			mutate: func(p *Proof) {
				addOne(&p.Layers[2].(*ActivationProof).Lookup.Sum)
			},
			check: func(v Verdict) {
				require.Equal(t, 2, v.Layer)
				require.Equal(t, 0, v.Round)
			},
		},
		{
			name: "multiplicity",
			mutate: func(p *Proof) {
				addOne(&p.Layers[1].(*RequantProof).Lookup.Multiplicity)
			},
			check: func(v Verdict) {
				require.Equal(t, 1, v.Layer)
			},
		},
		{
			name: "opening",
			mutate: func(p *Proof) {
				o := p.Openings[0].Opening
				o[len(o)-1] ^= 1
			},
			check: func(v Verdict) {
				require.Equal(t, StageOpening, v.Stage)
				require.True(t, errors.Is(v.Err, zkerr.ErrCommitmentFailure))
			},
		},
		{
			name: "degree bound",
			mutate: func(p *Proof) {
				rp := &p.Layers[last].(*DenseProof).Sumcheck.RoundPolys[0]
				*rp = append(*rp, fr.Element{})
			},
			check: func(v Verdict) {
				require.Equal(t, last, v.Layer)
				require.Equal(t, 0, v.Round)
				require.True(t, errors.Is(v.Err, zkerr.ErrProtocolViolation))
			},
		},
		{
			name: "wrong variant",
			mutate: func(p *Proof) {
				p.Layers[3] = &FlattenProof{}
			},
			check: func(v Verdict) {
				require.Equal(t, 3, v.Layer)
				require.True(t, errors.Is(v.Err, zkerr.ErrProtocolViolation))
			},
		},
	} {
		t.Run(c.name, func(t *testing.T) {
			p := clone(t, proof)
			c.mutate(p)
			v, err := Verify(vk, st, p)
			require.NoError(t, err)
			require.False(t, v.Accepted)
			c.check(v)
		})
	}
}

func TestBoundaryBinding(t *testing.T) {
	m := denseModel(t, []int64{1, 2, 3, 4})
	pk, vk, err := Setup(m, rawParams)
	require.NoError(t, err)
	proof, st, err := Prove(pk, model.NewTensor([]int{2}, []int64{1, 2}, 4))
	require.NoError(t, err)

	other, err := pk.CommitInput(model.NewTensor([]int{2}, []int64{2, 1}, 4))
	require.NoError(t, err)
	v, err := Verify(vk, &Statement{Input: other, Output: st.Output}, proof)
	require.NoError(t, err)
	require.False(t, v.Accepted)

	out := st.Output.Clone()
	out.Data[0]++
	v, err = Verify(vk, &Statement{Input: st.Input, Output: out}, proof)
	require.NoError(t, err)
	require.False(t, v.Accepted)

	_, err = Verify(vk, &Statement{Input: st.Input, Output: model.NewTensor([]int{3}, []int64{1, 2, 3}, 4)}, proof)
	require.True(t, errors.Is(err, zkerr.ErrShapeMismatch))
}

func TestForgedHyraxCommitment(t *testing.T) {
	m := padModel(t)
	pk, vk, err := Setup(m, DefaultParams())
	require.NoError(t, err)
	proof, st, err := Prove(pk, model.NewTensor([]int{3}, []int64{3, -4, 7}, 4))
	require.NoError(t, err)

	// a header claiming 64 variables and no rows
	forged := utils.OutputBuf{}
	forged.AppendUint32(64)

	v, err := Verify(vk, &Statement{Input: forged.Bytes(), Output: st.Output}, proof)
	require.NoError(t, err)
	require.False(t, v.Accepted)

	tampered := clone(t, proof)
	tampered.Layers[2].(*ActivationProof).Output = forged.Bytes()
	v, err = Verify(vk, st, tampered)
	require.NoError(t, err)
	require.False(t, v.Accepted)
}

func TestDeterminismAndRoundTrip(t *testing.T) {
	m := padModel(t)
	pk, vk, err := Setup(m, DefaultParams())
	require.NoError(t, err)
	input := model.NewTensor([]int{3}, []int64{3, -4, 7}, 4)
	p1, st, err := Prove(pk, input)
	require.NoError(t, err)
	p2, _, err := Prove(pk, input)
	require.NoError(t, err)
	b := p1.Serialize()
	require.Equal(t, b, p2.Serialize())

	decoded, err := DeserializeProof(b)
	require.NoError(t, err)
	require.Equal(t, b, decoded.Serialize())
	v, err := Verify(vk, st, decoded)
	require.NoError(t, err)
	require.True(t, v.Accepted, v.String())

	_, err = DeserializeProof(append(b, 0))
	require.Error(t, err)
	_, err = DeserializeProof(b[:len(b)-1])
	require.Error(t, err)
}

func TestUnknownPolyKind(t *testing.T) {
	p := &Proof{Openings: []PolyOpening{{ID: commit.PolyID{Layer: 1, Kind: commit.PolyMultiplicity}}}}
	b := p.Serialize()
	decoded, err := DeserializeProof(b)
	require.NoError(t, err)
	require.Equal(t, commit.PolyMultiplicity, decoded.Openings[0].ID.Kind)

	// magic, layer count, opening count, then the opening's layer
	const kindAt = 8 + 4 + 4 + 4
	for _, kind := range []uint32{uint32(commit.PolyMultiplicity) + 1, 256} {
		forged := append([]byte(nil), b...)
		binary.LittleEndian.PutUint32(forged[kindAt:], kind)
		_, err = DeserializeProof(forged)
		require.Error(t, err, "kind %d", kind)
	}
}

func TestLookupDegreeBinding(t *testing.T) {
	m := padModel(t)
	pk, vk, err := Setup(m, rawParams)
	require.NoError(t, err)
	proof, st, err := Prove(pk, model.NewTensor([]int{3}, []int64{3, -4, 7}, 4))
	require.NoError(t, err)

	for i := range vk.Plan.Steps {
		s := &vk.Plan.Steps[i]
		switch s.Layer.(type) {
		case *model.Activation, *model.Requantize:
		default:
			continue
		}
		_, err := lookupFor(s)
		require.NoError(t, err)
		for k := range s.Instances {
			s.Instances[k].Degree++
			_, err = lookupFor(s)
			require.True(t, errors.Is(err, zkerr.ErrProtocolViolation), "step %d instance %d", i, k)
			v, err := Verify(vk, st, proof)
			require.NoError(t, err)
			require.False(t, v.Accepted, "step %d instance %d", i, k)
			s.Instances[k].Degree--
		}
	}
	v, err := Verify(vk, st, proof)
	require.NoError(t, err)
	require.True(t, v.Accepted, v.String())
}

func TestKeyCodecs(t *testing.T) {
	m := convModel(t)
	pk, vk, err := Setup(m, rawParams)
	require.NoError(t, err)

	b, err := EncodeVerifyingKey(vk)
	require.NoError(t, err)
	vk2, err := DecodeVerifyingKey(b)
	require.NoError(t, err)
	b, err = EncodeProvingKey(pk)
	require.NoError(t, err)
	pk2, err := DecodeProvingKey(b)
	require.NoError(t, err)

	proof, st, err := Prove(pk2, model.NewTensor([]int{1, 4, 4}, make([]int64, 16), 4))
	require.NoError(t, err)
	b, err = EncodeStatement(st)
	require.NoError(t, err)
	st2, err := DecodeStatement(b)
	require.NoError(t, err)
	v, err := Verify(vk2, st2, proof)
	require.NoError(t, err)
	require.True(t, v.Accepted, v.String())
}

func TestProverStages(t *testing.T) {
	p := &prover{}
	require.True(t, errors.Is(p.reduce(), zkerr.ErrProtocolViolation))
	require.True(t, errors.Is(p.open(), zkerr.ErrProtocolViolation))
	_, err := p.finalize()
	require.True(t, errors.Is(err, zkerr.ErrProtocolViolation))
}

func TestProgress(t *testing.T) {
	m := convModel(t)
	pk, _, err := Setup(m, rawParams)
	require.NoError(t, err)
	var layers []int
	_, _, err = Prove(pk, model.NewTensor([]int{1, 4, 4}, make([]int64, 16), 4), WithProgress(func(layer int) {
		layers = append(layers, layer)
	}))
	require.NoError(t, err)
	require.Equal(t, []int{5, 4, 3, 2, 1, 0}, layers)
}

func TestProveErrors(t *testing.T) {
	pk, _, err := Setup(denseModel(t, []int64{1, 2, 3, 4}), rawParams)
	require.NoError(t, err)
	_, _, err = Prove(pk, model.NewTensor([]int{3}, []int64{1, 2, 3}, 4))
	require.True(t, errors.Is(err, zkerr.ErrShapeMismatch))
	_, _, err = Prove(pk, model.NewTensor([]int{2}, []int64{1, 9}, 4))
	require.True(t, errors.Is(err, zkerr.ErrRangeViolation))
}
