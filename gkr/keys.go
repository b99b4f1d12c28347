// Package gkr proves and verifies quantized inference. The proof chains
// one sumcheck reduction per layer from a random evaluation of the declared
// output down to the committed input, then opens every committed table the
// reductions made claims about.
package gkr

import (
	"fmt"
	"sort"

	"github.com/consensys/gnark/logger"
	"github.com/fxamacker/cbor/v2"

	"github.com/leopardracer/deep-prove/commit"
	"github.com/leopardracer/deep-prove/field"
	"github.com/leopardracer/deep-prove/layered"
	"github.com/leopardracer/deep-prove/model"
	"github.com/leopardracer/deep-prove/poly"
	"github.com/leopardracer/deep-prove/transcript"
	"github.com/leopardracer/deep-prove/zkerr"
)

// Domain separates the transcripts of this protocol from any other use of
// the same hash.
const Domain = "deep-prove/gkr/v1"

type Params struct {
	Scheme     string `cbor:"scheme" yaml:"commitment"`
	Transcript string `cbor:"transcript" yaml:"transcript"`
}

func DefaultParams() Params {
	return Params{Scheme: commit.Hyrax, Transcript: transcript.Keccak256}
}

// Validate checks that both names are known.
func (p Params) Validate() error {
	if _, err := commit.NewScheme(p.Scheme); err != nil {
		return err
	}
	if _, err := transcript.New(p.Transcript, Domain); err != nil {
		return err
	}
	return nil
}

// PolyCommitment is the commitment of one model parameter table.
type PolyCommitment struct {
	ID         commit.PolyID     `cbor:"id"`
	Commitment commit.Commitment `cbor:"commitment"`
}

// ProvingKey holds everything the prover needs for one model. It is
// read-only once built and can serve concurrent sessions.
type ProvingKey struct {
	Params      Params
	Model       *model.Model
	Plan        *layered.Plan
	Commitments []PolyCommitment

	scheme commit.Scheme
	tables map[commit.PolyID]poly.MLE
}

// VerifyingKey holds the public plan and the model commitment.
type VerifyingKey struct {
	Params      Params
	Plan        *layered.Plan
	Commitments []PolyCommitment

	scheme      commit.Scheme
	commitments map[commit.PolyID]commit.Commitment
}

// Statement is the public claim of one inference: the committed input
// produced the declared output.
type Statement struct {
	Input  commit.Commitment `cbor:"input"`
	Output model.Tensor      `cbor:"output"`
}

// parameterTables lifts the parameters of every Dense and Convolution layer
// into the tables the reductions make claims about.
func parameterTables(plan *layered.Plan, m *model.Model) map[commit.PolyID]poly.MLE {
	tables := make(map[commit.PolyID]poly.MLE)
	for i, l := range m.Layers {
		switch l := l.(type) {
		case *model.Dense:
			_, _, w := l.WeightTable()
			tables[commit.PolyID{Layer: i, Kind: commit.PolyWeight}] = field.FromInt64s(w)
			tables[commit.PolyID{Layer: i, Kind: commit.PolyBias}] = field.FromInt64sPadded(l.Bias.Data, 0)
		case *model.Convolution:
			s := plan.Steps[i]
			tables[commit.PolyID{Layer: i, Kind: commit.PolyWeight}] = field.FromInt64sPadded(l.Kernel.Data, 0)
			tables[commit.PolyID{Layer: i, Kind: commit.PolyBias}] = field.FromInt64sPadded(l.BroadcastBias(s.OutShape[1]*s.OutShape[2]), 0)
		}
	}
	return tables
}

func sortedIDs[T any](m map[commit.PolyID]T) []commit.PolyID {
	ids := make([]commit.PolyID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// Setup compiles m and commits to its parameters.
func Setup(m *model.Model, params Params) (*ProvingKey, *VerifyingKey, error) {
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}
	plan, err := layered.Compile(m)
	if err != nil {
		return nil, nil, err
	}
	scheme, _ := commit.NewScheme(params.Scheme)
	pk := &ProvingKey{
		Params: params,
		Model:  m,
		Plan:   plan,
		scheme: scheme,
		tables: parameterTables(plan, m),
	}
	ids := sortedIDs(pk.tables)
	pk.Commitments = make([]PolyCommitment, len(ids))
	for i, id := range ids {
		c, err := scheme.Commit(pk.tables[id])
		if err != nil {
			return nil, nil, fmt.Errorf("commit %s: %w", id, zkerr.Commitment(err))
		}
		pk.Commitments[i] = PolyCommitment{ID: id, Commitment: c}
	}
	vk, err := newVerifyingKey(params, plan, pk.Commitments)
	if err != nil {
		return nil, nil, err
	}
	stats := plan.GetStats()
	log := logger.Logger()
	log.Info().
		Int("layers", stats.NbLayer).
		Int("nbSumcheck", stats.NbSumcheck).
		Int("nbRounds", stats.NbRounds).
		Int("nbCommitted", len(pk.Commitments)).
		Str("scheme", params.Scheme).
		Msg("setup")
	return pk, vk, nil
}

func newVerifyingKey(params Params, plan *layered.Plan, cms []PolyCommitment) (*VerifyingKey, error) {
	scheme, err := commit.NewScheme(params.Scheme)
	if err != nil {
		return nil, err
	}
	vk := &VerifyingKey{
		Params:      params,
		Plan:        plan,
		Commitments: cms,
		scheme:      scheme,
		commitments: make(map[commit.PolyID]commit.Commitment, len(cms)),
	}
	for _, c := range cms {
		vk.commitments[c.ID] = c.Commitment
	}
	return vk, nil
}

// VerifyingKey returns the verifying key matching pk.
func (pk *ProvingKey) VerifyingKey() (*VerifyingKey, error) {
	return newVerifyingKey(pk.Params, pk.Plan, pk.Commitments)
}

// CommitInput commits to the table of an input tensor.
func (pk *ProvingKey) CommitInput(input model.Tensor) (commit.Commitment, error) {
	c, err := pk.scheme.Commit(inputTable(input))
	if err != nil {
		return nil, zkerr.Commitment(err)
	}
	return c, nil
}

// inputTable pads the input with zeros, the pad of the model input.
func inputTable(input model.Tensor) poly.MLE {
	return field.FromInt64sPadded(input.Data, 0)
}

type provingKeyWire struct {
	Params Params       `cbor:"params"`
	Model  *model.Model `cbor:"model"`
}

type verifyingKeyWire struct {
	Params      Params           `cbor:"params"`
	Model       *model.Model     `cbor:"model"`
	Commitments []PolyCommitment `cbor:"commitments"`
}

// EncodeProvingKey stores the parameters and the model; decoding runs the
// setup again.
func EncodeProvingKey(pk *ProvingKey) ([]byte, error) {
	return model.Marshal(provingKeyWire{Params: pk.Params, Model: pk.Model})
}

func DecodeProvingKey(data []byte) (*ProvingKey, error) {
	var w provingKeyWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	if w.Model == nil {
		return nil, fmt.Errorf("proving key without model")
	}
	pk, _, err := Setup(w.Model, w.Params)
	return pk, err
}

func EncodeVerifyingKey(vk *VerifyingKey) ([]byte, error) {
	return model.Marshal(verifyingKeyWire{Params: vk.Params, Model: vk.Plan.Model, Commitments: vk.Commitments})
}

func DecodeVerifyingKey(data []byte) (*VerifyingKey, error) {
	var w verifyingKeyWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	if w.Model == nil {
		return nil, fmt.Errorf("verifying key without model")
	}
	if err := w.Params.Validate(); err != nil {
		return nil, err
	}
	plan, err := layered.Compile(w.Model)
	if err != nil {
		return nil, err
	}
	return newVerifyingKey(w.Params, plan, w.Commitments)
}

func EncodeStatement(st *Statement) ([]byte, error) {
	return model.Marshal(st)
}

func DecodeStatement(data []byte) (*Statement, error) {
	st := new(Statement)
	if err := cbor.Unmarshal(data, st); err != nil {
		return nil, err
	}
	return st, nil
}
