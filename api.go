// Package deepprove proves that a committed quantized neural network
// produced a given output on a given input, and verifies such proofs
// without running the model.
package deepprove

import (
	"github.com/leopardracer/deep-prove/commit"
	"github.com/leopardracer/deep-prove/config"
	"github.com/leopardracer/deep-prove/gkr"
	"github.com/leopardracer/deep-prove/layered"
	"github.com/leopardracer/deep-prove/model"
	"github.com/leopardracer/deep-prove/utils"
)

type Option func(*settings)

type settings struct {
	params  gkr.Params
	workers int
}

// WithScheme selects the commitment scheme, commit.Hyrax by default.
func WithScheme(name string) Option {
	return func(s *settings) {
		s.params.Scheme = name
	}
}

// WithTranscript selects the transcript hash, transcript.Keccak256 by
// default.
func WithTranscript(name string) Option {
	return func(s *settings) {
		s.params.Transcript = name
	}
}

// WithWorkers bounds the number of goroutines of data-parallel work. It
// applies process-wide.
func WithWorkers(n int) Option {
	return func(s *settings) {
		s.workers = n
	}
}

// FromConfig returns the options matching a loaded configuration.
func FromConfig(c *config.Config) []Option {
	return []Option{WithScheme(c.Commitment), WithTranscript(c.Transcript), WithWorkers(c.Workers)}
}

type CompileResult struct {
	model *model.Model
	pk    *gkr.ProvingKey
	vk    *gkr.VerifyingKey
}

func (c *CompileResult) GetPlan() *layered.Plan {
	return c.pk.Plan
}

func (c *CompileResult) GetProvingKey() *gkr.ProvingKey {
	return c.pk
}

func (c *CompileResult) GetVerifyingKey() *gkr.VerifyingKey {
	return c.vk
}

// GetCommitments returns the model commitment: one commitment per
// parameter table.
func (c *CompileResult) GetCommitments() []gkr.PolyCommitment {
	return c.vk.Commitments
}

// Prove runs the model on input and proves the inference.
func (c *CompileResult) Prove(input model.Tensor, opts ...gkr.ProveOption) (*gkr.Proof, *gkr.Statement, error) {
	return gkr.Prove(c.pk, input, opts...)
}

// CommitInput returns the commitment a statement about input carries.
func (c *CompileResult) CommitInput(input model.Tensor) (commit.Commitment, error) {
	return c.pk.CommitInput(input)
}

// Verify checks a proof against a verifying key and a statement.
func Verify(vk *gkr.VerifyingKey, st *gkr.Statement, proof *gkr.Proof) (gkr.Verdict, error) {
	return gkr.Verify(vk, st, proof)
}

func applyOptions(opts []Option) settings {
	s := settings{params: gkr.DefaultParams()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.workers > 0 {
		utils.SetMaxWorkers(s.workers)
	}
	return s
}
