package deepprove

import (
	"github.com/consensys/gnark/logger"

	"github.com/leopardracer/deep-prove/gkr"
	"github.com/leopardracer/deep-prove/model"
)

// Compile validates m, builds its plan and commits to its parameters.
func Compile(m *model.Model, opts ...Option) (*CompileResult, error) {
	s := applyOptions(opts)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	log := logger.Logger()
	log.Info().Int("nbLayer", len(m.Layers)).Ints("input", m.InputShape).Msg("built model")
	pk, vk, err := gkr.Setup(m, s.params)
	if err != nil {
		return nil, err
	}
	stats := pk.Plan.GetStats()
	log.Info().
		Int("nbSumcheck", stats.NbSumcheck).
		Int("nbRounds", stats.NbRounds).
		Int("nbCoeffs", stats.NbCoeffs).
		Int("nbMul", stats.NbMul).
		Int("nbAdd", stats.NbAdd).
		Int("nbLookups", stats.NbLookups).
		Msg("compiled")
	return &CompileResult{model: m, pk: pk, vk: vk}, nil
}
