package test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leopardracer/deep-prove"
	"github.com/leopardracer/deep-prove/commit"
	"github.com/leopardracer/deep-prove/witness"
)

func testRandomModel(t *testing.T, conf *randomModelConfig, seedL int, seedR int, nCase int, opts ...deepprove.Option) {
	a := NewAssert(t)
	for seed := seedL; seed <= seedR; seed++ {
		conf.seed = seed
		rmg := newRandomModelGenerator(conf)
		m, err := rmg.model()
		require.NoError(t, err, "seed %d", seed)
		cr, err := deepprove.Compile(m, opts...)
		require.NoError(t, err, "seed %d", seed)
		for i := 1; i <= nCase; i++ {
			input := rmg.input(m)
			a.ProveSucceeded(cr, m, input)
			a.ProveFailed(cr, input)
		}
	}
}

func TestRandomDense(t *testing.T) {
	testRandomModel(t, &randomModelConfig{
		nbDense:    randRange{1, 3},
		width:      randRange{1, 9},
		inputBits:  4,
		weightBits: 4,
		afterBits:  randRange{3, 5},
		actPercent: 70,
	}, 1, 20, 2, deepprove.WithScheme(commit.Raw))
}

func TestRandomConv(t *testing.T) {
	testRandomModel(t, &randomModelConfig{
		nbDense:     randRange{1, 2},
		width:       randRange{2, 6},
		channels:    randRange{1, 3},
		spatial:     randRange{3, 6},
		inputBits:   4,
		weightBits:  3,
		afterBits:   randRange{4, 6},
		convPercent: 100,
		poolPercent: 50,
		actPercent:  80,
	}, 1, 10, 1, deepprove.WithScheme(commit.Raw), deepprove.WithWorkers(2))
}

func TestRandomHyrax(t *testing.T) {
	testRandomModel(t, &randomModelConfig{
		nbDense:     randRange{1, 2},
		width:       randRange{2, 5},
		channels:    randRange{1, 2},
		spatial:     randRange{3, 4},
		inputBits:   4,
		weightBits:  4,
		afterBits:   randRange{4, 4},
		convPercent: 50,
		poolPercent: 50,
		actPercent:  50,
	}, 1, 3, 1)
}

func TestEvalMatchesWitness(t *testing.T) {
	conf := &randomModelConfig{
		nbDense:     randRange{2, 4},
		width:       randRange{1, 12},
		channels:    randRange{1, 4},
		spatial:     randRange{3, 7},
		inputBits:   5,
		weightBits:  4,
		afterBits:   randRange{3, 8},
		convPercent: 50,
		poolPercent: 50,
		actPercent:  60,
	}
	for seed := 1; seed <= 50; seed++ {
		conf.seed = seed
		rmg := newRandomModelGenerator(conf)
		m, err := rmg.model()
		require.NoError(t, err, "seed %d", seed)
		input := rmg.input(m)
		trace, err := witness.Execute(m, input)
		require.NoError(t, err, "seed %d", seed)
		want, err := Eval(m, input.Data)
		require.NoError(t, err, "seed %d", seed)
		require.Equal(t, want, trace.Output().Data, "seed %d", seed)
	}
}
