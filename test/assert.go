package test

import (
	"testing"

	"github.com/leopardracer/deep-prove"
	"github.com/leopardracer/deep-prove/model"
)

type Assert struct {
	t *testing.T
}

func NewAssert(t *testing.T) *Assert {
	return &Assert{t: t}
}

// ProveSucceeded proves the inference on input and checks that the proof
// verifies and that the declared output matches the reference evaluation.
func (a *Assert) ProveSucceeded(cr *deepprove.CompileResult, m *model.Model, input model.Tensor) {
	proof, st, err := cr.Prove(input)
	if err != nil {
		a.t.Fatal(err)
	}
	want, err := Eval(m, input.Data)
	if err != nil {
		a.t.Fatal(err)
	}
	if !equal(want, st.Output.Data) {
		a.t.Fatalf("declared output %v, reference %v", st.Output.Data, want)
	}
	v, err := deepprove.Verify(cr.GetVerifyingKey(), st, proof)
	if err != nil {
		a.t.Fatal(err)
	}
	if !v.Accepted {
		a.t.Fatalf("should succeed: %s", v)
	}
}

// ProveFailed proves the inference on input, then declares an output off
// by one and checks that verification rejects.
func (a *Assert) ProveFailed(cr *deepprove.CompileResult, input model.Tensor) {
	proof, st, err := cr.Prove(input)
	if err != nil {
		a.t.Fatal(err)
	}
	st.Output = st.Output.Clone()
	st.Output.Data[0]++
	v, err := deepprove.Verify(cr.GetVerifyingKey(), st, proof)
	if err != nil {
		a.t.Fatal(err)
	}
	if v.Accepted {
		a.t.Fatal("should fail")
	}
}

func equal(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
