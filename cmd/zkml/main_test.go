package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/leopardracer/deep-prove/gkr"
	"github.com/leopardracer/deep-prove/model"
)

type runner struct {
	t    *testing.T
	dir  string
	out  bytes.Buffer
	code int
}

func newRunner(t *testing.T) *runner {
	r := &runner{t: t, dir: t.TempDir(), code: -1}
	exiter := cli.OsExiter
	cli.OsExiter = func(code int) { r.code = code }
	t.Cleanup(func() { cli.OsExiter = exiter })
	cfg := "commitment: raw\ntranscript: sha3-256\nprogress: false\nlog_level: warn\n"
	require.NoError(t, os.WriteFile(r.path("config.yaml"), []byte(cfg), 0o644))
	return r
}

func (r *runner) path(name string) string {
	return filepath.Join(r.dir, name)
}

func (r *runner) run(args ...string) error {
	r.out.Reset()
	r.code = -1
	app := newApp()
	app.Writer = &r.out
	app.ErrWriter = &r.out
	return app.Run(append([]string{"zkml", "--config", r.path("config.yaml")}, args...))
}

func (r *runner) write(name string, data []byte) {
	require.NoError(r.t, os.WriteFile(r.path(name), data, 0o644))
}

func TestSetupProveVerify(t *testing.T) {
	r := newRunner(t)
	m, err := model.NewBuilder([]int{2}, 4).
		Dense(model.NewTensor([]int{2, 2}, []int64{1, 2, 3, 4}, 4), model.NewTensor([]int{2}, []int64{0, 0}, 4), model.WithRequant(4)).
		ReLU().
		Build()
	require.NoError(t, err)
	data, err := model.Encode(m)
	require.NoError(t, err)
	r.write("model.cbor", data)
	data, err = model.EncodeTensor(model.NewTensor([]int{2}, []int64{1, 2}, 4))
	require.NoError(t, err)
	r.write("input.cbor", data)

	require.NoError(t, r.run("setup", "--model", r.path("model.cbor"), "--pk", r.path("model.pk"), "--vk", r.path("model.vk")))
	require.FileExists(t, r.path("model.pk"))
	require.FileExists(t, r.path("model.vk"))

	require.NoError(t, r.run("prove", "--pk", r.path("model.pk"), "--input", r.path("input.cbor"),
		"--proof", r.path("proof.bin"), "--statement", r.path("statement.cbor")))

	verify := []string{"verify", "--vk", r.path("model.vk"), "--statement", r.path("statement.cbor"), "--proof", r.path("proof.bin")}
	require.NoError(t, r.run(verify...))
	require.Equal(t, "Accept", strings.TrimSpace(r.out.String()))
	require.Equal(t, -1, r.code)

	// a different declared output
	data, err = os.ReadFile(r.path("statement.cbor"))
	require.NoError(t, err)
	st, err := gkr.DecodeStatement(data)
	require.NoError(t, err)
	st.Output.Data[0]++
	data, err = gkr.EncodeStatement(st)
	require.NoError(t, err)
	r.write("statement.cbor", data)
	require.Error(t, r.run(verify...))
	require.Equal(t, exitReject, r.code)
	require.Contains(t, r.out.String(), "Reject")

	// a truncated proof
	data, err = os.ReadFile(r.path("proof.bin"))
	require.NoError(t, err)
	r.write("proof.bin", data[:len(data)/2])
	require.Error(t, r.run(verify...))
	require.Equal(t, exitReject, r.code)
	require.Contains(t, r.out.String(), "Reject at init")

	// a missing key is an error, not a reject
	require.Error(t, r.run("verify", "--vk", r.path("missing.vk"), "--statement", r.path("statement.cbor"), "--proof", r.path("proof.bin")))
	require.Equal(t, exitError, r.code)
}

func TestInspect(t *testing.T) {
	r := newRunner(t)
	m, err := model.NewBuilder([]int{1, 4, 4}, 4).
		Conv(model.NewTensor([]int{1, 1, 2, 2}, []int64{1, -1, 2, 0}, 4), model.NewTensor([]int{1}, []int64{1}, 4), 1, model.WithRequant(4)).
		ReLU().
		Pool(2, 1).
		Build()
	require.NoError(t, err)
	data, err := model.Encode(m)
	require.NoError(t, err)
	r.write("model.cbor", data)

	require.NoError(t, r.run("inspect", "--model", r.path("model.cbor"), "--chart", r.path("chart.html")))
	require.Contains(t, r.out.String(), "layers: 4")
	html, err := os.ReadFile(r.path("chart.html"))
	require.NoError(t, err)
	require.Contains(t, string(html), "proof size per layer")
}

func TestBadConfig(t *testing.T) {
	r := newRunner(t)
	r.write("config.yaml", []byte("commitment: kzg\n"))
	require.Error(t, r.run("inspect", "--model", r.path("model.cbor")))
}
