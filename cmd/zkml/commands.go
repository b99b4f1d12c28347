package main

import (
	"fmt"
	"os"

	"github.com/consensys/gnark/logger"
	"github.com/juju/fslock"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	deepprove "github.com/leopardracer/deep-prove"
	"github.com/leopardracer/deep-prove/config"
	"github.com/leopardracer/deep-prove/gkr"
	"github.com/leopardracer/deep-prove/model"
	"github.com/leopardracer/deep-prove/utils"
)

func pathFlag(name, usage string) *cli.StringFlag {
	return &cli.StringFlag{Name: name, Usage: usage, Required: true}
}

// writeLocked writes data to path while holding path.lock, so that
// concurrent runs over the same output directory do not interleave.
func writeLocked(path string, data []byte) error {
	lock := fslock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer lock.Unlock()
	return os.WriteFile(path, data, 0o644)
}

func readModel(path string) (*model.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := model.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	return m, nil
}

func setupCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "commit to a model and write its proving and verifying keys",
		Flags: []cli.Flag{
			pathFlag("model", "CBOR encoded model"),
			pathFlag("pk", "output path of the proving key"),
			pathFlag("vk", "output path of the verifying key"),
		},
		Action: func(c *cli.Context) error {
			m, err := readModel(c.String("model"))
			if err != nil {
				return err
			}
			cr, err := deepprove.Compile(m, deepprove.FromConfig(cfg)...)
			if err != nil {
				return err
			}
			pk, err := gkr.EncodeProvingKey(cr.GetProvingKey())
			if err != nil {
				return err
			}
			vk, err := gkr.EncodeVerifyingKey(cr.GetVerifyingKey())
			if err != nil {
				return err
			}
			if err := writeLocked(c.String("pk"), pk); err != nil {
				return err
			}
			if err := writeLocked(c.String("vk"), vk); err != nil {
				return err
			}
			log := logger.Logger()
			log.Info().Int("commitments", len(cr.GetCommitments())).Str("vk", c.String("vk")).Msg("setup done")
			return nil
		},
	}
}

func proveCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "prove",
		Usage: "run the model on an input and prove the inference",
		Flags: []cli.Flag{
			pathFlag("pk", "proving key written by setup"),
			pathFlag("input", "CBOR encoded input tensor"),
			pathFlag("proof", "output path of the proof"),
			pathFlag("statement", "output path of the statement"),
		},
		Action: func(c *cli.Context) error {
			if cfg.Workers > 0 {
				utils.SetMaxWorkers(cfg.Workers)
			}
			data, err := os.ReadFile(c.String("pk"))
			if err != nil {
				return err
			}
			pk, err := gkr.DecodeProvingKey(data)
			if err != nil {
				return fmt.Errorf("decode proving key: %w", err)
			}
			if data, err = os.ReadFile(c.String("input")); err != nil {
				return err
			}
			input, err := model.DecodeTensor(data)
			if err != nil {
				return fmt.Errorf("decode input: %w", err)
			}

			var opts []gkr.ProveOption
			if cfg.Progress {
				bar := progressbar.Default(int64(len(pk.Plan.Steps)), "proving")
				defer bar.Finish()
				opts = append(opts, gkr.WithProgress(func(int) {
					if err := bar.Add(1); err != nil {
						log := logger.Logger()
						log.Debug().Err(err).Msg("progress bar")
					}
				}))
			}
			proof, st, err := gkr.Prove(pk, input, opts...)
			if err != nil {
				return err
			}
			stData, err := gkr.EncodeStatement(st)
			if err != nil {
				return err
			}
			if err := writeLocked(c.String("proof"), proof.Serialize()); err != nil {
				return err
			}
			if err := writeLocked(c.String("statement"), stData); err != nil {
				return err
			}
			log := logger.Logger()
			log.Info().Int("size", proof.Size()).Ints64("output", st.Output.Data).Msg("proof written")
			return nil
		},
	}
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "check a proof against a verifying key and a statement",
		Flags: []cli.Flag{
			pathFlag("vk", "verifying key written by setup"),
			pathFlag("statement", "statement written by prove"),
			pathFlag("proof", "proof written by prove"),
		},
		Action: func(c *cli.Context) error {
			verdict, err := runVerify(c.String("vk"), c.String("statement"), c.String("proof"))
			if err != nil {
				return cli.Exit(err, exitError)
			}
			fmt.Fprintln(c.App.Writer, verdict)
			if !verdict.Accepted {
				return cli.Exit("", exitReject)
			}
			return nil
		},
	}
}

func runVerify(vkPath, stPath, proofPath string) (gkr.Verdict, error) {
	var files [3][]byte
	for i, p := range []string{vkPath, stPath, proofPath} {
		data, err := os.ReadFile(p)
		if err != nil {
			return gkr.Verdict{}, err
		}
		files[i] = data
	}
	vk, err := gkr.DecodeVerifyingKey(files[0])
	if err != nil {
		return gkr.Verdict{}, fmt.Errorf("decode verifying key: %w", err)
	}
	st, err := gkr.DecodeStatement(files[1])
	if err != nil {
		return gkr.Verdict{}, fmt.Errorf("decode statement: %w", err)
	}
	// a proof that does not decode is rejected, not an error
	proof, err := gkr.DeserializeProof(files[2])
	if err != nil {
		return gkr.Verdict{Layer: -1, Stage: gkr.StageInit, Err: fmt.Errorf("decode proof: %w", err)}, nil
	}
	return deepprove.Verify(vk, st, proof)
}
