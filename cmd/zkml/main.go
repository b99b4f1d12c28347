// Command zkml compiles quantized models into proving and verifying keys,
// proves inferences and verifies the proofs.
package main

import (
	"fmt"
	"os"

	"github.com/consensys/gnark/logger"
	"github.com/urfave/cli/v2"

	"github.com/leopardracer/deep-prove/config"
)

// Exit codes of the verify command; any other failure exits with exitError.
const (
	exitAccept = 0
	exitReject = 1
	exitError  = 2
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitError)
	}
}

func newApp() *cli.App {
	cfg := config.Default()
	return &cli.App{
		Name:  "zkml",
		Usage: "prove and verify inference of quantized neural networks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
		},
		Before: func(c *cli.Context) error {
			if path := c.String("config"); path != "" {
				loaded, err := config.Load(path)
				if err != nil {
					return err
				}
				*cfg = *loaded
			}
			if err := cfg.ApplyLogLevel(); err != nil {
				return err
			}
			log := logger.Logger()
			log.Debug().Str("commitment", cfg.Commitment).Str("transcript", cfg.Transcript).Msg("loaded configuration")
			return nil
		},
		Commands: []*cli.Command{
			setupCommand(cfg),
			proveCommand(cfg),
			verifyCommand(),
			inspectCommand(),
		},
	}
}
