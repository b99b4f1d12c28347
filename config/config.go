// Package config loads the YAML settings of the command line tool.
package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/leopardracer/deep-prove/commit"
	"github.com/leopardracer/deep-prove/gkr"
	"github.com/leopardracer/deep-prove/transcript"
)

type Config struct {
	// Commitment names the commitment scheme: hyrax or raw.
	Commitment string `yaml:"commitment"`
	// Transcript names the transcript hash: keccak256, sha3-256 or mimc.
	Transcript string `yaml:"transcript"`
	// Workers bounds data-parallel goroutines, 0 for one per CPU.
	Workers  int    `yaml:"workers"`
	LogLevel string `yaml:"log_level"`
	// Progress shows a progress bar while proving.
	Progress bool `yaml:"progress"`
}

func Default() *Config {
	return &Config{
		Commitment: commit.Hyrax,
		Transcript: transcript.Keccak256,
		LogLevel:   zerolog.InfoLevel.String(),
		Progress:   true,
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c *Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("negative worker count %d", c.Workers)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

func (c *Config) Params() gkr.Params {
	return gkr.Params{Scheme: c.Commitment, Transcript: c.Transcript}
}

// ApplyLogLevel sets the global level of every zerolog logger, the gnark
// logger included.
func (c *Config) ApplyLogLevel() error {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
