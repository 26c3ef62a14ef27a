package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/go-sod/pipecast/internal/predictor/cart"
)

// job is a training run described in a TOML file:
//
//	records = "records.csv"
//	out = "model.xdr"
//
//	[params]
//	max_depth = 5
//	min_samples_leaf = 5
type job struct {
	Records string      `toml:"records"`
	Out     string      `toml:"out"`
	Params  cart.Params `toml:"params"`
}

func defaultJob() job {
	return job{Params: cart.Params{MaxDepth: cart.DefaultMaxDepth, MinSamplesLeaf: cart.DefaultMinSamplesLeaf}}
}

func readJob(path string, into *job) error {
	md, err := toml.DecodeFile(path, into)
	if err != nil {
		return fmt.Errorf("reading job file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("job file %s: unknown keys %v", path, undecoded)
	}
	return nil
}
