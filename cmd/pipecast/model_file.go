package main

import (
	"fmt"
	"io/ioutil"

	"github.com/go-sod/pipecast/internal/predictor"
	"github.com/go-sod/pipecast/internal/predictor/cart"
)

func loadModel(path string) (predictor.Model, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model from %s: %w", path, err)
	}
	m, err := cart.DecodeModel(data)
	if err != nil {
		return nil, fmt.Errorf("decoding model from %s: %w", path, err)
	}
	return m, nil
}

func saveModel(path string, m predictor.Model) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing model to %s: %w", path, err)
	}
	return nil
}
