package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-sod/pipecast/internal/feature"
	"github.com/spf13/cobra"
)

type predictCmdConfig struct {
	*rootCmdConfig
	model    string
	features string
}

func predictCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &predictCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict whether a pipeline fails",
		Long:  `Predict the label for one feature vector and print the decision path that led to it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("model", config.model); err != nil {
				return err
			}
			if err := requireFlag("features", config.features); err != nil {
				return err
			}
			return runPredict(config, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&(config.model), "model", "m", "", "path to a model snapshot (required)")
	cmd.Flags().StringVarP(&(config.features), "features", "f", "", `feature vector as JSON, e.g. '{"hoursSinceLastRun": 12, ...}' (required)`)
	return cmd
}

func runPredict(config *predictCmdConfig, out io.Writer) error {
	m, err := loadModel(config.model)
	if err != nil {
		return err
	}

	var v feature.Vector
	dec := json.NewDecoder(strings.NewReader(config.features))
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("parsing features: %w", err)
	}
	for name := range v {
		if _, err := feature.Index(name); err != nil {
			return err
		}
	}
	if err := v.CheckFinite(); err != nil {
		return err
	}

	c, err := m.Predict(v)
	if err != nil {
		return err
	}
	label := "ok"
	if c.WillFail {
		label = "fail"
	}
	_, _ = fmt.Fprintf(out, "prediction: %s\n", label)
	_, _ = fmt.Fprintf(out, "confidence: %.4f\n", c.Confidence)
	_, _ = fmt.Fprintln(out, "decision path:")
	for i, step := range c.DecisionPath() {
		_, _ = fmt.Fprintf(out, "  %d. %s\n", i+1, step)
	}
	return nil
}
