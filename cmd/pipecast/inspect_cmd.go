package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

type inspectCmdConfig struct {
	*rootCmdConfig
	model  string
	asJSON bool
}

func inspectCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &inspectCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a saved tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("model", config.model); err != nil {
				return err
			}
			return runInspect(config, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&(config.model), "model", "m", "", "path to a model snapshot (required)")
	cmd.Flags().BoolVar(&(config.asJSON), "json", false, "print the model as JSON")
	return cmd
}

func runInspect(config *inspectCmdConfig, out io.Writer) error {
	m, err := loadModel(config.model)
	if err != nil {
		return err
	}
	if config.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}

	_, _ = fmt.Fprintf(out, "model %s trained at %s\n", m.ID(), m.TrainedAt().Format(time.RFC3339))
	_, _ = fmt.Fprintf(out, "training accuracy (in-sample): %.4f, %d nodes\n", m.TrainingAccuracy(), m.NodeCount())
	writeImportance(out, m.FeatureImportance())
	if s, ok := m.(fmt.Stringer); ok {
		_, _ = fmt.Fprintln(out, s.String())
	}
	return nil
}
