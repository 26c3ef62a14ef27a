package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/go-sod/pipecast/internal/dataset"
	"github.com/go-sod/pipecast/internal/feature"
	"github.com/go-sod/pipecast/internal/predictor"
	"github.com/go-sod/pipecast/internal/predictor/cart"
	"github.com/spf13/cobra"
)

type trainCmdConfig struct {
	*rootCmdConfig
	records        string
	jobFile        string
	output         string
	maxDepth       int
	minSamplesLeaf int
}

func trainCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &trainCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Grow a tree from labelled records",
		Long: `Grow a tree from a JSON or CSV file of labelled records and write it
as an XDR snapshot. Flags override the values of the job file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := config.job(cmd)
			if err != nil {
				return err
			}
			return runTrain(config, j, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&(config.records), "records", "r", "", "path to a JSON (.json) or CSV (.csv) file of labelled records")
	cmd.Flags().StringVarP(&(config.jobFile), "job", "j", "", "path to a TOML file describing the training job")
	cmd.Flags().StringVarP(&(config.output), "out", "o", "", "path the model snapshot is written to")
	cmd.Flags().IntVar(&(config.maxDepth), "max-depth", cart.DefaultMaxDepth, "depth at which every node becomes a leaf")
	cmd.Flags().IntVar(&(config.minSamplesLeaf), "min-samples-leaf", cart.DefaultMinSamplesLeaf, "nodes with fewer records become leaves")
	return cmd
}

func (c *trainCmdConfig) job(cmd *cobra.Command) (job, error) {
	j := defaultJob()
	if c.jobFile != "" {
		if err := readJob(c.jobFile, &j); err != nil {
			return j, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("records") {
		j.Records = c.records
	}
	if flags.Changed("out") {
		j.Out = c.output
	}
	if flags.Changed("max-depth") {
		j.Params.MaxDepth = c.maxDepth
	}
	if flags.Changed("min-samples-leaf") {
		j.Params.MinSamplesLeaf = c.minSamplesLeaf
	}
	if err := requireFlag("records", j.Records); err != nil {
		return j, err
	}
	if err := requireFlag("out", j.Out); err != nil {
		return j, err
	}
	return j, nil
}

func runTrain(config *trainCmdConfig, j job, out io.Writer) error {
	logger := config.Logger()
	defer func() { _ = logger.Sync() }()

	logger.Debugf("reading records from %s", j.Records)
	records, err := dataset.ReadFile(j.Records, time.Now())
	if err != nil {
		return err
	}
	samples := make([]predictor.Sample, len(records))
	for i := range records {
		samples[i] = records[i]
	}

	tr, err := cart.New(cart.WithParams(j.Params))
	if err != nil {
		return err
	}
	logger.Debugf("growing tree from %d records, max depth %d, min samples leaf %d",
		len(samples), j.Params.MaxDepth, j.Params.MinSamplesLeaf)
	m, err := tr.Train(samples...)
	if err != nil {
		return fmt.Errorf("growing the tree: %w", err)
	}
	if err := saveModel(j.Out, m); err != nil {
		return err
	}
	logger.Debugf("model %s written to %s", m.ID(), j.Out)

	_, _ = fmt.Fprintf(out, "model %s: %d records, %d nodes\n", m.ID(), len(samples), m.NodeCount())
	_, _ = fmt.Fprintf(out, "training accuracy (in-sample): %.4f\n", m.TrainingAccuracy())
	writeImportance(out, m.FeatureImportance())
	return nil
}

// writeImportance prints the weights, heaviest first, ties in feature order.
func writeImportance(out io.Writer, importance map[feature.Name]float64) {
	names := feature.Names
	sort.SliceStable(names[:], func(i, j int) bool {
		return importance[names[i]] > importance[names[j]]
	})
	_, _ = fmt.Fprintln(out, "feature importance:")
	for _, n := range names {
		_, _ = fmt.Fprintf(out, "  %-20s %.4f\n", n, importance[n])
	}
}
