package main

import (
	"fmt"
	"os"

	"github.com/go-sod/pipecast/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootCmdConfig struct {
	verbose bool
}

// Logger writes progress to stderr; results go to the command's output.
func (c *rootCmdConfig) Logger() *zap.SugaredLogger {
	level := "warn"
	if c.verbose {
		level = "debug"
	}
	return logging.NewLogger(level, true)
}

func main() {
	if err := cliParser().Execute(); err != nil {
		os.Exit(1)
	}
}

func cliParser() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pipecast",
		Short: "pipecast trains and queries pipeline failure trees",
		Long: `Grow a decision tree from labelled pipeline observations, save it,
and use it to predict whether a pipeline fails in the next two hours.`,
		SilenceUsage: true,
	}
	config := &rootCmdConfig{}
	rootCmd.PersistentFlags().BoolVarP(&(config.verbose), "verbose", "v", false, "log progress to stderr")
	rootCmd.AddCommand(versionCmd(), trainCmd(config), predictCmd(config), inspectCmd(config))
	return rootCmd
}

func requireFlag(name, value string) error {
	if value == "" {
		return fmt.Errorf("required %s flag was not set", name)
	}
	return nil
}
