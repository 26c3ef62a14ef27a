package main

import (
	"github.com/go-sod/pipecast/internal/buildinfo"
	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of pipecast",
		Run: func(cmd *cobra.Command, args []string) {
			buildinfo.Info.Print(cmd.OutOrStdout())
		},
	}
}
