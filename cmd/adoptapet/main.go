package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/adoptapet/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "adoptapet",
	Short:         "Cross-modal pet search over adoption listings and breed photos",
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().String("env", "", "config environment (local, dev, docker, prod); defaults to $ENV")
	rootCmd.AddCommand(serveCmd, searchCmd, indexCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
