// Package main is the entry point for the llmstream CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "llmstream",
		Short:         "Stream answers from OpenAI, Mistral and Anthropic models",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "Path to configuration file")
	flags.StringP("model", "m", "", "Model id to use for this invocation")
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	root.AddCommand(versionCmd(), askCmd(), modifyCmd(), modelsCmd(), replCmd())
	return root
}
