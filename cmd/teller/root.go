package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "teller",
	Short: "Teller runs banking assistant workflows",
	Long: `Teller runs the TFSA contribution and e-Transfer limit assistants as
step-by-step workflows, from the terminal, over HTTP or as MCP tools.

Configuration is read from --config (YAML) and TELLER_* environment variables.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("store", "", "Override the account store (memory, file, redis)")
}
