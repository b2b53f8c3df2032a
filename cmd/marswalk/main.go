package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "marswalk",
		Short: "Lockstep random-walk simulation of agents on a grid",
		Long: `marswalk runs a fixed number of agents, one goroutine each, that take
random single-cell steps on a bounded grid in lockstep ticks. Visited cells
fade through seven colours as they age.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON where supported")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newReplayCmd(),
		newInspectCmd(),
		newObserveCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
