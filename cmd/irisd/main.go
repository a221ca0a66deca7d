package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "irisd:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree: serve, train and preflight.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "irisd",
		Short:         "Iris species classifier: train, serve and debug",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newTrainCmd(), newPreflightCmd())
	return root
}
