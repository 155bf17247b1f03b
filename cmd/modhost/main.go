package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "modhost",
		Short:         "Host dynamically loaded Go modules in isolated execution contexts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newActivateCmd(), newWorkerCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
