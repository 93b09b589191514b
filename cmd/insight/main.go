// Command insight is the operator CLI for the procurement insight service.
// It runs routed questions and bulk jobs in-process against the configured
// database, cache and completion provider, printing JSON to stdout.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "insight",
		Short:         "Procurement insight operator CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load env file: %w", err)
			}
			return nil
		},
	}

	root.AddCommand(
		newAskCmd(),
		newBulkCmd(),
		newJobCmd(),
		newJobsCmd(),
	)
	return root
}
