package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd creates the root command and registers all subcommands.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "convoyd",
		Short:         "Convoyd conversational commerce engine",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newMigrateCmd())

	return root
}
