package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "passgen",
		Short:         "Generate passwords offline",
		Long:          `Generates passwords with the same rules as the vaultpass extension, without a server or vault.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newGenerateCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the passgen version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "passgen %s\n", version)
		},
	})

	return root
}
