package main

import (
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:                "version",
	Short:              "Print the vargo, verus and cargo versions",
	Args:               cobra.NoArgs,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := ic.Version(cmd.Context())
		exitCode = code
		return err
	},
}
