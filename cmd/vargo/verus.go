package main

import (
	"github.com/spf13/cobra"
)

var verusCmd = &cobra.Command{
	Use:                "verus [verus arguments]",
	Short:              "Run verus directly with the given arguments",
	Args:               cobra.ArbitraryArgs,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := ic.VerusDirect(cmd.Context(), args)
		exitCode = code
		return err
	},
}
