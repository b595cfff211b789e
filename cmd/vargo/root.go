package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/vargo/internal/interceptor"
)

// ic is the interceptor shared by every command; main sets it before
// executing the command tree.
var ic *interceptor.Interceptor

// exitCode is the exit status of whatever process the command delegated to.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "vargo [cargo arguments]",
	Short: "Cargo with verus verification",
	Long: `vargo runs cargo with itself installed as RUSTC_WRAPPER. Every crate
that depends on vstd is verified with verus before rustc compiles it;
artifacts of verified dependencies are reused from target/<profile>/deps/verify.

All arguments except the vargo subcommands below are passed to cargo
unchanged, e.g. "vargo build --release" or "vargo test -p crate_a".

Environment:
  VARGO_VERUS_PATH  verus binary to use; takes precedence over VERUS_PATH
  VERUS_PATH        verus binary to use instead of the bundled one or PATH
  VERUS_FLAGS       extra flags for every verus run (shell-quoted)
  VARGO_LOG         write a debug log to this file
  CARGO_TERM_COLOR  auto, always or never
  VARGO_CONFIG      read only this config file instead of the user and
                    project .vargo.yaml files

A crate can add its own verus flags in Cargo.toml:

  [verus]
  extra_flags = "--rlimit 20"`,
	Args:               cobra.ArbitraryArgs,
	DisableFlagParsing: true,
	SilenceUsage:       true,
	SilenceErrors:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := ic.Dispatch(cmd.Context(), args)
		exitCode = code
		return err
	},
}

func init() {
	// "help" belongs to cargo.
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(verusCmd)
}

// execute runs the command tree with args. cobra answers shell completion
// requests with a hidden command of its own that cannot be disabled, so
// those are handed to cargo before cobra sees them.
func execute(ctx context.Context, args []string) error {
	if len(args) > 0 && (args[0] == cobra.ShellCompRequestCmd || args[0] == cobra.ShellCompNoDescRequestCmd) {
		code, err := ic.Dispatch(ctx, args)
		exitCode = code
		return err
	}
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}
