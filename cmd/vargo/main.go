// Command vargo is cargo with verus verification. Run it in place of cargo;
// cargo then runs it again as RUSTC_WRAPPER for every crate it compiles.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ShayCichocki/vargo/internal/cargo"
	"github.com/ShayCichocki/vargo/internal/config"
	"github.com/ShayCichocki/vargo/internal/interceptor"
	"github.com/ShayCichocki/vargo/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code. Deferred cleanup, including removal
// of an extracted toolchain, happens before main exits.
func run(args []string) int {
	// Interrupts reach cargo, rustc and verus directly from the terminal;
	// vargo only waits for them so it can clean up.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		cargo.PrintError(os.Stderr, err)
		return 1
	}
	cargo.SetColor(cfg.Color)

	mode := config.ModeFromEnv(os.LookupEnv)
	if mode.AsRustc {
		logger := logging.NewOrNop(cfg.Log.File, "rustc")
		defer logger.Sync()

		code, err := interceptor.New(cfg, mode, logger).Substitute(ctx, args)
		if err != nil {
			cargo.PrintError(os.Stderr, err)
		}
		return code
	}

	logger := logging.NewOrNop(cfg.Log.File, "dispatch")
	defer logger.Sync()
	logger.Debug("vargo started",
		zap.Strings("args", args),
		zap.String("user_config", config.GetUserConfigPath()),
		zap.String("verus_path", cfg.Verus.Path),
		zap.String("color", cfg.Color))

	ic = interceptor.New(cfg, mode, logger)
	if err := execute(ctx, args); err != nil {
		cargo.PrintError(os.Stderr, err)
		if exitCode == 0 {
			return 1
		}
	}
	return exitCode
}
