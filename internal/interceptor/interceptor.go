// Package interceptor is vargo's top-level control. In dispatch mode it
// runs cargo with itself installed as RUSTC_WRAPPER; in substitute mode it
// stands in for rustc, runs verus when the crate depends on vstd, and then
// always hands the original arguments to the real rustc.
package interceptor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/ShayCichocki/vargo/internal/artifact"
	"github.com/ShayCichocki/vargo/internal/config"
	"github.com/ShayCichocki/vargo/internal/exec"
	"github.com/ShayCichocki/vargo/internal/rustc"
	"github.com/ShayCichocki/vargo/internal/toolchain"
	"github.com/ShayCichocki/vargo/internal/verus"
)

// ErrNoRustc is returned when substitute mode is entered without the rustc
// path cargo passes as the first argument.
var ErrNoRustc = errors.New("expected the rustc path as the first argument")

// Verifier runs verus for one crate.
type Verifier interface {
	Verify(ctx context.Context, req verus.Request) (verus.Result, error)
}

// Locator resolves the verus toolchain.
type Locator interface {
	Locate(path string) (*toolchain.Handle, error)
}

// Interceptor composes classification, cache lookups, verification and the
// final rustc or cargo invocation.
type Interceptor struct {
	// Config is the loaded configuration.
	Config *config.Config
	// Mode is the decoded invocation mode.
	Mode config.Mode
	// Runner starts rustc, cargo and verus-direct.
	Runner exec.CommandRunner
	// Cache resolves artifacts of verified dependencies.
	Cache rustc.Resolver
	// Locator finds verus.
	Locator Locator
	// NewVerifier builds a Verifier for a verus binary.
	NewVerifier func(path string) Verifier
	// LookupEnv reads the crate identity cargo exports.
	LookupEnv func(string) (string, bool)
	// Executable returns the path cargo should run as RUSTC_WRAPPER.
	Executable func() (string, error)
	// Cargo is the cargo binary.
	Cargo string
	// Stdout receives the version report.
	Stdout io.Writer

	logger *zap.Logger
}

// New creates an Interceptor wired to the real process environment.
func New(cfg *config.Config, mode config.Mode, logger *zap.Logger) *Interceptor {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interceptor{
		Config:  cfg,
		Mode:    mode,
		Runner:  exec.NewRunner(),
		Cache:   artifact.NewCache(),
		Locator: toolchain.NewLocator(),
		NewVerifier: func(path string) Verifier {
			return verus.NewRunner(path, logger)
		},
		LookupEnv:  os.LookupEnv,
		Executable: os.Executable,
		Cargo:      "cargo",
		Stdout:     os.Stdout,
		logger:     logger,
	}
}

// Substitute handles one rustc invocation. argv[0] is the real rustc, the
// rest are its arguments. The returned code is rustc's exit code; a verus
// process failure returns a non-zero code and an error without running
// rustc.
func (i *Interceptor) Substitute(ctx context.Context, argv []string) (int, error) {
	if len(argv) == 0 {
		return 1, ErrNoRustc
	}
	rustcPath, args := argv[0], argv[1:]

	if err := i.verify(ctx, args); err != nil {
		return 1, fmt.Errorf("failed to call verus: %w", err)
	}

	code, err := i.Runner.Run(ctx, exec.Command{Name: rustcPath, Args: args})
	if err != nil {
		return code, fmt.Errorf("failed to run rustc: %w", err)
	}
	i.log().Debug("rustc finished", zap.Int("code", code))
	return code, nil
}

// verify runs verus when the crate depends on vstd and cargo supplied both
// --out-dir and -C metadata. Failed obligations reported with a zero exit
// are not an error.
func (i *Interceptor) verify(ctx context.Context, args []string) error {
	rw := rustc.Classify(args, i.Cache)

	i.log().Debug("classified rustc invocation",
		zap.Bool("applies", rw.Applies),
		zap.String("out_dir", rw.OutDir),
		zap.String("hash", rw.Hash),
		zap.Int("imports", len(rw.Imports)))

	if !rw.Ready() {
		return nil
	}

	crate, err := config.CrateFromEnv(i.LookupEnv)
	if err != nil {
		return err
	}

	h, err := i.Locator.Locate(i.verusPath())
	if err != nil {
		return err
	}
	defer h.Close()

	for _, a := range rw.Imports {
		i.log().Debug("importing verified dependency",
			zap.String("crate", a.Name),
			zap.String("hash", a.Hash),
			zap.String("data", a.DataPath))
	}

	res, err := i.NewVerifier(h.Path).Verify(ctx, verus.Request{
		Crate: verus.Crate{
			Name:    crate.Name,
			Version: crate.Version,
			Path:    crate.ManifestDir,
		},
		Args:   rw.Args,
		OutDir: rw.OutDir,
		Hash:   rw.Hash,
		ExtraFlags: []string{
			i.Config.Verus.Flags,
			config.ManifestFlags(crate.ManifestPath()),
		},
	})
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		i.log().Warn("verus reported failures with a zero exit",
			zap.String("crate", crate.Name),
			zap.Uint("failed", res.Failed))
	}
	return nil
}

// verusPath is the explicit verus override: VARGO_VERUS_PATH, then the
// configured path (VERUS_PATH or config files). Empty means bundle or PATH.
func (i *Interceptor) verusPath() string {
	if i.Mode.VerusPath != "" {
		return i.Mode.VerusPath
	}
	return i.Config.Verus.Path
}

func (i *Interceptor) log() *zap.Logger {
	if i.logger == nil {
		return zap.NewNop()
	}
	return i.logger
}
