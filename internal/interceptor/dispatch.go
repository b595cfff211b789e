package interceptor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ShayCichocki/vargo/internal/config"
	"github.com/ShayCichocki/vargo/internal/exec"
	"github.com/ShayCichocki/vargo/internal/toolchain"
	"github.com/ShayCichocki/vargo/internal/version"
)

// Dispatch runs cargo with args, installing this executable as the rustc
// wrapper for every crate cargo builds. It returns cargo's exit code. An
// extracted toolchain outlives cargo and is removed afterwards.
func (i *Interceptor) Dispatch(ctx context.Context, args []string) (int, error) {
	return i.withToolchain(func(h *toolchain.Handle) (int, error) {
		exe, err := i.Executable()
		if err != nil {
			return 1, fmt.Errorf("failed to get the vargo executable path: %w", err)
		}

		mode := config.Mode{Wrapper: exe, VerusPath: h.Path}
		i.log().Debug("running cargo",
			zap.String("wrapper", exe),
			zap.String("verus", h.Path),
			zap.Strings("args", args))

		code, err := i.Runner.Run(ctx, exec.Command{
			Name: i.Cargo,
			Args: args,
			Env:  mode.Environ(),
		})
		if err != nil {
			return code, fmt.Errorf("failed to run cargo: %w", err)
		}
		return code, nil
	})
}

// VerusDirect runs verus with args and returns its exit code.
func (i *Interceptor) VerusDirect(ctx context.Context, args []string) (int, error) {
	return i.withToolchain(func(h *toolchain.Handle) (int, error) {
		code, err := i.Runner.Run(ctx, exec.Command{Name: h.Path, Args: args})
		if err != nil {
			return code, fmt.Errorf("failed to run verus: %w", err)
		}
		return code, nil
	})
}

// Version prints vargo's version followed by what verus and cargo report.
// A probe that fails does not hide the others; its error is returned with
// exit code 1 after everything available has been printed.
func (i *Interceptor) Version(ctx context.Context) (int, error) {
	fmt.Fprintf(i.Stdout, "vargo %s\n", version.String())

	var errs []error
	if h, err := i.Locator.Locate(i.verusPath()); err != nil {
		errs = append(errs, fmt.Errorf("failed to get verus version: %w", err))
	} else {
		defer i.release(h)
		errs = append(errs, i.printVersion(ctx, "verus", h.Path))
	}
	errs = append(errs, i.printVersion(ctx, "cargo", i.Cargo))

	if err := errors.Join(errs...); err != nil {
		return 1, err
	}
	return 0, nil
}

func (i *Interceptor) printVersion(ctx context.Context, name, path string) error {
	out, err := i.Runner.Output(ctx, path, "--version")
	if err != nil {
		return fmt.Errorf("failed to get %s version: %w", name, err)
	}
	fmt.Fprintln(i.Stdout, strings.TrimRight(string(out), "\n"))
	return nil
}

// withToolchain resolves verus, runs fn and releases the toolchain after fn
// returns.
func (i *Interceptor) withToolchain(fn func(h *toolchain.Handle) (int, error)) (int, error) {
	h, err := i.Locator.Locate(i.verusPath())
	if err != nil {
		return 1, err
	}
	defer i.release(h)
	return fn(h)
}

func (i *Interceptor) release(h *toolchain.Handle) {
	if err := h.Close(); err != nil {
		i.log().Warn("failed to remove toolchain", zap.Error(err))
	}
}
