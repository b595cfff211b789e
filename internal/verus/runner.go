// Package verus runs the verus verifier on one crate and classifies what it
// prints.
package verus

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/vargo/internal/artifact"
	"github.com/ShayCichocki/vargo/internal/cargo"
)

// Crate describes the crate being verified, as cargo reports it.
type Crate struct {
	Name    string
	Version string
	Path    string
}

// Request is everything needed for one verus run.
type Request struct {
	Crate Crate
	// Args is the rewritten rustc argument list.
	Args []string
	// OutDir is cargo's --out-dir for this crate.
	OutDir string
	// Hash is the crate's -C metadata value.
	Hash string
	// ExtraFlags are shell-quoted flag strings appended after the fixed
	// arguments, in order (VERUS_FLAGS first, then Cargo.toml).
	ExtraFlags []string
}

// Result is the outcome reported by verus on its summary line.
type Result struct {
	Verified uint
	Failed   uint
	Elapsed  time.Duration
	// Found is false when verus never printed a summary line.
	Found bool
}

// ExitError is returned when verus exits with a non-zero status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("verus failed with exit code %d", e.Code)
}

// ErrNoVerus is returned when the runner has no verus path.
var ErrNoVerus = errors.New("verus path not set")

// Runner launches verus.
type Runner struct {
	// Path is the verus executable.
	Path string
	// Env is the base environment; nil means os.Environ().
	Env []string
	// Stdout receives the status lines and any non-summary stdout lines.
	Stdout io.Writer
	// Stderr receives verus diagnostics, minus artifact notifications.
	Stderr io.Writer

	cache  *artifact.Cache
	logger *zap.Logger
}

// NewRunner creates a Runner for the verus binary at path, writing to the
// process's stdout and stderr.
func NewRunner(path string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Path:   path,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		cache:  artifact.NewCache(),
		logger: logger,
	}
}

// Command builds the full verus argument list for req.
func Command(req Request) ([]string, error) {
	verifyDir := artifact.Dir(req.OutDir)
	export := artifact.For(req.OutDir, artifact.Identity{Name: req.Crate.Name, Hash: req.Hash}).DataPath

	args := make([]string, 0, len(req.Args)+8)
	args = append(args, req.Args...)
	args = append(args,
		"-L", "dependency="+verifyDir,
		"--emit=dep-info,metadata",
		"--no-report-long-running",
		"--compile",
		"--export", export,
	)
	for _, flags := range req.ExtraFlags {
		words, err := shellquote.Split(flags)
		if err != nil {
			return nil, fmt.Errorf("split flags %q: %w", flags, err)
		}
		args = append(args, words...)
	}
	return args, nil
}

// Verify runs verus to completion. A non-zero exit is reported as
// *ExitError regardless of the summary counts; failed obligations with a
// zero exit are only reported in the status line.
func (r *Runner) Verify(ctx context.Context, req Request) (Result, error) {
	if r.Path == "" {
		return Result{}, ErrNoVerus
	}

	args, err := Command(req)
	if err != nil {
		return Result{}, err
	}

	printer := cargo.NewPrinter(r.writer(r.Stdout, os.Stdout))
	printer.Message(cargo.Note, "Verifying",
		fmt.Sprintf("%s v%s (%s)", req.Crate.Name, req.Crate.Version, req.Crate.Path))

	if _, err := r.cache.Prepare(req.OutDir); err != nil {
		return Result{}, err
	}

	cmd := exec.CommandContext(ctx, r.Path, args...)
	cmd.Env = withoutVar(r.environ(), "CARGO_MAKEFLAGS")
	cmd.Stdin = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("create stderr pipe: %w", err)
	}

	r.log().Debug("starting verus",
		zap.String("path", r.Path),
		zap.Strings("args", args))

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start verus: %w", err)
	}

	var res Result
	var g errgroup.Group
	g.Go(func() error {
		forwardDiagnostics(stderr, r.writer(r.Stderr, os.Stderr))
		return nil
	})
	g.Go(func() error {
		out := r.writer(r.Stdout, os.Stdout)
		eachLine(stdout, func(line string) {
			if s, ok := ParseSummary(line); ok {
				res = Result{
					Verified: s.Verified,
					Failed:   s.Failed,
					Elapsed:  time.Since(start),
					Found:    true,
				}
				return
			}
			fmt.Fprintln(out, line)
		})
		return nil
	})
	_ = g.Wait()

	waitErr := cmd.Wait()

	if res.Found {
		reportResult(printer, req.Crate.Name, res)
	}

	r.log().Debug("verus finished",
		zap.Uint("verified", res.Verified),
		zap.Uint("failed", res.Failed),
		zap.Bool("summary", res.Found),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(waitErr))

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code := exitErr.ExitCode()
			if code < 0 {
				code = 1
			}
			return res, &ExitError{Code: code}
		}
		return res, fmt.Errorf("wait for verus: %w", waitErr)
	}
	return res, nil
}

func reportResult(p *cargo.Printer, name string, res Result) {
	secs := res.Elapsed.Seconds()
	if res.Failed == 0 {
		p.Message(cargo.Note, "Verus",
			fmt.Sprintf("%s: %d verified in %.2fs", name, res.Verified, secs))
		return
	}
	p.Message(cargo.Error, "Verus",
		fmt.Sprintf("%s: %d verified, %d failed, in %.2fs", name, res.Verified, res.Failed, secs))
}

// forwardDiagnostics copies every stderr line except artifact notifications.
func forwardDiagnostics(r io.Reader, w io.Writer) {
	eachLine(r, func(line string) {
		if IsArtifactMessage(line) {
			return
		}
		fmt.Fprintln(w, line)
	})
}

// eachLine calls fn for every line of r with the line ending removed. On a
// read error the rest of r is discarded so the writer never blocks.
func eachLine(r io.Reader, fn func(string)) {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			fn(line)
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			_, _ = io.Copy(io.Discard, br)
			return
		}
	}
}

func (r *Runner) log() *zap.Logger {
	if r.logger == nil {
		return zap.NewNop()
	}
	return r.logger
}

func (r *Runner) environ() []string {
	if r.Env != nil {
		return r.Env
	}
	return os.Environ()
}

func (r *Runner) writer(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}
	return w
}

func withoutVar(env []string, name string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if k, _, _ := strings.Cut(kv, "="); k == name {
			continue
		}
		out = append(out, kv)
	}
	return out
}
