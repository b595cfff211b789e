package verus

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ShayCichocki/vargo/internal/artifact"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	goleak.VerifyTestMain(m)
}

const fakeVerus = `#!/bin/sh
printf '%s\n' "$@" > "$FAKE_ARGS"
env > "$FAKE_ENV"
echo '{"$message_type":"artifact","artifact":"/t/verify/libsimple-c0ffee.rmeta","emit":"metadata"}' >&2
echo 'warning: unused variable' >&2
echo '{"$message_type":"diagnostic","message":"note"}' >&2
echo 'hello from verus'
echo "verification results:: ${FAKE_VERIFIED:-5} verified, ${FAKE_FAILED:-0} errors"
exit ${FAKE_EXIT:-0}
`

type harness struct {
	dir    string
	runner *Runner
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T, script string, env ...string) *harness {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures need a POSIX shell")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "verus")
	require.NoError(t, os.WriteFile(bin, []byte(script), 0755))

	h := &harness{
		dir:    dir,
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	h.runner = NewRunner(bin, nil)
	h.runner.Stdout = h.stdout
	h.runner.Stderr = h.stderr
	h.runner.Env = append(os.Environ(),
		"FAKE_ARGS="+filepath.Join(dir, "args.txt"),
		"FAKE_ENV="+filepath.Join(dir, "env.txt"),
		"CARGO_MAKEFLAGS=-j4 --jobserver-fds=3,4",
	)
	h.runner.Env = append(h.runner.Env, env...)
	return h
}

func (h *harness) request() Request {
	return Request{
		Crate:  Crate{Name: "simple", Version: "0.1.0", Path: "/src/simple"},
		Args:   []string{"--crate-name", "simple", "src/main.rs", "--out-dir", artifact.Dir(filepath.Join(h.dir, "deps"))},
		OutDir: filepath.Join(h.dir, "deps"),
		Hash:   "c0ffee",
	}
}

func (h *harness) args(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.dir, "args.txt"))
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestCommand(t *testing.T) {
	req := Request{
		Crate:      Crate{Name: "crate_b"},
		Args:       []string{"src/main.rs"},
		OutDir:     "/t/deps",
		Hash:       "ab12",
		ExtraFlags: []string{"--rlimit 20 --log-dir '/tmp/verus logs'", "", "--expand-errors"},
	}

	got, err := Command(req)
	require.NoError(t, err)

	want := []string{
		"src/main.rs",
		"-L", "dependency=" + artifact.Dir("/t/deps"),
		"--emit=dep-info,metadata",
		"--no-report-long-running",
		"--compile",
		"--export", "/t/deps/verify/crate_b-ab12.verusdata",
		"--rlimit", "20", "--log-dir", "/tmp/verus logs",
		"--expand-errors",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Command mismatch (-want +got):\n%s", diff)
	}
}

func TestCommand_BadQuoting(t *testing.T) {
	_, err := Command(Request{OutDir: "o", ExtraFlags: []string{`--log-dir "unterminated`}})
	assert.Error(t, err)
}

func TestRunner_Verify(t *testing.T) {
	h := newHarness(t, fakeVerus)
	req := h.request()

	res, err := h.runner.Verify(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, res.Found)
	assert.Equal(t, uint(5), res.Verified)
	assert.Equal(t, uint(0), res.Failed)
	assert.Greater(t, int64(res.Elapsed), int64(0))

	// Diagnostics are forwarded verbatim and in order, artifacts dropped.
	assert.Equal(t,
		"warning: unused variable\n"+`{"$message_type":"diagnostic","message":"note"}`+"\n",
		h.stderr.String())

	out := h.stdout.String()
	assert.True(t, strings.HasPrefix(out, "   Verifying simple v0.1.0 (/src/simple)\n"), out)
	assert.Contains(t, out, "hello from verus\n")
	assert.Contains(t, out, "       Verus simple: 5 verified in ")
	assert.NotContains(t, out, "verification results::")

	args := h.args(t)
	assert.Equal(t, req.Args, args[:len(req.Args)])
	assert.Contains(t, args, "--export")
	assert.Equal(t, artifact.For(req.OutDir, artifact.Identity{Name: "simple", Hash: "c0ffee"}).DataPath, args[len(args)-1])

	info, err := os.Stat(artifact.Dir(req.OutDir))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	env, err := os.ReadFile(filepath.Join(h.dir, "env.txt"))
	require.NoError(t, err)
	assert.NotContains(t, string(env), "CARGO_MAKEFLAGS")
}

func TestRunner_VerifyReportsFailures(t *testing.T) {
	h := newHarness(t, fakeVerus, "FAKE_VERIFIED=3", "FAKE_FAILED=2")

	res, err := h.runner.Verify(context.Background(), h.request())

	// A zero exit with failures is not an error here; the caller decides.
	require.NoError(t, err)
	assert.Equal(t, uint(3), res.Verified)
	assert.Equal(t, uint(2), res.Failed)
	assert.Contains(t, h.stdout.String(), "       Verus simple: 3 verified, 2 failed, in ")
}

func TestRunner_VerifyNonZeroExit(t *testing.T) {
	h := newHarness(t, fakeVerus, "FAKE_EXIT=3", "FAKE_FAILED=1")

	res, err := h.runner.Verify(context.Background(), h.request())

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "got %v", err)
	assert.Equal(t, 3, exitErr.Code)
	assert.True(t, res.Found)
	assert.Equal(t, uint(1), res.Failed)
}

func TestRunner_VerifyNonZeroExitWithZeroFailures(t *testing.T) {
	h := newHarness(t, fakeVerus, "FAKE_EXIT=1")

	_, err := h.runner.Verify(context.Background(), h.request())

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
}

func TestRunner_VerifyWithoutSummary(t *testing.T) {
	h := newHarness(t, "#!/bin/sh\necho 'error: could not parse' >&2\nexit 0\n")

	res, err := h.runner.Verify(context.Background(), h.request())
	require.NoError(t, err)

	assert.False(t, res.Found)
	assert.Equal(t, "error: could not parse\n", h.stderr.String())
	assert.NotContains(t, h.stdout.String(), "Verus")
}

func TestRunner_VerifyDrainsBothStreams(t *testing.T) {
	// Each stream gets far more than a pipe buffer; reading them one after
	// the other would deadlock.
	script := `#!/bin/sh
i=0
while [ $i -lt 5000 ]; do
  echo "stderr diagnostic line number $i padded to be reasonably long" >&2
  echo "stdout chatter line number $i padded to be reasonably long"
  i=$((i+1))
done
echo "verification results:: 1 verified, 0 errors"
`
	h := newHarness(t, script)

	res, err := h.runner.Verify(context.Background(), h.request())
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, 5000, strings.Count(h.stderr.String(), "\n"))
	assert.Contains(t, h.stderr.String(), "stderr diagnostic line number 4999 ")
}

func TestRunner_VerifyExtraFlags(t *testing.T) {
	h := newHarness(t, fakeVerus)
	req := h.request()
	req.ExtraFlags = []string{"--rlimit 10", "--expand-errors"}

	_, err := h.runner.Verify(context.Background(), req)
	require.NoError(t, err)

	args := h.args(t)
	assert.Equal(t, []string{"--rlimit", "10", "--expand-errors"}, args[len(args)-3:])
}

func TestRunner_VerifyMissingBinary(t *testing.T) {
	r := NewRunner(filepath.Join(t.TempDir(), "nope"), nil)
	r.Stdout = &bytes.Buffer{}
	r.Stderr = &bytes.Buffer{}

	_, err := r.Verify(context.Background(), Request{OutDir: t.TempDir(), Hash: "h", Crate: Crate{Name: "c"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start verus")
}

func TestRunner_VerifyNoPath(t *testing.T) {
	_, err := NewRunner("", nil).Verify(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoVerus)
}
