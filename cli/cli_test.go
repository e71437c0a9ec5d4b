package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studygarden/memquiz/testutils"
)

// resetFlags restores every flag to its default so runs don't leak into
// each other through the package-level flag variables.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func writeConfig(t *testing.T, primary string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := fmt.Sprintf(`
api:
  primary: %s
  timeout: 2s
storage:
  backend: sqlite
  path: %s
`, primary, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	resetFlags(RootCmd)
	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs(args)
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetArgs(nil)
	})
	code = Execute(context.Background())
	return code, out.String(), errOut.String()
}

func TestQuestions_All(t *testing.T) {
	backend := testutils.NewMockBackend(t, testutils.SampleBank())
	cfg := writeConfig(t, backend.URL())

	code, out, _ := run(t, "--config", cfg, "--user", "u042", "questions", "--all", "--grade", "9")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "ok: loaded: backend returned 3, showing 3")
	assert.Contains(t, out, "Q1")
	assert.Contains(t, out, "A | B | C")
	assert.Equal(t, "u042", backend.LastQuery("getQuestions")["user_id"])
	assert.NotContains(t, backend.LastQuery("getQuestions"), "grade")
}

func TestQuestions_Filtered(t *testing.T) {
	backend := testutils.NewMockBackend(t, testutils.SampleBank())
	cfg := writeConfig(t, backend.URL())

	code, out, _ := run(t, "--config", cfg, "questions", "--grade", "9")
	require.Equal(t, 0, code)
	assert.Equal(t, "9", backend.LastQuery("getQuestions")["grade"])
	assert.NotContains(t, out, "Q1")
}

func TestReview(t *testing.T) {
	backend := testutils.NewMockBackend(t, testutils.SampleBank())
	backend.SetReview(testutils.SampleBank()[:2])
	cfg := writeConfig(t, backend.URL())

	code, out, _ := run(t, "--config", cfg, "review")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Q2")
	assert.Contains(t, out, "2 active in backlog")
}

func TestPing(t *testing.T) {
	backend := testutils.NewMockBackend(t, testutils.SampleBank())
	cfg := writeConfig(t, backend.URL())

	code, out, _ := run(t, "--config", cfg, "ping")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "ok: API OK: pong")
}

func TestPing_Unreachable(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1/exec")

	code, _, errOut := run(t, "--config", cfg, "ping")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "error: unreachable (network:")
	assert.NotContains(t, errOut, "error: reported")
}

func TestEndpoint(t *testing.T) {
	backend := testutils.NewMockBackend(t, testutils.SampleBank())
	cfg := writeConfig(t, backend.URL())

	code, out, _ := run(t, "--config", cfg, "endpoint")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "primary")
	assert.Contains(t, out, backend.URL())
	assert.Contains(t, out, "(none)")

	code, out, _ = run(t, "--config", cfg, "endpoint", "reset")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "API OK")
}

func TestAnswer(t *testing.T) {
	backend := testutils.NewMockBackend(t, testutils.SampleBank())
	cfg := writeConfig(t, backend.URL())

	code, out, _ := run(t, "--config", cfg, "answer", "Q1", "2")
	require.Equal(t, 0, code)
	assert.Contains(t, out, `"is_correct": true`)
	assert.Equal(t, "1", backend.LastQuery("submitAnswer")["chosen_index"])

	code, _, errOut := run(t, "--config", cfg, "answer", "Q1", "zero")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "option must be a positive number")
}

func TestRestart_BackendWithoutReset(t *testing.T) {
	backend := testutils.NewMockBackend(t, testutils.SampleBank())
	backend.FailResetUser()
	cfg := writeConfig(t, backend.URL())

	code, _, errOut := run(t, "--config", cfg, "restart")
	assert.Equal(t, 0, code)
	assert.Contains(t, errOut, "warn: backend reset unavailable; cleared local cache only")
}

func TestSummaryAndClearCache(t *testing.T) {
	backend := testutils.NewMockBackend(t, testutils.SampleBank())
	cfg := writeConfig(t, backend.URL())

	code, out, _ := run(t, "--config", cfg, "summary")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "no finished session")

	code, out, _ = run(t, "--config", cfg, "clear-cache")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "ok: local cache cleared")
}

func TestMissingConfigFile(t *testing.T) {
	code, _, errOut := run(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "ping")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "load config")
}

func TestEndpointProbe_Promote(t *testing.T) {
	backend := testutils.NewMockBackend(t, testutils.SampleBank())
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := fmt.Sprintf(`
api:
  primary: http://127.0.0.1:1/exec
  stable: %s
  timeout: 2s
storage:
  backend: sqlite
  path: %s
`, backend.URL(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	code, out, _ := run(t, "--config", path, "endpoint", "probe", "--promote")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "active endpoint: "+backend.URL())

	code, out, _ = run(t, "--config", path, "endpoint")
	require.Equal(t, 0, code)
	assert.Contains(t, out, backend.URL()+" -> http://127.0.0.1:1/exec")
}
