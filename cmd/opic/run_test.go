package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// env points every path the CLI touches into a temp directory.
func env(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("OPIC_ROOT", root)
	t.Setenv("OPIC_KEYS", filepath.Join(root, "keys"))
	t.Setenv("OPIC_WITNESS_LOG", filepath.Join(root, "witness.log"))
	t.Setenv("OPIC_REALM", "test_realm")
	t.Setenv("OPIC_CA", "test_ca")
	t.Setenv("OPIC_CONVENTIONS", "")
	t.Setenv("OPIC_PROFILE", "")
	t.Setenv("OPIC_TIMEOUT_MS", "")
	t.Setenv("OPIC_LOG_LEVEL", "")
	return root
}

func seed(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o700))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"opic"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsage(t *testing.T) {
	code, _, stderr := run()
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Usage")

	code, stdout, _ := run("help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "execute")

	code, _, stderr = run("frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command")
}

func TestExecuteVerifyDoctor(t *testing.T) {
	root := env(t)
	seed(t, root, "systems/main.ops", `
voice identity / { }
voice main / { "x" -> identity -> "done" }
`)

	code, stdout, stderr := run("execute", "systems/main.ops")
	require.Equal(t, 0, code, "stderr: %s", stderr)
	assert.Equal(t, "done\n", stdout)

	_, err := os.Stat(filepath.Join(root, upFile))
	require.NoError(t, err, "a successful run writes the checkpoint")

	code, stdout, stderr = run("verify", filepath.Join(root, "witness.log"))
	require.Equal(t, 0, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "chain intact")

	code, stdout, stderr = run("doctor")
	require.Equal(t, 0, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "UP:")
	assert.Contains(t, stdout, "realm=test_realm")
}

func TestExecuteSoftFallbackWarns(t *testing.T) {
	root := env(t)
	seed(t, root, "systems/main.ops", `voice main / { "x" -> nonexistent.voice }`)

	code, stdout, stderr := run("execute", "systems/main.ops")
	require.Equal(t, 0, code, "graceful degradation still succeeds")
	assert.Equal(t, "nonexistent.voice\n", stdout)
	assert.Contains(t, stderr, "unresolved")
}

func TestExecuteLoadErrorExitCode(t *testing.T) {
	env(t)
	code, _, stderr := run("execute", "systems/missing.ops")
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "LoadError(NotFound)")
}

func TestExecuteParseErrorExitCode(t *testing.T) {
	root := env(t)
	seed(t, root, "systems/bad.ops", `voice main / { "unclosed`)

	code, _, stderr := run("execute", "systems/bad.ops")
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "LoadError(Parse)")
	assert.Contains(t, stderr, "systems/bad.ops")
}

func TestExecuteUnknownVoiceExitCode(t *testing.T) {
	root := env(t)
	seed(t, root, "systems/main.ops", `voice other / "x"`)

	code, _, stderr := run("execute", "systems/main.ops")
	assert.Equal(t, 4, code)
	assert.Contains(t, stderr, "ExecError(Resolve)")
}

func TestExecuteWithConventions(t *testing.T) {
	root := env(t)
	seed(t, root, "systems/main.ops", `voice main / { "x" -> billing.invoice }`)
	seed(t, root, "custom/billing.ops", `voice billing.invoice / "sent"`)
	seed(t, root, "conventions.yaml", "conventions:\n  billing: custom/billing.ops\n")
	t.Setenv("OPIC_CONVENTIONS", filepath.Join(root, "conventions.yaml"))

	code, stdout, stderr := run("execute", "systems/main.ops")
	require.Equal(t, 0, code, "stderr: %s", stderr)
	assert.Equal(t, "sent\n", stdout)
}

func TestExecuteProfileMergePolicy(t *testing.T) {
	root := env(t)
	// Both hinted files define "shared": fatal under the default strict
	// policy, last-wins under an override profile.
	seed(t, root, "systems/main.ops", `voice main / { "x" -> a.first -> b.second }`)
	seed(t, root, "systems/a.ops", "voice shared / \"a\"\nvoice a.first / \"fa\"\n")
	seed(t, root, "systems/b.ops", "voice shared / \"b\"\nvoice b.second / \"fb\"\n")
	seed(t, root, "profile_ci.yaml", "merge_policy: override\ntimeout_ms: 5000\n")

	code, _, stderr := run("execute", "systems/main.ops")
	require.Equal(t, 3, code, "strict merge must reject the redefinition")
	assert.Contains(t, stderr, "LoadError(Parse)")

	code, stdout, stderr := run("execute", "-profile", "ci", "systems/main.ops")
	require.Equal(t, 0, code, "stderr: %s", stderr)
	assert.Equal(t, "fb\n", stdout)

	t.Run("env fallback", func(t *testing.T) {
		t.Setenv("OPIC_PROFILE", "ci")
		code, stdout, stderr := run("execute", "systems/main.ops")
		require.Equal(t, 0, code, "stderr: %s", stderr)
		assert.Equal(t, "fb\n", stdout)
	})
}

func TestExecuteProfileConventions(t *testing.T) {
	root := env(t)
	seed(t, root, "systems/main.ops", `voice main / { "x" -> billing.invoice }`)
	seed(t, root, "custom/billing.ops", `voice billing.invoice / "sent"`)
	seed(t, root, "tables.yaml", "conventions:\n  billing: custom/billing.ops\n")
	seed(t, root, "profile_prod.yaml", "conventions: tables.yaml\n")

	code, stdout, stderr := run("execute", "-profile", "prod", "systems/main.ops")
	require.Equal(t, 0, code, "stderr: %s", stderr)
	assert.Equal(t, "sent\n", stdout)
}

func TestExecuteMissingProfile(t *testing.T) {
	root := env(t)
	seed(t, root, "systems/main.ops", `voice main / "ok"`)

	code, _, stderr := run("execute", "-profile", "ghost", "systems/main.ops")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "ghost")
}

func TestVerifyDetectsTamper(t *testing.T) {
	root := env(t)
	seed(t, root, "systems/main.ops", `voice main / { "a" -> "b" }`)

	code, _, stderr := run("execute", "systems/main.ops")
	require.Equal(t, 0, code, "stderr: %s", stderr)

	logPath := filepath.Join(root, "witness.log")
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	tampered := bytes.Replace(data, []byte(`"step_id":"0/0"`), []byte(`"step_id":"0/9"`), 1)
	require.NotEqual(t, string(data), string(tampered), "fixture must actually tamper")
	require.NoError(t, os.WriteFile(logPath, tampered, 0o600))

	code, _, stderr = run("verify", logPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "BROKEN")
}

func TestKeygenAndIssue(t *testing.T) {
	env(t)

	code, stdout, stderr := run("keygen", "test_ca")
	require.Equal(t, 0, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "public_key:")

	code, stdout, stderr = run("issue", "-subject", "alice", "-grant", "systems/*:read,voices/*:execute")
	require.Equal(t, 0, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, `"subject": "alice"`)
	assert.Contains(t, stdout, `"signature"`)

	code, stdout, stderr = run("issue", "-subject", "alice", "-grant", "systems/*:read", "-token")
	require.Equal(t, 0, code, "stderr: %s", stderr)
	assert.NotEmpty(t, stdout)

	code, _, _ = run("issue", "-subject", "alice", "-grant", "malformed")
	assert.Equal(t, 2, code)
}

func TestDoctorWithoutCheckpoint(t *testing.T) {
	env(t)
	code, _, stderr := run("doctor")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "DOWN")
}
