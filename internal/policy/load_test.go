package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolgate/toolgate/pkg/types"
)

func writePolicy(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	p := writePolicy(t, dir, "base.yaml", `
rules:
  - name: allow-git-status
    toolName: run_shell_command
    argsPattern: '^\{"command":"git status'
    decision: allow
    priority: 10
  - name: tagged
    decision: deny
    source: admin-settings
defaultDecision: ask_user
`)
	cfg, err := LoadFromFile(p)
	require.NoError(t, err)
	require.Len(t, cfg.Rules, 2)

	// Rules without an explicit source are tagged with their file.
	assert.Equal(t, p, cfg.Rules[0].Source)
	assert.Equal(t, "admin-settings", cfg.Rules[1].Source)
	assert.Equal(t, types.DecisionAskUser, cfg.DefaultDecision)
}

func TestLoadFromFile_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	p := writePolicy(t, dir, "typo.yaml", `
rules:
  - name: r
    decission: allow
`)
	_, err := LoadFromFile(p)
	require.Error(t, err)
}

func TestLoadFromFile_RejectsInvalidDecision(t *testing.T) {
	dir := t.TempDir()
	p := writePolicy(t, dir, "bad.yaml", `
rules:
  - name: r
    decision: sometimes
`)
	_, err := LoadFromFile(p)
	require.Error(t, err)
}

func TestMerge(t *testing.T) {
	hooksOff := false
	user := &Config{
		Rules:           []Rule{{Name: "user-rule", Decision: types.DecisionAllow}},
		DefaultDecision: types.DecisionAskUser,
	}
	workspace := &Config{
		Rules:           []Rule{{Name: "ws-rule", Decision: types.DecisionDeny}},
		DefaultDecision: types.DecisionDeny,
		AllowHooks:      &hooksOff,
	}

	merged := Merge(user, workspace, nil)
	require.Len(t, merged.Rules, 2)
	assert.Equal(t, "user-rule", merged.Rules[0].Name)
	assert.Equal(t, "ws-rule", merged.Rules[1].Name)
	assert.Equal(t, types.DecisionDeny, merged.DefaultDecision)
	require.NotNil(t, merged.AllowHooks)
	assert.False(t, *merged.AllowHooks)
}

func TestResolvePolicyPath(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "strict.yaml", "rules: []\n")

	p, err := ResolvePolicyPath(dir, "strict")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "strict.yaml"), p)

	_, err = ResolvePolicyPath(dir, "missing")
	require.Error(t, err)

	_, err = ResolvePolicyPath(dir, "../escape")
	require.Error(t, err)
}
