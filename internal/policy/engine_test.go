package policy

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolgate/toolgate/internal/checker"
	"github.com/toolgate/toolgate/pkg/types"
)

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, nil, checker.CallContext{WorkspaceRoot: t.TempDir()}, nil)
	require.NoError(t, err)
	return e
}

func shellCall(command string) types.ToolCall {
	return types.ToolCall{
		Name: "run_shell_command",
		Kind: types.KindShell,
		Args: map[string]any{"command": command},
	}
}

func TestEngine_PriorityWins(t *testing.T) {
	cfg := Config{
		Rules: []Rule{
			{Name: "allow-all", Decision: types.DecisionAllow, Priority: 0},
			{Name: "deny-rm", ToolName: "run_shell_command", ArgsPattern: `\brm\b`, Decision: types.DecisionDeny, Priority: 100},
		},
	}
	e := newTestEngine(t, cfg)

	res := e.Check(context.Background(), shellCall("rm -rf /tmp/x"), types.ApprovalModeDefault)
	require.NotNil(t, res.Rule)
	assert.Equal(t, types.DecisionDeny, res.Decision)
	assert.Equal(t, "deny-rm", res.Rule.Name)

	// Declaration order is irrelevant when priorities differ.
	cfg.Rules[0], cfg.Rules[1] = cfg.Rules[1], cfg.Rules[0]
	e = newTestEngine(t, cfg)
	res = e.Check(context.Background(), shellCall("rm -rf /tmp/x"), types.ApprovalModeDefault)
	assert.Equal(t, types.DecisionDeny, res.Decision)
}

func TestEngine_EqualPriorityFirstDeclaredWins(t *testing.T) {
	e := newTestEngine(t, Config{
		Rules: []Rule{
			{Name: "first", ToolName: "tool", Decision: types.DecisionAllow, Priority: 5},
			{Name: "second", ToolName: "tool", Decision: types.DecisionDeny, Priority: 5},
		},
	})
	res := e.Check(context.Background(), types.ToolCall{Name: "tool"}, types.ApprovalModeDefault)
	require.NotNil(t, res.Rule)
	assert.Equal(t, "first", res.Rule.Name)
	assert.Equal(t, types.DecisionAllow, res.Decision)
}

func TestEngine_DefaultDecision(t *testing.T) {
	e := newTestEngine(t, Config{})
	res := e.Check(context.Background(), types.ToolCall{Name: "anything"}, types.ApprovalModeDefault)
	assert.Equal(t, types.DecisionAskUser, res.Decision)
	assert.Nil(t, res.Rule)

	e = newTestEngine(t, Config{DefaultDecision: types.DecisionDeny})
	res = e.Check(context.Background(), types.ToolCall{Name: "anything"}, types.ApprovalModeDefault)
	assert.Equal(t, types.DecisionDeny, res.Decision)
	assert.Nil(t, res.Rule)
}

func TestEngine_ModeRestriction(t *testing.T) {
	e := newTestEngine(t, Config{
		Rules: []Rule{
			{
				Name:     "yolo-only",
				Decision: types.DecisionAllow,
				Modes:    []types.ApprovalMode{types.ApprovalModeYolo},
			},
		},
	})

	res := e.Check(context.Background(), types.ToolCall{Name: "tool"}, types.ApprovalModeYolo)
	assert.Equal(t, types.DecisionAllow, res.Decision)

	res = e.Check(context.Background(), types.ToolCall{Name: "tool"}, types.ApprovalModeDefault)
	assert.Equal(t, types.DecisionAskUser, res.Decision)
	assert.Nil(t, res.Rule)
}

func TestEngine_DenyMessageSurfaced(t *testing.T) {
	e := newTestEngine(t, Config{
		Rules: []Rule{
			{Name: "no-curl", ToolName: "run_shell_command", ArgsPattern: `curl`, Decision: types.DecisionDeny, DenyMessage: "network fetches are disabled here"},
		},
	})
	res := e.Check(context.Background(), shellCall("curl https://example.com"), types.ApprovalModeDefault)
	assert.Equal(t, types.DecisionDeny, res.Decision)
	assert.Equal(t, "network fetches are disabled here", res.Message)
}

// failingChecker always rejects; registered once for the engine tests.
type failingChecker struct{ reason string }

func (f failingChecker) Check(context.Context, types.ToolCall, checker.CallContext) error {
	return fmt.Errorf("%s", f.reason)
}

type passingChecker struct{}

func (passingChecker) Check(context.Context, types.ToolCall, checker.CallContext) error {
	return nil
}

func init() {
	checker.RegisterInProcess("test-always-fail", func(map[string]any) (checker.InProcess, error) {
		return failingChecker{reason: "rejected by test checker"}, nil
	})
	checker.RegisterInProcess("test-always-pass", func(map[string]any) (checker.InProcess, error) {
		return passingChecker{}, nil
	})
}

func TestEngine_CheckerDowngradesAllow(t *testing.T) {
	e := newTestEngine(t, Config{
		Rules: []Rule{{Name: "allow", Decision: types.DecisionAllow}},
		Checkers: []checker.Rule{
			{Checker: checker.Config{Type: checker.TypeInProcess, Name: "test-always-fail"}},
		},
	})
	res := e.Check(context.Background(), types.ToolCall{Name: "tool"}, types.ApprovalModeDefault)
	assert.Equal(t, types.DecisionAskUser, res.Decision)
	assert.Equal(t, "rejected by test checker", res.Message)
}

func TestEngine_CheckerDoesNotRunOnDeny(t *testing.T) {
	e := newTestEngine(t, Config{
		Rules: []Rule{{Name: "deny", Decision: types.DecisionDeny}},
		Checkers: []checker.Rule{
			{Checker: checker.Config{Type: checker.TypeInProcess, Name: "test-always-fail"}},
		},
	})
	res := e.Check(context.Background(), types.ToolCall{Name: "tool"}, types.ApprovalModeDefault)
	// A failing checker never escalates deny, and never downgrades it either.
	assert.Equal(t, types.DecisionDeny, res.Decision)
}

func TestEngine_NonInteractiveNeverAsks(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		call types.ToolCall
	}{
		{
			name: "default decision",
			cfg:  Config{NonInteractive: true},
			call: types.ToolCall{Name: "tool"},
		},
		{
			name: "explicit ask rule",
			cfg: Config{
				NonInteractive: true,
				Rules:          []Rule{{Name: "ask", Decision: types.DecisionAskUser}},
			},
			call: types.ToolCall{Name: "tool"},
		},
		{
			name: "checker downgrade still becomes deny",
			cfg: Config{
				NonInteractive: true,
				Rules:          []Rule{{Name: "allow", Decision: types.DecisionAllow}},
				Checkers: []checker.Rule{
					{Checker: checker.Config{Type: checker.TypeInProcess, Name: "test-always-fail"}},
				},
			},
			call: types.ToolCall{Name: "tool"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, tt.cfg)
			res := e.Check(context.Background(), tt.call, types.ApprovalModeDefault)
			assert.Equal(t, types.DecisionDeny, res.Decision)
			assert.NotEmpty(t, res.Message)
		})
	}
}

func TestEngine_RedirectionDowngrade(t *testing.T) {
	allowShell := Rule{Name: "allow-shell", ToolName: "run_shell_command", Decision: types.DecisionAllow}

	e := newTestEngine(t, Config{Rules: []Rule{allowShell}})
	res := e.Check(context.Background(), shellCall("echo hi > out.txt"), types.ApprovalModeDefault)
	assert.Equal(t, types.DecisionAskUser, res.Decision)

	res = e.Check(context.Background(), shellCall("echo hi"), types.ApprovalModeDefault)
	assert.Equal(t, types.DecisionAllow, res.Decision)

	withRedirection := allowShell
	withRedirection.AllowRedirection = true
	e = newTestEngine(t, Config{Rules: []Rule{withRedirection}})
	res = e.Check(context.Background(), shellCall("echo hi > out.txt"), types.ApprovalModeDefault)
	assert.Equal(t, types.DecisionAllow, res.Decision)
}

func TestEngine_RedirectionIgnoredForNonShell(t *testing.T) {
	e := newTestEngine(t, Config{
		Rules: []Rule{{Name: "allow", Decision: types.DecisionAllow}},
	})
	call := types.ToolCall{Name: "write_file", Args: map[string]any{"content": "a > b"}}
	res := e.Check(context.Background(), call, types.ApprovalModeDefault)
	assert.Equal(t, types.DecisionAllow, res.Decision)
}

func TestEngine_Hooks(t *testing.T) {
	off := false
	e := newTestEngine(t, Config{AllowHooks: &off})
	res := e.CheckHook(context.Background(), "pre-commit", "workspace")
	assert.Equal(t, types.DecisionDeny, res.Decision)

	e = newTestEngine(t, Config{
		HookCheckers: []HookRule{
			{EventName: "pre-commit", Checker: checker.Config{Type: checker.TypeInProcess, Name: "test-always-fail"}},
		},
	})
	res = e.CheckHook(context.Background(), "pre-commit", "workspace")
	assert.Equal(t, types.DecisionAskUser, res.Decision)

	// A different event name does not match the hook checker.
	res = e.CheckHook(context.Background(), "post-commit", "workspace")
	assert.Equal(t, types.DecisionAllow, res.Decision)
}

func TestEngine_HookSourceFilter(t *testing.T) {
	e := newTestEngine(t, Config{
		HookCheckers: []HookRule{
			{HookSource: "untrusted", Checker: checker.Config{Type: checker.TypeInProcess, Name: "test-always-fail"}},
		},
	})
	res := e.CheckHook(context.Background(), "pre-commit", "untrusted")
	assert.Equal(t, types.DecisionAskUser, res.Decision)

	res = e.CheckHook(context.Background(), "pre-commit", "workspace")
	assert.Equal(t, types.DecisionAllow, res.Decision)
}

func TestNewEngine_RejectsBadConfig(t *testing.T) {
	_, err := NewEngine(Config{
		Rules: []Rule{{Name: "bad", Decision: "maybe"}},
	}, nil, checker.CallContext{}, nil)
	require.Error(t, err)

	_, err = NewEngine(Config{
		Rules: []Rule{{Name: "bad-re", ArgsPattern: "(", Decision: types.DecisionAllow}},
	}, nil, checker.CallContext{}, nil)
	require.Error(t, err)

	_, err = NewEngine(Config{
		Checkers: []checker.Rule{
			{Checker: checker.Config{Type: checker.TypeInProcess, Name: "no-such-checker"}},
		},
	}, nil, checker.CallContext{}, nil)
	require.Error(t, err)
}

func TestEngine_ArgsPatternMatchesSerializedArgs(t *testing.T) {
	e := newTestEngine(t, Config{
		Rules: []Rule{
			{Name: "allow-status", ToolName: "run_shell_command", ArgsPattern: `git status`, Decision: types.DecisionAllow},
		},
		DefaultDecision: types.DecisionAskUser,
	})

	res := e.Check(context.Background(), shellCall("git status"), types.ApprovalModeDefault)
	assert.Equal(t, types.DecisionAllow, res.Decision)

	res = e.Check(context.Background(), shellCall("git push"), types.ApprovalModeDefault)
	assert.Equal(t, types.DecisionAskUser, res.Decision)
}
