package policy

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/toolgate/toolgate/internal/checker"
	"github.com/toolgate/toolgate/pkg/types"
)

// Engine classifies proposed tool calls against prioritized rules and the
// configured safety checkers. A decision is a pure function of the call, the
// engine config and the approval mode; session state (allowlists) is the
// caller's concern.
type Engine struct {
	cfg    Config
	rules  []compiledRule
	hooks  []compiledHookRule
	runner *checker.Runner
	cc     checker.CallContext
	logger *slog.Logger
}

type compiledRule struct {
	rule  Rule
	args  *regexp.Regexp
	modes map[types.ApprovalMode]struct{}
	order int
}

type compiledHookRule struct {
	rule   HookRule
	runner *checker.Runner
}

// NewEngine compiles the config. Invalid patterns and unknown checker names
// fail here, not at check time.
func NewEngine(cfg Config, external *checker.ExternalClient, cc checker.CallContext, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, cc: cc, logger: logger}

	for i, r := range cfg.Rules {
		cr := compiledRule{rule: r, order: i}
		if r.ArgsPattern != "" {
			re, err := regexp.Compile(r.ArgsPattern)
			if err != nil {
				return nil, fmt.Errorf("compile rule %q args pattern: %w", r.Name, err)
			}
			cr.args = re
		}
		if len(r.Modes) > 0 {
			cr.modes = make(map[types.ApprovalMode]struct{}, len(r.Modes))
			for _, m := range r.Modes {
				cr.modes[m] = struct{}{}
			}
		}
		e.rules = append(e.rules, cr)
	}

	runner, err := checker.NewRunner(cfg.Checkers, external, logger)
	if err != nil {
		return nil, err
	}
	e.runner = runner

	for _, h := range cfg.HookCheckers {
		hr, err := checker.NewRunner([]checker.Rule{{Checker: h.Checker, Priority: h.Priority}}, external, logger)
		if err != nil {
			return nil, fmt.Errorf("hook checker %q: %w", h.Checker.Name, err)
		}
		e.hooks = append(e.hooks, compiledHookRule{rule: h, runner: hr})
	}

	return e, nil
}

// Check classifies one tool call under the given approval mode.
//
// The winning rule is the highest-priority match; equal priority falls back
// to declaration order. allow decisions can be downgraded to ask_user by a
// failing checker or redirection syntax, and any final ask_user becomes deny
// in non-interactive runs.
func (e *Engine) Check(ctx context.Context, call types.ToolCall, mode types.ApprovalMode) CheckResult {
	res := e.matchRules(call, mode)

	if res.Decision == types.DecisionDeny {
		return e.finish(call, mode, res)
	}

	if res.Decision == types.DecisionAllow {
		if v := e.runner.Run(ctx, call, e.cc); !v.OK {
			e.logger.Debug("checker downgraded allow",
				"tool", call.Name, "checker", v.Checker, "reason", v.Reason)
			res = CheckResult{Decision: types.DecisionAskUser, Rule: res.Rule, Message: v.Reason}
		}
	}

	// Redirection is evaluated after checkers: a generic allow rule must not
	// auto-approve commands that can overwrite or exfiltrate through the
	// shell's own redirection.
	if res.Decision == types.DecisionAllow && call.Kind == types.KindShell {
		if (res.Rule == nil || !res.Rule.AllowRedirection) && ContainsRedirection(call.Command()) {
			res = CheckResult{
				Decision: types.DecisionAskUser,
				Rule:     res.Rule,
				Message:  "command uses output redirection",
			}
		}
	}

	return e.finish(call, mode, res)
}

// CheckHook classifies a hook execution. Hooks have no tool call; matching is
// by event name and hook source.
func (e *Engine) CheckHook(ctx context.Context, eventName, hookSource string) CheckResult {
	if !e.cfg.allowHooks() {
		return CheckResult{Decision: types.DecisionDeny, Message: "hooks are disabled"}
	}

	call := types.ToolCall{Name: eventName, Args: map[string]any{"source": hookSource}}
	res := CheckResult{Decision: types.DecisionAllow}
	for _, h := range e.hooks {
		if h.rule.EventName != "" && h.rule.EventName != eventName {
			continue
		}
		if h.rule.HookSource != "" && h.rule.HookSource != hookSource {
			continue
		}
		if v := h.runner.Run(ctx, call, e.cc); !v.OK {
			res = CheckResult{Decision: types.DecisionAskUser, Message: v.Reason}
			break
		}
	}

	if e.cfg.NonInteractive && res.Decision == types.DecisionAskUser {
		res.Decision = types.DecisionDeny
		if res.Message == "" {
			res.Message = "confirmation required but session is non-interactive"
		}
	}
	return res
}

func (e *Engine) matchRules(call types.ToolCall, mode types.ApprovalMode) CheckResult {
	serialized := call.SerializedArgs()
	var winner *compiledRule
	for i := range e.rules {
		cr := &e.rules[i]
		if cr.rule.ToolName != "" && cr.rule.ToolName != call.Name {
			continue
		}
		if cr.args != nil && !cr.args.MatchString(serialized) {
			continue
		}
		if cr.modes != nil {
			if _, ok := cr.modes[mode]; !ok {
				continue
			}
		}
		// Strictly-greater keeps the earliest declaration on ties.
		if winner == nil || cr.rule.Priority > winner.rule.Priority {
			winner = cr
		}
	}
	if winner == nil {
		return CheckResult{Decision: e.cfg.defaultDecision()}
	}
	rule := winner.rule
	msg := ""
	if rule.Decision == types.DecisionDeny {
		msg = rule.DenyMessage
	}
	return CheckResult{Decision: rule.Decision, Rule: &rule, Message: msg}
}

// finish applies the non-interactive downgrade. It runs last so checkers and
// the redirection heuristic always execute first.
func (e *Engine) finish(call types.ToolCall, mode types.ApprovalMode, res CheckResult) CheckResult {
	if e.cfg.NonInteractive && res.Decision == types.DecisionAskUser {
		msg := res.Message
		if msg == "" {
			msg = fmt.Sprintf("tool %q requires confirmation but the session is non-interactive", call.Name)
		}
		res = CheckResult{Decision: types.DecisionDeny, Rule: res.Rule, Message: msg}
	}
	e.logger.Debug("policy decision",
		"tool", call.Name, "mode", mode, "decision", res.Decision, "rule", ruleName(res.Rule))
	return res
}

func ruleName(r *Rule) string {
	if r == nil {
		return ""
	}
	return r.Name
}
