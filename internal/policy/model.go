package policy

import (
	"fmt"

	"github.com/toolgate/toolgate/internal/checker"
	"github.com/toolgate/toolgate/pkg/types"
)

// Rule matches proposed tool calls and carries the decision for them. A rule
// with no ToolName applies to every tool; ArgsPattern is a regular expression
// over the serialized arguments; Modes restricts the rule to a subset of
// approval modes (empty means all).
type Rule struct {
	Name             string               `yaml:"name,omitempty"`
	ToolName         string               `yaml:"toolName,omitempty"`
	ArgsPattern      string               `yaml:"argsPattern,omitempty"`
	Decision         types.Decision       `yaml:"decision"`
	Priority         int                  `yaml:"priority,omitempty"`
	Modes            []types.ApprovalMode `yaml:"modes,omitempty"`
	AllowRedirection bool                 `yaml:"allowRedirection,omitempty"`
	Source           string               `yaml:"source,omitempty"`
	DenyMessage      string               `yaml:"denyMessage,omitempty"`
}

// HookRule matches hook executions by event name and source instead of tool
// name and arguments.
type HookRule struct {
	Checker    checker.Config `yaml:"checker"`
	EventName  string         `yaml:"eventName,omitempty"`
	HookSource string         `yaml:"hookSource,omitempty"`
	Priority   int            `yaml:"priority,omitempty"`
}

// Config is the immutable engine configuration, built once at session start
// from merged settings. Re-registering rules means rebuilding the engine.
type Config struct {
	Rules        []Rule         `yaml:"rules,omitempty"`
	Checkers     []checker.Rule `yaml:"checkers,omitempty"`
	HookCheckers []HookRule     `yaml:"hookCheckers,omitempty"`

	// DefaultDecision applies when no rule matches. Empty means ask_user.
	DefaultDecision types.Decision `yaml:"defaultDecision,omitempty"`

	// NonInteractive downgrades any final ask_user to deny: there is no
	// human available to answer.
	NonInteractive bool `yaml:"nonInteractive,omitempty"`

	// AllowHooks gates the hook-execution path entirely. Nil means true.
	AllowHooks *bool `yaml:"allowHooks,omitempty"`
}

// Validate checks decisions and modes; pattern compilation happens in
// NewEngine.
func (c *Config) Validate() error {
	for i, r := range c.Rules {
		if !r.Decision.Valid() {
			return fmt.Errorf("rule %d (%q): invalid decision %q", i, r.Name, r.Decision)
		}
		for _, m := range r.Modes {
			if !m.Valid() {
				return fmt.Errorf("rule %d (%q): invalid mode %q", i, r.Name, m)
			}
		}
		if r.AllowRedirection && r.Decision != types.DecisionAllow {
			return fmt.Errorf("rule %d (%q): allowRedirection is only meaningful on allow rules", i, r.Name)
		}
	}
	if c.DefaultDecision != "" && !c.DefaultDecision.Valid() {
		return fmt.Errorf("invalid defaultDecision %q", c.DefaultDecision)
	}
	return nil
}

func (c *Config) defaultDecision() types.Decision {
	if c.DefaultDecision == "" {
		return types.DecisionAskUser
	}
	return c.DefaultDecision
}

func (c *Config) allowHooks() bool {
	return c.AllowHooks == nil || *c.AllowHooks
}

// CheckResult is the engine's answer for one call. Rule is nil when the
// default decision applied.
type CheckResult struct {
	Decision types.Decision
	Rule     *Rule
	Message  string
}
