package checker

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"github.com/toolgate/toolgate/pkg/types"
)

// Verdict is the result of running the checkers that match an action.
type Verdict struct {
	OK      bool
	Checker string
	Reason  string
}

func pass() Verdict { return Verdict{OK: true} }

func fail(checker, reason string) Verdict {
	return Verdict{OK: false, Checker: checker, Reason: reason}
}

// Config identifies a checker: a built-in looked up from the registry, or an
// external one invoked over the side channel.
type Config struct {
	Type            string         `yaml:"type"` // "in-process" | "external"
	Name            string         `yaml:"name"`
	Config          map[string]any `yaml:"config,omitempty"`
	RequiredContext []string       `yaml:"required_context,omitempty"`
	Timeout         time.Duration  `yaml:"timeout,omitempty"`
}

const (
	TypeInProcess = "in-process"
	TypeExternal  = "external"
)

// Rule pairs a checker with tool/args matching and a priority. Matching
// checkers run in descending priority order; the first failure stops the run.
type Rule struct {
	Checker     Config `yaml:"checker"`
	ToolName    string `yaml:"toolName,omitempty"`
	ArgsPattern string `yaml:"argsPattern,omitempty"`
	Priority    int    `yaml:"priority,omitempty"`
}

// CallContext is the ambient information checkers may need beyond the call
// itself.
type CallContext struct {
	WorkspaceRoot string
	SessionID     string
}

// InProcess is a built-in checker. A nil return means pass; a non-nil error
// is the failure reason.
type InProcess interface {
	Check(ctx context.Context, call types.ToolCall, cc CallContext) error
}

// InProcessFactory builds a checker from its per-rule config. Construction
// errors surface at runner construction, not at call time.
type InProcessFactory func(cfg map[string]any) (InProcess, error)

// registry of built-in checkers, populated at init.
var registry = map[string]InProcessFactory{}

// RegisterInProcess adds a built-in checker factory to the registry.
func RegisterInProcess(name string, f InProcessFactory) {
	registry[name] = f
}

type compiledRule struct {
	rule     Rule
	args     *regexp.Regexp
	builtin  InProcess
	external *External
	order    int
}

// Runner executes the checkers matching an action. Unknown checker names and
// invalid patterns fail at construction.
type Runner struct {
	rules    []compiledRule
	external *ExternalClient
	logger   *slog.Logger
}

// NewRunner compiles the checker rules. external may be nil when no external
// checkers are configured; a rule referencing one then fails construction.
func NewRunner(rules []Rule, external *ExternalClient, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{external: external, logger: logger}
	for i, rule := range rules {
		cr := compiledRule{rule: rule, order: i}
		if rule.ArgsPattern != "" {
			re, err := regexp.Compile(rule.ArgsPattern)
			if err != nil {
				return nil, fmt.Errorf("compile checker rule %q args pattern: %w", rule.Checker.Name, err)
			}
			cr.args = re
		}
		switch rule.Checker.Type {
		case TypeInProcess:
			f, ok := registry[rule.Checker.Name]
			if !ok {
				return nil, fmt.Errorf("unknown in-process checker %q", rule.Checker.Name)
			}
			c, err := f(rule.Checker.Config)
			if err != nil {
				return nil, fmt.Errorf("configure checker %q: %w", rule.Checker.Name, err)
			}
			cr.builtin = c
		case TypeExternal:
			if external == nil {
				return nil, fmt.Errorf("external checker %q configured without a side channel", rule.Checker.Name)
			}
			ext, err := external.Resolve(rule.Checker)
			if err != nil {
				return nil, fmt.Errorf("resolve external checker %q: %w", rule.Checker.Name, err)
			}
			cr.external = ext
		default:
			return nil, fmt.Errorf("checker %q: unknown type %q", rule.Checker.Name, rule.Checker.Type)
		}
		r.rules = append(r.rules, cr)
	}
	// Descending priority; declaration order breaks ties.
	sort.SliceStable(r.rules, func(i, j int) bool {
		if r.rules[i].rule.Priority != r.rules[j].rule.Priority {
			return r.rules[i].rule.Priority > r.rules[j].rule.Priority
		}
		return r.rules[i].order < r.rules[j].order
	})
	return r, nil
}

// Run executes the checkers matching the call, highest priority first, and
// stops at the first failure. External checker errors and timeouts are
// failures, never silent passes.
func (r *Runner) Run(ctx context.Context, call types.ToolCall, cc CallContext) Verdict {
	if r == nil {
		return pass()
	}
	serialized := call.SerializedArgs()
	for _, cr := range r.rules {
		if cr.rule.ToolName != "" && cr.rule.ToolName != call.Name {
			continue
		}
		if cr.args != nil && !cr.args.MatchString(serialized) {
			continue
		}
		v := r.runOne(ctx, cr, call, cc)
		if !v.OK {
			return v
		}
	}
	return pass()
}

func (r *Runner) runOne(ctx context.Context, cr compiledRule, call types.ToolCall, cc CallContext) (v Verdict) {
	name := cr.rule.Checker.Name
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("checker panicked", "checker", name, "panic", p)
			v = fail(name, fmt.Sprintf("checker panicked: %v", p))
		}
	}()

	if cr.builtin != nil {
		if err := cr.builtin.Check(ctx, call, cc); err != nil {
			return fail(name, err.Error())
		}
		return pass()
	}
	if err := cr.external.Check(ctx, call, cc); err != nil {
		r.logger.Warn("external checker failed", "checker", name, "error", err)
		return fail(name, err.Error())
	}
	return pass()
}
