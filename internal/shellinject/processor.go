package shellinject

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"al.essio.dev/pkg/shellescape"

	"github.com/toolgate/toolgate/internal/policy"
	"github.com/toolgate/toolgate/internal/session"
	"github.com/toolgate/toolgate/pkg/types"
)

// Decider is the slice of the policy engine the processor needs.
type Decider interface {
	Check(ctx context.Context, call types.ToolCall, mode types.ApprovalMode) policy.CheckResult
}

// Result is the tagged outcome of processing a template. When
// PendingConfirmation is non-empty the template was not executed: the caller
// confirms every listed command in one interaction, adds them to the session
// allowlist, and re-processes.
type Result struct {
	Text                string
	PendingConfirmation []string
}

// NeedsConfirmation reports whether the caller must confirm commands before
// re-processing.
func (r Result) NeedsConfirmation() bool {
	return len(r.PendingConfirmation) > 0
}

// Processor resolves !{...} shell directives inside templated text: it
// substitutes arguments, clears every embedded command with the policy
// engine, and only then executes them in template order.
type Processor struct {
	engine    Decider
	allowlist *session.Allowlist
	runner    Runner
	mode      types.ApprovalMode
	shellTool string
	logger    *slog.Logger
}

// NewProcessor wires the processor to its policy engine and session state.
// shellTool is the tool name shell directives are checked as.
func NewProcessor(engine Decider, allowlist *session.Allowlist, runner Runner, mode types.ApprovalMode, shellTool string, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = &ShellRunner{}
	}
	return &Processor{
		engine:    engine,
		allowlist: allowlist,
		runner:    runner,
		mode:      mode,
		shellTool: shellTool,
		logger:    logger,
	}
}

// Process resolves a template against the raw invocation arguments.
//
// Outside injection spans {{args}} is replaced with the raw arguments;
// inside a span it is replaced with their shell-escaped form, because only
// there the text crosses a shell boundary.
func (p *Processor) Process(ctx context.Context, template, argsRaw string) (Result, error) {
	if !strings.Contains(template, injectionTrigger) {
		return Result{Text: strings.ReplaceAll(template, ShorthandArgs, argsRaw)}, nil
	}

	injections, err := FindInjections(template)
	if err != nil {
		return Result{}, err
	}

	escaped := shellescape.Quote(argsRaw)
	resolved := make([]ResolvedShellInjection, 0, len(injections))
	for _, inj := range injections {
		cmd := strings.TrimSpace(strings.ReplaceAll(inj.Content, ShorthandArgs, escaped))
		resolved = append(resolved, ResolvedShellInjection{Injection: inj, ResolvedCommand: cmd})
	}

	var pending []string
	seen := map[string]struct{}{}
	for _, ri := range resolved {
		if ri.ResolvedCommand == "" || p.allowlist.Contains(ri.ResolvedCommand) {
			continue
		}
		res := p.engine.Check(ctx, types.ToolCall{
			Name: p.shellTool,
			Kind: types.KindShell,
			Args: map[string]any{"command": ri.ResolvedCommand},
		}, p.mode)
		switch res.Decision {
		case types.DecisionDeny:
			msg := res.Message
			if msg == "" {
				msg = "blocked by policy"
			}
			return Result{}, fmt.Errorf("command %q is not allowed: %s", ri.ResolvedCommand, msg)
		case types.DecisionAskUser:
			if _, dup := seen[ri.ResolvedCommand]; !dup {
				seen[ri.ResolvedCommand] = struct{}{}
				pending = append(pending, ri.ResolvedCommand)
			}
		}
	}
	if len(pending) > 0 {
		return Result{PendingConfirmation: pending}, nil
	}

	return p.execute(ctx, template, argsRaw, resolved)
}

// execute runs each command in template order and splices its output into
// the surrounding text. Commands run sequentially; an abort or failure still
// contributes its partial output plus a bracketed status annotation.
func (p *Processor) execute(ctx context.Context, template, argsRaw string, resolved []ResolvedShellInjection) (Result, error) {
	var b strings.Builder
	last := 0
	aborted := false
	for _, ri := range resolved {
		b.WriteString(strings.ReplaceAll(template[last:ri.StartIndex], ShorthandArgs, argsRaw))
		last = ri.EndIndex

		// Bare !{} resolves to no command; once aborted, later commands are
		// skipped but the surrounding text still renders.
		if ri.ResolvedCommand == "" || aborted {
			continue
		}

		res, err := p.runner.Run(ctx, ri.ResolvedCommand)
		if err != nil {
			return Result{}, fmt.Errorf("execute %q: %w", ri.ResolvedCommand, err)
		}
		b.WriteString(res.Output)
		if note := statusAnnotation(res); note != "" {
			if res.Output != "" && !strings.HasSuffix(res.Output, "\n") {
				b.WriteString("\n")
			}
			b.WriteString(note)
		}
		aborted = res.Aborted
	}
	b.WriteString(strings.ReplaceAll(template[last:], ShorthandArgs, argsRaw))
	return Result{Text: b.String()}, nil
}

func statusAnnotation(res ExecResult) string {
	switch {
	case res.Aborted:
		return "[aborted]"
	case res.ExitCode > 128:
		return fmt.Sprintf("[command terminated by signal %d]", res.ExitCode-128)
	case res.ExitCode != 0:
		return fmt.Sprintf("[command exited with code %d]", res.ExitCode)
	}
	return ""
}
