package shellinject

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ExecResult is the outcome of one injected command. A non-zero exit or an
// abort is reported here, not as an error; errors are reserved for structural
// failures (the command never ran).
type ExecResult struct {
	Output   string
	ExitCode int
	Aborted  bool
}

// Runner executes a resolved shell command and captures its combined output.
type Runner interface {
	Run(ctx context.Context, command string) (ExecResult, error)
}

// ShellRunner runs commands through an embedded POSIX shell interpreter, so
// behavior does not depend on the host's /bin/sh.
type ShellRunner struct {
	Dir string
	Env []string
}

func (r *ShellRunner) Run(ctx context.Context, command string) (ExecResult, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return ExecResult{}, fmt.Errorf("parse command: %w", err)
	}

	var buf bytes.Buffer
	env := r.Env
	if env == nil {
		env = os.Environ()
	}
	runner, err := interp.New(
		interp.Dir(r.Dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(strings.NewReader(""), &buf, &buf),
	)
	if err != nil {
		return ExecResult{}, fmt.Errorf("start shell: %w", err)
	}

	err = runner.Run(ctx, file)
	res := ExecResult{Output: buf.String()}
	if ctx.Err() != nil {
		// Keep whatever the command printed before it was cut off.
		res.Aborted = true
		return res, nil
	}
	if err != nil {
		if status, ok := interp.IsExitStatus(err); ok {
			res.ExitCode = int(status)
			return res, nil
		}
		return res, fmt.Errorf("run command: %w", err)
	}
	return res, nil
}
