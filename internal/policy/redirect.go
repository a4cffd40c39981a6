package policy

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ContainsRedirection reports whether a shell command uses output
// redirection. It parses the command with a real shell grammar so quoted
// arrow characters (echo "a > b") do not count. Commands that do not parse
// are treated as containing redirection: the heuristic only ever downgrades
// an allow to a confirmation, so unparseable input must not slip through.
func ContainsRedirection(command string) bool {
	if command == "" {
		return false
	}
	parser := syntax.NewParser()
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return true
	}

	found := false
	syntax.Walk(file, func(node syntax.Node) bool {
		if found {
			return false
		}
		r, ok := node.(*syntax.Redirect)
		if !ok {
			return true
		}
		switch r.Op {
		case syntax.RdrIn, syntax.Hdoc, syntax.DashHdoc, syntax.WordHdoc:
			// Pure input redirection cannot overwrite or exfiltrate.
			return true
		default:
			found = true
			return false
		}
	})
	return found
}
