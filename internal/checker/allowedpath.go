package checker

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/toolgate/toolgate/pkg/types"
)

// AllowedPathName is the registry name of the built-in workspace-containment
// checker.
const AllowedPathName = "allowed-path"

func init() {
	RegisterInProcess(AllowedPathName, newAllowedPath)
}

// allowedPath validates that path-shaped arguments stay within the workspace
// root. Argument keys can be restricted with included_args / excluded_args
// glob patterns.
type allowedPath struct {
	included []glob.Glob
	excluded []glob.Glob
}

func newAllowedPath(cfg map[string]any) (InProcess, error) {
	c := &allowedPath{}
	var err error
	if c.included, err = compileKeyGlobs(cfg, "included_args"); err != nil {
		return nil, err
	}
	if c.excluded, err = compileKeyGlobs(cfg, "excluded_args"); err != nil {
		return nil, err
	}
	return c, nil
}

func compileKeyGlobs(cfg map[string]any, key string) ([]glob.Glob, error) {
	raw, ok := cfg[key]
	if !ok {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected a list of patterns", key)
	}
	var globs []glob.Glob
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, fmt.Errorf("%s: expected string pattern, got %T", key, it)
		}
		g, err := glob.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("%s: compile %q: %w", key, s, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func (c *allowedPath) Check(_ context.Context, call types.ToolCall, cc CallContext) error {
	if cc.WorkspaceRoot == "" {
		return fmt.Errorf("allowed-path: no workspace root configured")
	}
	root, err := filepath.Abs(cc.WorkspaceRoot)
	if err != nil {
		return fmt.Errorf("allowed-path: resolve workspace root: %w", err)
	}
	for key, val := range call.Args {
		if !c.keySelected(key) {
			continue
		}
		s, ok := val.(string)
		if !ok || !looksLikePath(s) {
			continue
		}
		p := s
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		p = filepath.Clean(p)
		if p != root && !strings.HasPrefix(p, root+string(filepath.Separator)) {
			return fmt.Errorf("path %q (arg %q) is outside the workspace root", s, key)
		}
	}
	return nil
}

func (c *allowedPath) keySelected(key string) bool {
	if len(c.included) > 0 {
		matched := false
		for _, g := range c.included {
			if g.Match(key) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, g := range c.excluded {
		if g.Match(key) {
			return false
		}
	}
	return true
}

// looksLikePath is a heuristic for string arguments that name filesystem
// locations rather than free text.
func looksLikePath(s string) bool {
	if s == "" {
		return false
	}
	if filepath.IsAbs(s) {
		return true
	}
	return strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") ||
		strings.HasPrefix(s, "~/") || strings.ContainsRune(s, filepath.Separator)
}
