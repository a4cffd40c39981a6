package policy

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// LoadFromFile reads one policy config. Unknown fields are rejected so typos
// in rule files surface immediately. Rules without an explicit source are
// tagged with the file they came from.
func LoadFromFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var c Config
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate policy: %w", err)
	}
	for i := range c.Rules {
		if c.Rules[i].Source == "" {
			c.Rules[i].Source = path
		}
	}
	return &c, nil
}

// Merge combines configs in precedence order: later configs' rules are
// declared after earlier ones (so on equal priority the earlier file wins),
// and later scalar settings override earlier ones when set.
func Merge(configs ...*Config) *Config {
	out := &Config{}
	for _, c := range configs {
		if c == nil {
			continue
		}
		out.Rules = append(out.Rules, c.Rules...)
		out.Checkers = append(out.Checkers, c.Checkers...)
		out.HookCheckers = append(out.HookCheckers, c.HookCheckers...)
		if c.DefaultDecision != "" {
			out.DefaultDecision = c.DefaultDecision
		}
		if c.NonInteractive {
			out.NonInteractive = true
		}
		if c.AllowHooks != nil {
			out.AllowHooks = c.AllowHooks
		}
	}
	return out
}

// ResolvePolicyPath locates a named policy file within a directory.
func ResolvePolicyPath(dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("policy dir is empty")
	}
	if !nameRe.MatchString(name) {
		return "", fmt.Errorf("invalid policy name")
	}
	try := []string{
		filepath.Join(dir, name+".yaml"),
		filepath.Join(dir, name+".yml"),
		filepath.Join(dir, name),
	}
	for _, p := range try {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("policy %q not found in %q", name, dir)
}
