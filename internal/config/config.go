package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/toolgate/toolgate/internal/store/webhook"
	"github.com/toolgate/toolgate/pkg/types"
)

type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Session   SessionConfig   `yaml:"session"`
	Policy    PolicyConfig    `yaml:"policy"`
	MCP       MCPConfig       `yaml:"mcp"`
	Audit     AuditConfig     `yaml:"audit"`
	Shell     ShellConfig     `yaml:"shell"`
}

type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

type WorkspaceConfig struct {
	// Root is the directory path-shaped tool arguments must stay within.
	Root string `yaml:"root"`
}

type SessionConfig struct {
	// ApprovalMode is the session posture: default, auto_edit, yolo, plan.
	ApprovalMode types.ApprovalMode `yaml:"approval_mode"`

	// NonInteractive downgrades every would-be confirmation to a denial.
	NonInteractive bool `yaml:"non_interactive"`
}

type PolicyConfig struct {
	// Dir holds named policy files; Names selects which apply, in merge
	// order (later files take precedence on conflicting settings).
	Dir   string   `yaml:"dir"`
	Names []string `yaml:"names"`
}

type MCPConfig struct {
	// AdminEnabled false blocks every server load. Unset means enabled.
	AdminEnabled *bool `yaml:"admin_enabled,omitempty"`

	// Allowed, when present, is an exhaustive allowlist of server ids.
	Allowed []string `yaml:"allowed,omitempty"`

	// Excluded servers are never loaded.
	Excluded []string `yaml:"excluded,omitempty"`

	// EnablementFile overrides the default persisted-enablement location.
	EnablementFile string `yaml:"enablement_file,omitempty"`
}

type AuditConfig struct {
	// Backend is jsonl, sqlite or none.
	Backend string `yaml:"backend"`
	// Path overrides the default store location.
	Path       string `yaml:"path,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`

	// Webhooks forward events to HTTP endpoints alongside the backend.
	Webhooks []webhook.Config `yaml:"webhooks,omitempty"`
}

type ShellConfig struct {
	// ToolName is the tool shell directives are policy-checked as.
	ToolName string `yaml:"tool_name"`
}

const appName = "toolgate"

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Session: SessionConfig{ApprovalMode: types.ApprovalModeDefault},
		Policy:  PolicyConfig{Dir: filepath.Join(xdg.ConfigHome, appName, "policies")},
		MCP:     MCPConfig{EnablementFile: DefaultEnablementPath()},
		Audit:   AuditConfig{Backend: "jsonl", Path: DefaultAuditPath("events.jsonl")},
		Shell:   ShellConfig{ToolName: "run_shell_command"},
	}
}

// DefaultEnablementPath is where persisted server enablement lives.
func DefaultEnablementPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "mcp-enablement.json")
}

// DefaultAuditPath places audit stores under the user data dir.
func DefaultAuditPath(name string) string {
	return filepath.Join(xdg.DataHome, appName, name)
}

// Load reads a config file over the defaults. A missing file returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Session.ApprovalMode != "" && !c.Session.ApprovalMode.Valid() {
		return fmt.Errorf("invalid approval_mode %q", c.Session.ApprovalMode)
	}
	switch c.Audit.Backend {
	case "", "none", "jsonl", "sqlite":
	default:
		return fmt.Errorf("invalid audit backend %q", c.Audit.Backend)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid logging format %q", c.Logging.Format)
	}
	return nil
}
