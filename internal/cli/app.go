package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/toolgate/toolgate/internal/checker"
	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/events"
	"github.com/toolgate/toolgate/internal/gate"
	"github.com/toolgate/toolgate/internal/policy"
	"github.com/toolgate/toolgate/internal/store/jsonl"
	"github.com/toolgate/toolgate/internal/store/sqlite"
	"github.com/toolgate/toolgate/internal/store/webhook"
)

// app assembles the components a command needs from the loaded config.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	brokerOnce sync.Once
	eventsBus  *events.Broker
}

func loadApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: newLogger(cfg.Logging)}, nil
}

// broker is the process-wide live event feed; every emitter publishes to it
// so embedding surfaces can subscribe per session.
func (a *app) broker() *events.Broker {
	a.brokerOnce.Do(func() {
		a.eventsBus = events.NewBroker(a.logger)
	})
	return a.eventsBus
}

func newLogger(lc config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// engine builds the policy engine from the configured policy files.
func (a *app) engine() (*policy.Engine, error) {
	var configs []*policy.Config
	for _, name := range a.cfg.Policy.Names {
		p, err := policy.ResolvePolicyPath(a.cfg.Policy.Dir, name)
		if err != nil {
			return nil, err
		}
		c, err := policy.LoadFromFile(p)
		if err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	merged := policy.Merge(configs...)
	if a.cfg.Session.NonInteractive {
		merged.NonInteractive = true
	}
	cc := checker.CallContext{WorkspaceRoot: a.cfg.Workspace.Root}
	return policy.NewEngine(*merged, checker.NewExternalClient(), cc, a.logger)
}

// gate builds the server gate over the configured enablement file.
func (a *app) gate() *gate.Gate {
	path := a.cfg.MCP.EnablementFile
	if path == "" {
		path = config.DefaultEnablementPath()
	}
	return gate.New(gate.NewEnablement(path, a.logger), a.logger)
}

func (a *app) gateOptions() gate.Options {
	return gate.Options{
		AdminEnabled: a.cfg.MCP.AdminEnabled,
		AllowedList:  a.cfg.MCP.Allowed,
		ExcludedList: a.cfg.MCP.Excluded,
	}
}

// auditStore opens the configured audit backend. The closer is non-nil even
// for the none backend.
func (a *app) auditStore() (events.Store, func() error, error) {
	switch a.cfg.Audit.Backend {
	case "", "none":
		return nil, func() error { return nil }, nil
	case "jsonl":
		path := a.cfg.Audit.Path
		if path == "" {
			path = config.DefaultAuditPath("events.jsonl")
		}
		s, err := jsonl.Open(path, jsonl.Options{
			MaxSizeMB:  a.cfg.Audit.MaxSizeMB,
			MaxBackups: a.cfg.Audit.MaxBackups,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "sqlite":
		path := a.cfg.Audit.Path
		if path == "" {
			path = config.DefaultAuditPath("events.db")
		}
		s, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown audit backend %q", a.cfg.Audit.Backend)
}

// emitter combines the audit backend, any configured webhook sinks and the
// live broker. Events are appended first, then published.
func (a *app) emitter() (events.Emitter, func() error, error) {
	store, closer, err := a.auditStore()
	if err != nil {
		return nil, nil, err
	}

	var stores []events.Store
	if store != nil {
		stores = append(stores, store)
	}
	for _, wc := range a.cfg.Audit.Webhooks {
		sink, err := webhook.NewSink(wc, a.logger)
		if err != nil {
			_ = closer()
			return nil, nil, err
		}
		stores = append(stores, sink)
	}
	return &events.StoreEmitter{
		Stores: stores,
		Broker: a.broker(),
		Logger: a.logger,
	}, closer, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	return writeJSON(cmd.OutOrStdout(), v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
