package gate

import (
	"log/slog"
	"sync"
)

// BlockType names the gating layer that blocked a server load.
type BlockType string

const (
	BlockAdmin       BlockType = "admin"
	BlockAllowlist   BlockType = "allowlist"
	BlockExcludelist BlockType = "excludelist"
	BlockSession     BlockType = "session"
	BlockEnablement  BlockType = "enablement"
)

// Options carries the settings the gate evaluates for one load attempt.
// AllowedList nil means "no allowlist configured"; an empty non-nil list
// blocks everything.
type Options struct {
	// AdminEnabled nil means enabled; only an explicit false blocks.
	AdminEnabled *bool
	AllowedList  []string
	ExcludedList []string
}

// Result is a gate decision. BlockType names the first layer that blocked.
type Result struct {
	Allowed   bool
	BlockType BlockType
}

// Gate decides whether a named external server may be loaded at all. It runs
// before any tool from the server is offered, not per call.
type Gate struct {
	enablement *Enablement
	logger     *slog.Logger

	mu     sync.Mutex
	warned map[string]struct{}
}

// New builds a gate over the shared enablement state.
func New(enablement *Enablement, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		enablement: enablement,
		logger:     logger,
		warned:     make(map[string]struct{}),
	}
}

// CanLoad evaluates the layers in fixed precedence order and short-circuits
// on the first block.
func (g *Gate) CanLoad(id string, opts Options) Result {
	if opts.AdminEnabled != nil && !*opts.AdminEnabled {
		return Result{BlockType: BlockAdmin}
	}

	if opts.AllowedList != nil {
		m := IsInSettingsList(id, opts.AllowedList)
		g.maybeWarnDeprecated(id, m)
		if !m.Found {
			return Result{BlockType: BlockAllowlist}
		}
	}

	if m := IsInSettingsList(id, opts.ExcludedList); m.Found {
		g.maybeWarnDeprecated(id, m)
		return Result{BlockType: BlockExcludelist}
	}

	if g.enablement.IsSessionDisabled(id) {
		return Result{BlockType: BlockSession}
	}

	if !g.enablement.IsFileEnabled(id) {
		return Result{BlockType: BlockEnablement}
	}

	return Result{Allowed: true}
}

// Enablement exposes the shared state for UI surfaces.
func (g *Gate) Enablement() *Enablement {
	return g.enablement
}

func (g *Gate) maybeWarnDeprecated(id string, m ListMatch) {
	if !m.Deprecated {
		return
	}
	key := NormalizeServerID(id)
	g.mu.Lock()
	_, seen := g.warned[key]
	if !seen {
		g.warned[key] = struct{}{}
	}
	g.mu.Unlock()
	if !seen {
		g.logger.Warn("server list entry matched via legacy ext:<owner>:<name> form; use the bare server id",
			"server", id)
	}
}
