package gate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
)

// NormalizeServerID canonicalizes a server id for list and state lookups.
func NormalizeServerID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

type serverState struct {
	Disabled bool `json:"disabled"`
}

// Enablement tracks which servers are disabled, either for the current
// session (in memory) or persistently (a JSON file under the user config
// dir). One instance is constructed by the application and shared by every
// gate so all UI entry points see consistent state; session state is cleared
// only by ResetForTests or process exit, never by gate construction.
type Enablement struct {
	path   string
	logger *slog.Logger

	mu              sync.Mutex
	sessionDisabled map[string]struct{}
	file            map[string]serverState
	loaded          bool
}

// NewEnablement builds the shared enablement state backed by the given file.
func NewEnablement(path string, logger *slog.Logger) *Enablement {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enablement{
		path:            path,
		logger:          logger,
		sessionDisabled: make(map[string]struct{}),
	}
}

// IsSessionDisabled reports whether the server was disabled for this session.
func (e *Enablement) IsSessionDisabled(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sessionDisabled[NormalizeServerID(id)]
	return ok
}

// DisableForSession hides the server until process exit.
func (e *Enablement) DisableForSession(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionDisabled[NormalizeServerID(id)] = struct{}{}
}

// ClearSessionDisable undoes DisableForSession.
func (e *Enablement) ClearSessionDisable(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessionDisabled, NormalizeServerID(id))
}

// IsFileEnabled reports whether the persisted state allows the server. A
// missing or unreadable file means everything is enabled: losing this file
// must not lock a user out of their own tools.
func (e *Enablement) IsFileEnabled(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadLocked()
	return !e.file[NormalizeServerID(id)].Disabled
}

// Enable persists the server as enabled. A no-op when already enabled.
func (e *Enablement) Enable(id string) error {
	return e.setDisabled(id, false)
}

// Disable persists the server as disabled. A no-op when already disabled.
func (e *Enablement) Disable(id string) error {
	return e.setDisabled(id, true)
}

func (e *Enablement) setDisabled(id string, disabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadLocked()

	key := NormalizeServerID(id)
	if e.file[key].Disabled == disabled {
		return nil
	}
	if disabled {
		e.file[key] = serverState{Disabled: true}
	} else {
		delete(e.file, key)
	}
	return e.saveLocked()
}

// IsEffectivelyEnabled combines session and persisted state.
func (e *Enablement) IsEffectivelyEnabled(id string) bool {
	return !e.IsSessionDisabled(id) && e.IsFileEnabled(id)
}

// DisplayState is the UI-facing view of one server's enablement.
type DisplayState struct {
	Enabled              bool `json:"enabled"`
	IsSessionDisabled    bool `json:"is_session_disabled"`
	IsPersistentDisabled bool `json:"is_persistent_disabled"`
}

// GetDisplayState summarizes a server's state without exposing block types.
func (e *Enablement) GetDisplayState(id string) DisplayState {
	session := e.IsSessionDisabled(id)
	persisted := !e.IsFileEnabled(id)
	return DisplayState{
		Enabled:              !session && !persisted,
		IsSessionDisabled:    session,
		IsPersistentDisabled: persisted,
	}
}

// ResetForTests clears session state and drops the file cache. Tests and
// embedded sessions call this between runs; nothing resets implicitly.
func (e *Enablement) ResetForTests() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionDisabled = make(map[string]struct{})
	e.file = nil
	e.loaded = false
}

func (e *Enablement) loadLocked() {
	if e.loaded {
		return
	}
	e.loaded = true
	e.file = make(map[string]serverState)

	b, err := os.ReadFile(e.path)
	if err != nil {
		if !os.IsNotExist(err) {
			e.logger.Warn("read server enablement file", "path", e.path, "error", err)
		}
		return
	}
	var m map[string]serverState
	if err := json.Unmarshal(b, &m); err != nil {
		e.logger.Warn("server enablement file is corrupt, treating all servers as enabled",
			"path", e.path, "error", err)
		return
	}
	for k, v := range m {
		e.file[NormalizeServerID(k)] = v
	}
}

// saveLocked writes the whole map atomically: temp file plus rename, never a
// partial write.
func (e *Enablement) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return fmt.Errorf("mkdir enablement dir: %w", err)
	}
	b, err := json.MarshalIndent(e.file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal enablement: %w", err)
	}
	if err := renameio.WriteFile(e.path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write enablement: %w", err)
	}
	return nil
}
