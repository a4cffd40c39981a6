// Package session holds per-session state shared by the shell injection
// processor and the confirmation coordinator.
package session

import "sync"

// Allowlist remembers the exact command strings a user already approved this
// session, so identical proposals skip confirmation. It lives for the
// session, never persists.
type Allowlist struct {
	mu   sync.Mutex
	cmds map[string]struct{}
}

func NewAllowlist() *Allowlist {
	return &Allowlist{cmds: make(map[string]struct{})}
}

// Add remembers an approved command.
func (a *Allowlist) Add(command string) {
	if command == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cmds[command] = struct{}{}
}

// Contains reports whether the exact command was already approved.
func (a *Allowlist) Contains(command string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.cmds[command]
	return ok
}

// Len returns the number of remembered commands.
func (a *Allowlist) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cmds)
}
