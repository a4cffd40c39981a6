package gate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	path := filepath.Join(t.TempDir(), "enablement.json")
	return New(NewEnablement(path, nil), nil)
}

func boolPtr(b bool) *bool { return &b }

func TestGate_AdminBlockWinsOverEverything(t *testing.T) {
	g := newTestGate(t)
	g.Enablement().DisableForSession("srv")

	res := g.CanLoad("srv", Options{
		AdminEnabled: boolPtr(false),
		AllowedList:  []string{"srv"},
		ExcludedList: []string{"srv"},
	})
	assert.False(t, res.Allowed)
	assert.Equal(t, BlockAdmin, res.BlockType)
}

func TestGate_LayerPrecedence(t *testing.T) {
	g := newTestGate(t)

	// Allowlist present and id missing.
	res := g.CanLoad("srv", Options{AllowedList: []string{"other"}})
	assert.Equal(t, BlockAllowlist, res.BlockType)

	// Empty non-nil allowlist blocks everything.
	res = g.CanLoad("srv", Options{AllowedList: []string{}})
	assert.Equal(t, BlockAllowlist, res.BlockType)

	// Excludelist is checked after the allowlist.
	res = g.CanLoad("srv", Options{AllowedList: []string{"srv"}, ExcludedList: []string{"srv"}})
	assert.Equal(t, BlockExcludelist, res.BlockType)

	// Session disable comes next.
	g.Enablement().DisableForSession("srv")
	res = g.CanLoad("srv", Options{AllowedList: []string{"srv"}})
	assert.Equal(t, BlockSession, res.BlockType)
	g.Enablement().ClearSessionDisable("srv")

	// Persisted disable last.
	require.NoError(t, g.Enablement().Disable("srv"))
	res = g.CanLoad("srv", Options{AllowedList: []string{"srv"}})
	assert.Equal(t, BlockEnablement, res.BlockType)
	require.NoError(t, g.Enablement().Enable("srv"))

	// Nothing blocks.
	res = g.CanLoad("srv", Options{AllowedList: []string{"srv"}})
	assert.True(t, res.Allowed)
	assert.Empty(t, res.BlockType)
}

func TestGate_NoAllowlistMeansOpen(t *testing.T) {
	g := newTestGate(t)
	res := g.CanLoad("anything", Options{})
	assert.True(t, res.Allowed)
}

func TestGate_ListMatchingIsNormalized(t *testing.T) {
	g := newTestGate(t)
	res := g.CanLoad("  PlayWright  ", Options{ExcludedList: []string{"playwright"}})
	assert.False(t, res.Allowed)
	assert.Equal(t, BlockExcludelist, res.BlockType)
}
