package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowlist(t *testing.T) {
	a := NewAllowlist()

	assert.False(t, a.Contains("git push"))
	assert.Equal(t, 0, a.Len())

	a.Add("git push")
	assert.True(t, a.Contains("git push"))
	assert.Equal(t, 1, a.Len())

	// Duplicates and empty commands are ignored.
	a.Add("git push")
	a.Add("")
	assert.Equal(t, 1, a.Len())
	assert.False(t, a.Contains(""))
}

func TestAllowlist_ConcurrentAccess(t *testing.T) {
	a := NewAllowlist()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Add("shared")
			a.Contains("shared")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, a.Len())
}
