package checker

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolgate/toolgate/pkg/types"
)

type recordingChecker struct {
	name string
	fail bool
	log  *[]string
}

func (r recordingChecker) Check(context.Context, types.ToolCall, CallContext) error {
	*r.log = append(*r.log, r.name)
	if r.fail {
		return fmt.Errorf("%s says no", r.name)
	}
	return nil
}

var testCheckerSeq atomic.Int64

// registerRecording registers a uniquely-named recording checker and returns
// its name. The registry is process-global, so names must not collide across
// tests.
func registerRecording(log *[]string, fail bool) string {
	name := fmt.Sprintf("test-recording-%d", testCheckerSeq.Add(1))
	RegisterInProcess(name, func(map[string]any) (InProcess, error) {
		return recordingChecker{name: name, fail: fail, log: log}, nil
	})
	return name
}

func inproc(name string, priority int) Rule {
	return Rule{
		Checker:  Config{Type: TypeInProcess, Name: name},
		Priority: priority,
	}
}

func TestRunner_DescendingPriorityStopsAtFirstFail(t *testing.T) {
	var log []string
	low := registerRecording(&log, false)
	mid := registerRecording(&log, true)
	high := registerRecording(&log, false)

	r, err := NewRunner([]Rule{inproc(low, 1), inproc(mid, 5), inproc(high, 10)}, nil, nil)
	require.NoError(t, err)

	v := r.Run(context.Background(), types.ToolCall{Name: "tool"}, CallContext{})
	assert.False(t, v.OK)
	assert.Equal(t, mid, v.Checker)
	// high ran first, mid failed, low never ran.
	assert.Equal(t, []string{high, mid}, log)
}

func TestRunner_ToolAndArgsMatching(t *testing.T) {
	var log []string
	name := registerRecording(&log, true)

	rules := []Rule{{
		Checker:     Config{Type: TypeInProcess, Name: name},
		ToolName:    "write_file",
		ArgsPattern: `\.env`,
	}}
	r, err := NewRunner(rules, nil, nil)
	require.NoError(t, err)

	// Different tool: checker not selected.
	v := r.Run(context.Background(), types.ToolCall{Name: "read_file", Args: map[string]any{"path": ".env"}}, CallContext{})
	assert.True(t, v.OK)

	// Matching tool but args pattern misses.
	v = r.Run(context.Background(), types.ToolCall{Name: "write_file", Args: map[string]any{"path": "main.go"}}, CallContext{})
	assert.True(t, v.OK)

	// Both match.
	v = r.Run(context.Background(), types.ToolCall{Name: "write_file", Args: map[string]any{"path": ".env"}}, CallContext{})
	assert.False(t, v.OK)
}

func TestNewRunner_UnknownCheckerFailsAtConstruction(t *testing.T) {
	_, err := NewRunner([]Rule{inproc("never-registered", 0)}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never-registered")
}

func TestNewRunner_BadArgsPatternFails(t *testing.T) {
	var log []string
	name := registerRecording(&log, false)
	_, err := NewRunner([]Rule{{
		Checker:     Config{Type: TypeInProcess, Name: name},
		ArgsPattern: "(",
	}}, nil, nil)
	require.Error(t, err)
}

func TestNewRunner_ExternalWithoutClientFails(t *testing.T) {
	_, err := NewRunner([]Rule{{
		Checker: Config{Type: TypeExternal, Name: "remote", Config: map[string]any{"url": "http://127.0.0.1:1/check"}},
	}}, nil, nil)
	require.Error(t, err)
}

type panickyChecker struct{}

func (panickyChecker) Check(context.Context, types.ToolCall, CallContext) error {
	panic("boom")
}

func TestRunner_PanicIsFailure(t *testing.T) {
	RegisterInProcess("test-panicky", func(map[string]any) (InProcess, error) {
		return panickyChecker{}, nil
	})
	r, err := NewRunner([]Rule{inproc("test-panicky", 0)}, nil, nil)
	require.NoError(t, err)

	v := r.Run(context.Background(), types.ToolCall{Name: "tool"}, CallContext{})
	assert.False(t, v.OK)
	assert.Contains(t, v.Reason, "panicked")
}

func TestNilRunnerPasses(t *testing.T) {
	var r *Runner
	v := r.Run(context.Background(), types.ToolCall{Name: "tool"}, CallContext{})
	assert.True(t, v.OK)
}
