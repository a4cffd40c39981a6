package shellinject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindInjections(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     []Injection
	}{
		{
			name:     "no injections",
			template: "plain text with {{args}}",
			want:     nil,
		},
		{
			name:     "single injection",
			template: "before !{git status} after",
			want: []Injection{
				{StartIndex: 7, EndIndex: 20, Content: "git status"},
			},
		},
		{
			name:     "multiple injections",
			template: "!{ls} and !{pwd}",
			want: []Injection{
				{StartIndex: 0, EndIndex: 5, Content: "ls"},
				{StartIndex: 10, EndIndex: 16, Content: "pwd"},
			},
		},
		{
			name:     "nested braces stay inside the span",
			template: "!{awk '{print $1}'}",
			want: []Injection{
				{StartIndex: 0, EndIndex: 19, Content: "awk '{print $1}'"},
			},
		},
		{
			name:     "empty injection",
			template: "a !{} b",
			want: []Injection{
				{StartIndex: 2, EndIndex: 5, Content: ""},
			},
		},
		{
			name:     "deeply nested braces",
			template: "!{echo ${VAR:-{x}}}",
			want: []Injection{
				{StartIndex: 0, EndIndex: 19, Content: "echo ${VAR:-{x}}"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindInjections(tt.template)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindInjections_Unterminated(t *testing.T) {
	_, err := FindInjections("text !{echo hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated")

	// An inner opening brace with no close leaves the span open too.
	_, err = FindInjections("!{awk '{print $1'}")
	require.Error(t, err)
}
