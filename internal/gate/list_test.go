package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsInSettingsList(t *testing.T) {
	tests := []struct {
		name string
		id   string
		list []string
		want ListMatch
	}{
		{
			name: "exact match",
			id:   "playwright",
			list: []string{"playwright"},
			want: ListMatch{Found: true},
		},
		{
			name: "normalized match",
			id:   "  PlayWright  ",
			list: []string{"playwright"},
			want: ListMatch{Found: true},
		},
		{
			name: "legacy compound id matches short entry",
			id:   "ext:github:mcp",
			list: []string{"mcp"},
			want: ListMatch{Found: true, Deprecated: true},
		},
		{
			name: "short id matches legacy compound entry",
			id:   "mcp",
			list: []string{"ext:github:mcp"},
			want: ListMatch{Found: true, Deprecated: true},
		},
		{
			name: "exact compound match is not deprecated",
			id:   "ext:github:mcp",
			list: []string{"ext:github:mcp"},
			want: ListMatch{Found: true},
		},
		{
			name: "different short name does not match",
			id:   "ext:github:mcp",
			list: []string{"other"},
			want: ListMatch{},
		},
		{
			name: "empty list",
			id:   "playwright",
			list: nil,
			want: ListMatch{},
		},
		{
			name: "no match",
			id:   "playwright",
			list: []string{"github", "ext:acme:runner"},
			want: ListMatch{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsInSettingsList(tt.id, tt.list))
		})
	}
}
