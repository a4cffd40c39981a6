package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildVersion(t *testing.T) {
	cases := []struct {
		name    string
		version string
		commit  string
		want    string
	}{
		{"defaults", "dev", "", "dev"},
		{"release", "v1.2.0", "abc1234", "v1.2.0+abc1234"},
		{"unknown commit", "v1.2.0", "unknown", "v1.2.0"},
		{"commit already embedded", "v1.2.0-3-gabc1234", "abc1234", "v1.2.0-3-gabc1234"},
		{"blank version", "", "abc1234", "dev+abc1234"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			oldV, oldC := version, commit
			t.Cleanup(func() { version, commit = oldV, oldC })
			version, commit = tc.version, tc.commit
			assert.Equal(t, tc.want, buildVersion())
		})
	}
}
