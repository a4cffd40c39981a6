package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsRedirection(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    bool
	}{
		{name: "plain command", command: "ls -la", want: false},
		{name: "empty", command: "", want: false},
		{name: "overwrite", command: "echo secret > /tmp/out", want: true},
		{name: "append", command: "cat log >> /tmp/all", want: true},
		{name: "quoted arrow is not redirection", command: `echo "a > b"`, want: false},
		{name: "single quoted arrow", command: "echo 'a > b'", want: false},
		{name: "stderr dup", command: "make 2>&1", want: true},
		{name: "clobber", command: "echo x >| out", want: true},
		{name: "input only", command: "wc -l < notes.txt", want: false},
		{name: "heredoc is input", command: "cat <<EOF\nhello\nEOF", want: false},
		{name: "pipe is not redirection", command: "ps aux | grep go", want: false},
		{name: "redirection in second pipeline stage", command: "ls | tee files.txt > /dev/null", want: true},
		{name: "unparseable fails closed", command: "echo $(", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsRedirection(tt.command))
		})
	}
}
