package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "hello world", "hello world"},
		{"crlf normalized", "line one\r\nline two", "line one\nline two"},
		{"bare cr normalized", "line one\rline two", "line one\nline two"},
		{"null bytes stripped", "hello\x00world", "helloworld"},
		{"control chars stripped", "a\x01b\x02c\x7fd", "abcd"},
		{"tabs and newlines kept", "a\tb\nc", "a\tb\nc"},
		{"blank runs collapsed", "a\n\n\n\n\nb", "a\n\nb"},
		{"trimmed", "  \n hello \n  ", "hello"},
		{"whitespace only", " \n\t \n ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitizeInvalidUTF8(t *testing.T) {
	in := string([]byte{'h', 'i', 0xff, 0xfe, '!'})
	assert.Equal(t, "hi!", Sanitize(in))
}
