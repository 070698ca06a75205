package server

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExcerptKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 120, "short"},
		{strings.Repeat("a", 121), 120, strings.Repeat("a", 120) + "…"},
		// "é" is two bytes; a cut at 4 would land inside it.
		{"caféteria", 4, "caf…"},
		{"日本語のテキスト", 7, "日本…"},
	}
	for _, tt := range tests {
		got := excerpt(tt.in, tt.n)
		if got != tt.want {
			t.Errorf("excerpt(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("excerpt(%q, %d) produced invalid UTF-8: %q", tt.in, tt.n, got)
		}
	}
}
