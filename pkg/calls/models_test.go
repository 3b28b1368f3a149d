package calls

import (
	"strings"
	"testing"
)

func TestUID(t *testing.T) {
	if got := UID("12345", 1700000000); got != "12345-1700000000" {
		t.Errorf("UID = %q, want 12345-1700000000", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short stays intact", "download: connection reset", 500, "download: connection reset"},
		{"exact length stays intact", strings.Repeat("x", 10), 10, strings.Repeat("x", 10)},
		{"long is cut", strings.Repeat("x", 600), 500, strings.Repeat("x", 500)},
		{"multibyte is cut on rune boundary", "héllo", 2, "hé"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.max); got != tt.want {
				t.Errorf("truncate(%d) = %q, want %q", tt.max, got, tt.want)
			}
		})
	}
}
