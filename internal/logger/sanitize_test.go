package logger

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"empty", "", 10, ""},
		{"plain", "risotto", 10, "risotto"},
		{"log injection newline kept but escapes dropped", "user\x1b[31m\nfake_entry", 100, "user[31m\nfake_entry"},
		{"null bytes dropped", "a\x00b", 10, "ab"},
		{"invalid utf-8 dropped", "bad\xc3\x28", 10, "bad("},
		{"truncated", "0123456789", 4, "0123..."},
		{"truncated on rune boundary", "brûlée", 3, "br..."},
		{"non-positive max uses default", "abc", 0, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	if got := SanitizeError(nil); got != "" {
		t.Errorf("Expected empty string for nil error, got %q", got)
	}
	if got := SanitizeError(errors.New("boom\x07")); got != "boom" {
		t.Errorf("Expected %q, got %q", "boom", got)
	}

	long := errors.New(strings.Repeat("x", MaxErrorMessageLength+50))
	if got := SanitizeError(long); len(got) != MaxErrorMessageLength+3 {
		t.Errorf("Expected length %d, got %d", MaxErrorMessageLength+3, len(got))
	}
}

func TestSanitizePath(t *testing.T) {
	t.Parallel()

	got := SanitizePath("/api/v1/sessions/" + strings.Repeat("a", MaxPathLength))
	if !strings.HasSuffix(got, "...") || len(got) != MaxPathLength+3 {
		t.Errorf("Expected path truncated to %d bytes, got %d", MaxPathLength, len(got))
	}
}
