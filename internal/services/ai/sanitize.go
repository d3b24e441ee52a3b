package ai

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Preview caps for coaching text written to debug logs
const (
	PromptPreviewLimit   = 200
	ResponsePreviewLimit = 10000
)

// Preview returns text fit for a log line: valid UTF-8, no control
// characters other than whitespace, at most limit bytes.
func Preview(text string, limit int) string {
	if text == "" {
		return ""
	}
	text = strings.ToValidUTF8(text, "")
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, text)
	return TruncateString(cleaned, limit)
}

// TruncateString truncates s to at most maxLen bytes without splitting a rune
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
