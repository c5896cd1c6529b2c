package storage

import "strings"

// Truncate shortens s to at most maxChars Unicode scalar values, operating
// on runes so a multi-byte character is never split. Strings at or under
// the limit are returned unchanged; past it, the result is the first
// maxChars-3 runes followed by "...", or maxChars dots when maxChars <= 3.
func Truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	if maxChars <= 3 {
		return strings.Repeat(".", maxChars)
	}
	return string(runes[:maxChars-3]) + "..."
}
