// Package strutil holds string helpers shared by the ai packages.
package strutil

import "strings"

// Truncate cuts s to at most maxRunes runes, appending "..." when cut.
// A non-positive maxRunes yields "".
func Truncate(s string, maxRunes int) string {
	if s == "" || maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}

// Snippet flattens whitespace runs (newlines included) to single spaces and
// truncates the result, for one-line log attributes.
func Snippet(s string, maxRunes int) string {
	return Truncate(strings.Join(strings.Fields(s), " "), maxRunes)
}
