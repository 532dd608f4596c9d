package processors

import (
	"strings"
	"unicode/utf8"
)

// CompactText collapses whitespace runs and cuts s to at most max bytes on a
// rune boundary, marking the cut with "...". max <= 0 disables the cut.
func CompactText(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
