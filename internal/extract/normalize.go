package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize cleans extracted text. Control characters other than newline and tab
// are dropped, runs of other whitespace become a single space, and every non-empty
// trimmed line becomes a paragraph separated from the next by one blank line.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range text {
		switch {
		case r == '\n':
			pendingSpace = false
			b.WriteByte('\n')
		case unicode.IsSpace(r):
			pendingSpace = true
		case unicode.IsControl(r):
		default:
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}

	lines := strings.Split(b.String(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n\n")
}

// truncateRunes cuts s to at most n characters.
func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// runeLen is utf8.RuneCountInString, named for readability at call sites.
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
