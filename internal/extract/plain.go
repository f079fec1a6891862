package extract

import (
	"strings"
	"unicode/utf8"
)

// decodeText returns content as a string. Each byte that does not start a
// valid UTF-8 sequence becomes one replacement character.
func decodeText(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	var b strings.Builder
	b.Grow(len(content) + 8)
	for len(content) > 0 {
		r, size := utf8.DecodeRune(content)
		b.WriteRune(r)
		content = content[size:]
	}
	return b.String()
}
