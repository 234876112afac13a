package validators

import (
	"strings"
	"unicode"
)

// SanitizeName normalizes a display name coming from a client (size or
// product type): control characters are dropped, whitespace runs collapse to
// one space, and the result is cut to maxLen runes.
func SanitizeName(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))
	runes, space := 0, false
	for _, r := range input {
		if unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if maxLen > 0 && runes+btoi(space) >= maxLen {
			break
		}
		if space {
			b.WriteByte(' ')
			runes++
			space = false
		}
		b.WriteRune(r)
		runes++
	}
	return b.String()
}

func btoi(v bool) int {
	if v {
		return 1
	}
	return 0
}
