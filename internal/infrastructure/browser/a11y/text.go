package a11y

import (
	"strings"
)

const (
	puaStart = 0xE000
	puaEnd   = 0xF8FF
)

var nbspRunes = map[rune]bool{
	0x00A0: true,
	0x202F: true,
	0x2007: true,
	0xFEFF: true,
}

// CleanText drops private-use-area glyphs (icon fonts) and folds
// non-breaking space variants into a single ASCII space.
func CleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	prevSpace := false
	for _, r := range s {
		if r >= puaStart && r <= puaEnd {
			continue
		}
		if nbspRunes[r] {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		b.WriteRune(r)
		prevSpace = r == ' '
	}

	return strings.TrimSpace(b.String())
}

// NormalizeSpaces collapses every whitespace run into one space.
func NormalizeSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
