package validation

import (
	"strings"
	"unicode"
)

// StripUnprintable removes non-printable characters from a string, keeping
// common whitespace. Statement descriptions occasionally carry control
// bytes from bank export tools.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
}
