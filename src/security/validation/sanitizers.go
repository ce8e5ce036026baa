package validation

import (
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// stripAll drops every tag and attribute.
var stripAll = bluemonday.StrictPolicy()

// SanitizeText removes markup from text that will be echoed back to browsers.
func SanitizeText(s string) string {
	return stripAll.Sanitize(s)
}

// StripUnprintable drops control runes other than tab, newline and carriage return.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
}

// CleanUserText normalizes free text typed by users: strategy titles and
// rules, trade descriptions, strategy tags. Broker exports pad cells with
// non-breaking spaces, which become plain spaces here.
func CleanUserText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(SanitizeText(StripUnprintable(s)))
}
