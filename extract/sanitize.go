package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Sanitize prepares extracted text for persistence: drops NUL and control
// characters (keeping newline and tab), repairs invalid UTF-8, normalizes
// CRLF line endings, collapses runs of blank lines, and trims. Downstream
// storage rejects malformed Unicode, so every extractor output passes
// through here.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == utf8.RuneError:
			continue
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			continue
		default:
			b.WriteRune(r)
		}
	}

	out := blankRuns.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out)
}
