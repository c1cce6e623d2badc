package evaluation

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFC and collapses runs of whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// tokenize splits text into words the way the 13a tokenizer does: punctuation
// becomes its own token, except that periods and commas between digits stay
// inside numbers ("3.5", "1,000"), hyphens split only after a digit, and
// apostrophes stay in words. Non-ASCII punctuation, including Arabic marks,
// is split as well.
func tokenize(s string) []string {
	rs := []rune(Normalize(s))
	var b strings.Builder
	for i, r := range rs {
		switch {
		case r == '.' || r == ',':
			if i > 0 && i+1 < len(rs) && unicode.IsDigit(rs[i-1]) && unicode.IsDigit(rs[i+1]) {
				b.WriteRune(r)
				continue
			}
		case r == '-':
			if i == 0 || !unicode.IsDigit(rs[i-1]) {
				b.WriteRune(r)
				continue
			}
		case r == '\'':
			b.WriteRune(r)
			continue
		case !unicode.IsPunct(r) && !unicode.IsSymbol(r):
			b.WriteRune(r)
			continue
		}
		b.WriteByte(' ')
		b.WriteRune(r)
		b.WriteByte(' ')
	}
	return strings.Fields(b.String())
}
