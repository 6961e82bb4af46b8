// Package normalize canonicalizes free-text artist, album, and title strings
// so that differently formatted tags for the same recording compare equal.
//
// Artist folds list separators: "A, B" and "A and B" both become "a b".
// Because "&" is punctuation, "A & B" (a duo) also becomes "a b" and is
// therefore equivalent to a track credited to "A" and "B". This is a known
// false-equivalence risk and is kept as is.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// descriptorPattern matches a bracketed clause that describes a variant of the
// base recording rather than a different recording.
var descriptorPattern = regexp.MustCompile(
	`\s*[(\[]\s*(?:featuring|feat|ft|with|remix|remastered|remaster|deluxe|live|bonus)\b[^)\]]*[)\]]`)

var quoteReplacer = strings.NewReplacer(
	"‘", "'", // left single
	"’", "'", // right single
	"‚", "'",
	"‛", "'",
	"′", "'", // prime
	"“", `"`,
	"”", `"`,
	"„", `"`,
	"‟", `"`,
	"″", `"`,
)

var lower = cases.Lower(language.Und)

// Key is an equality key over normalized artist and title.
type Key struct {
	Artist string
	Title  string
}

// TitleKey builds the matcher key for an artist/title pair.
func TitleKey(artist, title string) Key {
	return Key{Artist: Artist(artist), Title: Normalize(title)}
}

// Normalize returns the canonical comparison form of text. It never fails;
// empty input yields empty output, and Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	s := norm.NFC.String(lower.String(norm.NFC.String(text)))
	s = quoteReplacer.Replace(s)
	s = descriptorPattern.ReplaceAllString(s, " ")
	s = strings.Map(keepRune, s)
	return strings.Join(strings.Fields(s), " ")
}

// Artist normalizes an artist credit and folds ", " and " and " separators
// into a single space.
func Artist(text string) string {
	fields := strings.Fields(Normalize(text))
	if len(fields) < 3 {
		return strings.Join(fields, " ")
	}
	out := make([]string, 0, len(fields))
	out = append(out, fields[0])
	for _, f := range fields[1 : len(fields)-1] {
		if f == "and" {
			continue
		}
		out = append(out, f)
	}
	out = append(out, fields[len(fields)-1])
	return strings.Join(out, " ")
}

// keepRune keeps letters, digits, whitespace, apostrophes, and hyphens and
// drops every other rune.
func keepRune(r rune) rune {
	switch {
	case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r):
		return r
	case r == '\'', r == '-':
		return r
	case unicode.IsSpace(r):
		return ' '
	default:
		return -1
	}
}
