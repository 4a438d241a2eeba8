package core

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeIdentifier lower-cases s and replaces every whitespace rune with
// an underscore. Applying it twice gives the same result as applying it once.
func NormalizeIdentifier(s string) string {
	return normalizeWith(cases.Lower(language.Und), s)
}

func normalizeWith(lower cases.Caser, s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, lower.String(s))
}

// NormalizeColumns rewrites every column identifier of t in place.
// Row values are not touched. Two headers that normalize to the same
// identifier make the source ambiguous and are reported as MalformedSource.
func NormalizeColumns(t *Table) error {
	lower := cases.Lower(language.Und)
	seen := make(map[string]string, len(t.Columns))

	normalized := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		id := normalizeWith(lower, col)
		if prev, dup := seen[id]; dup {
			return Errorf(KindMalformedSource, "normalize columns",
				"columns %q and %q both normalize to %q", prev, col, id)
		}
		seen[id] = col
		normalized[i] = id
	}

	t.Columns = normalized
	return nil
}
